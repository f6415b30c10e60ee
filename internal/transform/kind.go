package transform

//go:generate go tool stringer -type=Kind -trimprefix=Kind -output=kind_string.go

// Kind names one pass variant. The declaration order is the order passes
// run in.
type Kind uint8

const (
	KindStripTypes Kind = iota
	KindInlineGlobals
	KindJSX
	KindDecorators
	KindClassProperties
	KindExportInterop
	KindSimplify
	KindES2018
	KindES2017
	KindES2016
	KindES2015
	KindES3
	KindModule
	KindInjectHelpers
	KindHygiene
	KindFixer
)
