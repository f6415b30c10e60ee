// Package sourcemap builds version 3 source maps incrementally.
package sourcemap

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Mapping links a generated position to an original one. Lines and columns
// are zero-based; columns count UTF-16 code units.
type Mapping struct {
	GenLine, GenCol int
	Source          int
	SrcLine, SrcCol int
}

// Builder accumulates sources and mappings. It is not safe for concurrent
// use; each compile owns its own.
type Builder struct {
	file       string
	sourceRoot string
	sources    []string
	contents   []*string
	index      map[string]int
	mappings   []Mapping
}

func NewBuilder(file, sourceRoot string) *Builder {
	return &Builder{file: file, sourceRoot: sourceRoot, index: map[string]int{}}
}

// AddSource registers a source and returns its index. content may be nil
// when the original text should not be embedded. Adding the same name twice
// returns the first index.
func (b *Builder) AddSource(name string, content *string) int {
	if i, ok := b.index[name]; ok {
		return i
	}
	i := len(b.sources)
	b.sources = append(b.sources, name)
	b.contents = append(b.contents, content)
	b.index[name] = i
	return i
}

// AddMapping records one mapping. Mappings may arrive in any order.
func (b *Builder) AddMapping(m Mapping) {
	b.mappings = append(b.mappings, m)
}

// Len returns the number of recorded mappings.
func (b *Builder) Len() int { return len(b.mappings) }

type document struct {
	Version        int       `json:"version"`
	File           string    `json:"file,omitempty"`
	SourceRoot     string    `json:"sourceRoot,omitempty"`
	Sources        []string  `json:"sources"`
	SourcesContent []*string `json:"sourcesContent,omitempty"`
	Names          []string  `json:"names"`
	Mappings       string    `json:"mappings"`
}

// Bytes serializes the map as JSON.
func (b *Builder) Bytes() ([]byte, error) {
	doc := document{
		Version:    3,
		File:       b.file,
		SourceRoot: b.sourceRoot,
		Sources:    b.sources,
		Names:      []string{},
		Mappings:   b.encode(),
	}
	if doc.Sources == nil {
		doc.Sources = []string{}
	}
	for _, c := range b.contents {
		if c != nil {
			doc.SourcesContent = b.contents
			break
		}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode source map: %w", err)
	}
	return out, nil
}

// DataURL returns the map as a base64 data URL suitable for an inline
// sourceMappingURL comment.
func DataURL(doc []byte) string {
	return "data:application/json;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(doc)
}

func (b *Builder) encode() string {
	ms := append([]Mapping(nil), b.mappings...)
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].GenLine != ms[j].GenLine {
			return ms[i].GenLine < ms[j].GenLine
		}
		return ms[i].GenCol < ms[j].GenCol
	})

	var sb strings.Builder
	line, prevCol := 0, 0
	prevSrc, prevSrcLine, prevSrcCol := 0, 0, 0
	first := true
	for _, m := range ms {
		for line < m.GenLine {
			sb.WriteByte(';')
			line++
			prevCol = 0
			first = true
		}
		if !first {
			sb.WriteByte(',')
		}
		first = false
		writeVLQ(&sb, m.GenCol-prevCol)
		writeVLQ(&sb, m.Source-prevSrc)
		writeVLQ(&sb, m.SrcLine-prevSrcLine)
		writeVLQ(&sb, m.SrcCol-prevSrcCol)
		prevCol, prevSrc, prevSrcLine, prevSrcCol = m.GenCol, m.Source, m.SrcLine, m.SrcCol
	}
	return sb.String()
}

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

func writeVLQ(sb *strings.Builder, v int) {
	u := v << 1
	if v < 0 {
		u = (-v << 1) | 1
	}
	for {
		digit := u & 0x1f
		u >>= 5
		if u > 0 {
			digit |= 0x20
		}
		sb.WriteByte(base64Chars[digit])
		if u == 0 {
			return
		}
	}
}
