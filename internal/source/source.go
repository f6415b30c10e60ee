// Package source holds the append-only set of files a compiler has seen and
// translates byte offsets into line/column positions.
package source

import (
	"sort"
	"sync"
	"unicode/utf8"
)

// AnonName is the display name of a source that has neither a path nor a
// filename.
const AnonName = "<anon>"

// Position is a zero-based line and a zero-based UTF-16 column, the unit
// source maps count in.
type Position struct {
	Line   int
	Column int
}

// File is one unit of source text. It is immutable once added to a Set.
type File struct {
	Name string // display name, used as the source map "sources" entry
	Path string // absolute filesystem path, empty for anonymous sources
	Src  string
	Base int // offset of the first byte within the owning Set

	lines []int
}

// PathBacked reports whether the file came from (or claims) a filesystem path.
func (f *File) PathBacked() bool { return f.Path != "" }

// LineCount returns the number of lines in the file.
func (f *File) LineCount() int { return len(f.lines) }

// Position converts a byte offset relative to the start of the file.
// Offsets past the end clamp to the end.
func (f *File) Position(off int) Position {
	if off < 0 {
		off = 0
	}
	if off > len(f.Src) {
		off = len(f.Src)
	}
	line := sort.Search(len(f.lines), func(i int) bool { return f.lines[i] > off }) - 1
	if line < 0 {
		line = 0
	}
	return Position{Line: line, Column: UTF16Len(f.Src[f.lines[line]:off])}
}

// Lines returns the byte offset each line starts at.
func Lines(src string) []int {
	lines := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			lines = append(lines, i+1)
		}
	}
	return lines
}

// UTF16Len counts the UTF-16 code units needed to encode s.
func UTF16Len(s string) int {
	n := 0
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		s = s[size:]
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// Set is the shared source-position database. Files are appended, never
// removed; every file gets a disjoint range of global offsets.
type Set struct {
	mu    sync.Mutex
	files []*File
	next  int
}

func NewSet() *Set {
	return &Set{next: 1}
}

// AddFile registers a new file. name may be empty, in which case the path or
// AnonName is used.
func (s *Set) AddFile(name, path, src string) *File {
	if name == "" {
		name = path
	}
	if name == "" {
		name = AnonName
	}
	f := &File{Name: name, Path: path, Src: src, lines: Lines(src)}

	s.mu.Lock()
	defer s.mu.Unlock()
	f.Base = s.next
	s.next += len(src) + 1
	s.files = append(s.files, f)
	return f
}

// File returns the file containing the global offset pos, or nil.
func (s *Set) File(pos int) *File {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := sort.Search(len(s.files), func(i int) bool { return s.files[i].Base > pos }) - 1
	if i < 0 {
		return nil
	}
	f := s.files[i]
	if pos > f.Base+len(f.Src) {
		return nil
	}
	return f
}

// Len returns the number of files added so far.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.files)
}
