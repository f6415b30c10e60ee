package rewrite

import "strings"

// part is either synthesized text or a copy of a byte range of the program
// the fragment is rendered against.
type part struct {
	text       string
	start, end int
	copy       bool
}

// Fragment is replacement text built from synthesized strings and copied
// source ranges. Copied ranges keep their origin when applied; synthesized
// text has none.
type Fragment struct {
	parts []part
}

// Text returns a fragment holding only synthesized text.
func Text(s ...string) *Fragment {
	return new(Fragment).Str(s...)
}

// Copy returns a fragment copying [start, end) of the current program.
func Copy(start, end int) *Fragment {
	return new(Fragment).Copy(start, end)
}

// Str appends synthesized text.
func (f *Fragment) Str(s ...string) *Fragment {
	for _, str := range s {
		if str == "" {
			continue
		}
		if n := len(f.parts); n > 0 && !f.parts[n-1].copy {
			f.parts[n-1].text += str
			continue
		}
		f.parts = append(f.parts, part{text: str})
	}
	return f
}

// Copy appends a copied range. Adjacent copies are merged.
func (f *Fragment) Copy(start, end int) *Fragment {
	if end <= start {
		return f
	}
	if n := len(f.parts); n > 0 && f.parts[n-1].copy && f.parts[n-1].end == start {
		f.parts[n-1].end = end
		return f
	}
	f.parts = append(f.parts, part{start: start, end: end, copy: true})
	return f
}

// Add appends other fragments; nil fragments are skipped.
func (f *Fragment) Add(others ...*Fragment) *Fragment {
	for _, o := range others {
		if o == nil {
			continue
		}
		for _, p := range o.parts {
			if p.copy {
				f.Copy(p.start, p.end)
			} else {
				f.Str(p.text)
			}
		}
	}
	return f
}

// Empty reports whether the fragment renders to nothing.
func (f *Fragment) Empty() bool {
	return f == nil || len(f.parts) == 0
}

// IsCopyOf reports whether the fragment is exactly the range [start, end)
// and nothing else.
func (f *Fragment) IsCopyOf(start, end int) bool {
	if f == nil {
		return start == end
	}
	if len(f.parts) == 0 {
		return start == end
	}
	return len(f.parts) == 1 && f.parts[0].copy && f.parts[0].start == start && f.parts[0].end == end
}

// String renders the fragment against p.
func (f *Fragment) String(p *Program) string {
	if f == nil {
		return ""
	}
	var sb strings.Builder
	for _, pt := range f.parts {
		if pt.copy {
			sb.Write(p.Src[pt.start:pt.end])
		} else {
			sb.WriteString(pt.text)
		}
	}
	return sb.String()
}

// Join concatenates frags separated by sep.
func Join(frags []*Fragment, sep string) *Fragment {
	out := new(Fragment)
	for i, fr := range frags {
		if i > 0 {
			out.Str(sep)
		}
		out.Add(fr)
	}
	return out
}
