package source

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilePosition(t *testing.T) {
	set := NewSet()
	f := set.AddFile("", "/src/a.js", "let a = 1;\nlet é = '😀' + x;\n")

	assert.Equal(t, "/src/a.js", f.Name)
	assert.True(t, f.PathBacked())
	assert.Equal(t, 3, f.LineCount())

	assert.Equal(t, Position{Line: 0, Column: 0}, f.Position(0))
	assert.Equal(t, Position{Line: 0, Column: 4}, f.Position(4))
	assert.Equal(t, Position{Line: 1, Column: 0}, f.Position(11))

	// "let é = '😀' + x": é is one UTF-16 unit, the emoji is two.
	off := len("let a = 1;\nlet é = '😀' + ")
	assert.Equal(t, Position{Line: 1, Column: 15}, f.Position(off))

	assert.Equal(t, f.Position(len(f.Src)), f.Position(len(f.Src)+10))
}

func TestAnonymousFile(t *testing.T) {
	f := NewSet().AddFile("", "", "x")
	assert.Equal(t, AnonName, f.Name)
	assert.False(t, f.PathBacked())

	named := NewSet().AddFile("input.js", "", "x")
	assert.Equal(t, "input.js", named.Name)
	assert.False(t, named.PathBacked())
}

func TestSetFileLookup(t *testing.T) {
	set := NewSet()
	a := set.AddFile("a", "", "aaaa")
	b := set.AddFile("b", "", "bb")

	assert.Same(t, a, set.File(a.Base+2))
	assert.Same(t, b, set.File(b.Base))
	assert.Nil(t, set.File(0))
	assert.Nil(t, set.File(b.Base+100))
}

func TestSetConcurrentAppend(t *testing.T) {
	set := NewSet()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set.AddFile("", "", "console.log(1)")
		}()
	}
	wg.Wait()
	require.Equal(t, 32, set.Len())

	seen := map[int]bool{}
	for i := 0; i < 32; i++ {
		f := set.files[i]
		assert.False(t, seen[f.Base], "overlapping base %d", f.Base)
		seen[f.Base] = true
	}
}
