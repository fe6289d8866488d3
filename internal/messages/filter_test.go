package messages

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterTrimsWhitespace(t *testing.T) {
	f := NewFilter(100, nil)
	assert.Equal(t, "hello", f.Apply("  hello \n"))
	assert.Equal(t, "", f.Apply("   "))
}

func TestFilterBoundsLength(t *testing.T) {
	f := NewFilter(3, nil)
	assert.Equal(t, "abc", f.Apply("abcdef"))
	// Rune-bounded, not byte-bounded.
	assert.Equal(t, "äöü", f.Apply("äöüäöü"))
}

func TestFilterMasksWholeWords(t *testing.T) {
	f := NewFilter(100, []string{"badword", ""})
	assert.Equal(t, "a ******* here", f.Apply("a BadWord here"))
	// Substrings are left alone.
	assert.Equal(t, "badwording", f.Apply("badwording"))
}

func TestFilterDefaultsMaxLen(t *testing.T) {
	f := NewFilter(0, nil)
	assert.Equal(t, DefaultMaxBodyLen, f.maxLen)
}
