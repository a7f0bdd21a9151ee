package cli

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapToWidthBreaksLongWords(t *testing.T) {
	t.Parallel()

	lines := strings.Split(wrapToWidth(strings.Repeat("x", 25), 10), "\n")
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, lines)
}

func TestWrapToWidthKeepsBlankLines(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "a\n\nb", wrapToWidth("a\r\n\r\nb", 10))
	assert.Equal(t, "unchanged text", wrapToWidth("unchanged text", 0))
}

func TestHangingIndentIndentsContinuation(t *testing.T) {
	t.Parallel()

	lines := strings.Split(hangingIndent("thinking: ", "alpha beta gamma delta", 20), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "thinking: alpha"))
	for _, l := range lines[1:] {
		assert.True(t, strings.HasPrefix(l, strings.Repeat(" ", len("thinking: "))), l)
	}
	assert.Equal(t, "p: text", hangingIndent("p: ", "text", 0))
}

func TestTextWrapperKeepsWordsSplitAcrossFragments(t *testing.T) {
	t.Parallel()

	w := newTextWrapper(12)
	var out strings.Builder
	for _, frag := range []string{"Drafting the", " acc", "ounts spec", " now"} {
		out.WriteString(w.Write(frag))
	}
	rest, midLine := w.Flush()
	out.WriteString(rest)

	assert.True(t, midLine)
	assert.Equal(t, "Drafting the\naccounts\nspec now", out.String())
}

func TestTextWrapperPassesThroughWithoutWidth(t *testing.T) {
	t.Parallel()

	w := newTextWrapper(0)
	assert.Equal(t, "one two", w.Write("one two"))
	_, midLine := w.Flush()
	assert.True(t, midLine)

	assert.Equal(t, "line\n", w.Write("line\n"))
	_, midLine = w.Flush()
	assert.False(t, midLine)
}

func TestHangingIndentIgnoresANSIInPrefix(t *testing.T) {
	t.Parallel()

	prefix := "\x1b[1mtool:\x1b[0m "
	lines := strings.Split(hangingIndent(prefix, "alpha beta gamma", 12), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, prefix+"alpha", lines[0])
	assert.Equal(t, "      beta", lines[1])
	assert.Equal(t, "      gamma", lines[2])
}
