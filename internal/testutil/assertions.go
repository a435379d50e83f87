package testutil

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const clearScreen = "\033[2J"

// AssertClearsOnce asserts that a full playback cleared the screen exactly
// once, at the very start.
func AssertClearsOnce(t *testing.T, output string) {
	t.Helper()

	assert.True(t, strings.HasPrefix(output, clearScreen), "output must start with a clear screen")
	assert.Equal(t, 1, strings.Count(output, clearScreen), "clear screen must be sent once")
}

// AssertTimeBarAt asserts that screen ends with a time bar of the given
// width whose marker sits at column marker, counted inside the decorators.
func AssertTimeBarAt(t *testing.T, screen string, width, marker int) {
	t.Helper()

	idx := strings.LastIndex(screen, "H")
	require.GreaterOrEqual(t, idx, 0, "no cursor jump before the time bar")
	bar := screen[idx+1:]
	require.Equal(t, width, utf8.RuneCountInString(bar), "time bar width")

	inner := []rune(bar)[1 : width-1]
	assert.Equal(t, 'o', inner[marker], "marker position in %q", bar)
}

// ReadUntil reads from r until needle has been seen and returns everything
// read so far. It fails the test if r ends first.
func ReadUntil(t *testing.T, r io.Reader, needle string) string {
	t.Helper()

	var got bytes.Buffer
	br := bufio.NewReader(r)
	for !bytes.Contains(got.Bytes(), []byte(needle)) {
		b, err := br.ReadByte()
		if err != nil {
			require.FailNow(t, "stream ended before needle", "needle %q, read %q: %v", needle, got.String(), err)
		}
		got.WriteByte(b)
	}
	return got.String()
}
