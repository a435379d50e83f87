package movie

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTimeBar(t *testing.T, duration, length int, opts ...TimeBarOption) *TimeBar {
	t.Helper()
	tb, err := NewTimeBar(duration, length, opts...)
	require.NoError(t, err)
	return tb
}

func TestTimeBar_Empty(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		length int
		opts   []TimeBarOption
		want   string
	}{
		{"short", 3, nil, "< >"},
		{"ten", 10, nil, "<        >"},
		{"long", 100, nil, "<" + strings.Repeat(" ", 98) + ">"},
		{"fancy decorators", 15, []TimeBarOption{WithDecorators("*~~*~~", "Œ")}, "*~~*~~        Œ"},
		{"custom spacer", 15, []TimeBarOption{WithSpacer(".")}, "<.............>"},
		{"multi rune spacer", 9, []TimeBarOption{WithSpacer("-=")}, "<-=-=-=->"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tb := mustTimeBar(t, 0, tt.length, tt.opts...)
			assert.Equal(t, tt.want, tb.Empty())
			assert.Equal(t, tt.length, utf8.RuneCountInString(tb.Empty()))
		})
	}
}

func TestTimeBar_TooShort(t *testing.T) {
	t.Parallel()

	_, err := NewTimeBar(0, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeBarTooShort))
	assert.Contains(t, err.Error(), "< o >")

	_, err = NewTimeBar(0, 2)
	assert.ErrorIs(t, err, ErrTimeBarTooShort)

	_, err = NewTimeBar(0, 3)
	assert.NoError(t, err)

	_, err = NewTimeBar(0, 4, WithMarker("[]"))
	assert.NoError(t, err)
	_, err = NewTimeBar(0, 3, WithMarker("[]"))
	assert.ErrorIs(t, err, ErrTimeBarTooShort)
}

func TestTimeBar_NegativeDuration(t *testing.T) {
	t.Parallel()

	_, err := NewTimeBar(-1, 10)
	assert.Error(t, err)
}

func TestTimeBar_MarkerPosition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		length int
		want   map[int]int
	}{
		{"easy", 102, map[int]int{0: 0, 1: 1, 10: 10, 20: 20, 30: 30, 40: 40, 50: 50, 99: 99, 100: 100}},
		{"harder", 100, map[int]int{0: 0, 1: 1, 10: 10, 20: 20, 30: 29, 40: 39, 50: 49, 99: 97, 100: 98}},
		{"small", 10, map[int]int{0: 0, 1: 0, 10: 1, 20: 2, 30: 2, 40: 3, 50: 4, 99: 8, 100: 8}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tb := mustTimeBar(t, 100, tt.length)
			for pos, want := range tt.want {
				assert.Equal(t, want, tb.MarkerPosition(pos), "position %d", pos)
			}
		})
	}
}

func TestTimeBar_MarkerPositionMonotonic(t *testing.T) {
	t.Parallel()

	for _, length := range []int{3, 8, 10, 80, 102} {
		tb := mustTimeBar(t, 137, length)
		prev := tb.MarkerPosition(0)
		assert.Equal(t, 0, prev)
		for pos := 1; pos <= 200; pos++ {
			cur := tb.MarkerPosition(pos)
			assert.GreaterOrEqual(t, cur, prev, "length %d position %d", length, pos)
			prev = cur
		}
	}
}

func TestTimeBar_ZeroDurationIsGuarded(t *testing.T) {
	t.Parallel()

	tb := mustTimeBar(t, 0, 10)
	assert.Equal(t, 0, tb.MarkerPosition(5))
	assert.Equal(t, "<o       >", tb.Render(5))
}

func TestTimeBar_Render(t *testing.T) {
	t.Parallel()

	tb := mustTimeBar(t, 100, 102)

	assert.Equal(t, "<o"+strings.Repeat(" ", 99)+">", tb.Render(0))

	at10 := tb.Render(10)
	assert.Len(t, at10, 102)
	assert.Equal(t, 11, strings.Index(at10, "o"))
	assert.Equal(t, "<"+strings.Repeat(" ", 10)+"o"+strings.Repeat(" ", 89)+">", at10)

	assert.Equal(t, 100, strings.Index(tb.Render(99), "o"))
	assert.Equal(t, 100, strings.Index(tb.Render(100), "o"))
}

func TestTimeBar_RenderShort(t *testing.T) {
	t.Parallel()

	tb := mustTimeBar(t, 100, 8)

	tests := map[int]string{
		0:   "<o     >",
		10:  "< o    >",
		50:  "<   o  >",
		99:  "<     o>",
		100: "<     o>",
	}
	for pos, want := range tests {
		assert.Equal(t, want, tb.Render(pos), "position %d", pos)
	}
}

func TestTimeBar_PositionPastDurationIsClamped(t *testing.T) {
	t.Parallel()

	tb := mustTimeBar(t, 100, 102)
	past := tb.Render(104)

	assert.Len(t, past, 102)
	assert.Equal(t, "<"+strings.Repeat(" ", 99)+"o>", past)
	assert.Equal(t, tb.Render(100), past)
}

func TestTimeBar_RenderAlwaysFullLength(t *testing.T) {
	t.Parallel()

	bars := []*TimeBar{
		mustTimeBar(t, 45, 80),
		mustTimeBar(t, 45, 15, WithDecorators("*~~*~~", "Œ")),
		mustTimeBar(t, 7, 12, WithMarker("<>"), WithDecorators("[", "]")),
	}
	for _, tb := range bars {
		for pos := -3; pos <= tb.Duration()+10; pos++ {
			out := tb.Render(pos)
			assert.Equal(t, tb.Length(), utf8.RuneCountInString(out), "position %d of %q", pos, out)
		}
	}
}

func TestTimeBar_MultiRuneMarkerKeepsRightDecorator(t *testing.T) {
	t.Parallel()

	tb := mustTimeBar(t, 10, 8, WithMarker("[]"))
	assert.Equal(t, "<    []>", tb.Render(10))
	assert.Equal(t, "<[]    >", tb.Render(0))
}
