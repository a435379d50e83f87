package movie

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// TimeBarHeight is the number of screen rows the time bar occupies.
const TimeBarHeight = 1

// Default time bar decorations.
const (
	DefaultLeftDecorator  = "<"
	DefaultRightDecorator = ">"
	DefaultSpacer         = " "
	DefaultMarker         = "o"
)

// ErrTimeBarTooShort is returned when the decorators and marker do not fit
// into the requested length.
var ErrTimeBarTooShort = errors.New("time bar too short for its decorators")

// TimeBarOption customizes a TimeBar.
type TimeBarOption func(*TimeBar)

// WithDecorators sets the left and right decorators.
func WithDecorators(left, right string) TimeBarOption {
	return func(tb *TimeBar) {
		tb.left = left
		tb.right = right
	}
}

// WithSpacer sets the string used to fill the bar interior.
func WithSpacer(spacer string) TimeBarOption {
	return func(tb *TimeBar) { tb.spacer = spacer }
}

// WithMarker sets the position marker.
func WithMarker(marker string) TimeBarOption {
	return func(tb *TimeBar) { tb.marker = marker }
}

// TimeBar renders a one-line progress indicator like "<    o      >".
// It holds configuration only; rendering depends on the position argument.
type TimeBar struct {
	duration int
	length   int
	left     string
	right    string
	spacer   string
	marker   string

	internal int
	empty    []rune
}

// NewTimeBar creates a TimeBar tracking duration ticks, rendered length
// runes wide.
func NewTimeBar(duration, length int, opts ...TimeBarOption) (*TimeBar, error) {
	tb := &TimeBar{
		duration: duration,
		length:   length,
		left:     DefaultLeftDecorator,
		right:    DefaultRightDecorator,
		spacer:   DefaultSpacer,
		marker:   DefaultMarker,
	}
	for _, opt := range opts {
		opt(tb)
	}

	if duration < 0 {
		return nil, fmt.Errorf("time bar duration must not be negative: %d", duration)
	}

	leftLen := utf8.RuneCountInString(tb.left)
	rightLen := utf8.RuneCountInString(tb.right)
	markerLen := utf8.RuneCountInString(tb.marker)
	if leftLen+rightLen+markerLen > length {
		return nil, fmt.Errorf("%w: %s %s %s", ErrTimeBarTooShort, tb.left, tb.marker, tb.right)
	}
	if tb.spacer == "" {
		tb.spacer = DefaultSpacer
	}

	tb.internal = length - leftLen - rightLen

	// A multi-rune spacer is repeated and cut to the interior width.
	fill := []rune(strings.Repeat(tb.spacer, tb.internal))[:tb.internal]
	empty := make([]rune, 0, length)
	empty = append(empty, []rune(tb.left)...)
	empty = append(empty, fill...)
	empty = append(empty, []rune(tb.right)...)
	tb.empty = empty

	return tb, nil
}

// Duration returns the number of ticks the bar tracks.
func (tb *TimeBar) Duration() int { return tb.duration }

// Length returns the rendered width in runes.
func (tb *TimeBar) Length() int { return tb.length }

// Empty returns the bar without a marker.
func (tb *TimeBar) Empty() string {
	return string(tb.empty)
}

// MarkerPosition maps a tick position to an index in the bar interior.
// Rounding is half-to-even. A zero duration always maps to 0.
func (tb *TimeBar) MarkerPosition(position int) int {
	if tb.duration == 0 {
		return 0
	}
	return int(math.RoundToEven(float64(tb.internal) / float64(tb.duration) * float64(position)))
}

// Render returns the bar with the marker at position. Positions past the
// duration are clamped so the marker never covers the right decorator.
func (tb *TimeBar) Render(position int) string {
	markerRunes := []rune(tb.marker)

	idx := tb.MarkerPosition(position)
	if last := tb.internal - len(markerRunes); idx > last {
		idx = last
	}
	if idx < 0 {
		idx = 0
	}

	start := utf8.RuneCountInString(tb.left) + idx
	out := make([]rune, len(tb.empty))
	copy(out, tb.empty)
	copy(out[start:], markerRunes)
	return string(out)
}
