// Package player plays a loaded movie as a stream of VT100 screens.
//
// Every frame becomes one screen buffer: a cursor jump to the top of the
// frame area, the frame lines, a jump to the last row and the time bar.
// The first buffer of a session also clears the screen. Buffers are handed
// to a caller-supplied DrawFunc, and the player then blocks for the frame's
// display time before moving on.
package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/thruflo/asciitel/internal/logging"
	"github.com/thruflo/asciitel/internal/movie"
)

// DefaultFramerate is the number of ticks per second used when none is
// configured.
const DefaultFramerate = 24

// DrawFunc receives one rendered screen. Returning an error ends playback.
// The buffer is only valid for the duration of the call.
type DrawFunc func(screen []byte) error

// WaitFunc blocks for d or until ctx is done.
type WaitFunc func(ctx context.Context, d time.Duration) error

// ExitReason tells why Play returned.
type ExitReason int

const (
	ExitReasonUnknown    ExitReason = iota
	ExitReasonCompleted             // Every frame was drawn
	ExitReasonStopped               // Stop was called
	ExitReasonCancelled             // Context was cancelled
	ExitReasonSinkFailed            // DrawFunc returned an error
	ExitReasonLoadFailed            // Movie could not be prepared (set by callers)
)

// String returns a human-readable description of the exit reason.
func (r ExitReason) String() string {
	switch r {
	case ExitReasonCompleted:
		return "completed"
	case ExitReasonStopped:
		return "stopped"
	case ExitReasonCancelled:
		return "cancelled"
	case ExitReasonSinkFailed:
		return "sink failed"
	case ExitReasonLoadFailed:
		return "load failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of Play.
type Result struct {
	Reason   ExitReason
	Frames   int // screens delivered to the DrawFunc
	Position int // cumulative ticks at the last delivered screen
	Err      error
}

// SinkError wraps an error returned by the DrawFunc.
type SinkError struct {
	Frame int
	Err   error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("draw frame %d: %v", e.Frame, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// Options configures a Player.
type Options struct {
	Framerate int             // ticks per second, DefaultFramerate when zero
	Logger    *logging.Logger // defaults to the package-level logger
	Wait      WaitFunc        // defaults to a timer that honours ctx
}

// Player plays one Movie once. It is not safe to call Play concurrently,
// but Stop may be called from any goroutine.
type Player struct {
	movie     *movie.Movie
	draw      DrawFunc
	framerate int
	wait      WaitFunc
	logger    *logging.Logger
	timebar   *movie.TimeBar
	bounds    screenBounds
	ticks     int

	stopped atomic.Bool
}

// New creates a Player for m that delivers screens to draw.
func New(m *movie.Movie, draw DrawFunc, opts Options) (*Player, error) {
	if m == nil {
		return nil, errors.New("movie is required")
	}
	if draw == nil {
		return nil, errors.New("draw function is required")
	}

	framerate := opts.Framerate
	if framerate == 0 {
		framerate = DefaultFramerate
	}
	if framerate < 0 {
		return nil, fmt.Errorf("framerate must be positive: %d", framerate)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	wait := opts.Wait
	if wait == nil {
		wait = sleep
	}

	g := m.Geometry()
	ticks := m.TotalTicks()
	timebar, err := movie.NewTimeBar(ticks, g.ScreenWidth)
	if err != nil {
		return nil, fmt.Errorf("failed to create time bar: %w", err)
	}

	return &Player{
		movie:     m,
		draw:      draw,
		framerate: framerate,
		wait:      wait,
		logger:    logger,
		timebar:   timebar,
		bounds:    screenBounds{width: g.ScreenWidth, height: g.ScreenHeight, logger: logger},
		ticks:     ticks,
	}, nil
}

// FrameCount is the total number of ticks in the movie.
func (p *Player) FrameCount() int { return p.ticks }

// Duration is how long a full playback takes.
func (p *Player) Duration() time.Duration {
	return p.tickDuration(p.ticks)
}

// Stop asks Play to return before drawing the next frame. A wait that is
// already in progress is not interrupted.
func (p *Player) Stop() {
	p.stopped.Store(true)
}

// Play draws every frame in order, pacing them by their display time.
// Each frame's wait is measured on its own, so scheduler drift adds up
// over a long movie rather than being corrected.
func (p *Player) Play(ctx context.Context) Result {
	res := Result{}
	var buf bytes.Buffer

	for i, frame := range p.movie.Frames() {
		if p.stopped.Load() {
			res.Reason = ExitReasonStopped
			return res
		}
		if ctx.Err() != nil {
			res.Reason = ExitReasonCancelled
			return res
		}

		pos := res.Position + frame.DisplayTime
		buf.Reset()
		p.render(&buf, frame, pos, i == 0)

		if err := p.draw(buf.Bytes()); err != nil {
			res.Reason = ExitReasonSinkFailed
			res.Err = &SinkError{Frame: i, Err: err}
			return res
		}
		res.Frames++
		res.Position = pos

		if p.logger.Enabled(logging.LevelDebug) {
			p.logger.Debug("frame drawn", "frame", i, "position", pos, "bytes", buf.Len())
		}

		if err := p.wait(ctx, p.tickDuration(frame.DisplayTime)); err != nil {
			res.Reason = ExitReasonCancelled
			return res
		}
	}

	res.Reason = ExitReasonCompleted
	return res
}

// Render returns the screen buffer for frame at cumulative position pos.
func (p *Player) Render(frame movie.Frame, pos int, first bool) []byte {
	var buf bytes.Buffer
	p.render(&buf, frame, pos, first)
	return buf.Bytes()
}

func (p *Player) render(buf *bytes.Buffer, frame movie.Frame, pos int, first bool) {
	if first {
		buf.WriteString(ClearScreen)
	}
	// A frame one row shorter than the screen has no top margin; row 1 is
	// still where it starts.
	buf.WriteString(p.bounds.jump(1, max(1, p.movie.TopMargin())))
	for _, line := range frame.Lines {
		buf.WriteString(line)
		buf.WriteString(LineEnd)
	}
	buf.WriteString(p.bounds.jump(1, p.movie.Geometry().ScreenHeight))
	buf.WriteString(p.timebar.Render(pos))
}

func (p *Player) tickDuration(ticks int) time.Duration {
	return time.Duration(ticks) * time.Second / time.Duration(p.framerate)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
