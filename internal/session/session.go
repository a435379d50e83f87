// Package session runs one playback of a movie for one viewer. Every
// session loads its own copy of the movie so viewers never share state.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/thruflo/asciitel/internal/config"
	"github.com/thruflo/asciitel/internal/logging"
	"github.com/thruflo/asciitel/internal/movie"
	"github.com/thruflo/asciitel/internal/player"
	"github.com/thruflo/asciitel/internal/terminal"
)

// Settings is everything a session needs to play a movie.
type Settings struct {
	File      string
	Framerate int
	Geometry  movie.Geometry
	Encoding  string

	// Wait replaces the frame timer, for tests.
	Wait player.WaitFunc
	// Quit, when closed, stops playback at the next frame boundary.
	Quit <-chan struct{}
}

// SettingsFromConfig builds Settings from a resolved Config.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		File:      cfg.Movie.File,
		Framerate: cfg.Movie.Framerate,
		Geometry: movie.Geometry{
			ScreenWidth:  cfg.Movie.Size.Width,
			ScreenHeight: cfg.Movie.Size.Height,
			FrameWidth:   cfg.Movie.FrameSize.Width,
			FrameHeight:  cfg.Movie.FrameSize.Height,
		},
		Encoding: cfg.Output.Encoding,
	}
}

// Info describes a loaded movie.
type Info struct {
	Geometry   movie.Geometry
	Frames     int
	Ticks      int
	Duration   time.Duration
	LeftMargin int
	TopMargin  int
}

// load reads the movie and checks it fits the screen.
func load(s Settings) (*movie.Movie, error) {
	m, err := movie.LoadFile(s.File, s.Geometry)
	if err != nil {
		return nil, err
	}
	if err := m.Geometry().Fits(); err != nil {
		return nil, fmt.Errorf("%s: %w", s.File, err)
	}
	return m, nil
}

// Preflight loads the movie once so configuration problems surface before
// any viewer connects.
func Preflight(s Settings) (Info, error) {
	m, err := load(s)
	if err != nil {
		return Info{}, err
	}
	framerate := s.Framerate
	if framerate <= 0 {
		framerate = player.DefaultFramerate
	}
	ticks := m.TotalTicks()
	return Info{
		Geometry:   m.Geometry(),
		Frames:     len(m.Frames()),
		Ticks:      ticks,
		Duration:   time.Duration(ticks) * time.Second / time.Duration(framerate),
		LeftMargin: m.LeftMargin(),
		TopMargin:  m.TopMargin(),
	}, nil
}

// Run plays the movie once to w. It returns when the movie ends, ctx is
// cancelled, or a write to w fails.
func Run(ctx context.Context, s Settings, w io.Writer, logger *logging.Logger) player.Result {
	if logger == nil {
		logger = logging.Default()
	}

	m, err := load(s)
	if err != nil {
		logger.Error("failed to load movie", "file", s.File, "error", err)
		return player.Result{Reason: player.ExitReasonLoadFailed, Err: err}
	}

	out, err := terminal.NewEncodingWriter(w, s.Encoding)
	if err != nil {
		logger.Error("failed to set up output encoding", "error", err)
		return player.Result{Reason: player.ExitReasonLoadFailed, Err: err}
	}

	p, err := player.New(m, func(screen []byte) error {
		_, err := out.Write(screen)
		return err
	}, player.Options{Framerate: s.Framerate, Logger: logger, Wait: s.Wait})
	if err != nil {
		logger.Error("failed to create player", "error", err)
		return player.Result{Reason: player.ExitReasonLoadFailed, Err: err}
	}

	if s.Quit != nil {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-s.Quit:
				p.Stop()
			case <-done:
			}
		}()
	}

	logger.Info("playback started", "file", s.File, "frames", len(m.Frames()), "duration", p.Duration())
	start := time.Now()
	res := p.Play(ctx)

	switch res.Reason {
	case player.ExitReasonSinkFailed:
		var se *player.SinkError
		if errors.As(res.Err, &se) {
			logger.Info("viewer went away", "frame", se.Frame, "error", se.Err)
		}
	default:
		logger.Info("playback finished", "reason", res.Reason, "frames", res.Frames, "elapsed", time.Since(start).Round(time.Millisecond))
	}
	return res
}
