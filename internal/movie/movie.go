// Package movie holds the in-memory representation of an ASCII movie and
// the loader for the line-oriented text format it is stored in.
//
// A movie file is a sequence of frames. Each frame starts with a line
// holding a bare decimal integer, the number of ticks the frame stays on
// screen, followed by a fixed number of content lines:
//
//	15
//	   o
//	  /|\
//	  / \
//	3
//	  \o/
//	   |
//	  / \
//
// The number of content lines per frame and the content width are detected
// from the file unless they are configured.
package movie

import (
	"errors"
	"fmt"
	"os"
)

// NotLoadedText is the content of the sentinel frame a Movie holds before
// it is loaded.
const NotLoadedText = "No movie yet loaded."

// ErrAlreadyLoaded is returned by Load on a Movie that was already loaded.
var ErrAlreadyLoaded = errors.New("movie already loaded")

// Frame is one still image and the number of ticks it stays on screen.
type Frame struct {
	DisplayTime int
	Lines       []string
}

// Geometry describes the target screen and the frame content size.
// ScreenHeight includes the time bar row. A zero frame dimension means the
// loader detects it from the file.
type Geometry struct {
	ScreenWidth  int
	ScreenHeight int
	FrameWidth   int
	FrameHeight  int
}

// DefaultGeometry is an 80x24 VT100 screen with frame size auto-detection.
func DefaultGeometry() Geometry {
	return Geometry{ScreenWidth: 80, ScreenHeight: 24}
}

// Fits reports whether the frame leaves room for itself and the time bar
// on the screen.
func (g Geometry) Fits() error {
	if g.FrameWidth > g.ScreenWidth {
		return fmt.Errorf("frame width %d exceeds screen width %d", g.FrameWidth, g.ScreenWidth)
	}
	if g.FrameHeight > g.ScreenHeight-TimeBarHeight {
		return fmt.Errorf("frame height %d exceeds screen height %d minus time bar", g.FrameHeight, g.ScreenHeight)
	}
	return nil
}

// Movie owns a frame sequence plus the geometry used to lay it out.
// It can be loaded once; after that it is read-only.
type Movie struct {
	frames   []Frame
	geometry Geometry
	loaded   bool
	source   string

	leftMargin int
	topMargin  int
}

// New creates an empty Movie holding only the sentinel frame.
func New(g Geometry) *Movie {
	m := &Movie{
		frames:   []Frame{{DisplayTime: 1, Lines: []string{NotLoadedText}}},
		geometry: g,
	}
	m.computeMargins()
	return m
}

// LoadFile creates a Movie with geometry g and loads path into it.
func LoadFile(path string, g Geometry) (*Movie, error) {
	m := New(g)
	if err := m.Load(path); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads and parses the movie file at path.
func (m *Movie) Load(path string) error {
	if m.loaded {
		return ErrAlreadyLoaded
	}

	f, err := os.Open(path)
	if err != nil {
		return &ParseError{Path: path, Msg: "cannot open movie file", Err: err}
	}
	defer f.Close()

	return m.LoadReader(path, f)
}

func (m *Movie) install(frames []Frame, g Geometry) {
	m.geometry = g
	m.computeMargins()
	m.frames = layout(frames, g.FrameWidth, m.leftMargin)
	m.loaded = true
}

func (m *Movie) computeMargins() {
	m.leftMargin = (m.geometry.ScreenWidth - m.geometry.FrameWidth) / 2
	m.topMargin = (m.geometry.ScreenHeight - m.geometry.FrameHeight - TimeBarHeight) / 2
}

// Loaded reports whether Load succeeded.
func (m *Movie) Loaded() bool { return m.loaded }

// Source returns the path the movie was loaded from.
func (m *Movie) Source() string { return m.source }

// Frames returns the frames in playback order. Callers must not modify them.
func (m *Movie) Frames() []Frame { return m.frames }

// Geometry returns the screen and frame geometry, including any detected
// frame dimensions.
func (m *Movie) Geometry() Geometry { return m.geometry }

// LeftMargin is the column offset that centers the frame horizontally.
func (m *Movie) LeftMargin() int { return m.leftMargin }

// TopMargin is the row offset that centers the frame above the time bar.
func (m *Movie) TopMargin() int { return m.topMargin }

// TotalTicks is the sum of all frame display times.
func (m *Movie) TotalTicks() int {
	total := 0
	for _, f := range m.frames {
		total += f.DisplayTime
	}
	return total
}
