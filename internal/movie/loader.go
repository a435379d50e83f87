package movie

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxLineBytes bounds a single line of a movie file.
const maxLineBytes = 1 << 20

// ParseError reports a movie file that cannot be opened or decoded.
type ParseError struct {
	Path string
	Line int // 1-based, 0 when not tied to a line
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	sb.WriteString("parse error")
	if e.Path != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Path)
	}
	if e.Line > 0 {
		fmt.Fprintf(&sb, ":%d", e.Line)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err is or wraps a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// LoadReader parses a movie from r. name is only used in error messages.
func (m *Movie) LoadReader(name string, r io.Reader) error {
	if m.loaded {
		return ErrAlreadyLoaded
	}
	frames, g, err := parse(r, m.geometry)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = name
		}
		return err
	}
	m.install(frames, g)
	m.source = name
	return nil
}

type parseState int

const (
	seekingFirstMarker parseState = iota
	seekingSecondMarker
	streamingFrames
)

// parser turns right-trimmed lines into frames. The stride (marker line
// plus content lines) is either configured or taken from the distance
// between the first two marker lines; after that, every line at a stride
// multiple from the first marker is a marker, whatever it looks like.
type parser struct {
	state       parseState
	firstMarker int
	stride      int
	maxWidth    int
	frames      []Frame
}

func newParser(frameHeight int) *parser {
	p := &parser{}
	if frameHeight > 0 {
		p.stride = frameHeight + 1
	}
	return p
}

func (p *parser) current() *Frame {
	return &p.frames[len(p.frames)-1]
}

func (p *parser) openFrame(displayTime int) {
	p.frames = append(p.frames, Frame{DisplayTime: displayTime})
}

func (p *parser) addContent(line string) {
	f := p.current()
	f.Lines = append(f.Lines, line)
}

func (p *parser) feed(lineNum int, line string) error {
	// Every line counts towards the frame width, markers and lines before
	// the first marker included.
	if w := utf8.RuneCountInString(line); w > p.maxWidth {
		p.maxWidth = w
	}

	switch p.state {
	case seekingFirstMarker:
		if !isMarker(line) {
			return nil
		}
		dt, err := parseDisplayTime(lineNum, line)
		if err != nil {
			return err
		}
		p.firstMarker = lineNum
		p.openFrame(dt)
		if p.stride > 0 {
			p.state = streamingFrames
		} else {
			p.state = seekingSecondMarker
		}

	case seekingSecondMarker:
		if !isMarker(line) {
			p.addContent(line)
			return nil
		}
		dt, err := parseDisplayTime(lineNum, line)
		if err != nil {
			return err
		}
		p.stride = lineNum - p.firstMarker
		p.openFrame(dt)
		p.state = streamingFrames

	case streamingFrames:
		if (lineNum-p.firstMarker)%p.stride != 0 {
			p.addContent(line)
			return nil
		}
		marker := strings.TrimLeft(line, " \t")
		if !isMarker(marker) {
			return &ParseError{Line: lineNum + 1, Msg: fmt.Sprintf("expected duration marker, got %q", line)}
		}
		dt, err := parseDisplayTime(lineNum, marker)
		if err != nil {
			return err
		}
		p.openFrame(dt)
	}
	return nil
}

func (p *parser) finish() error {
	switch p.state {
	case seekingFirstMarker:
		return &ParseError{Msg: "no duration marker found"}
	case seekingSecondMarker:
		return &ParseError{Msg: "frame height undetectable: fewer than two duration markers"}
	}
	return nil
}

// parse reads all frames from r. Frame lines are right-trimmed but not yet
// padded. The returned geometry has detected frame dimensions filled in.
func parse(r io.Reader, g Geometry) ([]Frame, Geometry, error) {
	p := newParser(g.FrameHeight)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNum := 0
	for scanner.Scan() {
		line := strings.TrimRightFunc(scanner.Text(), unicode.IsSpace)
		if err := p.feed(lineNum, line); err != nil {
			return nil, g, err
		}
		lineNum++
	}
	if err := scanner.Err(); err != nil {
		return nil, g, &ParseError{Line: lineNum + 1, Msg: "read failed", Err: err}
	}
	if err := p.finish(); err != nil {
		return nil, g, err
	}

	if g.FrameHeight <= 0 {
		g.FrameHeight = p.stride - 1
	}
	if g.FrameWidth <= 0 {
		g.FrameWidth = p.maxWidth
	}

	// The last frame may be cut short by end of file.
	last := &p.frames[len(p.frames)-1]
	for len(last.Lines) < g.FrameHeight {
		last.Lines = append(last.Lines, "")
	}

	return p.frames, g, nil
}

// layout pads every content line to frameWidth and then shifts it right by
// leftMargin, so each line fully overwrites whatever the previous frame
// left on that row.
func layout(frames []Frame, frameWidth, leftMargin int) []Frame {
	total := leftMargin + frameWidth
	for i := range frames {
		for j, line := range frames[i].Lines {
			frames[i].Lines[j] = padLeft(padRight(line, frameWidth), total)
		}
	}
	return frames
}

func padRight(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func padLeft(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return strings.Repeat(" ", width-n) + s
}

func isMarker(line string) bool {
	if line == "" {
		return false
	}
	for i := 0; i < len(line); i++ {
		if line[i] < '0' || line[i] > '9' {
			return false
		}
	}
	return true
}

func parseDisplayTime(lineNum int, line string) (int, error) {
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, &ParseError{Line: lineNum + 1, Msg: fmt.Sprintf("invalid duration marker %q", line), Err: err}
	}
	if n < 1 {
		return 0, &ParseError{Line: lineNum + 1, Msg: fmt.Sprintf("duration marker must be at least 1, got %d", n)}
	}
	return n, nil
}
