// Package terminal adapts player output to the client side: it encodes
// screens into the configured character set and inspects the local
// terminal when playing to stdout.
package terminal

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// Supported output encodings.
const (
	EncodingUTF8     = "utf-8"
	EncodingLatin9   = "iso-8859-15"
	DefaultEncoding  = EncodingUTF8
	encodingAliasL9  = "latin9"
	encodingAliasUTF = "utf8"
)

// NormalizeEncoding returns the canonical name of an encoding, or an error
// if it is not supported.
func NormalizeEncoding(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", EncodingUTF8, encodingAliasUTF:
		return EncodingUTF8, nil
	case EncodingLatin9, encodingAliasL9:
		return EncodingLatin9, nil
	}
	return "", fmt.Errorf("unsupported encoding %q (want %s or %s)", name, EncodingUTF8, EncodingLatin9)
}

// NewEncodingWriter wraps w so that UTF-8 input is written in the named
// encoding. Characters the target cannot represent are replaced. Each Write
// is encoded whole and passed to w in a single call, so message based sinks
// receive one message per screen.
func NewEncodingWriter(w io.Writer, name string) (io.Writer, error) {
	canonical, err := NormalizeEncoding(name)
	if err != nil {
		return nil, err
	}
	if canonical == EncodingUTF8 {
		return w, nil
	}
	return &encodingWriter{
		w:   w,
		enc: encoding.ReplaceUnsupported(charmap.ISO8859_15.NewEncoder()),
	}, nil
}

type encodingWriter struct {
	w   io.Writer
	enc *encoding.Encoder
}

func (e *encodingWriter) Write(p []byte) (int, error) {
	out, err := e.enc.Bytes(p)
	if err != nil {
		return 0, fmt.Errorf("failed to encode output: %w", err)
	}
	if _, err := e.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Size returns the width and height of the terminal attached to f.
func Size(f *os.File) (width, height int, err error) {
	if !IsTerminal(f) {
		return 0, 0, fmt.Errorf("%s is not a terminal", f.Name())
	}
	width, height, err = term.GetSize(int(f.Fd()))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get terminal size: %w", err)
	}
	return width, height, nil
}
