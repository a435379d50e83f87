package terminal

import (
	"context"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Cursor visibility sequences.
const (
	CursorHide = "\033[?25l"
	CursorShow = "\033[?25h"
)

// Key is a keypress that controls local playback.
type Key int

const (
	KeyOther Key = iota
	KeyQuit
	KeyInterrupt
)

// ClassifyKey maps a raw input byte to a Key. Only single bytes matter
// here; escape sequences fall through as KeyOther.
func ClassifyKey(b byte) Key {
	switch b {
	case 'q', 'Q', 0x1b:
		return KeyQuit
	case 0x03, 0x04: // Ctrl+C, Ctrl+D
		return KeyInterrupt
	}
	return KeyOther
}

// Console is the local terminal during `play`: raw input so single
// keypresses arrive immediately, and a hidden cursor while frames draw.
type Console struct {
	in       *os.File
	out      io.Writer
	oldState *term.State
	isRaw    bool
}

// NewConsole creates a Console that reads from in and writes to out.
func NewConsole(in *os.File, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

// EnterRaw puts the input terminal into raw mode and hides the cursor.
func (c *Console) EnterRaw() error {
	if c.isRaw {
		return fmt.Errorf("terminal already in raw mode")
	}

	oldState, err := term.MakeRaw(int(c.in.Fd()))
	if err != nil {
		return fmt.Errorf("failed to enter raw mode: %w", err)
	}

	c.oldState = oldState
	c.isRaw = true
	fmt.Fprint(c.out, CursorHide)
	return nil
}

// ExitRaw shows the cursor and restores the terminal to its original
// state. Safe to call even if not in raw mode.
func (c *Console) ExitRaw() error {
	if !c.isRaw || c.oldState == nil {
		return nil
	}

	fmt.Fprint(c.out, CursorShow+"\r\n")
	if err := term.Restore(int(c.in.Fd()), c.oldState); err != nil {
		return fmt.Errorf("failed to restore terminal: %w", err)
	}

	c.isRaw = false
	c.oldState = nil
	return nil
}

// IsRaw returns true if the terminal is in raw mode.
func (c *Console) IsRaw() bool {
	return c.isRaw
}

// WatchKeys reads r until ctx is done or r fails, and reports quit and
// interrupt keys. The returned channel is closed when watching ends.
// A read that is blocked when ctx ends is left behind.
func WatchKeys(ctx context.Context, r io.Reader) <-chan Key {
	keys := make(chan Key, 1)
	go func() {
		defer close(keys)
		buf := make([]byte, 32)
		for {
			n, err := r.Read(buf)
			for _, b := range buf[:n] {
				key := ClassifyKey(b)
				if key == KeyOther {
					continue
				}
				select {
				case keys <- key:
				case <-ctx.Done():
					return
				}
			}
			if err != nil || ctx.Err() != nil {
				return
			}
		}
	}()
	return keys
}
