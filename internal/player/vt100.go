package player

import (
	"fmt"

	"github.com/thruflo/asciitel/internal/logging"
)

// VT100 escape sequences used while streaming a movie.
const (
	Esc         = "\033"
	ClearScreen = Esc + "[2J" // Clear entire screen
	CursorHome  = Esc + "[H"  // Move cursor to upper left corner
	ClearDown   = Esc + "[J"  // Clear screen from cursor down
	LineEnd     = "\r\n"
)

// CursorTo returns the sequence that moves the cursor to column x, row y.
// Both are 1-indexed.
func CursorTo(x, y int) string {
	return fmt.Sprintf(Esc+"[%d;%dH", y, x)
}

// screenBounds validates cursor jumps against the movie's screen.
type screenBounds struct {
	width  int
	height int
	logger *logging.Logger
}

// jump returns CursorTo(x, y), or nothing when (x, y) is off screen. An
// off-screen jump is logged and otherwise ignored.
func (b screenBounds) jump(x, y int) string {
	if x <= 0 || x > b.width || y <= 0 || y > b.height {
		b.logger.Warn("coordinates out of range, cursor jump suppressed", "x", x, "y", y)
		return ""
	}
	return CursorTo(x, y)
}
