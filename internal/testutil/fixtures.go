package testutil

// SampleMovie is a three frame movie with a detected frame size of 4x3.
// The frames stay on screen for 5, 7 and 3 ticks.
const SampleMovie = `5
  o
 /|\
 / \
7
 \o/
  |
 / \
3
  o/
 /|
 / \
`

// Dimensions of SampleMovie.
const (
	SampleMovieTicks  = 15
	SampleMovieWidth  = 4
	SampleMovieHeight = 3
	SampleMovieFrames = 3
)

// TinyMovie has two one-line frames of one tick each.
const TinyMovie = "1\nhello\n1\nworld\n"
