// Package testutil provides shared test utilities for asciitel.
//
// # Fixtures
//
// The fixtures.go file provides sample movies:
//
//   - SampleMovie - three frames of a 4x3 stick figure, 15 ticks in total
//   - SampleMovieTicks, SampleMovieWidth, SampleMovieHeight - its dimensions
//   - TinyMovie - two single-line frames for fast network tests
//
// # Environment Helpers
//
// The env.go file provides test environment setup:
//
//   - WriteTestFile(t, base, path, content) - writes a file in a test dir
//   - WriteMovieFile(t, content) - writes a movie into a fresh temp dir
//   - NoWait - a player wait function that returns immediately
//
// # Timeouts
//
// The timeout.go file provides contexts bound to the test deadline:
//
//   - ContextWithTestDeadline(t, fallback)
//   - ShortOperationContext(t) - for network round trips in tests
//
// # Assertions
//
// The assertions.go file provides screen assertions:
//
//   - AssertClearsOnce(t, output) - exactly one clear-screen sequence
//   - AssertTimeBarAt(t, screen, width, marker) - time bar marker column
//   - ReadUntil(t, r, needle) - reads a stream until needle appears
package testutil
