package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// WriteTestFile writes content to a file at the given path relative to basePath.
// Creates parent directories as needed.
func WriteTestFile(t *testing.T, basePath, relativePath string, content []byte) string {
	t.Helper()

	fullPath := filepath.Join(basePath, relativePath)
	require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
	require.NoError(t, os.WriteFile(fullPath, content, 0o644))
	return fullPath
}

// WriteMovieFile writes a movie into a fresh temp directory and returns
// its path.
func WriteMovieFile(t *testing.T, content string) string {
	t.Helper()
	return WriteTestFile(t, t.TempDir(), "movie.txt", []byte(content))
}

// NoWait is a player wait function that only reports cancellation, so
// playback runs as fast as the sink accepts screens.
func NoWait(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
