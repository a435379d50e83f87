// Package web provides the embedded browser viewer for asciitel.
//
// The viewer is a single page that connects to /ws and feeds every binary
// message into an xterm.js terminal. During development, if dist/ exists
// on the filesystem, it is served instead of the embedded copy.
package web

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed dist/*
var assets embed.FS

// GetAssets returns a filesystem containing the viewer assets.
// If devPath (default "./web/dist") is a directory, the live filesystem is
// returned; otherwise the embedded assets are.
func GetAssets(devPath string) fs.FS {
	if devPath == "" {
		devPath = "./web/dist"
	}

	if stat, err := os.Stat(devPath); err == nil && stat.IsDir() {
		return os.DirFS(devPath)
	}

	// The assets FS has a "dist/" prefix
	subFS, err := fs.Sub(assets, "dist")
	if err != nil {
		// This should never happen with properly embedded assets
		panic("failed to access embedded web assets: " + err.Error())
	}
	return subFS
}

// GetAssetsWithBase returns the viewer assets, checking for development
// mode at web/dist below baseDir.
func GetAssetsWithBase(baseDir string) fs.FS {
	return GetAssets(filepath.Join(baseDir, "web", "dist"))
}
