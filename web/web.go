// Package web holds the signature builder page and its assets.
package web

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed public
var publicFiles embed.FS

// Public returns the static files. With an empty dir the files compiled into the binary are
// used, otherwise the directory on disk.
func Public(dir string) (fs.FS, error) {
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			return nil, &fs.PathError{Op: "open", Path: dir, Err: fs.ErrInvalid}
		}
		return os.DirFS(dir), nil
	}
	return fs.Sub(publicFiles, "public")
}
