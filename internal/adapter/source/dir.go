// Package source provides the table sources the pipeline reads from.
package source

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Dir serves tables from a directory tree.
type Dir struct {
	fsys fs.FS
}

// NewDir creates a source rooted at the local directory path.
func NewDir(path string) *Dir {
	return &Dir{fsys: os.DirFS(path)}
}

// NewFS creates a source over an arbitrary file system.
func NewFS(fsys fs.FS) *Dir {
	return &Dir{fsys: fsys}
}

// Open opens the named table. Names are slash-separated paths relative to
// the source root.
func (d *Dir) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("invalid table name %q", name)
	}
	return d.fsys.Open(name)
}
