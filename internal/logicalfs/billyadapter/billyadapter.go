// Package billyadapter adapts a github.com/go-git/go-billy/v5 Filesystem
// into a logicalfs.Filesystem, letting the provider project any billy
// backend (an in-memory tree in tests, a git worktree, ...) without a
// bespoke adapter per backend.
package billyadapter

import (
	"context"
	"io"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/wisptree/vprojfs/internal/logicalfs"
)

type adapter struct {
	fs billy.Filesystem
}

// New wraps a billy.Filesystem as a logicalfs.Filesystem.
func New(fs billy.Filesystem) logicalfs.Filesystem {
	return &adapter{fs: fs}
}

func toBillyPath(path string) string {
	if path == "/" {
		return "."
	}
	return strings.TrimPrefix(path, "/")
}

func (a *adapter) Stat(_ context.Context, path string) (logicalfs.Info, error) {
	fi, err := a.fs.Stat(toBillyPath(path))
	if err != nil {
		return logicalfs.Info{}, logicalfs.ErrNotFound
	}
	return logicalfs.Info{
		SizeBytes:   uint64(fi.Size()),
		IsDirectory: fi.IsDir(),
		Mode:        fi.Mode(),
	}, nil
}

func (a *adapter) ReadDir(_ context.Context, path string) ([]logicalfs.Child, error) {
	entries, err := a.fs.ReadDir(toBillyPath(path))
	if err != nil {
		return nil, logicalfs.ErrNotFound
	}
	children := make([]logicalfs.Child, 0, len(entries))
	for _, e := range entries {
		children = append(children, logicalfs.DirEntry{
			Name:             e.Name(),
			IsDirectory:      e.IsDir(),
			IsDirectoryKnown: true,
			Mode:             e.Mode(),
			SizeBytes:        uint64(e.Size()),
			HasSizeBytes:     true,
		})
	}
	return children, nil
}

func (a *adapter) ReadFile(_ context.Context, path string) ([]byte, error) {
	f, err := a.fs.Open(toBillyPath(path))
	if err != nil {
		return nil, logicalfs.ErrNotFound
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (a *adapter) WriteFile(_ context.Context, path string, data []byte) error {
	f, err := a.fs.Create(toBillyPath(path))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}
