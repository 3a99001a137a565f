// Package logicalfs defines the outbound interface (spec §6.2) the core
// consumes: a small, asynchronous-in-spirit but synchronously-called
// filesystem the Async Bridge invokes on the host event loop.
package logicalfs

import (
	"context"
	"errors"
	"io/fs"

	"github.com/wisptree/vprojfs/internal/vpath"
)

// ErrNotFound is returned by Stat, ReadDir and ReadFile when the requested
// path does not exist in the logical filesystem.
var ErrNotFound = errors.New("logicalfs: not found")

// Info describes the metadata of a single logical filesystem entry, as
// returned by Stat.
type Info struct {
	SizeBytes   uint64
	IsDirectory bool
	Mode        fs.FileMode
	Hash        string
}

// DirEntry describes a single child of a directory, as returned (after
// canonicalization, see CanonicalizeChild) by ReadDir.
type DirEntry struct {
	Name        string
	IsDirectory bool
	// IsDirectoryKnown is false when the backing Child did not report an
	// IsDirectory flag explicitly; the ingest path then falls back to
	// Mode's directory bit (spec §6.2).
	IsDirectoryKnown bool
	Mode             fs.FileMode
	Hash             string
	SizeBytes        uint64
	HasSizeBytes     bool
}

// resolvedIsDirectory returns the effective directory flag, falling back to
// the POSIX directory mode bit when the flag was not explicitly supplied.
func (e DirEntry) resolvedIsDirectory() bool {
	if e.IsDirectoryKnown {
		return e.IsDirectory
	}
	return e.Mode&fs.ModeDir != 0
}

// Child is a single element of the slice returned by Filesystem.ReadDir. It
// may be a bare string (base name) or a DirEntry / *DirEntry carrying
// richer metadata; CanonicalizeChild normalizes either shape.
type Child any

// Filesystem is the logical filesystem the core consumes. Implementations
// are expected to be safe to call concurrently only insofar as the Async
// Bridge serializes calls onto a single host event loop goroutine; the core
// itself never calls Filesystem methods from more than one goroutine at a
// time.
type Filesystem interface {
	Stat(ctx context.Context, path string) (Info, error)
	ReadDir(ctx context.Context, path string) ([]Child, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	// WriteFile is exposed for interface completeness (spec §6.2) but is
	// never called by the core: the projection is read-only.
	WriteFile(ctx context.Context, path string, data []byte) error
}

// CanonicalizeChild normalizes a raw Child value into a sanitized DirEntry.
// It returns ok=false for children the Enumeration Engine's ingest path
// must silently drop: empty names, and names containing a path separator
// (spec §4.2 edge cases).
func CanonicalizeChild(c Child) (DirEntry, bool) {
	var entry DirEntry
	switch v := c.(type) {
	case string:
		entry = DirEntry{Name: v}
	case DirEntry:
		entry = v
	case *DirEntry:
		if v == nil {
			return DirEntry{}, false
		}
		entry = *v
	default:
		return DirEntry{}, false
	}
	if !vpath.IsValidName(entry.Name) {
		return DirEntry{}, false
	}
	entry.IsDirectory = entry.resolvedIsDirectory()
	entry.IsDirectoryKnown = true
	return entry, true
}

// CanonicalizeChildren applies CanonicalizeChild to every element, dropping
// invalid entries and de-duplicating by name (first occurrence wins),
// preserving order (spec §3 "Directory listing": unique names, stable
// order).
func CanonicalizeChildren(children []Child) []DirEntry {
	out := make([]DirEntry, 0, len(children))
	seen := make(map[string]struct{}, len(children))
	for _, c := range children {
		entry, ok := CanonicalizeChild(c)
		if !ok {
			continue
		}
		if _, dup := seen[entry.Name]; dup {
			continue
		}
		seen[entry.Name] = struct{}{}
		out = append(out, entry)
	}
	return out
}
