// Package placeholder implements the Placeholder Resolver (spec §4.3):
// GetPlaceholderInfo, on the kernel's synchronous critical path, must never
// suspend, so a cache miss ends in an async fetch and an immediate
// not-found instead of a deferred completion.
package placeholder

import (
	"time"

	"github.com/wisptree/vprojfs/internal/bridge"
	"github.com/wisptree/vprojfs/internal/cache"
	"github.com/wisptree/vprojfs/internal/host/platform"
	"github.com/wisptree/vprojfs/internal/logicalfs"
	"github.com/wisptree/vprojfs/internal/objectstore"
	"github.com/wisptree/vprojfs/internal/vpath"
)

// Resolver answers "does this path exist, and with what metadata" (spec
// §4.3).
type Resolver struct {
	cache   *cache.Cache
	bridge  *bridge.Bridge
	objects *objectstore.Reader
}

// New builds a Placeholder Resolver.
func New(c *cache.Cache, b *bridge.Bridge, objects *objectstore.Reader) *Resolver {
	return &Resolver{cache: c, bridge: b, objects: objects}
}

// Resolve implements the five-step resolution order (spec §4.3).
func (r *Resolver) Resolve(rawPath string) (platform.FileInfo, platform.Status) {
	path := vpath.Normalize(rawPath)

	// Step 1: root-level single-segment mount points.
	if seg := vpath.Segments(path); len(seg) == 1 {
		if root, ok := r.cache.GetListing(vpath.Root); ok {
			for _, entry := range root {
				if entry.Name == seg[0] && entry.IsDirectory {
					return fileInfoFromEntry(entry), platform.StatusOK
				}
			}
		}
	}

	// Step 2: per-path file-info cache.
	if info, ok := r.cache.GetInfo(path); ok {
		return fileInfoFromLogical(vpath.Base(path), info), platform.StatusOK
	}

	// Step 3: parent's cached listing.
	parent := vpath.Parent(path)
	if listing, ok := r.cache.GetListing(parent); ok {
		name := vpath.Base(path)
		for _, entry := range listing {
			if entry.Name == name {
				return fileInfoFromEntry(entry), platform.StatusOK
			}
		}
	}

	// Step 4: object-store namespace.
	if hash, member, ok := objectstore.ParseHash(path); ok {
		if member == "" {
			if r.objects.Exists(hash) {
				return platform.FileInfo{Name: vpath.Base(path), IsDirectory: true, ModTime: time.Now()}, platform.StatusOK
			}
			return platform.FileInfo{}, platform.StatusNotFound
		}
		if info, err := r.objects.StatMember(hash, member); err == nil {
			return platform.FileInfo{
				Name:       member,
				SizeBytes:  info.SizeBytes,
				BlobDirect: true,
				ModTime:    time.Now(),
			}, platform.StatusOK
		}
		return platform.FileInfo{}, platform.StatusNotFound
	}

	// Step 5: fire-and-forget async fetch; never suspend this call.
	r.bridge.FetchInfo(path)
	return platform.FileInfo{}, platform.StatusNotFound
}

func fileInfoFromEntry(entry logicalfs.DirEntry) platform.FileInfo {
	return platform.FileInfo{
		Name:        entry.Name,
		Hash:        entry.Hash,
		SizeBytes:   entry.SizeBytes,
		IsDirectory: entry.IsDirectory,
		Mode:        uint32(entry.Mode),
		ModTime:     time.Now(),
	}
}

func fileInfoFromLogical(name string, info logicalfs.Info) platform.FileInfo {
	return platform.FileInfo{
		Name:        name,
		Hash:        info.Hash,
		SizeBytes:   info.SizeBytes,
		IsDirectory: info.IsDirectory,
		Mode:        uint32(info.Mode),
		ModTime:     time.Now(),
	}
}
