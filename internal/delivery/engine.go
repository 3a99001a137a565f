// Package delivery implements the Data Delivery Engine (spec §4.4): serve
// file bytes synchronously from cache or the object store, or suspend a
// cache-miss request and resume it once the Async Bridge's fetch lands.
package delivery

import (
	"sync"

	"github.com/wisptree/vprojfs/internal/bridge"
	"github.com/wisptree/vprojfs/internal/cache"
	"github.com/wisptree/vprojfs/internal/host/platform"
	"github.com/wisptree/vprojfs/internal/objectstore"
	"github.com/wisptree/vprojfs/internal/telemetry"
	"github.com/wisptree/vprojfs/internal/vpath"
)

var log = telemetry.WithComponent("delivery")

// Engine serves GetFileData requests, either immediately or by deferred
// completion (spec §4.4).
type Engine struct {
	cache    *cache.Cache
	bridge   *bridge.Bridge
	objects  *objectstore.Reader
	provider platform.Provider

	mu       sync.Mutex
	instance platform.Instance
	pending  map[int32]platform.PendingRequest
}

// New builds a Data Delivery Engine. SetInstance must be called once the
// Virtualization Host has an active platform.Instance before any Serve
// call can complete deferred requests.
func New(c *cache.Cache, b *bridge.Bridge, objects *objectstore.Reader, provider platform.Provider) *Engine {
	return &Engine{
		cache:    c,
		bridge:   b,
		objects:  objects,
		provider: provider,
		pending:  make(map[int32]platform.PendingRequest),
	}
}

// SetInstance binds the running virtualization context this engine writes
// completions through.
func (e *Engine) SetInstance(instance platform.Instance) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.instance = instance
}

// Serve implements the synchronous and deferred GetFileData paths (spec
// §4.4).
func (e *Engine) Serve(rawPath string, commandID int32, offset, length uint64, handle platform.FileHandle) platform.Status {
	path := vpath.Normalize(rawPath)

	if hash, member, ok := objectstore.ParseHash(path); ok && member != "" {
		data, err := e.objects.ReadMember(hash, member)
		if err != nil {
			return platform.StatusNotFound
		}
		return e.writeWindow(handle, commandID, offset, length, data)
	}

	if data, _, ok := e.cache.GetContent(path); ok {
		return e.writeWindow(handle, commandID, offset, length, data)
	}

	e.mu.Lock()
	e.pending[commandID] = platform.PendingRequest{
		CommandID: commandID,
		Path:      path,
		Offset:    offset,
		Length:    uint32(length),
		Handle:    handle,
	}
	e.mu.Unlock()

	e.bridge.FetchContent(path)
	return platform.StatusIoPending
}

// CompletePending drives every pending request for path to completion once
// content for path has been cached (spec §4.4 "Completion", called from
// the Virtualization Host's complete_pending).
func (e *Engine) CompletePending(rawPath string) {
	path := vpath.Normalize(rawPath)

	e.mu.Lock()
	var matched []platform.PendingRequest
	for id, req := range e.pending {
		if req.Path == path {
			matched = append(matched, req)
			delete(e.pending, id)
		}
	}
	instance := e.instance
	e.mu.Unlock()

	if instance == nil {
		return
	}

	data, _, ok := e.cache.GetContent(path)
	for _, req := range matched {
		if !ok {
			if err := instance.CompleteCommand(req.CommandID, platform.StatusNotFound); err != nil {
				log.WithField("path", path).WithError(err).Warn("failed to complete not-found command")
			}
			continue
		}
		e.completeOne(instance, req, data)
	}
}

func (e *Engine) completeOne(instance platform.Instance, req platform.PendingRequest, data []byte) {
	if req.Offset >= uint64(len(data)) {
		if err := instance.CompleteCommand(req.CommandID, platform.StatusOK); err != nil {
			log.WithField("path", req.Path).WithError(err).Warn("failed to complete end-of-file command")
		}
		return
	}

	status := e.writeWindow(req.Handle, req.CommandID, req.Offset, uint64(req.Length), data)
	if err := instance.CompleteCommand(req.CommandID, status); err != nil {
		log.WithField("path", req.Path).WithError(err).Warn("failed to complete data command")
	}
}

// writeWindow clips [offset, offset+length) against data, copies it into an
// aligned buffer, and writes it through the platform's data-write API
// (spec §4.4 "Synchronous path").
func (e *Engine) writeWindow(handle platform.FileHandle, commandID int32, offset, length uint64, data []byte) platform.Status {
	if offset >= uint64(len(data)) {
		return platform.StatusOK
	}
	end := offset + length
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	window := data[offset:end]
	if len(window) == 0 {
		return platform.StatusOK
	}

	buf, release, err := e.provider.AllocateAlignedBuffer(len(window))
	if err != nil {
		return platform.StatusOutOfMemory
	}
	defer release()
	copy(buf, window)

	e.mu.Lock()
	instance := e.instance
	e.mu.Unlock()
	if instance == nil {
		return platform.StatusPlatformError
	}
	if err := instance.WriteFileData(handle, commandID, buf, offset); err != nil {
		return platform.StatusPlatformError
	}
	return platform.StatusOK
}
