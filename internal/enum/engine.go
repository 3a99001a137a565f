// Package enum implements the Enumeration Engine (spec §4.2): the
// Start/Get/End directory-enumeration protocol, delivering a listing of
// arbitrary size across however many Get callbacks the kernel issues. The
// bounded cache-population poll reuses the avast/retry-go/v4 idiom the
// async bridge borrows from latentloop-latentfs/internal/util.Retry, here
// with retry.FixedDelay instead of the bridge's backoff since the spec
// calls for a flat 100 ms poll period.
package enum

import (
	"context"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"

	"github.com/wisptree/vprojfs/internal/bridge"
	"github.com/wisptree/vprojfs/internal/cache"
	"github.com/wisptree/vprojfs/internal/host/platform"
	"github.com/wisptree/vprojfs/internal/logicalfs"
	"github.com/wisptree/vprojfs/internal/objectstore"
	"github.com/wisptree/vprojfs/internal/telemetry"
	"github.com/wisptree/vprojfs/internal/vpath"
)

var log = telemetry.WithComponent("enum")

// MaxCallbacksPerSession bounds Get calls per session, breaking any
// kernel-side retry storm caused by a misbehaving pattern (spec §4.2
// "Safety").
const MaxCallbacksPerSession = 100

const (
	pollPeriod   = 100 * time.Millisecond
	pollDeadline = 5 * time.Second
)

type state int

const (
	stateFresh state = iota
	stateLoading
	stateReady
	stateExhausted
)

type session struct {
	path      string
	state     state
	entries   []logicalfs.DirEntry
	cursor    int
	callCount int
}

// Engine implements the three-callback enumeration protocol over a Content
// Cache, an Async Bridge, and the Object-Store Reader (spec §4.2).
type Engine struct {
	cache    *cache.Cache
	bridge   *bridge.Bridge
	objects  *objectstore.Reader
	provider platform.Provider

	mu       sync.Mutex
	cond     *sync.Cond
	sessions map[uuid.UUID]*session
}

// New builds an Enumeration Engine.
func New(c *cache.Cache, b *bridge.Bridge, objects *objectstore.Reader, provider platform.Provider) *Engine {
	e := &Engine{
		cache:    c,
		bridge:   b,
		objects:  objects,
		provider: provider,
		sessions: make(map[uuid.UUID]*session),
	}
	e.cond = sync.NewCond(&e.mu)
	return e
}

// Start creates a fresh enumeration session (spec §4.2 "FRESH on Start").
func (e *Engine) Start(sessionID uuid.UUID, path string) platform.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions[sessionID] = &session{path: vpath.Normalize(path), state: stateFresh}
	return platform.StatusOK
}

// End destroys a session (spec §4.2 "End removes the session").
func (e *Engine) End(sessionID uuid.UUID) platform.Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.sessions, sessionID)
	return platform.StatusOK
}

// Get delivers as many matching entries as fit in w, starting at the
// session's cursor (spec §4.2 "Paging").
func (e *Engine) Get(sessionID uuid.UUID, pattern string, restartScan bool, w platform.DirEntryWriter) platform.Status {
	e.mu.Lock()
	s, ok := e.sessions[sessionID]
	if !ok {
		e.mu.Unlock()
		return platform.StatusInvalid
	}

	if restartScan {
		s.state = stateFresh
		s.cursor = 0
		s.entries = nil
	}

	s.callCount++
	if s.callCount > MaxCallbacksPerSession {
		log.WithField("session", sessionID).Warn("enumeration session exceeded call ceiling, stopping early")
		e.mu.Unlock()
		return platform.StatusOK
	}

	if s.state == stateFresh {
		s.state = stateLoading
		path := s.path
		e.mu.Unlock()

		entries, err := e.load(path)

		e.mu.Lock()
		// The session may have been restarted or torn down while we were
		// loading; only apply the result if it is still the one waiting.
		if cur, ok := e.sessions[sessionID]; ok && cur == s && s.state == stateLoading {
			if err != nil {
				log.WithField("path", path).WithError(err).Debug("listing load failed")
				s.entries = nil
			} else {
				s.entries = entries
			}
			s.state = stateReady
			e.cond.Broadcast()
		}
	}

	for s.state == stateLoading {
		e.cond.Wait()
		if _, ok := e.sessions[sessionID]; !ok {
			e.mu.Unlock()
			return platform.StatusInvalid
		}
	}

	status := e.page(s, pattern, w)
	e.mu.Unlock()
	return status
}

// load resolves the listing for path from the cache, the object store, or
// the async bridge (spec §4.2 "Loading").
func (e *Engine) load(path string) ([]logicalfs.DirEntry, error) {
	if entries, ok := e.cache.GetListing(path); ok {
		return entries, nil
	}
	if hash, member, ok := objectstore.ParseHash(path); ok && member == "" {
		children, err := e.objects.ListDirectory(hash)
		if err != nil {
			return nil, err
		}
		return logicalfs.CanonicalizeChildren(children), nil
	}

	e.bridge.FetchListing(path)

	ctx, cancel := context.WithTimeout(context.Background(), pollDeadline)
	defer cancel()

	return retry.DoWithData(func() ([]logicalfs.DirEntry, error) {
		if entries, ok := e.cache.GetListing(path); ok {
			return entries, nil
		}
		return nil, logicalfs.ErrNotFound
	},
		retry.Context(ctx),
		retry.Attempts(0), // unbounded attempts; ctx deadline governs.
		retry.Delay(pollPeriod),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

// page writes entries from cursor forward until the buffer is full, an
// unrecoverable per-entry error occurs, or the list is exhausted (spec
// §4.2 "Paging").
func (e *Engine) page(s *session, pattern string, w platform.DirEntryWriter) platform.Status {
	for s.cursor < len(s.entries) {
		entry := s.entries[s.cursor]
		if entry.Name == "" {
			s.cursor++
			continue
		}
		if pattern != "" && !e.provider.FileNameMatch(entry.Name, pattern) {
			s.cursor++
			continue
		}

		info := platform.FileInfo{
			Name:        entry.Name,
			Hash:        entry.Hash,
			SizeBytes:   entry.SizeBytes,
			IsDirectory: entry.IsDirectory,
			Mode:        uint32(entry.Mode),
		}
		ok, err := w.WriteEntry(info)
		if !ok && err == nil {
			// Buffer full: retry this entry on the next Get without
			// advancing the cursor.
			return platform.StatusOK
		}
		if err != nil {
			log.WithField("name", entry.Name).WithError(err).Warn("skipping directory entry after write error")
		}
		s.cursor++
	}
	s.state = stateExhausted
	return platform.StatusOK
}
