// Package bridge implements the Async Bridge (spec §4.6): the only
// component that crosses from the ProjFS kernel-callback thread pool into
// the host-language logical filesystem. Its retry policy for transient
// logical-filesystem failures is grounded on
// latentloop-latentfs/internal/util.Retry's avast/retry-go/v4 usage
// (bounded attempts, exponential backoff capped at maxDelay,
// context-cancelable).
package bridge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/wisptree/vprojfs/internal/cache"
	"github.com/wisptree/vprojfs/internal/logicalfs"
	"github.com/wisptree/vprojfs/internal/telemetry"
	"github.com/wisptree/vprojfs/internal/vpath"
)

var log = telemetry.WithComponent("bridge")

const (
	maxAttempts = 3
	baseDelay   = 50 * time.Millisecond
	maxDelay    = 500 * time.Millisecond
)

func retryOptions(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Attempts(maxAttempts),
		retry.Delay(baseDelay),
		retry.MaxDelay(maxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
	}
}

type jobKind int

const (
	jobFetchInfo jobKind = iota
	jobFetchListing
	jobFetchContent
)

type job struct {
	kind jobKind
	path string
}

// Bridge marshals cache-miss fetches from the kernel callback threads onto
// a single cooperative worker goroutine standing in for the host event
// loop (spec §4.6 "Scheduling model").
type Bridge struct {
	fs    logicalfs.Filesystem
	cache *cache.Cache

	onListingUpdated func(path string)
	onContentReady   func(path string)

	queue  chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// New builds an Async Bridge over fs and c. onListingUpdated is invoked
// (off the calling goroutine) whenever a listing fetch resolves;
// onContentReady is invoked whenever a content fetch resolves. Either may
// be nil.
func New(fs logicalfs.Filesystem, c *cache.Cache, onListingUpdated, onContentReady func(path string)) *Bridge {
	return &Bridge{
		fs:               fs,
		cache:            c,
		onListingUpdated: onListingUpdated,
		onContentReady:   onContentReady,
		queue:            make(chan job, 4096),
	}
}

// Start launches the single worker goroutine. Idempotent.
func (b *Bridge) Start() {
	b.mu.Lock()
	if b.ctx != nil {
		b.mu.Unlock()
		return
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.stopped = false
	b.mu.Unlock()

	b.wg.Add(1)
	go b.run()
}

// Stop rejects new fetches immediately and lets any in-flight fetch finish,
// but discards its result (spec §4.6 "Cancellation").
func (b *Bridge) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	b.wg.Wait()
}

func (b *Bridge) accepting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.stopped
}

// FetchInfo schedules a Stat call. Non-blocking; safe from any goroutine.
func (b *Bridge) FetchInfo(path string) {
	b.enqueue(job{kind: jobFetchInfo, path: vpath.Normalize(path)})
}

// FetchListing schedules a ReadDir call.
func (b *Bridge) FetchListing(path string) {
	b.enqueue(job{kind: jobFetchListing, path: vpath.Normalize(path)})
}

// FetchContent schedules a ReadFile call.
func (b *Bridge) FetchContent(path string) {
	b.enqueue(job{kind: jobFetchContent, path: vpath.Normalize(path)})
}

func (b *Bridge) enqueue(j job) {
	if !b.accepting() {
		return
	}
	select {
	case b.queue <- j:
	default:
		log.WithField("path", j.path).Warn("async bridge queue full, dropping fetch")
	}
}

func (b *Bridge) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case j := <-b.queue:
			b.process(j)
		}
	}
}

func (b *Bridge) process(j job) {
	switch j.kind {
	case jobFetchInfo:
		b.fetchInfo(j.path)
	case jobFetchListing:
		b.fetchListing(j.path)
	case jobFetchContent:
		b.fetchContent(j.path)
	}
}

func (b *Bridge) fetchInfo(path string) {
	info, err := retry.DoWithData(func() (logicalfs.Info, error) {
		return b.fs.Stat(b.ctx, path)
	}, retryOptions(b.ctx)...)
	if !b.accepting() {
		return
	}
	if err != nil {
		log.WithField("path", path).WithError(err).Debug("stat fetch failed")
		return
	}
	b.cache.SetInfo(path, info)
}

func (b *Bridge) fetchListing(path string) {
	children, err := retry.DoWithData(func() ([]logicalfs.Child, error) {
		return b.fs.ReadDir(b.ctx, path)
	}, retryOptions(b.ctx)...)
	if !b.accepting() {
		return
	}
	if err != nil {
		log.WithField("path", path).WithError(err).Debug("listing fetch failed")
		return
	}
	b.cache.SetListing(path, logicalfs.CanonicalizeChildren(children))
	if b.onListingUpdated != nil {
		b.onListingUpdated(path)
	}
}

func (b *Bridge) fetchContent(path string) {
	data, err := retry.DoWithData(func() ([]byte, error) {
		return b.fs.ReadFile(b.ctx, path)
	}, retryOptions(b.ctx)...)
	if !b.accepting() {
		return
	}
	if err != nil {
		log.WithField("path", path).WithError(err).Debug("content fetch failed")
		return
	}
	sum := sha256.Sum256(data)
	b.cache.SetContent(path, hex.EncodeToString(sum[:]), data)
	if b.onContentReady != nil {
		b.onContentReady(path)
	}
}
