// Package cache implements the Content Cache: three TTL-bounded, keyed
// stores serving as the synchronous-response buffer between the kernel
// callbacks and the logical filesystem. It is grounded on
// github.com/hashicorp/golang-lru/v2's expirable.LRU (the pack's only
// off-the-shelf TTL cache) with stats counters registered as
// Prometheus metrics, following the package-level counter +
// sync.Once-registration idiom in the teacher's
// pkg/blobstore/blob_access_mutable_proto_store.go.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wisptree/vprojfs/internal/logicalfs"
	"github.com/wisptree/vprojfs/internal/vpath"
)

// ContentSizeThreshold bounds retained file bodies (spec §4.5, §3).
const ContentSizeThreshold = 1 << 20 // 1 MiB

// capacity bounds the number of entries per store; the LRU eviction it
// implies is a memory backstop on top of the TTL sweep the spec describes.
const capacity = 65536

var registerMetricsOnce sync.Once

var (
	cacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vprojfs",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Number of Content Cache lookups that returned a live entry, by store.",
		},
		[]string{"store"},
	)
	cacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vprojfs",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Number of Content Cache lookups that found no live entry, by store.",
		},
		[]string{"store"},
	)
)

func registerMetrics() {
	registerMetricsOnce.Do(func() {
		prometheus.MustRegister(cacheHitsTotal)
		prometheus.MustRegister(cacheMissesTotal)
	})
}

type infoEntry struct {
	info logicalfs.Info
	at   time.Time
}

type listingEntry struct {
	listing []logicalfs.DirEntry
	at      time.Time
}

type contentEntry struct {
	data []byte
	hash string
	at   time.Time
}

// Stats is a point-in-time snapshot of the cache's running counters (spec
// §4.5 "stats()").
type Stats struct {
	Hits         uint64
	Misses       uint64
	InfoEntries  int
	ListEntries  int
	ContEntries  int
	ContentBytes uint64
}

// Cache is the thread-safe Content Cache (spec §4.5).
type Cache struct {
	mu  sync.RWMutex
	ttl time.Duration

	info    *lru.LRU[string, infoEntry]
	listing *lru.LRU[string, listingEntry]
	content *lru.LRU[string, contentEntry]
	hits    uint64
	misses  uint64

	// byteMu guards contByte independently of mu: the content store's
	// onEvict callback fires synchronously from within Add and Remove, which
	// SetContent and Invalidate call while already holding mu.
	byteMu   sync.Mutex
	contByte uint64
}

// New builds a Content Cache with the given initial liveness window.
func New(ttl time.Duration) *Cache {
	registerMetrics()
	c := &Cache{
		ttl:     ttl,
		info:    lru.NewLRU[string, infoEntry](capacity, nil, ttl),
		listing: lru.NewLRU[string, listingEntry](capacity, nil, ttl),
	}
	// onEvict fires whenever the content store drops an entry (capacity
	// pressure, TTL sweep, Remove or Purge), so contByte stays a live
	// estimate of retained bytes rather than a counter that only ever grows.
	// Overwriting an existing key with Add does not fire it.
	c.content = lru.NewLRU[string, contentEntry](capacity, func(_ string, e contentEntry) {
		c.byteMu.Lock()
		c.contByte -= uint64(len(e.data))
		c.byteMu.Unlock()
	}, ttl)
	return c
}

func (c *Cache) addContentBytes(n uint64) {
	c.byteMu.Lock()
	c.contByte += n
	c.byteMu.Unlock()
}

func (c *Cache) subContentBytes(n uint64) {
	c.byteMu.Lock()
	c.contByte -= n
	c.byteMu.Unlock()
}

func (c *Cache) contentBytes() uint64 {
	c.byteMu.Lock()
	defer c.byteMu.Unlock()
	return c.contByte
}

func (c *Cache) live(at time.Time) bool {
	return time.Since(at) < c.ttl
}

// SetInfo records file info for path (spec §4.5 "set_info").
func (c *Cache) SetInfo(path string, info logicalfs.Info) {
	path = vpath.Normalize(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info.Add(path, infoEntry{info: info, at: time.Now()})
}

// GetInfo looks up file info for path (spec §4.5 "get_info").
func (c *Cache) GetInfo(path string) (logicalfs.Info, bool) {
	path = vpath.Normalize(path)
	c.mu.RLock()
	e, ok := c.info.Get(path)
	c.mu.RUnlock()
	if !ok || !c.live(e.at) {
		c.recordMiss("info")
		return logicalfs.Info{}, false
	}
	c.recordHit("info")
	return e.info, true
}

// SetListing records a directory listing for path atomically (spec §4.5
// "set_listing").
func (c *Cache) SetListing(path string, listing []logicalfs.DirEntry) {
	path = vpath.Normalize(path)
	snapshot := make([]logicalfs.DirEntry, len(listing))
	copy(snapshot, listing)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listing.Add(path, listingEntry{listing: snapshot, at: time.Now()})
}

// GetListing looks up the directory listing for path.
func (c *Cache) GetListing(path string) ([]logicalfs.DirEntry, bool) {
	path = vpath.Normalize(path)
	c.mu.RLock()
	e, ok := c.listing.Get(path)
	c.mu.RUnlock()
	if !ok || !c.live(e.at) {
		c.recordMiss("listing")
		return nil, false
	}
	c.recordHit("listing")
	return e.listing, true
}

// SetContent records file content for path if it does not exceed
// ContentSizeThreshold; oversized writes are silently ignored (spec §4.5
// "set_content").
func (c *Cache) SetContent(path, hash string, data []byte) {
	if len(data) > ContentSizeThreshold {
		return
	}
	path = vpath.Normalize(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.content.Peek(path); ok {
		c.subContentBytes(uint64(len(old.data)))
	}
	c.content.Add(path, contentEntry{data: data, hash: hash, at: time.Now()})
	c.addContentBytes(uint64(len(data)))
}

// GetContent looks up cached file content for path.
func (c *Cache) GetContent(path string) ([]byte, string, bool) {
	path = vpath.Normalize(path)
	c.mu.RLock()
	e, ok := c.content.Get(path)
	c.mu.RUnlock()
	if !ok || !c.live(e.at) {
		c.recordMiss("content")
		return nil, "", false
	}
	c.recordHit("content")
	return e.data, e.hash, true
}

// Invalidate removes path from all three stores and also drops the cached
// listing of its parent (spec §4.5, §3 invariant on parent-listing
// invalidation).
func (c *Cache) Invalidate(path string) {
	path = vpath.Normalize(path)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info.Remove(path)
	c.listing.Remove(path)
	// Remove invokes the content store's onEvict, which subtracts the
	// removed entry's size from contByte.
	c.content.Remove(path)
	c.listing.Remove(vpath.Parent(path))
}

// InvalidateAll clears every store.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info.Purge()
	c.listing.Purge()
	c.content.Purge()
	c.byteMu.Lock()
	c.contByte = 0
	c.byteMu.Unlock()
}

// SetTTL changes the liveness window applied to subsequent reads (spec
// §4.5 "set_ttl"). The underlying LRU stores keep their original
// construction-time TTL as a hard eviction bound and every write uses that
// store's fixed lifetime, so this reliably shortens the effective window
// (c.live checks reject stale-but-present entries sooner) but cannot
// lengthen it in practice: entries written under the old, shorter TTL are
// still physically swept from the store at that original deadline, before
// an extended window would have let them live on.
func (c *Cache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// Stats returns a snapshot of running counters (spec §4.5 "stats()").
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Hits:         c.hits,
		Misses:       c.misses,
		InfoEntries:  c.info.Len(),
		ListEntries:  c.listing.Len(),
		ContEntries:  c.content.Len(),
		ContentBytes: c.contentBytes(),
	}
}

func (c *Cache) recordHit(store string) {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	cacheHitsTotal.WithLabelValues(store).Inc()
}

func (c *Cache) recordMiss(store string) {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	cacheMissesTotal.WithLabelValues(store).Inc()
}
