package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wisptree/vprojfs/internal/logicalfs"
)

func TestSetGetInfoRoundTrip(t *testing.T) {
	c := New(time.Minute)
	c.SetInfo("/invites/iom_invite.txt", logicalfs.Info{SizeBytes: 3})
	info, ok := c.GetInfo("/invites/iom_invite.txt")
	require.True(t, ok)
	require.Equal(t, uint64(3), info.SizeBytes)

	_, ok = c.GetInfo("/missing")
	require.False(t, ok)
}

func TestGetInfoExpires(t *testing.T) {
	c := New(time.Millisecond)
	c.SetInfo("/x", logicalfs.Info{SizeBytes: 1})
	time.Sleep(5 * time.Millisecond)
	_, ok := c.GetInfo("/x")
	require.False(t, ok)
}

func TestSetContentAboveThresholdIgnored(t *testing.T) {
	c := New(time.Minute)
	c.SetContent("/big", "hash", make([]byte, ContentSizeThreshold+1))
	_, _, ok := c.GetContent("/big")
	require.False(t, ok)
}

func TestInvalidateDropsParentListing(t *testing.T) {
	c := New(time.Minute)
	c.SetListing("/invites", []logicalfs.DirEntry{{Name: "iom_invite.txt"}})
	c.SetInfo("/invites/iom_invite.txt", logicalfs.Info{SizeBytes: 3})

	c.Invalidate("/invites/iom_invite.txt")

	_, ok := c.GetInfo("/invites/iom_invite.txt")
	require.False(t, ok)
	_, ok = c.GetListing("/invites")
	require.False(t, ok)
}

func TestInvalidateAll(t *testing.T) {
	c := New(time.Minute)
	c.SetInfo("/a", logicalfs.Info{})
	c.SetListing("/", []logicalfs.DirEntry{{Name: "a"}})
	c.InvalidateAll()
	_, ok := c.GetInfo("/a")
	require.False(t, ok)
	_, ok = c.GetListing("/")
	require.False(t, ok)
}

func TestSetTTLAffectsSubsequentReads(t *testing.T) {
	c := New(time.Hour)
	c.SetInfo("/a", logicalfs.Info{})
	c.SetTTL(time.Nanosecond)
	time.Sleep(time.Millisecond)
	_, ok := c.GetInfo("/a")
	require.False(t, ok)
}

// TestSetTTLCannotExtendPastConstructionWindow documents that SetTTL only
// reliably shortens the effective window. The underlying expirable.LRU
// stores were built with a fixed, short construction-time TTL; entries are
// physically evicted at that original deadline regardless of a later,
// larger c.ttl, because the store's own lazy-expiry check on Get uses each
// entry's construction-time deadline, not the wrapper's current c.ttl.
func TestSetTTLCannotExtendPastConstructionWindow(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.SetInfo("/a", logicalfs.Info{SizeBytes: 1})
	c.SetTTL(time.Hour)

	time.Sleep(50 * time.Millisecond)

	_, ok := c.GetInfo("/a")
	require.False(t, ok, "extending c.ttl did not rescue an entry past the store's original construction-time TTL")
}

func TestInvalidateDecrementsContentBytes(t *testing.T) {
	c := New(time.Minute)
	c.SetContent("/a", "hash-a", make([]byte, 100))
	require.Equal(t, uint64(100), c.Stats().ContentBytes)

	c.Invalidate("/a")
	require.Equal(t, uint64(0), c.Stats().ContentBytes)
}

func TestSetContentOverwriteAdjustsContentBytes(t *testing.T) {
	c := New(time.Minute)
	c.SetContent("/a", "hash-a", make([]byte, 100))
	c.SetContent("/a", "hash-b", make([]byte, 40))
	require.Equal(t, uint64(40), c.Stats().ContentBytes)
}

func TestInvalidateAllZeroesContentBytes(t *testing.T) {
	c := New(time.Minute)
	c.SetContent("/a", "hash-a", make([]byte, 100))
	c.SetContent("/b", "hash-b", make([]byte, 50))
	c.InvalidateAll()
	require.Equal(t, uint64(0), c.Stats().ContentBytes)
}

func TestStatsCountsHitsAndMisses(t *testing.T) {
	c := New(time.Minute)
	c.SetInfo("/a", logicalfs.Info{})
	c.GetInfo("/a")
	c.GetInfo("/missing")
	stats := c.Stats()
	require.Equal(t, uint64(1), stats.Hits)
	require.Equal(t, uint64(1), stats.Misses)
	require.Equal(t, 1, stats.InfoEntries)
}
