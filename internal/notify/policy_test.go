package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wisptree/vprojfs/internal/cache"
	"github.com/wisptree/vprojfs/internal/host/platform"
	"github.com/wisptree/vprojfs/internal/logicalfs"
)

type recordingTombstones struct {
	invalidated []string
}

func (r *recordingTombstones) InvalidateTombstone(path string) error {
	r.invalidated = append(r.invalidated, path)
	return nil
}

func TestClassifyDeniesWriteOperations(t *testing.T) {
	p := New(cache.New(time.Minute), nil, nil)
	require.Equal(t, platform.StatusAccessDenied, p.Classify("/a", platform.NotificationPreDelete, false))
	require.Equal(t, platform.StatusAccessDenied, p.Classify("/a", platform.NotificationNewFileCreated, false))
}

func TestClassifyAllowsReadOperations(t *testing.T) {
	p := New(cache.New(time.Minute), nil, nil)
	require.Equal(t, platform.StatusOK, p.Classify("/a", platform.NotificationFileOpened, false))
	require.Equal(t, platform.StatusOK, p.Classify("/a", platform.NotificationFileHandleClosedNoModification, false))
}

func TestClassifyObservesCloseDeletedAndRepairsTombstone(t *testing.T) {
	c := cache.New(time.Minute)
	c.SetInfo("/invites/a.txt", logicalfs.Info{SizeBytes: 1})
	ts := &recordingTombstones{}
	p := New(c, ts, []string{"/invites"})

	status := p.Classify("/invites/a.txt", platform.NotificationFileHandleClosedFileDeleted, false)
	require.Equal(t, platform.StatusOK, status)

	_, ok := c.GetInfo("/invites/a.txt")
	require.False(t, ok)
	require.Equal(t, []string{"/invites/a.txt"}, ts.invalidated)
}

func TestClassifyCloseDeletedOutsideRegenerationSkipsTombstone(t *testing.T) {
	c := cache.New(time.Minute)
	ts := &recordingTombstones{}
	p := New(c, ts, []string{"/invites"})

	p.Classify("/debug/a.txt", platform.NotificationFileHandleClosedFileDeleted, false)
	require.Empty(t, ts.invalidated)
}

func TestClassifyUnknownDefaultsToDenied(t *testing.T) {
	p := New(cache.New(time.Minute), nil, nil)
	require.Equal(t, platform.StatusAccessDenied, p.Classify("/a", platform.NotificationKind(999), false))
}
