package delivery

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wisptree/vprojfs/internal/bridge"
	"github.com/wisptree/vprojfs/internal/cache"
	"github.com/wisptree/vprojfs/internal/host/platform"
	"github.com/wisptree/vprojfs/internal/logicalfs"
	"github.com/wisptree/vprojfs/internal/objectstore"
)

type fakeFS struct {
	content map[string][]byte
}

func (f *fakeFS) Stat(context.Context, string) (logicalfs.Info, error) { return logicalfs.Info{}, logicalfs.ErrNotFound }
func (f *fakeFS) ReadDir(context.Context, string) ([]logicalfs.Child, error) {
	return nil, logicalfs.ErrNotFound
}
func (f *fakeFS) ReadFile(_ context.Context, path string) ([]byte, error) {
	data, ok := f.content[path]
	if !ok {
		return nil, logicalfs.ErrNotFound
	}
	return data, nil
}
func (f *fakeFS) WriteFile(context.Context, string, []byte) error { return nil }

type fakeInstance struct {
	mu        sync.Mutex
	written   map[int32][]byte
	completed map[int32]platform.Status
}

func newFakeInstance() *fakeInstance {
	return &fakeInstance{written: make(map[int32][]byte), completed: make(map[int32]platform.Status)}
}

func (f *fakeInstance) WriteFileData(_ platform.FileHandle, commandID int32, data []byte, _ uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	f.written[commandID] = cp
	return nil
}

func (f *fakeInstance) CompleteCommand(commandID int32, status platform.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed[commandID] = status
	return nil
}

func (f *fakeInstance) Stop() error { return nil }

func newTestEngine(t *testing.T, content map[string][]byte) (*Engine, *cache.Cache, *fakeInstance) {
	t.Helper()
	c := cache.New(time.Minute)
	b := bridge.New(&fakeFS{content: content}, c, nil, nil)
	b.Start()
	t.Cleanup(b.Stop)
	e := New(c, b, objectstore.New(t.TempDir()), platform.NewProvider())
	inst := newFakeInstance()
	e.SetInstance(inst)
	return e, c, inst
}

func TestServeSynchronousCacheHit(t *testing.T) {
	e, c, inst := newTestEngine(t, nil)
	c.SetContent("/invites/a.txt", "h", []byte("hello world"))

	status := e.Serve("/invites/a.txt", 1, 0, 5, platform.FileHandle{})
	require.Equal(t, platform.StatusOK, status)
	require.Equal(t, []byte("hello"), inst.written[1])
}

func TestServeCacheMissReturnsIoPending(t *testing.T) {
	e, _, _ := newTestEngine(t, map[string][]byte{"/invites/a.txt": []byte("hello")})
	status := e.Serve("/invites/a.txt", 7, 0, 5, platform.FileHandle{})
	require.Equal(t, platform.StatusIoPending, status)
}

func TestCompletePendingDeliversFetchedContent(t *testing.T) {
	e, c, inst := newTestEngine(t, map[string][]byte{"/invites/a.txt": []byte("hello world")})
	status := e.Serve("/invites/a.txt", 9, 0, 5, platform.FileHandle{})
	require.Equal(t, platform.StatusIoPending, status)

	require.Eventually(t, func() bool {
		_, _, ok := c.GetContent("/invites/a.txt")
		return ok
	}, time.Second, 10*time.Millisecond)

	e.CompletePending("/invites/a.txt")

	inst.mu.Lock()
	defer inst.mu.Unlock()
	require.Equal(t, platform.StatusOK, inst.completed[9])
	require.Equal(t, []byte("hello"), inst.written[9])
}

func TestCompletePendingNotFoundWhenContentNeverArrived(t *testing.T) {
	e, _, inst := newTestEngine(t, nil)
	e.Serve("/missing.txt", 3, 0, 5, platform.FileHandle{})
	e.CompletePending("/missing.txt")

	inst.mu.Lock()
	defer inst.mu.Unlock()
	require.Equal(t, platform.StatusNotFound, inst.completed[3])
}

func TestServeObjectStoreFastPath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "objects"), 0o755))
	hash := "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "objects", hash), []byte("payload"), 0o644))

	c := cache.New(time.Minute)
	b := bridge.New(&fakeFS{}, c, nil, nil)
	b.Start()
	t.Cleanup(b.Stop)
	e := New(c, b, objectstore.New(dir), platform.NewProvider())
	inst := newFakeInstance()
	e.SetInstance(inst)

	status := e.Serve("/objects/"+hash+"/raw.txt", 5, 0, 100, platform.FileHandle{})
	require.Equal(t, platform.StatusOK, status)
	require.Equal(t, []byte("payload"), inst.written[5])
}
