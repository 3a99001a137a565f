package host

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/wisptree/vprojfs/internal/config"
	"github.com/wisptree/vprojfs/internal/host/platform"
	"github.com/wisptree/vprojfs/internal/logicalfs"
)

type fakeFS struct{}

func (fakeFS) Stat(context.Context, string) (logicalfs.Info, error) {
	return logicalfs.Info{IsDirectory: true}, nil
}
func (fakeFS) ReadDir(context.Context, string) ([]logicalfs.Child, error) { return nil, nil }
func (fakeFS) ReadFile(context.Context, string) ([]byte, error)          { return nil, logicalfs.ErrNotFound }
func (fakeFS) WriteFile(context.Context, string, []byte) error           { return nil }

type fakeInstance struct{ stopped bool }

func (f *fakeInstance) WriteFileData(platform.FileHandle, int32, []byte, uint64) error { return nil }
func (f *fakeInstance) CompleteCommand(int32, platform.Status) error                   { return nil }
func (f *fakeInstance) Stop() error                                                    { f.stopped = true; return nil }

type fakeProvider struct {
	inst *fakeInstance
}

func (fakeProvider) ClearStaleState(string) error                        { return nil }
func (fakeProvider) MarkDirectoryAsPlaceholder(string, uuid.UUID) error  { return nil }
func (p *fakeProvider) Start(string, platform.Callbacks, bool) (platform.Instance, error) {
	p.inst = &fakeInstance{}
	return p.inst, nil
}
func (fakeProvider) ClearNegativePathCache(platform.Instance, string) error { return nil }
func (fakeProvider) FileNameMatch(name, pattern string) bool {
	return platform.DefaultFileNameMatch(name, pattern)
}
func (fakeProvider) AllocateAlignedBuffer(size int) ([]byte, func(), error) {
	return make([]byte, size), func() {}, nil
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{InstancePath: t.TempDir(), VirtualRoot: t.TempDir(), CacheTTL: config.Duration(time.Minute)}
}

func TestStartStopLifecycle(t *testing.T) {
	h := New(testConfig(t), fakeFS{}, &fakeProvider{})
	require.False(t, h.IsRunning())

	require.NoError(t, h.Start())
	require.True(t, h.IsRunning())

	require.NoError(t, h.Stop())
	require.False(t, h.IsRunning())
}

func TestStartTwiceFails(t *testing.T) {
	h := New(testConfig(t), fakeFS{}, &fakeProvider{})
	require.NoError(t, h.Start())
	require.Error(t, h.Start())
	require.NoError(t, h.Stop())
}

func TestStopIdempotent(t *testing.T) {
	h := New(testConfig(t), fakeFS{}, &fakeProvider{})
	require.NoError(t, h.Start())
	require.NoError(t, h.Stop())
	require.NoError(t, h.Stop())
}

func TestCallbacksReturnBusyWhenNotRunning(t *testing.T) {
	h := New(testConfig(t), fakeFS{}, &fakeProvider{})
	_, status := h.GetPlaceholderInfo("/a")
	require.Equal(t, platform.StatusBusy, status)
}

func TestQueryFileNameAlwaysNotFound(t *testing.T) {
	h := New(testConfig(t), fakeFS{}, &fakeProvider{})
	require.NoError(t, h.Start())
	defer h.Stop()

	// fakeFS.Stat resolves any path as an existing directory, so this
	// exercises the "path exists" case; case-insensitive matching is a
	// declared non-goal and QueryFileName must report not-found regardless.
	require.Equal(t, platform.StatusNotFound, h.QueryFileName("/a"))
	require.Equal(t, platform.StatusNotFound, h.QueryFileName("/does/not/exist"))
}

func TestNotifyDeniesPreDelete(t *testing.T) {
	h := New(testConfig(t), fakeFS{}, &fakeProvider{})
	require.NoError(t, h.Start())
	defer h.Stop()

	status := h.Notify("/a", platform.NotificationPreDelete, false)
	require.Equal(t, platform.StatusAccessDenied, status)
}
