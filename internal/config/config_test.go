package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "vprojfs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaultTTL(t *testing.T) {
	path := writeTempConfig(t, "instance_path: /var/lib/vprojfs\nvirtual_root: C:/proj\n")
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, time.Hour, time.Duration(c.CacheTTL))
	require.False(t, c.Debug)
}

func TestLoadParsesDurationAndDebug(t *testing.T) {
	path := writeTempConfig(t, "instance_path: /var/lib/vprojfs\nvirtual_root: C:/proj\ncache_ttl: 90s\ndebug: true\n")
	c, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, time.Duration(c.CacheTTL))
	require.True(t, c.Debug)
}

func TestLoadRequiresInstancePath(t *testing.T) {
	path := writeTempConfig(t, "virtual_root: C:/proj\n")
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRequiresVirtualRoot(t *testing.T) {
	path := writeTempConfig(t, "instance_path: /var/lib/vprojfs\n")
	_, err := Load(path)
	require.Error(t, err)
}
