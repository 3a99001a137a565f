package billyadapter

import (
	"context"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/require"
)

func TestAdapterReadWriteStat(t *testing.T) {
	root := memfs.New()
	require.NoError(t, root.MkdirAll("invites", 0o755))
	require.NoError(t, util.WriteFile(root, "invites/iom_invite.txt", []byte("abc"), 0o644))

	fs := New(root)
	ctx := context.Background()

	info, err := fs.Stat(ctx, "/invites")
	require.NoError(t, err)
	require.True(t, info.IsDirectory)

	children, err := fs.ReadDir(ctx, "/invites")
	require.NoError(t, err)
	require.Len(t, children, 1)

	data, err := fs.ReadFile(ctx, "/invites/iom_invite.txt")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), data)

	_, err = fs.Stat(ctx, "/does/not/exist")
	require.Error(t, err)
}
