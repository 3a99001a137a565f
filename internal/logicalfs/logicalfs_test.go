package logicalfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeChildren(t *testing.T) {
	children := []Child{
		"iom_invite.txt",
		DirEntry{Name: "room1", IsDirectory: true, IsDirectoryKnown: true},
		"",                                    // dropped: empty name
		"a/b",                                 // dropped: contains separator
		"iom_invite.txt",                      // dropped: duplicate
		&DirEntry{Name: "typed", Mode: 0755}, // no IsDirectoryKnown -> falls back to mode
	}
	got := CanonicalizeChildren(children)
	require.Len(t, got, 3)

	require.Equal(t, "iom_invite.txt", got[0].Name)
	require.False(t, got[0].IsDirectory)

	require.Equal(t, "room1", got[1].Name)
	require.True(t, got[1].IsDirectory)

	require.Equal(t, "typed", got[2].Name)
	require.False(t, got[2].IsDirectory, "expected file fallback from mode bits")
}
