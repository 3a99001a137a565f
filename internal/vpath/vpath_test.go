package vpath

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		`\`:                  "/",
		``:                   "/",
		`chats`:              "/chats",
		`chats\room1`:        "/chats/room1",
		`C:\chats\room1`:     "/chats/room1",
		`chats\\room1\`:      "/chats/room1",
		`/objects/deadbeef`:  "/objects/deadbeef",
		`objects/deadbeef//`: "/objects/deadbeef",
	}
	for in, want := range cases {
		require.Equal(t, want, Normalize(in), "Normalize(%q)", in)
	}
}

func TestParentAndBase(t *testing.T) {
	require.Equal(t, "/a/b", Parent("/a/b/c"))
	require.Equal(t, "/", Parent("/a"))
	require.Equal(t, "/", Parent("/"))
	require.Equal(t, "c", Base("/a/b/c"))
	require.Equal(t, "", Base("/"))
}

func TestDepthAndPrefix(t *testing.T) {
	require.Equal(t, 0, Depth("/"))
	require.Equal(t, 1, Depth("/chats"))
	require.True(t, HasPrefix("/objects/abc/raw.txt", "/objects"))
	require.False(t, HasPrefix("/objectsx", "/objects"), "unexpected prefix match on non-separator boundary")
}

func TestIsValidName(t *testing.T) {
	require.False(t, IsValidName(""), "empty name should be invalid")
	require.False(t, IsValidName("a/b"), "name with separator should be invalid")
	require.True(t, IsValidName("iom_invite.txt"))
}
