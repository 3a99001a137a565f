package objectstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const testHash = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestReader(t *testing.T, body string) *Reader {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "objects", testHash), []byte(body), 0o644))
	return New(dir)
}

func TestParseHash(t *testing.T) {
	hash, member, ok := ParseHash("/objects/" + testHash + "/raw.txt")
	require.True(t, ok)
	require.Equal(t, testHash, hash)
	require.Equal(t, "raw.txt", member)

	_, _, ok = ParseHash("/objects/tooshort")
	require.False(t, ok)

	_, _, ok = ParseHash("/invites")
	require.False(t, ok)
}

func TestReadMemberRaw(t *testing.T) {
	r := newTestReader(t, "hello world")
	data, err := r.ReadMember(testHash, MemberRaw)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestReadMemberTypeDefaultsToBLOB(t *testing.T) {
	r := newTestReader(t, "plain binary junk")
	data, err := r.ReadMember(testHash, MemberType)
	require.NoError(t, err)
	require.Equal(t, "BLOB", string(data))
}

func TestReadMemberTypeMicrodataYieldsCLOB(t *testing.T) {
	r := newTestReader(t, `<div itemscope>hello</div>`)
	data, err := r.ReadMember(testHash, MemberType)
	require.NoError(t, err)
	require.Equal(t, "CLOB", string(data))
}

func TestReadMemberTypeExplicitTag(t *testing.T) {
	r := newTestReader(t, `<div itemscope itemtype="//refin.io/Message">hi</div>`)
	data, err := r.ReadMember(testHash, MemberType)
	require.NoError(t, err)
	require.Equal(t, "Message", string(data))
}

func TestReadMemberPrettyWrapsRaw(t *testing.T) {
	r := newTestReader(t, "hello")
	data, err := r.ReadMember(testHash, MemberPretty)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(data), "<pre>hello</pre>"))
}

func TestReadMemberJSONIncludesHashAndType(t *testing.T) {
	r := newTestReader(t, "plain")
	data, err := r.ReadMember(testHash, MemberJSON)
	require.NoError(t, err)
	require.Contains(t, string(data), testHash)
	require.Contains(t, string(data), "BLOB")
}

func TestReadMemberUnknownNotFound(t *testing.T) {
	r := newTestReader(t, "plain")
	_, err := r.ReadMember(testHash, "nope.txt")
	require.Error(t, err)
}

func TestListDirectoryUnknownHashNotFound(t *testing.T) {
	r := newTestReader(t, "plain")
	_, err := r.ListDirectory("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff")
	require.Error(t, err)
}

func TestListDirectoryReturnsFourMembers(t *testing.T) {
	r := newTestReader(t, "plain")
	entries, err := r.ListDirectory(testHash)
	require.NoError(t, err)
	require.Len(t, entries, 4)
}
