// Package objectstore implements the synchronous, read-only view over the
// content-addressed store's objects/ area (spec §4.7). It is grounded on
// original_source/src/sync_storage.cpp's GetObjectType /
// ExtractTypeFromMicrodata / ReadFirst100Bytes, translated into a
// memoizing Go reader keyed the same way the teacher keys its own
// content-addressed reads: by hex digest.
package objectstore

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/wisptree/vprojfs/internal/logicalfs"
)

// HashLength is the length in hex characters of an object digest.
const HashLength = 64

// headerPeekBytes is how much of the raw body type derivation inspects.
const headerPeekBytes = 100

var itemTypePattern = regexp.MustCompile(`itemtype="//refin\.io/([^"]+)"`)

// Member file names synthesized under each /objects/<hash>/ directory.
const (
	MemberRaw    = "raw.txt"
	MemberType   = "type.txt"
	MemberPretty = "pretty.html"
	MemberJSON   = "json.txt"
)

var members = []string{MemberRaw, MemberType, MemberPretty, MemberJSON}

// ErrNotAnObjectPath is returned when a path is not under /objects/<hash>.
var ErrNotAnObjectPath = fmt.Errorf("objectstore: not an object path")

// Reader is the read-only, memoizing view over a content-addressed store
// rooted at instancePath (spec §4.7).
type Reader struct {
	objectsDir string

	mu       sync.Mutex
	rawCache map[string][]byte
	typeMemo map[string]string
}

// New creates a Reader rooted at instancePath's objects/ subdirectory.
func New(instancePath string) *Reader {
	return &Reader{
		objectsDir: filepath.Join(instancePath, "objects"),
		rawCache:   make(map[string][]byte),
		typeMemo:   make(map[string]string),
	}
}

// ParseHash extracts a 64-hex-character digest from an /objects/<hash>...
// virtual path, or ok=false if path is not under the object namespace.
func ParseHash(path string) (hash string, member string, ok bool) {
	const prefix = "/objects/"
	if !strings.HasPrefix(path, prefix) {
		return "", "", false
	}
	rest := path[len(prefix):]
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return "", "", false
	}
	parts := strings.SplitN(rest, "/", 2)
	candidate := parts[0]
	if len(candidate) != HashLength {
		return "", "", false
	}
	if _, err := hex.DecodeString(candidate); err != nil {
		return "", "", false
	}
	if len(parts) == 2 {
		member = parts[1]
	}
	return candidate, member, true
}

// Exists reports whether hash has a backing object on disk.
func (r *Reader) Exists(hash string) bool {
	_, err := os.Stat(filepath.Join(r.objectsDir, hash))
	return err == nil
}

// raw reads and memoizes the full object body for hash.
func (r *Reader) raw(hash string) ([]byte, error) {
	r.mu.Lock()
	if cached, ok := r.rawCache[hash]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(r.objectsDir, hash))
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.rawCache[hash] = data
	r.mu.Unlock()
	return data, nil
}

// objectType derives and memoizes the object's type tag (spec §4.7).
func (r *Reader) objectType(hash string) (string, error) {
	r.mu.Lock()
	if cached, ok := r.typeMemo[hash]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	data, err := r.raw(hash)
	if err != nil {
		return "", err
	}
	header := data
	if len(header) > headerPeekBytes {
		header = header[:headerPeekBytes]
	}
	tag := extractTypeFromHeader(string(header))

	r.mu.Lock()
	r.typeMemo[hash] = tag
	r.mu.Unlock()
	return tag, nil
}

func extractTypeFromHeader(header string) string {
	if m := itemTypePattern.FindStringSubmatch(header); m != nil {
		return m[1]
	}
	if strings.Contains(header, "<div") || strings.Contains(header, "itemscope") {
		return "CLOB"
	}
	return "BLOB"
}

// ListDirectory returns the synthetic four-file listing for /objects/<hash>
// (spec §4.7).
func (r *Reader) ListDirectory(hash string) ([]logicalfs.Child, error) {
	if !r.Exists(hash) {
		return nil, logicalfs.ErrNotFound
	}
	children := make([]logicalfs.Child, 0, len(members))
	for _, name := range members {
		children = append(children, logicalfs.DirEntry{Name: name, IsDirectory: false, IsDirectoryKnown: true})
	}
	return children, nil
}

// ReadMember produces the bytes for one of the four synthetic files under
// /objects/<hash>/ (spec §4.7).
func (r *Reader) ReadMember(hash, member string) ([]byte, error) {
	if !r.Exists(hash) {
		return nil, logicalfs.ErrNotFound
	}
	switch member {
	case MemberRaw:
		return r.raw(hash)
	case MemberType:
		typ, err := r.objectType(hash)
		if err != nil {
			return nil, err
		}
		return []byte(typ), nil
	case MemberPretty:
		body, err := r.raw(hash)
		if err != nil {
			return nil, err
		}
		return []byte("<html><body><pre>" + string(body) + "</pre></body></html>"), nil
	case MemberJSON:
		typ, err := r.objectType(hash)
		if err != nil {
			return nil, err
		}
		return []byte(fmt.Sprintf(`{"hash": %q, "type": %q}`, hash, typ)), nil
	default:
		return nil, logicalfs.ErrNotFound
	}
}

// StatMember reports metadata for a synthetic member file. It produces the
// member's bytes through ReadMember to learn its size, so the object's raw
// body is read (or taken from the memo) for every member.
func (r *Reader) StatMember(hash, member string) (logicalfs.Info, error) {
	data, err := r.ReadMember(hash, member)
	if err != nil {
		return logicalfs.Info{}, err
	}
	return logicalfs.Info{SizeBytes: uint64(len(data)), IsDirectory: false, Hash: hash}, nil
}
