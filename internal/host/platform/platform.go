// Package platform defines the fixed callback surface the kernel-side
// ProjFS driver invokes (spec §6.1, bit-exact names) and the primitives the
// core calls back into the platform with (the outbound half of the bridge
// between synchronous kernel callbacks and the core's engines). It also
// defines the Status taxonomy shared by every callback return value and by
// the Virtualization Host's own error reporting (spec §7).
package platform

import (
	"time"

	"github.com/google/uuid"
)

// Status is the taxonomy of outcomes a callback or host operation can
// produce (spec §7).
type Status int

const (
	// StatusOK indicates the operation succeeded.
	StatusOK Status = iota
	// StatusNotFound indicates the path does not exist in the cache, the
	// logical filesystem, or the object store.
	StatusNotFound
	// StatusAccessDenied indicates a write-class operation was attempted
	// against the read-only projection.
	StatusAccessDenied
	// StatusIoPending indicates a data request has been accepted and
	// will be completed later via CompleteCommand.
	StatusIoPending
	// StatusBusy indicates the provider is stopped or stopping.
	StatusBusy
	// StatusOutOfMemory indicates the platform allocator refused a
	// buffer.
	StatusOutOfMemory
	// StatusInvalid indicates malformed arguments (bad handle, bad
	// session id, ...).
	StatusInvalid
	// StatusPlatformError indicates any other failure from the ProjFS
	// platform API. The Status value carries no underlying code; the
	// Windows binding reports the NTSTATUS in the error it returns.
	StatusPlatformError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNotFound:
		return "NotFound"
	case StatusAccessDenied:
		return "AccessDenied"
	case StatusIoPending:
		return "IoPending"
	case StatusBusy:
		return "Busy"
	case StatusOutOfMemory:
		return "OutOfMemory"
	case StatusInvalid:
		return "Invalid"
	case StatusPlatformError:
		return "PlatformError"
	default:
		return "Unknown"
	}
}

// NotificationKind enumerates the pre- and post-operation notifications the
// kernel delivers (spec §4.8).
type NotificationKind int

const (
	NotificationFileOpened NotificationKind = iota
	NotificationPreDelete
	NotificationPreRename
	NotificationPreSetHardlink
	NotificationFileOverwritten
	NotificationNewFileCreated
	NotificationFileRenamed
	NotificationHardlinkCreated
	NotificationFileHandleClosedNoModification
	NotificationFileHandleClosedFileModified
	NotificationFileHandleClosedFileDeleted
)

// FileInfo describes the metadata of a single entry (spec §3 "File info").
type FileInfo struct {
	Name        string
	Hash        string
	SizeBytes   uint64
	IsDirectory bool
	Mode        uint32
	// BlobDirect is true iff the bytes live in the object store under the
	// known objects/<hash> layout (spec §3 invariant: directories are
	// never BlobDirect).
	BlobDirect bool
	ModTime    time.Time
}

// FileHandle is the pair of opaque handles ProjFS supplies with a file data
// request: the virtualization context (bound at Start) and the data-stream
// id identifying the specific open stream to write into (spec §3
// "Pending file request").
type FileHandle struct {
	Context  uintptr
	StreamID uintptr
}

// PendingRequest is a suspended GetFileData call awaiting content (spec §3).
type PendingRequest struct {
	CommandID int32
	Path      string
	Offset    uint64
	Length    uint32
	Handle    FileHandle
}

// DirEntryWriter is implemented by the Enumeration Engine's per-call buffer
// wrapper. WriteEntry attempts to add info to the kernel-supplied buffer.
// ok is false when the buffer has no room left for this entry (the engine
// must retry it on the next GetDirectoryEnumeration call without advancing
// its cursor); err is non-nil for any other per-entry failure, which the
// engine treats as skip-and-log (its cursor still advances).
type DirEntryWriter interface {
	WriteEntry(info FileInfo) (ok bool, err error)
}

// DefaultFileNameMatch implements ProjFS's file-name-match semantics (DOS
// wildcard matching: '*' matches any run of characters, '?' matches any
// single character, comparison is case-insensitive) for platforms or tests
// that have no access to the real PrjFileNameMatch export.
func DefaultFileNameMatch(name, pattern string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	return dosWildcardMatch([]rune(toUpperASCII(name)), []rune(toUpperASCII(pattern)))
}

func toUpperASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}

// dosWildcardMatch is a standard greedy-backtracking '*'/'?' matcher.
func dosWildcardMatch(name, pattern []rune) bool {
	n, p := 0, 0
	starIdx, matchIdx := -1, 0
	for n < len(name) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == name[n]):
			n++
			p++
		case p < len(pattern) && pattern[p] == '*':
			starIdx = p
			matchIdx = n
			p++
		case starIdx != -1:
			p = starIdx + 1
			matchIdx++
			n = matchIdx
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}

// Callbacks is the fixed ProjFS callback surface (spec §6.1), implemented
// by the Virtualization Host by delegating to its component engines.
type Callbacks interface {
	GetPlaceholderInfo(path string) (FileInfo, Status)
	GetFileData(path string, commandID int32, offset, length uint64, handle FileHandle) Status
	QueryFileName(path string) Status
	StartDirectoryEnumeration(sessionID uuid.UUID, path string) Status
	GetDirectoryEnumeration(sessionID uuid.UUID, pattern string, restartScan bool, w DirEntryWriter) Status
	EndDirectoryEnumeration(sessionID uuid.UUID) Status
	Notify(path string, kind NotificationKind, isDirectory bool) Status
}

// Instance is the running virtualization context returned by Provider.Start
// (spec §3 "Virtualization context"): valid from Start to Stop, and the
// only handle through which the core drives completions.
type Instance interface {
	// WriteFileData copies data into the kernel-provided stream for the
	// given command, at byteOffset.
	WriteFileData(handle FileHandle, commandID int32, data []byte, byteOffset uint64) error
	// CompleteCommand finishes a previously deferred command (spec §4.4).
	CompleteCommand(commandID int32, status Status) error
	// Stop tears down the virtualization context. Idempotent.
	Stop() error
}

// Provider mounts a Callbacks implementation at a projection root and
// exposes the remaining platform primitives the core needs directly (spec
// §4.1, §4.7 note on file-name matching, §5 aligned buffers).
type Provider interface {
	// ClearStaleState removes any residual projection marker left behind
	// by a crashed previous instance (spec §4.1).
	ClearStaleState(virtualRoot string) error
	// MarkDirectoryAsPlaceholder binds virtualRoot to instanceID as a
	// projection root.
	MarkDirectoryAsPlaceholder(virtualRoot string, instanceID uuid.UUID) error
	// Start registers callbacks and begins dispatching kernel callbacks.
	Start(virtualRoot string, callbacks Callbacks, debug bool) (Instance, error)
	// ClearNegativePathCache asks the platform to forget a prior deletion
	// of path (tombstone invalidation, spec §4.1, §4.8).
	ClearNegativePathCache(instance Instance, path string) error
	// FileNameMatch implements the platform's file-name-match semantics
	// used by the Enumeration Engine's pattern filtering (spec §4.2).
	FileNameMatch(name, pattern string) bool
	// AllocateAlignedBuffer returns a buffer suitable for WriteFileData
	// and a matching release function that must be called on every exit
	// path (spec §5 "Aligned buffers").
	AllocateAlignedBuffer(size int) ([]byte, func(), error)
}
