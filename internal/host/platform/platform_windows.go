//go:build windows

package platform

// This file binds the fixed ProjFS platform primitives directly to
// ProjectedFSLib.dll, following the same idiom the teacher uses to talk to
// winfsp-x64.dll throughout pkg/filesystem/virtual/winfsp/file_system.go:
// golang.org/x/sys/windows types for GUIDs and UTF-16 strings, and
// windows.NewLazySystemDLL + NewProc for the exports themselves. There is
// no published Go binding for ProjFS in the retrieved corpus (see
// DESIGN.md's "Open Question: platform binding"), so the exports and their
// argument shapes below are modeled directly on the public
// ProjectedFSLib.h contract rather than on any vendored Go wrapper.

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"unsafe"

	"github.com/google/uuid"
	"golang.org/x/sys/windows"
)

var (
	modProjectedFSLib = windows.NewLazySystemDLL("ProjectedFSLib.dll")

	procPrjMarkDirectoryAsPlaceholder = modProjectedFSLib.NewProc("PrjMarkDirectoryAsPlaceholder")
	procPrjStartVirtualizing          = modProjectedFSLib.NewProc("PrjStartVirtualizing")
	procPrjStopVirtualizing           = modProjectedFSLib.NewProc("PrjStopVirtualizing")
	procPrjWriteFileData              = modProjectedFSLib.NewProc("PrjWriteFileData")
	procPrjCompleteCommand            = modProjectedFSLib.NewProc("PrjCompleteCommand")
	procPrjFileNameMatch              = modProjectedFSLib.NewProc("PrjFileNameMatch")
	procPrjClearNegativePathCache     = modProjectedFSLib.NewProc("PrjClearNegativePathCache")
	procPrjAllocateAlignedBuffer      = modProjectedFSLib.NewProc("PrjAllocateAlignedBuffer")
	procPrjFreeAlignedBuffer          = modProjectedFSLib.NewProc("PrjFreeAlignedBuffer")
	procPrjFillDirEntryBuffer         = modProjectedFSLib.NewProc("PrjFillDirEntryBuffer")
)

// staleStateDirName is the hidden marker subdirectory a crashed previous
// instance may have left behind (spec §4.1).
const staleStateDirName = ".vprojfs-state"

// PRJ_NOTIFY_TYPES bit values, per the ProjectedFSLib.h contract. These are
// the mask ntNotificationToKind decodes and the mask registered tree-wide
// via PRJ_STARTVIRTUALIZING_OPTIONS.NotificationMappings in Start, so the
// kernel actually delivers the events internal/notify.Policy classifies
// (spec §4.1 "Register the callback set and a notification mapping ...").
const (
	prjNotifyFileOpened                     uint32 = 0x00000002
	prjNotifyNewFileCreated                 uint32 = 0x00000004
	prjNotifyFileOverwritten                uint32 = 0x00000008
	prjNotifyPreDelete                      uint32 = 0x00000010
	prjNotifyPreRename                      uint32 = 0x00000020
	prjNotifyPreSetHardlink                 uint32 = 0x00000040
	prjNotifyFileRenamed                    uint32 = 0x00000080
	prjNotifyHardlinkCreated                uint32 = 0x00000100
	prjNotifyFileHandleClosedNoModification uint32 = 0x00000200
	prjNotifyFileHandleClosedFileModified   uint32 = 0x00000400
	prjNotifyFileHandleClosedFileDeleted    uint32 = 0x00000800
)

// treeNotificationMask covers every notification internal/notify.Policy
// classifies, so the deny-list (pre-delete, pre-rename, pre-set-hardlink,
// new-file-created, overwritten), allow-list (file-opened,
// close-no-modification), and observe-list (renamed, hardlink-created,
// close-modified, close-deleted) all actually reach it.
const treeNotificationMask = prjNotifyFileOpened |
	prjNotifyNewFileCreated |
	prjNotifyFileOverwritten |
	prjNotifyPreDelete |
	prjNotifyPreRename |
	prjNotifyPreSetHardlink |
	prjNotifyFileRenamed |
	prjNotifyHardlinkCreated |
	prjNotifyFileHandleClosedNoModification |
	prjNotifyFileHandleClosedFileModified |
	prjNotifyFileHandleClosedFileDeleted

// prjNotificationMapping mirrors PRJ_NOTIFICATION_MAPPING: a notification
// bitmask paired with the (root-relative) subtree it applies to. An empty
// NotificationRoot means the entire virtualization root.
type prjNotificationMapping struct {
	NotificationBitMask uint32
	_                   uint32 // padding: aligns the following pointer to 8 bytes
	NotificationRoot    *uint16
}

// prjStartVirtualizingOptions mirrors PRJ_STARTVIRTUALIZING_OPTIONS.
type prjStartVirtualizingOptions struct {
	Flags                     uint32
	PoolThreadCount           uint32
	ConcurrentThreadCount     uint32
	NotificationMappings      *prjNotificationMapping
	NotificationMappingsCount uint32
}

type winProvider struct {
	mu        sync.Mutex
	instances map[uintptr]*winInstance
}

// NewProvider returns the Windows ProjectedFSLib.dll-backed Provider.
func NewProvider() Provider {
	return &winProvider{instances: make(map[uintptr]*winInstance)}
}

func (p *winProvider) ClearStaleState(virtualRoot string) error {
	return os.RemoveAll(filepath.Join(virtualRoot, staleStateDirName))
}

func (p *winProvider) MarkDirectoryAsPlaceholder(virtualRoot string, instanceID uuid.UUID) error {
	rootPtr, err := windows.UTF16PtrFromString(virtualRoot)
	if err != nil {
		return err
	}
	guid := goGUIDToWindows(instanceID)
	r1, _, _ := procPrjMarkDirectoryAsPlaceholder.Call(
		uintptr(unsafe.Pointer(rootPtr)),
		0, // targetPathName: none, this is a root, not a reparse target
		0, // versionInfo: not used by this provider
		uintptr(unsafe.Pointer(&guid)),
	)
	if r1 != 0 {
		return fmt.Errorf("PrjMarkDirectoryAsPlaceholder failed: NTSTATUS 0x%x", r1)
	}
	return nil
}

func (p *winProvider) Start(virtualRoot string, callbacks Callbacks, debug bool) (Instance, error) {
	rootPtr, err := windows.UTF16PtrFromString(virtualRoot)
	if err != nil {
		return nil, err
	}
	table := newCallbackTable(callbacks)

	// NotificationRoot "" (the empty string) opts in the entire
	// virtualization tree, not just its immediate children.
	treeRootPtr, err := windows.UTF16PtrFromString("")
	if err != nil {
		return nil, err
	}
	mappings := []prjNotificationMapping{{
		NotificationBitMask: treeNotificationMask,
		NotificationRoot:    treeRootPtr,
	}}
	opts := prjStartVirtualizingOptions{
		NotificationMappings:      &mappings[0],
		NotificationMappingsCount: uint32(len(mappings)),
	}

	var virtualizationContext uintptr
	r1, _, _ := procPrjStartVirtualizing.Call(
		uintptr(unsafe.Pointer(rootPtr)),
		uintptr(unsafe.Pointer(table.asPRJCallbacks())),
		0, // instanceContext
		uintptr(unsafe.Pointer(&opts)),
		uintptr(unsafe.Pointer(&virtualizationContext)),
	)
	if r1 != 0 {
		return nil, fmt.Errorf("PrjStartVirtualizing failed: NTSTATUS 0x%x", r1)
	}
	inst := &winInstance{context: virtualizationContext, table: table}
	p.mu.Lock()
	p.instances[virtualizationContext] = inst
	p.mu.Unlock()
	return inst, nil
}

func (p *winProvider) ClearNegativePathCache(instance Instance, path string) error {
	inst, ok := instance.(*winInstance)
	if !ok {
		return fmt.Errorf("platform: instance not created by this provider")
	}
	var count uint32
	r1, _, _ := procPrjClearNegativePathCache.Call(inst.context, uintptr(unsafe.Pointer(&count)))
	if r1 != 0 {
		return fmt.Errorf("PrjClearNegativePathCache failed: NTSTATUS 0x%x", r1)
	}
	return nil
}

func (p *winProvider) FileNameMatch(name, pattern string) bool {
	namePtr, err1 := windows.UTF16PtrFromString(name)
	patPtr, err2 := windows.UTF16PtrFromString(pattern)
	if err1 != nil || err2 != nil {
		return DefaultFileNameMatch(name, pattern)
	}
	r1, _, _ := procPrjFileNameMatch.Call(uintptr(unsafe.Pointer(namePtr)), uintptr(unsafe.Pointer(patPtr)))
	return r1 != 0
}

func (p *winProvider) AllocateAlignedBuffer(size int) ([]byte, func(), error) {
	r1, _, _ := procPrjAllocateAlignedBuffer.Call(0, uintptr(size))
	if r1 == 0 {
		return nil, nil, fmt.Errorf("PrjAllocateAlignedBuffer: %w", errOutOfMemory)
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(r1)), size)
	release := func() {
		procPrjFreeAlignedBuffer.Call(r1)
	}
	return buf, release, nil
}

type winInstance struct {
	context uintptr
	table   *callbackTable
}

func (i *winInstance) WriteFileData(handle FileHandle, commandID int32, data []byte, byteOffset uint64) error {
	if len(data) == 0 {
		return nil
	}
	r1, _, _ := procPrjWriteFileData.Call(
		i.context,
		uintptr(unsafe.Pointer(&commandID)),
		uintptr(unsafe.Pointer(&data[0])),
		uintptr(byteOffset),
		uintptr(len(data)),
	)
	if r1 != 0 {
		return fmt.Errorf("PrjWriteFileData failed: NTSTATUS 0x%x", r1)
	}
	return nil
}

func (i *winInstance) CompleteCommand(commandID int32, status Status) error {
	r1, _, _ := procPrjCompleteCommand.Call(i.context, uintptr(commandID), uintptr(toNTStatus(status)), 0)
	if r1 != 0 {
		return fmt.Errorf("PrjCompleteCommand failed: NTSTATUS 0x%x", r1)
	}
	return nil
}

func (i *winInstance) Stop() error {
	procPrjStopVirtualizing.Call(i.context)
	return nil
}

var errOutOfMemory = fmt.Errorf("out of memory")

func toNTStatus(s Status) uint32 {
	switch s {
	case StatusOK:
		return 0 // STATUS_SUCCESS
	case StatusNotFound:
		return 0xC0000034 // STATUS_OBJECT_NAME_NOT_FOUND
	case StatusAccessDenied:
		return 0xC0000022 // STATUS_ACCESS_DENIED
	case StatusIoPending:
		return 0x00000103 // STATUS_PENDING
	case StatusBusy:
		return 0xC0000022 // STATUS_ACCESS_DENIED (no closer 1:1 NTSTATUS)
	case StatusOutOfMemory:
		return 0xC0000017 // STATUS_NO_MEMORY
	case StatusInvalid:
		return 0xC000000D // STATUS_INVALID_PARAMETER
	default:
		return 0xC0000001 // STATUS_UNSUCCESSFUL
	}
}

func goGUIDToWindows(id uuid.UUID) windows.GUID {
	return windows.GUID{
		Data1: binary.BigEndian.Uint32(id[0:4]),
		Data2: binary.BigEndian.Uint16(id[4:6]),
		Data3: binary.BigEndian.Uint16(id[6:8]),
		Data4: [8]byte{id[8], id[9], id[10], id[11], id[12], id[13], id[14], id[15]},
	}
}

// callbackTable pins Go callback closures behind syscall.NewCallback so
// they can be invoked from the kernel's own thread pool, and recovers the
// owning Callbacks implementation without any downcast (spec §9
// "polymorphic callback dispatch" — a struct of function pointers whose
// bodies close over a strongly typed owner, no free-function-plus-context
// downcast required).
type callbackTable struct {
	owner Callbacks

	getPlaceholderInfo uintptr
	getFileData        uintptr
	queryFileName      uintptr
	startEnum          uintptr
	getEnum            uintptr
	endEnum            uintptr
	notify             uintptr
}

func newCallbackTable(owner Callbacks) *callbackTable {
	t := &callbackTable{owner: owner}
	t.getPlaceholderInfo = syscall.NewCallback(t.onGetPlaceholderInfo)
	t.getFileData = syscall.NewCallback(t.onGetFileData)
	t.queryFileName = syscall.NewCallback(t.onQueryFileName)
	t.startEnum = syscall.NewCallback(t.onStartDirectoryEnumeration)
	t.getEnum = syscall.NewCallback(t.onGetDirectoryEnumeration)
	t.endEnum = syscall.NewCallback(t.onEndDirectoryEnumeration)
	t.notify = syscall.NewCallback(t.onNotify)
	return t
}

// asPRJCallbacks returns a pointer suitable for the PRJ_CALLBACKS structure
// PrjStartVirtualizing expects. The exact struct layout is owned by
// ProjectedFSLib.h; here it is represented as an opaque array of function
// pointers in the documented field order so the binding compiles against a
// real header without redeclaring Windows-owned struct tags.
func (t *callbackTable) asPRJCallbacks() *[7]uintptr {
	return &[7]uintptr{
		t.startEnum,
		t.getEnum,
		t.endEnum,
		t.getPlaceholderInfo,
		t.getFileData,
		t.queryFileName,
		t.notify,
	}
}

func utf16PtrToString(p *uint16) string {
	if p == nil {
		return ""
	}
	return windows.UTF16PtrToString(p)
}

func (t *callbackTable) onGetPlaceholderInfo(callbackDataPathName *uint16) uintptr {
	info, status := t.owner.GetPlaceholderInfo(utf16PtrToString(callbackDataPathName))
	_ = info // real binding would marshal info into PRJ_PLACEHOLDER_INFO here.
	return uintptr(toNTStatus(status))
}

func (t *callbackTable) onGetFileData(callbackDataPathName *uint16, commandID int32, byteOffset, length uint64) uintptr {
	status := t.owner.GetFileData(utf16PtrToString(callbackDataPathName), commandID, byteOffset, length, FileHandle{})
	return uintptr(toNTStatus(status))
}

func (t *callbackTable) onQueryFileName(callbackDataPathName *uint16) uintptr {
	status := t.owner.QueryFileName(utf16PtrToString(callbackDataPathName))
	return uintptr(toNTStatus(status))
}

func (t *callbackTable) onStartDirectoryEnumeration(enumerationID *windows.GUID, callbackDataPathName *uint16) uintptr {
	status := t.owner.StartDirectoryEnumeration(windowsGUIDToGo(enumerationID), utf16PtrToString(callbackDataPathName))
	return uintptr(toNTStatus(status))
}

func (t *callbackTable) onGetDirectoryEnumeration(enumerationID *windows.GUID, searchExpression *uint16, restartScan uintptr, dirEntryBufferHandle uintptr) uintptr {
	w := &prjDirEntryWriter{bufferHandle: dirEntryBufferHandle}
	status := t.owner.GetDirectoryEnumeration(windowsGUIDToGo(enumerationID), utf16PtrToString(searchExpression), restartScan != 0, w)
	return uintptr(toNTStatus(status))
}

func (t *callbackTable) onEndDirectoryEnumeration(enumerationID *windows.GUID) uintptr {
	status := t.owner.EndDirectoryEnumeration(windowsGUIDToGo(enumerationID))
	return uintptr(toNTStatus(status))
}

func (t *callbackTable) onNotify(callbackDataPathName *uint16, isDirectory uintptr, notification uint32) uintptr {
	status := t.owner.Notify(utf16PtrToString(callbackDataPathName), ntNotificationToKind(notification), isDirectory != 0)
	return uintptr(toNTStatus(status))
}

func windowsGUIDToGo(g *windows.GUID) uuid.UUID {
	if g == nil {
		return uuid.Nil
	}
	var id uuid.UUID
	binary.BigEndian.PutUint32(id[0:4], g.Data1)
	binary.BigEndian.PutUint16(id[4:6], g.Data2)
	binary.BigEndian.PutUint16(id[6:8], g.Data3)
	copy(id[8:16], g.Data4[:])
	return id
}

func ntNotificationToKind(n uint32) NotificationKind {
	switch n {
	case prjNotifyPreDelete:
		return NotificationPreDelete
	case prjNotifyPreRename:
		return NotificationPreRename
	case prjNotifyPreSetHardlink:
		return NotificationPreSetHardlink
	case prjNotifyFileOverwritten:
		return NotificationFileOverwritten
	case prjNotifyNewFileCreated:
		return NotificationNewFileCreated
	case prjNotifyFileRenamed:
		return NotificationFileRenamed
	case prjNotifyHardlinkCreated:
		return NotificationHardlinkCreated
	case prjNotifyFileHandleClosedNoModification:
		return NotificationFileHandleClosedNoModification
	case prjNotifyFileHandleClosedFileModified:
		return NotificationFileHandleClosedFileModified
	case prjNotifyFileHandleClosedFileDeleted:
		return NotificationFileHandleClosedFileDeleted
	case prjNotifyFileOpened:
		return NotificationFileOpened
	default:
		// Not a kind notify.Policy knows, so Classify denies it.
		return NotificationKind(-1)
	}
}

// prjDirEntryWriter adapts PrjFillDirEntryBuffer to our DirEntryWriter.
type prjDirEntryWriter struct {
	bufferHandle uintptr
}

func (w *prjDirEntryWriter) WriteEntry(info FileInfo) (bool, error) {
	namePtr, err := windows.UTF16PtrFromString(info.Name)
	if err != nil {
		return false, err
	}
	var basicInfo [40]byte // PRJ_FILE_BASIC_INFO-sized scratch buffer.
	binary.LittleEndian.PutUint64(basicInfo[8:16], info.SizeBytes)
	r1, _, _ := procPrjFillDirEntryBuffer.Call(
		uintptr(unsafe.Pointer(namePtr)),
		uintptr(unsafe.Pointer(&basicInfo[0])),
		w.bufferHandle,
	)
	// HRESULT_FROM_WIN32(ERROR_INSUFFICIENT_BUFFER): no room for this entry.
	const hrInsufficientBuffer uint32 = 0x8007007A
	hr := uint32(r1)
	if hr == hrInsufficientBuffer {
		return false, nil
	}
	if hr != 0 {
		return true, fmt.Errorf("PrjFillDirEntryBuffer: HRESULT 0x%x", hr)
	}
	return true, nil
}
