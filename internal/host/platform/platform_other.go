//go:build !windows

package platform

import (
	"fmt"

	"github.com/google/uuid"
)

// otherProvider is the non-Windows stand-in Provider. ProjFS is a
// Windows-only kernel facility, so off-Windows this package can still be
// built and its Callbacks-shaped hosts can still be exercised end to end in
// tests, but nothing here talks to a real kernel driver.
type otherProvider struct{}

// NewProvider returns a Provider whose MarkDirectoryAsPlaceholder, Start and
// ClearNegativePathCache report ProjFS as unsupported; ClearStaleState is a
// no-op, and FileNameMatch and AllocateAlignedBuffer are served in-process
// (DefaultFileNameMatch and a plain Go slice). It exists so internal/host
// and its callers build and test on any OS; only platform_windows.go backs
// a real mount.
func NewProvider() Provider {
	return &otherProvider{}
}

func (otherProvider) ClearStaleState(string) error { return nil }

func (otherProvider) MarkDirectoryAsPlaceholder(string, uuid.UUID) error {
	return errUnsupported
}

func (otherProvider) Start(string, Callbacks, bool) (Instance, error) {
	return nil, errUnsupported
}

func (otherProvider) ClearNegativePathCache(Instance, string) error {
	return errUnsupported
}

func (otherProvider) FileNameMatch(name, pattern string) bool {
	return DefaultFileNameMatch(name, pattern)
}

func (otherProvider) AllocateAlignedBuffer(size int) ([]byte, func(), error) {
	buf := make([]byte, size)
	return buf, func() {}, nil
}

var errUnsupported = fmt.Errorf("platform: ProjFS is only available on Windows")
