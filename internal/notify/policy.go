// Package notify implements the Notification Policy (spec §4.8):
// classifying every pre- and post-operation notification the kernel
// delivers and enforcing the read-only projection.
package notify

import (
	"github.com/wisptree/vprojfs/internal/cache"
	"github.com/wisptree/vprojfs/internal/host/platform"
	"github.com/wisptree/vprojfs/internal/vpath"
)

// TombstoneInvalidator asks the platform to forget a prior deletion of a
// path (spec §4.1 "invalidate_tombstone").
type TombstoneInvalidator interface {
	InvalidateTombstone(path string) error
}

// deny lists the pre-operation notifications that must always be rejected
// to keep the projection read-only (spec §4.8).
var deny = map[platform.NotificationKind]bool{
	platform.NotificationPreDelete:       true,
	platform.NotificationPreRename:       true,
	platform.NotificationPreSetHardlink:  true,
	platform.NotificationNewFileCreated:  true,
	platform.NotificationFileOverwritten: true,
}

// allow lists notifications that are informational only and never denied.
var allow = map[platform.NotificationKind]bool{
	platform.NotificationFileOpened:                     true,
	platform.NotificationFileHandleClosedNoModification: true,
}

// observe lists post-operation notifications the policy records but never
// denies (the operation already happened on the kernel side).
var observe = map[platform.NotificationKind]bool{
	platform.NotificationFileRenamed:                  true,
	platform.NotificationHardlinkCreated:              true,
	platform.NotificationFileHandleClosedFileModified: true,
	platform.NotificationFileHandleClosedFileDeleted:  true,
}

// Policy enforces read-only semantics over the callback tree and drives
// tombstone repair for dynamically regenerated paths (spec §4.8).
type Policy struct {
	cache                *cache.Cache
	tombstones           TombstoneInvalidator
	regenerationPrefixes []string
}

// New builds a Notification Policy. regenerationPrefixes are canonical
// virtual-path prefixes (e.g. "/invites") under which a close-deleted
// event triggers tombstone repair so regenerated content can reappear.
func New(c *cache.Cache, tombstones TombstoneInvalidator, regenerationPrefixes []string) *Policy {
	return &Policy{cache: c, tombstones: tombstones, regenerationPrefixes: regenerationPrefixes}
}

// Classify decides how to respond to a single notification (spec §4.8).
// Unknown notifications default to denial.
func (p *Policy) Classify(rawPath string, kind platform.NotificationKind, isDirectory bool) platform.Status {
	path := vpath.Normalize(rawPath)

	switch {
	case deny[kind]:
		return platform.StatusAccessDenied
	case allow[kind]:
		return platform.StatusOK
	case observe[kind]:
		p.observe(path, kind)
		return platform.StatusOK
	default:
		return platform.StatusAccessDenied
	}
}

func (p *Policy) observe(path string, kind platform.NotificationKind) {
	switch kind {
	case platform.NotificationFileHandleClosedFileModified, platform.NotificationFileRenamed, platform.NotificationHardlinkCreated:
		p.cache.Invalidate(path)
	case platform.NotificationFileHandleClosedFileDeleted:
		p.cache.Invalidate(path)
		if p.underRegeneration(path) && p.tombstones != nil {
			p.tombstones.InvalidateTombstone(path)
		}
	}
}

func (p *Policy) underRegeneration(path string) bool {
	for _, prefix := range p.regenerationPrefixes {
		if vpath.HasPrefix(path, vpath.Normalize(prefix)) {
			return true
		}
	}
	return false
}
