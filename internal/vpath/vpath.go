// Package vpath implements canonicalization for virtual paths (spec §3):
// absolute, forward-slash-separated, rooted at "/". Paths arriving from the
// kernel are relative and backslash-separated; Normalize converts them to
// canonical form.
package vpath

import "strings"

// Root is the canonical path of the projection root.
const Root = "/"

// Normalize converts a kernel-supplied relative, backslash-separated path
// (or an already-canonical one) into canonical form: forward slashes,
// leading "/", any drive letter stripped, duplicate separators collapsed,
// and no trailing separator except at the root.
func Normalize(raw string) string {
	s := strings.ReplaceAll(raw, "\\", "/")

	// Strip a leading drive letter such as "C:/foo" or "c:foo".
	if len(s) >= 2 && s[1] == ':' && isASCIILetter(s[0]) {
		s = s[2:]
	}

	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}

	segments := splitNonEmpty(s)
	if len(segments) == 0 {
		return Root
	}
	return "/" + strings.Join(segments, "/")
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func splitNonEmpty(s string) []string {
	parts := strings.Split(s, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Segments splits a canonical path into its non-empty components. The root
// path yields an empty slice.
func Segments(canonical string) []string {
	return splitNonEmpty(canonical)
}

// Depth returns the number of segments in a canonical path. The root has
// depth 0.
func Depth(canonical string) int {
	return len(Segments(canonical))
}

// Parent returns the canonical parent of a canonical path. The parent of
// the root is the root itself.
func Parent(canonical string) string {
	segments := Segments(canonical)
	if len(segments) <= 1 {
		return Root
	}
	return "/" + strings.Join(segments[:len(segments)-1], "/")
}

// Base returns the last path segment (the display name) of a canonical
// path. The base of the root is the empty string.
func Base(canonical string) string {
	segments := Segments(canonical)
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}

// Join appends a child name to a canonical parent path.
func Join(parentCanonical, name string) string {
	if parentCanonical == Root {
		return Root + name
	}
	return parentCanonical + "/" + name
}

// IsRoot reports whether a canonical path is the root.
func IsRoot(canonical string) bool {
	return canonical == Root
}

// HasPrefix reports whether canonical is equal to prefix or is contained
// within the subtree rooted at prefix.
func HasPrefix(canonical, prefix string) bool {
	if prefix == Root {
		return true
	}
	if canonical == prefix {
		return true
	}
	return strings.HasPrefix(canonical, prefix+"/")
}

// IsValidName reports whether name is usable as a single path component: it
// must be non-empty and free of path separators (spec §4.2 edge cases).
func IsValidName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "/\\")
}
