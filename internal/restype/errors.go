// Package restype holds definitions shared by the resource codecs and the
// top-level peres package.
package restype

import "errors"

// Sentinel errors for resource operations.
var (
	// ErrNotFound is returned when no entry matches a lookup.
	ErrNotFound = errors.New("peres: resource not found")

	// ErrMalformedManifest is returned when manifest bytes are not valid XML.
	ErrMalformedManifest = errors.New("peres: malformed manifest")

	// ErrTruncatedResource is returned when a structure runs past the end of
	// the resource data.
	ErrTruncatedResource = errors.New("peres: truncated resource")

	// ErrUnsupportedKind is returned when a payload does not match the codec
	// it is encoded with, or a resource uses a layout the codec cannot handle.
	ErrUnsupportedKind = errors.New("peres: unsupported resource kind")

	// ErrInvalidMenu is returned when a menu tree violates the item flag rules.
	ErrInvalidMenu = errors.New("peres: invalid menu")

	// ErrWriteFailed is returned when an image cannot be written.
	ErrWriteFailed = errors.New("peres: write failed")

	// ErrInvalidSection is returned when a resource section's directory tree
	// is malformed.
	ErrInvalidSection = errors.New("peres: invalid resource section")

	// ErrNoRoom is returned when a PE image has no space for a new resource
	// section.
	ErrNoRoom = errors.New("peres: no room for resource section")

	// ErrNotPE is returned when input is not a PE image.
	ErrNotPE = errors.New("peres: not a PE image")
)
