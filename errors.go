package peres

import (
	"fmt"

	"github.com/meigma/peres/internal/restype"
)

// Errors re-exported from internal/restype.
var (
	// ErrNotFound is returned when no entry matches a lookup.
	ErrNotFound = restype.ErrNotFound

	// ErrMalformedManifest is returned when manifest bytes are not valid XML.
	ErrMalformedManifest = restype.ErrMalformedManifest

	// ErrTruncatedResource is returned when a structure overruns its resource.
	ErrTruncatedResource = restype.ErrTruncatedResource

	// ErrUnsupportedKind is returned when a payload does not fit its codec.
	ErrUnsupportedKind = restype.ErrUnsupportedKind

	// ErrInvalidMenu is returned when a menu tree breaks the item flag rules.
	ErrInvalidMenu = restype.ErrInvalidMenu

	// ErrWriteFailed is returned when an image cannot be written.
	ErrWriteFailed = restype.ErrWriteFailed

	// ErrInvalidSection is returned when a resource section is malformed.
	ErrInvalidSection = restype.ErrInvalidSection

	// ErrNoRoom is returned when a PE image cannot take a new resource section.
	ErrNoRoom = restype.ErrNoRoom

	// ErrNotPE is returned when input is not a PE image.
	ErrNotPE = restype.ErrNotPE
)

// DecodeError reports a failure to decode one entry. The entry keeps its raw
// bytes and is written back unchanged.
type DecodeError struct {
	Type ID
	Name ID
	Lang uint16
	Err  error

	// Partial holds whatever the codec recovered before failing, such as the
	// items of a truncated menu. It may be nil.
	Partial any
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s/%s/%d: %v", TypeString(e.Type), e.Name, e.Lang, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
