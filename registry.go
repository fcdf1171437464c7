package peres

import (
	"fmt"
	"maps"

	"github.com/meigma/peres/accelerator"
	"github.com/meigma/peres/icon"
	"github.com/meigma/peres/manifest"
	"github.com/meigma/peres/menu"
	"github.com/meigma/peres/stringtable"
	"github.com/meigma/peres/version"
)

// Codec converts between the raw bytes of one resource type and a typed
// payload.
//
// Decode may return a partial payload together with an error; the payload is
// then reported in [DecodeError.Partial] and the entry stays raw. Encode must
// reject payloads of the wrong type with [ErrUnsupportedKind].
type Codec interface {
	Decode(data []byte, lang uint16) (any, error)
	Encode(payload any) ([]byte, error)
}

// Registry maps resource types to codecs. Types without a codec use the raw
// codec, which returns the bytes as a [Raw] payload.
type Registry struct {
	codecs   map[ID]Codec
	readOnly bool
}

var defaultRegistry = newBuiltinRegistry()

func newBuiltinRegistry() *Registry {
	r := &Registry{codecs: map[ID]Codec{
		TypeManifest:    manifest.Codec{},
		TypeMenu:        menu.Codec{},
		TypeVersion:     version.Codec{},
		TypeIcon:        icon.ImageCodec{},
		TypeCursor:      icon.ImageCodec{Cursor: true},
		TypeGroupIcon:   icon.GroupCodec{},
		TypeGroupCursor: icon.GroupCodec{},
		TypeStringTable: stringtable.Codec{},
		TypeAccelerator: accelerator.Codec{},
	}}
	r.readOnly = true
	return r
}

// DefaultRegistry returns the shared registry of built-in codecs. It is
// read-only; use [NewRegistry] to add codecs.
func DefaultRegistry() *Registry { return defaultRegistry }

// NewRegistry returns a mutable copy of the default registry.
func NewRegistry() *Registry {
	return &Registry{codecs: maps.Clone(defaultRegistry.codecs)}
}

// Register installs c for typ, replacing any previous codec. It panics when
// called on the default registry.
func (r *Registry) Register(typ ID, c Codec) {
	if r.readOnly {
		panic(fmt.Sprintf("peres: Register(%s) on the default registry; use NewRegistry", TypeString(typ)))
	}
	if c == nil {
		delete(r.codecs, typ)
		return
	}
	r.codecs[typ] = c
}

// Lookup returns the codec for typ, or the raw codec if none is registered.
func (r *Registry) Lookup(typ ID) Codec {
	if c, ok := r.codecs[typ]; ok {
		return c
	}
	return rawCodec{}
}
