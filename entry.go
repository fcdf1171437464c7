package peres

import (
	"bytes"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"weak"

	"github.com/opencontainers/go-digest"
)

// Entry is one leaf of the resource directory: the data of a single
// (type, name, language) triple.
//
// The typed payload is decoded on first access through the registry and
// cached. Concurrent readers are safe; mutation is not.
type Entry struct {
	typ      ID
	name     ID
	lang     uint16
	codepage uint32
	raw      []byte
	state    atomic.Pointer[decodeState]
	reg      *Registry
	dir      weak.Pointer[Directory]
}

// decodeState is the published result of a decode or SetPayload.
//
// baseline is the encoding of the payload as it was published. While the
// payload still encodes to baseline it is unmodified and the entry's raw
// bytes are written instead.
type decodeState struct {
	codec    Codec
	payload  any
	err      error
	baseline []byte
}

// Type returns the resource type.
func (e *Entry) Type() ID { return e.typ }

// Name returns the resource name.
func (e *Entry) Name() ID { return e.name }

// Lang returns the language id.
func (e *Entry) Lang() uint16 { return e.lang }

// Codepage returns the code page recorded in the data entry.
func (e *Entry) Codepage() uint32 { return e.codepage }

// SetCodepage sets the code page written to the data entry.
func (e *Entry) SetCodepage(cp uint32) { e.codepage = cp }

// Detached reports whether the entry has been removed from its directory.
func (e *Entry) Detached() bool { return e.dir.Value() == nil }

func (e *Entry) key() string {
	return fmt.Sprintf("%s/%s/%d", TypeString(e.typ), e.name, e.lang)
}

func (e *Entry) registry() *Registry {
	if e.reg != nil {
		return e.reg
	}
	return DefaultRegistry()
}

// Payload returns the decoded payload, decoding it on first call. A decode
// failure is returned as a *DecodeError on this and every later call until
// the entry is reset with SetRaw or SetPayload.
func (e *Entry) Payload() (any, error) {
	if s := e.state.Load(); s != nil {
		return s.payload, s.err
	}
	d := e.dir.Value()
	if d == nil {
		s := e.decode(e.registry())
		if !e.state.CompareAndSwap(nil, s) {
			s = e.state.Load()
		}
		return s.payload, s.err
	}
	v, _, _ := d.decodeGroup.Do(e.key(), func() (any, error) {
		if s := e.state.Load(); s != nil {
			return s, nil
		}
		s := e.decode(e.registry())
		e.state.Store(s)
		if s.err != nil {
			d.log().Debug("resource decode failed", slog.String("entry", e.key()), slog.Any("error", s.err))
		}
		return s, nil
	})
	s := v.(*decodeState) //nolint:forcetypeassert // Do always returns a *decodeState
	return s.payload, s.err
}

func (e *Entry) decode(reg *Registry) *decodeState {
	codec := reg.Lookup(e.typ)
	p, err := codec.Decode(e.raw, e.lang)
	if err != nil {
		return &decodeState{codec: codec, err: &DecodeError{
			Type:    e.typ,
			Name:    e.name,
			Lang:    e.lang,
			Err:     err,
			Partial: p,
		}}
	}
	s := &decodeState{codec: codec, payload: p}
	if b, err := codec.Encode(p); err == nil {
		s.baseline = b
	}
	return s
}

// materialized returns the decode state if the entry holds a usable payload.
func (e *Entry) materialized() *decodeState {
	if s := e.state.Load(); s != nil && s.err == nil {
		return s
	}
	return nil
}

// Bytes returns the encoded resource data. A decoded payload that was
// edited in place is re-encoded; an unmodified one returns the loaded bytes
// unchanged. The returned slice must not be modified.
func (e *Entry) Bytes() ([]byte, error) {
	if s := e.materialized(); s != nil {
		b, err := s.codec.Encode(s.payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", e.key(), err)
		}
		if s.baseline != nil && bytes.Equal(b, s.baseline) {
			return e.raw, nil
		}
		return b, nil
	}
	return e.raw, nil
}

// Size returns the length of the data Bytes returns.
func (e *Entry) Size() (int, error) {
	b, err := e.Bytes()
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Digest returns the sha256 digest of the encoded data.
func (e *Entry) Digest() (digest.Digest, error) {
	b, err := e.Bytes()
	if err != nil {
		return "", err
	}
	return digest.FromBytes(b), nil
}

// SetPayload replaces the payload. It is encoded immediately so a payload of
// the wrong type or an invalid tree is rejected here rather than on save.
func (e *Entry) SetPayload(payload any) error {
	return e.setPayload(e.registry().Lookup(e.typ), payload)
}

func (e *Entry) setPayload(codec Codec, payload any) error {
	b, err := codec.Encode(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.key(), err)
	}
	e.raw = slices.Clone(b)
	e.state.Store(&decodeState{codec: codec, payload: payload, baseline: b})
	return nil
}

// SetRaw replaces the data with a copy of b and drops any decoded payload.
func (e *Entry) SetRaw(b []byte) {
	e.raw = slices.Clone(b)
	e.state.Store(nil)
}

// As returns the payload of e as a T.
func As[T any](e *Entry) (T, error) {
	var zero T
	p, err := e.Payload()
	if err != nil {
		return zero, err
	}
	v, ok := p.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s holds %T, not %T", ErrUnsupportedKind, e.key(), p, zero)
	}
	return v, nil
}
