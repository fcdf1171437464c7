// Package accelerator decodes and encodes RT_ACCELERATOR tables.
package accelerator

import (
	"fmt"
	"strings"

	"github.com/meigma/peres/internal/binutil"
	"github.com/meigma/peres/internal/restype"
)

// Accelerator flags (fFlags).
const (
	FlagVirtKey  = 0x01
	FlagNoInvert = 0x02
	FlagShift    = 0x04
	FlagControl  = 0x08
	FlagAlt      = 0x10

	flagEnd = 0x80
)

const entrySize = 8

// Entry is one ACCELTABLEENTRY.
type Entry struct {
	// Flags holds the modifier flags. The end-of-table bit is managed by the
	// encoder.
	Flags uint16

	// Key is a virtual key code when FlagVirtKey is set, otherwise a character.
	Key uint16

	// ID is the command identifier sent by the accelerator.
	ID uint16

	// Padding is the trailing WORD of the entry, normally zero.
	Padding uint16
}

// String renders the entry in resource-script form.
func (e Entry) String() string {
	var b strings.Builder
	if e.Flags&FlagVirtKey != 0 {
		fmt.Fprintf(&b, "0x%02X, %d, VIRTKEY", e.Key, e.ID)
	} else {
		fmt.Fprintf(&b, "%q, %d, ASCII", rune(e.Key), e.ID)
	}
	for _, f := range []struct {
		bit  uint16
		name string
	}{{FlagNoInvert, "NOINVERT"}, {FlagShift, "SHIFT"}, {FlagControl, "CONTROL"}, {FlagAlt, "ALT"}} {
		if e.Flags&f.bit != 0 {
			b.WriteString(", ")
			b.WriteString(f.name)
		}
	}
	return b.String()
}

// Table is an RT_ACCELERATOR resource.
type Table struct {
	Entries []Entry

	// Trailer holds resource bytes after the last entry.
	Trailer []byte
}

// Decode parses an accelerator table. The table ends at the first entry with
// the end bit set.
func Decode(data []byte) (*Table, error) {
	r := binutil.NewReader(data)
	t := &Table{}
	for r.Len() > 0 {
		if r.Len() < entrySize {
			return t, fmt.Errorf("%w: accelerator entry %d", restype.ErrTruncatedResource, len(t.Entries))
		}
		flags, _ := r.Uint16()
		var e Entry
		e.Flags = flags &^ flagEnd
		e.Key, _ = r.Uint16()
		e.ID, _ = r.Uint16()
		e.Padding, _ = r.Uint16()
		t.Entries = append(t.Entries, e)
		if flags&flagEnd != 0 {
			if rest := r.Rest(); len(rest) > 0 {
				t.Trailer = append([]byte(nil), rest...)
			}
			return t, nil
		}
	}
	if len(t.Entries) > 0 {
		return t, fmt.Errorf("%w: accelerator table has no last entry", restype.ErrTruncatedResource)
	}
	return t, nil
}

// MarshalBinary encodes the table, setting the end bit on the final entry only.
func (t *Table) MarshalBinary() ([]byte, error) {
	w := binutil.NewWriter(len(t.Entries)*entrySize + len(t.Trailer))
	for i, e := range t.Entries {
		flags := e.Flags &^ flagEnd
		if i == len(t.Entries)-1 {
			flags |= flagEnd
		}
		w.Uint16(flags)
		w.Uint16(e.Key)
		w.Uint16(e.ID)
		w.Uint16(e.Padding)
	}
	w.Write(t.Trailer)
	return w.Bytes(), nil
}

// Find returns the first entry bound to command id.
func (t *Table) Find(id uint16) (Entry, bool) {
	for _, e := range t.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Codec adapts accelerator tables to the codec registry.
type Codec struct{}

// Decode implements the registry decode hook.
func (Codec) Decode(data []byte, _ uint16) (any, error) {
	p, err := Decode(data)
	if p == nil {
		return nil, err
	}
	return p, err
}

// Encode implements the registry encode hook.
func (Codec) Encode(payload any) ([]byte, error) {
	t, ok := payload.(*Table)
	if !ok {
		return nil, fmt.Errorf("%w: accelerator codec cannot encode %T", restype.ErrUnsupportedKind, payload)
	}
	return t.MarshalBinary()
}
