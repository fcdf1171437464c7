package icon

import (
	"fmt"

	"github.com/meigma/peres/internal/binutil"
	"github.com/meigma/peres/internal/restype"
)

// Resource directory types (idType).
const (
	TypeIcon   = 1
	TypeCursor = 2
)

const (
	groupHeaderSize = 6
	groupEntrySize  = 14
)

// Group is an RT_GROUP_ICON or RT_GROUP_CURSOR directory.
type Group struct {
	// Cursor marks a cursor directory (idType 2).
	Cursor bool

	// Reserved is the idReserved header word, normally zero.
	Reserved uint16

	// Entries describe the images in the group.
	Entries []GroupEntry

	// Trailer holds resource bytes after the last entry.
	Trailer []byte
}

// GroupEntry is GRPICONDIRENTRY for icons and the equivalent cursor entry.
// For icons Width and Height are stored in one byte each, zero meaning 256;
// cursors store them as words and have no color count.
type GroupEntry struct {
	Width      uint16
	Height     uint16
	ColorCount uint8
	Reserved   uint8
	Planes     uint16
	BitCount   uint16
	BytesInRes uint32
	ID         uint16
}

// DecodeGroup parses a group directory.
func DecodeGroup(data []byte) (*Group, error) {
	r := binutil.NewReader(data)
	g := &Group{}
	var err error
	if g.Reserved, err = r.Uint16(); err != nil {
		return nil, err
	}
	typ, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	switch typ {
	case TypeIcon:
	case TypeCursor:
		g.Cursor = true
	default:
		return nil, fmt.Errorf("%w: group type %d", restype.ErrUnsupportedKind, typ)
	}
	count, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	if r.Len() < int(count)*groupEntrySize {
		return nil, fmt.Errorf("%w: %d group entries need %d bytes, have %d",
			restype.ErrTruncatedResource, count, int(count)*groupEntrySize, r.Len())
	}

	g.Entries = make([]GroupEntry, count)
	for i := range g.Entries {
		g.Entries[i] = readEntry(r, g.Cursor)
	}
	if rest := r.Rest(); len(rest) > 0 {
		g.Trailer = append([]byte(nil), rest...)
	}
	return g, nil
}

// readEntry reads one entry whose bytes are known to be present.
func readEntry(r *binutil.Reader, cursor bool) GroupEntry {
	var e GroupEntry
	if cursor {
		e.Width, _ = r.Uint16()
		e.Height, _ = r.Uint16()
	} else {
		w, _ := r.Uint8()
		h, _ := r.Uint8()
		e.Width, e.Height = uint16(w), uint16(h)
		e.ColorCount, _ = r.Uint8()
		e.Reserved, _ = r.Uint8()
	}
	e.Planes, _ = r.Uint16()
	e.BitCount, _ = r.Uint16()
	e.BytesInRes, _ = r.Uint32()
	e.ID, _ = r.Uint16()
	return e
}

// MarshalBinary encodes the group directory.
func (g *Group) MarshalBinary() ([]byte, error) {
	if len(g.Entries) > 0xFFFF {
		return nil, fmt.Errorf("%w: %d group entries", restype.ErrUnsupportedKind, len(g.Entries))
	}
	w := binutil.NewWriter(groupHeaderSize + len(g.Entries)*groupEntrySize + len(g.Trailer))
	w.Uint16(g.Reserved)
	if g.Cursor {
		w.Uint16(TypeCursor)
	} else {
		w.Uint16(TypeIcon)
	}
	w.Uint16(uint16(len(g.Entries)))
	for _, e := range g.Entries {
		if g.Cursor {
			w.Uint16(e.Width)
			w.Uint16(e.Height)
		} else {
			if e.Width > 0xFF || e.Height > 0xFF {
				return nil, fmt.Errorf("%w: icon entry %d is %dx%d, store 256 as 0",
					restype.ErrUnsupportedKind, e.ID, e.Width, e.Height)
			}
			w.Uint8(uint8(e.Width))
			w.Uint8(uint8(e.Height))
			w.Uint8(e.ColorCount)
			w.Uint8(e.Reserved)
		}
		w.Uint16(e.Planes)
		w.Uint16(e.BitCount)
		w.Uint32(e.BytesInRes)
		w.Uint16(e.ID)
	}
	w.Write(g.Trailer)
	return w.Bytes(), nil
}

// IDs returns the image resource ids referenced by the group.
func (g *Group) IDs() []uint16 {
	ids := make([]uint16, len(g.Entries))
	for i, e := range g.Entries {
		ids[i] = e.ID
	}
	return ids
}

// GroupCodec adapts group directories to the codec registry.
type GroupCodec struct{}

// Decode implements the registry decode hook.
func (GroupCodec) Decode(data []byte, _ uint16) (any, error) {
	p, err := DecodeGroup(data)
	if p == nil {
		return nil, err
	}
	return p, err
}

// Encode implements the registry encode hook.
func (GroupCodec) Encode(payload any) ([]byte, error) {
	g, ok := payload.(*Group)
	if !ok {
		return nil, fmt.Errorf("%w: group codec cannot encode %T", restype.ErrUnsupportedKind, payload)
	}
	return g.MarshalBinary()
}
