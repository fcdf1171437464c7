// Package menu decodes and encodes RT_MENU resources in both the standard
// MENU template layout and the extended MENUEX layout.
//
// Both layouts store a tree of items as a flat stream: an item that opens a
// submenu is followed directly by its children, and the last item of every
// list carries an end flag. No lengths are stored, so the decoder is driven
// entirely by the flags of the item it has just read.
package menu

import (
	"fmt"
	"strings"

	"github.com/meigma/peres/internal/binutil"
	"github.com/meigma/peres/internal/restype"
)

// Template versions stored in the first header word.
const (
	versionStandard = 0
	versionExtended = 1
)

// Standard MENU item option flags (mtOption).
const (
	FlagGrayed       = 0x0001
	FlagInactive     = 0x0002
	FlagBitmap       = 0x0004
	FlagChecked      = 0x0008
	FlagPopup        = 0x0010
	FlagMenuBarBreak = 0x0020
	FlagMenuBreak    = 0x0040
	FlagEnd          = 0x0080
	FlagOwnerDraw    = 0x0100
	FlagSeparator    = 0x0800
	FlagHelp         = 0x4000
)

// MENUEX item types (dwType).
const (
	TypeString       = 0x00000000
	TypeBitmap       = 0x00000004
	TypeMenuBarBreak = 0x00000020
	TypeMenuBreak    = 0x00000040
	TypeOwnerDraw    = 0x00000100
	TypeRadioCheck   = 0x00000200
	TypeSeparator    = 0x00000800
	TypeRightOrder   = 0x00002000
	TypeRightJustify = 0x00004000
)

// MENUEX item states (dwState).
const (
	StateGrayed  = 0x00000003
	StateChecked = 0x00000008
	StateHilite  = 0x00000080
	StateDefault = 0x00001000
)

// MENUEX bResInfo bits.
const (
	resPopup = 0x01
	resEnd   = 0x80
)

// Menu is a decoded RT_MENU resource.
type Menu struct {
	// Extended selects the MENUEX layout.
	Extended bool

	// HelpID is the context help id of the whole menu (MENUEX only).
	HelpID uint32

	// HeaderExtra holds header bytes between the fixed header and the first
	// item. It is normally empty.
	HeaderExtra []byte

	// Items is the top-level item list.
	Items []*Item

	// Trailer holds bytes found after the top-level list ended.
	Trailer []byte
}

// Item is one menu entry. An item with children is a popup.
type Item struct {
	// Type holds the MENUEX dwType, or the standard option flags without
	// FlagPopup and FlagEnd, which are derived from the tree shape.
	Type uint32

	// State is the MENUEX dwState.
	State uint32

	// ID is the command id. Standard popups do not store one.
	ID uint32

	// HelpID is the context help id of a MENUEX popup.
	HelpID uint32

	// Text is the display string. Separators have none.
	Text string

	// Children is the submenu opened by this item.
	Children []*Item
}

// IsPopup reports whether the item opens a submenu.
func (it *Item) IsPopup() bool { return len(it.Children) > 0 }

// IsSeparator reports whether the item is flagged as a separator.
func (it *Item) IsSeparator() bool { return it.Type&TypeSeparator != 0 }

// New returns an empty menu in the requested layout.
func New(extended bool) *Menu {
	return &Menu{Extended: extended}
}

// Decode parses an RT_MENU resource.
//
// When an item runs past the end of data, Decode returns the items decoded so
// far together with an error wrapping restype.ErrTruncatedResource.
func Decode(data []byte) (*Menu, error) {
	r := binutil.NewReader(data)
	version, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	offset, err := r.Uint16()
	if err != nil {
		return nil, err
	}

	m := &Menu{}
	var list func(*binutil.Reader) ([]*Item, error)
	switch version {
	case versionStandard:
		extra, err := r.Bytes(int(offset))
		if err != nil {
			return nil, err
		}
		m.HeaderExtra = cloneBytes(extra)
		list = decodeList
	case versionExtended:
		m.Extended = true
		if offset < 4 {
			return nil, fmt.Errorf("%w: menuex header offset %d", restype.ErrUnsupportedKind, offset)
		}
		if m.HelpID, err = r.Uint32(); err != nil {
			return nil, err
		}
		extra, err := r.Bytes(int(offset) - 4)
		if err != nil {
			return nil, err
		}
		m.HeaderExtra = cloneBytes(extra)
		list = decodeExList
	default:
		return nil, fmt.Errorf("%w: menu template version %d", restype.ErrUnsupportedKind, version)
	}

	if r.Len() == 0 {
		return m, nil
	}
	m.Items, err = list(r)
	if err != nil {
		return m, err
	}
	m.Trailer = cloneBytes(r.Rest())
	return m, nil
}

// MarshalBinary encodes the menu, recomputing the popup and end flags from the
// tree shape.
func (m *Menu) MarshalBinary() ([]byte, error) {
	w := binutil.NewWriter(256)
	if m.Extended {
		w.Uint16(versionExtended)
		w.Uint16(uint16(4 + len(m.HeaderExtra))) //nolint:gosec // header extra is tiny
		w.Uint32(m.HelpID)
		w.Write(m.HeaderExtra)
		if err := encodeExList(w, m.Items); err != nil {
			return nil, err
		}
	} else {
		w.Uint16(versionStandard)
		w.Uint16(uint16(len(m.HeaderExtra))) //nolint:gosec // header extra is tiny
		w.Write(m.HeaderExtra)
		if err := encodeList(w, m.Items); err != nil {
			return nil, err
		}
	}
	w.Write(m.Trailer)
	return w.Bytes(), nil
}

// Walk calls fn for every item in depth-first order. Returning false from fn
// stops the walk.
func (m *Menu) Walk(fn func(item *Item, depth int) bool) {
	walk(m.Items, 0, fn)
}

func walk(items []*Item, depth int, fn func(*Item, int) bool) bool {
	for _, it := range items {
		if !fn(it, depth) {
			return false
		}
		if !walk(it.Children, depth+1, fn) {
			return false
		}
	}
	return true
}

// Find returns the first non-popup item with the given command id.
func (m *Menu) Find(id uint32) *Item {
	var found *Item
	m.Walk(func(it *Item, _ int) bool {
		if !it.IsPopup() && it.ID == id {
			found = it
			return false
		}
		return true
	})
	return found
}

// String renders the menu in resource script syntax.
func (m *Menu) String() string {
	var sb strings.Builder
	if m.Extended {
		sb.WriteString("MENUEX\n")
	} else {
		sb.WriteString("MENU\n")
	}
	writeScript(&sb, m.Items, 0, m.Extended)
	return sb.String()
}

func writeScript(sb *strings.Builder, items []*Item, depth int, extended bool) {
	indent := strings.Repeat("  ", depth)
	sb.WriteString(indent + "BEGIN\n")
	for _, it := range items {
		sb.WriteString(indent + "  ")
		switch {
		case it.IsPopup():
			fmt.Fprintf(sb, "POPUP %q", it.Text)
			if extended && (it.ID != 0 || it.HelpID != 0) {
				fmt.Fprintf(sb, ", %d, %d, %d, %d", it.ID, it.Type, it.State, it.HelpID)
			}
			sb.WriteString("\n")
			writeScript(sb, it.Children, depth+1, extended)
		case it.IsSeparator() || (!extended && it.Text == "" && it.ID == 0):
			sb.WriteString("MENUITEM SEPARATOR\n")
		default:
			fmt.Fprintf(sb, "MENUITEM %q, %d\n", it.Text, it.ID)
		}
	}
	sb.WriteString(indent + "END\n")
}

func (it *Item) validate() error {
	if it.IsSeparator() && (it.Text != "" || len(it.Children) > 0) {
		return fmt.Errorf("%w: separator %d has text or children", restype.ErrInvalidMenu, it.ID)
	}
	return nil
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}

// Codec adapts the package to the peres codec registry.
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
	m, ok := payload.(*Menu)
	if !ok {
		return nil, fmt.Errorf("%w: menu codec cannot encode %T", restype.ErrUnsupportedKind, payload)
	}
	return m.MarshalBinary()
}
