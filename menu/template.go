package menu

import (
	"fmt"

	"github.com/meigma/peres/internal/binutil"
	"github.com/meigma/peres/internal/restype"
)

// decodeList reads a standard MENU item list up to and including the item
// flagged FlagEnd.
func decodeList(r *binutil.Reader) ([]*Item, error) {
	var items []*Item
	for {
		option, err := r.Uint16()
		if err != nil {
			return items, err
		}
		it := &Item{Type: uint32(option &^ (FlagPopup | FlagEnd))}
		if option&FlagPopup == 0 {
			id, err := r.Uint16()
			if err != nil {
				return items, err
			}
			it.ID = uint32(id)
		}
		if it.Text, err = r.UTF16String(); err != nil {
			return items, err
		}
		items = append(items, it)

		if option&FlagPopup != 0 {
			children, err := decodeList(r)
			it.Children = children
			if err != nil {
				return items, err
			}
		}
		if option&FlagEnd != 0 {
			return items, nil
		}
	}
}

// encodeList writes a standard MENU item list. Items are WORD packed.
func encodeList(w *binutil.Writer, items []*Item) error {
	for i, it := range items {
		if err := it.validate(); err != nil {
			return err
		}
		if it.Type > 0xFFFF || it.ID > 0xFFFF {
			return fmt.Errorf("%w: item %q does not fit a standard menu", restype.ErrInvalidMenu, it.Text)
		}
		option := uint16(it.Type) &^ (FlagPopup | FlagEnd)
		if it.IsPopup() {
			option |= FlagPopup
		}
		if i == len(items)-1 {
			option |= FlagEnd
		}
		w.Uint16(option)
		if !it.IsPopup() {
			w.Uint16(uint16(it.ID))
		}
		w.UTF16String(it.Text)
		if it.IsPopup() {
			if err := encodeList(w, it.Children); err != nil {
				return err
			}
		}
	}
	return nil
}

// decodeExList reads a MENUEX item list up to and including the item whose
// bResInfo carries the end bit. Every item starts on a DWORD boundary.
func decodeExList(r *binutil.Reader) ([]*Item, error) {
	var items []*Item
	for {
		it, last, err := decodeExItem(r)
		if it != nil {
			items = append(items, it)
		}
		if err != nil {
			return items, err
		}
		if last {
			return items, nil
		}
	}
}

func decodeExItem(r *binutil.Reader) (*Item, bool, error) {
	typ, err := r.Uint32()
	if err != nil {
		return nil, false, err
	}
	state, err := r.Uint32()
	if err != nil {
		return nil, false, err
	}
	id, err := r.Uint32()
	if err != nil {
		return nil, false, err
	}
	resInfo, err := r.Uint16()
	if err != nil {
		return nil, false, err
	}
	text, err := r.UTF16String()
	if err != nil {
		return nil, false, err
	}
	r.Align(4)

	it := &Item{Type: typ, State: state, ID: id, Text: text}
	last := resInfo&resEnd != 0
	if resInfo&resPopup == 0 {
		return it, last, nil
	}

	if it.HelpID, err = r.Uint32(); err != nil {
		return it, last, err
	}
	it.Children, err = decodeExList(r)
	return it, last, err
}

// encodeExList writes a MENUEX item list, padding every item to a DWORD
// boundary before the next sibling or the first child.
func encodeExList(w *binutil.Writer, items []*Item) error {
	for i, it := range items {
		if err := it.validate(); err != nil {
			return err
		}
		var resInfo uint16
		if it.IsPopup() {
			resInfo |= resPopup
		}
		if i == len(items)-1 {
			resInfo |= resEnd
		}
		w.Uint32(it.Type)
		w.Uint32(it.State)
		w.Uint32(it.ID)
		w.Uint16(resInfo)
		w.UTF16String(it.Text)
		w.Align(4)
		if it.IsPopup() {
			w.Uint32(it.HelpID)
			if err := encodeExList(w, it.Children); err != nil {
				return err
			}
		}
	}
	return nil
}
