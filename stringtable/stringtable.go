// Package stringtable decodes and encodes RT_STRING blocks.
//
// String resources are stored sixteen to a block. The block holding string id
// n has resource name (n>>4)+1 and the string sits at index n&15. Each string
// is a WORD character count followed by that many UTF-16 code units, with no
// terminator; unused slots have a zero count.
package stringtable

import (
	"fmt"

	"github.com/meigma/peres/internal/binutil"
	"github.com/meigma/peres/internal/restype"
)

// Size is the number of strings in one block.
const Size = 16

// Block is one RT_STRING resource.
type Block struct {
	Strings [Size]string

	// Trailer holds resource bytes after the sixteenth string.
	Trailer []byte
}

// BlockID returns the resource name of the block holding string id.
func BlockID(id uint16) uint16 { return id>>4 + 1 }

// Index returns the position of string id within its block.
func Index(id uint16) int { return int(id & 0xF) }

// StringID returns the string id stored at index of the block named block.
func StringID(block uint16, index int) uint16 {
	return (block-1)<<4 | uint16(index&0xF) //nolint:gosec // masked to four bits
}

// Decode parses a string block.
func Decode(data []byte) (*Block, error) {
	r := binutil.NewReader(data)
	b := &Block{}
	for i := range b.Strings {
		n, err := r.Uint16()
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
		if b.Strings[i], err = r.UTF16N(int(n)); err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
	}
	if rest := r.Rest(); len(rest) > 0 {
		b.Trailer = append([]byte(nil), rest...)
	}
	return b, nil
}

// MarshalBinary encodes the block.
func (b *Block) MarshalBinary() ([]byte, error) {
	w := binutil.NewWriter(Size*2 + len(b.Trailer))
	for i, s := range b.Strings {
		if binutil.UTF16Len(s) > 0xFFFF {
			return nil, fmt.Errorf("%w: string %d exceeds 65535 code units", restype.ErrUnsupportedKind, i)
		}
		at := w.Len()
		w.Uint16(0)
		w.PutUint16At(at, uint16(w.UTF16N(s))) //nolint:gosec // checked above
	}
	w.Write(b.Trailer)
	return w.Bytes(), nil
}

// Get returns the string for id if it belongs to the block named block.
func (b *Block) Get(block, id uint16) (string, bool) {
	if BlockID(id) != block {
		return "", false
	}
	s := b.Strings[Index(id)]
	return s, s != ""
}

// Set stores s at the slot of id.
func (b *Block) Set(id uint16, s string) { b.Strings[Index(id)] = s }

// Empty reports whether every slot is unused.
func (b *Block) Empty() bool {
	for _, s := range b.Strings {
		if s != "" {
			return false
		}
	}
	return true
}

// Codec adapts string blocks to the codec registry.
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
	b, ok := payload.(*Block)
	if !ok {
		return nil, fmt.Errorf("%w: string table codec cannot encode %T", restype.ErrUnsupportedKind, payload)
	}
	return b.MarshalBinary()
}
