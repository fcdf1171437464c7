// Package version decodes and encodes RT_VERSION resources (VS_VERSIONINFO).
//
// A version resource is a tree of blocks. Each block has a length, a key, an
// optional value and child blocks, with DWORD padding after the key and after
// the value. The package keeps the full block tree so that blocks it has no
// typed accessor for survive a round trip unchanged.
package version

import (
	"fmt"

	"github.com/meigma/peres/internal/binutil"
	"github.com/meigma/peres/internal/restype"
)

const blockHeaderSize = 6

// Block is one node of a version resource.
type Block struct {
	// Key is the block name, for example "StringFileInfo" or "CompanyName".
	Key string

	// Text reports whether Value holds UTF-16 text (wType 1). The value
	// length of text blocks is counted in WCHARs.
	Text bool

	// Value is the raw value bytes.
	Value []byte

	// Children are the nested blocks.
	Children []*Block

	// Trailing holds bytes counted by the stored block length after the
	// last child. Setters clear it.
	Trailing []byte

	// valueLength is the stored wValueLength when it disagrees with Value,
	// as written by tools that count text in bytes. Valid if keepLength.
	valueLength uint16
	keepLength  bool
}

// Child returns the first child with the given key.
func (b *Block) Child(key string) *Block {
	for _, c := range b.Children {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// TextValue decodes a text value up to its terminator.
func (b *Block) TextValue() string {
	r := binutil.NewReader(b.Value)
	s, err := r.UTF16String()
	if err != nil {
		s, _ = binutil.NewReader(b.Value).UTF16N(len(b.Value) / 2)
	}
	return s
}

// SetTextValue stores s as a null-terminated text value.
func (b *Block) SetTextValue(s string) {
	w := binutil.NewWriter(len(s)*2 + 2)
	w.UTF16String(s)
	b.Text = true
	b.setValue(w.Bytes())
}

// setValue replaces the value and drops the stored layout around it.
func (b *Block) setValue(v []byte) {
	b.Value = v
	b.Trailing = nil
	b.keepLength = false
}

// wantLength returns the wValueLength that describes Value.
func (b *Block) wantLength() int {
	if b.Text {
		return len(b.Value) / 2
	}
	return len(b.Value)
}

func decodeBlock(r *binutil.Reader, limit int) (*Block, error) {
	start := r.Offset()
	length, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	valueLength, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	typ, err := r.Uint16()
	if err != nil {
		return nil, err
	}
	end := start + int(length)
	if int(length) < blockHeaderSize || end > limit {
		return nil, fmt.Errorf("%w: block at %d has length %d", restype.ErrTruncatedResource, start, length)
	}

	b := &Block{Text: typ == 1}
	if b.Key, err = r.UTF16String(); err != nil {
		return nil, err
	}
	if r.Offset() > end {
		return nil, fmt.Errorf("%w: key of block at %d overruns it", restype.ErrTruncatedResource, start)
	}
	contentEnd := r.Offset()
	alignWithin(r, end)

	n := int(valueLength)
	if b.Text {
		n *= 2
	}
	n = min(n, end-r.Offset())
	if n > 0 {
		value, err := r.Bytes(n)
		if err != nil {
			return nil, err
		}
		b.Value = cloneBytes(value)
		contentEnd = r.Offset()
	}
	if int(valueLength) != b.wantLength() {
		b.valueLength, b.keepLength = valueLength, true
	}

	for {
		alignWithin(r, end)
		if end-r.Offset() < blockHeaderSize {
			break
		}
		child, err := decodeBlock(r, end)
		if err != nil {
			return nil, err
		}
		b.Children = append(b.Children, child)
		contentEnd = r.Offset()
	}
	if contentEnd < end {
		if err := r.Seek(contentEnd); err != nil {
			return nil, err
		}
		trailing, err := r.Bytes(end - contentEnd)
		if err != nil {
			return nil, err
		}
		b.Trailing = cloneBytes(trailing)
	}
	return b, nil
}

func alignWithin(r *binutil.Reader, end int) {
	next := binutil.AlignUp(r.Offset(), 4)
	if next > end {
		next = end
	}
	_ = r.Seek(next) //nolint:errcheck // next is within bounds
}

// encode appends the block at the writer's current, DWORD aligned, position.
func (b *Block) encode(w *binutil.Writer) error {
	start := w.Len()
	valueLength := b.wantLength()
	if b.keepLength {
		valueLength = int(b.valueLength)
	}
	if valueLength > 0xFFFF {
		return fmt.Errorf("%w: value of block %q is too long", restype.ErrUnsupportedKind, b.Key)
	}

	w.Uint16(0) // patched below
	w.Uint16(uint16(valueLength))
	if b.Text {
		w.Uint16(1)
	} else {
		w.Uint16(0)
	}
	w.UTF16String(b.Key)
	if len(b.Value) > 0 {
		w.Align(4)
		w.Write(b.Value)
	}
	for _, c := range b.Children {
		w.Align(4)
		if err := c.encode(w); err != nil {
			return err
		}
	}
	w.Write(b.Trailing)

	length := w.Len() - start
	if length > 0xFFFF {
		return fmt.Errorf("%w: block %q is too long", restype.ErrUnsupportedKind, b.Key)
	}
	w.PutUint16At(start, uint16(length))
	return nil
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
