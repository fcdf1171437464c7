// Package binutil provides the little-endian cursor primitives shared by the
// resource codecs.
//
// UTF-16 text is converted with package wtf8, so strings holding unpaired
// surrogates round-trip unchanged.
package binutil

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/peres/internal/restype"
	"github.com/meigma/peres/internal/wtf8"
)

// Reader is a bounds-checked cursor over a resource buffer.
//
// Offsets are relative to the start of the buffer, so alignment is relative
// to the start of the resource.
type Reader struct {
	data []byte
	off  int
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Offset returns the current cursor position.
func (r *Reader) Offset() int { return r.off }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.data) - r.off }

// Size returns the total size of the underlying buffer.
func (r *Reader) Size() int { return len(r.data) }

// Seek moves the cursor to an absolute offset.
func (r *Reader) Seek(off int) error {
	if off < 0 || off > len(r.data) {
		return fmt.Errorf("%w: seek to %d past end %d", restype.ErrTruncatedResource, off, len(r.data))
	}
	r.off = off
	return nil
}

func (r *Reader) need(n int) error {
	if n < 0 || r.off+n > len(r.data) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", restype.ErrTruncatedResource, n, r.off, r.Len())
	}
	return nil
}

// Uint8 reads one byte.
func (r *Reader) Uint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

// Bytes returns the next n bytes. The returned slice aliases the buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.off : r.off+n : r.off+n]
	r.off += n
	return b, nil
}

// Rest returns all unread bytes and moves the cursor to the end.
func (r *Reader) Rest() []byte {
	b := r.data[r.off:len(r.data):len(r.data)]
	r.off = len(r.data)
	return b
}

// UTF16String reads a null-terminated UTF-16LE string and leaves the cursor
// just past the terminator.
func (r *Reader) UTF16String() (string, error) {
	start := r.off
	var units []uint16
	for {
		if r.off+2 > len(r.data) {
			r.off = start
			return "", fmt.Errorf("%w: unterminated string at offset %d", restype.ErrTruncatedResource, start)
		}
		u := binary.LittleEndian.Uint16(r.data[r.off:])
		r.off += 2
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return wtf8.Decode(units), nil
}

// UTF16N reads n UTF-16LE code units without a terminator.
func (r *Reader) UTF16N(n int) (string, error) {
	b, err := r.Bytes(n * 2)
	if err != nil {
		return "", err
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return wtf8.Decode(units), nil
}

// Align advances the cursor to the next multiple of n, stopping at the end of
// the buffer.
func (r *Reader) Align(n int) {
	r.off = AlignUp(r.off, n)
	if r.off > len(r.data) {
		r.off = len(r.data)
	}
}

// AlignUp rounds off up to the next multiple of n. n must be a power of two.
func AlignUp(off, n int) int {
	return (off + n - 1) &^ (n - 1)
}
