package binutil

import (
	"encoding/binary"

	"github.com/meigma/peres/internal/wtf8"
)

// Writer accumulates little-endian resource data.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer with capacity for n bytes.
func NewWriter(n int) *Writer {
	return &Writer{buf: make([]byte, 0, n)}
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Bytes returns the written data. The slice aliases the Writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Uint8 appends one byte.
func (w *Writer) Uint8(v uint8) { w.buf = append(w.buf, v) }

// Uint16 appends a little-endian uint16.
func (w *Writer) Uint16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

// Uint32 appends a little-endian uint32.
func (w *Writer) Uint32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

// Write appends raw bytes.
func (w *Writer) Write(p []byte) { w.buf = append(w.buf, p...) }

// UTF16String appends s as UTF-16LE followed by a null terminator.
func (w *Writer) UTF16String(s string) {
	w.UTF16N(s)
	w.Uint16(0)
}

// UTF16N appends s as UTF-16LE without a terminator and returns the number of
// code units written.
func (w *Writer) UTF16N(s string) int {
	n := 0
	it := wtf8.NewUnits(s)
	for u, ok := it.Next(); ok; u, ok = it.Next() {
		w.Uint16(u)
		n++
	}
	return n
}

// Align pads with zero bytes up to the next multiple of n.
func (w *Writer) Align(n int) {
	for len(w.buf)%n != 0 {
		w.buf = append(w.buf, 0)
	}
}

// PutUint16At overwrites a previously written uint16.
func (w *Writer) PutUint16At(off int, v uint16) {
	binary.LittleEndian.PutUint16(w.buf[off:], v)
}

// UTF16Len returns the number of UTF-16 code units needed to encode s.
func UTF16Len(s string) int { return wtf8.Len(s) }
