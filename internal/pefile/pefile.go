// Package pefile locates and replaces the resource section of a PE image.
//
// Parsing goes through debug/pe; the header fields that change when the
// section is replaced are patched in place in the image bytes.
package pefile

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/meigma/peres/internal/restype"
)

const (
	dirResource    = 2
	dirSecurity    = 4
	sectionHdrSize = 40

	// IMAGE_SCN_CNT_INITIALIZED_DATA | IMAGE_SCN_MEM_READ
	rsrcCharacteristics = 0x40000040
)

// Placement describes how a new resource section was written.
type Placement int

const (
	// InPlace overwrote the existing section within its current size.
	InPlace Placement = iota
	// Grown enlarged the existing last section.
	Grown
	// Appended added a new section to the image.
	Appended
)

func (p Placement) String() string {
	switch p {
	case InPlace:
		return "in-place"
	case Grown:
		return "grown"
	case Appended:
		return "appended"
	default:
		return fmt.Sprintf("Placement(%d)", int(p))
	}
}

type section struct {
	hdrOff int
	pe.SectionHeader
}

// File is a parsed PE image.
type File struct {
	data          []byte
	numSectOff    int
	optOff        int
	dirOff        int
	numDirs       uint32
	sectTableOff  int
	sectionAlign  uint32
	fileAlign     uint32
	sizeOfHeaders uint32
	sections      []section
}

// Parse parses a PE image. data is retained and must not be modified.
func Parse(data []byte) (*File, error) {
	pf, err := pe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", restype.ErrNotPE, err)
	}
	defer pf.Close()

	if len(data) < 0x40 {
		return nil, restype.ErrNotPE
	}
	peOff := int(binary.LittleEndian.Uint32(data[0x3c:]))
	f := &File{
		data:         data,
		numSectOff:   peOff + 6,
		optOff:       peOff + 24,
		sectTableOff: peOff + 24 + int(pf.SizeOfOptionalHeader),
	}
	switch oh := pf.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		f.dirOff = f.optOff + 96
		f.numDirs = oh.NumberOfRvaAndSizes
		f.sectionAlign, f.fileAlign, f.sizeOfHeaders = oh.SectionAlignment, oh.FileAlignment, oh.SizeOfHeaders
	case *pe.OptionalHeader64:
		f.dirOff = f.optOff + 112
		f.numDirs = oh.NumberOfRvaAndSizes
		f.sectionAlign, f.fileAlign, f.sizeOfHeaders = oh.SectionAlignment, oh.FileAlignment, oh.SizeOfHeaders
	default:
		return nil, fmt.Errorf("%w: no optional header", restype.ErrNotPE)
	}
	if f.numDirs <= dirResource || f.sectionAlign == 0 || f.fileAlign == 0 {
		return nil, fmt.Errorf("%w: unsupported optional header", restype.ErrNotPE)
	}
	for i, s := range pf.Sections {
		f.sections = append(f.sections, section{hdrOff: f.sectTableOff + i*sectionHdrSize, SectionHeader: s.SectionHeader})
	}
	return f, nil
}

func (f *File) dataDir(i int) (rva, size uint32) {
	if uint32(i) >= f.numDirs { //nolint:gosec // directory index is a small constant
		return 0, 0
	}
	off := f.dirOff + i*8
	return binary.LittleEndian.Uint32(f.data[off:]), binary.LittleEndian.Uint32(f.data[off+4:])
}

// resourceSection returns the index of the section holding the resource
// directory, or -1.
func (f *File) resourceSection() int {
	rva, _ := f.dataDir(dirResource)
	if rva == 0 {
		return -1
	}
	for i, s := range f.sections {
		if rva >= s.VirtualAddress && rva < s.VirtualAddress+max(s.VirtualSize, s.Size) {
			return i
		}
	}
	return -1
}

// Resources returns the resource section bytes starting at the resource
// directory, and the RVA they are mapped at. ok is false when the image has
// no resources.
func (f *File) Resources() (data []byte, rva uint32, ok bool, err error) {
	i := f.resourceSection()
	if i < 0 {
		return nil, 0, false, nil
	}
	s := f.sections[i]
	rva, _ = f.dataDir(dirResource)
	start := uint64(s.Offset) + uint64(rva-s.VirtualAddress)
	end := uint64(s.Offset) + uint64(s.Size)
	if start > end || end > uint64(len(f.data)) {
		return nil, 0, false, fmt.Errorf("%w: resource section outside the file", restype.ErrInvalidSection)
	}
	return f.data[start:end], rva, true, nil
}

// Replace returns a copy of the image with its resource section replaced by
// the output of build, which is called with the RVA the section will be
// mapped at.
func (f *File) Replace(build func(rva uint32) ([]byte, error)) ([]byte, Placement, error) {
	i := f.resourceSection()
	if i >= 0 {
		s := f.sections[i]
		dirRVA, _ := f.dataDir(dirResource)
		if dirRVA == s.VirtualAddress {
			rsrc, err := build(s.VirtualAddress)
			if err != nil {
				return nil, 0, err
			}
			if f.fitsInPlace(i, len(rsrc)) {
				return f.writeInPlace(i, rsrc), InPlace, nil
			}
			if f.isLast(i) {
				out, err := f.grow(i, rsrc)
				return out, Grown, err
			}
		}
	}
	out, err := f.appendSection(build)
	return out, Appended, err
}

func alignUp(v, n uint32) uint32 { return (v + n - 1) &^ (n - 1) }

// virtualLimit is the end of the address range section i may occupy.
func (f *File) virtualLimit(i int) uint32 {
	s := f.sections[i]
	limit := s.VirtualAddress + alignUp(max(s.VirtualSize, s.Size), f.sectionAlign)
	for _, o := range f.sections {
		if o.VirtualAddress > s.VirtualAddress && o.VirtualAddress < limit {
			limit = o.VirtualAddress
		}
	}
	return limit
}

func (f *File) fitsInPlace(i, n int) bool {
	s := f.sections[i]
	return uint64(n) <= uint64(s.Size) && uint64(s.VirtualAddress)+uint64(n) <= uint64(f.virtualLimit(i))
}

func (f *File) isLast(i int) bool {
	s := f.sections[i]
	for j, o := range f.sections {
		if j != i && (o.VirtualAddress > s.VirtualAddress || o.Offset > s.Offset) {
			return false
		}
	}
	return true
}

func (f *File) writeInPlace(i int, rsrc []byte) []byte {
	out := slices.Clone(f.data)
	s := f.sections[i]
	raw := out[s.Offset : s.Offset+s.Size]
	copy(raw, rsrc)
	clear(raw[len(rsrc):])
	n := uint32(len(rsrc)) //nolint:gosec // fits the section
	putU32(out, s.hdrOff+8, n)
	f.setDataDir(out, dirResource, s.VirtualAddress, n)
	f.finish(out)
	return out
}

// grow enlarges the last section and moves any overlay after it.
func (f *File) grow(i int, rsrc []byte) ([]byte, error) {
	s := f.sections[i]
	n := uint32(len(rsrc)) //nolint:gosec // section sizes fit 32 bits
	rawSize := alignUp(n, f.fileAlign)
	oldEnd := int(s.Offset + s.Size)
	if oldEnd > len(f.data) {
		return nil, fmt.Errorf("%w: section %s outside the file", restype.ErrInvalidSection, s.Name)
	}
	overlay := f.data[oldEnd:]

	out := make([]byte, 0, int(s.Offset)+int(rawSize)+len(overlay))
	out = append(out, f.data[:s.Offset]...)
	out = append(out, rsrc...)
	out = append(out, make([]byte, int(rawSize)-len(rsrc))...)
	out = append(out, overlay...)

	putU32(out, s.hdrOff+8, n)
	putU32(out, s.hdrOff+16, rawSize)
	f.setDataDir(out, dirResource, s.VirtualAddress, n)
	f.moveCertificate(out, uint32(oldEnd), int64(rawSize)-int64(s.Size)) //nolint:gosec // file offsets fit 32 bits
	f.finish(out)
	return out, nil
}

// appendSection adds a new .rsrc section after the last one.
func (f *File) appendSection(build func(rva uint32) ([]byte, error)) ([]byte, error) {
	hdr := f.sectTableOff + (len(f.sections)+1)*sectionHdrSize
	if uint32(hdr) > f.sizeOfHeaders { //nolint:gosec // header offsets are small
		return nil, fmt.Errorf("%w: section table is full", restype.ErrNoRoom)
	}
	var vaEnd, rawEnd uint32
	for _, s := range f.sections {
		if s.Size > 0 && s.Offset < uint32(hdr) { //nolint:gosec // header offsets are small
			return nil, fmt.Errorf("%w: section %s overlaps the section table", restype.ErrNoRoom, s.Name)
		}
		vaEnd = max(vaEnd, s.VirtualAddress+alignUp(max(s.VirtualSize, s.Size), f.sectionAlign))
		rawEnd = max(rawEnd, s.Offset+s.Size)
	}
	va := alignUp(max(vaEnd, f.sizeOfHeaders), f.sectionAlign)
	rsrc, err := build(va)
	if err != nil {
		return nil, err
	}
	n := uint32(len(rsrc)) //nolint:gosec // section sizes fit 32 bits
	rawSize := alignUp(n, f.fileAlign)
	rawOff := alignUp(max(rawEnd, f.sizeOfHeaders), f.fileAlign)
	if int(rawEnd) > len(f.data) {
		return nil, fmt.Errorf("%w: sections extend past the end of the file", restype.ErrInvalidSection)
	}
	overlay := f.data[rawEnd:]

	out := make([]byte, 0, int(rawOff)+int(rawSize)+len(overlay))
	out = append(out, f.data[:rawEnd]...)
	out = append(out, make([]byte, int(rawOff-rawEnd))...)
	out = append(out, rsrc...)
	out = append(out, make([]byte, int(rawSize)-len(rsrc))...)
	out = append(out, overlay...)

	h := out[hdr-sectionHdrSize : hdr]
	clear(h)
	copy(h, ".rsrc")
	binary.LittleEndian.PutUint32(h[8:], n)
	binary.LittleEndian.PutUint32(h[12:], va)
	binary.LittleEndian.PutUint32(h[16:], rawSize)
	binary.LittleEndian.PutUint32(h[20:], rawOff)
	binary.LittleEndian.PutUint32(h[36:], rsrcCharacteristics)
	binary.LittleEndian.PutUint16(out[f.numSectOff:], uint16(len(f.sections)+1)) //nolint:gosec // bounded by the header

	f.setDataDir(out, dirResource, va, n)
	f.moveCertificate(out, rawEnd, int64(rawOff+rawSize)-int64(rawEnd))
	f.finish(out)
	return out, nil
}

func (f *File) setDataDir(out []byte, i int, rva, size uint32) {
	off := f.dirOff + i*8
	putU32(out, off, rva)
	putU32(out, off+4, size)
}

// moveCertificate shifts the certificate table, which is addressed by file
// offset, when it lies in overlay data that moved by delta.
func (f *File) moveCertificate(out []byte, from uint32, delta int64) {
	off, size := f.dataDir(dirSecurity)
	if size == 0 || off < from || delta == 0 {
		return
	}
	f.setDataDir(out, dirSecurity, uint32(int64(off)+delta), size) //nolint:gosec // file offsets fit 32 bits
}

// finish updates SizeOfImage and, when the image carries one, the checksum.
func (f *File) finish(out []byte) {
	var end uint32
	num := int(binary.LittleEndian.Uint16(out[f.numSectOff:]))
	for k := range num {
		h := out[f.sectTableOff+k*sectionHdrSize:]
		vs := binary.LittleEndian.Uint32(h[8:])
		va := binary.LittleEndian.Uint32(h[12:])
		raw := binary.LittleEndian.Uint32(h[16:])
		end = max(end, va+alignUp(max(vs, raw, 1), f.sectionAlign))
	}
	putU32(out, f.optOff+56, end)

	if binary.LittleEndian.Uint32(out[f.optOff+64:]) != 0 {
		putU32(out, f.optOff+64, Checksum(out, f.optOff+64))
	}
}

// Checksum computes the PE image checksum, skipping the 4-byte field at
// checksumOff.
func Checksum(data []byte, checksumOff int) uint32 {
	var sum uint64
	for i := 0; i+1 < len(data); i += 2 {
		if i == checksumOff || i == checksumOff+2 {
			continue
		}
		sum += uint64(binary.LittleEndian.Uint16(data[i:]))
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	if len(data)%2 == 1 {
		sum += uint64(data[len(data)-1])
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	sum = (sum & 0xFFFF) + (sum >> 16)
	return uint32(sum) + uint32(len(data)) //nolint:gosec // PE images are smaller than 4 GiB
}

func putU32(b []byte, off int, v uint32) { binary.LittleEndian.PutUint32(b[off:], v) }
