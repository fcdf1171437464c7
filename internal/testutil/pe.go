package testutil

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"testing"
)

const (
	fileAlign    = 0x200
	sectionAlign = 0x1000
	imageBase    = 0x400000
)

// Section describes one section of a test image.
type Section struct {
	Name string
	Data []byte

	// Resources marks the section the resource data directory points at.
	// Build is called with the section's RVA to produce its data.
	Resources bool
	Build     func(rva uint32) []byte
}

// PEOptions configures BuildPE.
type PEOptions struct {
	Sections []Section

	// SpareHeaders is the number of free section header slots.
	SpareHeaders int

	// Overlay is appended after the last section.
	Overlay []byte

	// Certificate points the security data directory at the overlay.
	Certificate bool

	// Checksum writes a valid image checksum.
	Checksum bool
}

func align(v, n uint32) uint32 { return (v + n - 1) &^ (n - 1) }

// BuildPE returns a minimal PE32 image with the given sections.
func BuildPE(tb testing.TB, opts PEOptions) []byte {
	tb.Helper()

	const optSize = 224
	headerEnd := uint32(0x40 + 4 + 20 + optSize + (len(opts.Sections)+opts.SpareHeaders)*40) //nolint:gosec // test sizes
	sizeOfHeaders := align(headerEnd, fileAlign)

	type placed struct {
		hdr  pe.SectionHeader32
		data []byte
	}
	var rsrcDir pe.DataDirectory
	sections := make([]placed, len(opts.Sections))
	va := uint32(sectionAlign)
	raw := sizeOfHeaders
	for i, s := range opts.Sections {
		data := s.Data
		if s.Build != nil {
			data = s.Build(va)
		}
		n := uint32(len(data)) //nolint:gosec // test sizes
		h := pe.SectionHeader32{
			VirtualSize:      max(n, 1),
			VirtualAddress:   va,
			SizeOfRawData:    align(n, fileAlign),
			PointerToRawData: raw,
			Characteristics:  0x40000040,
		}
		copy(h.Name[:], s.Name)
		if s.Resources {
			rsrcDir = pe.DataDirectory{VirtualAddress: va, Size: n}
		}
		sections[i] = placed{hdr: h, data: data}
		va += align(max(n, 1), sectionAlign)
		raw += h.SizeOfRawData
	}

	oh := pe.OptionalHeader32{
		Magic:                 0x10b,
		ImageBase:             imageBase,
		SectionAlignment:      sectionAlign,
		FileAlignment:         fileAlign,
		MajorSubsystemVersion: 6,
		SizeOfImage:           va,
		SizeOfHeaders:         sizeOfHeaders,
		Subsystem:             2,
		NumberOfRvaAndSizes:   16,
	}
	oh.DataDirectory[2] = rsrcDir
	if opts.Certificate && len(opts.Overlay) > 0 {
		oh.DataDirectory[4] = pe.DataDirectory{VirtualAddress: raw, Size: uint32(len(opts.Overlay))} //nolint:gosec // test sizes
	}
	if opts.Checksum {
		oh.CheckSum = 1
	}

	var buf bytes.Buffer
	dos := make([]byte, 0x40)
	copy(dos, "MZ")
	binary.LittleEndian.PutUint32(dos[0x3c:], 0x40)
	buf.Write(dos)
	buf.WriteString("PE\x00\x00")
	write := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			tb.Fatalf("build PE: %v", err)
		}
	}
	write(pe.FileHeader{
		Machine:              pe.IMAGE_FILE_MACHINE_I386,
		NumberOfSections:     uint16(len(sections)), //nolint:gosec // test sizes
		SizeOfOptionalHeader: optSize,
		Characteristics:      pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_32BIT_MACHINE,
	})
	write(oh)
	for _, s := range sections {
		write(s.hdr)
	}
	buf.Write(make([]byte, int(sizeOfHeaders)-buf.Len()))
	for _, s := range sections {
		buf.Write(s.data)
		buf.Write(make([]byte, int(s.hdr.SizeOfRawData)-len(s.data)))
	}
	buf.Write(opts.Overlay)

	out := buf.Bytes()
	if opts.Checksum {
		sumOff := 0x40 + 4 + 20 + 64
		binary.LittleEndian.PutUint32(out[sumOff:], checksum(out, sumOff))
	}
	return out
}

// checksum is the PE image checksum: a ones' complement style sum of 16-bit
// words, skipping the CheckSum field, plus the file length.
func checksum(data []byte, skip int) uint32 {
	var sum uint32
	for i := 0; i < len(data); i += 2 {
		if i == skip || i == skip+2 {
			continue
		}
		w := uint32(data[i])
		if i+1 < len(data) {
			w |= uint32(data[i+1]) << 8
		}
		sum += w
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return sum + uint32(len(data)) //nolint:gosec // test images are small
}
