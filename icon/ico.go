package icon

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/meigma/peres/internal/restype"
)

// ICONDIR and ICONDIRENTRY as stored in .ico and .cur files.
type fileDir struct {
	Reserved uint16
	Type     uint16
	Count    uint16
}

type fileDirEntry struct {
	Width      uint8
	Height     uint8
	ColorCount uint8
	Reserved   uint8
	Planes     uint16 // hotspot x in .cur files
	BitCount   uint16 // hotspot y in .cur files
	BytesInRes uint32
	Offset     uint32
}

const (
	fileDirSize      = 6
	fileDirEntrySize = 16
)

// ReadFile parses an .ico or .cur file into a group and its images. Entry i of
// the group references images[i] and is given id firstID+i.
func ReadFile(r io.ReaderAt, firstID uint16) (*Group, []*Image, error) {
	var dir fileDir
	if err := binary.Read(io.NewSectionReader(r, 0, fileDirSize), binary.LittleEndian, &dir); err != nil {
		return nil, nil, fmt.Errorf("read icon directory: %w", err)
	}
	if dir.Reserved != 0 || (dir.Type != TypeIcon && dir.Type != TypeCursor) {
		return nil, nil, fmt.Errorf("%w: not an icon or cursor file", restype.ErrUnsupportedKind)
	}
	cursor := dir.Type == TypeCursor

	entries := make([]fileDirEntry, dir.Count)
	sr := io.NewSectionReader(r, fileDirSize, int64(dir.Count)*fileDirEntrySize)
	if err := binary.Read(sr, binary.LittleEndian, entries); err != nil {
		return nil, nil, fmt.Errorf("read icon entries: %w", err)
	}

	g := &Group{Cursor: cursor}
	images := make([]*Image, 0, len(entries))
	for i, e := range entries {
		data := make([]byte, e.BytesInRes)
		if _, err := r.ReadAt(data, int64(e.Offset)); err != nil {
			return nil, nil, fmt.Errorf("read icon image %d: %w", i, err)
		}
		im := &Image{Cursor: cursor, Data: data}
		ge := GroupEntry{
			Width:      uint16(e.Width),
			Height:     uint16(e.Height),
			ColorCount: e.ColorCount,
			Reserved:   e.Reserved,
			Planes:     e.Planes,
			BitCount:   e.BitCount,
			BytesInRes: e.BytesInRes,
			ID:         firstID + uint16(i), //nolint:gosec // icon files hold few images
		}
		if cursor {
			im.HotspotX, im.HotspotY = e.Planes, e.BitCount
			ge.Width = orSize(e.Width)
			ge.Height = orSize(e.Height) * 2
			ge.Planes = 1
			ge.BitCount = 0
			if w, h, bpp, ok := im.Dimensions(); ok {
				ge.Width, ge.Height, ge.BitCount = uint16(w), uint16(h*2), uint16(bpp) //nolint:gosec // header values
			}
			ge.BytesInRes += 4
		}
		g.Entries = append(g.Entries, ge)
		images = append(images, im)
	}
	return g, images, nil
}

func orSize(b uint8) uint16 {
	if b == 0 {
		return 256
	}
	return uint16(b)
}

// WriteFile writes the group and its images as an .ico or .cur file. lookup
// resolves each entry id to its image resource.
func (g *Group) WriteFile(w io.Writer, lookup func(id uint16) (*Image, error)) error {
	typ := uint16(TypeIcon)
	if g.Cursor {
		typ = TypeCursor
	}
	images := make([]*Image, len(g.Entries))
	for i, e := range g.Entries {
		im, err := lookup(e.ID)
		if err != nil {
			return fmt.Errorf("resolve image %d: %w", e.ID, err)
		}
		images[i] = im
	}

	if err := binary.Write(w, binary.LittleEndian, fileDir{Type: typ, Count: uint16(len(images))}); err != nil { //nolint:gosec // bounded by the group size
		return err
	}
	offset := uint32(fileDirSize + len(images)*fileDirEntrySize) //nolint:gosec // bounded by the group size
	for i, e := range g.Entries {
		im := images[i]
		fe := fileDirEntry{
			ColorCount: e.ColorCount,
			Reserved:   e.Reserved,
			Planes:     e.Planes,
			BitCount:   e.BitCount,
			BytesInRes: uint32(len(im.Data)), //nolint:gosec // resource sizes fit 32 bits
			Offset:     offset,
		}
		if g.Cursor {
			fe.Width, fe.Height = fileSize(e.Width), fileSize(e.Height/2)
			fe.Planes, fe.BitCount = im.HotspotX, im.HotspotY
		} else {
			fe.Width, fe.Height = uint8(e.Width), uint8(e.Height) //nolint:gosec // icon entries store bytes
		}
		if err := binary.Write(w, binary.LittleEndian, fe); err != nil {
			return err
		}
		offset += fe.BytesInRes
	}
	for _, im := range images {
		if _, err := w.Write(im.Data); err != nil {
			return err
		}
	}
	return nil
}

func fileSize(v uint16) uint8 {
	if v >= 256 {
		return 0
	}
	return uint8(v)
}
