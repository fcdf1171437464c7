package icon

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/peres/internal/restype"
)

func dib(width, height int32, bpp uint16) []byte {
	b := make([]byte, 40)
	binary.LittleEndian.PutUint32(b, 40)
	binary.LittleEndian.PutUint32(b[4:], uint32(width))
	binary.LittleEndian.PutUint32(b[8:], uint32(height*2))
	binary.LittleEndian.PutUint16(b[12:], 1)
	binary.LittleEndian.PutUint16(b[14:], bpp)
	return append(b, bytes.Repeat([]byte{0x5A}, 16)...)
}

func pngHeader(width, height uint32) []byte {
	b := append([]byte(nil), pngMagic...)
	b = binary.BigEndian.AppendUint32(b, 13)
	b = append(b, "IHDR"...)
	b = binary.BigEndian.AppendUint32(b, width)
	b = binary.BigEndian.AppendUint32(b, height)
	return append(b, 8, 6, 0, 0, 0)
}

func TestGroupRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		group *Group
	}{
		{"icon", &Group{Entries: []GroupEntry{
			{Width: 16, Height: 16, Planes: 1, BitCount: 32, BytesInRes: 1128, ID: 1},
			{Width: 0, Height: 0, Planes: 1, BitCount: 32, BytesInRes: 4096, ID: 2},
		}}},
		{"cursor", &Group{Cursor: true, Entries: []GroupEntry{
			{Width: 32, Height: 64, Planes: 1, BitCount: 1, BytesInRes: 308, ID: 7},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			raw, err := tt.group.MarshalBinary()
			require.NoError(t, err)
			assert.Len(t, raw, groupHeaderSize+len(tt.group.Entries)*groupEntrySize)

			got, err := DecodeGroup(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.group, got)

			again, err := got.MarshalBinary()
			require.NoError(t, err)
			assert.Equal(t, raw, again)
		})
	}
}

func TestDecodeGroupErrors(t *testing.T) {
	t.Parallel()

	_, err := DecodeGroup([]byte{0, 0, 9, 0, 0, 0})
	require.ErrorIs(t, err, restype.ErrUnsupportedKind)

	_, err = DecodeGroup([]byte{0, 0, 1, 0, 2, 0, 1, 2, 3})
	require.ErrorIs(t, err, restype.ErrTruncatedResource)

	_, err = (&Group{Entries: []GroupEntry{{Width: 256}}}).MarshalBinary()
	require.ErrorIs(t, err, restype.ErrUnsupportedKind)
}

func TestImageRoundTrip(t *testing.T) {
	t.Parallel()

	data := dib(32, 32, 8)
	im, err := DecodeImage(data, false)
	require.NoError(t, err)
	out, err := im.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, data, out)

	raw := append([]byte{3, 0, 5, 0}, data...)
	cur, err := DecodeImage(raw, true)
	require.NoError(t, err)
	assert.Equal(t, uint16(3), cur.HotspotX)
	assert.Equal(t, uint16(5), cur.HotspotY)
	out, err = cur.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, raw, out)

	_, err = DecodeImage([]byte{1}, true)
	assert.ErrorIs(t, err, restype.ErrTruncatedResource)
}

func TestDimensions(t *testing.T) {
	t.Parallel()

	w, h, bpp, ok := (&Image{Data: dib(48, 48, 32)}).Dimensions()
	require.True(t, ok)
	assert.Equal(t, []int{48, 48, 32}, []int{w, h, bpp})

	im := &Image{Data: pngHeader(256, 256)}
	assert.True(t, im.IsPNG())
	w, h, bpp, ok = im.Dimensions()
	require.True(t, ok)
	assert.Equal(t, []int{256, 256, 32}, []int{w, h, bpp})

	_, _, _, ok = (&Image{Data: []byte{1, 2, 3}}).Dimensions()
	assert.False(t, ok)
}

func buildICO(images ...[]byte) []byte {
	var b []byte
	b = binary.LittleEndian.AppendUint16(b, 0)
	b = binary.LittleEndian.AppendUint16(b, TypeIcon)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(images)))
	offset := uint32(fileDirSize + len(images)*fileDirEntrySize)
	for _, im := range images {
		b = append(b, 32, 32, 0, 0)
		b = binary.LittleEndian.AppendUint16(b, 1)
		b = binary.LittleEndian.AppendUint16(b, 8)
		b = binary.LittleEndian.AppendUint32(b, uint32(len(im)))
		b = binary.LittleEndian.AppendUint32(b, offset)
		offset += uint32(len(im))
	}
	for _, im := range images {
		b = append(b, im...)
	}
	return b
}

func TestReadWriteICO(t *testing.T) {
	t.Parallel()

	file := buildICO(dib(32, 32, 8), pngHeader(32, 32))
	g, images, err := ReadFile(bytes.NewReader(file), 10)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, []uint16{10, 11}, g.IDs())
	assert.Equal(t, uint16(32), g.Entries[0].Width)

	byID := map[uint16]*Image{10: images[0], 11: images[1]}
	var out bytes.Buffer
	err = g.WriteFile(&out, func(id uint16) (*Image, error) {
		return byID[id], nil
	})
	require.NoError(t, err)
	assert.Equal(t, file, out.Bytes())
}

func TestReadFileRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, _, err := ReadFile(bytes.NewReader([]byte{1, 0, 1, 0, 0, 0}), 1)
	assert.ErrorIs(t, err, restype.ErrUnsupportedKind)
}

func TestCodecsCheckPayloadKind(t *testing.T) {
	t.Parallel()

	_, err := ImageCodec{Cursor: true}.Encode(&Image{})
	assert.ErrorIs(t, err, restype.ErrUnsupportedKind)
	_, err = GroupCodec{}.Encode(&Image{})
	assert.ErrorIs(t, err, restype.ErrUnsupportedKind)
}
