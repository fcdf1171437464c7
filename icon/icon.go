// Package icon decodes and encodes icon and cursor resources: the RT_ICON and
// RT_CURSOR images and the RT_GROUP_ICON and RT_GROUP_CURSOR directories that
// reference them by id.
package icon

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/meigma/peres/internal/binutil"
	"github.com/meigma/peres/internal/restype"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}

// Image is one RT_ICON or RT_CURSOR resource.
type Image struct {
	// Cursor marks an RT_CURSOR image, which starts with a hotspot.
	Cursor bool

	// HotspotX and HotspotY locate the cursor hotspot.
	HotspotX uint16
	HotspotY uint16

	// Data is the DIB or PNG image data.
	Data []byte
}

// DecodeImage parses an RT_ICON (cursor false) or RT_CURSOR image.
func DecodeImage(data []byte, cursor bool) (*Image, error) {
	im := &Image{Cursor: cursor}
	r := binutil.NewReader(data)
	if cursor {
		var err error
		if im.HotspotX, err = r.Uint16(); err != nil {
			return nil, err
		}
		if im.HotspotY, err = r.Uint16(); err != nil {
			return nil, err
		}
	}
	im.Data = append([]byte(nil), r.Rest()...)
	return im, nil
}

// MarshalBinary encodes the image resource.
func (im *Image) MarshalBinary() ([]byte, error) {
	w := binutil.NewWriter(len(im.Data) + 4)
	if im.Cursor {
		w.Uint16(im.HotspotX)
		w.Uint16(im.HotspotY)
	}
	w.Write(im.Data)
	return w.Bytes(), nil
}

// IsPNG reports whether the image data is PNG compressed.
func (im *Image) IsPNG() bool { return bytes.HasPrefix(im.Data, pngMagic) }

// Dimensions returns the pixel size and bit depth read from the PNG header or
// the BITMAPINFOHEADER. ok is false when neither can be parsed.
func (im *Image) Dimensions() (width, height, bitCount int, ok bool) {
	if im.IsPNG() {
		// IHDR follows the 8-byte magic, a 4-byte length and the chunk type.
		if len(im.Data) < 26 || string(im.Data[12:16]) != "IHDR" {
			return 0, 0, 0, false
		}
		w := binary.BigEndian.Uint32(im.Data[16:])
		h := binary.BigEndian.Uint32(im.Data[20:])
		return int(w), int(h), int(im.Data[24]) * pngChannels(im.Data[25:]), true
	}
	if len(im.Data) < 16 || binary.LittleEndian.Uint32(im.Data) < 16 {
		return 0, 0, 0, false
	}
	w := int32(binary.LittleEndian.Uint32(im.Data[4:]))  //nolint:gosec // BITMAPINFOHEADER fields are signed
	h := int32(binary.LittleEndian.Uint32(im.Data[8:]))  //nolint:gosec // BITMAPINFOHEADER fields are signed
	bpp := binary.LittleEndian.Uint16(im.Data[14:])
	// The DIB height covers the XOR and AND masks.
	return int(w), int(h) / 2, int(bpp), true
}

func pngChannels(rest []byte) int {
	if len(rest) == 0 {
		return 1
	}
	switch rest[0] {
	case 2:
		return 3
	case 4:
		return 2
	case 6:
		return 4
	default:
		return 1
	}
}

// ImageCodec adapts RT_ICON or RT_CURSOR images to the codec registry.
type ImageCodec struct {
	Cursor bool
}

// Decode implements the registry decode hook.
func (c ImageCodec) Decode(data []byte, _ uint16) (any, error) {
	p, err := DecodeImage(data, c.Cursor)
	if p == nil {
		return nil, err
	}
	return p, err
}

// Encode implements the registry encode hook.
func (c ImageCodec) Encode(payload any) ([]byte, error) {
	im, ok := payload.(*Image)
	if !ok || im.Cursor != c.Cursor {
		return nil, fmt.Errorf("%w: image codec cannot encode %T", restype.ErrUnsupportedKind, payload)
	}
	return im.MarshalBinary()
}
