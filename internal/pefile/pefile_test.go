package pefile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/peres/internal/restype"
	"github.com/meigma/peres/internal/testutil"
)

func fill(n int, b byte) []byte { return bytes.Repeat([]byte{b}, n) }

func rsrc(n int) testutil.Section {
	return testutil.Section{Name: ".rsrc", Resources: true, Data: fill(n, 0xAB)}
}

func text() testutil.Section {
	return testutil.Section{Name: ".text", Data: fill(16, 0xCC)}
}

func mustParse(t *testing.T, data []byte) *File {
	t.Helper()
	f, err := Parse(data)
	require.NoError(t, err)
	return f
}

func sizeOfImage(f *File) uint32 { return binary.LittleEndian.Uint32(f.data[f.optOff+56:]) }

func TestParseRejectsNonPE(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("MZ not really"))
	assert.ErrorIs(t, err, restype.ErrNotPE)
}

func TestResources(t *testing.T) {
	t.Parallel()

	f := mustParse(t, testutil.BuildPE(t, testutil.PEOptions{Sections: []testutil.Section{text(), rsrc(100)}}))
	data, rva, ok, err := f.Resources()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(0x2000), rva)
	// The raw section is file aligned; the directory size is not.
	assert.Len(t, data, 0x200)
	assert.Equal(t, fill(100, 0xAB), data[:100])

	f = mustParse(t, testutil.BuildPE(t, testutil.PEOptions{Sections: []testutil.Section{text()}}))
	_, _, ok, err = f.Resources()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplaceInPlace(t *testing.T) {
	t.Parallel()

	img := testutil.BuildPE(t, testutil.PEOptions{
		Sections: []testutil.Section{text(), rsrc(100), {Name: ".data", Data: fill(8, 1)}},
		Checksum: true,
	})
	f := mustParse(t, img)
	out, placement, err := f.Replace(func(rva uint32) ([]byte, error) {
		assert.Equal(t, uint32(0x2000), rva)
		return fill(50, 0x11), nil
	})
	require.NoError(t, err)
	assert.Equal(t, InPlace, placement)
	assert.Len(t, out, len(img))

	g := mustParse(t, out)
	data, _, ok, err := g.Resources()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fill(50, 0x11), data[:50])
	assert.Equal(t, make([]byte, 50), data[50:100])
	_, size := g.dataDir(dirResource)
	assert.Equal(t, uint32(50), size)

	sumOff := g.optOff + 64
	assert.Equal(t, Checksum(out, sumOff), binary.LittleEndian.Uint32(out[sumOff:]))
	assert.NotEqual(t, binary.LittleEndian.Uint32(img[sumOff:]), binary.LittleEndian.Uint32(out[sumOff:]))
}

func TestReplaceGrowsLastSection(t *testing.T) {
	t.Parallel()

	cert := []byte("CERTDATA")
	img := testutil.BuildPE(t, testutil.PEOptions{
		Sections:    []testutil.Section{text(), rsrc(100)},
		Overlay:     cert,
		Certificate: true,
	})
	f := mustParse(t, img)
	oldCert, _ := f.dataDir(dirSecurity)

	out, placement, err := f.Replace(func(uint32) ([]byte, error) { return fill(0x300, 0x22), nil })
	require.NoError(t, err)
	assert.Equal(t, Grown, placement)
	assert.Len(t, out, len(img)+0x200)
	assert.Equal(t, cert, out[len(out)-len(cert):])

	g := mustParse(t, out)
	newCert, certSize := g.dataDir(dirSecurity)
	assert.Equal(t, oldCert+0x200, newCert)
	assert.Equal(t, uint32(len(cert)), certSize)
	assert.Equal(t, cert, out[newCert:newCert+certSize])

	data, _, ok, err := g.Resources()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, fill(0x300, 0x22), data[:0x300])
	assert.Equal(t, uint32(0x3000), sizeOfImage(g))
}

func TestReplaceAppendsSection(t *testing.T) {
	t.Parallel()

	img := testutil.BuildPE(t, testutil.PEOptions{
		Sections: []testutil.Section{text(), rsrc(100), {Name: ".data", Data: fill(8, 1)}},
	})
	f := mustParse(t, img)
	out, placement, err := f.Replace(func(rva uint32) ([]byte, error) {
		assert.Equal(t, uint32(0x4000), rva)
		return fill(0x250, 0x33), nil
	})
	require.NoError(t, err)
	assert.Equal(t, Appended, placement)

	g := mustParse(t, out)
	require.Len(t, g.sections, 4)
	assert.Equal(t, ".rsrc", g.sections[3].Name)
	data, rva, ok, err := g.Resources()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(0x4000), rva)
	assert.Equal(t, fill(0x250, 0x33), data[:0x250])
	assert.Equal(t, uint32(0x5000), sizeOfImage(g))
}

func TestReplaceAddsSectionWhenNoneExists(t *testing.T) {
	t.Parallel()

	f := mustParse(t, testutil.BuildPE(t, testutil.PEOptions{Sections: []testutil.Section{text()}}))
	out, placement, err := f.Replace(func(uint32) ([]byte, error) { return fill(16, 0x44), nil })
	require.NoError(t, err)
	assert.Equal(t, Appended, placement)

	data, rva, ok, err := mustParse(t, out).Resources()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint32(0x2000), rva)
	assert.Equal(t, fill(16, 0x44), data[:16])
}

func TestReplaceNoRoom(t *testing.T) {
	t.Parallel()

	// Five section headers end exactly at the 0x200 header boundary.
	sections := make([]testutil.Section, 5)
	for i := range sections {
		sections[i] = testutil.Section{Name: ".s", Data: fill(4, byte(i))}
	}
	f := mustParse(t, testutil.BuildPE(t, testutil.PEOptions{Sections: sections}))
	_, _, err := f.Replace(func(uint32) ([]byte, error) { return fill(4, 0), nil })
	assert.ErrorIs(t, err, restype.ErrNoRoom)
}

func TestChecksumSkipsField(t *testing.T) {
	t.Parallel()

	data := []byte{1, 0, 2, 0, 0xFF, 0xFF, 0xFF, 0xFF, 3}
	// Words 1 and 2, the odd trailing byte 3, plus the length 9.
	assert.Equal(t, uint32(1+2+3+9), Checksum(data, 4))
	assert.Equal(t, "grown", Grown.String())
}
