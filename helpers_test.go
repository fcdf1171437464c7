package peres

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meigma/peres/internal/testutil"
	"github.com/meigma/peres/manifest"
)

var (
	typeCustom = NameID("CUSTOM")
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
)

// sampleDirectory holds a typed manifest, raw entries under numeric and
// named types, and two languages of one name.
func sampleDirectory(t *testing.T) *Directory {
	t.Helper()
	d := NewDirectory(nil)
	d.UpsertRaw(TypeRCData, NameID("CONFIG"), LangNeutral, []byte("abc"))
	d.UpsertRaw(typeCustom, IntID(1), LangEnglishUS, []byte{1, 2, 3, 4, 5})
	d.UpsertRaw(TypeRCData, IntID(7), 0x0407, []byte{9})
	d.UpsertRaw(TypeRCData, IntID(7), LangEnglishUS, []byte{8})
	_, err := d.NewManifest(manifest.CreateProcess)
	require.NoError(t, err)
	return d
}

type entryKey struct {
	typ, name ID
	lang      uint16
}

func keysOf(d *Directory) []entryKey {
	var keys []entryKey
	for e := range d.Entries() {
		keys = append(keys, entryKey{e.Type(), e.Name(), e.Lang()})
	}
	return keys
}

func bytesOf(t *testing.T, d *Directory) map[entryKey][]byte {
	t.Helper()
	out := make(map[entryKey][]byte)
	for e := range d.Entries() {
		b, err := e.Bytes()
		require.NoError(t, err)
		out[entryKey{e.Type(), e.Name(), e.Lang()}] = b
	}
	return out
}

// peWith builds a PE image whose resource section holds d.
func peWith(t *testing.T, d *Directory, opts testutil.PEOptions) []byte {
	t.Helper()
	opts.Sections = append([]testutil.Section{{Name: ".text", Data: []byte{0xC3}}}, opts.Sections...)
	opts.Sections = append(opts.Sections, testutil.Section{
		Name:      ".rsrc",
		Resources: true,
		Build: func(rva uint32) []byte {
			b, err := buildSection(d, rva)
			require.NoError(t, err)
			return b
		},
	})
	return testutil.BuildPE(t, opts)
}
