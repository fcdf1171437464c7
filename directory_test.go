package peres

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/peres/manifest"
)

func TestEntriesCanonicalOrder(t *testing.T) {
	t.Parallel()

	d := sampleDirectory(t)
	want := []entryKey{
		{TypeRCData, IntID(7), 0x0407},
		{TypeRCData, IntID(7), LangEnglishUS},
		{TypeRCData, NameID("CONFIG"), LangNeutral},
		{TypeManifest, IntID(1), LangNeutral},
		{typeCustom, IntID(1), LangEnglishUS},
	}
	assert.Equal(t, want, keysOf(d))
	assert.Equal(t, 5, d.Len())

	// Insertion order does not matter.
	r := NewDirectory(nil)
	for _, k := range slices.Backward(want) {
		r.UpsertRaw(k.typ, k.name, k.lang, nil)
	}
	assert.Equal(t, want, keysOf(r))

	assert.Equal(t, []ID{TypeRCData, TypeManifest, typeCustom}, d.Types())
	assert.Equal(t, []ID{IntID(7), NameID("CONFIG")}, d.Names(TypeRCData))
	assert.Equal(t, []uint16{0x0407, LangEnglishUS}, d.Languages(TypeRCData, IntID(7)))
	assert.Nil(t, d.Names(TypeMenu))
	assert.Nil(t, d.Languages(TypeRCData, IntID(8)))
}

func TestEntriesFilter(t *testing.T) {
	t.Parallel()

	d := sampleDirectory(t)
	var got []entryKey
	for e := range d.Entries(TypeRCData, IntID(7)) {
		got = append(got, entryKey{e.Type(), e.Name(), e.Lang()})
	}
	assert.Equal(t, []entryKey{
		{TypeRCData, IntID(7), 0x0407},
		{TypeRCData, IntID(7), LangEnglishUS},
	}, got)

	n := 0
	for range d.Entries(TypeRCData) {
		n++
	}
	assert.Equal(t, 3, n)

	for range d.Entries(TypeMenu) {
		t.Fatal("no menus expected")
	}
	for range d.Entries(TypeRCData, IntID(99)) {
		t.Fatal("no entry expected")
	}

	// Stopping early is honoured.
	n = 0
	for range d.Entries() {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestGetAndNotFound(t *testing.T) {
	t.Parallel()

	d := sampleDirectory(t)
	e, err := d.Get(TypeRCData, NameID("CONFIG"), LangNeutral)
	require.NoError(t, err)
	b, err := e.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), b)

	_, err = d.Get(TypeRCData, NameID("config"), LangNeutral)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = d.Get(TypeMenu, IntID(1), LangNeutral)
	require.ErrorIs(t, err, ErrNotFound)

	e, err = d.First(TypeRCData, IntID(7))
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0407), e.Lang())
	_, err = d.First(TypeRCData, IntID(8))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRemovePrunesParents(t *testing.T) {
	t.Parallel()

	d := sampleDirectory(t)
	e, err := d.Get(typeCustom, IntID(1), LangEnglishUS)
	require.NoError(t, err)
	assert.False(t, e.Detached())

	assert.True(t, d.Remove(typeCustom, IntID(1), LangEnglishUS))
	assert.True(t, e.Detached())
	assert.NotContains(t, d.Types(), typeCustom)
	assert.False(t, d.Remove(typeCustom, IntID(1), LangEnglishUS))

	assert.True(t, d.Remove(TypeRCData, IntID(7), 0x0407))
	assert.Equal(t, []ID{IntID(7), NameID("CONFIG")}, d.Names(TypeRCData))
	assert.True(t, d.Remove(TypeRCData, IntID(7), LangEnglishUS))
	assert.Equal(t, []ID{NameID("CONFIG")}, d.Names(TypeRCData))
	assert.False(t, d.Remove(TypeRCData, NameID("CONFIG"), 1))
	assert.Equal(t, 2, d.Len())

	// A detached entry still decodes with the default registry.
	b, err := e.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, b)
}

func TestUpsertReplacesAndValidates(t *testing.T) {
	t.Parallel()

	d := sampleDirectory(t)
	m, err := manifest.Parse(`<assembly manifestVersion="1.0"/>`)
	require.NoError(t, err)
	e, err := d.Upsert(TypeManifest, IntID(1), LangNeutral, m)
	require.NoError(t, err)
	assert.Equal(t, 5, d.Len())
	b, err := e.Bytes()
	require.NoError(t, err)
	assert.Equal(t, `<assembly manifestVersion="1.0"/>`, string(b))

	_, err = d.Upsert(TypeManifest, IntID(2), LangNeutral, Raw("<x/>"))
	require.ErrorIs(t, err, ErrUnsupportedKind)
	_, err = d.Get(TypeManifest, IntID(2), LangNeutral)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 5, d.Len())

	e, err = d.Upsert(TypeBitmap, IntID(3), LangNeutral, Raw{1, 2})
	require.NoError(t, err)
	size, err := e.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, size)
	assert.Equal(t, 6, d.Len())
}

func TestStringHelpers(t *testing.T) {
	t.Parallel()

	d := NewDirectory(nil)
	require.NoError(t, d.SetString(101, LangEnglishUS, "Open"))
	require.NoError(t, d.SetString(102, LangEnglishUS, "Close"))
	assert.Equal(t, []ID{IntID(7)}, d.Names(TypeStringTable))

	s, err := d.LookupString(102, LangEnglishUS)
	require.NoError(t, err)
	assert.Equal(t, "Close", s)
	_, err = d.LookupString(103, LangEnglishUS)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = d.LookupString(101, LangNeutral)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIDHelpers(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TypeManifest, ParseID("RT_MANIFEST"))
	assert.Equal(t, IntID(12), ParseID("#12"))
	assert.Equal(t, NameID("CONFIG"), ParseID("CONFIG"))
	assert.Equal(t, "RT_VERSION", TypeString(TypeVersion))
	assert.Equal(t, -1, Compare(IntID(MaxIntID), NameID("A")))
	assert.Equal(t, uint32(0x7FFFFFFF), uint32(MaxIntID))
}
