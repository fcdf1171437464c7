package menu

import (
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/peres/internal/binutil"
	"github.com/meigma/peres/internal/restype"
)

// rawBuilder assembles template bytes by hand so tests do not depend on the
// encoder they are checking.
type rawBuilder struct{ b []byte }

func (rb *rawBuilder) u16(v uint16) *rawBuilder {
	rb.b = binary.LittleEndian.AppendUint16(rb.b, v)
	return rb
}

func (rb *rawBuilder) u32(v uint32) *rawBuilder {
	rb.b = binary.LittleEndian.AppendUint32(rb.b, v)
	return rb
}

func (rb *rawBuilder) str(s string) *rawBuilder {
	for _, u := range utf16.Encode([]rune(s)) {
		rb.u16(u)
	}
	return rb.u16(0)
}

func (rb *rawBuilder) pad() *rawBuilder {
	for len(rb.b)%4 != 0 {
		rb.b = append(rb.b, 0)
	}
	return rb
}

func (rb *rawBuilder) exItem(typ, state, id uint32, resInfo uint16, text string) *rawBuilder {
	return rb.u32(typ).u32(state).u32(id).u16(resInfo).str(text).pad()
}

func fileMenuEx() []byte {
	rb := &rawBuilder{}
	rb.u16(1).u16(4).u32(0)
	rb.exItem(0, 0, 0, resPopup|resEnd, "&File").u32(0)
	rb.exItem(0, 0, 100, 0, "&Open")
	rb.exItem(0, 0, 101, 0, "&Save")
	rb.exItem(TypeSeparator, 0, 0, resEnd, "")
	return rb.b
}

func TestDecodeMenuExPopupWithSeparator(t *testing.T) {
	t.Parallel()

	raw := fileMenuEx()
	require.Len(t, raw, 112)

	m, err := Decode(raw)
	require.NoError(t, err)
	require.True(t, m.Extended)
	require.Len(t, m.Items, 1)

	popup := m.Items[0]
	assert.Equal(t, "&File", popup.Text)
	require.Len(t, popup.Children, 3)

	for i, child := range popup.Children {
		assert.Equal(t, i == 2, child.IsSeparator(), "child %d", i)
	}
	assert.Empty(t, popup.Children[2].Text)
	assert.Equal(t, uint32(100), popup.Children[0].ID)
	assert.Equal(t, "&Save", popup.Children[1].Text)

	out, err := m.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func deepTree() []*Item {
	return []*Item{
		{Text: "&File", Children: []*Item{
			{ID: 1, Text: "New"},
			{Text: "Recent", Children: []*Item{
				{ID: 10, Text: "a.txt"},
				{ID: 11, Text: "bb.txt"},
				{Text: "More", Children: []*Item{
					{ID: 20, Text: "ccc.txt"},
				}},
			}},
			{Type: TypeSeparator},
			{ID: 2, Text: "Exit"},
		}},
		{Text: "&Help", Children: []*Item{
			{ID: 3, Text: "About..."},
		}},
		{ID: 4, Text: "Go"},
	}
}

func countLists(items []*Item) int {
	n := 1
	for _, it := range items {
		if it.IsPopup() {
			n += countLists(it.Children)
		}
	}
	return n
}

// scanEx walks encoded MENUEX items independently of the decoder, checking
// alignment and counting end flags per list.
func scanEx(t *testing.T, r *binutil.Reader, ends *int) {
	t.Helper()
	seenEnd := 0
	for {
		require.Zero(t, r.Offset()%4, "item must start aligned")
		_, err := r.Bytes(12)
		require.NoError(t, err)
		resInfo, err := r.Uint16()
		require.NoError(t, err)
		_, err = r.UTF16String()
		require.NoError(t, err)
		r.Align(4)
		assert.Zero(t, r.Offset()%4, "item must end aligned")
		if resInfo&resPopup != 0 {
			_, err = r.Uint32()
			require.NoError(t, err)
			scanEx(t, r, ends)
		}
		if resInfo&resEnd != 0 {
			seenEnd++
			*ends++
			break
		}
	}
	assert.Equal(t, 1, seenEnd)
}

func TestMenuExLastBitsAndAlignment(t *testing.T) {
	t.Parallel()

	m := &Menu{Extended: true, Items: deepTree()}
	out, err := m.MarshalBinary()
	require.NoError(t, err)
	assert.Zero(t, len(out)%4)

	r := binutil.NewReader(out)
	require.NoError(t, r.Seek(8))
	ends := 0
	scanEx(t, r, &ends)
	assert.Equal(t, countLists(m.Items), ends)
	assert.Zero(t, r.Len())

	got, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, m.Items, got.Items)

	again, err := got.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, out, again)
}

func TestStandardMenuRoundTrip(t *testing.T) {
	t.Parallel()

	rb := &rawBuilder{}
	rb.u16(0).u16(0)
	rb.u16(FlagPopup).str("&File")
	rb.u16(0).u16(100).str("&Open")
	rb.u16(0).u16(0).str("")
	rb.u16(FlagGrayed|FlagEnd).u16(101).str("E&xit")
	rb.u16(FlagPopup | FlagEnd).str("&Help")
	rb.u16(FlagEnd).u16(200).str("&About")
	raw := rb.b

	m, err := Decode(raw)
	require.NoError(t, err)
	assert.False(t, m.Extended)
	require.Len(t, m.Items, 2)
	require.Len(t, m.Items[0].Children, 3)
	assert.Equal(t, uint32(FlagGrayed), m.Items[0].Children[2].Type)
	assert.Equal(t, uint32(200), m.Items[1].Children[0].ID)
	assert.Zero(t, m.Items[0].ID)

	out, err := m.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, raw, out)
	assert.Contains(t, m.String(), "MENUITEM SEPARATOR")
}

func TestDecodeTruncatedKeepsSiblings(t *testing.T) {
	t.Parallel()

	raw := fileMenuEx()
	// Cut inside the "&Save" string of the second child.
	cut := raw[:8+28+4+28+16]

	m, err := Decode(cut)
	require.ErrorIs(t, err, restype.ErrTruncatedResource)
	require.NotNil(t, m)
	require.Len(t, m.Items, 1)
	require.Len(t, m.Items[0].Children, 1)
	assert.Equal(t, "&Open", m.Items[0].Children[0].Text)
}

func TestEncodeRejectsInvalidSeparator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		item *Item
	}{
		{"text", &Item{Type: TypeSeparator, Text: "oops"}},
		{"children", &Item{Type: TypeSeparator, Children: []*Item{{ID: 1, Text: "x"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			for _, extended := range []bool{false, true} {
				m := &Menu{Extended: extended, Items: []*Item{tt.item}}
				_, err := m.MarshalBinary()
				assert.ErrorIs(t, err, restype.ErrInvalidMenu)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, restype.ErrTruncatedResource},
		{"version", []byte{2, 0, 0, 0}, restype.ErrUnsupportedKind},
		{"ex offset", []byte{1, 0, 2, 0, 0, 0}, restype.ErrUnsupportedKind},
		{"no end flag", (&rawBuilder{}).u16(0).u16(0).u16(0).u16(1).str("x").b, restype.ErrTruncatedResource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.data)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestEmptyMenuAndTrailer(t *testing.T) {
	t.Parallel()

	m, err := Decode([]byte{1, 0, 4, 0, 7, 0, 0, 0})
	require.NoError(t, err)
	assert.Empty(t, m.Items)
	assert.Equal(t, uint32(7), m.HelpID)

	raw := append(fileMenuEx(), 0xAA, 0xBB)
	m, err = Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, m.Trailer)
	out, err := m.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestFindAndWalk(t *testing.T) {
	t.Parallel()

	m := &Menu{Extended: true, Items: deepTree()}
	it := m.Find(20)
	require.NotNil(t, it)
	assert.Equal(t, "ccc.txt", it.Text)
	assert.Nil(t, m.Find(999))

	maxDepth := 0
	m.Walk(func(_ *Item, depth int) bool {
		maxDepth = max(maxDepth, depth)
		return true
	})
	assert.Equal(t, 3, maxDepth)
}

func TestCodecRejectsForeignPayload(t *testing.T) {
	t.Parallel()

	_, err := Codec{}.Encode([]byte("nope"))
	assert.ErrorIs(t, err, restype.ErrUnsupportedKind)
}
