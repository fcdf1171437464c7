package peres

import (
	"sync"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/peres/manifest"
	"github.com/meigma/peres/menu"
)

func TestPayloadDecodesLazily(t *testing.T) {
	t.Parallel()

	d := NewDirectory(nil)
	raw := []byte(`<assembly manifestVersion="1.0"/>`)
	e := d.UpsertRaw(TypeManifest, IntID(1), LangNeutral, raw)
	assert.Nil(t, e.state.Load())

	m, err := As[*manifest.Manifest](e)
	require.NoError(t, err)
	assert.Equal(t, "assembly", m.Doc.Root().Tag)

	again, err := As[*manifest.Manifest](e)
	require.NoError(t, err)
	assert.Same(t, m, again)

	_, err = As[*menu.Menu](e)
	assert.ErrorIs(t, err, ErrUnsupportedKind)
}

func TestDecodeErrorIsSticky(t *testing.T) {
	t.Parallel()

	d := NewDirectory(nil)
	// A standard menu whose only item text is unterminated.
	raw := []byte{0, 0, 0, 0, menu.FlagEnd, 0, 1, 0, 'A', 0}
	e := d.UpsertRaw(TypeMenu, IntID(1), LangEnglishUS, raw)

	_, err := e.Payload()
	require.ErrorIs(t, err, ErrTruncatedResource)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, TypeMenu, de.Type)
	assert.Equal(t, IntID(1), de.Name)
	assert.Equal(t, LangEnglishUS, de.Lang)
	partial, ok := de.Partial.(*menu.Menu)
	require.True(t, ok)
	assert.False(t, partial.Extended)
	assert.Contains(t, de.Error(), "RT_MENU/#1/1033")

	_, err = e.Payload()
	var again *DecodeError
	require.ErrorAs(t, err, &again)
	assert.Same(t, de, again)

	// The entry stays raw.
	b, err := e.Bytes()
	require.NoError(t, err)
	assert.Equal(t, raw, b)

	// SetRaw resets the decode state.
	e.SetRaw([]byte{0, 0, 0, 0, menu.FlagEnd, 0, 1, 0, 'A', 0, 0, 0})
	mnu, err := As[*menu.Menu](e)
	require.NoError(t, err)
	require.Len(t, mnu.Items, 1)
	assert.Equal(t, "A", mnu.Items[0].Text)
}

func TestSizeTracksInPlaceEdits(t *testing.T) {
	t.Parallel()

	d := NewDirectory(nil)
	e, err := d.NewManifest(manifest.CreateProcess)
	require.NoError(t, err)
	before, err := e.Size()
	require.NoError(t, err)
	assert.Equal(t, len(manifest.DefaultXML), before)

	m, err := As[*manifest.Manifest](e)
	require.NoError(t, err)
	m.SetExecutionLevel(manifest.RequireAdministrator, false)

	after, err := e.Size()
	require.NoError(t, err)
	b, err := e.Bytes()
	require.NoError(t, err)
	assert.Equal(t, len(b), after)
	assert.Greater(t, after, before)
	assert.Contains(t, string(b), "requireAdministrator")

	dg, err := e.Digest()
	require.NoError(t, err)
	assert.Equal(t, digest.FromBytes(b), dg)
}

func TestSetPayloadRejectsWrongType(t *testing.T) {
	t.Parallel()

	d := NewDirectory(nil)
	e := d.UpsertRaw(TypeMenu, IntID(1), LangNeutral, []byte{1})
	err := e.SetPayload(manifest.New())
	require.ErrorIs(t, err, ErrUnsupportedKind)

	b, err := e.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, b)

	require.NoError(t, e.SetPayload(menu.New(true)))
	mnu, err := As[*menu.Menu](e)
	require.NoError(t, err)
	assert.True(t, mnu.Extended)
}

func TestConcurrentPayloadDecodesOnce(t *testing.T) {
	t.Parallel()

	d := NewDirectory(nil)
	e := d.UpsertRaw(TypeManifest, IntID(1), LangNeutral, []byte(manifest.DefaultXML))

	const n = 16
	got := make([]any, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := e.Payload()
			assert.NoError(t, err)
			got[i] = p
		}()
	}
	wg.Wait()
	for _, p := range got[1:] {
		assert.Same(t, got[0], p)
	}
}
