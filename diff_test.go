package peres

import (
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	t.Parallel()

	a := sampleDirectory(t)
	b := sampleDirectory(t)
	changes, err := Diff(a, b)
	require.NoError(t, err)
	assert.Empty(t, changes)

	b.Remove(TypeRCData, IntID(7), 0x0407)
	b.UpsertRaw(TypeRCData, NameID("CONFIG"), LangNeutral, []byte("abd"))
	b.UpsertRaw(TypeHTML, IntID(1), LangNeutral, []byte("<p/>"))

	changes, err = Diff(a, b)
	require.NoError(t, err)
	require.Len(t, changes, 3)

	assert.Equal(t, Removed, changes[0].Kind)
	assert.Equal(t, IntID(7), changes[0].Name)
	assert.Equal(t, digest.FromBytes([]byte{9}), changes[0].Old)
	assert.Empty(t, changes[0].New)

	assert.Equal(t, Modified, changes[1].Kind)
	assert.Equal(t, NameID("CONFIG"), changes[1].Name)
	assert.Equal(t, digest.FromBytes([]byte("abc")), changes[1].Old)
	assert.Equal(t, digest.FromBytes([]byte("abd")), changes[1].New)

	assert.Equal(t, Added, changes[2].Kind)
	assert.Equal(t, TypeHTML, changes[2].Type)
	assert.Equal(t, "added RT_HTML/#1/0", changes[2].String())
}
