package manifest

import (
	"encoding/binary"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/peres/internal/restype"
)

func TestDecodeStripsUTF8BOM(t *testing.T) {
	t.Parallel()

	raw := append([]byte{0xEF, 0xBB, 0xBF}, "<assembly/>"...)
	m, err := Decode(raw)
	require.NoError(t, err)
	assert.False(t, m.BOM)
	assert.Equal(t, "assembly", m.Doc.Root().Tag)

	out, err := m.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, raw[3:], out)

	m.BOM = true
	out, err = m.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestNewRoundTrips(t *testing.T) {
	t.Parallel()

	m := New()
	out, err := m.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, DefaultXML, string(out))
	assert.Equal(t, DefaultXML, m.String())

	again, err := Decode(out)
	require.NoError(t, err)
	assert.Equal(t, m.String(), again.String())
}

func TestDecodeUTF16(t *testing.T) {
	t.Parallel()

	raw := []byte{0xFF, 0xFE}
	for _, u := range utf16.Encode([]rune("<assembly/>")) {
		raw = binary.LittleEndian.AppendUint16(raw, u)
	}

	m, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, UTF16LE, m.Encoding)
	assert.Equal(t, "<assembly/>", m.String())

	out, err := m.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, raw, out)
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"plain text", "<assembly", ""} {
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			_, err := Decode([]byte(input))
			assert.ErrorIs(t, err, restype.ErrMalformedManifest)
		})
	}
}

func TestExecutionLevel(t *testing.T) {
	t.Parallel()

	m := New()
	level, _ := m.ExecutionLevel()
	assert.Empty(t, level)

	m.SetExecutionLevel(RequireAdministrator, false)
	level, ui := m.ExecutionLevel()
	assert.Equal(t, RequireAdministrator, level)
	assert.False(t, ui)
	assert.Contains(t, m.String(), `<trustInfo xmlns="urn:schemas-microsoft-com:asm.v3">`)

	m.SetExecutionLevel(AsInvoker, true)
	level, ui = m.ExecutionLevel()
	assert.Equal(t, AsInvoker, level)
	assert.True(t, ui)

	out, err := m.MarshalBinary()
	require.NoError(t, err)
	again, err := Decode(out)
	require.NoError(t, err)
	level, _ = again.ExecutionLevel()
	assert.Equal(t, AsInvoker, level)
}

func TestPrefixedExecutionLevel(t *testing.T) {
	t.Parallel()

	m, err := Parse(`<assembly xmlns="urn:schemas-microsoft-com:asm.v1" manifestVersion="1.0">` +
		`<ms_asmv3:trustInfo xmlns:ms_asmv3="urn:schemas-microsoft-com:asm.v3"><ms_asmv3:security>` +
		`<ms_asmv3:requestedPrivileges><ms_asmv3:requestedExecutionLevel level="highestAvailable" uiAccess="false"/>` +
		`</ms_asmv3:requestedPrivileges></ms_asmv3:security></ms_asmv3:trustInfo></assembly>`)
	require.NoError(t, err)

	level, _ := m.ExecutionLevel()
	assert.Equal(t, HighestAvailable, level)
}

func TestIdentity(t *testing.T) {
	t.Parallel()

	m := New()
	_, ok := m.Identity()
	assert.False(t, ok)

	want := Identity{Name: "Contoso.App", Version: "1.2.3.4", Type: "win32", ProcessorArchitecture: "amd64"}
	m.SetIdentity(want)
	got, ok := m.Identity()
	require.True(t, ok)
	assert.Equal(t, want, got)

	want.ProcessorArchitecture = ""
	m.SetIdentity(want)
	assert.NotContains(t, m.String(), "processorArchitecture")
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CREATEPROCESS_MANIFEST_RESOURCE_ID", CreateProcess.String())
	assert.Equal(t, "manifest(9)", Kind(9).String())
}
