// Package manifest decodes and encodes RT_MANIFEST resources, the
// side-by-side assembly manifests embedded in executables.
package manifest

import (
	"bytes"
	"fmt"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/unicode"

	"github.com/meigma/peres/internal/restype"
)

// Kind is the manifest resource name, which tells the loader when the
// manifest applies.
type Kind uint16

const (
	CreateProcess                 Kind = 1
	IsolationAware                Kind = 2
	IsolationAwareNonstaticImport Kind = 3
)

// String returns the conventional name of the manifest kind.
func (k Kind) String() string {
	switch k {
	case CreateProcess:
		return "CREATEPROCESS_MANIFEST_RESOURCE_ID"
	case IsolationAware:
		return "ISOLATIONAWARE_MANIFEST_RESOURCE_ID"
	case IsolationAwareNonstaticImport:
		return "ISOLATIONAWARE_NOSTATICIMPORT_MANIFEST_RESOURCE_ID"
	default:
		return fmt.Sprintf("manifest(%d)", uint16(k))
	}
}

// Encoding is the text encoding a manifest is stored in.
type Encoding uint8

const (
	UTF8 Encoding = iota
	UTF16LE
)

// DefaultXML is the document used for new manifests.
const DefaultXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
	`<assembly xmlns="urn:schemas-microsoft-com:asm.v1" manifestVersion="1.0"/>`

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Manifest is a decoded manifest document.
type Manifest struct {
	// Doc is the parsed XML document.
	Doc *etree.Document

	// BOM requests a UTF-8 byte-order mark on encode. Decoding never sets it,
	// so a BOM present in the source is dropped on re-encode. UTF-16
	// manifests always carry their BOM.
	BOM bool

	// Encoding is the storage encoding. Decode preserves it.
	Encoding Encoding
}

// New returns a manifest holding DefaultXML.
func New() *Manifest {
	m, err := Parse(DefaultXML)
	if err != nil {
		panic("manifest: default document does not parse: " + err.Error())
	}
	return m
}

// Parse builds a UTF-8 manifest from XML text.
func Parse(xml string) (*Manifest, error) {
	doc, err := parseDocument([]byte(xml))
	if err != nil {
		return nil, err
	}
	return &Manifest{Doc: doc}, nil
}

// Decode parses manifest resource bytes. A leading UTF-8 byte-order mark is
// stripped; a UTF-16LE byte-order mark switches the manifest to UTF-16.
func Decode(data []byte) (*Manifest, error) {
	m := &Manifest{}
	switch {
	case bytes.HasPrefix(data, utf8BOM):
		data = data[len(utf8BOM):]
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xFE:
		text, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", restype.ErrMalformedManifest, err)
		}
		data = text
		m.Encoding = UTF16LE
	}

	doc, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	m.Doc = doc
	return m, nil
}

func parseDocument(data []byte) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %w", restype.ErrMalformedManifest, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("%w: no root element", restype.ErrMalformedManifest)
	}
	return doc, nil
}

// MarshalBinary serialises the document. The resource size is exactly the
// length of the result; manifests are not padded.
func (m *Manifest) MarshalBinary() ([]byte, error) {
	if m.Doc == nil {
		return nil, fmt.Errorf("%w: manifest has no document", restype.ErrMalformedManifest)
	}
	text, err := m.Doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	if m.Encoding == UTF16LE {
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes(text)
	}
	if m.BOM {
		return append(append([]byte(nil), utf8BOM...), text...), nil
	}
	return text, nil
}

// String returns the XML text of the manifest.
func (m *Manifest) String() string {
	if m.Doc == nil {
		return ""
	}
	s, err := m.Doc.WriteToString()
	if err != nil {
		return ""
	}
	return s
}

// Codec adapts the package to the peres codec registry.
type Codec struct{}

// Decode implements the registry decode hook.
func (Codec) Decode(data []byte, _ uint16) (any, error) {
	p, err := Decode(data)
	if p == nil {
		return nil, err
	}
	return p, err
}

// Encode implements the registry encode hook.
func (Codec) Encode(payload any) ([]byte, error) {
	m, ok := payload.(*Manifest)
	if !ok {
		return nil, fmt.Errorf("%w: manifest codec cannot encode %T", restype.ErrUnsupportedKind, payload)
	}
	return m.MarshalBinary()
}
