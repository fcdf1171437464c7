package version

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/meigma/peres/internal/binutil"
	"github.com/meigma/peres/internal/restype"
)

// Well-known block keys.
const (
	KeyVersionInfo    = "VS_VERSION_INFO"
	KeyStringFileInfo = "StringFileInfo"
	KeyVarFileInfo    = "VarFileInfo"
	KeyTranslation    = "Translation"
)

// Standard string names in a StringFileInfo table.
const (
	Comments         = "Comments"
	CompanyName      = "CompanyName"
	FileDescription  = "FileDescription"
	FileVersion      = "FileVersion"
	InternalName     = "InternalName"
	LegalCopyright   = "LegalCopyright"
	LegalTrademarks  = "LegalTrademarks"
	OriginalFilename = "OriginalFilename"
	PrivateBuild     = "PrivateBuild"
	ProductName      = "ProductName"
	ProductVersion   = "ProductVersion"
	SpecialBuild     = "SpecialBuild"
)

// FixedSignature is the dwSignature of VS_FIXEDFILEINFO.
const FixedSignature = 0xFEEF04BD

// File types (dwFileType).
const (
	FileTypeUnknown = 0
	FileTypeApp     = 1
	FileTypeDLL     = 2
	FileTypeDriver  = 3
	FileTypeFont    = 4
	FileTypeVXD     = 5
	FileTypeLib     = 7
)

// FileOSNTWindows32 is VOS_NT_WINDOWS32.
const FileOSNTWindows32 = 0x00040004

// Fixed is VS_FIXEDFILEINFO.
type Fixed struct {
	Signature        uint32
	StrucVersion     uint32
	FileVersionMS    uint32
	FileVersionLS    uint32
	ProductVersionMS uint32
	ProductVersionLS uint32
	FileFlagsMask    uint32
	FileFlags        uint32
	FileOS           uint32
	FileType         uint32
	FileSubtype      uint32
	FileDateMS       uint32
	FileDateLS       uint32
}

// fixedSize is binary.Size(Fixed{}).
const fixedSize = 52

// FileVersion returns the binary file version.
func (f Fixed) FileVersion() Version { return versionFrom(f.FileVersionMS, f.FileVersionLS) }

// ProductVersion returns the binary product version.
func (f Fixed) ProductVersion() Version { return versionFrom(f.ProductVersionMS, f.ProductVersionLS) }

// SetFileVersion stores v as the binary file version.
func (f *Fixed) SetFileVersion(v Version) { f.FileVersionMS, f.FileVersionLS = v.split() }

// SetProductVersion stores v as the binary product version.
func (f *Fixed) SetProductVersion(v Version) { f.ProductVersionMS, f.ProductVersionLS = v.split() }

// Version is a four part version number.
type Version [4]uint16

// ParseVersion parses "a.b.c.d"; missing trailing parts are zero.
func ParseVersion(s string) (Version, error) {
	var v Version
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) == 0 || len(parts) > 4 || parts[0] == "" {
		return v, fmt.Errorf("invalid version %q", s)
	}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return v, fmt.Errorf("invalid version %q: %w", s, err)
		}
		v[i] = uint16(n)
	}
	return v, nil
}

// String formats the version as "a.b.c.d".
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v[0], v[1], v[2], v[3])
}

func versionFrom(ms, ls uint32) Version {
	return Version{uint16(ms >> 16), uint16(ms), uint16(ls >> 16), uint16(ls)}
}

func (v Version) split() (ms, ls uint32) {
	return uint32(v[0])<<16 | uint32(v[1]), uint32(v[2])<<16 | uint32(v[3])
}

// Translation is one language and code page pair of the VarFileInfo block.
type Translation struct {
	Lang     uint16
	CodePage uint16
}

// Key returns the StringFileInfo table key for the translation, e.g. "040904b0".
func (t Translation) Key() string {
	return fmt.Sprintf("%04x%04x", t.Lang, t.CodePage)
}

// Info is a decoded RT_VERSION resource.
type Info struct {
	// Root is the VS_VERSION_INFO block.
	Root *Block

	// Trailer holds resource bytes after the root block.
	Trailer []byte
}

// CodePageUnicode is the code page of UTF-16 string tables.
const CodePageUnicode = 1200

// New returns a version resource with an empty fixed info, a string table for
// lang with the Unicode code page and a matching translation.
func New(lang uint16) *Info {
	v := &Info{Root: &Block{Key: KeyVersionInfo}}
	v.SetFixed(Fixed{
		Signature:    FixedSignature,
		StrucVersion: 0x00010000,
		FileOS:       FileOSNTWindows32,
		FileType:     FileTypeApp,
	})
	tr := Translation{Lang: lang, CodePage: CodePageUnicode}
	v.Root.Children = []*Block{
		{Key: KeyStringFileInfo, Text: true, Children: []*Block{{Key: tr.Key(), Text: true}}},
	}
	v.SetTranslations([]Translation{tr})
	return v
}

// Decode parses an RT_VERSION resource.
func Decode(data []byte) (*Info, error) {
	r := binutil.NewReader(data)
	root, err := decodeBlock(r, len(data))
	if err != nil {
		return nil, err
	}
	return &Info{Root: root, Trailer: cloneBytes(r.Rest())}, nil
}

// MarshalBinary encodes the block tree, recomputing every block length.
func (v *Info) MarshalBinary() ([]byte, error) {
	if v.Root == nil {
		return nil, fmt.Errorf("%w: version resource has no root block", restype.ErrUnsupportedKind)
	}
	w := binutil.NewWriter(1024)
	if err := v.Root.encode(w); err != nil {
		return nil, err
	}
	w.Write(v.Trailer)
	return w.Bytes(), nil
}

// Fixed returns the VS_FIXEDFILEINFO value of the root block.
func (v *Info) Fixed() (Fixed, error) {
	var f Fixed
	if len(v.Root.Value) < fixedSize {
		return f, fmt.Errorf("%w: fixed file info is %d bytes", restype.ErrTruncatedResource, len(v.Root.Value))
	}
	if err := binary.Read(bytes.NewReader(v.Root.Value), binary.LittleEndian, &f); err != nil {
		return f, err
	}
	if f.Signature != FixedSignature {
		return f, fmt.Errorf("%w: fixed file info signature %#x", restype.ErrUnsupportedKind, f.Signature)
	}
	return f, nil
}

// SetFixed replaces the VS_FIXEDFILEINFO value of the root block.
func (v *Info) SetFixed(f Fixed) {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, f) //nolint:errcheck // bytes.Buffer writes cannot fail
	v.Root.Text = false
	v.Root.setValue(buf.Bytes())
}

// Tables returns the keys of the StringFileInfo tables, e.g. "040904b0".
func (v *Info) Tables() []string {
	sfi := v.Root.Child(KeyStringFileInfo)
	if sfi == nil {
		return nil
	}
	keys := make([]string, 0, len(sfi.Children))
	for _, c := range sfi.Children {
		keys = append(keys, c.Key)
	}
	return keys
}

// Strings returns the name/value pairs of one string table in stored order.
func (v *Info) Strings(table string) []KeyValue {
	t := v.table(table, false)
	if t == nil {
		return nil
	}
	kvs := make([]KeyValue, 0, len(t.Children))
	for _, c := range t.Children {
		kvs = append(kvs, KeyValue{Key: c.Key, Value: c.TextValue()})
	}
	return kvs
}

// KeyValue is one entry of a string table.
type KeyValue struct {
	Key   string
	Value string
}

// Lookup returns a string. An empty table searches every table in order.
func (v *Info) Lookup(table, key string) (string, bool) {
	sfi := v.Root.Child(KeyStringFileInfo)
	if sfi == nil {
		return "", false
	}
	for _, t := range sfi.Children {
		if table != "" && !strings.EqualFold(t.Key, table) {
			continue
		}
		if s := t.Child(key); s != nil {
			return s.TextValue(), true
		}
	}
	return "", false
}

// SetString sets a string in a table, creating the StringFileInfo block and
// the table when missing. An empty table uses the first existing table.
func (v *Info) SetString(table, key, value string) error {
	t := v.table(table, true)
	if t == nil {
		return fmt.Errorf("%w: no string table to hold %q", restype.ErrNotFound, key)
	}
	s := t.Child(key)
	if s == nil {
		s = &Block{Key: key}
		t.Children = append(t.Children, s)
		t.Trailing = nil
	}
	s.SetTextValue(value)
	return nil
}

// DeleteString removes a string from a table and reports whether it existed.
func (v *Info) DeleteString(table, key string) bool {
	t := v.table(table, false)
	if t == nil {
		return false
	}
	for i, c := range t.Children {
		if c.Key == key {
			t.Children = append(t.Children[:i], t.Children[i+1:]...)
			t.Trailing = nil
			return true
		}
	}
	return false
}

func (v *Info) table(key string, create bool) *Block {
	sfi := v.Root.Child(KeyStringFileInfo)
	if sfi == nil {
		if !create || key == "" {
			return nil
		}
		sfi = &Block{Key: KeyStringFileInfo, Text: true}
		v.Root.Children = append([]*Block{sfi}, v.Root.Children...)
	}
	for _, t := range sfi.Children {
		if key == "" || strings.EqualFold(t.Key, key) {
			return t
		}
	}
	if !create || key == "" {
		return nil
	}
	t := &Block{Key: key, Text: true}
	sfi.Children = append(sfi.Children, t)
	sfi.Trailing = nil
	return t
}

// Translations returns the VarFileInfo\Translation pairs.
func (v *Info) Translations() []Translation {
	vfi := v.Root.Child(KeyVarFileInfo)
	if vfi == nil {
		return nil
	}
	tr := vfi.Child(KeyTranslation)
	if tr == nil {
		return nil
	}
	out := make([]Translation, 0, len(tr.Value)/4)
	for i := 0; i+4 <= len(tr.Value); i += 4 {
		out = append(out, Translation{
			Lang:     binary.LittleEndian.Uint16(tr.Value[i:]),
			CodePage: binary.LittleEndian.Uint16(tr.Value[i+2:]),
		})
	}
	return out
}

// SetTranslations replaces the VarFileInfo\Translation pairs.
func (v *Info) SetTranslations(trs []Translation) {
	vfi := v.Root.Child(KeyVarFileInfo)
	if vfi == nil {
		vfi = &Block{Key: KeyVarFileInfo, Text: true}
		v.Root.Children = append(v.Root.Children, vfi)
		v.Root.Trailing = nil
	}
	tr := vfi.Child(KeyTranslation)
	if tr == nil {
		tr = &Block{Key: KeyTranslation}
		vfi.Children = append(vfi.Children, tr)
		vfi.Trailing = nil
	}
	value := make([]byte, 0, len(trs)*4)
	for _, t := range trs {
		value = binary.LittleEndian.AppendUint16(value, t.Lang)
		value = binary.LittleEndian.AppendUint16(value, t.CodePage)
	}
	tr.Text = false
	tr.setValue(value)
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
	v, ok := payload.(*Info)
	if !ok {
		return nil, fmt.Errorf("%w: version codec cannot encode %T", restype.ErrUnsupportedKind, payload)
	}
	return v.MarshalBinary()
}
