package restype

import (
	"cmp"
	"strconv"
	"strings"

	"github.com/meigma/peres/internal/wtf8"
)

// MaxIntID is the largest numeric id a directory entry can hold.
const MaxIntID = 0x7FFFFFFF

// ID identifies a resource type or name. It is either a numeric ordinal or a
// string name; the zero value is the ordinal 0.
type ID struct {
	name  string
	num   uint32
	named bool
}

// IntID returns a numeric id.
func IntID(n uint32) ID { return ID{num: n} }

// NameID returns a string id.
func NameID(s string) ID { return ID{name: s, named: true} }

// IsName reports whether id is a string name.
func (id ID) IsName() bool { return id.named }

// Num returns the ordinal of a numeric id, or 0 for names.
func (id ID) Num() uint32 { return id.num }

// Name returns the string of a named id, or "" for ordinals.
func (id ID) Name() string { return id.name }

// String renders ordinals as "#n" and names verbatim.
func (id ID) String() string {
	if id.named {
		return id.name
	}
	return "#" + strconv.FormatUint(uint64(id.num), 10)
}

// Compare orders ids: ordinals first by value, then names by UTF-16 code
// units, case sensitive.
func Compare(a, b ID) int {
	switch {
	case a.named != b.named:
		if a.named {
			return 1
		}
		return -1
	case !a.named:
		return cmp.Compare(a.num, b.num)
	default:
		return wtf8.Compare(a.name, b.name)
	}
}

// Well-known resource type ordinals.
const (
	RTCursor       = 1
	RTBitmap       = 2
	RTIcon         = 3
	RTMenu         = 4
	RTDialog       = 5
	RTString       = 6
	RTFontDir      = 7
	RTFont         = 8
	RTAccelerator  = 9
	RTRCData       = 10
	RTMessageTable = 11
	RTGroupCursor  = 12
	RTGroupIcon    = 14
	RTVersion      = 16
	RTDlgInclude   = 17
	RTPlugPlay     = 19
	RTVXD          = 20
	RTAniCursor    = 21
	RTAniIcon      = 22
	RTHTML         = 23
	RTManifest     = 24
)

var typeNames = map[uint32]string{
	RTCursor:       "RT_CURSOR",
	RTBitmap:       "RT_BITMAP",
	RTIcon:         "RT_ICON",
	RTMenu:         "RT_MENU",
	RTDialog:       "RT_DIALOG",
	RTString:       "RT_STRING",
	RTFontDir:      "RT_FONTDIR",
	RTFont:         "RT_FONT",
	RTAccelerator:  "RT_ACCELERATOR",
	RTRCData:       "RT_RCDATA",
	RTMessageTable: "RT_MESSAGETABLE",
	RTGroupCursor:  "RT_GROUP_CURSOR",
	RTGroupIcon:    "RT_GROUP_ICON",
	RTVersion:      "RT_VERSION",
	RTDlgInclude:   "RT_DLGINCLUDE",
	RTPlugPlay:     "RT_PLUGPLAY",
	RTVXD:          "RT_VXD",
	RTAniCursor:    "RT_ANICURSOR",
	RTAniIcon:      "RT_ANIICON",
	RTHTML:         "RT_HTML",
	RTManifest:     "RT_MANIFEST",
}

// TypeString renders a type id, using the RT_ name for well-known ordinals.
func TypeString(id ID) string {
	if !id.named {
		if s, ok := typeNames[id.num]; ok {
			return s
		}
	}
	return id.String()
}

// ParseID parses "#12", "12", a well-known "RT_*" type name, or any other
// string as a name.
func ParseID(s string) ID {
	digits := strings.TrimPrefix(s, "#")
	if digits != "" {
		if n, err := strconv.ParseUint(digits, 10, 31); err == nil {
			return IntID(uint32(n))
		}
	}
	for n, name := range typeNames {
		if name == s {
			return IntID(n)
		}
	}
	return NameID(s)
}
