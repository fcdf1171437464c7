package peres

import "github.com/meigma/peres/internal/restype"

// ID identifies a resource type or name: a numeric ordinal or a string.
// IDs are comparable and usable as map keys.
type ID = restype.ID

// IntID returns a numeric id. Ordinals above MaxIntID cannot be written to
// a resource section.
func IntID(n uint32) ID { return restype.IntID(n) }

// NameID returns a string id.
func NameID(s string) ID { return restype.NameID(s) }

// ParseID parses "#12", "12", an "RT_*" type name, or a string name.
func ParseID(s string) ID { return restype.ParseID(s) }

// Compare orders ids: ordinals by value, then names by UTF-16 code units.
func Compare(a, b ID) int { return restype.Compare(a, b) }

// TypeString renders a type id with its RT_ name when it has one.
func TypeString(id ID) string { return restype.TypeString(id) }

// MaxIntID is the largest ordinal a resource section can hold.
const MaxIntID = restype.MaxIntID

// Well-known resource types.
var (
	TypeCursor       = IntID(restype.RTCursor)
	TypeBitmap       = IntID(restype.RTBitmap)
	TypeIcon         = IntID(restype.RTIcon)
	TypeMenu         = IntID(restype.RTMenu)
	TypeDialog       = IntID(restype.RTDialog)
	TypeStringTable  = IntID(restype.RTString)
	TypeFontDir      = IntID(restype.RTFontDir)
	TypeFont         = IntID(restype.RTFont)
	TypeAccelerator  = IntID(restype.RTAccelerator)
	TypeRCData       = IntID(restype.RTRCData)
	TypeMessageTable = IntID(restype.RTMessageTable)
	TypeGroupCursor  = IntID(restype.RTGroupCursor)
	TypeGroupIcon    = IntID(restype.RTGroupIcon)
	TypeVersion      = IntID(restype.RTVersion)
	TypeDlgInclude   = IntID(restype.RTDlgInclude)
	TypePlugPlay     = IntID(restype.RTPlugPlay)
	TypeVXD          = IntID(restype.RTVXD)
	TypeAniCursor    = IntID(restype.RTAniCursor)
	TypeAniIcon      = IntID(restype.RTAniIcon)
	TypeHTML         = IntID(restype.RTHTML)
	TypeManifest     = IntID(restype.RTManifest)
)

// Language ids.
const (
	LangNeutral   uint16 = 0
	LangEnglishUS uint16 = 0x0409
)
