package peres

import (
	"cmp"
	"fmt"

	"github.com/opencontainers/go-digest"
)

// ChangeKind classifies a difference between two directories.
type ChangeKind int

const (
	Added ChangeKind = iota + 1
	Removed
	Modified
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	default:
		return fmt.Sprintf("ChangeKind(%d)", int(k))
	}
}

// Change is one entry that differs between two directories. Old is empty for
// added entries and New for removed ones.
type Change struct {
	Kind ChangeKind
	Type ID
	Name ID
	Lang uint16
	Old  digest.Digest
	New  digest.Digest
}

func (c Change) String() string {
	return fmt.Sprintf("%s %s/%s/%d", c.Kind, TypeString(c.Type), c.Name, c.Lang)
}

func compareEntries(a, b *Entry) int {
	if c := Compare(a.typ, b.typ); c != 0 {
		return c
	}
	if c := Compare(a.name, b.name); c != 0 {
		return c
	}
	return cmp.Compare(a.lang, b.lang)
}

// Diff compares the encoded data of two directories entry by entry and
// returns the changes from a to b in canonical order.
func Diff(a, b *Directory) ([]Change, error) {
	left := collect(a)
	right := collect(b)

	var changes []Change
	i, j := 0, 0
	for i < len(left) || j < len(right) {
		var c int
		switch {
		case i == len(left):
			c = 1
		case j == len(right):
			c = -1
		default:
			c = compareEntries(left[i], right[j])
		}

		switch {
		case c < 0:
			d, err := left[i].Digest()
			if err != nil {
				return nil, err
			}
			changes = append(changes, change(Removed, left[i], d, ""))
			i++
		case c > 0:
			d, err := right[j].Digest()
			if err != nil {
				return nil, err
			}
			changes = append(changes, change(Added, right[j], "", d))
			j++
		default:
			od, err := left[i].Digest()
			if err != nil {
				return nil, err
			}
			nd, err := right[j].Digest()
			if err != nil {
				return nil, err
			}
			if od != nd {
				changes = append(changes, change(Modified, right[j], od, nd))
			}
			i++
			j++
		}
	}
	return changes, nil
}

func collect(d *Directory) []*Entry {
	out := make([]*Entry, 0, d.Len())
	for e := range d.Entries() {
		out = append(out, e)
	}
	return out
}

func change(k ChangeKind, e *Entry, before, after digest.Digest) Change {
	return Change{Kind: k, Type: e.typ, Name: e.name, Lang: e.lang, Old: before, New: after}
}
