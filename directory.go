package peres

import (
	"cmp"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"weak"

	"golang.org/x/sync/singleflight"
)

// Directory is the three-level resource tree: type, name, language.
//
// Each level is kept sorted by [Compare] (languages numerically), so
// enumeration and the written layout do not depend on insertion order.
type Directory struct {
	types       []*typeNode
	count       int
	registry    *Registry
	logger      *slog.Logger
	decodeGroup singleflight.Group
}

type typeNode struct {
	id    ID
	names []*nameNode
}

type nameNode struct {
	id    ID
	langs []*Entry
}

// NewDirectory returns an empty directory that decodes with reg. A nil reg
// uses the default registry.
func NewDirectory(reg *Registry) *Directory {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &Directory{registry: reg}
}

func (d *Directory) log() *slog.Logger {
	if d.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.logger
}

// Len returns the number of entries.
func (d *Directory) Len() int { return d.count }

func findType(types []*typeNode, id ID) (int, bool) {
	return slices.BinarySearchFunc(types, id, func(n *typeNode, id ID) int { return Compare(n.id, id) })
}

func findName(names []*nameNode, id ID) (int, bool) {
	return slices.BinarySearchFunc(names, id, func(n *nameNode, id ID) int { return Compare(n.id, id) })
}

func findLang(langs []*Entry, lang uint16) (int, bool) {
	return slices.BinarySearchFunc(langs, lang, func(e *Entry, l uint16) int { return cmp.Compare(e.lang, l) })
}

func (d *Directory) lookupName(typ, name ID) *nameNode {
	ti, ok := findType(d.types, typ)
	if !ok {
		return nil
	}
	names := d.types[ti].names
	ni, ok := findName(names, name)
	if !ok {
		return nil
	}
	return names[ni]
}

// Get returns the entry for (typ, name, lang) or ErrNotFound.
func (d *Directory) Get(typ, name ID, lang uint16) (*Entry, error) {
	if n := d.lookupName(typ, name); n != nil {
		if li, ok := findLang(n.langs, lang); ok {
			return n.langs[li], nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s/%d", ErrNotFound, TypeString(typ), name, lang)
}

// First returns the entry for (typ, name) with the lowest language id.
func (d *Directory) First(typ, name ID) (*Entry, error) {
	if n := d.lookupName(typ, name); n != nil && len(n.langs) > 0 {
		return n.langs[0], nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, TypeString(typ), name)
}

// slot returns the entry for the triple, creating an empty one when absent.
func (d *Directory) slot(typ, name ID, lang uint16) (e *Entry, created bool) {
	ti, ok := findType(d.types, typ)
	if !ok {
		d.types = slices.Insert(d.types, ti, &typeNode{id: typ})
	}
	tn := d.types[ti]
	ni, ok := findName(tn.names, name)
	if !ok {
		tn.names = slices.Insert(tn.names, ni, &nameNode{id: name})
	}
	nn := tn.names[ni]
	li, ok := findLang(nn.langs, lang)
	if ok {
		return nn.langs[li], false
	}
	e = &Entry{typ: typ, name: name, lang: lang, reg: d.registry, dir: weak.Make(d)}
	nn.langs = slices.Insert(nn.langs, li, e)
	d.count++
	return e, true
}

// Upsert stores payload at (typ, name, lang), creating the entry if needed.
// The payload is encoded immediately; on failure the directory is unchanged.
func (d *Directory) Upsert(typ, name ID, lang uint16, payload any) (*Entry, error) {
	codec := d.registry.Lookup(typ)
	if e, err := d.Get(typ, name, lang); err == nil {
		if err := e.setPayload(codec, payload); err != nil {
			return nil, err
		}
		return e, nil
	}
	probe := &Entry{typ: typ, name: name, lang: lang}
	if err := probe.setPayload(codec, payload); err != nil {
		return nil, err
	}
	e, _ := d.slot(typ, name, lang)
	e.raw = probe.raw
	e.state.Store(probe.state.Load())
	return e, nil
}

// UpsertRaw stores a copy of data at (typ, name, lang), dropping any decoded
// payload.
func (d *Directory) UpsertRaw(typ, name ID, lang uint16, data []byte) *Entry {
	e, _ := d.slot(typ, name, lang)
	e.SetRaw(data)
	return e
}

// Remove deletes the entry and prunes empty parent nodes. It reports whether
// an entry was removed. The removed entry is detached from the directory.
func (d *Directory) Remove(typ, name ID, lang uint16) bool {
	ti, ok := findType(d.types, typ)
	if !ok {
		return false
	}
	tn := d.types[ti]
	ni, ok := findName(tn.names, name)
	if !ok {
		return false
	}
	nn := tn.names[ni]
	li, ok := findLang(nn.langs, lang)
	if !ok {
		return false
	}
	nn.langs[li].dir = weak.Pointer[Directory]{}
	nn.langs = slices.Delete(nn.langs, li, li+1)
	d.count--
	if len(nn.langs) == 0 {
		tn.names = slices.Delete(tn.names, ni, ni+1)
	}
	if len(tn.names) == 0 {
		d.types = slices.Delete(d.types, ti, ti+1)
	}
	return true
}

// Entries returns an iterator over entries in canonical order. An optional
// filter restricts the walk to one type, then to one name within it.
//
// The iterator reads the tree directly; the directory must not be modified
// while iterating.
func (d *Directory) Entries(filter ...ID) iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		types := d.types
		if len(filter) > 0 {
			ti, ok := findType(types, filter[0])
			if !ok {
				return
			}
			types = types[ti : ti+1]
		}
		for _, tn := range types {
			names := tn.names
			if len(filter) > 1 {
				ni, ok := findName(names, filter[1])
				if !ok {
					return
				}
				names = names[ni : ni+1]
			}
			for _, nn := range names {
				for _, e := range nn.langs {
					if !yield(e) {
						return
					}
				}
			}
		}
	}
}

// Types returns the resource types present, in canonical order.
func (d *Directory) Types() []ID {
	ids := make([]ID, len(d.types))
	for i, tn := range d.types {
		ids[i] = tn.id
	}
	return ids
}

// Names returns the names present under typ, in canonical order.
func (d *Directory) Names(typ ID) []ID {
	ti, ok := findType(d.types, typ)
	if !ok {
		return nil
	}
	names := d.types[ti].names
	ids := make([]ID, len(names))
	for i, nn := range names {
		ids[i] = nn.id
	}
	return ids
}

// Languages returns the languages present under (typ, name), ascending.
func (d *Directory) Languages(typ, name ID) []uint16 {
	n := d.lookupName(typ, name)
	if n == nil {
		return nil
	}
	langs := make([]uint16, len(n.langs))
	for i, e := range n.langs {
		langs[i] = e.lang
	}
	return langs
}
