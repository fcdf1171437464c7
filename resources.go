package peres

import (
	"fmt"

	"github.com/meigma/peres/manifest"
	"github.com/meigma/peres/stringtable"
	"github.com/meigma/peres/version"
)

// firstOf returns the first entry of typ in canonical order.
func (d *Directory) firstOf(typ ID) (*Entry, error) {
	for e := range d.Entries(typ) {
		return e, nil
	}
	return nil, fmt.Errorf("%w: no %s", ErrNotFound, TypeString(typ))
}

// Manifest returns the first RT_MANIFEST entry and its document.
func (d *Directory) Manifest() (*manifest.Manifest, *Entry, error) {
	e, err := d.firstOf(TypeManifest)
	if err != nil {
		return nil, nil, err
	}
	m, err := As[*manifest.Manifest](e)
	return m, e, err
}

// NewManifest stores the default manifest document as the manifest of the
// given kind, language neutral.
func (d *Directory) NewManifest(kind manifest.Kind) (*Entry, error) {
	return d.Upsert(TypeManifest, IntID(uint32(kind)), LangNeutral, manifest.New())
}

// VersionInfo returns the first RT_VERSION entry and its payload.
func (d *Directory) VersionInfo() (*version.Info, *Entry, error) {
	e, err := d.firstOf(TypeVersion)
	if err != nil {
		return nil, nil, err
	}
	v, err := As[*version.Info](e)
	return v, e, err
}

// LookupString returns the string resource id in language lang.
func (d *Directory) LookupString(id uint16, lang uint16) (string, error) {
	e, err := d.Get(TypeStringTable, IntID(uint32(stringtable.BlockID(id))), lang)
	if err != nil {
		return "", err
	}
	b, err := As[*stringtable.Block](e)
	if err != nil {
		return "", err
	}
	s := b.Strings[stringtable.Index(id)]
	if s == "" {
		return "", fmt.Errorf("%w: string %d", ErrNotFound, id)
	}
	return s, nil
}

// SetString stores s as string resource id in language lang, creating the
// block if needed.
func (d *Directory) SetString(id uint16, lang uint16, s string) error {
	name := IntID(uint32(stringtable.BlockID(id)))
	b := &stringtable.Block{}
	if e, err := d.Get(TypeStringTable, name, lang); err == nil {
		if b, err = As[*stringtable.Block](e); err != nil {
			return err
		}
	}
	b.Set(id, s)
	_, err := d.Upsert(TypeStringTable, name, lang, b)
	return err
}
