// Package editscript applies a YAML description of resource edits to an
// image.
//
// A script is a list of edits applied in order:
//
//	edits:
//	  - op: manifest
//	    execution_level: requireAdministrator
//	  - op: version
//	    file_version: 1.2.0.0
//	    strings:
//	      CompanyName: Example Ltd
//	  - op: string
//	    id: 101
//	    lang: 1033
//	    value: Open
//	  - op: raw
//	    type: RT_RCDATA
//	    name: CONFIG
//	    file: config.bin
//	  - op: remove
//	    type: RT_ICON
//	    name: "#3"
//
// Relative file paths are resolved against the script's directory.
package editscript

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/meigma/peres"
	"github.com/meigma/peres/manifest"
	"github.com/meigma/peres/version"
)

// Operations.
const (
	OpManifest = "manifest"
	OpVersion  = "version"
	OpString   = "string"
	OpRaw      = "raw"
	OpRemove   = "remove"
)

// ErrInvalidScript is returned when a script cannot be parsed or an edit is
// missing required fields.
var ErrInvalidScript = errors.New("editscript: invalid script")

// Script is a parsed edit script.
type Script struct {
	Edits []Edit `yaml:"edits"`

	// dir resolves relative file paths.
	dir string
}

// Edit is one operation. Which fields apply depends on Op.
type Edit struct {
	Op string `yaml:"op"`

	// Type, Name and Lang select the entry for raw and remove edits, and the
	// manifest or version entry when set. Lang nil on remove means every
	// language.
	Type string  `yaml:"type,omitempty"`
	Name string  `yaml:"name,omitempty"`
	Lang *uint16 `yaml:"lang,omitempty"`

	// Manifest edits.
	ExecutionLevel string    `yaml:"execution_level,omitempty"`
	UIAccess       bool      `yaml:"ui_access,omitempty"`
	Identity       *Identity `yaml:"identity,omitempty"`
	XML            string    `yaml:"xml,omitempty"`

	// Version edits.
	FileVersion    string            `yaml:"file_version,omitempty"`
	ProductVersion string            `yaml:"product_version,omitempty"`
	Table          string            `yaml:"table,omitempty"`
	Strings        map[string]string `yaml:"strings,omitempty"`

	// String table edits.
	ID    uint16 `yaml:"id,omitempty"`
	Value string `yaml:"value,omitempty"`

	// Raw edits take File or Data.
	File string `yaml:"file,omitempty"`
	Data string `yaml:"data,omitempty"`
}

// Identity is the assemblyIdentity written by a manifest edit.
type Identity struct {
	Name                  string `yaml:"name"`
	Version               string `yaml:"version"`
	Type                  string `yaml:"type,omitempty"`
	ProcessorArchitecture string `yaml:"processor_architecture,omitempty"`
	PublicKeyToken        string `yaml:"public_key_token,omitempty"`
}

// Parse decodes a script. Unknown fields are rejected.
func Parse(data []byte) (*Script, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Script
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScript, err)
	}
	for i, e := range s.Edits {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("%w: edit %d: %w", ErrInvalidScript, i, err)
		}
	}
	return &s, nil
}

// Load reads and parses the script at path.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, err
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

func (e *Edit) validate() error {
	switch e.Op {
	case OpManifest:
		if e.ExecutionLevel == "" && e.Identity == nil && e.XML == "" {
			return errors.New("manifest edit changes nothing")
		}
	case OpVersion:
		if e.FileVersion == "" && e.ProductVersion == "" && len(e.Strings) == 0 {
			return errors.New("version edit changes nothing")
		}
	case OpString:
		if e.Lang == nil {
			return errors.New("string edit needs lang")
		}
	case OpRaw:
		if e.Type == "" || e.Name == "" {
			return errors.New("raw edit needs type and name")
		}
		if (e.File == "") == (e.Data == "") {
			return errors.New("raw edit needs exactly one of file and data")
		}
	case OpRemove:
		if e.Type == "" || e.Name == "" {
			return errors.New("remove edit needs type and name")
		}
	default:
		return fmt.Errorf("unknown op %q", e.Op)
	}
	return nil
}

func (e *Edit) lang() uint16 {
	if e.Lang == nil {
		return peres.LangNeutral
	}
	return *e.Lang
}

// Apply runs every edit against im in order and stops at the first failure.
func (s *Script) Apply(im *peres.Image) error {
	for i := range s.Edits {
		e := &s.Edits[i]
		if err := s.apply(im, e); err != nil {
			return fmt.Errorf("edit %d (%s): %w", i, e.Op, err)
		}
	}
	return nil
}

func (s *Script) apply(im *peres.Image, e *Edit) error {
	switch e.Op {
	case OpManifest:
		return applyManifest(im, e)
	case OpVersion:
		return applyVersion(im, e)
	case OpString:
		return im.SetString(e.ID, e.lang(), e.Value)
	case OpRaw:
		data := []byte(e.Data)
		if e.File != "" {
			path := e.File
			if !filepath.IsAbs(path) && s.dir != "" {
				path = filepath.Join(s.dir, path)
			}
			var err error
			if data, err = os.ReadFile(path); err != nil {
				return err
			}
		}
		im.UpsertRaw(peres.ParseID(e.Type), peres.ParseID(e.Name), e.lang(), data)
		return nil
	case OpRemove:
		return applyRemove(im, e)
	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidScript, e.Op)
	}
}

// target returns the entry an edit of typ selects: the one named by the edit,
// or the first of that type.
func target(im *peres.Image, typ peres.ID, e *Edit) (*peres.Entry, error) {
	if e.Name == "" {
		for entry := range im.Entries(typ) {
			return entry, nil
		}
		return nil, fmt.Errorf("%w: no %s", peres.ErrNotFound, peres.TypeString(typ))
	}
	return im.Get(typ, peres.ParseID(e.Name), e.lang())
}

func applyManifest(im *peres.Image, e *Edit) error {
	if e.XML != "" {
		m, err := manifest.Parse(e.XML)
		if err != nil {
			return err
		}
		name := peres.IntID(uint32(manifest.CreateProcess))
		if e.Name != "" {
			name = peres.ParseID(e.Name)
		}
		if _, err := im.Upsert(peres.TypeManifest, name, e.lang(), m); err != nil {
			return err
		}
	}

	entry, err := target(im, peres.TypeManifest, e)
	if errors.Is(err, peres.ErrNotFound) && e.Name == "" {
		entry, err = im.NewManifest(manifest.CreateProcess)
	}
	if err != nil {
		return err
	}
	m, err := peres.As[*manifest.Manifest](entry)
	if err != nil {
		return err
	}
	if e.ExecutionLevel != "" {
		m.SetExecutionLevel(e.ExecutionLevel, e.UIAccess)
	}
	if e.Identity != nil {
		m.SetIdentity(manifest.Identity(*e.Identity))
	}
	return nil
}

func applyVersion(im *peres.Image, e *Edit) error {
	entry, err := target(im, peres.TypeVersion, e)
	if errors.Is(err, peres.ErrNotFound) {
		name := peres.IntID(1)
		if e.Name != "" {
			name = peres.ParseID(e.Name)
		}
		entry, err = im.Upsert(peres.TypeVersion, name, e.lang(), version.New(e.lang()))
	}
	if err != nil {
		return err
	}
	info, err := peres.As[*version.Info](entry)
	if err != nil {
		return err
	}

	if e.FileVersion != "" || e.ProductVersion != "" {
		fixed, err := info.Fixed()
		if err != nil {
			return err
		}
		if e.FileVersion != "" {
			v, err := version.ParseVersion(e.FileVersion)
			if err != nil {
				return err
			}
			fixed.SetFileVersion(v)
		}
		if e.ProductVersion != "" {
			v, err := version.ParseVersion(e.ProductVersion)
			if err != nil {
				return err
			}
			fixed.SetProductVersion(v)
		}
		info.SetFixed(fixed)
	}

	table := e.Table
	if table == "" {
		if tables := info.Tables(); len(tables) > 0 {
			table = tables[0]
		} else {
			table = version.Translation{Lang: entry.Lang(), CodePage: version.CodePageUnicode}.Key()
		}
	}
	for _, key := range slices.Sorted(maps.Keys(e.Strings)) {
		if err := info.SetString(table, key, e.Strings[key]); err != nil {
			return err
		}
	}
	return nil
}

func applyRemove(im *peres.Image, e *Edit) error {
	typ, name := peres.ParseID(e.Type), peres.ParseID(e.Name)
	if e.Lang != nil {
		if !im.Remove(typ, name, *e.Lang) {
			return fmt.Errorf("%w: %s/%s/%d", peres.ErrNotFound, peres.TypeString(typ), name, *e.Lang)
		}
		return nil
	}
	langs := im.Languages(typ, name)
	if len(langs) == 0 {
		return fmt.Errorf("%w: %s/%s", peres.ErrNotFound, peres.TypeString(typ), name)
	}
	for _, l := range langs {
		im.Remove(typ, name, l)
	}
	return nil
}
