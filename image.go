package peres

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/peres/internal/pefile"
)

// Image is the resource directory of a PE image or of a bare resource
// section, together with what is needed to write it back.
//
// Image embeds its [Directory], so Get, Upsert, Remove and Entries operate on
// the loaded resources directly.
type Image struct {
	*Directory

	pe         *pefile.File
	baseRVA    uint32
	registry   *Registry
	maxEntries int
	logger     *slog.Logger
}

// log returns the logger, falling back to a discard logger if nil.
func (im *Image) log() *slog.Logger {
	if im.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return im.logger
}

func newImage(opts []Option) *Image {
	im := &Image{}
	for _, opt := range opts {
		opt(im)
	}
	im.Directory = NewDirectory(im.registry)
	im.Directory.logger = im.logger
	return im
}

// New returns an image with an empty directory and no PE container. Bytes
// and Save produce a bare resource section mapped at RVA 0.
func New(opts ...Option) *Image {
	return newImage(opts)
}

// Open reads and loads the PE image at path.
func Open(path string, opts ...Option) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	return Load(data, opts...)
}

// Load parses a PE image held in memory. Entries are decoded lazily; a
// structurally broken resource section fails the load with
// ErrInvalidSection. data is retained and must not be modified.
func Load(data []byte, opts ...Option) (*Image, error) {
	f, err := pefile.Parse(data)
	if err != nil {
		return nil, err
	}
	im := newImage(opts)
	im.pe = f
	section, rva, ok, err := f.Resources()
	if err != nil {
		return nil, err
	}
	if !ok {
		im.log().Debug("image has no resource section")
		return im, nil
	}
	im.baseRVA = rva
	if err := parseSection(section, rva, im.Directory, im.maxEntries); err != nil {
		return nil, err
	}
	im.log().Debug("loaded resources", slog.Int("entries", im.Len()), slog.Uint64("rva", uint64(rva)))
	return im, nil
}

// LoadSection parses a bare resource section whose data entries are relative
// to baseRVA.
func LoadSection(section []byte, baseRVA uint32, opts ...Option) (*Image, error) {
	im := newImage(opts)
	im.baseRVA = baseRVA
	if err := parseSection(section, baseRVA, im.Directory, im.maxEntries); err != nil {
		return nil, err
	}
	return im, nil
}

// IsPE reports whether the image was loaded from a PE file.
func (im *Image) IsPE() bool { return im.pe != nil }

// Section lays out the resource section at the RVA it was loaded from.
func (im *Image) Section() ([]byte, error) {
	return buildSection(im.Directory, im.baseRVA)
}

// Bytes builds the complete output: the PE image with its resource section
// replaced, or the bare section for images without a PE container.
func (im *Image) Bytes() ([]byte, error) {
	if im.pe == nil {
		return im.Section()
	}
	out, placement, err := im.pe.Replace(func(rva uint32) ([]byte, error) {
		return buildSection(im.Directory, rva)
	})
	if err != nil {
		return nil, err
	}
	im.log().Debug("resource section replaced", slog.String("placement", placement.String()))
	return out, nil
}

// DecodeAll decodes every entry and returns the failures, each a
// *DecodeError. Entries that fail stay raw and are written back unchanged.
func (im *Image) DecodeAll() []error {
	entries := make([]*Entry, 0, im.Len())
	for e := range im.Entries() {
		entries = append(entries, e)
	}
	results := make([]error, len(entries))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, e := range entries {
		g.Go(func() error {
			_, results[i] = e.Payload()
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, err := range results {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
