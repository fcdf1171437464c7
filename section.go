package peres

import (
	"fmt"
	"math"
	"slices"

	"github.com/meigma/peres/internal/binutil"
)

// Resource section layout.
const (
	dirTableSize  = 16
	dirEntrySize  = 8
	dataEntrySize = 16
	dataAlign     = 4

	highBit = 0x80000000
)

// tableEntry is one decoded IMAGE_RESOURCE_DIRECTORY_ENTRY.
type tableEntry struct {
	id     ID
	off    uint32
	subdir bool
}

type sectionParser struct {
	r          *binutil.Reader
	base       uint32
	seen       map[uint32]bool
	maxEntries int
}

// parseSection walks a resource section into d. baseRVA is the virtual
// address the section is mapped at; data entry offsets are relative to it.
func parseSection(section []byte, baseRVA uint32, d *Directory, maxEntries int) error {
	p := &sectionParser{
		r:          binutil.NewReader(section),
		base:       baseRVA,
		seen:       make(map[uint32]bool),
		maxEntries: maxEntries,
	}
	types, err := p.table(0)
	if err != nil {
		return err
	}
	for _, te := range types {
		if !te.subdir {
			return fmt.Errorf("%w: type %s is not a directory", ErrInvalidSection, te.id)
		}
		names, err := p.table(te.off)
		if err != nil {
			return err
		}
		for _, ne := range names {
			if !ne.subdir {
				return fmt.Errorf("%w: name %s/%s is not a directory", ErrInvalidSection, TypeString(te.id), ne.id)
			}
			langs, err := p.table(ne.off)
			if err != nil {
				return err
			}
			for _, le := range langs {
				if err := p.leaf(d, te.id, ne.id, le); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (p *sectionParser) leaf(d *Directory, typ, name ID, le tableEntry) error {
	if le.subdir || le.id.IsName() || le.id.Num() > math.MaxUint16 {
		return fmt.Errorf("%w: bad language entry %s under %s/%s", ErrInvalidSection, le.id, TypeString(typ), name)
	}
	if p.maxEntries > 0 && d.Len() >= p.maxEntries {
		return fmt.Errorf("%w: more than %d entries", ErrInvalidSection, p.maxEntries)
	}
	data, codepage, err := p.data(le.off)
	if err != nil {
		return fmt.Errorf("%s/%s/%d: %w", TypeString(typ), name, le.id.Num(), err)
	}
	e, created := d.slot(typ, name, uint16(le.id.Num()))
	if !created {
		return fmt.Errorf("%w: duplicate entry %s", ErrInvalidSection, e.key())
	}
	e.raw = data
	e.codepage = codepage
	return nil
}

// table reads the directory table at off. Each table may be visited once,
// which stops reference cycles.
func (p *sectionParser) table(off uint32) ([]tableEntry, error) {
	if p.seen[off] {
		return nil, fmt.Errorf("%w: directory table at 0x%x referenced twice", ErrInvalidSection, off)
	}
	p.seen[off] = true
	if err := p.r.Seek(int(off)); err != nil {
		return nil, fmt.Errorf("%w: directory table: %w", ErrInvalidSection, err)
	}
	if _, err := p.r.Bytes(12); err != nil {
		return nil, fmt.Errorf("%w: directory table: %w", ErrInvalidSection, err)
	}
	named, _ := p.r.Uint16()
	ids, err := p.r.Uint16()
	if err != nil {
		return nil, fmt.Errorf("%w: directory table: %w", ErrInvalidSection, err)
	}
	n := int(named) + int(ids)
	if p.r.Len() < n*dirEntrySize {
		return nil, fmt.Errorf("%w: directory table at 0x%x overruns the section", ErrInvalidSection, off)
	}
	raw := make([][2]uint32, n)
	for i := range raw {
		raw[i][0], _ = p.r.Uint32()
		raw[i][1], _ = p.r.Uint32()
	}

	entries := make([]tableEntry, n)
	for i, v := range raw {
		entries[i] = tableEntry{off: v[1] &^ highBit, subdir: v[1]&highBit != 0}
		if v[0]&highBit == 0 {
			entries[i].id = IntID(v[0])
			continue
		}
		name, err := p.name(v[0] &^ highBit)
		if err != nil {
			return nil, err
		}
		entries[i].id = NameID(name)
	}
	return entries, nil
}

// name reads the length-prefixed UTF-16 string at off.
func (p *sectionParser) name(off uint32) (string, error) {
	if err := p.r.Seek(int(off)); err != nil {
		return "", fmt.Errorf("%w: name: %w", ErrInvalidSection, err)
	}
	n, err := p.r.Uint16()
	if err != nil {
		return "", fmt.Errorf("%w: name: %w", ErrInvalidSection, err)
	}
	s, err := p.r.UTF16N(int(n))
	if err != nil {
		return "", fmt.Errorf("%w: name: %w", ErrInvalidSection, err)
	}
	return s, nil
}

// data reads the IMAGE_RESOURCE_DATA_ENTRY at off and returns a copy of the
// data it points to.
func (p *sectionParser) data(off uint32) ([]byte, uint32, error) {
	if err := p.r.Seek(int(off)); err != nil {
		return nil, 0, fmt.Errorf("%w: data entry: %w", ErrInvalidSection, err)
	}
	if p.r.Len() < dataEntrySize {
		return nil, 0, fmt.Errorf("%w: data entry at 0x%x overruns the section", ErrInvalidSection, off)
	}
	rva, _ := p.r.Uint32()
	size, _ := p.r.Uint32()
	codepage, _ := p.r.Uint32()

	start := int64(rva) - int64(p.base)
	if start < 0 || start+int64(size) > int64(p.r.Size()) {
		return nil, 0, fmt.Errorf("%w: data at rva 0x%x size %d is outside the section", ErrInvalidSection, rva, size)
	}
	if err := p.r.Seek(int(start)); err != nil {
		return nil, 0, fmt.Errorf("%w: data: %w", ErrInvalidSection, err)
	}
	b, err := p.r.Bytes(int(size))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: data: %w", ErrInvalidSection, err)
	}
	return slices.Clone(b), codepage, nil
}

// diskOrder returns s with named ids first, as the loader expects, followed
// by the numeric ids. s is in canonical order, which puts names last.
func diskOrder[T any](s []T, id func(T) ID) []T {
	k, _ := slices.BinarySearchFunc(s, true, func(v T, _ bool) int {
		if id(v).IsName() {
			return 1
		}
		return -1
	})
	out := make([]T, 0, len(s))
	out = append(out, s[k:]...)
	return append(out, s[:k]...)
}

func typeID(n *typeNode) ID { return n.id }
func nameID(n *nameNode) ID { return n.id }

// buildSection lays out d as a resource section mapped at baseRVA: directory
// tables, data entries, name strings, then the data of every entry in
// canonical order, each padded to four bytes.
func buildSection(d *Directory, baseRVA uint32) ([]byte, error) {
	var entries []*Entry
	var blobs [][]byte
	for e := range d.Entries() {
		b, err := e.Bytes()
		if err != nil {
			return nil, err
		}
		if uint64(len(b)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: %s is too large", ErrUnsupportedKind, e.key())
		}
		entries = append(entries, e)
		blobs = append(blobs, b)
	}
	dataIndex := make(map[*Entry]int, len(entries))
	for i, e := range entries {
		dataIndex[e] = i
	}

	types := diskOrder(d.types, typeID)
	if len(types) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d resource types", ErrUnsupportedKind, len(types))
	}
	typeTables := make(map[*typeNode]int, len(types))
	nameTables := make(map[*nameNode]int)
	names := make(map[*typeNode][]*nameNode, len(types))

	off := dirTableSize + len(types)*dirEntrySize
	for _, tn := range types {
		if len(tn.names) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: %d names under %s", ErrUnsupportedKind, len(tn.names), TypeString(tn.id))
		}
		names[tn] = diskOrder(tn.names, nameID)
		typeTables[tn] = off
		off += dirTableSize + len(tn.names)*dirEntrySize
	}
	for _, tn := range types {
		for _, nn := range names[tn] {
			if len(nn.langs) > math.MaxUint16 {
				return nil, fmt.Errorf("%w: %d languages under %s/%s", ErrUnsupportedKind, len(nn.langs), TypeString(tn.id), nn.id)
			}
			nameTables[nn] = off
			off += dirTableSize + len(nn.langs)*dirEntrySize
		}
	}
	dataEntries := off
	off += len(entries) * dataEntrySize

	strOff := make(map[string]int)
	var strs []string
	addID := func(id ID) error {
		if !id.IsName() {
			if id.Num() > MaxIntID {
				return fmt.Errorf("%w: ordinal %#x does not fit in 31 bits", ErrUnsupportedKind, id.Num())
			}
			return nil
		}
		if _, ok := strOff[id.Name()]; ok {
			return nil
		}
		n := binutil.UTF16Len(id.Name())
		if n > math.MaxUint16 {
			return fmt.Errorf("%w: name of %d code units", ErrUnsupportedKind, n)
		}
		strOff[id.Name()] = off
		strs = append(strs, id.Name())
		off += 2 + 2*n
		return nil
	}
	for _, tn := range types {
		if err := addID(tn.id); err != nil {
			return nil, err
		}
	}
	for _, tn := range types {
		for _, nn := range names[tn] {
			if err := addID(nn.id); err != nil {
				return nil, err
			}
		}
	}
	off = binutil.AlignUp(off, dataAlign)
	dataOff := make([]int, len(blobs))
	for i, b := range blobs {
		dataOff[i] = off
		off += binutil.AlignUp(len(b), dataAlign)
	}
	if uint64(off)+uint64(baseRVA) > math.MaxUint32 || uint64(off) > highBit {
		return nil, fmt.Errorf("%w: resource section of %d bytes is too large", ErrUnsupportedKind, off)
	}

	w := binutil.NewWriter(off)
	writeTable := func(named, total int) {
		w.Write(make([]byte, 12))
		w.Uint16(uint16(named))         //nolint:gosec // checked above
		w.Uint16(uint16(total - named)) //nolint:gosec // checked above
	}
	writeEntry := func(id ID, target int, subdir bool) {
		v := id.Num()
		if id.IsName() {
			v = uint32(strOff[id.Name()]) | highBit //nolint:gosec // bounded by section size
		}
		t := uint32(target) //nolint:gosec // bounded by section size
		if subdir {
			t |= highBit
		}
		w.Uint32(v)
		w.Uint32(t)
	}
	countNamed := func(n int, id func(int) ID) int {
		c := 0
		for i := range n {
			if id(i).IsName() {
				c++
			}
		}
		return c
	}

	writeTable(countNamed(len(types), func(i int) ID { return types[i].id }), len(types))
	for _, tn := range types {
		writeEntry(tn.id, typeTables[tn], true)
	}
	for _, tn := range types {
		nn := names[tn]
		writeTable(countNamed(len(nn), func(i int) ID { return nn[i].id }), len(nn))
		for _, n := range nn {
			writeEntry(n.id, nameTables[n], true)
		}
	}
	for _, tn := range types {
		for _, nn := range names[tn] {
			writeTable(0, len(nn.langs))
			for _, e := range nn.langs {
				writeEntry(IntID(uint32(e.lang)), dataEntries+dataIndex[e]*dataEntrySize, false)
			}
		}
	}
	for i, e := range entries {
		w.Uint32(baseRVA + uint32(dataOff[i])) //nolint:gosec // checked above
		w.Uint32(uint32(len(blobs[i])))        //nolint:gosec // checked above
		w.Uint32(e.codepage)
		w.Uint32(0)
	}
	for _, s := range strs {
		at := w.Len()
		w.Uint16(0)
		w.PutUint16At(at, uint16(w.UTF16N(s))) //nolint:gosec // checked in addID
	}
	w.Align(dataAlign)
	for _, b := range blobs {
		w.Write(b)
		w.Align(dataAlign)
	}
	return w.Bytes(), nil
}
