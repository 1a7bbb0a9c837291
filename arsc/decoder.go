// Package arsc decodes compiled resource tables (resources.arsc) into a
// res.Table.
package arsc

import (
	"fmt"
	"io"
	"log"
	"unicode/utf16"

	"github.com/pkg/errors"

	"github.com/avast/apkres/internal/chunk"
	"github.com/avast/apkres/res"
	"github.com/avast/apkres/resconfig"
	"github.com/avast/apkres/stringblock"
)

var (
	// ErrUnexpectedChunk is returned when a chunk of the wrong type appears
	// where the table grammar requires a specific one.
	ErrUnexpectedChunk = errors.New("unexpected chunk")

	ErrInvalidEntry = errors.New("invalid entry")
)

const (
	entryFlagComplex = 0x0001
	entryFlagCompact = 0x0008

	typeFlagSparse   = 0x01
	typeFlagOffset16 = 0x02

	noEntry   = -1
	noEntry16 = 0xffff

	// package header with typeIdOffset
	splitPackageHeaderSize = 2 + 2 + 4 + 4 + 2*128 + 4*5

	packageNameUnits = 128
	overlayNameUnits = 256
)

// Options control a single Decode call.
type Options struct {
	// KeepBroken keeps resources of invalid configurations and lets
	// duplicate resources overwrite each other instead of failing.
	KeepBroken bool

	// FlagsOffsets records where each type spec's flags are stored.
	FlagsOffsets bool

	// Framework adds the decoded packages as framework packages.
	Framework bool

	Logger *log.Logger
}

// FlagsOffset locates the entry flags array of a type spec chunk.
type FlagsOffset struct {
	Offset int
	Count  int
}

type Result struct {
	Packages     []*res.Package
	FlagsOffsets []FlagsOffset

	// Libraries maps shared library package ids to their names.
	Libraries map[int]string
}

// OnePackage picks the package with the most specs, the last one winning
// ties.
func (r *Result) OnePackage() (*res.Package, error) {
	if len(r.Packages) == 0 {
		return nil, errors.New("resource table contains zero packages")
	}
	best := r.Packages[0]
	for _, pkg := range r.Packages {
		if pkg.ResSpecCount() >= best.ResSpecCount() {
			best = pkg
		}
	}
	return best, nil
}

type entryOffset struct {
	idx    int
	offset int
}

type decoder struct {
	r      *chunk.Reader
	table  *res.Table
	opts   Options
	logger *log.Logger
	result *Result

	tableStrings *stringblock.StringBlock
	typeNames    *stringblock.StringBlock
	keyNames     *stringblock.StringBlock

	pkg          *res.Package
	typeSpec     *res.TypeSpec
	typ          *res.Type
	typeSpecs    map[int]*res.TypeSpec
	resID        uint32
	typeIDOffset int
	missing      []int
}

// Decode reads a whole resource table and registers its packages in table.
func Decode(data []byte, table *res.Table, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = table.Logger
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	d := &decoder{
		r:      chunk.NewReader(data),
		table:  table,
		opts:   opts,
		logger: logger,
		result: &Result{Libraries: make(map[int]string)},
	}
	if err := d.readTable(); err != nil {
		return nil, err
	}
	return d.result, nil
}

func (d *decoder) logf(format string, args ...any) {
	d.logger.Printf(format, args...)
}

func expect(h chunk.Header, typ uint16) error {
	if h.Type != typ {
		return errors.Wrapf(ErrUnexpectedChunk, "type 0x%04x at 0x%x, expected 0x%04x", h.Type, h.Start, typ)
	}
	return nil
}

func (d *decoder) header() (chunk.Header, error) {
	h, err := d.r.Header()
	if err != nil {
		return h, err
	}
	if h.Size < chunk.HeaderSize || h.HeaderSize < chunk.HeaderSize || h.End() > int(d.r.Size()) {
		return h, errors.Wrapf(ErrUnexpectedChunk, "malformed chunk 0x%04x at 0x%x (size %d)", h.Type, h.Start, h.Size)
	}
	return h, nil
}

func (d *decoder) readStringBlock() (*stringblock.StringBlock, error) {
	h, err := d.header()
	if err != nil {
		return nil, err
	}
	if err := expect(h, chunk.TypeStringPool); err != nil {
		return nil, err
	}
	sb, err := stringblock.ReadWithHeader(d.r, h)
	if err != nil {
		return nil, err
	}
	sb.Logger = d.logger
	return sb, nil
}

func (d *decoder) readTable() error {
	h, err := d.header()
	if err != nil {
		return errors.Wrap(err, "error reading table header")
	}
	if err := expect(h, chunk.TypeTable); err != nil {
		return err
	}

	packageCount, err := d.r.Uint32()
	if err != nil {
		return err
	}
	if err := d.r.SetPosition(h.HeaderEnd()); err != nil {
		return err
	}

	if d.tableStrings, err = d.readStringBlock(); err != nil {
		return errors.Wrap(err, "error reading table strings")
	}

	for i := uint32(0); i < packageCount; i++ {
		ph, err := d.header()
		if err != nil {
			return errors.Wrapf(err, "error reading package %d", i)
		}
		if err := expect(ph, chunk.TypeTablePackage); err != nil {
			return err
		}

		d.typeIDOffset = 0
		pkg, err := d.readPackage(ph)
		if err != nil {
			return errors.Wrapf(err, "package at 0x%x", ph.Start)
		}
		if err := d.table.AddPackage(pkg, !d.opts.Framework); err != nil {
			return err
		}
		d.result.Packages = append(d.result.Packages, pkg)

		if err := d.r.SetPosition(ph.End()); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) readUTF16Name(units int) (string, error) {
	raw := make([]uint16, units)
	if err := d.r.Fields(raw); err != nil {
		return "", err
	}
	for i, c := range raw {
		if c == 0 {
			raw = raw[:i]
			break
		}
	}
	return string(utf16.Decode(raw)), nil
}

func (d *decoder) readPackage(h chunk.Header) (*res.Package, error) {
	id, err := d.r.Uint32()
	if err != nil {
		return nil, err
	}
	if id == 0 {
		// Shared library; the runtime assigns the real id, 0x02 is the
		// first one after the system package.
		id = 2
		if d.table.PackageOriginal() == "" && d.table.PackageRenamed() == "" {
			d.table.SetSharedLibrary(true)
		}
	}

	name, err := d.readUTF16Name(packageNameUnits)
	if err != nil {
		return nil, err
	}

	var typeStrings, lastPublicType, keyStrings, lastPublicKey uint32
	if err := d.r.Fields(&typeStrings, &lastPublicType, &keyStrings, &lastPublicKey); err != nil {
		return nil, err
	}

	if h.HeaderSize == splitPackageHeaderSize {
		offset, err := d.r.Uint32()
		if err != nil {
			return nil, err
		}
		d.typeIDOffset = int(offset)
		if d.typeIDOffset > 0 {
			d.logf("Package %s has a type id offset of %d", name, d.typeIDOffset)
		}
	}

	if err := d.r.SetPosition(h.HeaderEnd()); err != nil {
		return nil, err
	}
	if d.typeNames, err = d.readStringBlock(); err != nil {
		return nil, errors.Wrap(err, "error reading type names")
	}
	if d.keyNames, err = d.readStringBlock(); err != nil {
		return nil, errors.Wrap(err, "error reading key names")
	}

	d.pkg = res.NewPackage(d.table, int(id), name)
	d.resID = id << 24
	d.typeSpec, d.typ = nil, nil
	d.typeSpecs = make(map[int]*res.TypeSpec)

	lastType := uint16(chunk.TypeNull)
	for d.r.Position() < h.End() {
		ch, err := d.header()
		if err != nil {
			return nil, err
		}
		if ch.End() > h.End() {
			return nil, errors.Wrapf(ErrUnexpectedChunk, "chunk 0x%04x at 0x%x exceeds its package", ch.Type, ch.Start)
		}

		switch ch.Type {
		case chunk.TypeTableTypeSpec:
			if lastType == chunk.TypeTableTypeSpec {
				d.table.SetSparseResources(true)
			}
			err = d.readTypeSpec(ch)
		case chunk.TypeTableType:
			if err = d.readType(ch); err == nil {
				err = d.addMissingResSpecs()
			}
		case chunk.TypeTableLibrary:
			err = d.readLibrary(ch)
		case chunk.TypeTableOverlay:
			err = d.readOverlay(ch)
		case chunk.TypeTableOverlayPolicy:
			err = d.readOverlayPolicy(ch)
		case chunk.TypeTableStagedAlias:
			err = d.readStagedAlias(ch)
		default:
			d.logf("Unknown chunk type 0x%04x at 0x%x, skipping", ch.Type, ch.Start)
		}
		if err != nil {
			return nil, err
		}
		lastType = ch.Type

		if pos := d.r.Position(); pos < ch.End() && ch.Type == chunk.TypeTableType {
			// Padding or unknown trailing data of the type chunk.
			d.logf("Unknown data detected. Skipping: %d byte(s)", ch.End()-pos)
		}
		if err := d.r.SetPosition(ch.End()); err != nil {
			return nil, err
		}
	}
	return d.pkg, nil
}

func (d *decoder) readTypeSpec(h chunk.Header) error {
	var id, res0 uint8
	var typesCount uint16
	var entryCount uint32
	if err := d.r.Fields(&id, &res0, &typesCount, &entryCount); err != nil {
		return err
	}
	if err := d.r.SetPosition(h.HeaderEnd()); err != nil {
		return err
	}

	if d.opts.FlagsOffsets {
		d.result.FlagsOffsets = append(d.result.FlagsOffsets, FlagsOffset{
			Offset: d.r.Position(),
			Count:  int(entryCount),
		})
	}
	if err := d.r.Skip(int(entryCount) * 4); err != nil {
		return errors.Wrap(err, "error skipping type spec flags")
	}

	name := d.typeNames.StringOrEmpty(int(id) - 1)
	d.typeSpec = res.NewTypeSpec(d.pkg, int(id), name, int(entryCount))
	d.pkg.AddType(d.typeSpec)
	d.typeSpecs[int(id)] = d.typeSpec
	return nil
}

func (d *decoder) readType(h chunk.Header) error {
	var id, flags uint8
	var reserved uint16
	var entryCount, entriesStart uint32
	if err := d.r.Fields(&id, &flags, &reserved, &entryCount, &entriesStart); err != nil {
		return err
	}

	ts, prs := d.typeSpecs[int(id)-d.typeIDOffset]
	if !prs {
		return errors.Wrapf(ErrUnexpectedChunk, "type chunk at 0x%x with no type spec (id %d)", h.Start, id)
	}
	d.typeSpec = ts
	d.resID = (0xff000000 & d.resID) | uint32(ts.ID())<<16

	config, err := resconfig.Read(d.r, d.table.ErrCounter(), d.logger)
	if err != nil {
		return err
	}

	offsetSize := 4
	if flags&typeFlagOffset16 != 0 {
		offsetSize = 2
	}
	position := h.Start + int(entriesStart) - int(entryCount)*offsetSize
	if position != d.r.Position() {
		d.logf("Invalid data detected. Skipping: %d byte(s)", position-d.r.Position())
		if err := d.r.SetPosition(position); err != nil {
			return err
		}
	}

	offsets, err := d.readEntryOffsets(flags, int(entryCount))
	if err != nil {
		return err
	}

	if config.IsInvalid() {
		name := d.typeSpec.Name() + config.Qualifiers()
		if d.opts.KeepBroken {
			d.logf("Invalid config flags detected: %s", name)
		} else {
			d.logf("Invalid config flags detected. Dropping resources: %s", name)
		}
	}
	if config.IsInvalid() && !d.opts.KeepBroken {
		d.typ = nil
	} else {
		d.typ = d.pkg.OrCreateConfig(config)
	}

	present := make(map[int]bool, len(offsets))
	d.missing = d.missing[:0]
	for _, e := range offsets {
		if e.offset == noEntry {
			d.missing = append(d.missing, e.idx)
			continue
		}
		present[e.idx] = true

		if err := d.r.SetPosition(h.Start + int(entriesStart) + e.offset); err != nil {
			return errors.Wrapf(ErrInvalidEntry, "entry %d: %s", e.idx, err)
		}
		d.resID = (d.resID & 0xffff0000) | uint32(e.idx)
		if err := d.readEntry(); err != nil {
			return errors.Wrapf(err, "entry %s", res.ID(d.resID))
		}
	}

	if flags&typeFlagSparse != 0 {
		d.missing = d.missing[:0]
		for i := 0; i < d.typeSpec.EntryCount(); i++ {
			if !present[i] {
				d.missing = append(d.missing, i)
			}
		}
	}
	return nil
}

func (d *decoder) readEntryOffsets(flags uint8, count int) ([]entryOffset, error) {
	ret := make([]entryOffset, 0, count)
	switch {
	case flags&typeFlagSparse != 0:
		d.logf("Sparse type flags detected: %s", d.typeSpec.Name())
		d.table.SetSparseResources(true)
		for i := 0; i < count; i++ {
			var idx, offset uint16
			if err := d.r.Fields(&idx, &offset); err != nil {
				return nil, err
			}
			ret = append(ret, entryOffset{idx: int(idx), offset: int(offset) * 4})
		}
	case flags&typeFlagOffset16 != 0:
		for i := 0; i < count; i++ {
			offset, err := d.r.Uint16()
			if err != nil {
				return nil, err
			}
			if offset == noEntry16 {
				ret = append(ret, entryOffset{idx: i, offset: noEntry})
			} else {
				ret = append(ret, entryOffset{idx: i, offset: int(offset) * 4})
			}
		}
	default:
		offsets, err := d.r.Int32s(count)
		if err != nil {
			return nil, err
		}
		for i, offset := range offsets {
			ret = append(ret, entryOffset{idx: i, offset: int(offset)})
		}
	}
	return ret, nil
}

func (d *decoder) readEntry() error {
	var size int16
	var flags uint16
	if err := d.r.Fields(&size, &flags); err != nil {
		return err
	}

	var key uint32
	var value *res.Value
	var err error
	if flags&entryFlagCompact != 0 {
		// key in place of the size, type in the high byte of the flags
		key = uint32(uint16(size))
		var data uint32
		if data, err = d.r.Uint32(); err != nil {
			return err
		}
		value, err = d.newValue(uint8(flags>>8), data)
	} else {
		if size < 0 {
			return errors.Wrapf(ErrInvalidEntry, "entry size %d is under 0 bytes", size)
		}
		if key, err = d.r.Uint32(); err != nil {
			return err
		}
		if flags&entryFlagComplex != 0 {
			value, err = d.readComplexEntry()
		} else {
			value, err = d.readValue()
		}
	}
	if err != nil {
		return err
	}
	return d.storeEntry(key, value)
}

func (d *decoder) readComplexEntry() (*res.Value, error) {
	var parent, count uint32
	if err := d.r.Fields(&parent, &count); err != nil {
		return nil, err
	}
	if int(count)*12 > d.r.Len() {
		return nil, errors.Wrapf(ErrInvalidEntry, "bag of %d items exceeds the table", count)
	}

	items := make([]res.BagItem, 0, count)
	for i := uint32(0); i < count; i++ {
		key, err := d.r.Uint32()
		if err != nil {
			return nil, err
		}
		value, err := d.readValue()
		if err != nil {
			return nil, err
		}
		items = append(items, res.BagItem{Key: key, Value: value.AsString()})
	}
	return d.pkg.ValueFactory().NewBag(parent, items, d.typeSpec)
}

func (d *decoder) readValue() (*res.Value, error) {
	var size uint16
	var zero, typ uint8
	var data uint32
	if err := d.r.Fields(&size, &zero, &typ, &data); err != nil {
		return nil, err
	}
	if size != 8 {
		return nil, errors.Wrapf(ErrInvalidEntry, "value size: expected 0x8, got 0x%x", size)
	}
	if zero != 0 {
		return nil, errors.Wrapf(ErrInvalidEntry, "value padding: expected 0x0, got 0x%x", zero)
	}
	return d.newValue(typ, data)
}

func (d *decoder) newValue(typ uint8, data uint32) (*res.Value, error) {
	if typ == res.TypeString {
		html, _ := d.tableStrings.HTML(int(data))
		return d.pkg.ValueFactory().NewString(html, data), nil
	}
	return d.pkg.ValueFactory().New(typ, data)
}

func (d *decoder) storeEntry(key uint32, value *res.Value) error {
	// Some encoders tag plain strings of string types as files.
	if d.typeSpec.IsString() {
		value = value.AsString()
	}
	if d.typ == nil {
		return nil
	}

	id := res.ID(d.resID)
	spec, err := d.pkg.ResSpec(id)
	if err == nil && spec.IsDummy() {
		d.pkg.RemoveResSpec(spec)
		spec.TypeSpec().RemoveResSpec(spec)
		spec = nil
	}
	if spec == nil {
		spec = res.NewResSpec(id, d.keyNames.StringOrEmpty(int(key)), d.pkg, d.typeSpec)
		if err := d.pkg.AddResSpec(spec); err != nil {
			return err
		}
		if err := d.typeSpec.AddResSpec(spec); err != nil {
			return err
		}
	}

	resource := res.NewResource(d.typ, spec, value)
	if err := resource.Register(false); err != nil {
		if !errors.Is(err, res.ErrDuplicateResource) || !d.opts.KeepBroken {
			return err
		}
		d.logf("Duplicate Resource Detected. Ignoring duplicate: %s", resource)
		return resource.Register(true)
	}
	return nil
}

// addMissingResSpecs backfills the entries the last type chunk left out
// with @null placeholders, so every config exposes the same ids.
func (d *decoder) addMissingResSpecs() error {
	base := d.resID & 0xffff0000
	for _, idx := range d.missing {
		id := res.ID(base | uint32(idx))
		if d.pkg.HasResSpec(id) {
			continue
		}

		spec := res.NewResSpec(id, fmt.Sprintf("%s%x", res.DummyNamePrefix, idx), d.pkg, d.typeSpec)
		if err := d.pkg.AddResSpec(spec); err != nil {
			return err
		}
		if err := d.typeSpec.AddResSpec(spec); err != nil {
			return err
		}

		if d.typ == nil {
			d.typ = d.pkg.OrCreateConfig(resconfig.Default())
		}
		value := d.pkg.ValueFactory().NewReference(0)
		if err := res.NewResource(d.typ, spec, value).Register(false); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) readLibrary(h chunk.Header) error {
	count, err := d.r.Uint32()
	if err != nil {
		return err
	}
	if err := d.r.SetPosition(h.HeaderEnd()); err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		id, err := d.r.Uint32()
		if err != nil {
			return err
		}
		name, err := d.readUTF16Name(packageNameUnits)
		if err != nil {
			return err
		}
		d.logf("Decoding Shared Library (%s), pkgId: %d", name, id)
		d.result.Libraries[int(id)] = name
	}
	return nil
}

func (d *decoder) readOverlay(h chunk.Header) error {
	name, err := d.readUTF16Name(overlayNameUnits)
	if err != nil {
		return err
	}
	actor, err := d.readUTF16Name(overlayNameUnits)
	if err != nil {
		return err
	}
	d.logf("Skipping overlayable name: %s, actor: %s", name, actor)
	return nil
}

func (d *decoder) readOverlayPolicy(h chunk.Header) error {
	var policyFlags, count uint32
	if err := d.r.Fields(&policyFlags, &count); err != nil {
		return err
	}
	d.logf("Skipping overlay policy 0x%08x with %d entries", policyFlags, count)
	return nil
}

func (d *decoder) readStagedAlias(h chunk.Header) error {
	count, err := d.r.Uint32()
	if err != nil {
		return err
	}
	if err := d.r.SetPosition(h.HeaderEnd()); err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		var stagedID, finalizedID uint32
		if err := d.r.Fields(&stagedID, &finalizedID); err != nil {
			return err
		}
		d.logf("Skipping staged alias stagedId (0x%08x) finalId: 0x%08x", stagedID, finalizedID)
	}
	return nil
}
