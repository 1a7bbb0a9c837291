package res

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/avast/apkres/resconfig"
)

// Package owns the specs, named types and config buckets of one package id.
type Package struct {
	table *Table
	id    int
	name  string

	resSpecs map[ID]*ResSpec

	types     map[string]*TypeSpec
	typeOrder []*TypeSpec

	configs     map[string]*Type
	configOrder []*Type

	synthesized map[ID]struct{}

	factory *Factory
}

func NewPackage(table *Table, id int, name string) *Package {
	return &Package{
		table:       table,
		id:          id,
		name:        name,
		resSpecs:    make(map[ID]*ResSpec),
		types:       make(map[string]*TypeSpec),
		configs:     make(map[string]*Type),
		synthesized: make(map[ID]struct{}),
	}
}

func (p *Package) Table() *Table { return p.table }
func (p *Package) ID() int       { return p.id }
func (p *Package) Name() string  { return p.name }

func (p *Package) String() string {
	return p.name
}

// ListResSpecs returns the specs ordered by id.
func (p *Package) ListResSpecs() []*ResSpec {
	specs := lo.Values(p.resSpecs)
	sort.Slice(specs, func(i, j int) bool {
		return specs[i].id < specs[j].id
	})
	return specs
}

func (p *Package) HasResSpec(id ID) bool {
	_, prs := p.resSpecs[id]
	return prs
}

func (p *Package) ResSpec(id ID) (*ResSpec, error) {
	if spec, prs := p.resSpecs[id]; prs {
		return spec, nil
	}
	return nil, undefined("resource spec: %s", id)
}

func (p *Package) ResSpecCount() int {
	return len(p.resSpecs)
}

// AddResSpec fails when a spec with the same id already exists.
func (p *Package) AddResSpec(spec *ResSpec) error {
	if _, prs := p.resSpecs[spec.id]; prs {
		return errors.Errorf("Multiple resource specs: %s", spec)
	}
	p.resSpecs[spec.id] = spec
	return nil
}

func (p *Package) RemoveResSpec(spec *ResSpec) {
	delete(p.resSpecs, spec.id)
}

// OrCreateConfig returns the bucket for flags, creating it on first use.
func (p *Package) OrCreateConfig(flags *resconfig.Flags) *Type {
	if t, prs := p.configs[flags.Key()]; prs {
		return t
	}
	t := newType(flags)
	p.configs[flags.Key()] = t
	p.configOrder = append(p.configOrder, t)
	return t
}

func (p *Package) Config(flags *resconfig.Flags) (*Type, error) {
	if t, prs := p.configs[flags.Key()]; prs {
		return t, nil
	}
	return nil, undefined("config: %s", flags)
}

func (p *Package) ListConfigs() []*Type {
	return p.configOrder
}

func (p *Package) Type(name string) (*TypeSpec, error) {
	if t, prs := p.types[name]; prs {
		return t, nil
	}
	return nil, undefined("type: %s", name)
}

func (p *Package) ListTypes() []*TypeSpec {
	return p.typeOrder
}

// AddType registers a named type. A second type of the same name is
// ignored with a warning and false is returned.
func (p *Package) AddType(t *TypeSpec) bool {
	if _, prs := p.types[t.name]; prs {
		p.table.logf("Multiple types detected! %s ignored!", t)
		return false
	}
	p.types[t.name] = t
	p.typeOrder = append(p.typeOrder, t)
	return true
}

// ListFiles returns resources whose value is a file path.
func (p *Package) ListFiles() []*Resource {
	var ret []*Resource
	for _, spec := range p.ListResSpecs() {
		for _, res := range spec.ListResources() {
			if res.value.Kind() == KindFile {
				ret = append(ret, res)
			}
		}
	}
	return ret
}

func (p *Package) AddSynthesizedRes(id ID) {
	p.synthesized[id] = struct{}{}
}

func (p *Package) IsSynthesized(id ID) bool {
	_, prs := p.synthesized[id]
	return prs
}

func (p *Package) ValueFactory() *Factory {
	if p.factory == nil {
		p.factory = &Factory{pkg: p}
	}
	return p.factory
}
