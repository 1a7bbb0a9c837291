package res

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avast/apkres/resconfig"
)

type fixture struct {
	table   *Table
	pkg     *Package
	deflt   *Type
	types   map[string]*TypeSpec
	entries map[string]int
}

func newFixture(t *testing.T) *fixture {
	table := NewTable()
	pkg := NewPackage(table, 0x7f, "com.example")
	require.NoError(t, table.AddPackage(pkg, true))
	return &fixture{
		table:   table,
		pkg:     pkg,
		deflt:   pkg.OrCreateConfig(resconfig.Default()),
		types:   make(map[string]*TypeSpec),
		entries: make(map[string]int),
	}
}

func (f *fixture) typ(name string) *TypeSpec {
	if ts, prs := f.types[name]; prs {
		return ts
	}
	ts := NewTypeSpec(f.pkg, len(f.types)+1, name, 0)
	f.pkg.AddType(ts)
	f.types[name] = ts
	return ts
}

func (f *fixture) spec(t *testing.T, typeName, name string) *ResSpec {
	ts := f.typ(typeName)
	id := NewID(f.pkg.ID(), ts.ID(), f.entries[typeName])
	f.entries[typeName]++

	spec := NewResSpec(id, name, f.pkg, ts)
	require.NoError(t, f.pkg.AddResSpec(spec))
	require.NoError(t, ts.AddResSpec(spec))
	return spec
}

func (f *fixture) add(t *testing.T, typeName, name string, value *Value) *Resource {
	res := NewResource(f.deflt, f.spec(t, typeName, name), value)
	require.NoError(t, res.Register(false))
	return res
}

func (f *fixture) value(t *testing.T, typ uint8, data uint32) *Value {
	v, err := f.pkg.ValueFactory().New(typ, data)
	require.NoError(t, err)
	return v
}

func (f *fixture) intValue(t *testing.T, data uint32) *Value {
	return f.value(t, TypeIntDec, data)
}

func (f *fixture) bag(t *testing.T, typeName string, parent uint32, items ...BagItem) *Value {
	v, err := f.pkg.ValueFactory().NewBag(parent, items, f.typ(typeName))
	require.NoError(t, err)
	return v
}

func serialize(t *testing.T, res *Resource) string {
	var buf bytes.Buffer
	x := NewXMLWriter(&buf)
	res.Value().SerializeToResValuesXML(x, res)
	require.NoError(t, x.Flush())
	return strings.TrimSuffix(buf.String(), "\n")
}

func idOf(res *Resource) uint32 {
	return uint32(res.ResSpec().ID())
}
