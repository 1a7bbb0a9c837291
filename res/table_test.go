package res

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avast/apkres/resconfig"
)

func addSpecs(t *testing.T, pkg *Package, count int) {
	typ := NewTypeSpec(pkg, 1, "string", count)
	pkg.AddType(typ)
	for i := 0; i < count; i++ {
		require.NoError(t, pkg.AddResSpec(NewResSpec(NewID(pkg.ID(), 1, i), "", pkg, typ)))
	}
}

func TestCurrentPackage(t *testing.T) {
	table := NewTable()
	android := NewPackage(table, 1, "android")
	small := NewPackage(table, 0x7e, "com.small")
	big := NewPackage(table, 0x7f, "com.big")
	addSpecs(t, android, 10)
	addSpecs(t, small, 1)
	addSpecs(t, big, 3)

	require.NoError(t, table.AddPackage(android, false))
	require.NoError(t, table.AddPackage(small, true))

	pkg, err := table.CurrentPackage()
	require.NoError(t, err)
	assert.Same(t, small, pkg, "sole main package")

	require.NoError(t, table.AddPackage(big, true))
	pkg, err = table.CurrentPackage()
	require.NoError(t, err)
	assert.Same(t, big, pkg, "most specs, android excluded")

	table.SetPackageID(0x7e)
	pkg, err = table.CurrentPackage()
	require.NoError(t, err)
	assert.Same(t, small, pkg, "explicit package id")
}

func TestAddPackageRejectsDuplicates(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.AddPackage(NewPackage(table, 0x7f, "a"), true))
	assert.Error(t, table.AddPackage(NewPackage(table, 0x7f, "b"), true))
	assert.Error(t, table.AddPackage(NewPackage(table, 0x7e, "a"), true))
	assert.Len(t, table.ListMainPackages(), 1)
}

func TestResSpecLookup(t *testing.T) {
	f := newFixture(t)
	res := f.add(t, "string", "app_name", f.pkg.ValueFactory().NewString("x", 0))

	spec, err := f.table.ResSpec(idOf(res))
	require.NoError(t, err)
	assert.Same(t, res.ResSpec(), spec)

	_, err = f.table.ResSpec(0x01010000)
	assert.True(t, errors.Is(err, ErrUndefinedResObject))

	loaded := false
	f.table.FrameworkLoader = func(table *Table, id int) (*Package, error) {
		loaded = true
		assert.Equal(t, 1, id)
		return nil, errors.New("no framework")
	}
	_, err = f.table.ResSpec(0x01010000)
	assert.True(t, loaded)
	assert.True(t, errors.Is(err, ErrUndefinedResObject))

	// Package byte 0 refers to the shared library itself.
	f.table.SetPackageID(0x7f)
	spec, err = f.table.ResSpec(idOf(res) & 0x00ffffff)
	require.NoError(t, err)
	assert.Same(t, res.ResSpec(), spec)

	v, err := f.table.Value("com.example", "string", "app_name")
	require.NoError(t, err)
	assert.Equal(t, "x", v.Str())
}

func TestResSpecNaming(t *testing.T) {
	f := newFixture(t)
	typ := f.typ("string")

	named := NewResSpec(0x7f010000, "title", f.pkg, typ)
	require.NoError(t, typ.AddResSpec(named))

	dup := NewResSpec(0x7f010001, "title", f.pkg, typ)
	assert.Equal(t, "APKTOOL_DUPLICATE_string_0x7f010001", dup.Name())

	empty := NewResSpec(0x7f010002, "", f.pkg, typ)
	assert.Equal(t, "APKTOOL_DUMMYVAL_0x7f010002", empty.Name())

	quoted := NewResSpec(0x7f010003, `say"hi"`, f.pkg, typ)
	assert.Equal(t, "sayqhiq", quoted.Name())

	assert.True(t, NewResSpec(0x7f010004, "APKTOOL_DUMMY_4", f.pkg, typ).IsDummy())
	assert.False(t, named.IsDummy())

	other := NewPackage(f.table, 0x01, "android")
	assert.Equal(t, "title", named.FullName(f.pkg, true))
	assert.Equal(t, "string/title", named.FullName(f.pkg, false))
	assert.Equal(t, "com.example:string/title", named.FullName(other, false))
}

func TestDuplicateResources(t *testing.T) {
	f := newFixture(t)
	factory := f.pkg.ValueFactory()

	first := f.add(t, "string", "app_name", factory.NewString("one", 0))
	second := NewResource(first.Config(), first.ResSpec(), factory.NewString("two", 0))

	err := second.Register(false)
	assert.True(t, errors.Is(err, ErrDuplicateResource))

	require.NoError(t, second.Register(true))
	res, err := first.ResSpec().DefaultResource()
	require.NoError(t, err)
	assert.Same(t, second, res)
}

func TestResourceReplace(t *testing.T) {
	f := newFixture(t)
	factory := f.pkg.ValueFactory()

	orig := f.add(t, "string", "app_name", factory.NewString("res/raw/a.txt", 0))
	require.Equal(t, KindFile, orig.Value().Kind())

	replaced := orig.Replace(factory.NewString("plain", 0))
	assert.NotSame(t, orig, replaced)
	assert.Equal(t, KindFile, orig.Value().Kind(), "original is left untouched")

	bySpec, err := orig.ResSpec().Resource(resconfig.Default())
	require.NoError(t, err)
	assert.Same(t, replaced, bySpec)

	byConfig, err := orig.Config().Resource(orig.ResSpec())
	require.NoError(t, err)
	assert.Same(t, replaced, byConfig)

	assert.Len(t, orig.ResSpec().ListResources(), 1)
	assert.Equal(t, "string/app_name", replaced.FilePath())
}

func TestPackageConfigs(t *testing.T) {
	f := newFixture(t)

	de := resconfig.New(resconfig.Fields{Language: "de"}, false, nil, nil)
	alsoDe := resconfig.New(resconfig.Fields{Language: "de"}, false, nil, nil)

	bucket := f.pkg.OrCreateConfig(de)
	assert.Same(t, bucket, f.pkg.OrCreateConfig(alsoDe))
	assert.Len(t, f.pkg.ListConfigs(), 2)

	_, err := f.pkg.Config(resconfig.New(resconfig.Fields{Language: "fr"}, false, nil, nil))
	assert.True(t, errors.Is(err, ErrUndefinedResObject))

	assert.True(t, f.pkg.AddType(NewTypeSpec(f.pkg, 9, "raw", 0)))
	assert.False(t, f.pkg.AddType(NewTypeSpec(f.pkg, 10, "raw", 0)))
	typ, err := f.pkg.Type("raw")
	require.NoError(t, err)
	assert.Equal(t, 9, typ.ID())
}
