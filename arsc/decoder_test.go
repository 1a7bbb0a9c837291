package arsc

import (
	"bytes"
	"encoding/binary"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avast/apkres/internal/chunk"
	"github.com/avast/apkres/internal/chunktest"
	"github.com/avast/apkres/res"
)

func decode(t *testing.T, data []byte, opts Options) (*res.Table, *Result) {
	table := res.NewTable()
	result, err := Decode(data, table, opts)
	require.NoError(t, err)
	return table, result
}

func defaultResource(t *testing.T, pkg *res.Package, id res.ID) *res.Resource {
	spec, err := pkg.ResSpec(id)
	require.NoError(t, err)
	r, err := spec.DefaultResource()
	require.NoError(t, err)
	return r
}

func TestDecodeString(t *testing.T) {
	data := chunktest.Table([]string{"hello"},
		chunktest.Package(0x7f, "com.example", []string{"string"}, []string{"app_name"},
			chunktest.TypeSpec(1, 1),
			chunktest.Type(1, chunktest.Config("", 0), chunktest.Entry(0, res.TypeString, 0)),
		),
	)
	table, result := decode(t, data, Options{})

	require.Len(t, result.Packages, 1)
	pkg := result.Packages[0]
	assert.Equal(t, 0x7f, pkg.ID())
	assert.Equal(t, "com.example", pkg.Name())
	assert.Len(t, table.ListMainPackages(), 1)

	v, err := table.Value("com.example", "string", "app_name")
	require.NoError(t, err)
	assert.Equal(t, "hello", v.Str())

	files := res.GroupValuesFiles(pkg)
	require.Len(t, files, 1)
	var buf bytes.Buffer
	require.NoError(t, res.SerializeValuesFile(&buf, files[0]))
	assert.Equal(t, `<?xml version="1.0" encoding="utf-8"?>
<resources>
    <string name="app_name">hello</string>
</resources>
`, buf.String())
}

func TestFrameworkPackages(t *testing.T) {
	data := chunktest.Table(nil,
		chunktest.Package(0x01, "android", []string{"attr"}, nil, chunktest.TypeSpec(1, 0)),
	)
	table, _ := decode(t, data, Options{Framework: true})
	assert.Empty(t, table.ListMainPackages())
	assert.Len(t, table.ListFramePackages(), 1)
}

func TestMissingEntriesGetDummySpecs(t *testing.T) {
	data := chunktest.Table([]string{"x", "y", "z"},
		chunktest.Package(0x7f, "com.example", []string{"string"}, []string{"a", "b", "c"},
			chunktest.TypeSpec(1, 3),
			chunktest.Type(1, chunktest.Config("", 0), chunktest.Entry(0, res.TypeString, 0), nil, chunktest.Entry(1, res.TypeString, 1)),
		),
	)
	_, result := decode(t, data, Options{})
	pkg := result.Packages[0]
	assert.Equal(t, 3, pkg.ResSpecCount())

	dummy, err := pkg.ResSpec(0x7f010001)
	require.NoError(t, err)
	assert.Equal(t, "APKTOOL_DUMMY_1", dummy.Name())
	assert.True(t, dummy.IsDummy())
	assert.True(t, defaultResource(t, pkg, 0x7f010001).Value().IsNullReference())

	assert.Equal(t, "b", defaultResource(t, pkg, 0x7f010002).ResSpec().Name())
	assert.Equal(t, "y", defaultResource(t, pkg, 0x7f010002).Value().Str())
}

func TestDummySpecIsReplaced(t *testing.T) {
	data := chunktest.Table([]string{"x", "y"},
		chunktest.Package(0x7f, "com.example", []string{"string"}, []string{"a", "b"},
			chunktest.TypeSpec(1, 2),
			chunktest.Type(1, chunktest.Config("", 0), chunktest.Entry(0, res.TypeString, 0), nil),
			chunktest.Type(1, chunktest.Config("de", 0), nil, chunktest.Entry(1, res.TypeString, 1)),
		),
	)
	_, result := decode(t, data, Options{})
	pkg := result.Packages[0]

	spec, err := pkg.ResSpec(0x7f010001)
	require.NoError(t, err)
	assert.Equal(t, "b", spec.Name())
	assert.False(t, spec.IsDummy())
	assert.False(t, spec.HasDefaultResource())
	require.Len(t, spec.ListResources(), 1)
	assert.Equal(t, "y", spec.ListResources()[0].Value().Str())
	assert.Equal(t, 2, pkg.ResSpecCount())
}

func TestSparseType(t *testing.T) {
	data := chunktest.Table([]string{"x", "y"},
		chunktest.Package(0x7f, "com.example", []string{"string"}, []string{"a", "b"},
			chunktest.TypeSpec(1, 4),
			chunktest.SparseType(1, chunktest.Config("", 0), map[uint16][]byte{
				1: chunktest.Entry(0, res.TypeString, 0),
				3: chunktest.Entry(1, res.TypeString, 1),
			}),
		),
	)
	table, result := decode(t, data, Options{})
	pkg := result.Packages[0]

	assert.True(t, table.SparseResources())
	assert.Equal(t, 4, pkg.ResSpecCount())
	assert.Equal(t, "x", defaultResource(t, pkg, 0x7f010001).Value().Str())
	assert.Equal(t, "y", defaultResource(t, pkg, 0x7f010003).Value().Str())
	for _, id := range []res.ID{0x7f010000, 0x7f010002} {
		spec, err := pkg.ResSpec(id)
		require.NoError(t, err)
		assert.True(t, spec.IsDummy(), "%s", id)
	}
}

func TestMisplacedEntryOffsets(t *testing.T) {
	var logged bytes.Buffer
	data := chunktest.Table([]string{"x"},
		chunktest.Package(0x7f, "com.example", []string{"string"}, []string{"a"},
			chunktest.TypeSpec(1, 1),
			chunktest.TypePadded(1, chunktest.Config("", 0), 4, chunktest.Entry(0, res.TypeString, 0)),
		),
	)
	_, result := decode(t, data, Options{Logger: log.New(&logged, "", 0)})

	assert.Equal(t, "x", defaultResource(t, result.Packages[0], 0x7f010000).Value().Str())
	assert.Contains(t, logged.String(), "Skipping: 4 byte(s)")
}

func TestInvalidConfig(t *testing.T) {
	data := chunktest.Table([]string{"x"},
		chunktest.Package(0x7f, "com.example", []string{"string"}, []string{"a"},
			chunktest.TypeSpec(1, 1),
			chunktest.Type(1, chunktest.Config("", 7), chunktest.Entry(0, res.TypeString, 0)),
		),
	)

	_, result := decode(t, data, Options{})
	assert.Zero(t, result.Packages[0].ResSpecCount())
	assert.Empty(t, result.Packages[0].ListConfigs())

	_, result = decode(t, data, Options{KeepBroken: true})
	pkg := result.Packages[0]
	assert.Equal(t, 1, pkg.ResSpecCount())
	require.Len(t, pkg.ListConfigs(), 1)
	assert.True(t, pkg.ListConfigs()[0].Flags().IsInvalid())
	assert.Equal(t, "-ERR0", pkg.ListConfigs()[0].Flags().Qualifiers())
}

func TestDuplicateEntries(t *testing.T) {
	data := chunktest.Table([]string{"first", "second"},
		chunktest.Package(0x7f, "com.example", []string{"string"}, []string{"a"},
			chunktest.TypeSpec(1, 1),
			chunktest.Type(1, chunktest.Config("", 0), chunktest.Entry(0, res.TypeString, 0)),
			chunktest.Type(1, chunktest.Config("", 0), chunktest.Entry(0, res.TypeString, 1)),
		),
	)

	_, err := Decode(data, res.NewTable(), Options{})
	assert.True(t, errors.Is(err, res.ErrDuplicateResource), "%v", err)

	var logged bytes.Buffer
	_, result := decode(t, data, Options{KeepBroken: true, Logger: log.New(&logged, "", 0)})
	assert.Equal(t, "second", defaultResource(t, result.Packages[0], 0x7f010000).Value().Str())
	assert.Contains(t, logged.String(), "Duplicate Resource Detected")
}

func TestBagEntry(t *testing.T) {
	data := chunktest.Table([]string{"res/raw/a.txt", "many"},
		chunktest.Package(0x7f, "com.example", []string{"plurals"}, []string{"apples"},
			chunktest.TypeSpec(1, 1),
			chunktest.Type(1, chunktest.Config("", 0), chunktest.BagEntry(0, 0,
				chunktest.BagItem{Name: res.PluralsKeyStart, Type: res.TypeString, Data: 0},
				chunktest.BagItem{Name: res.PluralsKeyStart + 5, Type: res.TypeString, Data: 1},
			)),
		),
	)
	_, result := decode(t, data, Options{})

	v := defaultResource(t, result.Packages[0], 0x7f010000).Value()
	require.Equal(t, res.KindPlurals, v.Kind())
	items := v.Bag().Items
	require.Len(t, items, 2)
	assert.Equal(t, res.KindString, items[0].Value.Kind(), "file paths inside bags are plain strings")
	assert.Equal(t, "many", items[1].Value.Str())
}

func TestSharedLibraryPackage(t *testing.T) {
	var libHeader, libBody chunktest.Buffer
	libHeader.U32(1)
	libBody.U32(0x7f).Raw(chunktest.UTF16Name("com.lib", packageNameUnits))

	var alias chunktest.Buffer
	alias.U32(1)
	var aliasBody chunktest.Buffer
	aliasBody.U32(0x01010001, 0x01010002)

	data := chunktest.Table([]string{"x"},
		chunktest.Package(0, "com.example", []string{"string"}, []string{"a"},
			chunktest.Chunk(chunk.TypeTableLibrary, libHeader.Bytes(), libBody.Bytes()),
			chunktest.Chunk(chunk.TypeTableStagedAlias, alias.Bytes(), aliasBody.Bytes()),
			chunktest.Chunk(0x0299, nil, make([]byte, 8)),
			chunktest.TypeSpec(1, 1),
			chunktest.Type(1, chunktest.Config("", 0), chunktest.Entry(0, res.TypeString, 0)),
		),
	)
	table, result := decode(t, data, Options{})

	assert.True(t, table.SharedLibrary())
	assert.Equal(t, 2, result.Packages[0].ID())
	assert.Equal(t, "com.lib", result.Libraries[0x7f])
	assert.True(t, result.Packages[0].HasResSpec(0x02010000))
}

func TestInvalidEntries(t *testing.T) {
	var badSize chunktest.Buffer
	badSize.U16(8, 0).U32(0).U16(9).U8(0, res.TypeIntDec).U32(1)

	var badPadding chunktest.Buffer
	badPadding.U16(8, 0).U32(0).U16(8).U8(1, res.TypeIntDec).U32(1)

	var negative chunktest.Buffer
	negative.U16(0xfff0, 0).U32(0).U16(8).U8(0, res.TypeIntDec).U32(1)

	for name, e := range map[string][]byte{
		"size":     badSize.Bytes(),
		"padding":  badPadding.Bytes(),
		"negative": negative.Bytes(),
	} {
		data := chunktest.Table(nil,
			chunktest.Package(0x7f, "com.example", []string{"integer"}, []string{"a"},
				chunktest.TypeSpec(1, 1),
				chunktest.Type(1, chunktest.Config("", 0), e),
			),
		)
		_, err := Decode(data, res.NewTable(), Options{})
		assert.True(t, errors.Is(err, ErrInvalidEntry), "%s: %v", name, err)
	}
}

func TestUnexpectedChunks(t *testing.T) {
	_, err := Decode(chunktest.StringPool(true, []string{"a"}), res.NewTable(), Options{})
	assert.True(t, errors.Is(err, ErrUnexpectedChunk), "%v", err)

	orphan := chunktest.Table(nil,
		chunktest.Package(0x7f, "com.example", []string{"string"}, nil,
			chunktest.Type(1, chunktest.Config("", 0), chunktest.Entry(0, res.TypeIntDec, 1)),
		),
	)
	_, err = Decode(orphan, res.NewTable(), Options{})
	assert.True(t, errors.Is(err, ErrUnexpectedChunk), "%v", err)
}

func TestFlagsOffsets(t *testing.T) {
	data := chunktest.Table(nil,
		chunktest.Package(0x7f, "com.example", []string{"string", "id"}, nil,
			chunktest.TypeSpec(1, 3),
			chunktest.TypeSpec(2, 2),
		),
	)
	table, result := decode(t, data, Options{FlagsOffsets: true})
	assert.True(t, table.SparseResources(), "consecutive type specs")

	require.Len(t, result.FlagsOffsets, 2)
	assert.Equal(t, 3, result.FlagsOffsets[0].Count)
	assert.Equal(t, 2, result.FlagsOffsets[1].Count)
	for _, fo := range result.FlagsOffsets {
		for i := 0; i < fo.Count; i++ {
			assert.Equal(t, uint32(chunktest.SpecFlagPublic), binary.LittleEndian.Uint32(data[fo.Offset+4*i:]))
		}
	}

	_, result = decode(t, data, Options{})
	assert.Empty(t, result.FlagsOffsets)
}

func TestOnePackage(t *testing.T) {
	_, err := (&Result{}).OnePackage()
	assert.Error(t, err)

	table := res.NewTable()
	withSpecs := func(id, count int) *res.Package {
		pkg := res.NewPackage(table, id, "p")
		ts := res.NewTypeSpec(pkg, 1, "string", count)
		for i := 0; i < count; i++ {
			require.NoError(t, pkg.AddResSpec(res.NewResSpec(res.NewID(id, 1, i), "", pkg, ts)))
		}
		return pkg
	}

	big, tie, small := withSpecs(0x7d, 2), withSpecs(0x7e, 2), withSpecs(0x7f, 1)
	pkg, err := (&Result{Packages: []*res.Package{big, tie, small}}).OnePackage()
	require.NoError(t, err)
	assert.Same(t, tie, pkg)
}
