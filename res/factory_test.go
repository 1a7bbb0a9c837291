package res

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryKinds(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		typ  uint8
		data uint32
		kind Kind
	}{
		{TypeNull, DataNullUndefined, KindString},
		{TypeNull, DataNullEmpty, KindEmpty},
		{TypeNull, 7, KindReference},
		{TypeReference, 0x7f010000, KindReference},
		{TypeAttribute, 0x7f010000, KindReference},
		{TypeDynamicReference, 0x7f010000, KindReference},
		{TypeDynamicAttribute, 0x7f010000, KindReference},
		{TypeString, 0, KindString},
		{TypeFloat, 0x3f800000, KindFloat},
		{TypeDimension, 0x1001, KindDimen},
		{TypeFraction, 0x4010, KindFraction},
		{TypeIntDec, 1, KindInt},
		{TypeIntHex, 1, KindInt},
		{TypeIntBoolean, 1, KindBool},
		{TypeIntColorARGB8, 1, KindColor},
		{TypeIntColorRGB4, 1, KindColor},
		{0x20, 1, KindColor},
	}
	for _, tt := range tests {
		v, err := f.pkg.ValueFactory().New(tt.typ, tt.data)
		require.NoError(t, err, "type 0x%02x", tt.typ)
		assert.Equal(t, tt.kind, v.Kind(), "type 0x%02x", tt.typ)
	}

	for _, typ := range []uint8{0x09, 0x0f} {
		_, err := f.pkg.ValueFactory().New(typ, 0)
		assert.True(t, errors.Is(err, ErrUnsupportedValueType), "type 0x%02x", typ)
	}
}

func TestFactoryNullVariants(t *testing.T) {
	f := newFixture(t)

	undefined := f.value(t, TypeNull, DataNullUndefined)
	_, hasRaw := undefined.Raw()
	assert.False(t, hasRaw)
	assert.Equal(t, "", undefined.Str())

	assert.True(t, f.value(t, TypeNull, 2).IsNullReference())

	theme, err := f.pkg.ValueFactory().NewRaw(TypeAttribute, 0x7f010000, "?attr/colorPrimary")
	require.NoError(t, err)
	assert.True(t, theme.IsTheme())
	assert.Equal(t, "?attr/colorPrimary", theme.EncodeAsResXMLAttr())
}

func TestFactoryStringOrFile(t *testing.T) {
	factory := newFixture(t).pkg.ValueFactory()

	for _, path := range []string{"res/drawable/a.png", "r/a.xml", "R/b.xml"} {
		assert.Equal(t, KindFile, factory.NewString(path, 0).Kind(), path)
	}
	for _, str := range []string{"resources", "hello", ""} {
		assert.Equal(t, KindString, factory.NewString(str, 0).Kind(), str)
	}
}

func TestFactoryBagDispatch(t *testing.T) {
	f := newFixture(t)
	item := func(key uint32) BagItem {
		return BagItem{Key: key, Value: f.intValue(t, 1)}
	}

	tests := []struct {
		typeName string
		items    []BagItem
		kind     Kind
	}{
		{"style", nil, KindBag},
		{"array", []BagItem{item(0x7f010000)}, KindArray},
		{"integer", []BagItem{item(ArrayKeyStart)}, KindArray},
		{"integer", []BagItem{item(0)}, KindArray},
		{"plurals", []BagItem{item(0x7f010000)}, KindPlurals},
		{"other", []BagItem{item(PluralsKeyEnd)}, KindPlurals},
		{"attr", []BagItem{item(0x7f010000)}, KindAttr},
		{"styleable", []BagItem{item(0x7f010000)}, KindStyle},
	}
	for _, tt := range tests {
		v, err := f.pkg.ValueFactory().NewBag(0, tt.items, f.typ(tt.typeName))
		require.NoError(t, err, tt.typeName)
		assert.Equal(t, tt.kind, v.Kind(), tt.typeName)
	}

	_, err := f.pkg.ValueFactory().NewBag(0, []BagItem{item(0x7f010000)}, f.typ("drawable"))
	assert.True(t, errors.Is(err, ErrUnsupportedValueType))

	_, err = f.pkg.ValueFactory().NewBag(0, []BagItem{
		{Key: AttrKeyType, Value: f.intValue(t, 0x4)},
		item(0x7f010000),
	}, f.typ("attr"))
	assert.True(t, errors.Is(err, ErrUnsupportedValueType))
}
