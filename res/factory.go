package res

import (
	"strings"

	"github.com/pkg/errors"
)

// Factory builds values owned by one package; references created here
// resolve through the package's table.
type Factory struct {
	pkg *Package
}

func (f *Factory) Package() *Package {
	return f.pkg
}

// New builds a value from a Res_value without raw text.
func (f *Factory) New(typ uint8, data uint32) (*Value, error) {
	return f.newValue(typ, data, "", false)
}

// NewRaw builds a value from a Res_value together with the raw text it was
// written as.
func (f *Factory) NewRaw(typ uint8, data uint32, raw string) (*Value, error) {
	return f.newValue(typ, data, raw, true)
}

func (f *Factory) newValue(typ uint8, data uint32, raw string, hasRaw bool) (*Value, error) {
	switch typ {
	case TypeNull:
		switch data {
		case DataNullUndefined:
			return &Value{kind: KindString, typ: typ}, nil
		case DataNullEmpty:
			return &Value{kind: KindEmpty, typ: typ, data: data, raw: raw, hasRaw: hasRaw}, nil
		}
		return f.NewReference(0), nil
	case TypeReference:
		return f.NewReference(data), nil
	case TypeDynamicReference:
		return f.newReference(data, raw, hasRaw, false), nil
	case TypeAttribute, TypeDynamicAttribute:
		return f.newReference(data, raw, hasRaw, true), nil
	case TypeString:
		return &Value{kind: KindString, typ: typ, data: data, str: raw}, nil
	case TypeFloat:
		return &Value{kind: KindFloat, typ: typ, data: data, raw: raw, hasRaw: hasRaw}, nil
	case TypeDimension:
		return &Value{kind: KindDimen, typ: typ, data: data, raw: raw, hasRaw: hasRaw}, nil
	case TypeFraction:
		return &Value{kind: KindFraction, typ: typ, data: data, raw: raw, hasRaw: hasRaw}, nil
	case TypeIntBoolean:
		return &Value{kind: KindBool, typ: typ, data: data, raw: raw, hasRaw: hasRaw}, nil
	}

	if typ >= TypeFirstColorInt {
		return &Value{kind: KindColor, typ: typ, data: data, raw: raw, hasRaw: hasRaw}, nil
	}
	if typ >= TypeFirstInt && typ <= TypeLastInt {
		return &Value{kind: KindInt, typ: typ, data: data, raw: raw, hasRaw: hasRaw}, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedValueType, "0x%02x", typ)
}

// NewString builds a string or, for paths under the resource root, a file
// value.
func (f *Factory) NewString(value string, data uint32) *Value {
	if strings.HasPrefix(value, "res/") || strings.HasPrefix(value, "r/") || strings.HasPrefix(value, "R/") {
		return &Value{kind: KindFile, typ: TypeString, data: data, str: value}
	}
	return &Value{kind: KindString, typ: TypeString, data: data, str: value}
}

func (f *Factory) NewReference(id uint32) *Value {
	return f.newReference(id, "", false, false)
}

// NewTheme builds a ?theme attribute reference.
func (f *Factory) NewTheme(id uint32) *Value {
	return f.newReference(id, "", false, true)
}

func (f *Factory) newReference(id uint32, raw string, hasRaw, theme bool) *Value {
	return &Value{
		kind:   KindReference,
		typ:    TypeReference,
		data:   id,
		raw:    raw,
		hasRaw: hasRaw,
		pkg:    f.pkg,
		theme:  theme,
	}
}

// NewID builds the value of an <item type="id"/> resource.
func (f *Factory) NewID() *Value {
	return &Value{kind: KindID}
}

// NewBag dispatches a complex entry on the owning type name and the key of
// its first item.
func (f *Factory) NewBag(parent uint32, items []BagItem, typ *TypeSpec) (*Value, error) {
	bag := &Bag{Parent: f.NewReference(parent), Items: items}
	typeName := typ.Name()

	if len(items) == 0 {
		return &Value{kind: KindBag, bag: bag}, nil
	}

	key := items[0].Key
	switch {
	case key == AttrKeyType:
		return f.newAttr(bag)
	case typeName == TypeNameArray || key == ArrayKeyStart || key == 0:
		return &Value{kind: KindArray, bag: bag}, nil
	case typeName == TypeNamePlurals || (key >= PluralsKeyStart && key <= PluralsKeyEnd):
		return &Value{kind: KindPlurals, bag: bag}, nil
	case typeName == TypeNameAttr:
		return &Value{kind: KindAttr, bag: &Bag{Parent: bag.Parent}}, nil
	case strings.HasPrefix(typeName, TypeNameStyles):
		return &Value{kind: KindStyle, bag: bag}, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedValueType, "bag type: %s", typeName)
}

// newAttr reads the format descriptor and the optional min, max and
// localization keys. The remaining items are enum or flag symbols whose ids
// are marked synthesized.
func (f *Factory) newAttr(bag *Bag) (*Value, error) {
	items := bag.Items
	attrType := int(items[0].Value.Int())
	bag.Format = attrType & 0xffff

	i := 1
options:
	for ; i < len(items); i++ {
		val := items[i].Value.Int()
		switch items[i].Key {
		case AttrKeyMin:
			bag.Min = &val
		case AttrKeyMax:
			bag.Max = &val
		case AttrKeyL10n:
			l10n := val != 0
			bag.L10n = &l10n
		default:
			break options
		}
	}
	if i == len(items) {
		return &Value{kind: KindAttr, bag: bag}, nil
	}

	for _, it := range items[i:] {
		bag.Symbols = append(bag.Symbols, AttrSymbol{
			Ref:   f.NewReference(it.Key),
			Value: it.Value.Int(),
		})
		f.pkg.AddSynthesizedRes(ID(it.Key))
	}

	switch attrType & 0xff0000 {
	case AttrTypeEnum:
		return &Value{kind: KindEnum, bag: bag}, nil
	case AttrTypeFlags:
		return &Value{kind: KindFlags, bag: bag}, nil
	}
	return nil, errors.Wrapf(ErrUnsupportedValueType, "attr type: 0x%x", attrType)
}
