package res

import (
	"fmt"
	"math/bits"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/avast/apkres/internal/xmlenc"
)

// Bag keys of attr definitions.
const (
	AttrKeyType = 0x01000000
	AttrKeyMin  = 0x01000001
	AttrKeyMax  = 0x01000002
	AttrKeyL10n = 0x01000003

	AttrTypeEnum  = 0x00010000
	AttrTypeFlags = 0x00020000
)

// Bag keys of plurals quantities.
const (
	PluralsKeyStart = 0x01000004
	PluralsKeyEnd   = 0x01000009
)

// ArrayKeyStart is the first index key of array items.
const ArrayKeyStart = 0x02000000

var quantityMap = [...]string{"other", "zero", "one", "two", "few", "many"}

var attrFormats = []struct {
	bit  int
	name string
}{
	{0x01, "reference"},
	{0x02, "string"},
	{0x04, "integer"},
	{0x08, "boolean"},
	{0x10, "color"},
	{0x20, "float"},
	{0x40, "dimension"},
	{0x80, "fraction"},
}

func formatNames(format int) string {
	var names []string
	for _, f := range attrFormats {
		if format&f.bit != 0 {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, "|")
}

// SerializeToResValuesXML writes the values XML element of v held by res.
// File values have no values XML form and write nothing.
func (v *Value) SerializeToResValuesXML(s Serializer, res *Resource) {
	switch v.kind {
	case KindFile:
	case KindID:
		s.StartTag("item")
		s.Attribute("type", res.spec.typ.Name())
		s.Attribute("name", res.spec.Name())
		s.EndTag("item")
	case KindBag:
		v.serializeBag(s, res)
	case KindArray:
		v.serializeArray(s, res)
	case KindPlurals:
		v.serializePlurals(s, res)
	case KindStyle:
		v.serializeStyle(s, res)
	case KindAttr, KindEnum, KindFlags:
		v.serializeAttr(s, res)
	default:
		v.serializeScalar(s, res)
	}
}

func (v *Value) serializeScalar(s Serializer, res *Resource) {
	typeName := res.spec.typ.Name()
	name := res.spec.Name()

	body := ""
	if typeName != "id" {
		body = v.EncodeAsResXMLValue()
	}

	item := v.Type() != "reference" && typeName != v.Type()
	if strings.EqualFold(typeName, "color") && strings.Contains(body, "@") &&
		!strings.Contains(res.FilePath(), "string") {
		item = true
	}
	if res.spec.IsDummy() {
		item = true
	}

	tag := typeName
	if item {
		tag = "item"
	}
	s.StartTag(tag)
	if item {
		s.Attribute("type", typeName)
	}
	s.Attribute("name", name)
	if v.kind == KindString && v.HasMultipleNonPositionalSubstitutions() {
		s.Attribute("formatted", "false")
	}
	if body != "" {
		s.RawText(body)
	}
	s.EndTag(tag)
}

func (v *Value) serializeBag(s Serializer, res *Resource) {
	typeName := res.spec.typ.Name()
	switch typeName {
	case TypeNameStyles:
		(&Value{kind: KindStyle, bag: v.bag}).serializeStyle(s, res)
	case TypeNameArray:
		(&Value{kind: KindArray, bag: v.bag}).serializeArray(s, res)
	case TypeNamePlurals:
		(&Value{kind: KindPlurals, bag: v.bag}).serializePlurals(s, res)
	default:
		s.StartTag("item")
		s.Attribute("type", typeName)
		s.Attribute("name", res.spec.Name())
		s.EndTag("item")
	}
}

// arrayType picks the typed array element, "" for a plain <array>.
func (v *Value) arrayType() string {
	items := v.bag.Items
	if len(items) == 0 {
		return ""
	}
	typ := items[0].Value.Type()
	for _, it := range items {
		enc := it.Value.EncodeAsResXMLItemValue()
		switch {
		case strings.HasPrefix(enc, "@string"):
			return "string"
		case strings.HasPrefix(enc, "@drawable"):
			return ""
		case strings.HasPrefix(enc, "@integer"):
			return "integer"
		case typ != "string" && typ != "integer":
			return ""
		case typ != it.Value.Type():
			return ""
		}
	}
	return typ
}

func (v *Value) serializeArray(s Serializer, res *Resource) {
	tag := "array"
	if typ := v.arrayType(); typ != "" {
		tag = typ + "-array"
	}

	s.StartTag(tag)
	s.Attribute("name", res.spec.Name())
	formatted := lo.CountBy(v.bag.Items, func(it BagItem) bool {
		return it.Value.HasMultipleNonPositionalSubstitutions()
	})
	if formatted > 0 {
		s.Attribute("formatted", "false")
	}
	for _, it := range v.bag.Items {
		s.StartTag("item")
		s.Text(it.Value.EncodeAsResXMLNonEscapedItemValue())
		s.EndTag("item")
	}
	s.EndTag(tag)
}

// quantities orders plurals items by quantity; later keys override
// earlier ones.
func (v *Value) quantities() [len(quantityMap)]*Value {
	var ret [len(quantityMap)]*Value
	for _, it := range v.bag.Items {
		idx := int(it.Key) - PluralsKeyStart
		if idx >= 0 && idx < len(ret) {
			ret[idx] = it.Value
		}
	}
	return ret
}

func (v *Value) serializePlurals(s Serializer, res *Resource) {
	s.StartTag("plurals")
	s.Attribute("name", res.spec.Name())
	for i, item := range v.quantities() {
		if item == nil {
			continue
		}
		s.StartTag("item")
		s.Attribute("quantity", quantityMap[i])
		s.Text(xmlenc.EnumerateNonPositionalSubstitutionsIfRequired(item.EncodeAsResXMLNonEscapedItemValue()))
		s.EndTag("item")
	}
	s.EndTag("plurals")
}

func (v *Value) serializeStyle(s Serializer, res *Resource) {
	table := res.spec.pkg.table
	s.StartTag("style")
	s.Attribute("name", res.spec.Name())

	if parent := v.bag.Parent; parent != nil && !parent.IsNullReference() && parent.Referent() != nil {
		s.Attribute("parent", parent.EncodeAsResXMLAttr())
	} else if strings.Contains(res.spec.Name(), ".") {
		s.Attribute("parent", "")
	}

	processed := make(map[ID]struct{})
	for _, it := range v.bag.Items {
		key := res.spec.pkg.ValueFactory().NewReference(it.Key)
		spec := key.Referent()
		if spec == nil {
			table.logf("null reference: 0x%08x(%s), deleting it from style %s",
				it.Key, it.Value.EncodeAsResXMLAttr(), res.spec.Name())
			continue
		}
		if _, dup := processed[spec.id]; dup {
			table.logf("duplicate style item %s in %s", spec.Name(), res.spec.Name())
			continue
		}
		processed[spec.id] = struct{}{}

		def, err := spec.DefaultResource()
		if err != nil {
			table.logf("null attrib reference: 0x%08x, deleting it from style %s", it.Key, res.spec.Name())
			continue
		}

		var name, value string
		converted := false
		switch defVal := def.value; {
		case defVal.kind == KindReference:
			continue
		case defVal.IsAttr():
			value, converted = defVal.ConvertToResXMLFormat(it.Value)
			name = spec.FullName(res.spec.pkg, true)
		default:
			name = "@" + spec.FullName(res.spec.pkg, false)
		}
		if !converted || value == "" {
			value = it.Value.EncodeAsResXMLValue()
		}
		if value == "" {
			continue
		}

		s.StartTag("item")
		s.Attribute("name", name)
		s.RawText(value)
		s.EndTag("item")
	}
	s.EndTag("style")
}

func (v *Value) serializeAttr(s Serializer, res *Resource) {
	b := v.bag
	s.StartTag("attr")
	s.Attribute("name", res.spec.Name())
	if f := formatNames(b.Format); f != "" {
		s.Attribute("format", f)
	}
	if b.Min != nil {
		s.Attribute("min", strconv.Itoa(int(*b.Min)))
	}
	if b.Max != nil {
		s.Attribute("max", strconv.Itoa(int(*b.Max)))
	}
	if b.L10n != nil && *b.L10n {
		s.Attribute("localization", "suggested")
	}

	switch v.kind {
	case KindEnum:
		for _, sym := range b.Symbols {
			s.StartTag("enum")
			s.Attribute("name", symbolName(sym))
			s.Attribute("value", strconv.Itoa(int(sym.Value)))
			s.EndTag("enum")
		}
	case KindFlags:
		for _, sym := range b.Symbols {
			s.StartTag("flag")
			s.Attribute("name", symbolName(sym))
			s.Attribute("value", fmt.Sprintf("0x%08x", uint32(sym.Value)))
			s.EndTag("flag")
		}
	}
	s.EndTag("attr")
}

func symbolName(sym AttrSymbol) string {
	if spec := sym.Ref.Referent(); spec != nil {
		return spec.Name()
	}
	return "@null"
}

// ConvertToResXMLFormat renders value through an attr definition: enum
// constants by name, flag masks as a '|' joined list. The result is false
// when the definition has no special rendering for value.
func (v *Value) ConvertToResXMLFormat(value *Value) (string, bool) {
	switch v.kind {
	case KindEnum:
		if !value.isInt() {
			return "", false
		}
		for _, sym := range v.bag.Symbols {
			if sym.Value == value.Int() {
				if spec := sym.Ref.Referent(); spec != nil {
					return spec.Name(), true
				}
				return "", false
			}
		}
		return "", false

	case KindFlags:
		if value.kind == KindReference {
			return value.encodeAsResXML(), true
		}
		if !value.isInt() {
			return "", false
		}
		return v.renderFlags(uint32(value.Int()))
	}
	return "", false
}

func (v *Value) renderFlags(mask uint32) (string, bool) {
	zero := lo.Filter(v.bag.Symbols, func(sym AttrSymbol, _ int) bool { return sym.Value == 0 })
	nonZero := lo.Filter(v.bag.Symbols, func(sym AttrSymbol, _ int) bool { return sym.Value != 0 })
	if mask == 0 {
		names := lo.Map(zero, func(sym AttrSymbol, _ int) string { return symbolName(sym) })
		return strings.Join(names, "|"), true
	}

	if v.bag.flagSort == nil {
		v.bag.flagSort = append([]AttrSymbol(nil), nonZero...)
		sort.SliceStable(v.bag.flagSort, func(i, j int) bool {
			return bits.OnesCount32(uint32(v.bag.flagSort[i].Value)) > bits.OnesCount32(uint32(v.bag.flagSort[j].Value))
		})
	}

	var accepted []uint32
	var names []string
	for _, sym := range v.bag.flagSort {
		flag := uint32(sym.Value)
		if mask&flag != flag || isSubpartOf(flag, accepted) {
			continue
		}
		accepted = append(accepted, flag)
		names = append(names, symbolName(sym))
	}
	return strings.Join(names, "|"), true
}

func isSubpartOf(flag uint32, accepted []uint32) bool {
	for _, a := range accepted {
		if a&flag == flag {
			return true
		}
	}
	return false
}
