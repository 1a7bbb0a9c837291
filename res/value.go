package res

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/avast/apkres/internal/xmlenc"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindColor
	KindDimen
	KindFraction
	KindReference
	KindBool
	KindFloat
	KindID
	KindEmpty
	KindFile
	KindBag
	KindArray
	KindPlurals
	KindStyle
	KindAttr
	KindEnum
	KindFlags
)

var kindNames = [...]string{
	KindString:    "string",
	KindInt:       "int",
	KindColor:     "color",
	KindDimen:     "dimen",
	KindFraction:  "fraction",
	KindReference: "reference",
	KindBool:      "bool",
	KindFloat:     "float",
	KindID:        "id",
	KindEmpty:     "empty",
	KindFile:      "file",
	KindBag:       "bag",
	KindArray:     "array",
	KindPlurals:   "plurals",
	KindStyle:     "style",
	KindAttr:      "attr",
	KindEnum:      "enum",
	KindFlags:     "flags",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a decoded resource value. The zero value is not valid; values
// are built by a Factory.
type Value struct {
	kind Kind
	data uint32
	typ  uint8

	raw    string
	hasRaw bool

	// text of strings, path of files
	str string

	// owner of references, used to resolve them through the table
	pkg   *Package
	theme bool

	bag *Bag
}

// BagItem is one (key, value) pair of a complex entry.
type BagItem struct {
	Key   uint32
	Value *Value
}

// Bag is the payload of complex values.
type Bag struct {
	Parent *Value
	Items  []BagItem

	// attr definitions only
	Format   int
	Min, Max *int32
	L10n     *bool
	Symbols  []AttrSymbol
	flagSort []AttrSymbol
}

// AttrSymbol is one enum or flag constant of an attr definition.
type AttrSymbol struct {
	Ref   *Value
	Value int32
}

func (v *Value) Kind() Kind { return v.kind }

// Data is the raw 32-bit payload.
func (v *Value) Data() uint32 { return v.data }

// DataType is the typed value tag the value was decoded from.
func (v *Value) DataType() uint8 { return v.typ }

func (v *Value) Int() int32 { return int32(v.data) }

func (v *Value) Raw() (string, bool) { return v.raw, v.hasRaw }

// Str is the text of a string value or the path of a file value.
func (v *Value) Str() string { return v.str }

func (v *Value) Bool() bool { return v.data != 0 }

func (v *Value) Float() float32 { return math.Float32frombits(v.data) }

func (v *Value) IsTheme() bool { return v.theme }

func (v *Value) Bag() *Bag { return v.bag }

func (v *Value) IsScalar() bool {
	switch v.kind {
	case KindString, KindInt, KindColor, KindDimen, KindFraction, KindReference,
		KindBool, KindFloat, KindEmpty:
		return true
	}
	return false
}

func (v *Value) IsBag() bool {
	switch v.kind {
	case KindBag, KindArray, KindPlurals, KindStyle, KindAttr, KindEnum, KindFlags:
		return true
	}
	return false
}

func (v *Value) IsAttr() bool {
	switch v.kind {
	case KindAttr, KindEnum, KindFlags:
		return true
	}
	return false
}

// isInt reports the integer based scalars.
func (v *Value) isInt() bool {
	switch v.kind {
	case KindInt, KindColor, KindDimen, KindFraction, KindReference:
		return true
	}
	return false
}

// Type is the values XML element a scalar prefers.
func (v *Value) Type() string {
	switch v.kind {
	case KindString:
		return "string"
	case KindInt, KindEmpty:
		return "integer"
	case KindColor:
		return "color"
	case KindDimen:
		return "dimen"
	case KindFraction:
		return "fraction"
	case KindReference:
		return "reference"
	case KindBool:
		return "bool"
	case KindFloat:
		return "float"
	}
	return ""
}

func (v *Value) String() string {
	switch v.kind {
	case KindString, KindFile:
		return v.str
	}
	if v.IsScalar() {
		return v.EncodeAsResXMLValue()
	}
	return v.kind.String()
}

// encodeAsResXML is the textual form computed from the typed payload.
func (v *Value) encodeAsResXML() string {
	switch v.kind {
	case KindInt:
		s, _ := CoerceToString(v.typ, v.data)
		return s
	case KindColor:
		return fmt.Sprintf("#%08x", v.data)
	case KindDimen:
		s, _ := CoerceToString(TypeDimension, v.data)
		return s
	case KindFraction:
		s, _ := CoerceToString(TypeFraction, v.data)
		return s
	case KindReference:
		return v.encodeReference()
	case KindBool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case KindFloat:
		return FormatFloat(v.Float())
	case KindEmpty:
		return "@empty"
	case KindFile:
		return v.str
	}
	return ""
}

var allDigits = regexp.MustCompile(`^\d{9,}$`)

// EncodeAsResXMLAttr encodes the value for an XML attribute position,
// preferring the original raw text.
func (v *Value) EncodeAsResXMLAttr() string {
	if v.kind == KindString {
		val := xmlenc.EncodeAsResXMLAttr(v.str)
		// Long digit runs would be reparsed as numbers.
		if val != "" && allDigits.MatchString(val) {
			return "\\ " + val
		}
		return val
	}
	if v.hasRaw {
		return v.raw
	}
	return v.encodeAsResXML()
}

// EncodeAsResXMLValue encodes the value for an element body.
func (v *Value) EncodeAsResXMLValue() string {
	if v.kind == KindString {
		return xmlenc.EncodeAsXMLValue(v.str)
	}
	if v.hasRaw {
		return v.raw
	}
	return v.encodeAsResXML()
}

// EncodeAsResXMLItemValue encodes the value as an <item> body.
func (v *Value) EncodeAsResXMLItemValue() string {
	if v.kind == KindString {
		return xmlenc.EnumerateNonPositionalSubstitutionsIfRequired(xmlenc.EncodeAsXMLValue(v.str))
	}
	return v.EncodeAsResXMLValue()
}

// EncodeAsResXMLNonEscapedItemValue is EncodeAsResXMLValue with the '&' and
// '<' escapes undone, for serializers that escape text themselves.
func (v *Value) EncodeAsResXMLNonEscapedItemValue() string {
	s := v.EncodeAsResXMLValue()
	s = strings.ReplaceAll(s, "&amp;", "&")
	return strings.ReplaceAll(s, "&lt;", "<")
}

func (v *Value) HasMultipleNonPositionalSubstitutions() bool {
	if v.kind == KindString {
		return xmlenc.HasMultipleNonPositionalSubstitutions(v.str)
	}
	return v.hasRaw && xmlenc.HasMultipleNonPositionalSubstitutions(v.raw)
}

// IsNullReference reports a reference to id 0.
func (v *Value) IsNullReference() bool {
	return v.kind == KindReference && v.data == 0
}

// Referent resolves a reference through the table of its package. Unknown
// targets yield nil.
func (v *Value) Referent() *ResSpec {
	if v.kind != KindReference || v.pkg == nil || v.pkg.table == nil {
		return nil
	}
	spec, err := v.pkg.table.ResSpec(v.data)
	if err != nil {
		return nil
	}
	return spec
}

func (v *Value) encodeReference() string {
	if v.IsNullReference() {
		return "@null"
	}
	spec := v.Referent()
	if spec == nil {
		return "@null"
	}

	newID := false
	if def, err := spec.DefaultResource(); err == nil {
		newID = def.value.kind == KindID
	}

	var sb strings.Builder
	if v.theme {
		sb.WriteByte('?')
	} else {
		sb.WriteByte('@')
	}
	if newID {
		sb.WriteByte('+')
	}
	sb.WriteString(spec.FullName(v.pkg, v.theme && spec.typ.Name() == TypeNameAttr))
	return sb.String()
}

// AsString returns a string value carrying the text of a file value. Other
// values are returned unchanged.
func (v *Value) AsString() *Value {
	if v.kind != KindFile {
		return v
	}
	return &Value{kind: KindString, typ: TypeString, data: v.data, str: v.str}
}
