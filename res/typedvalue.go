package res

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Typed value tags of Res_value.
const (
	TypeNull             = 0x00
	TypeReference        = 0x01
	TypeAttribute        = 0x02
	TypeString           = 0x03
	TypeFloat            = 0x04
	TypeDimension        = 0x05
	TypeFraction         = 0x06
	TypeDynamicReference = 0x07
	TypeDynamicAttribute = 0x08

	TypeFirstInt   = 0x10
	TypeIntDec     = 0x10
	TypeIntHex     = 0x11
	TypeIntBoolean = 0x12

	TypeFirstColorInt = 0x1c
	TypeIntColorARGB8 = 0x1c
	TypeIntColorRGB8  = 0x1d
	TypeIntColorARGB4 = 0x1e
	TypeIntColorRGB4  = 0x1f
	TypeLastColorInt  = 0x1f
	TypeLastInt       = 0x1f
)

const (
	ComplexUnitShift = 0
	ComplexUnitMask  = 0xf

	ComplexUnitPx  = 0
	ComplexUnitDip = 1
	ComplexUnitSp  = 2
	ComplexUnitPt  = 3
	ComplexUnitIn  = 4
	ComplexUnitMm  = 5

	ComplexUnitFraction       = 0
	ComplexUnitFractionParent = 1

	ComplexRadixShift = 4
	ComplexRadixMask  = 0x3

	ComplexMantissaShift = 8
	ComplexMantissaMask  = 0xffffff

	DataNullUndefined = 0
	DataNullEmpty     = 1
)

const mantissaMult = 1.0 / (1 << ComplexMantissaShift)

var radixMults = [...]float32{
	mantissaMult,
	1.0 / (1 << 7) * mantissaMult,
	1.0 / (1 << 15) * mantissaMult,
	1.0 / (1 << 23) * mantissaMult,
}

var (
	dimensionUnits = []string{"px", "dip", "sp", "pt", "in", "mm"}
	fractionUnits  = []string{"%", "%p"}
)

// ComplexToFloat converts a complex dimension or fraction to its value.
func ComplexToFloat(c uint32) float32 {
	mantissa := int32(c & (ComplexMantissaMask << ComplexMantissaShift))
	return float32(mantissa) * radixMults[(c>>ComplexRadixShift)&ComplexRadixMask]
}

// CoerceToString renders typed data the way Android's TypedValue does. The
// result is false for types with no textual form.
func CoerceToString(typ uint8, data uint32) (string, bool) {
	switch typ {
	case TypeNull:
		return "", false
	case TypeReference:
		return fmt.Sprintf("@%d", data), true
	case TypeAttribute:
		return fmt.Sprintf("?%d", data), true
	case TypeFloat:
		return FormatFloat(math.Float32frombits(data)), true
	case TypeDimension:
		unit := (data >> ComplexUnitShift) & ComplexUnitMask
		if int(unit) >= len(dimensionUnits) {
			return "", false
		}
		return FormatFloat(ComplexToFloat(data)) + dimensionUnits[unit], true
	case TypeFraction:
		unit := (data >> ComplexUnitShift) & ComplexUnitMask
		if int(unit) >= len(fractionUnits) {
			return "", false
		}
		return FormatFloat(ComplexToFloat(data)*100) + fractionUnits[unit], true
	case TypeIntHex:
		return fmt.Sprintf("0x%x", data), true
	case TypeIntBoolean:
		if data != 0 {
			return "true", true
		}
		return "false", true
	}

	if typ >= TypeFirstColorInt && typ <= TypeLastColorInt {
		res := fmt.Sprintf("%08x", data)
		switch typ {
		case TypeIntColorRGB8:
			res = res[2:]
		case TypeIntColorARGB4:
			res = string([]byte{res[1], res[3], res[5], res[7]})
		case TypeIntColorRGB4:
			res = string([]byte{res[3], res[5], res[7]})
		}
		return "#" + res, true
	} else if typ >= TypeFirstInt && typ <= TypeLastInt {
		if typ == TypeIntDec {
			return strconv.FormatInt(int64(int32(data)), 10), true
		}
	}
	return "", false
}

// FormatFloat prints f with the shortest representation that round-trips,
// always keeping a fractional part ("16.0") and switching to exponent form
// outside [1e-3, 1e7).
func FormatFloat(f float32) string {
	switch {
	case math.IsNaN(float64(f)):
		return "NaN"
	case math.IsInf(float64(f), 1):
		return "Infinity"
	case math.IsInf(float64(f), -1):
		return "-Infinity"
	}

	abs := math.Abs(float64(f))
	if f == 0 || (abs >= 1e-3 && abs < 1e7) {
		s := strconv.FormatFloat(float64(f), 'f', -1, 32)
		if !strings.ContainsRune(s, '.') {
			s += ".0"
		}
		if f == 0 && math.Signbit(float64(f)) {
			return "-0.0"
		}
		return s
	}

	s := strconv.FormatFloat(float64(f), 'E', -1, 32)
	mantissa, exp, _ := strings.Cut(s, "E")
	if !strings.ContainsRune(mantissa, '.') {
		mantissa += ".0"
	}
	exp = strings.TrimPrefix(exp, "+")
	neg := strings.HasPrefix(exp, "-")
	exp = strings.TrimLeft(strings.TrimPrefix(exp, "-"), "0")
	if neg {
		exp = "-" + exp
	}
	return mantissa + "E" + exp
}
