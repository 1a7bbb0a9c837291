// Package resconfig models resource configurations and renders their
// qualifier strings (the "-en-rUS-hdpi" part of a resource directory).
package resconfig

import (
	"fmt"
	"log"
	"strings"
)

const (
	OrientationAny    = 0
	OrientationPort   = 1
	OrientationLand   = 2
	OrientationSquare = 3

	TouchscreenAny     = 0
	TouchscreenNoTouch = 1
	TouchscreenStylus  = 2
	TouchscreenFinger  = 3

	DensityDefault = 0
	DensityLow     = 120
	DensityMedium  = 160
	DensityTV      = 213
	DensityHigh    = 240
	DensityXHigh   = 320
	DensityXXHigh  = 480
	DensityXXXHigh = 640
	DensityAny     = 0xfffe
	DensityNone    = 0xffff

	MNCZero = -1

	MaskLayoutDir = 0xc0
	LayoutDirAny  = 0x00
	LayoutDirLTR  = 0x40
	LayoutDirRTL  = 0x80

	MaskScreenSize   = 0x0f
	ScreenSizeAny    = 0x00
	ScreenSizeSmall  = 0x01
	ScreenSizeNormal = 0x02
	ScreenSizeLarge  = 0x03
	ScreenSizeXLarge = 0x04
	MaskScreenLong   = 0x30
	ScreenLongAny    = 0x00
	ScreenLongNo     = 0x10
	ScreenLongYes    = 0x20
	MaskScreenRound  = 0x03
	ScreenRoundAny   = 0x00
	ScreenRoundNo    = 0x01
	ScreenRoundYes   = 0x02

	ColorWideUndefined = 0x0
	ColorWideMask      = 0x3
	ColorWideNo        = 0x1
	ColorWideYes       = 0x2
	ColorHDRUndefined  = 0x0
	ColorHDRMask       = 0xc
	ColorHDRNo         = 0x4
	ColorHDRYes        = 0x8

	KeyboardAny    = 0
	KeyboardNoKeys = 1
	KeyboardQwerty = 2
	Keyboard12Key  = 3

	NavigationAny       = 0
	NavigationNoNav     = 1
	NavigationDpad      = 2
	NavigationTrackball = 3
	NavigationWheel     = 4

	MaskKeysHidden = 0x3
	KeysHiddenAny  = 0x0
	KeysHiddenNo   = 0x1
	KeysHiddenYes  = 0x2
	KeysHiddenSoft = 0x3

	MaskNavHidden = 0xc
	NavHiddenAny  = 0x0
	NavHiddenNo   = 0x4
	NavHiddenYes  = 0x8

	MaskUIModeType       = 0x0f
	UIModeTypeAny        = 0x00
	UIModeTypeNormal     = 0x01
	UIModeTypeDesk       = 0x02
	UIModeTypeCar        = 0x03
	UIModeTypeTelevision = 0x04
	UIModeTypeAppliance  = 0x05
	UIModeTypeWatch      = 0x06
	UIModeTypeVRHeadset  = 0x07
	UIModeTypeGodzillaUI = 0x0b
	UIModeTypeSmallUI    = 0x0c
	UIModeTypeMediumUI   = 0x0d
	UIModeTypeLargeUI    = 0x0e
	UIModeTypeHugeUI     = 0x0f

	MaskUIModeNight = 0x30
	UIModeNightAny  = 0x00
	UIModeNightNo   = 0x10
	UIModeNightYes  = 0x20
)

const (
	SdkBase         = 1
	SdkDonut        = 4
	SdkFroyo        = 8
	SdkHoneycombMR2 = 13
	SdkLollipop     = 21
	SdkMarshmallow  = 23
	SdkOreo         = 26
)

// Fields holds every decoded configuration axis. Language and Region are
// unpacked codes without NUL padding.
type Fields struct {
	MCC      int
	MNC      int
	Language string
	Region   string

	Orientation int
	Touchscreen int
	Density     int

	Keyboard   int
	Navigation int
	InputFlags int

	ScreenWidth  int
	ScreenHeight int

	SdkVersion int

	ScreenLayout          int
	UIMode                int
	SmallestScreenWidthDp int

	ScreenWidthDp  int
	ScreenHeightDp int

	LocaleScript  string
	LocaleVariant string

	ScreenLayout2 int
	ColorMode     int

	// Size is the declared size of the config record.
	Size int
}

// ErrCounter numbers invalid configurations so each gets a unique qualifier.
// One counter belongs to one decoding session.
type ErrCounter struct {
	next int
}

func (c *ErrCounter) Next() int {
	n := c.next
	c.next++
	return n
}

// Flags is an immutable configuration. Two Flags are the same bucket iff
// their qualifier strings are equal.
type Flags struct {
	fields     Fields
	isInvalid  bool
	qualifiers string
}

// Default returns the configuration with no qualifiers.
func Default() *Flags {
	return &Flags{}
}

// New validates f and renders its qualifiers. Out of range values are reset
// to their default and mark the configuration invalid. counter may be nil.
func New(f Fields, isInvalid bool, counter *ErrCounter, logger *log.Logger) *Flags {
	warn := func(name string, v int) {
		if logger != nil {
			logger.Printf("Invalid %s value %d", name, v)
		}
		isInvalid = true
	}

	if f.Orientation < 0 || f.Orientation > 3 {
		warn("orientation", f.Orientation)
		f.Orientation = 0
	}
	if f.Touchscreen < 0 || f.Touchscreen > 3 {
		warn("touchscreen", f.Touchscreen)
		f.Touchscreen = 0
	}
	if f.Density < -1 {
		warn("density", f.Density)
		f.Density = 0
	}
	if f.Keyboard < 0 || f.Keyboard > 3 {
		warn("keyboard", f.Keyboard)
		f.Keyboard = 0
	}
	if f.Navigation < 0 || f.Navigation > 4 {
		warn("navigation", f.Navigation)
		f.Navigation = 0
	}

	f.LocaleScript = trimNul(f.LocaleScript)
	f.LocaleVariant = trimNul(f.LocaleVariant)
	f.Language = trimNul(f.Language)
	f.Region = trimNul(f.Region)

	c := &Flags{fields: f, isInvalid: isInvalid}
	c.qualifiers = c.generateQualifiers(counter)
	return c
}

func trimNul(s string) string {
	if idx := strings.IndexByte(s, 0); idx != -1 {
		return s[:idx]
	}
	return s
}

func (c *Flags) Fields() Fields {
	return c.fields
}

func (c *Flags) IsInvalid() bool {
	return c.isInvalid
}

func (c *Flags) Qualifiers() string {
	return c.qualifiers
}

// Key is the map key identifying the configuration bucket.
func (c *Flags) Key() string {
	return c.qualifiers
}

func (c *Flags) IsDefault() bool {
	return c.qualifiers == ""
}

func (c *Flags) Equal(o *Flags) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.qualifiers == o.qualifiers
}

func (c *Flags) String() string {
	if c.qualifiers != "" {
		return c.qualifiers
	}
	return "[DEFAULT]"
}

func (c *Flags) generateQualifiers(counter *ErrCounter) string {
	f := &c.fields
	var ret strings.Builder

	if f.MCC != 0 {
		fmt.Fprintf(&ret, "-mcc%03d", f.MCC)
		if f.MNC != MNCZero {
			if f.MNC != 0 {
				ret.WriteString("-mnc")
				if f.Size <= 32 && f.MNC > 0 && f.MNC < 10 {
					fmt.Fprintf(&ret, "%02d", f.MNC)
				} else {
					fmt.Fprintf(&ret, "%03d", f.MNC)
				}
			}
		} else {
			ret.WriteString("-mnc00")
		}
	} else if f.MNC != 0 {
		fmt.Fprintf(&ret, "-mnc%d", f.MNC)
	}

	ret.WriteString(c.localeString())

	switch f.ScreenLayout & MaskLayoutDir {
	case LayoutDirRTL:
		ret.WriteString("-ldrtl")
	case LayoutDirLTR:
		ret.WriteString("-ldltr")
	}
	if f.SmallestScreenWidthDp != 0 {
		fmt.Fprintf(&ret, "-sw%ddp", f.SmallestScreenWidthDp)
	}
	if f.ScreenWidthDp != 0 {
		fmt.Fprintf(&ret, "-w%ddp", f.ScreenWidthDp)
	}
	if f.ScreenHeightDp != 0 {
		fmt.Fprintf(&ret, "-h%ddp", f.ScreenHeightDp)
	}

	switch f.ScreenLayout & MaskScreenSize {
	case ScreenSizeSmall:
		ret.WriteString("-small")
	case ScreenSizeNormal:
		ret.WriteString("-normal")
	case ScreenSizeLarge:
		ret.WriteString("-large")
	case ScreenSizeXLarge:
		ret.WriteString("-xlarge")
	}
	switch f.ScreenLayout & MaskScreenLong {
	case ScreenLongYes:
		ret.WriteString("-long")
	case ScreenLongNo:
		ret.WriteString("-notlong")
	}
	switch f.ScreenLayout2 & MaskScreenRound {
	case ScreenRoundNo:
		ret.WriteString("-notround")
	case ScreenRoundYes:
		ret.WriteString("-round")
	}
	switch f.ColorMode & ColorHDRMask {
	case ColorHDRYes:
		ret.WriteString("-highdr")
	case ColorHDRNo:
		ret.WriteString("-lowdr")
	}
	switch f.ColorMode & ColorWideMask {
	case ColorWideYes:
		ret.WriteString("-widecg")
	case ColorWideNo:
		ret.WriteString("-nowidecg")
	}

	switch f.Orientation {
	case OrientationPort:
		ret.WriteString("-port")
	case OrientationLand:
		ret.WriteString("-land")
	case OrientationSquare:
		ret.WriteString("-square")
	}

	switch f.UIMode & MaskUIModeType {
	case UIModeTypeCar:
		ret.WriteString("-car")
	case UIModeTypeDesk:
		ret.WriteString("-desk")
	case UIModeTypeTelevision:
		ret.WriteString("-television")
	case UIModeTypeSmallUI:
		ret.WriteString("-smallui")
	case UIModeTypeMediumUI:
		ret.WriteString("-mediumui")
	case UIModeTypeLargeUI:
		ret.WriteString("-largeui")
	case UIModeTypeGodzillaUI:
		ret.WriteString("-godzillaui")
	case UIModeTypeHugeUI:
		ret.WriteString("-hugeui")
	case UIModeTypeAppliance:
		ret.WriteString("-appliance")
	case UIModeTypeWatch:
		ret.WriteString("-watch")
	case UIModeTypeVRHeadset:
		ret.WriteString("-vrheadset")
	}
	switch f.UIMode & MaskUIModeNight {
	case UIModeNightYes:
		ret.WriteString("-night")
	case UIModeNightNo:
		ret.WriteString("-nonight")
	}

	switch f.Density {
	case DensityDefault:
	case DensityLow:
		ret.WriteString("-ldpi")
	case DensityMedium:
		ret.WriteString("-mdpi")
	case DensityHigh:
		ret.WriteString("-hdpi")
	case DensityTV:
		ret.WriteString("-tvdpi")
	case DensityXHigh:
		ret.WriteString("-xhdpi")
	case DensityXXHigh:
		ret.WriteString("-xxhdpi")
	case DensityXXXHigh:
		ret.WriteString("-xxxhdpi")
	case DensityAny:
		ret.WriteString("-anydpi")
	case DensityNone:
		ret.WriteString("-nodpi")
	default:
		fmt.Fprintf(&ret, "-%ddpi", f.Density)
	}

	switch f.Touchscreen {
	case TouchscreenNoTouch:
		ret.WriteString("-notouch")
	case TouchscreenStylus:
		ret.WriteString("-stylus")
	case TouchscreenFinger:
		ret.WriteString("-finger")
	}

	switch f.InputFlags & MaskKeysHidden {
	case KeysHiddenNo:
		ret.WriteString("-keysexposed")
	case KeysHiddenYes:
		ret.WriteString("-keyshidden")
	case KeysHiddenSoft:
		ret.WriteString("-keyssoft")
	}
	switch f.Keyboard {
	case KeyboardNoKeys:
		ret.WriteString("-nokeys")
	case KeyboardQwerty:
		ret.WriteString("-qwerty")
	case Keyboard12Key:
		ret.WriteString("-12key")
	}
	switch f.InputFlags & MaskNavHidden {
	case NavHiddenNo:
		ret.WriteString("-navexposed")
	case NavHiddenYes:
		ret.WriteString("-navhidden")
	}
	switch f.Navigation {
	case NavigationNoNav:
		ret.WriteString("-nonav")
	case NavigationDpad:
		ret.WriteString("-dpad")
	case NavigationTrackball:
		ret.WriteString("-trackball")
	case NavigationWheel:
		ret.WriteString("-wheel")
	}

	if f.ScreenWidth != 0 && f.ScreenHeight != 0 {
		if f.ScreenWidth > f.ScreenHeight {
			fmt.Fprintf(&ret, "-%dx%d", f.ScreenWidth, f.ScreenHeight)
		} else {
			fmt.Fprintf(&ret, "-%dx%d", f.ScreenHeight, f.ScreenWidth)
		}
	}
	if f.SdkVersion > 0 && f.SdkVersion >= c.naturalSdkVersionRequirement() {
		fmt.Fprintf(&ret, "-v%d", f.SdkVersion)
	}
	if c.isInvalid {
		if counter == nil {
			counter = &ErrCounter{}
		}
		fmt.Fprintf(&ret, "-ERR%d", counter.Next())
	}
	return ret.String()
}

// naturalSdkVersionRequirement is the lowest SDK that understands the other
// qualifiers; aapt leaves out a -v suffix below it.
func (c *Flags) naturalSdkVersionRequirement() int {
	f := &c.fields
	if (f.UIMode&MaskUIModeType) == UIModeTypeVRHeadset ||
		(f.ColorMode&ColorWideMask) != 0 ||
		(f.ColorMode&ColorHDRMask) != 0 {
		return SdkOreo
	}
	if (f.ScreenLayout2 & MaskScreenRound) != 0 {
		return SdkMarshmallow
	}
	if f.Density == DensityAny {
		return SdkLollipop
	}
	if f.SmallestScreenWidthDp != 0 || f.ScreenWidthDp != 0 || f.ScreenHeightDp != 0 {
		return SdkHoneycombMR2
	}
	if (f.UIMode & (MaskUIModeType | MaskUIModeNight)) != UIModeNightAny {
		return SdkFroyo
	}
	if (f.ScreenLayout&(MaskScreenSize|MaskScreenLong)) != ScreenSizeAny ||
		f.Density != DensityDefault {
		return SdkDonut
	}
	return 0
}

func (c *Flags) localeString() string {
	f := &c.fields
	var sb strings.Builder

	// Legacy values-xx-rXX, values-xx and values-xxx-rXX, anything else is BCP 47.
	if f.LocaleVariant == "" && f.LocaleScript == "" &&
		(f.Region != "" || f.Language != "") && len(f.Region) != 3 {
		sb.WriteString("-")
		sb.WriteString(f.Language)
		if f.Region != "" {
			sb.WriteString("-r")
			sb.WriteString(f.Region)
		}
		return sb.String()
	}

	if f.Language == "" && f.Region == "" {
		return ""
	}
	sb.WriteString("-b+")
	sb.WriteString(f.Language)
	if len(f.LocaleScript) == 4 {
		sb.WriteString("+")
		sb.WriteString(f.LocaleScript)
	}
	if len(f.Region) == 2 || len(f.Region) == 3 {
		sb.WriteString("+")
		sb.WriteString(f.Region)
	}
	if len(f.LocaleVariant) >= 5 {
		sb.WriteString("+")
		sb.WriteString(strings.ToUpper(f.LocaleVariant))
	}
	return sb.String()
}
