package resconfig

import (
	"log"

	"github.com/pkg/errors"

	"github.com/avast/apkres/internal/chunk"
)

const (
	minConfigSize   = 28
	knownConfigSize = 56
)

var ErrConfigTooSmall = errors.New("config size < 28")

// Read decodes a config record at the reader's position. The reader is left
// just past the declared record size.
func Read(r *chunk.Reader, counter *ErrCounter, logger *log.Logger) (*Flags, error) {
	start := r.Position()

	var size uint32
	if err := r.Fields(&size); err != nil {
		return nil, errors.Wrap(err, "error reading config size")
	}
	if size < minConfigSize {
		return nil, errors.Wrapf(ErrConfigTooSmall, "config at 0x%x has size %d", start, size)
	}

	var base struct {
		MCC          int16
		MNC          int16
		Language     [2]byte
		Region       [2]byte
		Orientation  int8
		Touchscreen  int8
		Density      uint16
		Keyboard     int8
		Navigation   int8
		InputFlags   uint8
		_            uint8
		ScreenWidth  int16
		ScreenHeight int16
		SdkVersion   int16
		_            uint16
	}
	if err := r.Fields(&base); err != nil {
		return nil, errors.Wrap(err, "error reading config")
	}

	f := Fields{
		MCC:          int(base.MCC),
		MNC:          int(base.MNC),
		Language:     unpackLanguageOrRegion(base.Language, 'a'),
		Region:       unpackLanguageOrRegion(base.Region, '0'),
		Orientation:  int(base.Orientation),
		Touchscreen:  int(base.Touchscreen),
		Density:      int(base.Density),
		Keyboard:     int(base.Keyboard),
		Navigation:   int(base.Navigation),
		InputFlags:   int(base.InputFlags),
		ScreenWidth:  int(base.ScreenWidth),
		ScreenHeight: int(base.ScreenHeight),
		SdkVersion:   int(base.SdkVersion),
		Size:         int(size),
	}
	read := minConfigSize

	if size >= 32 {
		var ext struct {
			ScreenLayout          uint8
			UIMode                uint8
			SmallestScreenWidthDp int16
		}
		if err := r.Fields(&ext); err != nil {
			return nil, errors.Wrap(err, "error reading config")
		}
		f.ScreenLayout = int(ext.ScreenLayout)
		f.UIMode = int(ext.UIMode)
		f.SmallestScreenWidthDp = int(ext.SmallestScreenWidthDp)
		read = 32
	}

	if size >= 36 {
		var ext struct {
			ScreenWidthDp  int16
			ScreenHeightDp int16
		}
		if err := r.Fields(&ext); err != nil {
			return nil, errors.Wrap(err, "error reading config")
		}
		f.ScreenWidthDp = int(ext.ScreenWidthDp)
		f.ScreenHeightDp = int(ext.ScreenHeightDp)
		read = 36
	}

	if size >= 48 {
		var ext struct {
			Script  [4]byte
			Variant [8]byte
		}
		if err := r.Fields(&ext); err != nil {
			return nil, errors.Wrap(err, "error reading config")
		}
		f.LocaleScript = trimNul(string(ext.Script[:]))
		f.LocaleVariant = trimNul(string(ext.Variant[:]))
		read = 48
	}

	if size >= 52 {
		var ext struct {
			ScreenLayout2 uint8
			ColorMode     uint8
			_             uint16
		}
		if err := r.Fields(&ext); err != nil {
			return nil, errors.Wrap(err, "error reading config")
		}
		f.ScreenLayout2 = int(ext.ScreenLayout2)
		f.ColorMode = int(ext.ColorMode)
		read = 52
	}

	if size >= 56 {
		if err := r.Skip(4); err != nil {
			return nil, errors.Wrap(err, "error reading config")
		}
		read = 56
	}

	isInvalid := false
	if exceeding := int(size) - knownConfigSize; exceeding > 0 {
		buf, err := r.Next(exceeding)
		if err != nil {
			return nil, errors.Wrap(err, "error reading config")
		}
		read += exceeding

		for _, b := range buf {
			if b != 0 {
				isInvalid = true
				break
			}
		}
		if isInvalid && logger != nil {
			logger.Printf("Config flags size > %d, but exceeding bytes are not zero. Treating it as invalid.", knownConfigSize)
		}
	}

	if remaining := int(size) - read; remaining > 0 {
		if err := r.Skip(remaining); err != nil {
			return nil, errors.Wrap(err, "error skipping config")
		}
	}

	return New(f, isInvalid, counter, logger), nil
}

// unpackLanguageOrRegion expands the two byte code field. A set high bit
// marks three 5-bit letters packed relative to base.
func unpackLanguageOrRegion(in [2]byte, base byte) string {
	if in[0]&0x80 != 0 {
		first := in[1] & 0x1f
		second := ((in[1] & 0xe0) >> 5) + ((in[0] & 0x03) << 3)
		third := (in[0] & 0x7c) >> 2
		return string([]byte{first + base, second + base, third + base})
	}
	return trimNul(string(in[:]))
}
