// Package stringblock decodes string pool chunks, including their style runs.
package stringblock

import (
	"encoding/binary"
	"log"
	"sort"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/avast/apkres/internal/chunk"
	"github.com/avast/apkres/internal/xmlenc"
)

const (
	FlagSorted = 0x00000001
	FlagUtf8   = 0x00000100

	headerSize = 28
	styleEnd   = -1
)

type StringBlock struct {
	isUtf8        bool
	stringOffsets []int32
	styleOffsets  []int32
	strings       []byte
	styles        []int32
	cache         map[int]string

	Logger *log.Logger
}

// Read decodes a string pool chunk at the reader's position. The reader is
// left just past the chunk.
func Read(r *chunk.Reader) (*StringBlock, error) {
	h, err := r.ExpectHeader(chunk.TypeStringPool)
	if err != nil {
		return nil, err
	}
	return ReadWithHeader(r, h)
}

// ReadWithHeader decodes the body of a string pool whose header was already
// consumed.
func ReadWithHeader(r *chunk.Reader, h chunk.Header) (*StringBlock, error) {
	var stringCnt, styleCnt, flags, stringsStart, stylesStart uint32
	if err := r.Fields(&stringCnt, &styleCnt, &flags, &stringsStart, &stylesStart); err != nil {
		return nil, errors.Wrap(err, "error reading string pool header")
	}

	if stringCnt >= 2*1024*1024 {
		return nil, errors.Errorf("Too many strings in this pool (%d).", stringCnt)
	}

	// Some producers pad the header with unused data.
	if h.HeaderSize > headerSize {
		if err := r.SetPosition(h.HeaderEnd()); err != nil {
			return nil, errors.Wrap(err, "error skipping string pool header")
		}
	}

	res := &StringBlock{
		isUtf8: (flags & FlagUtf8) != 0,
		cache:  make(map[int]string),
	}

	offsetsEnd := h.End()
	if stringsStart != 0 {
		offsetsEnd = h.Start + int(stringsStart)
	} else if stylesStart != 0 {
		offsetsEnd = h.Start + int(stylesStart)
	}

	var err error
	if res.stringOffsets, err = readSafeInt32s(r, int(stringCnt), offsetsEnd); err != nil {
		return nil, errors.Wrap(err, "error reading string offsets")
	}
	if styleCnt != 0 {
		if res.styleOffsets, err = readSafeInt32s(r, int(styleCnt), offsetsEnd); err != nil {
			return nil, errors.Wrap(err, "error reading style offsets")
		}
	}

	hasStyles := stylesStart != 0 && styleCnt != 0
	size := int(h.Size) - int(stringsStart)
	if styleCnt > 0 && stylesStart >= stringsStart {
		size = int(stylesStart) - int(stringsStart)
	}

	if err := r.SetPosition(h.Start + int(stringsStart)); err != nil {
		return nil, errors.Wrap(err, "invalid strings start")
	}
	if size < 0 || size > r.Len() {
		return nil, errors.Errorf("Wrong string data size %d", size)
	}
	if res.strings, err = r.Next(size); err != nil {
		return nil, errors.Wrap(err, "Failed to read string pool data")
	}

	if hasStyles {
		if err := r.SetPosition(h.Start + int(stylesStart)); err != nil {
			return nil, errors.Wrap(err, "invalid styles start")
		}
		stylesSize := int(h.Size) - int(stylesStart)
		if res.styles, err = r.Int32s(stylesSize / 4); err != nil {
			return nil, errors.Wrap(err, "Failed to read style data")
		}
	}

	if err := r.SetPosition(h.End()); err != nil {
		return nil, errors.Wrap(err, "string pool exceeds its container")
	}
	return res, nil
}

// readSafeInt32s reads up to count ints, stopping at maxPos. count comes
// from the file and only bounds the loop.
func readSafeInt32s(r *chunk.Reader, count, maxPos int) ([]int32, error) {
	capacity := (min(maxPos, r.Position()+r.Len()) - r.Position() + 3) / 4
	res := make([]int32, 0, max(0, min(count, capacity)))
	for i := 0; i < count; i++ {
		if r.Position() >= maxPos {
			break
		}
		v, err := r.Int32()
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, nil
}

func (b *StringBlock) IsUtf8() bool {
	return b.isUtf8
}

func (b *StringBlock) Count() int {
	return len(b.stringOffsets)
}

func (b *StringBlock) StyleCount() int {
	return len(b.styleOffsets)
}

// String returns the string at idx. ok is false when idx is out of range or
// the entry can not be decoded.
func (b *StringBlock) String(idx int) (str string, ok bool) {
	if b == nil || idx < 0 || idx >= len(b.stringOffsets) {
		return "", false
	}

	if str, prs := b.cache[idx]; prs {
		return str, true
	}

	offset := int(b.stringOffsets[idx])
	var length int
	var err error
	if b.isUtf8 {
		offset, length, err = b.utf8Len(offset)
	} else {
		offset, length, err = b.utf16Len(offset)
	}
	if err != nil {
		b.logf("%s", err.Error())
		return "", false
	}

	if str, ok = b.decode(offset, length); ok {
		b.cache[idx] = str
	}
	return
}

// StringOrEmpty is String without the presence flag.
func (b *StringBlock) StringOrEmpty(idx int) string {
	str, _ := b.String(idx)
	return str
}

func (b *StringBlock) byteAt(offset int) (int, error) {
	if offset < 0 || offset >= len(b.strings) {
		return 0, errors.Errorf("String offset %d is out of bounds (%d).", offset, len(b.strings))
	}
	return int(b.strings[offset]), nil
}

// utf8Len skips the UTF-16 length and returns the data offset and the UTF-8
// byte length.
func (b *StringBlock) utf8Len(offset int) (int, int, error) {
	val, err := b.byteAt(offset)
	if err != nil {
		return 0, 0, err
	}
	if (val & 0x80) != 0 {
		offset += 2
	} else {
		offset++
	}

	if val, err = b.byteAt(offset); err != nil {
		return 0, 0, err
	}
	offset++
	if (val & 0x80) != 0 {
		low, err := b.byteAt(offset)
		if err != nil {
			return 0, 0, err
		}
		offset++
		return offset, ((val & 0x7f) << 8) + low, nil
	}
	return offset, val, nil
}

func (b *StringBlock) utf16Len(offset int) (int, int, error) {
	if offset < 0 || offset+2 > len(b.strings) {
		return 0, 0, errors.Errorf("String offset %d is out of bounds (%d).", offset, len(b.strings))
	}
	val := int(binary.LittleEndian.Uint16(b.strings[offset:]))
	if (val & 0x8000) != 0 {
		if offset+4 > len(b.strings) {
			return 0, 0, errors.Errorf("String offset %d is out of bounds (%d).", offset, len(b.strings))
		}
		low := int(binary.LittleEndian.Uint16(b.strings[offset+2:]))
		return offset + 4, (((val & 0x7fff) << 16) + low) * 2, nil
	}
	return offset + 2, val * 2, nil
}

func (b *StringBlock) decode(offset, length int) (string, bool) {
	if offset < 0 || length < 0 || offset+length > len(b.strings) {
		b.logf("String at offset %d of length %d is out of bounds (%d).", offset, length, len(b.strings))
		return "", false
	}
	data := b.strings[offset : offset+length]

	if !b.isUtf8 {
		units := make([]uint16, len(data)/2)
		for i := range units {
			units[i] = binary.LittleEndian.Uint16(data[2*i:])
		}
		return string(utf16.Decode(units)), true
	}

	if utf8.Valid(data) {
		return string(data), true
	}
	// Android reads modified UTF-8, surrogate pairs included.
	return decodeCesu8(data), true
}

func decodeCesu8(data []byte) string {
	units := make([]uint16, 0, len(data))
	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xe0 == 0xc0 && i+1 < len(data):
			units = append(units, uint16(c&0x1f)<<6|uint16(data[i+1]&0x3f))
			i += 2
		case c&0xf0 == 0xe0 && i+2 < len(data):
			units = append(units, uint16(c&0x0f)<<12|uint16(data[i+1]&0x3f)<<6|uint16(data[i+2]&0x3f))
			i += 3
		case c&0xf8 == 0xf0 && i+3 < len(data):
			r, size := utf8.DecodeRune(data[i:])
			units = append(units, utf16.Encode([]rune{r})...)
			i += size
		default:
			units = append(units, utf8.RuneError)
			i++
		}
	}
	return string(utf16.Decode(units))
}

// Find returns the index of str, or -1.
func (b *StringBlock) Find(str string) int {
	for i := range b.stringOffsets {
		if s, ok := b.String(i); ok && len(s) == len(str) && s == str {
			return i
		}
	}
	return -1
}

// style returns the (name, first, last) triplets of the string at idx.
func (b *StringBlock) style(idx int) []int32 {
	if b.styleOffsets == nil || b.styles == nil || idx < 0 || idx >= len(b.styleOffsets) {
		return nil
	}
	offset := int(b.styleOffsets[idx]) / 4
	if offset < 0 {
		return nil
	}

	var style []int32
	for i := offset; i < len(b.styles); i++ {
		if b.styles[i] == styleEnd {
			break
		}
		style = append(style, b.styles[i])
	}
	if len(style) == 0 || len(style)%3 != 0 {
		return nil
	}
	return style
}

// HTML returns the string at idx with its style spans rendered as inline
// tags. Plain strings are only XML escaped.
func (b *StringBlock) HTML(idx int) (string, bool) {
	text, ok := b.String(idx)
	if !ok {
		return "", false
	}

	style := b.style(idx)
	if style == nil {
		return xmlenc.EscapeXMLChars(text), true
	}

	// Malformed pools point spans past the end of the text.
	if int(style[1]) > len(utf16.Encode([]rune(text))) {
		return xmlenc.EscapeXMLChars(text), true
	}

	spans := make([]Span, 0, len(style)/3)
	for i := 0; i < len(style); i += 3 {
		tag, _ := b.String(int(style[i]))
		spans = append(spans, NewSpan(tag, int(style[i+1]), int(style[i+2])))
	}
	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].Less(spans[j])
	})

	s := StyledString{Text: text, Spans: spans, Logger: b.Logger}
	return s.String(), true
}

func (b *StringBlock) logf(format string, args ...any) {
	if b.Logger != nil {
		b.Logger.Printf(format, args...)
	}
}
