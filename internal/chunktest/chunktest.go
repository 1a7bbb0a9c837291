// Package chunktest assembles small binary resource chunks for tests.
package chunktest

import (
	"bytes"
	"encoding/binary"
	"unicode/utf16"

	"github.com/avast/apkres/internal/chunk"
)

// Buffer is a little-endian writer with chained helpers.
type Buffer struct {
	bytes.Buffer
}

func (b *Buffer) U8(v ...uint8) *Buffer {
	b.Write(v)
	return b
}

func (b *Buffer) U16(v ...uint16) *Buffer {
	for _, x := range v {
		binary.Write(&b.Buffer, binary.LittleEndian, x)
	}
	return b
}

func (b *Buffer) U32(v ...uint32) *Buffer {
	for _, x := range v {
		binary.Write(&b.Buffer, binary.LittleEndian, x)
	}
	return b
}

func (b *Buffer) I32(v ...int32) *Buffer {
	for _, x := range v {
		binary.Write(&b.Buffer, binary.LittleEndian, x)
	}
	return b
}

func (b *Buffer) Raw(data ...[]byte) *Buffer {
	for _, d := range data {
		b.Write(d)
	}
	return b
}

// Chunk wraps an extended header and a body with the common chunk header.
func Chunk(typ uint16, header, body []byte) []byte {
	var b Buffer
	headerSize := chunk.HeaderSize + len(header)
	b.U16(typ, uint16(headerSize))
	b.U32(uint32(headerSize + len(body)))
	b.Raw(header, body)
	return b.Bytes()
}

// Style is one span of a pool string; Name indexes the pool.
type Style struct {
	Name  uint32
	First uint32
	Last  uint32
}

func pad4(b *Buffer) {
	for b.Len()%4 != 0 {
		b.U8(0)
	}
}

// StringPool builds a string pool chunk. styles may be shorter than strs.
func StringPool(isUtf8 bool, strs []string, styles ...[]Style) []byte {
	var data Buffer
	offsets := make([]uint32, len(strs))
	for i, s := range strs {
		offsets[i] = uint32(data.Len())
		if isUtf8 {
			writeLen8(&data, len(utf16.Encode([]rune(s))))
			writeLen8(&data, len(s))
			data.Raw([]byte(s)).U8(0)
		} else {
			units := utf16.Encode([]rune(s))
			if len(units) > 0x7fff {
				data.U16(uint16(len(units)>>16)|0x8000, uint16(len(units)))
			} else {
				data.U16(uint16(len(units)))
			}
			data.U16(units...).U16(0)
		}
	}
	pad4(&data)

	var styleData Buffer
	styleOffsets := make([]uint32, len(styles))
	for i, spans := range styles {
		styleOffsets[i] = uint32(styleData.Len())
		for _, s := range spans {
			styleData.U32(s.Name, s.First, s.Last)
		}
		styleData.I32(-1)
	}
	if len(styles) > 0 {
		styleData.I32(-1, -1)
	}

	var flags uint32
	if isUtf8 {
		flags |= 0x100
	}

	const poolHeaderSize = chunk.HeaderSize + 5*4
	stringsStart := uint32(poolHeaderSize + 4*len(strs) + 4*len(styles))
	var stylesStart uint32
	if len(styles) > 0 {
		stylesStart = stringsStart + uint32(data.Len())
	}

	var header Buffer
	header.U32(uint32(len(strs)), uint32(len(styles)), flags, stringsStart, stylesStart)

	var body Buffer
	body.U32(offsets...).U32(styleOffsets...).Raw(data.Bytes(), styleData.Bytes())
	return Chunk(chunk.TypeStringPool, header.Bytes(), body.Bytes())
}

func writeLen8(b *Buffer, n int) {
	if n > 0x7f {
		b.U8(uint8(n>>8)|0x80, uint8(n))
	} else {
		b.U8(uint8(n))
	}
}

// UTF16Name encodes a fixed-size, NUL padded UTF-16 field.
func UTF16Name(name string, units int) []byte {
	var b Buffer
	enc := utf16.Encode([]rune(name))
	for i := 0; i < units; i++ {
		if i < len(enc) {
			b.U16(enc[i])
		} else {
			b.U16(0)
		}
	}
	return b.Bytes()
}
