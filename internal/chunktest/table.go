package chunktest

import (
	"bytes"
	"sort"

	"github.com/avast/apkres/internal/chunk"
)

const (
	SpecFlagPublic = 0x40000000

	typeFlagSparse   = 0x01
	entryFlagComplex = 0x0001
	packageNameUnits = 128
)

// Config is a 28 byte config record. Orientations above 3 are invalid.
func Config(lang string, orientation uint8) []byte {
	var b Buffer
	l := make([]byte, 2)
	copy(l, lang)
	b.U32(28).U16(0, 0).Raw(l).U8(0, 0)
	b.U8(orientation, 0).U16(0)
	b.U8(0, 0, 0, 0)
	b.U16(0, 0, 0, 0)
	return b.Bytes()
}

// Entry is a simple table entry holding one typed value.
func Entry(key uint32, typ uint8, data uint32) []byte {
	var b Buffer
	b.U16(8, 0).U32(key)
	b.U16(8).U8(0, typ).U32(data)
	return b.Bytes()
}

type BagItem struct {
	Name uint32
	Type uint8
	Data uint32
}

func BagEntry(key, parent uint32, items ...BagItem) []byte {
	var b Buffer
	b.U16(16, entryFlagComplex).U32(key)
	b.U32(parent, uint32(len(items)))
	for _, it := range items {
		b.U32(it.Name).U16(8).U8(0, it.Type).U32(it.Data)
	}
	return b.Bytes()
}

// TypeSpec marks every entry public.
func TypeSpec(id uint8, count int) []byte {
	var h, body Buffer
	h.U8(id, 0).U16(0).U32(uint32(count))
	for i := 0; i < count; i++ {
		body.U32(SpecFlagPublic)
	}
	return Chunk(chunk.TypeTableTypeSpec, h.Bytes(), body.Bytes())
}

// TypePadded lays out dense entries, nil ones marked absent, with pad bytes
// of garbage between the config and the offsets.
func TypePadded(id uint8, cfg []byte, pad int, entries ...[]byte) []byte {
	var offsets, data Buffer
	for _, e := range entries {
		if e == nil {
			offsets.I32(-1)
			continue
		}
		offsets.U32(uint32(data.Len()))
		data.Raw(e)
	}

	headerSize := chunk.HeaderSize + 12 + len(cfg) + pad
	var h Buffer
	h.U8(id, 0).U16(0)
	h.U32(uint32(len(entries)), uint32(headerSize+offsets.Len()))
	h.Raw(cfg, bytes.Repeat([]byte{0xee}, pad))

	var body Buffer
	body.Raw(offsets.Bytes(), data.Bytes())
	return Chunk(chunk.TypeTableType, h.Bytes(), body.Bytes())
}

func Type(id uint8, cfg []byte, entries ...[]byte) []byte {
	return TypePadded(id, cfg, 0, entries...)
}

// SparseType lays out entries by index.
func SparseType(id uint8, cfg []byte, entries map[uint16][]byte) []byte {
	indices := make([]int, 0, len(entries))
	for idx := range entries {
		indices = append(indices, int(idx))
	}
	sort.Ints(indices)

	var offsets, data Buffer
	for _, idx := range indices {
		offsets.U16(uint16(idx), uint16(data.Len()/4))
		data.Raw(entries[uint16(idx)])
	}

	headerSize := chunk.HeaderSize + 12 + len(cfg)
	var h Buffer
	h.U8(id, typeFlagSparse).U16(0)
	h.U32(uint32(len(entries)), uint32(headerSize+offsets.Len()))
	h.Raw(cfg)

	var body Buffer
	body.Raw(offsets.Bytes(), data.Bytes())
	return Chunk(chunk.TypeTableType, h.Bytes(), body.Bytes())
}

// Package uses the split header with a zero type id offset.
func Package(id uint32, name string, types, keys []string, chunks ...[]byte) []byte {
	var h Buffer
	h.U32(id).Raw(UTF16Name(name, packageNameUnits))
	h.U32(0, 0, 0, 0, 0)

	var body Buffer
	body.Raw(StringPool(false, types), StringPool(true, keys))
	body.Raw(chunks...)
	return Chunk(chunk.TypeTablePackage, h.Bytes(), body.Bytes())
}

func Table(strs []string, packages ...[]byte) []byte {
	var h, body Buffer
	h.U32(uint32(len(packages)))
	body.Raw(StringPool(true, strs)).Raw(packages...)
	return Chunk(chunk.TypeTable, h.Bytes(), body.Bytes())
}
