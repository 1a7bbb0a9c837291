package chunktest

import (
	"github.com/avast/apkres/internal/chunk"
)

// NoIndex marks an absent string reference.
const NoIndex = 0xffffffff

type Attr struct {
	NS, Name, Raw uint32
	Type          uint8
	Data          uint32
}

// Document is a binary XML document. The resource map is left out when
// resIDs is empty.
func Document(strs []string, resIDs []uint32, nodes ...[]byte) []byte {
	var body Buffer
	body.Raw(StringPool(false, strs))
	if len(resIDs) > 0 {
		var ids Buffer
		ids.U32(resIDs...)
		body.Raw(Chunk(chunk.TypeXMLResourceMap, nil, ids.Bytes()))
	}
	body.Raw(nodes...)
	return Chunk(chunk.TypeXML, nil, body.Bytes())
}

func node(typ uint16, line uint32, ext []byte) []byte {
	var h Buffer
	h.U32(line, NoIndex)
	return Chunk(typ, h.Bytes(), ext)
}

func StartNamespace(prefix, uri uint32) []byte {
	var b Buffer
	b.U32(prefix, uri)
	return node(chunk.TypeXMLStartNamespace, 1, b.Bytes())
}

func EndNamespace(prefix, uri uint32) []byte {
	var b Buffer
	b.U32(prefix, uri)
	return node(chunk.TypeXMLEndNamespace, 1, b.Bytes())
}

// StartTagSpecial takes the 1-based indexes of the id, class and style
// attributes, 0 for none.
func StartTagSpecial(line, ns, name uint32, id, class, style uint16, attrs ...Attr) []byte {
	var b Buffer
	b.U32(ns, name)
	b.U16(20, 20, uint16(len(attrs)), id, class, style)
	for _, a := range attrs {
		b.U32(a.NS, a.Name, a.Raw).U16(8).U8(0, a.Type).U32(a.Data)
	}
	return node(chunk.TypeXMLStartElement, line, b.Bytes())
}

func StartTag(line, ns, name uint32, attrs ...Attr) []byte {
	return StartTagSpecial(line, ns, name, 0, 0, 0, attrs...)
}

func EndTag(line, ns, name uint32) []byte {
	var b Buffer
	b.U32(ns, name)
	return node(chunk.TypeXMLEndElement, line, b.Bytes())
}

func Text(line, idx uint32) []byte {
	var b Buffer
	b.U32(idx).U32(0, 0)
	return node(chunk.TypeXMLCData, line, b.Bytes())
}
