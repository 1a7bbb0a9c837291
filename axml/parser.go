// Package axml is a pull parser for Android binary XML documents.
//
// The parser is closed until the first successful call to Next and closes
// again on Close or on any failed Next. A closed parser answers every
// accessor with an empty value.
package axml

import (
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/pkg/errors"

	"github.com/avast/apkres/internal/chunk"
	"github.com/avast/apkres/internal/xmlenc"
	"github.com/avast/apkres/res"
	"github.com/avast/apkres/stringblock"
)

const (
	AndroidNS = "http://schemas.android.com/apk/res/android"
	ResAutoNS = "http://schemas.android.com/apk/res-auto"

	privatePackageID = 0x7f

	magicXML       = 0x00080003
	magicXMLBroken = 0x00080001

	attributeSize = 20
)

var (
	ErrNotOpened    = errors.New("parser is not opened")
	ErrNotStartTag  = errors.New("current event is not START_TAG")
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrUnexpectedEvent is returned by NextTag, NextText and Require.
	ErrUnexpectedEvent = errors.New("unexpected event")
)

type Event int

const (
	None Event = iota - 1
	StartDocument
	EndDocument
	StartTag
	EndTag
	Text
)

func (e Event) String() string {
	switch e {
	case StartDocument:
		return "START_DOCUMENT"
	case EndDocument:
		return "END_DOCUMENT"
	case StartTag:
		return "START_TAG"
	case EndTag:
		return "END_TAG"
	case Text:
		return "TEXT"
	case None:
		return "NONE"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// AttrDecoder resolves attribute names and values through a resource
// table. res.AttrDecoder is the table backed implementation.
type AttrDecoder interface {
	// DecodeManifestAttr returns the name of the resource with id id.
	DecodeManifestAttr(id uint32) (string, error)

	// Decode renders an attribute value. raw is the escaped original text,
	// nameID the resource id of the attribute name or 0.
	Decode(typ uint8, data uint32, raw string, nameID uint32) (string, error)
}

type attribute struct {
	ns   int
	name int
	raw  int
	typ  uint8
	data uint32
}

// Attribute is a resolved snapshot of one start tag attribute.
type Attribute struct {
	Namespace    string
	Prefix       string
	Name         string
	NameResource uint32
	ValueType    uint8
	ValueData    uint32
	Value        string
}

type Parser struct {
	Logger *log.Logger

	r           *chunk.Reader
	docEnd      int
	attrDecoder AttrDecoder
	firstErr    error

	operational   bool
	strings       *stringblock.StringBlock
	resourceIDs   []uint32
	ns            namespaceStack
	decreaseDepth bool

	event     Event
	line      int
	name      int
	namespace int
	attrs     []attribute
	idAttr    int
	classAttr int
	styleAttr int
}

// NewParser returns a parser over a whole binary XML document.
func NewParser(data []byte) *Parser {
	p := &Parser{}
	p.resetEvent()
	p.Open(data)
	return p
}

// Open closes the parser and points it at data. A nil data leaves it
// unopened.
func (p *Parser) Open(data []byte) {
	p.Close()
	if data != nil {
		p.r = chunk.NewReader(data)
	}
}

func (p *Parser) Close() {
	p.r = nil
	p.operational = false
	p.strings = nil
	p.resourceIDs = nil
	p.decreaseDepth = false
	p.ns.reset()
	p.resetEvent()
}

func (p *Parser) resetEvent() {
	p.event = None
	p.line = -1
	p.name = -1
	p.namespace = -1
	p.attrs = nil
	p.idAttr = -1
	p.classAttr = -1
	p.styleAttr = -1
}

func (p *Parser) SetAttrDecoder(d AttrDecoder) { p.attrDecoder = d }
func (p *Parser) AttrDecoder() AttrDecoder     { return p.attrDecoder }

// FirstError returns the first attribute decoding error. Those errors never
// interrupt parsing, the undecoded value is used instead.
func (p *Parser) FirstError() error { return p.firstErr }

func (p *Parser) setFirstError(err error) {
	if p.firstErr == nil {
		p.firstErr = err
	}
}

func (p *Parser) logf(format string, args ...any) {
	if p.Logger != nil {
		p.Logger.Printf(format, args...)
	}
}

// Next advances to the next event. Namespace declarations are tracked but
// never reported. Once END_DOCUMENT is reached it is returned forever.
func (p *Parser) Next() (Event, error) {
	if p.r == nil {
		return None, ErrNotOpened
	}
	if err := p.doNext(); err != nil {
		p.Close()
		return None, err
	}
	return p.event, nil
}

// NextTag skips one whitespace-only text and expects a tag.
func (p *Parser) NextTag() (Event, error) {
	ev, err := p.Next()
	if err != nil {
		return ev, err
	}
	if ev == Text && p.IsWhitespace() {
		if ev, err = p.Next(); err != nil {
			return ev, err
		}
	}
	if ev != StartTag && ev != EndTag {
		return ev, errors.Wrapf(ErrUnexpectedEvent, "expected start or end tag, got %s", ev)
	}
	return ev, nil
}

// NextText reads the text content of the current start tag, leaving the
// parser on its end tag.
func (p *Parser) NextText() (string, error) {
	if p.event != StartTag {
		return "", errors.Wrap(ErrUnexpectedEvent, "parser must be on START_TAG to read next text")
	}
	ev, err := p.Next()
	if err != nil {
		return "", err
	}
	switch ev {
	case Text:
		text := p.Text()
		if ev, err = p.Next(); err != nil {
			return "", err
		}
		if ev != EndTag {
			return "", errors.Wrap(ErrUnexpectedEvent, "event TEXT must be immediately followed by END_TAG")
		}
		return text, nil
	case EndTag:
		return "", nil
	}
	return "", errors.Wrapf(ErrUnexpectedEvent, "parser must be on START_TAG or TEXT to read text, got %s", ev)
}

// Require checks the current event. Empty namespace or name match anything.
func (p *Parser) Require(ev Event, namespace, name string) error {
	if ev != p.event || (namespace != "" && namespace != p.Namespace()) || (name != "" && name != p.Name()) {
		return errors.Wrapf(ErrUnexpectedEvent, "%s is expected", ev)
	}
	return nil
}

func (p *Parser) readDocument() error {
	h, err := p.r.Header()
	if err != nil {
		return errors.Wrap(err, "error reading document header")
	}
	if h.Magic() != magicXML && h.Magic() != magicXMLBroken {
		return errors.Wrapf(ErrInvalidChunk, "expected 0x%08x or 0x%08x, got 0x%08x", magicXML, magicXMLBroken, h.Magic())
	}

	// Producers are known to lie about the document size.
	p.docEnd = int(p.r.Size())
	if end := h.End(); end > h.HeaderEnd() && end < p.docEnd {
		p.docEnd = end
	}

	if err := p.r.SetPosition(h.HeaderEnd()); err != nil {
		return err
	}
	if p.strings, err = stringblock.Read(p.r); err != nil {
		return errors.Wrap(err, "error reading string pool")
	}
	p.strings.Logger = p.Logger

	p.ns.increaseDepth()
	p.operational = true
	return nil
}

func (p *Parser) doNext() error {
	if p.strings == nil {
		if err := p.readDocument(); err != nil {
			return err
		}
		p.event = StartDocument
		return nil
	}

	if p.event == EndDocument {
		return nil
	}

	for {
		if p.decreaseDepth {
			p.decreaseDepth = false
			p.ns.decreaseDepth()
		}

		if p.event == EndTag && p.ns.depth() == 1 && p.ns.currentCount() == 0 {
			p.event = EndDocument
			return nil
		}
		if p.r.Position()+chunk.HeaderSize > p.docEnd {
			p.event = EndDocument
			return nil
		}

		h, err := p.r.Header()
		if err != nil {
			return err
		}
		if h.Size < chunk.HeaderSize || h.HeaderSize < chunk.HeaderSize || h.End() > p.docEnd {
			return errors.Wrapf(ErrInvalidChunk, "malformed chunk 0x%04x at 0x%x (size %d)", h.Type, h.Start, h.Size)
		}

		event, err := p.readNode(h)
		if err != nil {
			return errors.Wrapf(err, "chunk 0x%04x at 0x%x", h.Type, h.Start)
		}
		if err := p.r.SetPosition(h.End()); err != nil {
			return err
		}
		if event != None {
			p.event = event
			return nil
		}
	}
}

// readNode consumes one chunk, returning the event it produces or None.
func (p *Parser) readNode(h chunk.Header) (Event, error) {
	if h.Type == chunk.TypeXMLResourceMap {
		if (h.Size-uint32(h.HeaderSize))%4 != 0 {
			return None, errors.Wrapf(ErrInvalidChunk, "invalid resource ids size (%d)", h.Size)
		}
		if err := p.r.SetPosition(h.HeaderEnd()); err != nil {
			return None, err
		}
		for i := 0; i < int(h.Size-uint32(h.HeaderSize))/4; i++ {
			id, err := p.r.Uint32()
			if err != nil {
				return None, err
			}
			p.resourceIDs = append(p.resourceIDs, id)
		}
		return None, nil
	}

	if h.Type < chunk.TypeXMLFirst || h.Type > chunk.TypeXMLLast {
		return None, errors.Wrapf(ErrInvalidChunk, "invalid chunk type (0x%04x)", h.Type)
	}

	var line, comment uint32
	if err := p.r.Fields(&line, &comment); err != nil {
		return None, err
	}
	if err := p.r.SetPosition(h.HeaderEnd()); err != nil {
		return None, err
	}

	switch h.Type {
	case chunk.TypeXMLStartNamespace, chunk.TypeXMLEndNamespace:
		var prefix, uri uint32
		if err := p.r.Fields(&prefix, &uri); err != nil {
			return None, err
		}
		if h.Type == chunk.TypeXMLStartNamespace {
			p.ns.push(index(prefix), index(uri))
		} else {
			p.ns.pop()
		}
		return None, nil

	case chunk.TypeXMLStartElement:
		p.resetEvent()
		p.line = int(line)
		if err := p.readStartTag(h); err != nil {
			return None, err
		}
		p.ns.increaseDepth()
		return StartTag, nil

	case chunk.TypeXMLEndElement:
		var ns, name uint32
		if err := p.r.Fields(&ns, &name); err != nil {
			return None, err
		}
		p.resetEvent()
		p.line = int(line)
		p.namespace, p.name = index(ns), index(name)
		p.decreaseDepth = true
		return EndTag, nil

	case chunk.TypeXMLCData:
		name, err := p.r.Uint32()
		if err != nil {
			return None, err
		}
		p.resetEvent()
		p.line = int(line)
		p.name = index(name)
		return Text, nil
	}

	p.logf("Skipping unknown XML chunk 0x%04x at 0x%x", h.Type, h.Start)
	return None, nil
}

func (p *Parser) readStartTag(h chunk.Header) error {
	var ns, name uint32
	var attrStart, attrSize, attrCount, idIndex, classIndex, styleIndex uint16
	if err := p.r.Fields(&ns, &name, &attrStart, &attrSize, &attrCount, &idIndex, &classIndex, &styleIndex); err != nil {
		return err
	}
	p.namespace, p.name = index(ns), index(name)
	p.idAttr = int(idIndex) - 1
	p.classAttr = int(classIndex) - 1
	p.styleAttr = int(styleIndex) - 1

	if attrCount > 0 && attrSize < attributeSize {
		return errors.Wrapf(ErrInvalidChunk, "attribute size %d", attrSize)
	}

	base := h.HeaderEnd() + int(attrStart)
	p.attrs = make([]attribute, attrCount)
	for i := range p.attrs {
		if err := p.r.SetPosition(base + i*int(attrSize)); err != nil {
			return err
		}
		var attrNs, attrName, raw, data uint32
		var size uint16
		var res0, typ uint8
		if err := p.r.Fields(&attrNs, &attrName, &raw, &size, &res0, &typ, &data); err != nil {
			return errors.Wrapf(err, "attribute %d", i)
		}
		p.attrs[i] = attribute{ns: index(attrNs), name: index(attrName), raw: index(raw), typ: typ, data: data}
	}
	return nil
}

// index maps the 0xffffffff "no string" marker to -1.
func index(v uint32) int {
	return int(int32(v))
}

func (p *Parser) str(idx int) string {
	if p.strings == nil || idx < 0 {
		return ""
	}
	s, _ := p.strings.String(idx)
	return s
}

// Depth is 0 outside the root element.
func (p *Parser) Depth() int          { return p.ns.depth() - 1 }
func (p *Parser) EventType() Event    { return p.event }
func (p *Parser) LineNumber() int     { return p.line }
func (p *Parser) IsOperational() bool { return p.operational }

func (p *Parser) Name() string {
	if p.name == -1 || (p.event != StartTag && p.event != EndTag) {
		return ""
	}
	return p.str(p.name)
}

func (p *Parser) Text() string {
	if p.name == -1 || p.event != Text {
		return ""
	}
	return p.str(p.name)
}

func (p *Parser) IsWhitespace() bool {
	return p.event == Text && strings.TrimSpace(p.Text()) == ""
}

func (p *Parser) Namespace() string {
	return p.str(p.namespace)
}

func (p *Parser) Prefix() string {
	if p.namespace == -1 {
		return ""
	}
	return p.str(p.ns.findPrefix(p.namespace))
}

// NamespaceCount returns the number of namespaces declared up to depth.
// The declarations of the element at depth d are at positions
// [NamespaceCount(d-1), NamespaceCount(d)).
func (p *Parser) NamespaceCount(depth int) int {
	return p.ns.accumulatedCount(depth)
}

func (p *Parser) NamespacePrefix(pos int) string {
	d, _ := p.ns.get(pos)
	return p.str(d.prefix)
}

func (p *Parser) NamespaceURI(pos int) string {
	d, _ := p.ns.get(pos)
	return p.str(d.uri)
}

func (p *Parser) special(idx int) *attribute {
	if p.event != StartTag || idx < 0 || idx >= len(p.attrs) {
		return nil
	}
	return &p.attrs[idx]
}

func (p *Parser) ClassAttribute() string {
	if a := p.special(p.classAttr); a != nil {
		return p.str(a.raw)
	}
	return ""
}

func (p *Parser) IDAttribute() string {
	if a := p.special(p.idAttr); a != nil {
		return p.str(a.raw)
	}
	return ""
}

func (p *Parser) IDAttributeResourceValue(def uint32) uint32 {
	if a := p.special(p.idAttr); a != nil && a.typ == res.TypeReference {
		return a.data
	}
	return def
}

func (p *Parser) StyleAttribute() uint32 {
	if a := p.special(p.styleAttr); a != nil {
		return a.data
	}
	return 0
}

// AttributeCount is -1 unless the parser is on a start tag.
func (p *Parser) AttributeCount() int {
	if p.event != StartTag {
		return -1
	}
	return len(p.attrs)
}

func (p *Parser) attribute(i int) (*attribute, error) {
	if p.event != StartTag {
		return nil, ErrNotStartTag
	}
	if i < 0 || i >= len(p.attrs) {
		return nil, errors.Errorf("invalid attribute index (%d)", i)
	}
	return &p.attrs[i], nil
}

// Attribute resolves every property of attribute i.
func (p *Parser) Attribute(i int) (Attribute, error) {
	a, err := p.attribute(i)
	if err != nil {
		return Attribute{}, err
	}
	return Attribute{
		Namespace:    p.AttributeNamespace(i),
		Prefix:       p.AttributePrefix(i),
		Name:         p.AttributeName(i),
		NameResource: p.nameResource(a),
		ValueType:    a.typ,
		ValueData:    a.data,
		Value:        p.AttributeValue(i),
	}, nil
}

func (p *Parser) nameResource(a *attribute) uint32 {
	if a.name < 0 || a.name >= len(p.resourceIDs) {
		return 0
	}
	return p.resourceIDs[a.name]
}

func (p *Parser) AttributeNameResource(i int) uint32 {
	a, err := p.attribute(i)
	if err != nil {
		return 0
	}
	return p.nameResource(a)
}

// AttributeNamespace returns the namespace URI of attribute i. Minifiers
// strip namespace strings; those are guessed from the attribute's resource
// id.
func (p *Parser) AttributeNamespace(i int) string {
	a, err := p.attribute(i)
	if err != nil || a.ns == -1 {
		return ""
	}
	if value := p.str(a.ns); value != "" {
		return value
	}
	if p.nameResource(a)>>24 == privatePackageID {
		return p.nonDefaultNamespaceURI()
	}
	return AndroidNS
}

// nonDefaultNamespaceURI picks the innermost declared namespace other than
// the android one.
func (p *Parser) nonDefaultNamespaceURI() string {
	for i := len(p.ns.decls) - 1; i >= 0; i-- {
		if uri := p.str(p.ns.decls[i].uri); uri != "" && uri != AndroidNS {
			return uri
		}
	}
	return ResAutoNS
}

func (p *Parser) AttributePrefix(i int) string {
	a, err := p.attribute(i)
	if err != nil || a.ns == -1 {
		return ""
	}
	return p.str(p.ns.findPrefix(a.ns))
}

// AttributeName returns the name of attribute i. Stripped names, and names
// outside the android namespace that were renamed, are recovered from the
// attribute's resource id.
func (p *Parser) AttributeName(i int) string {
	a, err := p.attribute(i)
	if err != nil || a.name == -1 {
		return ""
	}
	value := p.str(a.name)
	if p.attrDecoder == nil {
		return value
	}

	if value == "" {
		if decoded, err := p.attrDecoder.DecodeManifestAttr(p.nameResource(a)); err == nil {
			value = decoded
		}
	} else if p.AttributeNamespace(i) != AndroidNS {
		if decoded, err := p.attrDecoder.DecodeManifestAttr(p.nameResource(a)); err == nil && decoded != "" {
			value = decoded
		}
	}
	return value
}

func (p *Parser) AttributeValueType(i int) uint8 {
	if a, err := p.attribute(i); err == nil {
		return a.typ
	}
	return res.TypeNull
}

func (p *Parser) AttributeValueData(i int) uint32 {
	if a, err := p.attribute(i); err == nil {
		return a.data
	}
	return 0
}

// AttributeRawValue returns the unescaped pool string of attribute i, or
// "" when it has none.
func (p *Parser) AttributeRawValue(i int) string {
	a, err := p.attribute(i)
	if err != nil {
		return ""
	}
	if a.raw != -1 {
		return p.str(a.raw)
	}
	if a.typ == res.TypeString {
		return p.str(int(a.data))
	}
	return ""
}

// AttributeValue renders attribute i through the attr decoder in the
// escaped form of res XML attributes. Decoding errors are remembered for
// FirstError and the plain typed value is returned instead.
func (p *Parser) AttributeValue(i int) string {
	a, err := p.attribute(i)
	if err != nil {
		return ""
	}

	if p.attrDecoder != nil {
		value, err := p.decodeValue(a)
		if err == nil {
			return value
		}
		p.setFirstError(err)
		p.logf("Could not decode attr value, using undecoded value instead: ns=%s, name=%s, value=0x%08x: %v",
			p.AttributePrefix(i), p.AttributeName(i), a.data, err)
	}

	if a.typ == res.TypeString {
		return p.str(a.raw)
	}
	s, _ := res.CoerceToString(a.typ, a.data)
	return s
}

func isReference(typ uint8) bool {
	switch typ {
	case res.TypeReference, res.TypeAttribute, res.TypeDynamicReference, res.TypeDynamicAttribute:
		return true
	}
	return false
}

func (p *Parser) decodeValue(a *attribute) (string, error) {
	var raw string
	if a.raw != -1 {
		raw = xmlenc.EscapeXMLChars(p.str(a.raw))
	}

	// The raw text of references keeps the original name of renamed
	// resources, "@type/name" keeps its type.
	if raw != "" && isReference(a.typ) {
		if renamed, err := p.attrDecoder.DecodeManifestAttr(a.data); err == nil && renamed != "" {
			if slash := strings.LastIndexByte(raw, '/'); slash != -1 {
				raw = raw[:slash] + "/" + renamed
			} else {
				raw = renamed
			}
		}
	}
	return p.attrDecoder.Decode(a.typ, a.data, raw, p.nameResource(a))
}

func (p *Parser) AttributeIntValue(i int, def int32) int32 {
	a, err := p.attribute(i)
	if err != nil || a.typ < res.TypeFirstInt || a.typ > res.TypeLastInt {
		return def
	}
	return int32(a.data)
}

func (p *Parser) AttributeBoolValue(i int, def bool) bool {
	d := int32(0)
	if def {
		d = 1
	}
	return p.AttributeIntValue(i, d) != 0
}

func (p *Parser) AttributeFloatValue(i int, def float32) float32 {
	a, err := p.attribute(i)
	if err != nil || a.typ != res.TypeFloat {
		return def
	}
	return math.Float32frombits(a.data)
}

func (p *Parser) AttributeResourceValue(i int, def uint32) uint32 {
	a, err := p.attribute(i)
	if err != nil || a.typ != res.TypeReference {
		return def
	}
	return a.data
}

// FindAttribute returns the index of the named attribute, or -1. An empty
// or unknown namespace matches any.
func (p *Parser) FindAttribute(namespace, name string) int {
	if p.strings == nil || p.event != StartTag || name == "" {
		return -1
	}
	nameIdx := p.strings.Find(name)
	if nameIdx == -1 {
		return -1
	}
	uri := -1
	if namespace != "" {
		uri = p.strings.Find(namespace)
	}
	for i, a := range p.attrs {
		if a.name == nameIdx && (uri == -1 || uri == a.ns) {
			return i
		}
	}
	return -1
}

func (p *Parser) AttributeValueByName(namespace, name string) string {
	if i := p.FindAttribute(namespace, name); i != -1 {
		return p.AttributeValue(i)
	}
	return ""
}

func (p *Parser) AttributeIntValueByName(namespace, name string, def int32) int32 {
	if i := p.FindAttribute(namespace, name); i != -1 {
		return p.AttributeIntValue(i, def)
	}
	return def
}

func (p *Parser) AttributeBoolValueByName(namespace, name string, def bool) bool {
	if i := p.FindAttribute(namespace, name); i != -1 {
		return p.AttributeBoolValue(i, def)
	}
	return def
}

func (p *Parser) AttributeFloatValueByName(namespace, name string, def float32) float32 {
	if i := p.FindAttribute(namespace, name); i != -1 {
		return p.AttributeFloatValue(i, def)
	}
	return def
}

func (p *Parser) AttributeResourceValueByName(namespace, name string, def uint32) uint32 {
	if i := p.FindAttribute(namespace, name); i != -1 {
		return p.AttributeResourceValue(i, def)
	}
	return def
}
