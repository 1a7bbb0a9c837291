package axml

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avast/apkres/internal/chunk"
	"github.com/avast/apkres/internal/chunktest"
	"github.com/avast/apkres/res"
)

func next(t *testing.T, p *Parser, expected Event) {
	ev, err := p.Next()
	require.NoError(t, err)
	require.Equal(t, expected, ev)
}

type stubDecoder struct {
	names map[uint32]string
	err   error
}

func (d *stubDecoder) DecodeManifestAttr(id uint32) (string, error) {
	if name, prs := d.names[id]; prs {
		return name, nil
	}
	return "", errors.Errorf("undefined 0x%08x", id)
}

func (d *stubDecoder) Decode(typ uint8, data uint32, raw string, nameID uint32) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return fmt.Sprintf("%s|0x%x", raw, nameID), nil
}

func TestBooleanAttribute(t *testing.T) {
	data := chunktest.Document([]string{"enabled", "item"}, nil,
		chunktest.StartTag(3, chunktest.NoIndex, 1, chunktest.Attr{NS: chunktest.NoIndex, Name: 0, Raw: chunktest.NoIndex, Type: res.TypeIntBoolean, Data: 1}),
		chunktest.EndTag(4, chunktest.NoIndex, 1),
	)
	p := NewParser(data)

	next(t, p, StartDocument)
	assert.Equal(t, 0, p.Depth())

	next(t, p, StartTag)
	assert.Equal(t, "item", p.Name())
	assert.Equal(t, 3, p.LineNumber())
	assert.Equal(t, 1, p.Depth())
	assert.Equal(t, 1, p.AttributeCount())
	assert.Equal(t, "enabled", p.AttributeName(0))
	assert.True(t, p.AttributeBoolValue(0, false))
	assert.True(t, p.AttributeBoolValueByName("", "enabled", false))
	assert.Equal(t, "true", p.AttributeValue(0))
	assert.Equal(t, int32(7), p.AttributeIntValueByName("", "missing", 7))

	next(t, p, EndTag)
	assert.Equal(t, "item", p.Name())
	assert.Equal(t, -1, p.AttributeCount())

	next(t, p, EndDocument)
	next(t, p, EndDocument)
}

func TestNamespaces(t *testing.T) {
	strs := []string{"android", AndroidNS, "manifest", "package", "com.example", "application", "label"}
	data := chunktest.Document(strs, nil,
		chunktest.StartNamespace(0, 1),
		chunktest.StartTag(2, chunktest.NoIndex, 2, chunktest.Attr{NS: chunktest.NoIndex, Name: 3, Raw: 4, Type: res.TypeString, Data: 4}),
		chunktest.StartTag(3, chunktest.NoIndex, 5, chunktest.Attr{NS: 1, Name: 6, Raw: chunktest.NoIndex, Type: res.TypeIntDec, Data: 5}),
		chunktest.EndTag(4, chunktest.NoIndex, 5),
		chunktest.EndTag(5, chunktest.NoIndex, 2),
		chunktest.EndNamespace(0, 1),
	)
	p := NewParser(data)

	next(t, p, StartDocument)
	next(t, p, StartTag)
	assert.Equal(t, "manifest", p.Name())
	assert.Equal(t, 1, p.Depth())
	assert.Equal(t, 0, p.NamespaceCount(0))
	assert.Equal(t, 1, p.NamespaceCount(1))
	assert.Equal(t, "android", p.NamespacePrefix(0))
	assert.Equal(t, AndroidNS, p.NamespaceURI(0))
	assert.Equal(t, "", p.AttributeNamespace(0))
	assert.Equal(t, "com.example", p.AttributeValue(0))

	next(t, p, StartTag)
	assert.Equal(t, 2, p.Depth())
	assert.Equal(t, 1, p.NamespaceCount(2))
	assert.Equal(t, AndroidNS, p.AttributeNamespace(0))
	assert.Equal(t, "android", p.AttributePrefix(0))
	assert.Equal(t, "label", p.AttributeName(0))
	assert.Equal(t, "5", p.AttributeValue(0))
	assert.Equal(t, int32(5), p.AttributeIntValueByName(AndroidNS, "label", 0))

	next(t, p, EndTag)
	next(t, p, EndTag)
	assert.Equal(t, "manifest", p.Name())
	next(t, p, EndDocument)
}

func TestStrippedNamespacesAndNames(t *testing.T) {
	strs := []string{"", "", "bogus", "app", "http://schemas.android.com/apk/res/com.example", "view"}
	resIDs := []uint32{0x0101000f, 0x7f010000, 0x7f010001}
	data := chunktest.Document(strs, resIDs,
		chunktest.StartNamespace(3, 4),
		chunktest.StartTag(1, chunktest.NoIndex, 5,
			chunktest.Attr{NS: 0, Name: 0, Raw: chunktest.NoIndex, Type: res.TypeIntDec, Data: 1},
			chunktest.Attr{NS: 0, Name: 1, Raw: chunktest.NoIndex, Type: res.TypeIntDec, Data: 2},
			chunktest.Attr{NS: 4, Name: 2, Raw: chunktest.NoIndex, Type: res.TypeIntDec, Data: 3},
		),
		chunktest.EndTag(1, chunktest.NoIndex, 5),
		chunktest.EndNamespace(3, 4),
	)
	p := NewParser(data)
	p.SetAttrDecoder(&stubDecoder{names: map[uint32]string{
		0x0101000f: "label",
		0x7f010000: "fancy",
		0x7f010001: "custom",
	}})

	next(t, p, StartDocument)
	next(t, p, StartTag)

	assert.Equal(t, uint32(0x0101000f), p.AttributeNameResource(0))
	assert.Equal(t, AndroidNS, p.AttributeNamespace(0))
	assert.Equal(t, "label", p.AttributeName(0))

	assert.Equal(t, strs[4], p.AttributeNamespace(1))
	assert.Equal(t, "fancy", p.AttributeName(1))

	assert.Equal(t, "custom", p.AttributeName(2), "renamed outside the android namespace")
	assert.Equal(t, "app", p.AttributePrefix(2))
}

func TestPrivateAttributeWithoutNamespaces(t *testing.T) {
	data := chunktest.Document([]string{"", "view"}, []uint32{0x7f010000},
		chunktest.StartTag(1, chunktest.NoIndex, 1, chunktest.Attr{NS: 0, Name: 0, Raw: chunktest.NoIndex, Type: res.TypeIntDec, Data: 1}),
		chunktest.EndTag(1, chunktest.NoIndex, 1),
	)
	p := NewParser(data)
	next(t, p, StartDocument)
	next(t, p, StartTag)
	assert.Equal(t, ResAutoNS, p.AttributeNamespace(0))
	assert.Equal(t, "", p.AttributeName(0), "no decoder to recover the name")
}

func TestAttributeValueDecoding(t *testing.T) {
	strs := []string{"text", "icon", "view", "@drawable/a<b", "hi & bye"}
	data := chunktest.Document(strs, []uint32{0x01010014, 0x01010002},
		chunktest.StartTag(1, chunktest.NoIndex, 2,
			chunktest.Attr{NS: chunktest.NoIndex, Name: 1, Raw: 3, Type: res.TypeReference, Data: 0x7f020000},
			chunktest.Attr{NS: chunktest.NoIndex, Name: 0, Raw: 4, Type: res.TypeString, Data: 4},
		),
		chunktest.EndTag(1, chunktest.NoIndex, 2),
	)

	p := NewParser(data)
	p.SetAttrDecoder(&stubDecoder{names: map[uint32]string{0x7f020000: "logo"}})
	next(t, p, StartDocument)
	next(t, p, StartTag)
	assert.Equal(t, "@drawable/logo|0x1010002", p.AttributeValue(0))
	assert.Equal(t, "hi &amp; bye|0x1010014", p.AttributeValue(1))
	assert.Equal(t, "@drawable/a<b", p.AttributeRawValue(0))
	assert.Equal(t, "hi & bye", p.AttributeRawValue(1))
	assert.NoError(t, p.FirstError())

	a, err := p.Attribute(0)
	require.NoError(t, err)
	assert.Equal(t, Attribute{
		Namespace:    "",
		Name:         "icon",
		NameResource: 0x01010002,
		ValueType:    res.TypeReference,
		ValueData:    0x7f020000,
		Value:        "@drawable/logo|0x1010002",
	}, a)
}

func TestFirstError(t *testing.T) {
	boom := errors.New("boom")
	data := chunktest.Document([]string{"size", "view", "name", "raw"}, nil,
		chunktest.StartTag(1, chunktest.NoIndex, 1,
			chunktest.Attr{NS: chunktest.NoIndex, Name: 0, Raw: chunktest.NoIndex, Type: res.TypeIntDec, Data: 5},
			chunktest.Attr{NS: chunktest.NoIndex, Name: 2, Raw: 3, Type: res.TypeString, Data: 3},
		),
		chunktest.EndTag(1, chunktest.NoIndex, 1),
	)
	p := NewParser(data)
	decoder := &stubDecoder{err: boom}
	p.SetAttrDecoder(decoder)

	next(t, p, StartDocument)
	next(t, p, StartTag)
	assert.Equal(t, "5", p.AttributeValue(0))
	decoder.err = errors.New("second")
	assert.Equal(t, "raw", p.AttributeValue(1))
	assert.Same(t, boom, p.FirstError())

	next(t, p, EndTag)
	next(t, p, EndDocument)
}

func TestSpecialAttributes(t *testing.T) {
	strs := []string{"id", "class", "style", "view", "@+id/x", "Foo"}
	data := chunktest.Document(strs, nil,
		chunktest.StartTagSpecial(1, chunktest.NoIndex, 3, 1, 2, 3,
			chunktest.Attr{NS: chunktest.NoIndex, Name: 0, Raw: 4, Type: res.TypeReference, Data: 0x7f030000},
			chunktest.Attr{NS: chunktest.NoIndex, Name: 1, Raw: 5, Type: res.TypeString, Data: 5},
			chunktest.Attr{NS: chunktest.NoIndex, Name: 2, Raw: chunktest.NoIndex, Type: res.TypeReference, Data: 0x7f040000},
		),
		chunktest.EndTag(1, chunktest.NoIndex, 3),
	)
	p := NewParser(data)
	next(t, p, StartDocument)
	assert.Equal(t, "", p.IDAttribute())

	next(t, p, StartTag)
	assert.Equal(t, "@+id/x", p.IDAttribute())
	assert.Equal(t, uint32(0x7f030000), p.IDAttributeResourceValue(0))
	assert.Equal(t, "Foo", p.ClassAttribute())
	assert.Equal(t, uint32(0x7f040000), p.StyleAttribute())
	assert.Equal(t, uint32(0x7f040000), p.AttributeResourceValue(2, 0))
	assert.Equal(t, uint32(9), p.AttributeResourceValue(1, 9))
	assert.Equal(t, float32(2.5), p.AttributeFloatValue(0, 2.5))
	assert.Equal(t, int32(-1), p.AttributeIntValue(0, -1))

	_, err := p.Attribute(5)
	assert.Error(t, err)

	next(t, p, EndTag)
	_, err = p.Attribute(0)
	assert.ErrorIs(t, err, ErrNotStartTag)
	assert.Equal(t, "", p.AttributeName(0))
}

func TestNextTextAndRequire(t *testing.T) {
	data := chunktest.Document([]string{"a", "hi", "b", "  "}, nil,
		chunktest.StartTag(1, chunktest.NoIndex, 0),
		chunktest.Text(1, 1),
		chunktest.EndTag(1, chunktest.NoIndex, 0),
	)
	p := NewParser(data)
	next(t, p, StartDocument)

	ev, err := p.NextTag()
	require.NoError(t, err)
	assert.Equal(t, StartTag, ev)
	assert.NoError(t, p.Require(StartTag, "", "a"))
	assert.ErrorIs(t, p.Require(StartTag, "", "b"), ErrUnexpectedEvent)

	s, err := p.NextText()
	require.NoError(t, err)
	assert.Equal(t, "hi", s)
	assert.Equal(t, EndTag, p.EventType())

	_, err = p.NextText()
	assert.ErrorIs(t, err, ErrUnexpectedEvent)
}

func TestNextTagSkipsWhitespace(t *testing.T) {
	data := chunktest.Document([]string{"a", "b", "  "}, nil,
		chunktest.StartTag(1, chunktest.NoIndex, 0),
		chunktest.Text(1, 2),
		chunktest.StartTag(2, chunktest.NoIndex, 1),
		chunktest.EndTag(2, chunktest.NoIndex, 1),
		chunktest.EndTag(3, chunktest.NoIndex, 0),
	)
	p := NewParser(data)
	next(t, p, StartDocument)
	next(t, p, StartTag)

	ev, err := p.NextTag()
	require.NoError(t, err)
	assert.Equal(t, StartTag, ev)
	assert.Equal(t, "b", p.Name())
}

func TestClosedParser(t *testing.T) {
	p := NewParser(nil)
	_, err := p.Next()
	assert.ErrorIs(t, err, ErrNotOpened)
	assert.Equal(t, None, p.EventType())
	assert.Equal(t, -1, p.Depth())
	assert.Equal(t, -1, p.AttributeCount())
	assert.Equal(t, "", p.Name())
	assert.Equal(t, "", p.Text())
	assert.Equal(t, 0, p.NamespaceCount(3))
	assert.False(t, p.IsOperational())

	p.Open(chunktest.StringPool(true, []string{"x"}))
	_, err = p.Next()
	assert.ErrorIs(t, err, ErrInvalidChunk)
	_, err = p.Next()
	assert.ErrorIs(t, err, ErrNotOpened, "a failed Next closes the parser")
}

func TestInvalidNodeChunk(t *testing.T) {
	data := chunktest.Document([]string{"a"}, nil,
		chunktest.Chunk(chunk.TypeTable, nil, make([]byte, 4)),
	)
	p := NewParser(data)
	next(t, p, StartDocument)
	assert.True(t, p.IsOperational())

	_, err := p.Next()
	assert.ErrorIs(t, err, ErrInvalidChunk)
	assert.False(t, p.IsOperational())
}

func TestBrokenMagicIsAccepted(t *testing.T) {
	data := chunktest.Document([]string{"a"}, nil, chunktest.StartTag(1, chunktest.NoIndex, 0), chunktest.EndTag(1, chunktest.NoIndex, 0))
	data[0] = 0x01

	p := NewParser(data)
	next(t, p, StartDocument)
	next(t, p, StartTag)
	next(t, p, EndTag)
	next(t, p, EndDocument)
}
