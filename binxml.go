package apkres

import (
	"bytes"
	"encoding/xml"
	"log"

	"github.com/pkg/errors"

	"github.com/avast/apkres/axml"
	"github.com/avast/apkres/res"
)

// ManifestEncoder receives the tokens of a rendered document. *xml.Encoder
// implements it.
type ManifestEncoder interface {
	EncodeToken(t xml.Token) error
	Flush() error
}

// Some APKs carry the manifest as plain text, which Android refuses.
var ErrPlainTextManifest = errors.New("xml is in plaintext, binary form expected")

var plainTextPrefixes = [][]byte{[]byte("<?xml "), []byte("<manif")}

// ParseXml renders a binary XML document into enc. Attribute values are
// resolved through decoder, which may be nil.
func ParseXml(data []byte, enc ManifestEncoder, decoder axml.AttrDecoder) error {
	return parseXml(data, enc, decoder, nil)
}

func parseXml(data []byte, enc ManifestEncoder, decoder axml.AttrDecoder, logger *log.Logger) error {
	for _, prefix := range plainTextPrefixes {
		if bytes.HasPrefix(data, prefix) {
			return ErrPlainTextManifest
		}
	}

	p := axml.NewParser(data)
	p.Logger = logger
	if decoder != nil {
		p.SetAttrDecoder(decoder)
	}
	defer p.Close()

	for {
		ev, err := p.Next()
		if err != nil {
			if ferr := enc.Flush(); ferr != nil {
				return errors.Wrapf(ferr, "failed to flush after parse error: %v", err)
			}
			return errors.Wrap(err, "failed to parse binary xml")
		}

		switch ev {
		case axml.StartTag:
			err = enc.EncodeToken(startElement(p))
		case axml.EndTag:
			err = enc.EncodeToken(xml.EndElement{Name: xml.Name{Space: p.Namespace(), Local: p.Name()}})
		case axml.Text:
			err = enc.EncodeToken(xml.CharData(p.Text()))
		case axml.EndDocument:
			return enc.Flush()
		}
		if err != nil {
			return errors.Wrapf(err, "line %d", p.LineNumber())
		}
	}
}

// startElement leaves namespace declarations to the encoder, which derives
// prefixes from the attribute namespace URIs. The encoder escapes values
// itself, so string attributes are passed unescaped.
func startElement(p *axml.Parser) xml.StartElement {
	tok := xml.StartElement{
		Name: xml.Name{Space: p.Namespace(), Local: p.Name()},
		Attr: make([]xml.Attr, 0, p.AttributeCount()),
	}
	for i := 0; i < p.AttributeCount(); i++ {
		value := p.AttributeRawValue(i)
		if p.AttributeValueType(i) != res.TypeString {
			value = p.AttributeValue(i)
		}
		tok.Attr = append(tok.Attr, xml.Attr{
			Name:  xml.Name{Space: p.AttributeNamespace(i), Local: p.AttributeName(i)},
			Value: value,
		})
	}
	return tok
}
