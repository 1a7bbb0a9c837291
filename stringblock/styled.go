package stringblock

import (
	"log"
	"strings"
	"unicode/utf16"

	"github.com/avast/apkres/internal/xmlenc"
)

// Attr is one "key=value" part of a span tag.
type Attr struct {
	Key   string
	Value string
}

// Span marks text[First:Last+1] with a tag of the form "name;attr=val;...".
// Offsets count UTF-16 units.
type Span struct {
	Tag   string
	First int
	Last  int
}

func NewSpan(tag string, first, last int) Span {
	return Span{Tag: tag, First: first, Last: last}
}

func (s Span) Name() string {
	if idx := strings.IndexByte(s.Tag, ';'); idx != -1 {
		return s.Tag[:idx]
	}
	return s.Tag
}

func (s Span) Attributes() []Attr {
	idx := strings.IndexByte(s.Tag, ';')
	if idx == -1 {
		return nil
	}

	var res []Attr
	for _, part := range strings.Split(strings.TrimSuffix(s.Tag[idx+1:], ";"), ";") {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		attr := Attr{Key: kv[0]}
		if len(kv) == 2 {
			attr.Value = kv[1]
		}
		res = append(res, attr)
	}
	return res
}

// Less orders spans by start ascending, end descending, then longer tags first.
func (s Span) Less(o Span) bool {
	if s.First != o.First {
		return s.First < o.First
	}
	if s.Last != o.Last {
		return s.Last > o.Last
	}
	if len(s.Tag) != len(o.Tag) {
		return len(s.Tag) > len(o.Tag)
	}
	return s.Tag > o.Tag
}

// StyledString is text with sorted spans. String renders the spans as nested
// inline tags over the escaped text.
type StyledString struct {
	Text   string
	Spans  []Span
	Logger *log.Logger
}

type styledDecoder struct {
	text       []uint16
	out        strings.Builder
	lastOffset int
	spans      []Span
	next       int
	logger     *log.Logger
}

func (s StyledString) String() string {
	d := styledDecoder{
		text:   utf16.Encode([]rune(s.Text)),
		spans:  s.Spans,
		logger: s.Logger,
	}
	d.out.Grow(len(s.Text) * 2)

	for d.next < len(d.spans) {
		d.decodeIterate()
	}

	if d.lastOffset < len(d.text) {
		d.writeText(d.lastOffset, len(d.text))
	}
	return d.out.String()
}

func (d *styledDecoder) writeText(from, to int) {
	d.out.WriteString(xmlenc.EscapeXMLChars(string(utf16.Decode(d.text[from:to]))))
}

func (d *styledDecoder) decodeIterate() {
	span := d.spans[d.next]
	d.next++

	name := span.Name()
	spanStart := span.First
	spanEnd := span.Last + 1

	if spanStart > d.lastOffset && spanStart <= len(d.text) {
		d.writeText(d.lastOffset, spanStart)
	}
	d.lastOffset = spanStart

	d.out.WriteByte('<')
	d.out.WriteString(name)
	for _, attr := range span.Attributes() {
		d.out.WriteByte(' ')
		d.out.WriteString(attr.Key)
		d.out.WriteString("=\"")
		d.out.WriteString(xmlenc.EscapeXMLChars(attr.Value))
		d.out.WriteByte('"')
	}

	if spanEnd == spanStart {
		d.out.WriteString("/>")
		return
	}
	d.out.WriteByte('>')

	for d.next < len(d.spans) && d.spans[d.next].First < spanEnd {
		d.decodeIterate()
	}

	if spanEnd > d.lastOffset && len(d.text) >= spanEnd {
		d.writeText(d.lastOffset, spanEnd)
	} else if len(d.text) >= d.lastOffset && len(d.text) < spanEnd {
		if d.logger != nil {
			d.logger.Printf("Span (%s) exceeds text length %d", name, len(d.text))
		}
		d.writeText(d.lastOffset, len(d.text))
	}
	d.lastOffset = spanEnd

	d.out.WriteString("</")
	d.out.WriteString(name)
	d.out.WriteByte('>')
}
