package res

import (
	"bufio"
	"io"
	"strings"
)

// Serializer receives the values XML of resources. Attribute values and
// RawText are expected to be already escaped for their position; Text is
// escaped by the serializer.
type Serializer interface {
	StartTag(name string)
	Attribute(name, value string)
	Text(text string)
	RawText(text string)
	EndTag(name string)
}

const indent = "    "

// XMLWriter is an indenting Serializer. Write errors are sticky and
// reported by Flush.
type XMLWriter struct {
	w   *bufio.Writer
	err error

	depth      int
	open       bool
	hasContent []bool
	hasText    []bool
}

func NewXMLWriter(w io.Writer) *XMLWriter {
	return &XMLWriter{w: bufio.NewWriter(w)}
}

func (x *XMLWriter) write(s string) {
	if x.err != nil {
		return
	}
	_, x.err = x.w.WriteString(s)
}

func (x *XMLWriter) closeOpenTag() {
	if x.open {
		x.write(">")
		x.open = false
	}
}

// StartDocument writes the XML declaration.
func (x *XMLWriter) StartDocument() {
	x.write(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
}

func (x *XMLWriter) StartTag(name string) {
	x.closeOpenTag()
	if x.depth > 0 {
		x.hasContent[x.depth-1] = true
		x.write("\n")
		x.write(strings.Repeat(indent, x.depth))
	}
	x.write("<")
	x.write(name)
	x.open = true
	x.depth++
	x.hasContent = append(x.hasContent, false)
	x.hasText = append(x.hasText, false)
}

func (x *XMLWriter) Attribute(name, value string) {
	x.write(" ")
	x.write(name)
	x.write(`="`)
	x.write(escapeAttr(value))
	x.write(`"`)
}

func (x *XMLWriter) Text(text string) {
	x.RawText(escapeText(text))
}

func (x *XMLWriter) RawText(text string) {
	x.closeOpenTag()
	if x.depth > 0 {
		x.hasText[x.depth-1] = true
	}
	x.write(text)
}

func (x *XMLWriter) EndTag(name string) {
	if x.depth == 0 {
		return
	}
	x.depth--
	hasContent, hasText := x.hasContent[x.depth], x.hasText[x.depth]
	x.hasContent = x.hasContent[:x.depth]
	x.hasText = x.hasText[:x.depth]

	if x.open {
		x.write(" />")
		x.open = false
		return
	}
	if hasContent && !hasText {
		x.write("\n")
		x.write(strings.Repeat(indent, x.depth))
	}
	x.write("</")
	x.write(name)
	x.write(">")
}

// Flush ends the document and reports the first write error.
func (x *XMLWriter) Flush() error {
	x.write("\n")
	if x.err != nil {
		return x.err
	}
	return x.w.Flush()
}

func escapeText(s string) string {
	if !strings.ContainsAny(s, "&<>") {
		return s
	}
	var sb strings.Builder
	for _, c := range s {
		switch c {
		case '&':
			sb.WriteString("&amp;")
		case '<':
			sb.WriteString("&lt;")
		case '>':
			sb.WriteString("&gt;")
		default:
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

// escapeAttr escapes an attribute value, leaving existing entity
// references intact.
func escapeAttr(s string) string {
	if !strings.ContainsAny(s, "&<\"") {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '&':
			if isEntityAt(s, i) {
				sb.WriteByte(c)
			} else {
				sb.WriteString("&amp;")
			}
		case '<':
			sb.WriteString("&lt;")
		case '"':
			sb.WriteString("&quot;")
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isEntityAt(s string, i int) bool {
	end := strings.IndexByte(s[i:], ';')
	if end < 2 {
		return false
	}
	name := s[i+1 : i+end]
	if name[0] == '#' {
		digits := name[1:]
		hex := false
		if len(digits) > 0 && (digits[0] == 'x' || digits[0] == 'X') {
			digits, hex = digits[1:], true
		}
		if digits == "" {
			return false
		}
		for _, c := range digits {
			isDigit := c >= '0' && c <= '9'
			isHex := (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
			if !isDigit && !(hex && isHex) {
				return false
			}
		}
		return true
	}
	for _, c := range name {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return false
		}
	}
	return true
}
