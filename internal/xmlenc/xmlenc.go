// Package xmlenc escapes decoded resource text for the aapt values grammar.
package xmlenc

import (
	"fmt"
	"strings"
	"unicode"
)

var xmlCharsReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;")

// EscapeXMLChars escapes the two characters aapt requires in element text.
func EscapeXMLChars(str string) string {
	return xmlCharsReplacer.Replace(str)
}

func isPrintable(c rune) bool {
	if unicode.IsControl(c) {
		return false
	}
	// Specials block, including the undefined char 0xffff.
	return c < 0xfff0 || c > 0xffff
}

func writeUnicodeEscape(out *strings.Builder, c rune) {
	fmt.Fprintf(out, "\\u%04x", c)
}

// EncodeAsResXMLAttr escapes a raw value for use as an XML attribute.
func EncodeAsResXMLAttr(str string) string {
	if str == "" {
		return str
	}

	var out strings.Builder
	out.Grow(len(str) + 10)

	switch str[0] {
	case '#', '@', '?':
		out.WriteByte('\\')
	}

	for _, c := range str {
		switch c {
		case '\\':
			out.WriteByte('\\')
		case '"':
			out.WriteString("&quot;")
			continue
		case '\n':
			out.WriteString("\\n")
			continue
		default:
			if !isPrintable(c) {
				writeUnicodeEscape(&out, c)
				continue
			}
		}
		out.WriteRune(c)
	}
	return out.String()
}

// EncodeAsXMLValue escapes a (possibly styled) value for use as element text.
// Style tags are copied through and quoting is applied around the plain runs
// that need it.
func EncodeAsXMLValue(str string) string {
	if str == "" {
		return str
	}

	chars := []rune(str)
	out := make([]rune, 0, len(chars)+10)

	switch chars[0] {
	case '#', '@', '?':
		out = append(out, '\\')
	}

	isInStyleTag := false
	startPos := 0
	enclose := false
	wasSpace := true

	encloseFrom := func(pos int) {
		out = append(out, 0)
		copy(out[pos+1:], out[pos:])
		out[pos] = '"'
		out = append(out, '"')
	}

	for i, c := range chars {
		if isInStyleTag {
			if c == '>' {
				isInStyleTag = false
				startPos = len(out) + 1
				enclose = false
			}
		} else if c == ' ' {
			if wasSpace {
				enclose = true
			}
			wasSpace = true
		} else {
			wasSpace = false
			switch c {
			case '\\', '"':
				out = append(out, '\\')
			case '\'', '\n':
				enclose = true
			case '<':
				isInStyleTag = true
				if enclose {
					encloseFrom(startPos)
				}
			default:
				if !isPrintable(c) {
					// no trailing \u0000
					if i == len(chars)-1 && c == 0 {
						continue
					}
					out = append(out, []rune(fmt.Sprintf("\\u%04x", c))...)
					continue
				}
			}
		}
		out = append(out, c)
	}

	if enclose || wasSpace {
		if startPos > len(out) {
			startPos = len(out)
		}
		encloseFrom(startPos)
	}
	return string(out)
}

// findSubstitutions returns the rune offsets of non-positional and positional
// printf substitutions.
func findSubstitutions(str string, nonPosMax int) (nonPositional, positional []int) {
	if nonPosMax == -1 {
		nonPosMax = int(^uint(0) >> 1)
	}

	chars := []rune(str)
	length := len(chars)
	pos2 := 0
	for {
		pos := indexRune(chars, '%', pos2)
		if pos == -1 {
			break
		}
		pos2 = pos + 1
		if pos2 == length {
			nonPositional = append(nonPositional, pos)
			break
		}
		c := chars[pos2]
		pos2++
		if c == '%' {
			continue
		}
		if c >= '0' && c <= '9' && pos2 < length {
			for {
				c = chars[pos2]
				pos2++
				if !(c >= '0' && c <= '9' && pos2 < length) {
					break
				}
			}
			if c == '$' {
				positional = append(positional, pos)
				continue
			}
		}

		nonPositional = append(nonPositional, pos)
		if len(nonPositional) >= nonPosMax {
			break
		}
	}
	return
}

func indexRune(chars []rune, c rune, from int) int {
	for i := from; i < len(chars); i++ {
		if chars[i] == c {
			return i
		}
	}
	return -1
}

func HasMultipleNonPositionalSubstitutions(str string) bool {
	nonPos, pos := findSubstitutions(str, 4)
	return len(nonPos) != 0 && len(nonPos)+len(pos) > 1
}

// EnumerateNonPositionalSubstitutionsIfRequired rewrites "%s %d" to
// "%1$s %2$d" when a value mixes several substitutions.
func EnumerateNonPositionalSubstitutionsIfRequired(str string) string {
	nonPos, pos := findSubstitutions(str, 4)
	if len(nonPos) == 0 || len(nonPos)+len(pos) < 2 {
		return str
	}

	chars := []rune(str)
	var out strings.Builder
	last := 0
	for count, sub := range nonPos {
		sub++
		out.WriteString(string(chars[last:sub]))
		fmt.Fprintf(&out, "%d$", count+1)
		last = sub
	}
	out.WriteString(string(chars[last:]))
	return out.String()
}
