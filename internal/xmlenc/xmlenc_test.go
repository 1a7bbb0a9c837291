package xmlenc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeAsXMLValue(t *testing.T) {
	tests := map[string]string{
		"":                        "",
		"hello":                   "hello",
		"@string/foo":             "\\@string/foo",
		"say \"hi\"":              "say \\\"hi\\\"",
		"it's":                    "\"it's\"",
		"two  spaces":             "\"two  spaces\"",
		"trailing ":               "\"trailing \"",
		"line\nbreak":             "\"line\nbreak\"",
		"tab\there":               "tab\\u0009here",
		"<b>bold</b> it's":        "<b>bold</b>\" it's\"",
		"back\\slash":             "back\\\\slash",
		"nul at end\x00":          "nul at end",
	}

	for in, expected := range tests {
		assert.Equal(t, expected, EncodeAsXMLValue(in), "input %q", in)
	}
}

func TestEncodeAsResXMLAttr(t *testing.T) {
	assert.Equal(t, "", EncodeAsResXMLAttr(""))
	assert.Equal(t, "\\#fff", EncodeAsResXMLAttr("#fff"))
	assert.Equal(t, "a&quot;b\\nc", EncodeAsResXMLAttr("a\"b\nc"))
	assert.Equal(t, "a\\\\b", EncodeAsResXMLAttr("a\\b"))
	assert.Equal(t, "x\\u0001", EncodeAsResXMLAttr("x\x01"))
}

func TestEscapeXMLChars(t *testing.T) {
	assert.Equal(t, "a &amp; b &lt; c &amp; d", EscapeXMLChars("a & b < c & d"))
}

func TestSubstitutions(t *testing.T) {
	assert.False(t, HasMultipleNonPositionalSubstitutions("100%"))
	assert.False(t, HasMultipleNonPositionalSubstitutions("%s only"))
	assert.False(t, HasMultipleNonPositionalSubstitutions("%1$s and %2$s"))
	assert.True(t, HasMultipleNonPositionalSubstitutions("%s and %d"))
	assert.True(t, HasMultipleNonPositionalSubstitutions("%1$s and %d"))

	assert.Equal(t, "%1$s and %2$d", EnumerateNonPositionalSubstitutionsIfRequired("%s and %d"))
	assert.Equal(t, "%s alone", EnumerateNonPositionalSubstitutionsIfRequired("%s alone"))
	assert.Equal(t, "100%% sure", EnumerateNonPositionalSubstitutionsIfRequired("100%% sure"))
}
