package finvoice

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// Charset is the encoding declared and used for outgoing documents
const Charset = "ISO-8859-15"

var errInvalidUTF8 = errors.New("document is not valid UTF-8")

var declEncoding = regexp.MustCompile(`(<\?xml[^>]*encoding=["'])([^"']+)(["'])`)

// DeclaredCharset returns the encoding named in the XML declaration, if any
func DeclaredCharset(data []byte) string {
	head := data
	if len(head) > 200 {
		head = head[:200]
	}
	m := declEncoding.FindSubmatch(head)
	if m == nil {
		return ""
	}
	return string(m[2])
}

// IsLatin reports whether data declares an ISO-8859 encoding
func IsLatin(data []byte) bool {
	return strings.Contains(strings.ToLower(DeclaredCharset(data)), "iso-8859")
}

// ToUTF8 converts ISO-8859-15 data to UTF-8 and rewrites the declaration to match
func ToUTF8(data []byte) ([]byte, error) {
	out, _, err := transform.Bytes(charmap.ISO8859_15.NewDecoder(), data)
	if err != nil {
		return nil, err
	}
	return declEncoding.ReplaceAll(out, []byte("${1}UTF-8${3}")), nil
}

// FromUTF8 converts a UTF-8 XML document to ISO-8859-15. Characters the
// charset cannot hold are written as numeric character references.
func FromUTF8(data []byte) ([]byte, error) {
	out := make([]byte, 0, len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		if b, ok := charmap.ISO8859_15.EncodeRune(r); ok && r != utf8.RuneError {
			out = append(out, b)
			continue
		}
		if r == utf8.RuneError && size == 1 {
			return nil, errInvalidUTF8
		}
		out = append(out, "&#"...)
		out = strconv.AppendInt(out, int64(r), 10)
		out = append(out, ';')
	}
	return out, nil
}

// charsetReader lets etree read documents declared in a legacy encoding
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := ianaindex.IANA.Encoding(label)
	if err != nil || enc == nil {
		enc = charmap.ISO8859_15
	}
	return transform.NewReader(input, enc.NewDecoder()), nil
}

func hasBOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte("\xef\xbb\xbf"))
}
