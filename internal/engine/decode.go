package engine

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/redactyl/piiscan/internal/errs"
)

var (
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// legacyCharsets are the single-byte encodings mimetype reports for text
// that is not UTF-8. Text without a reported charset is read as
// windows-1252, a superset of the printable ISO-8859-1 range.
var legacyCharsets = map[string]encoding.Encoding{
	"":             charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"windows-1252": charmap.Windows1252,
}

// DecodeText turns raw file content into text. UTF-16 content with a byte
// order mark is transcoded, valid UTF-8 without NUL bytes is taken as is,
// and anything else is sniffed for a Latin-1 style charset. Failures wrap
// errs.ErrDecode.
func DecodeText(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	if bytes.HasPrefix(b, bomUTF16LE) || bytes.HasPrefix(b, bomUTF16BE) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), b)
		if err != nil {
			return "", errs.Wrap(errs.ErrDecode, err, "utf-16 content")
		}
		return string(out), nil
	}
	if looksBinary(b) {
		return "", errs.Wrap(errs.ErrDecode, nil, "binary content")
	}
	if utf8.Valid(b) {
		return strings.TrimPrefix(string(b), "\ufeff"), nil
	}
	m := mimetype.Detect(b)
	if !isText(m) {
		return "", errs.Wrap(errs.ErrDecode, nil, fmt.Sprintf("non-text content (%s)", m.String()))
	}
	enc, ok := legacyCharsets[charsetOf(m)]
	if !ok {
		return "", errs.Wrap(errs.ErrDecode, nil, fmt.Sprintf("invalid utf-8 (%s)", m.String()))
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", errs.Wrap(errs.ErrDecode, err, "legacy charset")
	}
	return string(out), nil
}

func charsetOf(m *mimetype.MIME) string {
	_, params, err := mime.ParseMediaType(m.String())
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func looksBinary(b []byte) bool {
	const sniff = 800
	n := sniff
	if len(b) < n {
		n = len(b)
	}
	return bytes.IndexByte(b[:n], 0) >= 0
}
