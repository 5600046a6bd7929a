package extract

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Text decodes raw bytes as UTF-8. A leading BOM is dropped (UTF-16 input
// with a BOM is converted), invalid sequences become U+FFFD and line endings
// are normalised to \n.
func Text(raw []byte) (string, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return "", err
	}
	s := strings.ReplaceAll(string(decoded), "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n"), nil
}
