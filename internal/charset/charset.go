// Package charset resolves the character encoding of numsort input files.
//
// The reader splits records on raw '\n' and '\r' bytes and expects digits to
// be single ASCII bytes, so only encodings that are ASCII-compatible for
// those characters are accepted (UTF-8, ISO-8859-x, windows-125x, ...).
// UTF-16/32 and EBCDIC are rejected up front rather than misread later.
package charset

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/transform"
)

// DefaultName is used when no encoding is configured.
const DefaultName = "UTF-8"

// ErrUnsupported is returned for unknown or non-ASCII-compatible encodings.
var ErrUnsupported = errors.New("unsupported character encoding")

// probe holds every byte the reader treats specially.
var probe = []byte("0123456789\n\r")

// Codec decodes lines that are not plain ASCII.
type Codec struct {
	name   string
	enc    encoding.Encoding
	isUTF8 bool
}

// Lookup returns the Codec for an IANA charset name. Empty means UTF-8.
func Lookup(name string) (*Codec, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrUnsupported, name, err)
	}
	if enc == nil {
		// Known to the index but without an implementation in x/text.
		return nil, fmt.Errorf("%w: %q has no decoder", ErrUnsupported, name)
	}
	if !asciiCompatible(enc) {
		return nil, fmt.Errorf("%w: %q does not encode digits and line breaks as ASCII", ErrUnsupported, name)
	}
	canonical := canonicalName(enc, name)
	return &Codec{name: canonical, enc: enc, isUTF8: strings.EqualFold(canonical, DefaultName)}, nil
}

// MustLookup is Lookup for names known to be valid; it panics otherwise.
func MustLookup(name string) *Codec {
	c, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the canonical IANA name.
func (c *Codec) Name() string { return c.name }

// Decode converts b to UTF-8 text.
//
// ASCII input is returned as-is without running the decoder. Invalid byte
// sequences are an error for UTF-8 input; single-byte charsets map every
// byte so they never fail.
func (c *Codec) Decode(b []byte) (string, error) {
	if isASCII(b) {
		return string(b), nil
	}
	if c.isUTF8 {
		s := string(b)
		if !utf8.Valid(b) {
			return s, fmt.Errorf("invalid %s byte sequence", c.name)
		}
		return s, nil
	}
	s, _, err := transform.String(c.enc.NewDecoder(), string(b))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", c.name, err)
	}
	return s, nil
}

// StripBOM removes a leading UTF-8 byte order mark from b.
func StripBOM(b []byte) []byte {
	return bytes.TrimPrefix(b, utf8BOM)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// canonicalName prefers the MIME name ("ISO-8859-1") over the IANA primary
// name ("ISO_8859-1:1987").
func canonicalName(enc encoding.Encoding, fallback string) string {
	for _, idx := range []*ianaindex.Index{ianaindex.MIME, ianaindex.IANA} {
		if n, err := idx.Name(enc); err == nil && n != "" {
			return n
		}
	}
	return fallback
}

func asciiCompatible(enc encoding.Encoding) bool {
	out, err := enc.NewEncoder().Bytes(probe)
	if err != nil {
		return false
	}
	return bytes.Equal(out, probe)
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
