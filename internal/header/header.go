// Package header renders and parses the single-line C declaration that embeds
// a page into firmware program memory:
//
//	const char MAIN_page[] PROGMEM = R"=====(<content>)=====";
//
// The content sits inside a C++ raw string literal, so it is reproduced
// byte-for-byte with no escaping.
package header

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

const (
	// DefaultIdentifier is the symbol the firmware serves the page from.
	DefaultIdentifier = "MAIN_page"

	// DefaultQualifier places the array in flash instead of RAM.
	DefaultQualifier = "PROGMEM"

	// DefaultDelimiter is the raw string d-char sequence.
	DefaultDelimiter = "====="

	// MaxDelimiterLen is the C++ limit on raw string delimiters.
	MaxDelimiterLen = 16
)

var (
	ErrInvalidIdentifier  = errors.New("invalid identifier")
	ErrInvalidQualifier   = errors.New("invalid qualifier")
	ErrInvalidDelimiter   = errors.New("invalid raw string delimiter")
	ErrDelimiterCollision = errors.New("content contains the raw string terminator")
	ErrMalformed          = errors.New("malformed header declaration")
)

// Declaration holds the fixed tokens of the generated declaration.
type Declaration struct {
	Identifier string `yaml:"identifier"`
	Qualifier  string `yaml:"qualifier"`
	Delimiter  string `yaml:"delimiter"`
}

// DefaultDeclaration returns the tokens used by the firmware web server.
func DefaultDeclaration() Declaration {
	return Declaration{
		Identifier: DefaultIdentifier,
		Qualifier:  DefaultQualifier,
		Delimiter:  DefaultDelimiter,
	}
}

var cIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the tokens produce a declaration a C++ compiler accepts.
// An empty qualifier is allowed and simply omitted.
func (d Declaration) Validate() error {
	if !cIdentifier.MatchString(d.Identifier) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, d.Identifier)
	}
	if d.Qualifier != "" && !cIdentifier.MatchString(d.Qualifier) {
		return fmt.Errorf("%w: %q", ErrInvalidQualifier, d.Qualifier)
	}
	return ValidateDelimiter(d.Delimiter)
}

// ValidateDelimiter enforces the d-char rules: at most 16 characters, no
// space, parentheses, backslash or control characters.
func ValidateDelimiter(delim string) error {
	if len(delim) > MaxDelimiterLen {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidDelimiter, delim, MaxDelimiterLen)
	}
	for i := 0; i < len(delim); i++ {
		c := delim[i]
		switch {
		case c == ' ', c == '(', c == ')', c == '\\':
			return fmt.Errorf("%w: %q contains %q", ErrInvalidDelimiter, delim, c)
		case c < 0x20, c >= 0x7f:
			return fmt.Errorf("%w: %q contains a non-printable character", ErrInvalidDelimiter, delim)
		}
	}
	return nil
}

func terminator(delim string) []byte {
	return []byte(")" + delim + `"`)
}

// Collides reports whether content would close the raw string early.
func Collides(content []byte, delim string) bool {
	return bytes.Contains(content, terminator(delim))
}

// SafeDelimiter returns preferred unless content contains its terminator, in
// which case it tries preferred with a numeric suffix, trimming preferred to
// stay within MaxDelimiterLen.
func SafeDelimiter(content []byte, preferred string) (string, error) {
	if !Collides(content, preferred) {
		return preferred, nil
	}
	for n := 0; n < 1000; n++ {
		suffix := strconv.Itoa(n)
		base := preferred
		if len(base)+len(suffix) > MaxDelimiterLen {
			base = base[:MaxDelimiterLen-len(suffix)]
		}
		candidate := base + suffix
		if !Collides(content, candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no free delimiter derived from %q", ErrDelimiterCollision, preferred)
}

// Render produces the declaration. There is no trailing newline.
func Render(d Declaration, content []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(len(content) + 48 + len(d.Identifier) + len(d.Qualifier) + 2*len(d.Delimiter))
	buf.WriteString("const char ")
	buf.WriteString(d.Identifier)
	buf.WriteString("[] ")
	if d.Qualifier != "" {
		buf.WriteString(d.Qualifier)
		buf.WriteByte(' ')
	}
	buf.WriteString(`= R"`)
	buf.WriteString(d.Delimiter)
	buf.WriteByte('(')
	buf.Write(content)
	buf.Write(terminator(d.Delimiter))
	buf.WriteByte(';')
	return buf.Bytes()
}

var declHead = regexp.MustCompile(`^const char ([A-Za-z_][A-Za-z0-9_]*)\[\] (?:([A-Za-z_][A-Za-z0-9_]*) )?= R"([!-'*-\[\]-~]{0,16})\(`)

// Parse is the inverse of Render. Trailing whitespace after the closing
// semicolon is tolerated so hand-edited headers still parse.
func Parse(data []byte) (Declaration, []byte, error) {
	m := declHead.FindSubmatchIndex(data)
	if m == nil {
		return Declaration{}, nil, fmt.Errorf("%w: missing raw string declaration", ErrMalformed)
	}
	d := Declaration{Identifier: string(data[m[2]:m[3]])}
	if m[4] >= 0 {
		d.Qualifier = string(data[m[4]:m[5]])
	}
	d.Delimiter = string(data[m[6]:m[7]])

	body := data[m[1]:]
	tail := append(terminator(d.Delimiter), ';')
	trimmed := bytes.TrimRight(body, " \t\r\n")
	if !bytes.HasSuffix(trimmed, tail) {
		return Declaration{}, nil, fmt.Errorf("%w: missing %q terminator", ErrMalformed, tail)
	}
	content := trimmed[:len(trimmed)-len(tail)]
	if Collides(content, d.Delimiter) {
		return Declaration{}, nil, fmt.Errorf("%w: raw string closes before the end of the declaration", ErrMalformed)
	}
	return d, content, nil
}
