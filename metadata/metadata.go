// Package metadata encodes the installer metadata record.
//
// The record is a closed schema of four keys written in a fixed order, one
// per line, as TOML-compatible text:
//
//	name = "MikoIDE"
//	version = "1.2.3"
//	install_dir = "%LOCALAPPDATA%\\MikoIDE"
//	created = 1700000000
//
// String values use TOML basic-string escaping: backslash, double quote,
// \b \t \n \f \r, and any other control character as \uXXXX. Encoding is
// deterministic; the creation time is an input, never read from a clock.
package metadata

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// FileName is the archive path of the inline copy of the record.
const FileName = "metadata.toml"

// Keys of the record, in canonical order.
const (
	KeyName       = "name"
	KeyVersion    = "version"
	KeyInstallDir = "install_dir"
	KeyCreated    = "created"
)

// maxLineSize bounds a single encoded line when parsing.
const maxLineSize = 1 << 20

// ErrMalformed is returned when metadata bytes cannot be parsed.
var ErrMalformed = errors.New("metadata: malformed record")

// ErrInvalid is returned when a record fails validation.
var ErrInvalid = errors.New("metadata: invalid record")

// Record is the installer metadata.
type Record struct {
	// Name is the application name.
	Name string

	// Version is the application version string.
	Version string

	// InstallDir is the default install location. It may contain unexpanded
	// environment references such as %LOCALAPPDATA%.
	InstallDir string

	// Created is the build time, stored with second precision.
	Created time.Time
}

// Validate checks that r can be encoded and parsed back unchanged.
func (r Record) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalid)
	}
	if r.Version == "" {
		return fmt.Errorf("%w: empty version", ErrInvalid)
	}
	for _, f := range []struct{ key, value string }{
		{KeyName, r.Name}, {KeyVersion, r.Version}, {KeyInstallDir, r.InstallDir},
	} {
		if !utf8.ValidString(f.value) {
			return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalid, f.key)
		}
	}
	if r.Created.Unix() < 0 {
		return fmt.Errorf("%w: created before the unix epoch", ErrInvalid)
	}
	return nil
}

// Encode returns the canonical encoding of r.
func Encode(r Record) []byte {
	var b bytes.Buffer
	writeString(&b, KeyName, r.Name)
	writeString(&b, KeyVersion, r.Version)
	writeString(&b, KeyInstallDir, r.InstallDir)
	b.WriteString(KeyCreated)
	b.WriteString(" = ")
	b.WriteString(strconv.FormatInt(r.Created.Unix(), 10))
	b.WriteByte('\n')
	return b.Bytes()
}

func writeString(b *bytes.Buffer, key, value string) {
	b.WriteString(key)
	b.WriteString(" = ")
	b.WriteString(Quote(value))
	b.WriteByte('\n')
}

// Quote returns s as a double-quoted, escaped string value.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, c := range s {
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\f':
			b.WriteString(`\f`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if c < 0x20 || c == 0x7f {
				fmt.Fprintf(&b, `\u%04X`, c)
				continue
			}
			b.WriteRune(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Unquote reverses Quote.
func Unquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("%w: string value must be double quoted", ErrMalformed)
	}
	s = s[1 : len(s)-1]
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' {
			return "", fmt.Errorf("%w: unescaped quote", ErrMalformed)
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("%w: dangling escape", ErrMalformed)
		}
		switch s[i] {
		case '"':
			b.WriteByte('"')
		case '\\':
			b.WriteByte('\\')
		case 'b':
			b.WriteByte('\b')
		case 't':
			b.WriteByte('\t')
		case 'n':
			b.WriteByte('\n')
		case 'f':
			b.WriteByte('\f')
		case 'r':
			b.WriteByte('\r')
		case 'u':
			if i+5 > len(s) {
				return "", fmt.Errorf("%w: short \\u escape", ErrMalformed)
			}
			n, err := strconv.ParseUint(s[i+1:i+5], 16, 32)
			if err != nil {
				return "", fmt.Errorf("%w: bad \\u escape %q", ErrMalformed, s[i+1:i+5])
			}
			b.WriteRune(rune(n))
			i += 4
		default:
			return "", fmt.Errorf("%w: unknown escape \\%c", ErrMalformed, s[i])
		}
	}
	return b.String(), nil
}

// Parse decodes a record produced by Encode. Keys may appear in any order,
// but each of the four keys must appear exactly once. Blank lines and lines
// starting with '#' are ignored.
func Parse(data []byte) (Record, error) {
	var (
		r    Record
		seen = make(map[string]bool, 4)
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 4096), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return Record{}, fmt.Errorf("%w: line %d: missing '='", ErrMalformed, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if seen[key] {
			return Record{}, fmt.Errorf("%w: line %d: duplicate key %q", ErrMalformed, line, key)
		}
		seen[key] = true

		var err error
		switch key {
		case KeyName:
			r.Name, err = Unquote(value)
		case KeyVersion:
			r.Version, err = Unquote(value)
		case KeyInstallDir:
			r.InstallDir, err = Unquote(value)
		case KeyCreated:
			var secs int64
			secs, err = strconv.ParseInt(value, 10, 64)
			if err != nil {
				err = fmt.Errorf("%w: created must be an integer", ErrMalformed)
			}
			r.Created = time.Unix(secs, 0).UTC()
		default:
			return Record{}, fmt.Errorf("%w: line %d: unknown key %q", ErrMalformed, line, key)
		}
		if err != nil {
			return Record{}, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return Record{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	for _, key := range []string{KeyName, KeyVersion, KeyInstallDir, KeyCreated} {
		if !seen[key] {
			return Record{}, fmt.Errorf("%w: missing key %q", ErrMalformed, key)
		}
	}
	return r, nil
}
