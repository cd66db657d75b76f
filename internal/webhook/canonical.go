package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/cbc-agent/analytics-ingest/internal/privacy"
)

const maxCanonicalDepth = privacy.MaxDepth

var (
	// ErrNotCanonicalizable is returned for values with no canonical JSON form.
	ErrNotCanonicalizable = errors.New("payload cannot be canonicalized")

	errCanonicalTooDeep = fmt.Errorf("%w: nesting too deep", ErrNotCanonicalizable)
)

// Canonicalize renders payload the way the signing side does: keys sorted by code
// point, ", " and ": " separators, non-ASCII escaped as \uXXXX, integers verbatim and
// floats in shortest round-trip form with a mandatory fraction or exponent.
//
// Accepted inputs are decoded JSON values (maps, slices, strings, bools, nil, numbers
// including json.Number), raw JSON as []byte or json.RawMessage, privacy trees, and
// anything encoding/json can marshal.
func Canonicalize(payload any) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, payload, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any, depth int) error {
	if depth > maxCanonicalDepth {
		return errCanonicalTooDeep
	}

	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		writeString(buf, t)
	case json.Number:
		s, err := canonicalNumber(t)
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case float64:
		s, err := formatFloat(t)
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case float32:
		s, err := formatFloat(float64(t))
		if err != nil {
			return err
		}
		buf.WriteString(s)
	case int:
		buf.WriteString(strconv.FormatInt(int64(t), 10))
	case int32:
		buf.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
	case uint:
		buf.WriteString(strconv.FormatUint(uint64(t), 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(t), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(t, 10))
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		// Byte order of UTF-8 equals code point order.
		sort.Strings(keys)

		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteString(", ")
			}
			writeString(buf, k)
			buf.WriteString(": ")
			if err := writeCanonical(buf, t[k], depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteString(", ")
			}
			if err := writeCanonical(buf, item, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case privacy.Node:
		return writeCanonical(buf, privacy.ToValue(t), depth)
	case json.RawMessage:
		return writeRaw(buf, t, depth)
	case []byte:
		return writeRaw(buf, t, depth)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrNotCanonicalizable, err)
		}
		return writeRaw(buf, data, depth)
	}
	return nil
}

func writeRaw(buf *bytes.Buffer, data []byte, depth int) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return fmt.Errorf("%w: %v", ErrNotCanonicalizable, err)
	}
	return writeCanonical(buf, decoded, depth)
}

func canonicalNumber(n json.Number) (string, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return s, nil
		}
		// Integers beyond int64 keep their digits.
		if s != "" && strings.Trim(strings.TrimPrefix(s, "-"), "0123456789") == "" {
			return s, nil
		}
	}
	f, err := n.Float64()
	if err != nil {
		return "", fmt.Errorf("%w: invalid number %q", ErrNotCanonicalizable, s)
	}
	return formatFloat(f)
}

func formatFloat(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: non-finite number", ErrNotCanonicalizable)
	}

	exp := strconv.FormatFloat(f, 'e', -1, 64)
	mark := strings.IndexByte(exp, 'e')
	e, _ := strconv.Atoi(exp[mark+1:])
	if e < -4 || e >= 16 {
		return exp, nil
	}

	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s, nil
}

const hexDigits = "0123456789abcdef"

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			buf.WriteString(`\"`)
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '\n':
			buf.WriteString(`\n`)
		case r == '\r':
			buf.WriteString(`\r`)
		case r == '\t':
			buf.WriteString(`\t`)
		case r == '\b':
			buf.WriteString(`\b`)
		case r == '\f':
			buf.WriteString(`\f`)
		case r >= 0x20 && r <= 0x7e:
			buf.WriteRune(r)
		case r > 0xffff:
			hi, lo := utf16.EncodeRune(r)
			writeUnicodeEscape(buf, hi)
			writeUnicodeEscape(buf, lo)
		default:
			writeUnicodeEscape(buf, r)
		}
	}
	buf.WriteByte('"')
}

func writeUnicodeEscape(buf *bytes.Buffer, r rune) {
	buf.WriteString(`\u`)
	buf.WriteByte(hexDigits[(r>>12)&0xf])
	buf.WriteByte(hexDigits[(r>>8)&0xf])
	buf.WriteByte(hexDigits[(r>>4)&0xf])
	buf.WriteByte(hexDigits[r&0xf])
}
