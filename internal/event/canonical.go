package event

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical produces a canonical JSON encoding of a payload, used for
// byte-exact payload comparison during replay. Two payloads are the same
// record iff their canonical encodings are equal.
//
// Rules:
//  1. Object keys sorted bytewise
//  2. No HTML escaping
//  3. Strings NFC normalized
//  4. No floats anywhere (payloads carry ints and decimal strings)
func MarshalCanonical(p Payload) ([]byte, error) {
	// Round-trip through encoding/json so the payload's own marshalers
	// (Address, ID, Amount) decide the leaf representations.
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canonical: decode payload: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SamePayload reports whether a and b canonicalize to identical bytes.
func SamePayload(a, b Payload) (bool, error) {
	ca, err := MarshalCanonical(a)
	if err != nil {
		return false, err
	}
	cb, err := MarshalCanonical(b)
	if err != nil {
		return false, err
	}
	return bytes.Equal(ca, cb), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		return fmt.Errorf("canonical: null is forbidden")
	case string:
		return writeCanonicalString(buf, val)
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case json.Number:
		s := val.String()
		if bytes.ContainsAny([]byte(s), ".eE") {
			return fmt.Errorf("canonical: float %q is forbidden", s)
		}
		buf.WriteString(s)
		return nil
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("canonical: unsupported type %T", v)
	}
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	enc, err := json.Marshal(norm.NFC.String(s))
	if err != nil {
		return fmt.Errorf("canonical: marshal string: %w", err)
	}
	// encoding/json escapes <, > and & for HTML safety; canonical form
	// keeps them literal.
	enc = bytes.ReplaceAll(enc, []byte(`\u003c`), []byte("<"))
	enc = bytes.ReplaceAll(enc, []byte(`\u003e`), []byte(">"))
	enc = bytes.ReplaceAll(enc, []byte(`\u0026`), []byte("&"))
	buf.Write(enc)
	return nil
}
