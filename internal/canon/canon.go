// Package canon produces the canonical byte form of a CycloneDX JSON
// document for signing: UTF-8, no BOM, keys sorted at every depth,
// no insignificant whitespace, numbers kept in their shortest round-trip
// form, array order preserved. The top-level "signature" member, if
// present, is removed before canonicalization so sign and verify operate
// on the same bytes.
package canon

import (
	"bytes"
	"encoding/json"
	"sort"

	"golang.org/x/xerrors"
)

// SignatureField is the top-level member stripped before
// canonicalization.
const SignatureField = "signature"

// Canonicalize returns the canonical byte sequence for doc, which must be
// a well-formed JSON document. Canonicalize is idempotent:
// Canonicalize(Canonicalize(d)) == Canonicalize(d).
func Canonicalize(doc []byte) ([]byte, error) {
	v, err := decode(doc)
	if err != nil {
		return nil, xerrors.Errorf("canon: parse: %w", err)
	}
	if m, ok := v.(map[string]any); ok {
		delete(m, SignatureField)
	}

	var buf bytes.Buffer
	if err := writeValue(&buf, v); err != nil {
		return nil, xerrors.Errorf("canon: write: %w", err)
	}
	return buf.Bytes(), nil
}

// decode parses doc keeping numbers as json.Number, so the original
// (already shortest round-trip, since we produced it with encoding/json)
// digit string survives re-serialization bit-for-bit.
func decode(doc []byte) (any, error) {
	doc = bytes.TrimPrefix(doc, []byte{0xEF, 0xBB, 0xBF})
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func writeValue(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		return writeObject(buf, t)
	case []any:
		buf.WriteByte('[')
		for i, elem := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeValue(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case json.Number:
		buf.WriteString(t.String())
		return nil
	default:
		// Strings, booleans, null: encoding/json handles escaping. The
		// encoder is configured not to mangle <, >, & so the output is
		// the plain RFC 8785 string form.
		enc := json.NewEncoder(buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(t); err != nil {
			return err
		}
		// Encode appends a newline; canonical form has none.
		buf.Truncate(buf.Len() - 1)
		return nil
	}
}

func writeObject(buf *bytes.Buffer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeValue(buf, m[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}
