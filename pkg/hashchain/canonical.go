// Package hashchain provides canonical JSON serialization, SHA-256 content
// hashing, and hash-chain construction/verification shared by the trace
// store, the audit-pack exporter, and the ingest adapter.
package hashchain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Canonical serializes v as compact, deterministic JSON: UTF-8, object keys
// sorted, no insignificant whitespace, and no NaN/Infinity floats. v may be
// any value encoding/json can marshal: it is first re-marshaled and decoded
// into generic maps, slices and scalars (see normalize), so struct tags and
// custom MarshalJSON output are honored and their keys sorted.
func Canonical(v any) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := encode(&buf, normalized); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// normalize re-marshals v through encoding/json and decodes into generic
// Go values so struct field tags, omitempty, and custom marshalers are
// honored before canonical encoding.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: marshal: %w", err)
	}
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical: decode: %w", err)
	}
	return generic, nil
}

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		f, err := val.Float64()
		if err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return fmt.Errorf("canonical: NaN/Infinity not representable")
		}
		buf.WriteString(val.String())
	case string:
		encodeString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
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
			encodeString(buf, k)
			buf.WriteByte(':')
			if err := encode(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canonical: unsupported type %T", v)
	}
	return nil
}

// encodeString writes s as a JSON string literal, matching encoding/json's
// escaping so the canonical form stays valid, portable JSON.
func encodeString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s)
	buf.Write(b)
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalHash canonicalizes v and returns the lowercase hex SHA-256
// digest of the canonical bytes.
func CanonicalHash(v any) (string, error) {
	data, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return SHA256Hex(data), nil
}
