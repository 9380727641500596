// Package canon provides canonical JSON encoding and content hashing used
// throughout the engine for cache keys, registry content hashes, and the
// resume protocol's inputs_hash/registry_hash witnesses.
//
// Canonical form: object keys sorted lexicographically at every nesting
// level, tight separators (no whitespace), no trailing newline. Two values
// that are structurally equal (including after round-tripping through
// encoding/json's map[string]any, which loses original key order) produce
// identical canonical bytes.
package canon

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// JSON renders v as canonical JSON: object keys sorted, no insignificant
// whitespace. v is first round-tripped through json.Marshal/Unmarshal so
// that struct values, map[string]any values, and already-decoded any
// values are normalized identically.
func JSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canon: marshal: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("canon: unmarshal: %w", err)
	}
	var buf bytes.Buffer
	if err := encode(&buf, decoded); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MustJSON is like JSON but panics on error. Intended for call sites where
// v is already known-good JSON-able data (e.g. freshly decoded JSON).
func MustJSON(v any) []byte {
	b, err := JSON(v)
	if err != nil {
		panic(err)
	}
	return b
}

func encode(buf *bytes.Buffer, v any) error {
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
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
	case float64:
		b, err := json.Marshal(t)
		if err != nil {
			return err
		}
		buf.Write(b)
	case json.Number:
		buf.WriteString(t.String())
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := encode(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canon: unsupported type %T", v)
	}
	return nil
}

// SHA256Hex returns the lowercase hex SHA-256 digest of b.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashJSON canonicalizes v and returns its SHA-256 hex digest.
func HashJSON(v any) (string, error) {
	b, err := JSON(v)
	if err != nil {
		return "", err
	}
	return SHA256Hex(b), nil
}

// HashSorted hashes the sorted concatenation of already-canonical byte
// slices, each on its own line. Used by the registry to compute a
// content hash over many manifests that is independent of file-system
// enumeration order.
func HashSorted(items [][]byte) string {
	strs := make([]string, len(items))
	for i, it := range items {
		strs[i] = string(it)
	}
	sort.Strings(strs)
	h := sha256.New()
	for _, s := range strs {
		h.Write([]byte(s))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
