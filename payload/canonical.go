package payload

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrMalformed is returned when a payload contains values that have no
// deterministic serialization (channels, funcs, NaN, unmarshalable types).
var ErrMalformed = errors.New("payload: cannot canonicalize")

// Canonicalize produces the byte-stable serialization of a payload: object
// keys sorted recursively, arrays kept in order, no whitespace. Two
// semantically equal payloads always canonicalize to identical bytes, which
// is what makes digests and signatures reproducible across implementations.
//
// Callers hashing for signing or verification must pass the pre-signature
// view; Canonicalize itself serializes exactly what it is given.
func Canonicalize(p *Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil payload", ErrMalformed)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')

	buf.WriteString(`"context":`)
	if err := appendCanonical(&buf, p.Context); err != nil {
		return nil, err
	}

	buf.WriteString(`,"records":[`)
	for i, rec := range p.Records {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := appendCanonical(&buf, rec); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(']')

	buf.WriteString(`,"tags":[`)
	for i, t := range p.Tags {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		if err := appendCanonical(&buf, t.Name); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
		if err := appendCanonical(&buf, t.Value); err != nil {
			return nil, err
		}
		buf.WriteByte(']')
	}
	buf.WriteString(`]}`)

	return buf.Bytes(), nil
}

// Digest canonicalizes the payload's pre-signature view and returns its
// SHA-256. This is the value that gets signed, and the value verifiers
// recompute.
func Digest(p *Payload) ([32]byte, error) {
	if p == nil {
		return [32]byte{}, fmt.Errorf("%w: nil payload", ErrMalformed)
	}
	canon, err := Canonicalize(p.PreSignatureView())
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(canon), nil
}

// CanonicalJSON serializes an arbitrary JSON-shaped value with sorted object
// keys and no whitespace. Used for binding statements and identity document
// hashing, where the exact same bytes must be producible by any verifier.
func CanonicalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := appendCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
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
			if err := appendCanonical(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := appendCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case []map[string]any:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case []string:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendCanonical(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case string, bool, float64, int, int32, int64, uint32, uint64, json.Number:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		buf.Write(b)
	default:
		// Unknown shapes get one normalization pass through encoding/json
		// before canonical ordering is applied.
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		var norm any
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		if err := dec.Decode(&norm); err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return appendCanonical(buf, norm)
	}
	return nil
}
