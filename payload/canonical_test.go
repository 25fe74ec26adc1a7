package payload

import (
	"bytes"
	"strings"
	"testing"
)

func samplePayload() *Payload {
	return &Payload{
		Context: "sigil/record",
		Tags: []Tag{
			{Name: TagCreator, Value: "did:sigil:abc"},
			{Name: "title", Value: "hello"},
		},
		Records: []map[string]any{
			{"b": float64(2), "a": "one", "nested": map[string]any{"z": true, "m": []any{"x", "y"}}},
		},
	}
}

func TestCanonicalizeDeterministic(t *testing.T) {
	p := samplePayload()
	first, err := Canonicalize(p)
	if err != nil {
		t.Fatalf("canonicalize 1 failed: %v", err)
	}
	second, err := Canonicalize(p)
	if err != nil {
		t.Fatalf("canonicalize 2 failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatal("canonical bytes should be identical across calls")
	}
}

func TestCanonicalizeSortsObjectKeys(t *testing.T) {
	a := &Payload{Records: []map[string]any{{"b": float64(2), "a": float64(1)}}}
	b := &Payload{Records: []map[string]any{{"a": float64(1), "b": float64(2)}}}

	ca, err := Canonicalize(a)
	if err != nil {
		t.Fatalf("canonicalize failed: %v", err)
	}
	cb, err := Canonicalize(b)
	if err != nil {
		t.Fatalf("canonicalize failed: %v", err)
	}
	if !bytes.Equal(ca, cb) {
		t.Fatalf("semantically equal payloads canonicalized differently:\n%s\n%s", ca, cb)
	}
	if !strings.Contains(string(ca), `"a":1,"b":2`) {
		t.Fatalf("keys not sorted: %s", ca)
	}
}

func TestCanonicalizePreservesArrayOrder(t *testing.T) {
	a := &Payload{Records: []map[string]any{{"frags": []any{"one", "two"}}}}
	b := &Payload{Records: []map[string]any{{"frags": []any{"two", "one"}}}}

	ca, _ := Canonicalize(a)
	cb, _ := Canonicalize(b)
	if bytes.Equal(ca, cb) {
		t.Fatal("array order is semantically meaningful and must survive canonicalization")
	}
}

func TestCanonicalizeNoWhitespace(t *testing.T) {
	canon, err := Canonicalize(samplePayload())
	if err != nil {
		t.Fatalf("canonicalize failed: %v", err)
	}
	if bytes.Contains(canon, []byte(": ")) || bytes.Contains(canon, []byte(", ")) || bytes.Contains(canon, []byte("\n")) {
		t.Fatalf("canonical form must carry no whitespace variance: %s", canon)
	}
}

func TestDigestExcludesSignatureTags(t *testing.T) {
	p := samplePayload()
	before, err := Digest(p)
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}

	p.SetTag(TagSignature, "c2lnbmF0dXJl")
	p.SetTag(TagKeyIndex, "12345")
	p.SetTag(TagPayloadDigest, "deadbeef")

	after, err := Digest(p)
	if err != nil {
		t.Fatalf("digest failed: %v", err)
	}
	if before != after {
		t.Fatal("signature-bearing tags must not feed back into the digest")
	}
}

func TestDigestSensitiveToContent(t *testing.T) {
	p := samplePayload()
	before, _ := Digest(p)

	p.Records[0]["a"] = "one!"
	after, _ := Digest(p)

	if before == after {
		t.Fatal("changing one byte of content must change the digest")
	}
}

func TestDigestSensitiveToCreatorTag(t *testing.T) {
	p := samplePayload()
	before, _ := Digest(p)

	p.SetTag(TagCreator, "did:sigil:other")
	after, _ := Digest(p)

	if before == after {
		t.Fatal("the creator tag is part of the signed content")
	}
}

func TestPreSignatureViewLeavesOriginalIntact(t *testing.T) {
	p := samplePayload()
	p.SetTag(TagSignature, "sig")

	view := p.PreSignatureView()
	if _, ok := view.Tag(TagSignature); ok {
		t.Fatal("pre-signature view should not carry the signature tag")
	}
	if _, ok := p.Tag(TagSignature); !ok {
		t.Fatal("building the view must not mutate the original payload")
	}
}

func TestCanonicalizeNilPayload(t *testing.T) {
	if _, err := Canonicalize(nil); err == nil {
		t.Fatal("nil payload should not canonicalize")
	}
}
