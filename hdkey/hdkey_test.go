package hdkey

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"testing"

	"github.com/tyler-smith/go-bip32"
)

var testSeed = bytes.Repeat([]byte{0x5a}, 32)

func TestDeriveBaseDeterministic(t *testing.T) {
	k1, err := DeriveBase(testSeed, Assertion, 0)
	if err != nil {
		t.Fatalf("derive base 1 failed: %v", err)
	}
	k2, err := DeriveBase(testSeed, Assertion, 0)
	if err != nil {
		t.Fatalf("derive base 2 failed: %v", err)
	}
	if k1.B58Serialize() != k2.B58Serialize() {
		t.Fatal("base derivation should be deterministic")
	}
}

func TestDeriveBaseIsolatesSubPurposes(t *testing.T) {
	assert, _ := DeriveBase(testSeed, Assertion, 0)
	enc, _ := DeriveBase(testSeed, Encryption, 0)
	if assert.B58Serialize() == enc.B58Serialize() {
		t.Fatal("different sub-purposes must yield different subtrees")
	}

	acct0, _ := DeriveBase(testSeed, Assertion, 0)
	acct1, _ := DeriveBase(testSeed, Assertion, 1)
	if acct0.B58Serialize() == acct1.B58Serialize() {
		t.Fatal("different accounts must yield different subtrees")
	}
}

func TestDeriveBaseRejectsBadSeed(t *testing.T) {
	if _, err := DeriveBase([]byte("short"), Assertion, 0); !errors.Is(err, ErrInvalidKeyMaterial) {
		t.Fatalf("expected ErrInvalidKeyMaterial, got %v", err)
	}
}

func TestPublicLeafMatchesPrivateDerivation(t *testing.T) {
	base, err := DeriveBase(testSeed, Assertion, 0)
	if err != nil {
		t.Fatalf("derive base failed: %v", err)
	}

	const index = 714025
	leaf, err := DeriveLeaf(base, index, false)
	if err != nil {
		t.Fatalf("derive leaf failed: %v", err)
	}
	privSide, err := PublicKey(leaf)
	if err != nil {
		t.Fatalf("leaf public key failed: %v", err)
	}

	xpub, err := ParseXpub(base.PublicKey().B58Serialize())
	if err != nil {
		t.Fatalf("parse xpub failed: %v", err)
	}
	pubSide, err := DerivePublicLeaf(xpub, index)
	if err != nil {
		t.Fatalf("derive public leaf failed: %v", err)
	}

	if !privSide.IsEqual(pubSide) {
		t.Fatal("verifier-side public derivation must match signer-side key")
	}
}

func TestHardenedLeafNotDerivableFromXpub(t *testing.T) {
	base, _ := DeriveBase(testSeed, Assertion, 0)
	xpub, _ := ParseXpub(base.PublicKey().B58Serialize())

	if _, err := DerivePublicLeaf(xpub, bip32.FirstHardenedChild+5); !errors.Is(err, ErrUnsupportedDerivation) {
		t.Fatalf("expected ErrUnsupportedDerivation, got %v", err)
	}

	if _, err := DeriveLeaf(base.PublicKey(), 5, true); !errors.Is(err, ErrUnsupportedDerivation) {
		t.Fatalf("expected ErrUnsupportedDerivation for hardened leaf on public base, got %v", err)
	}
}

func TestHardenedAndNonHardenedLeavesDiffer(t *testing.T) {
	base, _ := DeriveBase(testSeed, Assertion, 0)

	soft, err := DeriveLeaf(base, 9, false)
	if err != nil {
		t.Fatalf("non-hardened leaf failed: %v", err)
	}
	hard, err := DeriveLeaf(base, 9, true)
	if err != nil {
		t.Fatalf("hardened leaf failed: %v", err)
	}
	if soft.B58Serialize() == hard.B58Serialize() {
		t.Fatal("hardened and non-hardened leaves at the same index must differ")
	}
}

func TestParseXpubRejectsPrivateKey(t *testing.T) {
	base, _ := DeriveBase(testSeed, Assertion, 0)
	if _, err := ParseXpub(base.B58Serialize()); !errors.Is(err, ErrInvalidKeyMaterial) {
		t.Fatalf("an extended private key must never pass as an xpub, got %v", err)
	}
}

func TestIndexFromDigestPureAndBounded(t *testing.T) {
	digest := sha256.Sum256([]byte(`{"msg":"hello"}`))

	first := IndexFromDigest(digest)
	second := IndexFromDigest(digest)
	if first != second {
		t.Fatal("index derivation must be a pure function")
	}
	if first >= 1<<31 {
		t.Fatalf("index must fit in 31 bits, got %d", first)
	}

	other := sha256.Sum256([]byte(`{"msg":"hello!"}`))
	if IndexFromDigest(other) == first {
		t.Fatal("different digests should select different leaves")
	}
}
