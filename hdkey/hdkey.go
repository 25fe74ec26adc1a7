// Package hdkey implements sigil's hierarchical key derivation: one master
// seed fans out to hardened per-use base keys, and each signed record selects
// its own non-hardened leaf under a base via the record's content digest.
package hdkey

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/tyler-smith/go-bip32"
)

// Purpose is the fixed BIP32 purpose segment namespacing sigil derivation
// apart from wallets and other protocols sharing a seed. ASCII "sig".
const Purpose uint32 = 7563623

// SubPurpose selects what a key subtree is used for. Each sub-purpose is
// derived hardened, so disclosure of one subtree's keys exposes nothing
// about another's.
type SubPurpose uint32

const (
	Assertion SubPurpose = iota
	Encryption
	Delegation
	Revocation
)

func (sp SubPurpose) String() string {
	switch sp {
	case Assertion:
		return "assertion"
	case Encryption:
		return "encryption"
	case Delegation:
		return "delegation"
	case Revocation:
		return "revocation"
	}
	return fmt.Sprintf("sub-purpose(%d)", uint32(sp))
}

var (
	ErrInvalidPath           = errors.New("hdkey: invalid derivation path")
	ErrInvalidKeyMaterial    = errors.New("hdkey: invalid key material")
	ErrUnsupportedDerivation = errors.New("hdkey: hardened child cannot be derived from a public parent")
)

// DeriveBase derives the extended key pair at m/Purpose'/subPurpose'/account'.
// Every segment is hardened: the base for a (sub-purpose, account) scope can
// only ever be computed by the holder of the master seed.
func DeriveBase(seed []byte, sub SubPurpose, account uint32) (*bip32.Key, error) {
	if len(seed) < 16 || len(seed) > 64 {
		return nil, fmt.Errorf("%w: seed must be 16-64 bytes, got %d", ErrInvalidKeyMaterial, len(seed))
	}
	if account >= bip32.FirstHardenedChild {
		return nil, fmt.Errorf("%w: account %d out of range", ErrInvalidPath, account)
	}

	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}

	k := master
	for _, seg := range []uint32{Purpose, uint32(sub), account} {
		k, err = k.NewChildKey(bip32.FirstHardenedChild + seg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
		}
	}

	return k, nil
}

// DeriveLeaf derives the leaf key pair under a private base. Non-hardened is
// the default so verifiers can re-derive the public half from the published
// xpub; hardened leaves are reserved for keys whose public half must never be
// computable without the parent private key.
func DeriveLeaf(base *bip32.Key, index uint32, hardened bool) (*bip32.Key, error) {
	if base == nil {
		return nil, fmt.Errorf("%w: nil base key", ErrInvalidKeyMaterial)
	}
	if index >= bip32.FirstHardenedChild {
		return nil, fmt.Errorf("%w: leaf index %d exceeds 31 bits", ErrInvalidPath, index)
	}
	if hardened && !base.IsPrivate {
		return nil, ErrUnsupportedDerivation
	}

	child := index
	if hardened {
		child += bip32.FirstHardenedChild
	}

	leaf, err := base.NewChildKey(child)
	if err != nil {
		if errors.Is(err, bip32.ErrHardnedChildPublicKey) {
			return nil, ErrUnsupportedDerivation
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	return leaf, nil
}

// DerivePublicLeaf computes the public half of a non-hardened leaf from an
// extended public key alone. A hardened index fails with
// ErrUnsupportedDerivation by construction; that refusal is the security
// property binding-proof mode depends on, not a limitation to work around.
func DerivePublicLeaf(xpub *bip32.Key, index uint32) (*btcec.PublicKey, error) {
	if xpub == nil {
		return nil, fmt.Errorf("%w: nil xpub", ErrInvalidKeyMaterial)
	}
	if xpub.IsPrivate {
		return nil, fmt.Errorf("%w: expected an extended public key", ErrInvalidKeyMaterial)
	}
	if index >= bip32.FirstHardenedChild {
		return nil, ErrUnsupportedDerivation
	}

	child, err := xpub.NewChildKey(index)
	if err != nil {
		if errors.Is(err, bip32.ErrHardnedChildPublicKey) {
			return nil, ErrUnsupportedDerivation
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	pub, err := btcec.ParsePubKey(child.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}

	return pub, nil
}

// ParseXpub deserializes a base58-serialized extended public key as published
// in a verification method. Private extended keys are rejected: they must
// never appear in a published artifact.
func ParseXpub(s string) (*bip32.Key, error) {
	k, err := bip32.B58Deserialize(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	if k.IsPrivate {
		return nil, fmt.Errorf("%w: extended private key where xpub expected", ErrInvalidKeyMaterial)
	}
	return k, nil
}

// PrivateKey extracts the secp256k1 private key from a private leaf.
func PrivateKey(leaf *bip32.Key) (*btcec.PrivateKey, error) {
	if leaf == nil || !leaf.IsPrivate {
		return nil, fmt.Errorf("%w: private leaf required", ErrInvalidKeyMaterial)
	}
	priv, _ := btcec.PrivKeyFromBytes(leaf.Key)
	return priv, nil
}

// PublicKey extracts the secp256k1 public key from a leaf, private or public.
func PublicKey(leaf *bip32.Key) (*btcec.PublicKey, error) {
	if leaf == nil {
		return nil, fmt.Errorf("%w: nil leaf", ErrInvalidKeyMaterial)
	}
	pub := leaf
	if leaf.IsPrivate {
		pub = leaf.PublicKey()
	}
	parsed, err := btcec.ParsePubKey(pub.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyMaterial, err)
	}
	return parsed, nil
}
