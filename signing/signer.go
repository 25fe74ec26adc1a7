// Package signing turns payloads into signed payloads. Signing is pure
// computation: no I/O, no shared state, safe to call from any number of
// goroutines at once.
package signing

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/sigilpub/sigil/hdkey"
	"github.com/sigilpub/sigil/payload"
)

// Sign canonicalizes the payload's pre-signature view, derives the leaf key
// selected by the content digest, and signs with deterministic RFC 6979
// ECDSA over secp256k1. The signature is normalized to its low-S form; only
// that form verifies, which closes off malleability-based record duplication.
//
// Attached tags: signature (base64url compact R||S), key-index (decimal),
// payload-digest (hex, an audit convenience), creator (the signing DID).
func Sign(p *payload.Payload, seed []byte, did string, sub hdkey.SubPurpose, account uint32) (*payload.Payload, error) {
	signed, err := p.Clone()
	if err != nil {
		return nil, err
	}

	// The creator tag is signed content; it has to be in place before the
	// digest is taken or verifiers would recompute a different one.
	signed.SetTag(payload.TagCreator, did)

	digest, err := payload.Digest(signed)
	if err != nil {
		return nil, err
	}

	index := hdkey.IndexFromDigest(digest)

	base, err := hdkey.DeriveBase(seed, sub, account)
	if err != nil {
		return nil, err
	}

	leaf, err := hdkey.DeriveLeaf(base, index, false)
	if err != nil {
		return nil, err
	}

	priv, err := hdkey.PrivateKey(leaf)
	if err != nil {
		return nil, err
	}

	sig := SignDigest(priv, digest)

	signed.SetTag(payload.TagSignature, base64.RawURLEncoding.EncodeToString(sig))
	signed.SetTag(payload.TagKeyIndex, strconv.FormatUint(uint64(index), 10))
	signed.SetTag(payload.TagPayloadDigest, hex.EncodeToString(digest[:]))

	return signed, nil
}

// SignDigest signs a 32-byte digest and returns the 64-byte compact R||S
// form. btcec's signer is RFC 6979 deterministic-nonce and always emits
// low-S, so the output is already canonical.
func SignDigest(priv *btcec.PrivateKey, digest [32]byte) []byte {
	sig := ecdsa.Sign(priv, digest[:])

	out := make([]byte, 64)
	r := sig.R()
	s := sig.S()
	rb := r.Bytes()
	sb := s.Bytes()
	copy(out[:32], rb[:])
	copy(out[32:], sb[:])
	return out
}

// VerifyDigest checks a compact R||S signature against a digest and public
// key. High-S signatures are rejected outright: accepting both S and its
// negation would let anyone mint a second "distinct" signature for the same
// record.
func VerifyDigest(sig []byte, digest [32]byte, pub *btcec.PublicKey) error {
	if len(sig) != 64 {
		return fmt.Errorf("signature must be 64 bytes, got %d", len(sig))
	}

	var r, s btcec.ModNScalar
	if overflow := r.SetByteSlice(sig[:32]); overflow {
		return fmt.Errorf("signature R out of range")
	}
	if overflow := s.SetByteSlice(sig[32:]); overflow {
		return fmt.Errorf("signature S out of range")
	}
	if s.IsOverHalfOrder() {
		return fmt.Errorf("signature S is not in canonical low-S form")
	}

	if !ecdsa.NewSignature(&r, &s).Verify(digest[:], pub) {
		return fmt.Errorf("signature does not verify")
	}
	return nil
}
