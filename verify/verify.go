// Package verify checks signed payloads against published verification
// methods. Two independent trust modes exist: re-deriving the leaf public
// key from the method's xpub, and checking a parent-signed binding proof for
// hardened leaves that cannot be re-derived. Either way the rollover tracker
// has the last word.
package verify

import (
	"encoding/base64"
	"strconv"
	"time"

	"github.com/sigilpub/sigil/hdkey"
	"github.com/sigilpub/sigil/identity"
	"github.com/sigilpub/sigil/payload"
	"github.com/sigilpub/sigil/rollover"
	"github.com/sigilpub/sigil/signing"
)

// Verify checks one signed payload against one verification method,
// dispatching on the method's declared key binding policy. It never panics
// or returns an error: malformed input is itself a failed verification.
func Verify(p *payload.Payload, method *identity.VerificationMethod, tracker rollover.Tracker) Outcome {
	if p == nil {
		return Fail(ReasonMalformedPayload, "nil payload")
	}
	if method == nil {
		return Fail(ReasonUnknownIdentity, "no verification method")
	}

	if method.Revoked {
		return Fail(ReasonRevokedKey, "verification method is revoked")
	}
	if method.Expires != nil && time.Now().After(*method.Expires) {
		return Fail(ReasonExpired, "verification method expired "+method.Expires.Format(time.RFC3339))
	}

	sigRaw, outcome := signatureBytes(p)
	if !outcome.Valid {
		return outcome
	}

	digest, err := payload.Digest(p)
	if err != nil {
		return Fail(ReasonMalformedPayload, err.Error())
	}

	switch method.KeyBindingPolicy {
	case identity.PolicyXpub:
		return verifyXpub(p, method, tracker, sigRaw, digest)
	case identity.PolicyBindingProof:
		return verifyBindingProof(p, method, tracker, sigRaw, digest)
	case identity.PolicySingleKey:
		return verifySingleKey(method, sigRaw, digest)
	}
	return Fail(ReasonUnknownIdentity, "unknown key binding policy "+method.KeyBindingPolicy)
}

// Mode A: the leaf index is a pure function of the content digest, and the
// leaf public key is re-derivable from the published xpub. The payload's
// declared index must agree with the recomputed one, otherwise an attacker
// could graft a valid-looking index from another signing context.
func verifyXpub(p *payload.Payload, method *identity.VerificationMethod, tracker rollover.Tracker, sig []byte, digest [32]byte) Outcome {
	declared, outcome := declaredIndex(p)
	if !outcome.Valid {
		return outcome
	}

	expected := hdkey.IndexFromDigest(digest)
	if declared != expected {
		return Fail(ReasonIndexMismatch, "declared index "+strconv.FormatUint(uint64(declared), 10)+
			" does not match digest-derived index "+strconv.FormatUint(uint64(expected), 10))
	}

	xpub, err := hdkey.ParseXpub(method.Xpub)
	if err != nil {
		return Fail(ReasonUnknownIdentity, "method xpub: "+err.Error())
	}

	pub, err := hdkey.DerivePublicLeaf(xpub, expected)
	if err != nil {
		return Fail(ReasonUnknownIdentity, "leaf derivation: "+err.Error())
	}

	if err := signing.VerifyDigest(sig, digest, pub); err != nil {
		return Fail(ReasonBadSignature, err.Error())
	}

	return checkRollover(method, tracker, expected)
}

// Mode B: the leaf is hardened, so its public key cannot come from the xpub.
// Trust flows through the parent's attestation instead: first the binding
// proof is checked against the parent key, then the record signature against
// the attested child.
func verifyBindingProof(p *payload.Payload, method *identity.VerificationMethod, tracker rollover.Tracker, sig []byte, digest [32]byte) Outcome {
	proof := method.BindingProof
	if proof == nil {
		return Fail(ReasonAttestationInvalid, "method declares binding-proof policy but carries no proof")
	}
	if method.PublicKeyMultibase != "" && proof.Child != method.PublicKeyMultibase {
		return Fail(ReasonAttestationInvalid, "binding proof attests a different key than the method publishes")
	}

	xpub, err := hdkey.ParseXpub(method.Xpub)
	if err != nil {
		return Fail(ReasonAttestationInvalid, "parent xpub: "+err.Error())
	}
	parentPub, err := hdkey.PublicKey(xpub)
	if err != nil {
		return Fail(ReasonAttestationInvalid, "parent key: "+err.Error())
	}

	stmt, err := identity.BindingStatementDigest(proof.Child, method.Controller, method.SubPurpose, method.Account, proof.Ordinal)
	if err != nil {
		return Fail(ReasonAttestationInvalid, err.Error())
	}

	proofSig, err := base64.RawURLEncoding.DecodeString(proof.Signature)
	if err != nil {
		return Fail(ReasonAttestationInvalid, "proof signature encoding: "+err.Error())
	}

	if err := signing.VerifyDigest(proofSig, stmt, parentPub); err != nil {
		return Fail(ReasonAttestationInvalid, err.Error())
	}

	childPub, err := identity.ParseMultibaseKey(proof.Child)
	if err != nil {
		return Fail(ReasonAttestationInvalid, "attested child key: "+err.Error())
	}

	declared, outcome := declaredIndex(p)
	if !outcome.Valid {
		return outcome
	}
	if declared != proof.Ordinal {
		return Fail(ReasonIndexMismatch, "payload declares ordinal "+strconv.FormatUint(uint64(declared), 10)+
			" but the binding proof attests "+strconv.FormatUint(uint64(proof.Ordinal), 10))
	}

	if err := signing.VerifyDigest(sig, digest, childPub); err != nil {
		return Fail(ReasonBadSignature, err.Error())
	}

	return checkRollover(method, tracker, proof.Ordinal)
}

// Legacy single-key identities predate derivation entirely: one bare key,
// no index, no rollover.
func verifySingleKey(method *identity.VerificationMethod, sig []byte, digest [32]byte) Outcome {
	pub, err := identity.ParseMultibaseKey(method.PublicKeyMultibase)
	if err != nil {
		return Fail(ReasonUnknownIdentity, "method key: "+err.Error())
	}
	if err := signing.VerifyDigest(sig, digest, pub); err != nil {
		return Fail(ReasonBadSignature, err.Error())
	}
	return Ok()
}

func checkRollover(method *identity.VerificationMethod, tracker rollover.Tracker, index uint32) Outcome {
	if tracker == nil {
		return Ok()
	}
	scope := rollover.Scope{
		Did:        method.Controller,
		SubPurpose: method.SubPurpose,
		Account:    method.Account,
	}
	if burned := tracker.Observe(scope, index); burned {
		high, _ := tracker.Highest(scope)
		return Fail(ReasonKeyBurned, "index "+strconv.FormatUint(uint64(index), 10)+
			" is below the observed high-water mark "+strconv.FormatUint(uint64(high), 10))
	}
	return Ok()
}

func signatureBytes(p *payload.Payload) ([]byte, Outcome) {
	sigTag, ok := p.Tag(payload.TagSignature)
	if !ok {
		return nil, Fail(ReasonMalformedPayload, "payload carries no signature tag")
	}
	raw, err := base64.RawURLEncoding.DecodeString(sigTag)
	if err != nil {
		return nil, Fail(ReasonMalformedPayload, "signature encoding: "+err.Error())
	}
	return raw, Ok()
}

func declaredIndex(p *payload.Payload) (uint32, Outcome) {
	idxTag, ok := p.Tag(payload.TagKeyIndex)
	if !ok {
		return 0, Fail(ReasonMalformedPayload, "payload carries no key-index tag")
	}
	idx, err := strconv.ParseUint(idxTag, 10, 32)
	if err != nil || idx > 0x7fffffff {
		return 0, Fail(ReasonMalformedPayload, "key-index tag is not a 31-bit integer")
	}
	return uint32(idx), Ok()
}
