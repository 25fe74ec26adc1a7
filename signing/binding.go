package signing

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/sigilpub/sigil/hdkey"
	"github.com/sigilpub/sigil/identity"
	"github.com/sigilpub/sigil/payload"
)

// NewHardenedMethod derives the hardened leaf at the given ordinal and
// publishes it as a verification method carrying a binding proof: the base
// key's signed attestation that this exact child public key is its
// authorized child. Hardened children cannot be re-derived from the xpub, so
// the proof is the only way a verifier can trust the key.
func NewHardenedMethod(seed []byte, did string, sub hdkey.SubPurpose, account uint32, ordinal uint32) (*identity.VerificationMethod, error) {
	base, err := hdkey.DeriveBase(seed, sub, account)
	if err != nil {
		return nil, err
	}

	leaf, err := hdkey.DeriveLeaf(base, ordinal, true)
	if err != nil {
		return nil, err
	}

	childPub, err := hdkey.PublicKey(leaf)
	if err != nil {
		return nil, err
	}
	child := identity.MultibaseForPublicKey(childPub)

	stmt, err := identity.BindingStatementDigest(child, did, uint32(sub), account, ordinal)
	if err != nil {
		return nil, err
	}

	basePriv, err := hdkey.PrivateKey(base)
	if err != nil {
		return nil, err
	}

	proofSig := SignDigest(basePriv, stmt)

	return &identity.VerificationMethod{
		Id:                 fmt.Sprintf("%s#%s-%d-h%d", did, sub, account, ordinal),
		Type:               identity.TypeHDVerificationKey,
		Controller:         did,
		PublicKeyMultibase: child,
		Xpub:               base.PublicKey().B58Serialize(),
		SubPurpose:         uint32(sub),
		Account:            account,
		PathPrefix:         fmt.Sprintf("m/%d'/%d'/%d'", hdkey.Purpose, uint32(sub), account),
		Hardened:           true,
		KeyBindingPolicy:   identity.PolicyBindingProof,
		Created:            time.Now().UTC(),
		BindingProof: &identity.BindingProof{
			Child:     child,
			Ordinal:   ordinal,
			Signature: base64.RawURLEncoding.EncodeToString(proofSig),
		},
	}, nil
}

// SignHardened signs a payload with the hardened leaf at the given ordinal.
// Unlike the xpub path the leaf is not selected by the content digest; the
// key-index tag carries the ordinal declared in the method's binding proof.
func SignHardened(p *payload.Payload, seed []byte, did string, sub hdkey.SubPurpose, account uint32, ordinal uint32) (*payload.Payload, error) {
	signed, err := p.Clone()
	if err != nil {
		return nil, err
	}

	// Creator first, same as the soft path: it is signed content.
	signed.SetTag(payload.TagCreator, did)

	digest, err := payload.Digest(signed)
	if err != nil {
		return nil, err
	}

	base, err := hdkey.DeriveBase(seed, sub, account)
	if err != nil {
		return nil, err
	}

	leaf, err := hdkey.DeriveLeaf(base, ordinal, true)
	if err != nil {
		return nil, err
	}

	priv, err := hdkey.PrivateKey(leaf)
	if err != nil {
		return nil, err
	}

	sig := SignDigest(priv, digest)

	signed.SetTag(payload.TagSignature, base64.RawURLEncoding.EncodeToString(sig))
	signed.SetTag(payload.TagKeyIndex, strconv.FormatUint(uint64(ordinal), 10))
	signed.SetTag(payload.TagPayloadDigest, hex.EncodeToString(digest[:]))

	return signed, nil
}
