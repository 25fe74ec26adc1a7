package identity

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/mr-tron/base58"
	"github.com/sigilpub/sigil/payload"
)

const (
	didPrefix    = "did:sigil:"
	didKeyPrefix = "did:key:"

	contextDIDCore = "https://www.w3.org/ns/did/v1"
	contextSigil   = "https://sigil.pub/ns/identity/v1"
)

// CanonicalBytes serializes the document with sorted keys and no whitespace.
// Document hashing, version ids, and the genesis DID all start here.
func (d *Document) CanonicalBytes() ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var norm map[string]any
	if err := json.Unmarshal(b, &norm); err != nil {
		return nil, err
	}
	return payload.CanonicalJSON(norm)
}

// VersionId is the content hash naming this exact document version.
func (d *Document) VersionId() (string, error) {
	canon, err := d.CanonicalBytes()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

// Method returns the verification method with the given id, matching either
// the full id or its fragment.
func (d *Document) Method(id string) *VerificationMethod {
	for i := range d.VerificationMethod {
		vm := &d.VerificationMethod[i]
		if vm.Id == id || strings.TrimPrefix(vm.Id, d.Id) == id {
			return vm
		}
	}
	return nil
}

// AssertionMethodFor returns the first non-revoked assertion method matching
// the scope, preferring the document-declared assertionMethod order.
func (d *Document) AssertionMethodFor(subPurpose, account uint32) *VerificationMethod {
	for _, ref := range d.AssertionMethod {
		vm := d.Method(ref)
		if vm != nil && !vm.Revoked && vm.SubPurpose == subPurpose && vm.Account == account {
			return vm
		}
	}
	for i := range d.VerificationMethod {
		vm := &d.VerificationMethod[i]
		if !vm.Revoked && vm.SubPurpose == subPurpose && vm.Account == account {
			return vm
		}
	}
	return nil
}

// DIDForGenesis derives the permanent identifier from the canonical bytes of
// the genesis document: a truncated base32 sha256, stable for the lifetime
// of the identity no matter how many versions follow.
func DIDForGenesis(genesis *Document) (string, error) {
	g := *genesis
	g.Id = ""
	canon, err := g.CanonicalBytes()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canon)
	b32 := strings.ToLower(base32.StdEncoding.EncodeToString(sum[:]))
	return didPrefix + b32[0:24], nil
}

// DIDKeyForPublicKey encodes a bare public key as a did:key identifier with
// a base58btc multibase body. Legacy single-key identities are named this way.
func DIDKeyForPublicKey(pub *btcec.PublicKey) string {
	return didKeyPrefix + MultibaseForPublicKey(pub)
}

// MultibaseForPublicKey encodes a compressed secp256k1 public key as
// base58btc multibase (leading "z").
func MultibaseForPublicKey(pub *btcec.PublicKey) string {
	return "z" + base58.Encode(pub.SerializeCompressed())
}

// ParseMultibaseKey decodes a base58btc multibase public key.
func ParseMultibaseKey(s string) (*btcec.PublicKey, error) {
	if !strings.HasPrefix(s, "z") {
		return nil, fmt.Errorf("unsupported multibase prefix in %q", s)
	}
	raw, err := base58.Decode(s[1:])
	if err != nil {
		return nil, err
	}
	return btcec.ParsePubKey(raw)
}

// IsDID reports whether id looks like a sigil or did:key identifier.
func IsDID(id string) bool {
	return strings.HasPrefix(id, didPrefix) || strings.HasPrefix(id, didKeyPrefix)
}
