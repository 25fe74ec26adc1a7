package identity

import (
	"crypto/sha256"

	"github.com/sigilpub/sigil/payload"
)

// BindingStatementDigest computes the digest a parent key signs to attest a
// hardened child. The statement is canonical JSON so signer and verifier
// arrive at identical bytes from the same five fields.
func BindingStatementDigest(child, controller string, subPurpose, account, ordinal uint32) ([32]byte, error) {
	canon, err := payload.CanonicalJSON(map[string]any{
		"account":    account,
		"child":      child,
		"controller": controller,
		"ordinal":    ordinal,
		"subPurpose": subPurpose,
	})
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(canon), nil
}
