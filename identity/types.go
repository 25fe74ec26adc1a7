package identity

import "time"

// Key binding policies a verification method can declare. The policy picks
// which verification mode applies to signatures made under the method.
const (
	PolicyXpub         = "xpub-derivation"
	PolicyBindingProof = "binding-proof"
	PolicySingleKey    = "single-key"
)

// Verification method types.
const (
	TypeHDVerificationKey = "SigilHierarchicalVerificationKey2024"
	TypeSingleKey         = "EcdsaSecp256k1VerificationKey2019"
)

// Document is one immutable version of an identity document. Publishing a
// new version supersedes it but never rewrites it; superseded versions stay
// resolvable so old signatures remain verifiable.
type Document struct {
	Context            []string             `json:"@context"`
	Id                 string               `json:"id"`
	Controller         string               `json:"controller,omitempty"`
	AlsoKnownAs        []string             `json:"alsoKnownAs,omitempty"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
	Authentication     []string             `json:"authentication,omitempty"`
	AssertionMethod    []string             `json:"assertionMethod,omitempty"`
	KeyAgreement       []string             `json:"keyAgreement,omitempty"`
	Service            []Service            `json:"service,omitempty"`
	Profile            map[string]string    `json:"profile,omitempty"`
}

type Service struct {
	Id              string `json:"id"`
	Type            string `json:"type"`
	ServiceEndpoint string `json:"serviceEndpoint"`
}

// VerificationMethod is an append-only record of one published key. Only
// Revoked and Expires are ever mutated; a method is never deleted, because
// every signature ever made under it must stay checkable.
type VerificationMethod struct {
	Id                 string        `json:"id"`
	Type               string        `json:"type"`
	Controller         string        `json:"controller"`
	PublicKeyMultibase string        `json:"publicKeyMultibase,omitempty"`
	Xpub               string        `json:"xpub,omitempty"`
	SubPurpose         uint32        `json:"subPurpose"`
	Account            uint32        `json:"account"`
	PathPrefix         string        `json:"pathPrefix,omitempty"`
	Hardened           bool          `json:"hardened,omitempty"`
	KeyBindingPolicy   string        `json:"keyBindingPolicy"`
	Created            time.Time     `json:"created"`
	Expires            *time.Time    `json:"expires,omitempty"`
	Revoked            bool          `json:"revoked,omitempty"`
	BindingProof       *BindingProof `json:"bindingProof,omitempty"`
}

// BindingProof is a signed attestation from a parent key vouching for one
// specific hardened child public key. It exists because hardened children
// cannot be re-derived from the published xpub.
type BindingProof struct {
	Child     string `json:"child"`   // multibase child public key
	Ordinal   uint32 `json:"ordinal"` // rollover ordinal declared by the parent
	Signature string `json:"signature"`
}

// LegacyRecord is a pre-migration single-key identity: one did:key
// identifier backed by one bare public key, with no derivation metadata.
type LegacyRecord struct {
	Id                 string    `json:"id"`
	PublicKeyMultibase string    `json:"publicKeyMultibase"`
	Created            time.Time `json:"created"`
}
