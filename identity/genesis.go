package identity

import (
	"fmt"
	"time"

	"github.com/sigilpub/sigil/hdkey"
)

// NewPublisherDocument builds the genesis document for a fresh master seed:
// an assertion xpub and a key-agreement xpub at account 0, both at hardened
// base paths, with the DID derived from the genesis content itself. The seed
// never leaves this function; only extended public keys end up in the
// document.
func NewPublisherDocument(seed []byte, profile map[string]string) (*Document, error) {
	now := time.Now().UTC()

	assertBase, err := hdkey.DeriveBase(seed, hdkey.Assertion, 0)
	if err != nil {
		return nil, fmt.Errorf("deriving assertion base: %w", err)
	}
	agreeBase, err := hdkey.DeriveBase(seed, hdkey.Encryption, 0)
	if err != nil {
		return nil, fmt.Errorf("deriving key-agreement base: %w", err)
	}

	doc := &Document{
		Context: []string{contextDIDCore, contextSigil},
		VerificationMethod: []VerificationMethod{
			{
				Id:               "#assert-0",
				Type:             TypeHDVerificationKey,
				Xpub:             assertBase.PublicKey().B58Serialize(),
				SubPurpose:       uint32(hdkey.Assertion),
				Account:          0,
				PathPrefix:       fmt.Sprintf("m/%d'/%d'/0'", hdkey.Purpose, uint32(hdkey.Assertion)),
				KeyBindingPolicy: PolicyXpub,
				Created:          now,
			},
			{
				Id:               "#agree-0",
				Type:             TypeHDVerificationKey,
				Xpub:             agreeBase.PublicKey().B58Serialize(),
				SubPurpose:       uint32(hdkey.Encryption),
				Account:          0,
				PathPrefix:       fmt.Sprintf("m/%d'/%d'/0'", hdkey.Purpose, uint32(hdkey.Encryption)),
				KeyBindingPolicy: PolicyXpub,
				Created:          now,
			},
		},
		Authentication:  []string{"#assert-0"},
		AssertionMethod: []string{"#assert-0"},
		KeyAgreement:    []string{"#agree-0"},
		Profile:         profile,
	}

	did, err := DIDForGenesis(doc)
	if err != nil {
		return nil, err
	}

	doc.Id = did
	doc.Controller = did
	for i := range doc.VerificationMethod {
		doc.VerificationMethod[i].Id = did + doc.VerificationMethod[i].Id
		doc.VerificationMethod[i].Controller = did
	}
	for i, ref := range doc.Authentication {
		doc.Authentication[i] = did + ref
	}
	for i, ref := range doc.AssertionMethod {
		doc.AssertionMethod[i] = did + ref
	}
	for i, ref := range doc.KeyAgreement {
		doc.KeyAgreement[i] = did + ref
	}

	return doc, nil
}
