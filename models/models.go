package models

import "time"

// Identity is a publisher custodied by this node: master seed, credentials,
// and the pointer to the current document version.
type Identity struct {
	Did            string `gorm:"primaryKey"`
	CreatedAt      time.Time
	Handle         string `gorm:"uniqueIndex"`
	Password       string
	Seed           []byte
	CurrentVersion string
}

// DocumentVersion is one immutable identity document version, named by its
// content hash. Rows are only ever inserted.
type DocumentVersion struct {
	VersionId string `gorm:"primaryKey"`
	Did       string `gorm:"index"`
	CreatedAt time.Time
	Value     []byte
}

// VerificationMethodRecord is an append-only published key. Revoked is the
// only mutable column; rows are never deleted so historical signatures stay
// verifiable.
type VerificationMethodRecord struct {
	Ref       string `gorm:"primaryKey"`
	Did       string `gorm:"index"`
	CreatedAt time.Time
	Revoked   bool
	Value     []byte
}

// PayloadRecord is an anchored signed payload, keyed by the CID of its
// canonical bytes. Append-only.
type PayloadRecord struct {
	Ref       string `gorm:"primaryKey"`
	Did       string `gorm:"index"`
	CreatedAt time.Time
	Value     []byte
}

// RolloverState persists a node's local high-water mark per identity scope.
// Observational only; it records what this node has seen, not consensus.
type RolloverState struct {
	Did              string `gorm:"primaryKey"`
	SubPurpose       uint32 `gorm:"primaryKey"`
	Account          uint32 `gorm:"primaryKey"`
	HighestUsedIndex uint32
	UpdatedAt        time.Time
}

// LegacyIdentity is a pre-migration single-key identity record, optionally
// linked to the multi-key DID that superseded it.
type LegacyIdentity struct {
	Id        string `gorm:"primaryKey"`
	Did       string `gorm:"index"`
	PublicKey string
	CreatedAt time.Time
}
