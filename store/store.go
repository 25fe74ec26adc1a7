// Package store is the gorm-backed record anchor: append-only payloads
// addressed by content id, append-only document versions and verification
// methods, and the node's persisted rollover view.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/sigilpub/sigil/identity"
	"github.com/sigilpub/sigil/models"
	"github.com/sigilpub/sigil/payload"
	"github.com/sigilpub/sigil/rollover"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

func New(db *gorm.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// RefForPayload computes the content-addressed ref of a payload: a CIDv1
// over the sha2-256 of its canonical bytes, signature tags included. The ref
// names the anchored artifact, so it covers the whole signed payload.
func RefForPayload(p *payload.Payload) (string, error) {
	canon, err := payload.Canonicalize(p)
	if err != nil {
		return "", err
	}
	mh, err := multihash.Sum(canon, multihash.SHA2_256, -1)
	if err != nil {
		return "", err
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

// PutPayload anchors a signed payload and returns its ref. Re-anchoring the
// same payload is a no-op returning the same ref.
func (s *Store) PutPayload(ctx context.Context, did string, p *payload.Payload) (string, error) {
	ref, err := RefForPayload(p)
	if err != nil {
		return "", err
	}

	value, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	rec := models.PayloadRecord{
		Ref:       ref,
		Did:       did,
		CreatedAt: time.Now().UTC(),
		Value:     value,
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
		return "", err
	}

	return ref, nil
}

func (s *Store) FetchPayload(ctx context.Context, ref string) (*payload.Payload, error) {
	var rec models.PayloadRecord
	if err := s.db.WithContext(ctx).First(&rec, models.PayloadRecord{Ref: ref}).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, err
	}
	var p payload.Payload
	if err := json.Unmarshal(rec.Value, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- identity.Store ---

func (s *Store) GetDocument(ctx context.Context, did string) (*identity.Document, error) {
	var ident models.Identity
	if err := s.db.WithContext(ctx).First(&ident, models.Identity{Did: did}).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, err
	}
	return s.GetDocumentVersion(ctx, ident.CurrentVersion)
}

// GetDocumentVersion loads one immutable version by its content hash.
// Superseded versions stay resolvable here for historical verification.
func (s *Store) GetDocumentVersion(ctx context.Context, versionId string) (*identity.Document, error) {
	var ver models.DocumentVersion
	if err := s.db.WithContext(ctx).First(&ver, models.DocumentVersion{VersionId: versionId}).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, err
	}
	var doc identity.Document
	if err := json.Unmarshal(ver.Value, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) GetDocumentByAlias(ctx context.Context, alias string) (*identity.Document, error) {
	var legacy models.LegacyIdentity
	if err := s.db.WithContext(ctx).First(&legacy, models.LegacyIdentity{Id: alias}).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, err
	}
	if legacy.Did == "" {
		return nil, identity.ErrNotFound
	}
	return s.GetDocument(ctx, legacy.Did)
}

func (s *Store) GetVerificationMethod(ctx context.Context, ref string) (*identity.VerificationMethod, error) {
	var rec models.VerificationMethodRecord
	if err := s.db.WithContext(ctx).First(&rec, models.VerificationMethodRecord{Ref: ref}).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, err
	}
	var vm identity.VerificationMethod
	if err := json.Unmarshal(rec.Value, &vm); err != nil {
		return nil, err
	}
	if rec.Revoked {
		vm.Revoked = true
	}
	return &vm, nil
}

func (s *Store) GetLegacyRecord(ctx context.Context, id string) (*identity.LegacyRecord, error) {
	var legacy models.LegacyIdentity
	if err := s.db.WithContext(ctx).First(&legacy, models.LegacyIdentity{Id: id}).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, identity.ErrNotFound
		}
		return nil, err
	}
	return &identity.LegacyRecord{
		Id:                 legacy.Id,
		PublicKeyMultibase: legacy.PublicKey,
		Created:            legacy.CreatedAt,
	}, nil
}

// --- identity.DocumentWriter ---

// PutDocumentVersion appends a new immutable version, moves the identity's
// current pointer to it, and upserts the document's verification methods
// into the append-only method table.
func (s *Store) PutDocumentVersion(ctx context.Context, doc *identity.Document) (string, error) {
	versionId, err := doc.VersionId()
	if err != nil {
		return "", err
	}

	value, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ver := models.DocumentVersion{
			VersionId: versionId,
			Did:       doc.Id,
			CreatedAt: time.Now().UTC(),
			Value:     value,
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&ver).Error; err != nil {
			return err
		}

		for _, vm := range doc.VerificationMethod {
			vmValue, err := json.Marshal(vm)
			if err != nil {
				return err
			}
			rec := models.VerificationMethodRecord{
				Ref:       vm.Id,
				Did:       doc.Id,
				CreatedAt: time.Now().UTC(),
				Revoked:   vm.Revoked,
				Value:     vmValue,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.Identity{}).Where("did = ?", doc.Id).
			Update("current_version", versionId).Error
	})
	if err != nil {
		return "", err
	}

	return versionId, nil
}

// CreateLegacyRecord registers a pre-migration single-key identity. No-op
// if the record already exists.
func (s *Store) CreateLegacyRecord(ctx context.Context, rec *identity.LegacyRecord) error {
	row := models.LegacyIdentity{
		Id:        rec.Id,
		PublicKey: rec.PublicKeyMultibase,
		CreatedAt: rec.Created,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (s *Store) LinkLegacy(ctx context.Context, legacyId, did string) error {
	return s.db.WithContext(ctx).Model(&models.LegacyIdentity{}).
		Where("id = ?", legacyId).Update("did", did).Error
}

// RevokeVerificationMethod flips the only mutable bit a method has.
func (s *Store) RevokeVerificationMethod(ctx context.Context, ref string) error {
	return s.db.WithContext(ctx).Model(&models.VerificationMethodRecord{}).
		Where("ref = ?", ref).Update("revoked", true).Error
}

// --- rollover.Tracker ---

// DBTracker persists the node's rollover view so it survives restarts. Same
// semantics as the in-memory tracker: monotonic, idempotent, local.
type DBTracker struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewDBTracker(db *gorm.DB, logger *slog.Logger) *DBTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &DBTracker{db: db, logger: logger}
}

func (t *DBTracker) Observe(scope rollover.Scope, index uint32) bool {
	burned := false
	err := t.db.Transaction(func(tx *gorm.DB) error {
		var state models.RolloverState
		// Struct conditions would drop zero-valued sub-purpose/account.
		err := tx.
			Where("did = ? AND sub_purpose = ? AND account = ?", scope.Did, scope.SubPurpose, scope.Account).
			First(&state).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err == nil && index < state.HighestUsedIndex {
			burned = true
			return nil
		}
		state = models.RolloverState{
			Did:              scope.Did,
			SubPurpose:       scope.SubPurpose,
			Account:          scope.Account,
			HighestUsedIndex: index,
			UpdatedAt:        time.Now().UTC(),
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "did"}, {Name: "sub_purpose"}, {Name: "account"}},
			DoUpdates: clause.AssignmentColumns([]string{"highest_used_index", "updated_at"}),
		}).Create(&state).Error
	})
	if err != nil {
		// A node that cannot read its own view must not burn valid records
		// on the strength of an I/O failure.
		t.logger.Error("rollover observe failed", "scope", fmt.Sprintf("%+v", scope), "error", err)
		return false
	}
	return burned
}

func (t *DBTracker) Highest(scope rollover.Scope) (uint32, bool) {
	var state models.RolloverState
	err := t.db.
		Where("did = ? AND sub_purpose = ? AND account = ?", scope.Did, scope.SubPurpose, scope.Account).
		First(&state).Error
	if err != nil {
		return 0, false
	}
	return state.HighestUsedIndex, true
}
