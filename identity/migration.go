package identity

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
)

// DocumentWriter appends new document versions. Versions are immutable;
// "updating" an identity only ever means publishing another version and
// moving the current pointer.
type DocumentWriter interface {
	PutDocumentVersion(ctx context.Context, doc *Document) (versionId string, err error)
	LinkLegacy(ctx context.Context, legacyId, did string) error
}

// MigrationService links a legacy single-key identity to a multi-key
// identity document. Migration is additive: records signed before migration
// keep verifying against the legacy record, and nothing in history is
// invalidated.
type MigrationService struct {
	store    Store
	writer   DocumentWriter
	resolver *Resolver
	logger   *slog.Logger
}

func NewMigrationService(store Store, writer DocumentWriter, resolver *Resolver, logger *slog.Logger) *MigrationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MigrationService{store: store, writer: writer, resolver: resolver, logger: logger}
}

// MigrateLegacy publishes a new version of newDid's document whose
// alsoKnownAs carries the legacy identifier and whose method set gains the
// legacy key as a historical single-key method. Idempotent: migrating the
// same pair twice publishes nothing new.
func (m *MigrationService) MigrateLegacy(ctx context.Context, legacy *LegacyRecord, newDid string) (*Document, error) {
	if legacy == nil || legacy.Id == "" || legacy.PublicKeyMultibase == "" {
		return nil, fmt.Errorf("incomplete legacy record")
	}

	doc, err := m.store.GetDocument(ctx, newDid)
	if err != nil {
		return nil, fmt.Errorf("loading document for %s: %w", newDid, err)
	}

	if slices.Contains(doc.AlsoKnownAs, legacy.Id) {
		return doc, nil
	}

	next := *doc
	next.AlsoKnownAs = append(slices.Clone(doc.AlsoKnownAs), legacy.Id)
	next.VerificationMethod = append(slices.Clone(doc.VerificationMethod), VerificationMethod{
		Id:                 doc.Id + "#legacy-0",
		Type:               TypeSingleKey,
		Controller:         doc.Id,
		PublicKeyMultibase: legacy.PublicKeyMultibase,
		KeyBindingPolicy:   PolicySingleKey,
		Created:            legacy.Created,
	})

	versionId, err := m.writer.PutDocumentVersion(ctx, &next)
	if err != nil {
		return nil, fmt.Errorf("publishing migrated document: %w", err)
	}

	if err := m.writer.LinkLegacy(ctx, legacy.Id, doc.Id); err != nil {
		return nil, fmt.Errorf("linking legacy identifier: %w", err)
	}

	if m.resolver != nil {
		m.resolver.Bust(doc.Id)
		m.resolver.Bust(legacy.Id)
	}

	m.logger.Info("migrated legacy identity", "legacy", legacy.Id, "did", doc.Id, "version", versionId)

	return &next, nil
}
