package identity

import (
	"context"
	"slices"
	"testing"
	"time"
)

func migrationFixture(t *testing.T) (*fakeStore, *MigrationService, *Document, *LegacyRecord) {
	t.Helper()

	doc, err := NewPublisherDocument(testSeed, nil)
	if err != nil {
		t.Fatalf("genesis failed: %v", err)
	}

	_, pub := legacyKeypair()
	legacy := &LegacyRecord{
		Id:                 DIDKeyForPublicKey(pub),
		PublicKeyMultibase: MultibaseForPublicKey(pub),
		Created:            time.Now().UTC().Add(-24 * time.Hour),
	}

	store := newFakeStore()
	store.docs[doc.Id] = doc
	store.legacy[legacy.Id] = legacy

	svc := NewMigrationService(store, store, NewResolver(store, nil, nil), nil)
	return store, svc, doc, legacy
}

func TestMigrateLegacyLinksAlias(t *testing.T) {
	store, svc, doc, legacy := migrationFixture(t)

	migrated, err := svc.MigrateLegacy(context.Background(), legacy, doc.Id)
	if err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	if !slices.Contains(migrated.AlsoKnownAs, legacy.Id) {
		t.Fatalf("alsoKnownAs = %v, missing %s", migrated.AlsoKnownAs, legacy.Id)
	}

	vm := migrated.Method(doc.Id + "#legacy-0")
	if vm == nil {
		t.Fatal("migrated document should carry the legacy key as a method")
	}
	if vm.KeyBindingPolicy != PolicySingleKey || vm.PublicKeyMultibase != legacy.PublicKeyMultibase {
		t.Fatalf("legacy method carried wrong policy or key: %s %s", vm.KeyBindingPolicy, vm.PublicKeyMultibase)
	}
	if !vm.Created.Equal(legacy.Created) {
		t.Fatal("legacy method should keep the original key's creation time")
	}

	// The legacy identifier now resolves to the migrated document.
	res, err := NewResolver(store, nil, nil).Resolve(context.Background(), legacy.Id)
	if err != nil {
		t.Fatalf("resolving legacy id after migration: %v", err)
	}
	if res.Document.Id != doc.Id {
		t.Fatalf("legacy id resolved to %s, want %s", res.Document.Id, doc.Id)
	}
}

func TestMigrateLegacyIdempotent(t *testing.T) {
	store, svc, doc, legacy := migrationFixture(t)

	first, err := svc.MigrateLegacy(context.Background(), legacy, doc.Id)
	if err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	putsAfterFirst := store.puts

	second, err := svc.MigrateLegacy(context.Background(), legacy, doc.Id)
	if err != nil {
		t.Fatalf("repeat migration failed: %v", err)
	}
	if store.puts != putsAfterFirst {
		t.Fatal("repeat migration must not publish another version")
	}
	if len(second.VerificationMethod) != len(first.VerificationMethod) {
		t.Fatal("repeat migration must not duplicate the legacy method")
	}
}

func TestMigrateLegacyPreservesExistingMethods(t *testing.T) {
	_, svc, doc, legacy := migrationFixture(t)
	before := len(doc.VerificationMethod)

	migrated, err := svc.MigrateLegacy(context.Background(), legacy, doc.Id)
	if err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	if len(migrated.VerificationMethod) != before+1 {
		t.Fatalf("method count = %d, want %d", len(migrated.VerificationMethod), before+1)
	}
	for _, vm := range doc.VerificationMethod {
		if migrated.Method(vm.Id) == nil {
			t.Fatalf("pre-migration method %s dropped", vm.Id)
		}
	}
	if len(doc.VerificationMethod) != before {
		t.Fatal("migration must not mutate the prior version in place")
	}
}

func TestMigrateLegacyRejectsIncompleteRecord(t *testing.T) {
	_, svc, doc, _ := migrationFixture(t)

	if _, err := svc.MigrateLegacy(context.Background(), nil, doc.Id); err == nil {
		t.Fatal("nil legacy record should be rejected")
	}
	if _, err := svc.MigrateLegacy(context.Background(), &LegacyRecord{Id: "did:key:zabc"}, doc.Id); err == nil {
		t.Fatal("legacy record without a key should be rejected")
	}
}

func TestMigrateLegacyUnknownTarget(t *testing.T) {
	_, svc, _, legacy := migrationFixture(t)

	if _, err := svc.MigrateLegacy(context.Background(), legacy, "did:sigil:nobodyhome000000000000"); err == nil {
		t.Fatal("migration to an unknown identity should fail")
	}
}
