package identity

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
)

var testSeed = bytes.Repeat([]byte{0x42}, 32)

type fakeStore struct {
	mu      sync.Mutex
	docs    map[string]*Document
	aliases map[string]string
	methods map[string]*VerificationMethod
	legacy  map[string]*LegacyRecord
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:    map[string]*Document{},
		aliases: map[string]string{},
		methods: map[string]*VerificationMethod{},
		legacy:  map[string]*LegacyRecord{},
	}
}

func (s *fakeStore) GetDocument(_ context.Context, did string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc, ok := s.docs[did]; ok {
		return doc, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) GetDocumentByAlias(_ context.Context, alias string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if did, ok := s.aliases[alias]; ok {
		if doc, ok := s.docs[did]; ok {
			return doc, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) GetVerificationMethod(_ context.Context, ref string) (*VerificationMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if vm, ok := s.methods[ref]; ok {
		return vm, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) GetLegacyRecord(_ context.Context, id string) (*LegacyRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.legacy[id]; ok {
		return rec, nil
	}
	return nil, ErrNotFound
}

func (s *fakeStore) PutDocumentVersion(_ context.Context, doc *Document) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	versionId, err := doc.VersionId()
	if err != nil {
		return "", err
	}
	s.docs[doc.Id] = doc
	s.puts++
	return versionId, nil
}

func (s *fakeStore) LinkLegacy(_ context.Context, legacyId, did string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aliases[legacyId] = did
	return nil
}

func legacyKeypair() (*btcec.PrivateKey, *btcec.PublicKey) {
	return btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x11}, 32))
}

func TestResolveInlineMethods(t *testing.T) {
	doc, err := NewPublisherDocument(testSeed, nil)
	if err != nil {
		t.Fatalf("genesis failed: %v", err)
	}

	store := newFakeStore()
	store.docs[doc.Id] = doc

	res, err := NewResolver(store, nil, nil).Resolve(context.Background(), doc.Id)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Partial() {
		t.Fatalf("inline methods should all resolve, unresolved: %v", res.Unresolved)
	}
	if len(res.Methods) != 2 {
		t.Fatalf("resolved %d methods, want 2", len(res.Methods))
	}
	if res.Methods[doc.Id+"#assert-0"] == nil {
		t.Fatal("assertion method missing from resolution")
	}
}

func TestResolvePartialFailure(t *testing.T) {
	doc, _ := NewPublisherDocument(testSeed, nil)
	present := doc.Id + "#delegate-0"
	missing := doc.Id + "#delegate-1"
	doc.VerificationMethod = append(doc.VerificationMethod,
		VerificationMethod{Id: present},
		VerificationMethod{Id: missing},
	)

	store := newFakeStore()
	store.docs[doc.Id] = doc
	store.methods[present] = &VerificationMethod{
		Id:               present,
		Type:             TypeHDVerificationKey,
		Controller:       doc.Id,
		Xpub:             doc.VerificationMethod[0].Xpub,
		KeyBindingPolicy: PolicyXpub,
	}

	res, err := NewResolver(store, nil, nil).Resolve(context.Background(), doc.Id)
	if err != nil {
		t.Fatalf("partial failure must not fail the whole resolution: %v", err)
	}
	if !res.Partial() {
		t.Fatal("a missing referenced method should flag the resolution partial")
	}
	if len(res.Unresolved) != 1 || res.Unresolved[0] != missing {
		t.Fatalf("unresolved = %v, want [%s]", res.Unresolved, missing)
	}
	if res.Methods[present] == nil {
		t.Fatal("the method that does resolve should still be usable")
	}
}

func TestResolveLegacySynthesis(t *testing.T) {
	_, pub := legacyKeypair()
	id := DIDKeyForPublicKey(pub)

	store := newFakeStore()
	store.legacy[id] = &LegacyRecord{
		Id:                 id,
		PublicKeyMultibase: MultibaseForPublicKey(pub),
		Created:            time.Now().UTC(),
	}

	res, err := NewResolver(store, nil, nil).Resolve(context.Background(), id)
	if err != nil {
		t.Fatalf("legacy resolve failed: %v", err)
	}

	vm := res.Methods[id+"#key-0"]
	if vm == nil {
		t.Fatal("synthesized document should carry one single-key method")
	}
	if vm.KeyBindingPolicy != PolicySingleKey || vm.Type != TypeSingleKey {
		t.Fatalf("synthesized method policy/type = %s/%s", vm.KeyBindingPolicy, vm.Type)
	}
	if len(res.Document.AssertionMethod) != 1 {
		t.Fatal("synthesized document should declare its key for assertions")
	}
}

func TestResolveUnknownIdentifier(t *testing.T) {
	r := NewResolver(newFakeStore(), nil, nil)

	if _, err := r.Resolve(context.Background(), "did:sigil:nobodyhome000000000000"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), "not-a-did"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a non-DID identifier, got %v", err)
	}
}

func TestResolveCachesCompleteResolutions(t *testing.T) {
	doc, _ := NewPublisherDocument(testSeed, nil)
	store := newFakeStore()
	store.docs[doc.Id] = doc

	r := NewResolver(store, NewMemCache(32), nil)
	if _, err := r.Resolve(context.Background(), doc.Id); err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	// The store losing the document does not evict the cache.
	delete(store.docs, doc.Id)
	if _, err := r.Resolve(context.Background(), doc.Id); err != nil {
		t.Fatalf("cached resolution should survive store loss: %v", err)
	}

	r.Bust(doc.Id)
	if _, err := r.Resolve(context.Background(), doc.Id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after bust, got %v", err)
	}
}

func TestResolveDoesNotCachePartialResolutions(t *testing.T) {
	doc, _ := NewPublisherDocument(testSeed, nil)
	ref := doc.Id + "#delegate-0"
	doc.VerificationMethod = append(doc.VerificationMethod, VerificationMethod{Id: ref})

	store := newFakeStore()
	store.docs[doc.Id] = doc

	r := NewResolver(store, NewMemCache(32), nil)
	res, err := r.Resolve(context.Background(), doc.Id)
	if err != nil || !res.Partial() {
		t.Fatalf("expected a partial resolution, got err=%v partial=%v", err, res.Partial())
	}

	// Once the method appears, the next resolve must see it rather than a
	// cached partial view.
	store.mu.Lock()
	store.methods[ref] = &VerificationMethod{Id: ref, Xpub: doc.VerificationMethod[0].Xpub}
	store.mu.Unlock()

	res, err = r.Resolve(context.Background(), doc.Id)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if res.Partial() {
		t.Fatal("partial resolutions must not be served from cache")
	}
}

func TestGenesisDocument(t *testing.T) {
	doc, err := NewPublisherDocument(testSeed, map[string]string{"name": "ts"})
	if err != nil {
		t.Fatalf("genesis failed: %v", err)
	}

	if !strings.HasPrefix(doc.Id, "did:sigil:") || len(doc.Id) != len("did:sigil:")+24 {
		t.Fatalf("unexpected genesis DID %q", doc.Id)
	}

	again, _ := NewPublisherDocument(bytes.Repeat([]byte{0x43}, 32), nil)
	if doc.Id == again.Id {
		t.Fatal("different seeds must produce different DIDs")
	}

	for _, vm := range doc.VerificationMethod {
		if !strings.HasPrefix(vm.Id, doc.Id+"#") {
			t.Fatalf("method id %q not anchored to the DID", vm.Id)
		}
		if vm.Xpub == "" {
			t.Fatalf("method %q missing its xpub", vm.Id)
		}
	}

	if vm := doc.Method("#assert-0"); vm == nil || vm.Id != doc.Id+"#assert-0" {
		t.Fatal("fragment lookup should find the assertion method")
	}
}
