package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned by stores when an identity, document version, or
// verification method does not exist.
var ErrNotFound = errors.New("identity: not found")

// Store is the append-only record collaborator the resolver reads from.
// Implementations never mutate a previously returned value.
type Store interface {
	GetDocument(ctx context.Context, did string) (*Document, error)
	GetDocumentByAlias(ctx context.Context, alias string) (*Document, error)
	GetVerificationMethod(ctx context.Context, ref string) (*VerificationMethod, error)
	GetLegacyRecord(ctx context.Context, id string) (*LegacyRecord, error)
}

// Resolution is the outcome of resolving an identity: the document plus each
// verification method resolved independently. A missing or invalid method is
// recorded in Unresolved rather than failing the whole document.
type Resolution struct {
	Document   *Document
	Methods    map[string]*VerificationMethod
	Unresolved []string
}

// Partial reports whether any referenced method failed to resolve.
func (r *Resolution) Partial() bool {
	return len(r.Unresolved) > 0
}

type Resolver struct {
	store  Store
	cache  *MemCache
	logger *slog.Logger
}

func NewResolver(store Store, cache *MemCache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, cache: cache, logger: logger}
}

// Resolve loads the identity's current document and fans out to fetch every
// referenced verification method concurrently. Accepts the identity's DID, a
// legacy identifier linked through alsoKnownAs, or a bare did:key for a
// never-migrated legacy identity (synthesized into a single-key document).
func (r *Resolver) Resolve(ctx context.Context, id string) (*Resolution, error) {
	if !IsDID(id) {
		return nil, fmt.Errorf("%w: unrecognized identifier %q", ErrNotFound, id)
	}

	if r.cache != nil {
		if cached, ok := r.cache.GetResolution(id); ok {
			return cached, nil
		}
	}

	doc, err := r.store.GetDocument(ctx, id)
	if errors.Is(err, ErrNotFound) {
		doc, err = r.store.GetDocumentByAlias(ctx, id)
	}
	if errors.Is(err, ErrNotFound) && strings.HasPrefix(id, didKeyPrefix) {
		return r.resolveLegacy(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	res := &Resolution{
		Document: doc,
		Methods:  make(map[string]*VerificationMethod, len(doc.VerificationMethod)),
	}

	// Inline methods come with the document; anything referenced by id alone
	// is fetched from the store, each reference independently.
	var refs []string
	for i := range doc.VerificationMethod {
		vm := &doc.VerificationMethod[i]
		if vm.Xpub != "" || vm.PublicKeyMultibase != "" {
			res.Methods[vm.Id] = vm
		} else {
			refs = append(refs, vm.Id)
		}
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, ref := range refs {
		wg.Add(1)
		go func(ref string) {
			defer wg.Done()
			vm, err := r.store.GetVerificationMethod(ctx, ref)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				r.logger.Warn("verification method unresolved", "ref", ref, "error", err)
				res.Unresolved = append(res.Unresolved, ref)
				return
			}
			res.Methods[ref] = vm
		}(ref)
	}
	wg.Wait()
	sort.Strings(res.Unresolved)

	if r.cache != nil && !res.Partial() {
		r.cache.PutResolution(id, res)
	}

	return res, nil
}

func (r *Resolver) resolveLegacy(ctx context.Context, id string) (*Resolution, error) {
	rec, err := r.store.GetLegacyRecord(ctx, id)
	if err != nil {
		return nil, err
	}

	doc := LegacyDocument(rec)
	res := &Resolution{
		Document: doc,
		Methods:  map[string]*VerificationMethod{doc.VerificationMethod[0].Id: &doc.VerificationMethod[0]},
	}

	if r.cache != nil {
		r.cache.PutResolution(id, res)
	}

	return res, nil
}

// Bust drops any cached resolution for the identity. Called after a new
// document version or a migration is published.
func (r *Resolver) Bust(id string) {
	if r.cache != nil {
		r.cache.BustResolution(id)
	}
}

// LegacyDocument synthesizes a single-key identity document for a legacy
// record that was never migrated. Records signed against it verify under the
// single-key policy with no derivation metadata.
func LegacyDocument(rec *LegacyRecord) *Document {
	return &Document{
		Context: []string{contextDIDCore, contextSigil},
		Id:      rec.Id,
		VerificationMethod: []VerificationMethod{{
			Id:                 rec.Id + "#key-0",
			Type:               TypeSingleKey,
			Controller:         rec.Id,
			PublicKeyMultibase: rec.PublicKeyMultibase,
			KeyBindingPolicy:   PolicySingleKey,
			Created:            rec.Created,
		}},
		AssertionMethod: []string{rec.Id + "#key-0"},
	}
}
