package verify

import (
	"context"
	"log/slog"

	"github.com/sigilpub/sigil/hdkey"
	"github.com/sigilpub/sigil/identity"
	"github.com/sigilpub/sigil/payload"
	"github.com/sigilpub/sigil/rollover"
)

// Service verifies payloads against a claimed identity rather than a single
// pre-selected method: it resolves the identity document and tries each
// assertion-capable method until one accepts.
type Service struct {
	resolver *identity.Resolver
	tracker  rollover.Tracker
	logger   *slog.Logger
}

func NewService(resolver *identity.Resolver, tracker rollover.Tracker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{resolver: resolver, tracker: tracker, logger: logger}
}

// Verify resolves identityId and checks the payload against its assertion
// methods. Resolution failure is an UnknownIdentity outcome, not an error;
// partial resolution is tolerated, with verification proceeding over the
// methods that did resolve.
func (s *Service) Verify(ctx context.Context, p *payload.Payload, identityId string) Outcome {
	if p == nil {
		return Fail(ReasonMalformedPayload, "nil payload")
	}

	res, err := s.resolver.Resolve(ctx, identityId)
	if err != nil {
		return Fail(ReasonUnknownIdentity, err.Error())
	}
	if res.Partial() {
		s.logger.Warn("verifying against partially resolved identity", "id", identityId, "unresolved", res.Unresolved)
	}

	var first *Outcome
	for _, vm := range s.candidateMethods(res) {
		outcome := Verify(p, vm, s.tracker)
		if outcome.Valid {
			return outcome
		}
		if first == nil {
			first = &outcome
		}
	}

	if first != nil {
		return *first
	}
	return Fail(ReasonUnknownIdentity, "identity has no assertion-capable verification method")
}

// candidateMethods lists resolved methods usable for signature assertions,
// document assertionMethod order first.
func (s *Service) candidateMethods(res *identity.Resolution) []*identity.VerificationMethod {
	var out []*identity.VerificationMethod
	seen := map[string]bool{}

	add := func(vm *identity.VerificationMethod) {
		if vm == nil || seen[vm.Id] {
			return
		}
		if vm.KeyBindingPolicy != identity.PolicySingleKey && vm.SubPurpose != uint32(hdkey.Assertion) {
			return
		}
		seen[vm.Id] = true
		out = append(out, vm)
	}

	for _, ref := range res.Document.AssertionMethod {
		if vm, ok := res.Methods[ref]; ok {
			add(vm)
		} else {
			add(res.Document.Method(ref))
		}
	}
	for _, vm := range res.Document.VerificationMethod {
		add(res.Methods[vm.Id])
	}
	return out
}
