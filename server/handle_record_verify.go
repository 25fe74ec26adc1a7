package server

import (
	"errors"

	"github.com/Azure/go-autorest/autorest/to"
	"github.com/labstack/echo/v4"
	"github.com/sigilpub/sigil/identity"
	"github.com/sigilpub/sigil/internal/helpers"
	"github.com/sigilpub/sigil/payload"
)

type IdSigilRecordVerifyRequest struct {
	Ref      string           `json:"ref"`
	Payload  *payload.Payload `json:"payload"`
	Identity string           `json:"identity" validate:"omitempty,sigil-did"`
}

// Verification never errors on bad input: whatever is wrong with the payload
// comes back as a non-valid outcome in the response body.
func (s *Server) handleRecordVerify(e echo.Context) error {
	var request IdSigilRecordVerifyRequest

	if err := e.Bind(&request); err != nil {
		s.logger.Error("error receiving request", "endpoint", "id.sigil.record.verify", "error", err)
		return helpers.ServerError(e, nil)
	}

	if err := e.Validate(request); err != nil {
		return helpers.InputError(e, to.StringPtr("InvalidIdentity"))
	}

	p := request.Payload
	if p == nil && request.Ref != "" {
		fetched, err := s.store.FetchPayload(e.Request().Context(), request.Ref)
		if err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				return helpers.NotFoundError(e, to.StringPtr("RecordNotFound"))
			}
			s.logger.Error("error fetching payload", "endpoint", "id.sigil.record.verify", "error", err)
			return helpers.ServerError(e, nil)
		}
		p = fetched
	}
	if p == nil {
		return helpers.InputError(e, to.StringPtr("PayloadOrRefRequired"))
	}

	id := request.Identity
	if id == "" {
		creator, ok := p.Tag(payload.TagCreator)
		if !ok {
			return helpers.InputError(e, to.StringPtr("NoClaimedIdentity"))
		}
		id = creator
	}

	outcome := s.verifier.Verify(e.Request().Context(), p, id)

	return e.JSON(200, outcome)
}
