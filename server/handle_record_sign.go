package server

import (
	"errors"

	"github.com/Azure/go-autorest/autorest/to"
	"github.com/labstack/echo/v4"
	"github.com/sigilpub/sigil/hdkey"
	"github.com/sigilpub/sigil/internal/helpers"
	"github.com/sigilpub/sigil/payload"
	"github.com/sigilpub/sigil/signing"
	"gorm.io/gorm"
)

type IdSigilRecordSignRequest struct {
	Payload payload.Payload `json:"payload"`
	Account uint32          `json:"account"`
}

type IdSigilRecordSignResponse struct {
	Ref     string           `json:"ref"`
	Payload *payload.Payload `json:"payload"`
}

// Signing requires a signing handle: the master seed is only released
// against a valid, unexpired handle scoped to the target identity. The
// handler anchors the result but deliberately does not touch rollover state;
// that belongs to verifiers and indexers.
func (s *Server) handleRecordSign(e echo.Context) error {
	token, ok := bearerToken(e)
	if !ok {
		return helpers.AuthError(e, nil)
	}

	did, err := s.handles.Redeem(token)
	if err != nil {
		return helpers.AuthError(e, to.StringPtr("InvalidSigningHandle"))
	}

	var request IdSigilRecordSignRequest
	if err := e.Bind(&request); err != nil {
		s.logger.Error("error receiving request", "endpoint", "id.sigil.record.sign", "error", err)
		return helpers.ServerError(e, nil)
	}

	ident, err := s.getIdentityByDid(did)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return helpers.InputError(e, to.StringPtr("UnknownIdentity"))
		}
		s.logger.Error("error loading identity", "endpoint", "id.sigil.record.sign", "error", err)
		return helpers.ServerError(e, nil)
	}

	signed, err := signing.Sign(&request.Payload, ident.Seed, did, hdkey.Assertion, request.Account)
	if err != nil {
		// A signing failure is fatal to this attempt. There is no fallback
		// key to silently substitute.
		s.logger.Error("error signing payload", "endpoint", "id.sigil.record.sign", "did", did, "error", err)
		if errors.Is(err, payload.ErrMalformed) {
			return helpers.InputError(e, to.StringPtr("MalformedPayload"))
		}
		return helpers.ServerError(e, nil)
	}

	ref, err := s.store.PutPayload(e.Request().Context(), did, signed)
	if err != nil {
		s.logger.Error("error anchoring payload", "endpoint", "id.sigil.record.sign", "error", err)
		return helpers.ServerError(e, nil)
	}

	return e.JSON(200, IdSigilRecordSignResponse{
		Ref:     ref,
		Payload: signed,
	})
}
