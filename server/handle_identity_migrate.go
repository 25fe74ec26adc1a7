package server

import (
	"errors"
	"time"

	"github.com/Azure/go-autorest/autorest/to"
	"github.com/labstack/echo/v4"
	"github.com/sigilpub/sigil/identity"
	"github.com/sigilpub/sigil/internal/helpers"
)

type IdSigilIdentityMigrateRequest struct {
	LegacyId        string     `json:"legacyId" validate:"required,sigil-did"`
	LegacyPublicKey string     `json:"legacyPublicKey" validate:"required"`
	Created         *time.Time `json:"created"`
}

// Migration links a legacy single-key identity into the caller's document.
// It is additive: records signed before migration keep verifying against the
// legacy key, and nothing in the caller's history changes.
func (s *Server) handleIdentityMigrate(e echo.Context) error {
	token, ok := bearerToken(e)
	if !ok {
		return helpers.AuthError(e, nil)
	}

	did, err := s.handles.Redeem(token)
	if err != nil {
		return helpers.AuthError(e, to.StringPtr("InvalidSigningHandle"))
	}

	var request IdSigilIdentityMigrateRequest
	if err := e.Bind(&request); err != nil {
		s.logger.Error("error receiving request", "endpoint", "id.sigil.identity.migrate", "error", err)
		return helpers.ServerError(e, nil)
	}

	if err := e.Validate(request); err != nil {
		return helpers.InputError(e, nil)
	}

	if _, err := identity.ParseMultibaseKey(request.LegacyPublicKey); err != nil {
		return helpers.InputError(e, to.StringPtr("InvalidLegacyKey"))
	}

	created := time.Now().UTC()
	if request.Created != nil {
		created = *request.Created
	}

	legacy := &identity.LegacyRecord{
		Id:                 request.LegacyId,
		PublicKeyMultibase: request.LegacyPublicKey,
		Created:            created,
	}

	if err := s.store.CreateLegacyRecord(e.Request().Context(), legacy); err != nil {
		s.logger.Error("error storing legacy record", "endpoint", "id.sigil.identity.migrate", "error", err)
		return helpers.ServerError(e, nil)
	}

	doc, err := s.migrator.MigrateLegacy(e.Request().Context(), legacy, did)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return helpers.InputError(e, to.StringPtr("UnknownIdentity"))
		}
		s.logger.Error("error migrating identity", "endpoint", "id.sigil.identity.migrate", "error", err)
		return helpers.ServerError(e, nil)
	}

	return e.JSON(200, map[string]any{
		"document": doc,
	})
}
