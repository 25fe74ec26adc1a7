package server

import (
	"errors"

	"github.com/Azure/go-autorest/autorest/to"
	"github.com/labstack/echo/v4"
	"github.com/sigilpub/sigil/identity"
	"github.com/sigilpub/sigil/internal/helpers"
)

func (s *Server) handleRecordGet(e echo.Context) error {
	ref := e.QueryParam("ref")
	if ref == "" {
		return helpers.InputError(e, to.StringPtr("RefRequired"))
	}

	p, err := s.store.FetchPayload(e.Request().Context(), ref)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return helpers.NotFoundError(e, to.StringPtr("RecordNotFound"))
		}
		s.logger.Error("error fetching payload", "endpoint", "id.sigil.record.get", "error", err)
		return helpers.ServerError(e, nil)
	}

	return e.JSON(200, map[string]any{
		"ref":     ref,
		"payload": p,
	})
}
