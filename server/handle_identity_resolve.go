package server

import (
	"errors"

	"github.com/Azure/go-autorest/autorest/to"
	"github.com/labstack/echo/v4"
	"github.com/sigilpub/sigil/identity"
	"github.com/sigilpub/sigil/internal/helpers"
)

type IdSigilIdentityResolveResponse struct {
	Document   *identity.Document `json:"document"`
	Partial    bool               `json:"partial"`
	Unresolved []string           `json:"unresolved,omitempty"`
}

func (s *Server) handleIdentityResolve(e echo.Context) error {
	id := e.QueryParam("id")
	if id == "" || !identity.IsDID(id) {
		return helpers.InputError(e, to.StringPtr("InvalidIdentity"))
	}

	res, err := s.resolver.Resolve(e.Request().Context(), id)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return helpers.NotFoundError(e, to.StringPtr("IdentityNotFound"))
		}
		s.logger.Error("error resolving identity", "endpoint", "id.sigil.identity.resolve", "id", id, "error", err)
		return helpers.ServerError(e, nil)
	}

	return e.JSON(200, IdSigilIdentityResolveResponse{
		Document:   res.Document,
		Partial:    res.Partial(),
		Unresolved: res.Unresolved,
	})
}
