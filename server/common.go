package server

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sigilpub/sigil/models"
)

func (s *Server) getIdentityByDid(did string) (*models.Identity, error) {
	var ident models.Identity
	if err := s.db.First(&ident, models.Identity{Did: did}).Error; err != nil {
		return nil, err
	}
	return &ident, nil
}

func (s *Server) getIdentityByHandle(handle string) (*models.Identity, error) {
	var ident models.Identity
	if err := s.db.First(&ident, models.Identity{Handle: handle}).Error; err != nil {
		return nil, err
	}
	return &ident, nil
}

// bearerToken pulls the signing handle out of the authorization header.
func bearerToken(e echo.Context) (string, bool) {
	authheader := e.Request().Header.Get("authorization")
	if authheader == "" {
		return "", false
	}
	pts := strings.Split(authheader, " ")
	if len(pts) != 2 || !strings.EqualFold(pts[0], "bearer") {
		return "", false
	}
	return pts[1], true
}
