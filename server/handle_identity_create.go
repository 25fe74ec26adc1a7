package server

import (
	"errors"
	"strings"
	"time"

	"github.com/Azure/go-autorest/autorest/to"
	"github.com/labstack/echo/v4"
	"github.com/sigilpub/sigil/identity"
	"github.com/sigilpub/sigil/internal/helpers"
	"github.com/sigilpub/sigil/models"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type IdSigilIdentityCreateRequest struct {
	Handle   string            `json:"handle" validate:"required,min=3,max=64"`
	Password string            `json:"password" validate:"required,min=8"`
	Profile  map[string]string `json:"profile"`
}

type IdSigilIdentityCreateResponse struct {
	Did           string `json:"did"`
	Handle        string `json:"handle"`
	Mnemonic      string `json:"mnemonic"`
	SigningHandle string `json:"signingHandle"`
}

func (s *Server) handleIdentityCreate(e echo.Context) error {
	var request IdSigilIdentityCreateRequest

	if err := e.Bind(&request); err != nil {
		s.logger.Error("error receiving request", "endpoint", "id.sigil.identity.create", "error", err)
		return helpers.ServerError(e, nil)
	}

	request.Handle = strings.ToLower(request.Handle)

	if err := e.Validate(request); err != nil {
		var verr ValidationError
		if errors.As(err, &verr) {
			if verr.Field == "Handle" {
				return helpers.InputError(e, to.StringPtr("InvalidHandle"))
			}
			if verr.Field == "Password" {
				return helpers.InputError(e, to.StringPtr("InvalidPassword"))
			}
		}
		return helpers.InputError(e, nil)
	}

	_, err := s.getIdentityByHandle(request.Handle)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("error looking up handle in db", "endpoint", "id.sigil.identity.create", "error", err)
		return helpers.ServerError(e, nil)
	}
	if err == nil {
		return helpers.InputError(e, to.StringPtr("HandleNotAvailable"))
	}

	entropy, err := bip39.NewEntropy(256)
	if err != nil {
		s.logger.Error("error generating entropy", "endpoint", "id.sigil.identity.create", "error", err)
		return helpers.ServerError(e, nil)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		s.logger.Error("error generating mnemonic", "endpoint", "id.sigil.identity.create", "error", err)
		return helpers.ServerError(e, nil)
	}
	seed := bip39.NewSeed(mnemonic, "")

	doc, err := identity.NewPublisherDocument(seed, request.Profile)
	if err != nil {
		s.logger.Error("error building genesis document", "endpoint", "id.sigil.identity.create", "error", err)
		return helpers.ServerError(e, nil)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(request.Password), 10)
	if err != nil {
		s.logger.Error("error hashing password", "error", err)
		return helpers.ServerError(e, nil)
	}

	ident := models.Identity{
		Did:       doc.Id,
		CreatedAt: time.Now().UTC(),
		Handle:    request.Handle,
		Password:  string(hashed),
		Seed:      seed,
	}

	if err := s.db.Create(&ident).Error; err != nil {
		s.logger.Error("error inserting new identity", "error", err)
		return helpers.ServerError(e, nil)
	}

	if _, err := s.store.PutDocumentVersion(e.Request().Context(), doc); err != nil {
		s.logger.Error("error publishing genesis document", "error", err)
		return helpers.ServerError(e, nil)
	}

	signingHandle, err := s.handles.Issue(doc.Id)
	if err != nil {
		s.logger.Error("error issuing signing handle", "error", err)
		return helpers.ServerError(e, nil)
	}

	return e.JSON(200, IdSigilIdentityCreateResponse{
		Did:           doc.Id,
		Handle:        request.Handle,
		Mnemonic:      mnemonic,
		SigningHandle: signingHandle,
	})
}
