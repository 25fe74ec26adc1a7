package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"
	"github.com/sigilpub/sigil/identity"
	"github.com/sigilpub/sigil/models"
	"github.com/sigilpub/sigil/rollover"
	"github.com/sigilpub/sigil/secrets"
	"github.com/sigilpub/sigil/store"
	"github.com/sigilpub/sigil/verify"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type Server struct {
	httpd    *http.Server
	echo     *echo.Echo
	db       *gorm.DB
	store    *store.Store
	resolver *identity.Resolver
	verifier *verify.Service
	migrator *identity.MigrationService
	tracker  rollover.Tracker
	handles  *secrets.HandleIssuer
	logger   *slog.Logger
	config   *config
}

type Args struct {
	Addr         string
	DbName       string
	Hostname     string
	HandleSecret string
	Logger       *slog.Logger
	Version      string
}

type config struct {
	Version  string
	Hostname string
}

type CustomValidator struct {
	validator *validator.Validate
}

type ValidationError struct {
	error
	Field string
	Tag   string
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		var validateErrors validator.ValidationErrors
		if errors.As(err, &validateErrors) && len(validateErrors) > 0 {
			first := validateErrors[0]
			return ValidationError{
				error: err,
				Field: first.Field(),
				Tag:   first.Tag(),
			}
		}

		return err
	}

	return nil
}

func New(args *Args) (*Server, error) {
	if args.Addr == "" {
		return nil, fmt.Errorf("addr must be set")
	}

	if args.DbName == "" {
		return nil, fmt.Errorf("db name must be set")
	}

	if args.Hostname == "" {
		return nil, fmt.Errorf("hostname must be set")
	}

	if len(args.HandleSecret) < 32 {
		return nil, fmt.Errorf("handle secret must be at least 32 bytes")
	}

	if args.Logger == nil {
		args.Logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))
	}

	e := echo.New()

	e.Pre(middleware.RemoveTrailingSlash())
	e.Pre(slogecho.New(args.Logger))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"*"},
		AllowMethods: []string{"*"},
		MaxAge:       100_000_000,
	}))

	vdtor := validator.New()
	vdtor.RegisterValidation("sigil-did", func(fl validator.FieldLevel) bool {
		return identity.IsDID(fl.Field().String())
	})

	e.Validator = &CustomValidator{validator: vdtor}

	httpd := &http.Server{
		Addr:    args.Addr,
		Handler: e,
	}

	db, err := gorm.Open(sqlite.Open(args.DbName), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	st := store.New(db, args.Logger)
	tracker := store.NewDBTracker(db, args.Logger)
	resolver := identity.NewResolver(st, identity.NewMemCache(10_000), args.Logger)
	verifier := verify.NewService(resolver, tracker, args.Logger)
	migrator := identity.NewMigrationService(st, st, resolver, args.Logger)

	handles, err := secrets.NewHandleIssuer([]byte(args.HandleSecret), 0)
	if err != nil {
		return nil, err
	}

	s := &Server{
		httpd:    httpd,
		echo:     e,
		db:       db,
		store:    st,
		resolver: resolver,
		verifier: verifier,
		migrator: migrator,
		tracker:  tracker,
		handles:  handles,
		logger:   args.Logger,
		config: &config{
			Version:  args.Version,
			Hostname: args.Hostname,
		},
	}

	return s, nil
}

func (s *Server) addRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/xrpc/_health", s.handleHealth)
	s.echo.GET("/robots.txt", s.handleRobots)

	// identity
	s.echo.POST("/xrpc/id.sigil.identity.create", s.handleIdentityCreate)
	s.echo.GET("/xrpc/id.sigil.identity.resolve", s.handleIdentityResolve)
	s.echo.POST("/xrpc/id.sigil.identity.migrate", s.handleIdentityMigrate)

	// records
	s.echo.POST("/xrpc/id.sigil.record.sign", s.handleRecordSign)
	s.echo.POST("/xrpc/id.sigil.record.verify", s.handleRecordVerify)
	s.echo.GET("/xrpc/id.sigil.record.get", s.handleRecordGet)
}

func (s *Server) Serve(ctx context.Context) error {
	s.addRoutes()

	s.logger.Info("migrating...")

	s.db.AutoMigrate(
		&models.Identity{},
		&models.DocumentVersion{},
		&models.VerificationMethodRecord{},
		&models.PayloadRecord{},
		&models.RolloverState{},
		&models.LegacyIdentity{},
	)

	s.logger.Info("starting sigil", "addr", s.httpd.Addr)

	go func() {
		if err := s.httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			panic(err)
		}
	}()

	<-ctx.Done()

	return s.httpd.Shutdown(context.Background())
}
