package echoapi

import (
	"context"
	"net/http"
	"os"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/pkg/errors"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
	"github.com/trezcool/alama/core/ocr"
	"github.com/trezcool/alama/core/user"
)

type (
	Deps struct {
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		UserSvc        user.Service
		GradeSvc       grade.Service
		OCRSvc         ocr.Service
		DisableReqLogs bool
	}

	Server struct {
		conf     *core.Config
		deps     *Deps
		app      *echo.Echo
		auth     *jwtAuth
		errors   chan error
		shutdown chan os.Signal
	}
)

// NewServer sets up the API routes. shutdown receives OS signals, and is also
// written to when a handler fails with a core shutdown error.
func NewServer(conf *core.Config, shutdown chan os.Signal, deps *Deps) *Server {
	if shutdown == nil {
		shutdown = make(chan os.Signal, 1)
	}
	s := &Server{
		conf:     conf,
		deps:     deps,
		app:      echo.New(),
		auth:     newJWTAuth(conf),
		errors:   make(chan error, 1),
		shutdown: shutdown,
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	s.app.HideBanner = true
	s.app.Debug = s.conf.Debug

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.conf.Debug || s.conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if s.conf.OCR.MaxUploadSize != "" {
		s.app.Use(middleware.BodyLimit(s.conf.OCR.MaxUploadSize))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.GET("/", s.home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.config)

	registerUserAPI(v1, jwt, s.auth, s.deps.UserSvc, s.deps.Validate)
	registerGradeAPI(v1, jwt, s.deps.UserSvc, s.deps.GradeSvc, s.deps.OCRSvc, s.deps.Validate)
}

// Start blocks until the server stops. Errors other than a regular shutdown are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.conf.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // shutdown already pending
	}
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.conf.AppName+" API!")
}
