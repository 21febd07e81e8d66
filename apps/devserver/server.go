// The devserver emulates the hosted Taskora backend on localhost: the
// same /auth/v1 and /rest/v1 wire surface the SDK speaks, served from a
// local session.Backend. It exists so the app can be developed offline
// and so the hosted client can be exercised end to end in tests.
package main

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/taskora/taskora-go/core"
	"github.com/taskora/taskora-go/core/session"
)

type (
	// devStore is what the server needs from a backend: the regular
	// session surface plus access to the live session for token checks.
	devStore interface {
		session.Backend
		CurrentSession() *session.Session
	}

	Options struct {
		Addr           string
		DisableReqLogs bool
		Conf           *core.Config
		Store          devStore
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(s.opts.Conf.Debug || s.opts.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = appHTTPErrorHandler
	s.app.HideBanner = true

	s.app.GET("/", home)

	auth := s.app.Group("/auth/v1")
	auth.POST("/signup", s.signUp)
	auth.POST("/token", s.token)
	auth.POST("/recover", s.recoverPassword)
	auth.POST("/logout", s.logout, s.requireAuth)
	auth.GET("/user", s.getUser, s.requireAuth)
	auth.PUT("/user", s.updateUser, s.requireAuth)

	rest := s.app.Group("/rest/v1", s.requireAuth)
	rest.GET("/profiles", s.getProfiles)
	rest.POST("/profiles", s.upsertProfiles)
}

func (s *server) Start() {
	s.app.Logger.Fatal(s.app.Start(s.opts.Addr))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Taskora dev backend is up!")
}
