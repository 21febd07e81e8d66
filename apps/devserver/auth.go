package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskora/taskora-go/core"
	"github.com/taskora/taskora-go/core/session"
)

type (
	credentialsInput struct {
		Email    string                 `json:"email"`
		Password string                 `json:"password"`
		Data     map[string]interface{} `json:"data"`
	}

	refreshInput struct {
		RefreshToken string `json:"refresh_token"`
	}

	passwordInput struct {
		Password string `json:"password"`
	}

	emailInput struct {
		Email string `json:"email"`
	}

	tokenResponse struct {
		AccessToken  string           `json:"access_token"`
		RefreshToken string           `json:"refresh_token"`
		ExpiresIn    int              `json:"expires_in"`
		User         session.Identity `json:"user"`
	}
)

func newTokenResponse(sess *session.Session) tokenResponse {
	return tokenResponse{
		AccessToken:  sess.AccessToken,
		RefreshToken: sess.RefreshToken,
		ExpiresIn:    int(time.Until(sess.ExpiresAt).Seconds()),
		User:         sess.Identity,
	}
}

// requireAuth accepts the bearer token of the live session. The dev
// backend serves one client at a time; that is all local development
// and the SDK's own tests need.
func (s *server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := strings.TrimPrefix(c.Request().Header.Get("Authorization"), "Bearer ")
		cur := s.opts.Store.CurrentSession()
		if token == "" || cur == nil || token != cur.AccessToken {
			return core.NewNotAuthenticatedError()
		}
		return next(c)
	}
}

func (s *server) signUp(c echo.Context) error {
	var in credentialsInput
	if err := c.Bind(&in); err != nil {
		return err
	}

	ident, sess, err := s.opts.Store.SignUp(c.Request().Context(), in.Email, in.Password, in.Data)
	if err != nil {
		return err
	}
	if sess == nil {
		// confirmation pending: the response is the bare identity
		return c.JSON(http.StatusOK, ident)
	}
	return c.JSON(http.StatusOK, newTokenResponse(sess))
}

func (s *server) token(c echo.Context) error {
	switch c.QueryParam("grant_type") {
	case "password":
		var in credentialsInput
		if err := c.Bind(&in); err != nil {
			return err
		}
		sess, err := s.opts.Store.SignIn(c.Request().Context(), in.Email, in.Password)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, newTokenResponse(sess))
	case "refresh_token":
		var in refreshInput
		if err := c.Bind(&in); err != nil {
			return err
		}
		cur := s.opts.Store.CurrentSession()
		if cur == nil || in.RefreshToken != cur.RefreshToken {
			return core.NewAuthError(core.CodeInvalidCredentials, "invalid refresh token")
		}
		return c.JSON(http.StatusOK, newTokenResponse(cur))
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported grant_type")
	}
}

func (s *server) logout(c echo.Context) error {
	if err := s.opts.Store.SignOut(c.Request().Context()); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *server) getUser(c echo.Context) error {
	ident, err := s.opts.Store.GetUser(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ident)
}

func (s *server) updateUser(c echo.Context) error {
	var in passwordInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := s.opts.Store.UpdatePassword(c.Request().Context(), in.Password); err != nil {
		return err
	}
	ident, err := s.opts.Store.GetUser(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ident)
}

func (s *server) recoverPassword(c echo.Context) error {
	var in emailInput
	if err := c.Bind(&in); err != nil {
		return err
	}
	if err := s.opts.Store.ResetPassword(c.Request().Context(), in.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{})
}
