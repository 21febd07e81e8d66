package main

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/taskora/taskora-go/core"
)

// appHTTPErrorHandler renders errors in the hosted backend's wire
// format, so the SDK's error mapping sees the exact bodies it was
// written against.
func appHTTPErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	body := echo.Map{"msg": http.StatusText(code)}

	var appErr *core.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		code, body = renderAppError(appErr)
	case errors.As(err, &httpErr):
		code = httpErr.Code
		body = echo.Map{"msg": fmt.Sprintf("%v", httpErr.Message)}
	default:
		c.Echo().Logger.Error(err)
	}

	if !c.Response().Committed {
		if jsonErr := c.JSON(code, body); jsonErr != nil {
			c.Echo().Logger.Error(jsonErr)
		}
	}
}

func renderAppError(err *core.Error) (int, echo.Map) {
	if err.Kind == core.KindNotAuthenticated {
		return http.StatusUnauthorized, echo.Map{"msg": "Invalid token"}
	}
	switch err.Code {
	case core.CodeInvalidCredentials:
		return http.StatusBadRequest, echo.Map{
			"error":             "invalid_grant",
			"error_description": "Invalid login credentials",
		}
	case core.CodeEmailExists:
		return http.StatusUnprocessableEntity, echo.Map{"msg": "User already registered"}
	case core.CodeWeakPassword:
		return http.StatusUnprocessableEntity, echo.Map{"msg": "Password should be at least 6 characters"}
	case core.CodeEmailNotConfirmed:
		return http.StatusBadRequest, echo.Map{"error_description": "Email not confirmed"}
	case core.CodeProfileNotFound:
		return http.StatusNotFound, echo.Map{"msg": "profile not found"}
	default:
		return http.StatusBadRequest, echo.Map{"msg": err.Error()}
	}
}
