package hostedapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/taskora/taskora-go/core"
)

// apiError is the error body shape of the hosted backend. Different
// endpoints use different field names for the same thing.
type apiError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e apiError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// mapError translates an upstream failure into a typed *core.Error.
// This is the only place upstream wording is ever inspected; everything
// past this boundary branches on the code, not the text.
func mapError(status int, body []byte) error {
	var parsed apiError
	_ = json.Unmarshal(body, &parsed)
	msg := parsed.text()
	if msg == "" {
		msg = http.StatusText(status)
	}
	lower := strings.ToLower(msg)

	switch {
	case parsed.Error == "invalid_grant", strings.Contains(lower, "invalid login credentials"):
		return core.NewAuthError(core.CodeInvalidCredentials, msg)
	case strings.Contains(lower, "already registered"), strings.Contains(lower, "already exists"):
		return core.NewAuthError(core.CodeEmailExists, msg)
	case strings.Contains(lower, "password should be at least"), strings.Contains(lower, "password is too weak"):
		return core.NewAuthError(core.CodeWeakPassword, msg)
	case strings.Contains(lower, "email not confirmed"):
		return core.NewAuthError(core.CodeEmailNotConfirmed, msg)
	case status == http.StatusUnauthorized:
		return core.NewAuthError(core.CodeInvalidCredentials, msg)
	case status == http.StatusNotFound:
		return core.NewProfileError(core.CodeProfileNotFound, msg)
	}
	return core.NewAuthError(core.CodeUnknown, msg)
}
