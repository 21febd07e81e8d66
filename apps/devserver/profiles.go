package main

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/taskora/taskora-go/core"
	"github.com/taskora/taskora-go/core/session"
)

// getProfiles answers row-filter queries of the form id=eq.<id>, the
// way the hosted table API does. A missing row is an empty result set,
// not an error.
func (s *server) getProfiles(c echo.Context) error {
	filter := c.QueryParam("id")
	if !strings.HasPrefix(filter, "eq.") {
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported id filter")
	}

	prof, err := s.opts.Store.GetProfile(c.Request().Context(), strings.TrimPrefix(filter, "eq."))
	if err != nil {
		if core.ErrorCode(err) == core.CodeProfileNotFound {
			return c.JSON(http.StatusOK, []session.Profile{})
		}
		return err
	}
	return c.JSON(http.StatusOK, []session.Profile{prof})
}

func (s *server) upsertProfiles(c echo.Context) error {
	var rows []session.Profile
	if err := c.Bind(&rows); err != nil {
		return err
	}

	out := make([]session.Profile, 0, len(rows))
	for _, row := range rows {
		stored, err := s.opts.Store.UpsertProfile(c.Request().Context(), row)
		if err != nil {
			return err
		}
		out = append(out, stored)
	}

	if !strings.Contains(c.Request().Header.Get("Prefer"), "return=representation") {
		return c.NoContent(http.StatusCreated)
	}
	return c.JSON(http.StatusCreated, out)
}
