package hostedapi

import (
	"context"
	"net/http"
	"net/url"

	"github.com/taskora/taskora-go/core"
	"github.com/taskora/taskora-go/core/session"
)

const profilesPath = "/rest/v1/profiles"

func (c *Client) GetProfile(ctx context.Context, id string) (session.Profile, error) {
	query := url.Values{
		"id":     {"eq." + id},
		"select": {"*"},
		"limit":  {"1"},
	}
	var rows []session.Profile
	if err := c.do(ctx, http.MethodGet, profilesPath, query, nil, nil, &rows); err != nil {
		return session.Profile{}, err
	}
	if len(rows) == 0 {
		return session.Profile{}, core.NewProfileError(core.CodeProfileNotFound, "profile not found")
	}
	return rows[0], nil
}

func (c *Client) UpsertProfile(ctx context.Context, prof session.Profile) (session.Profile, error) {
	query := url.Values{"on_conflict": {"id"}}
	header := http.Header{
		"Prefer": {"resolution=merge-duplicates,return=representation"},
	}
	var rows []session.Profile
	if err := c.do(ctx, http.MethodPost, profilesPath, query, header, []session.Profile{prof}, &rows); err != nil {
		return session.Profile{}, err
	}
	if len(rows) == 0 {
		return session.Profile{}, core.NewProfileError(core.CodeUnknown, "backend returned no profile row")
	}
	return rows[0], nil
}
