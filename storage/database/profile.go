package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/taskora/taskora-go/core"
	"github.com/taskora/taskora-go/core/session"
)

type profileRow struct {
	ID        string         `db:"id"`
	Email     string         `db:"email"`
	Name      string         `db:"name"`
	Role      string         `db:"role"`
	Extra     types.JSONText `db:"extra"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}

func (row profileRow) profile() (session.Profile, error) {
	prof := session.Profile{
		ID:        row.ID,
		Email:     row.Email,
		Name:      row.Name,
		Role:      row.Role,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
	if len(row.Extra) > 0 {
		if err := row.Extra.Unmarshal(&prof.Extra); err != nil {
			return session.Profile{}, errors.Wrap(err, "decoding profile extra")
		}
	}
	return prof, nil
}

func (r *Repository) GetProfile(ctx context.Context, id string) (session.Profile, error) {
	var row profileRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM profiles WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return session.Profile{}, core.NewProfileError(core.CodeProfileNotFound, "profile not found", err)
	}
	if err != nil {
		return session.Profile{}, errors.Wrap(err, "looking up profile")
	}
	return row.profile()
}

func (r *Repository) UpsertProfile(ctx context.Context, prof session.Profile) (session.Profile, error) {
	extra := []byte("{}")
	if len(prof.Extra) > 0 {
		var err error
		if extra, err = json.Marshal(prof.Extra); err != nil {
			return session.Profile{}, errors.Wrap(err, "encoding profile extra")
		}
	}

	const q = `
	INSERT INTO profiles (id, email, name, role, extra, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, now(), now())
	ON CONFLICT (id) DO UPDATE
	SET email = EXCLUDED.email,
	    name = EXCLUDED.name,
	    role = EXCLUDED.role,
	    extra = EXCLUDED.extra,
	    updated_at = now()
	RETURNING *`
	var row profileRow
	err := r.db.GetContext(ctx, &row, q, prof.ID, prof.Email, prof.Name, prof.Role, types.JSONText(extra))
	if err != nil {
		return session.Profile{}, errors.Wrap(err, "upserting profile")
	}
	return row.profile()
}
