package session

import (
	"context"
	"time"
)

// Auth state stream events, mirroring the backend's own vocabulary.
const (
	AuthSignedIn  = "SIGNED_IN"
	AuthSignedOut = "SIGNED_OUT"
)

type (
	// Identity is the raw backend auth identity, as opposed to the
	// application-level Profile.
	Identity struct {
		ID          string                 `json:"id"`
		Email       string                 `json:"email"`
		Metadata    map[string]interface{} `json:"user_metadata,omitempty"`
		ConfirmedAt time.Time              `json:"confirmed_at,omitempty"`
		CreatedAt   time.Time              `json:"created_at"`
	}

	// Session is a live backend auth session.
	Session struct {
		AccessToken  string    `json:"access_token"`
		RefreshToken string    `json:"refresh_token"`
		ExpiresAt    time.Time `json:"expires_at"`
		Identity     Identity  `json:"user"`
	}

	// AuthChange is one transition pushed on the backend's auth state
	// stream (e.g. a token refresh in another tab signing the user out).
	AuthChange struct {
		Event   string
		Session *Session
	}

	// AuthBackend is the minimum auth surface the Manager depends on.
	// Implementations translate upstream failures into *core.Error
	// values carrying a typed kind and code.
	AuthBackend interface {
		// SignUp registers new credentials. The returned Session is nil
		// when the backend still requires email confirmation.
		SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (Identity, *Session, error)
		SignIn(ctx context.Context, email, password string) (*Session, error)
		SignOut(ctx context.Context) error
		GetUser(ctx context.Context) (Identity, error)
		UpdatePassword(ctx context.Context, newPassword string) error
		ResetPassword(ctx context.Context, email string) error
		// OnAuthStateChange registers a listener on the backend's auth
		// state stream and returns its unsubscribe handle.
		OnAuthStateChange(fn func(AuthChange)) (unsubscribe func())
	}

	// ProfileRepository is row-level storage for Profile records, keyed
	// by the auth identity id. UpsertProfile has insert-or-update-by-key
	// semantics and returns the stored row.
	ProfileRepository interface {
		GetProfile(ctx context.Context, id string) (Profile, error)
		UpsertProfile(ctx context.Context, prof Profile) (Profile, error)
	}

	// Backend is the full collaborator contract.
	Backend interface {
		AuthBackend
		ProfileRepository
	}
)
