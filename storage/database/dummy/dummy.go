// Package dummydb is an in-memory session.Backend for local development
// and tests. It mirrors the error codes and auth-stream behavior of the
// real backends without needing Postgres or the hosted service.
package dummydb

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskora/taskora-go/core"
	"github.com/taskora/taskora-go/core/session"
)

type account struct {
	id        string
	email     string
	password  string
	confirmed bool
	createdAt time.Time
}

type Backend struct {
	// RequireConfirmation makes SignUp return a pending-confirmation
	// result, like the hosted backend does out of the box.
	RequireConfirmation bool

	mu            sync.Mutex
	accounts      map[string]*account // keyed by email
	profiles      map[string]session.Profile
	current       *session.Session
	resetRequests []string
	listeners     map[int]func(session.AuthChange)
	order         []int
	nextID        int
}

var _ session.Backend = (*Backend)(nil)

func New() *Backend {
	return &Backend{
		accounts:  make(map[string]*account),
		profiles:  make(map[string]session.Profile),
		listeners: make(map[int]func(session.AuthChange)),
	}
}

func (b *Backend) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (session.Identity, *session.Session, error) {
	b.mu.Lock()
	if _, ok := b.accounts[email]; ok {
		b.mu.Unlock()
		return session.Identity{}, nil, core.NewAuthError(core.CodeEmailExists, "an account with this email already exists")
	}
	if len(password) < 6 {
		b.mu.Unlock()
		return session.Identity{}, nil, core.NewAuthError(core.CodeWeakPassword, "password should be at least 6 characters")
	}
	acct := &account{
		id:        uuid.New().String(),
		email:     email,
		password:  password,
		confirmed: !b.RequireConfirmation,
		createdAt: time.Now().UTC(),
	}
	b.accounts[email] = acct
	b.mu.Unlock()

	ident := acct.identity()
	ident.Metadata = metadata
	if !acct.confirmed {
		return ident, nil, nil
	}
	sess := b.startSession(ident)
	b.emit(session.AuthChange{Event: session.AuthSignedIn, Session: sess})
	return ident, sess, nil
}

func (b *Backend) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	b.mu.Lock()
	acct, ok := b.accounts[email]
	b.mu.Unlock()
	if !ok || acct.password != password {
		return nil, core.NewAuthError(core.CodeInvalidCredentials, "invalid email or password")
	}
	if !acct.confirmed {
		return nil, core.NewAuthError(core.CodeEmailNotConfirmed, "email not confirmed")
	}

	sess := b.startSession(acct.identity())
	b.emit(session.AuthChange{Event: session.AuthSignedIn, Session: sess})
	return sess, nil
}

func (b *Backend) SignOut(ctx context.Context) error {
	b.mu.Lock()
	b.current = nil
	b.mu.Unlock()
	b.emit(session.AuthChange{Event: session.AuthSignedOut})
	return nil
}

func (b *Backend) GetUser(ctx context.Context) (session.Identity, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return session.Identity{}, core.NewNotAuthenticatedError()
	}
	return b.current.Identity, nil
}

func (b *Backend) UpdatePassword(ctx context.Context, newPassword string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.current == nil {
		return core.NewNotAuthenticatedError()
	}
	acct, ok := b.accounts[b.current.Identity.Email]
	if !ok {
		return core.NewAuthError(core.CodeInvalidCredentials, "account no longer exists")
	}
	acct.password = newPassword
	return nil
}

// SetPassword is an administrative override keyed by email.
func (b *Backend) SetPassword(ctx context.Context, email, newPassword string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.accounts[email]
	if !ok {
		return core.NewAuthError(core.CodeInvalidCredentials, "no account with this email")
	}
	acct.password = newPassword
	return nil
}

func (b *Backend) ResetPassword(ctx context.Context, email string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetRequests = append(b.resetRequests, email)
	return nil
}

func (b *Backend) GetProfile(ctx context.Context, id string) (session.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	prof, ok := b.profiles[id]
	if !ok {
		return session.Profile{}, core.NewProfileError(core.CodeProfileNotFound, "profile not found")
	}
	return prof, nil
}

func (b *Backend) UpsertProfile(ctx context.Context, prof session.Profile) (session.Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := b.profiles[prof.ID]; ok {
		prof.CreatedAt = existing.CreatedAt
	} else {
		prof.CreatedAt = now
	}
	prof.UpdatedAt = now
	b.profiles[prof.ID] = prof
	return prof, nil
}

func (b *Backend) OnAuthStateChange(fn func(session.AuthChange)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.listeners[id] = fn
	b.order = append(b.order, id)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Confirm flips the confirmation flag for an account, standing in for
// the user clicking the emailed confirmation link.
func (b *Backend) Confirm(email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if acct, ok := b.accounts[email]; ok {
		acct.confirmed = true
	}
}

// ResetRequests lists the emails ResetPassword was called with.
func (b *Backend) ResetRequests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.resetRequests...)
}

// Fire pushes an auth change on the stream, as if it originated outside
// this client (another tab, an expired refresh token).
func (b *Backend) Fire(chg session.AuthChange) {
	if chg.Event == session.AuthSignedOut {
		b.mu.Lock()
		b.current = nil
		b.mu.Unlock()
	}
	b.emit(chg)
}

// CurrentSession returns the live session, if any.
func (b *Backend) CurrentSession() *session.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current
}

func (a *account) identity() session.Identity {
	ident := session.Identity{ID: a.id, Email: a.email, CreatedAt: a.createdAt}
	if a.confirmed {
		ident.ConfirmedAt = a.createdAt
	}
	return ident
}

func (b *Backend) startSession(ident session.Identity) *session.Session {
	sess := &session.Session{
		AccessToken:  "dummy-" + uuid.New().String(),
		RefreshToken: uuid.New().String(),
		ExpiresAt:    time.Now().Add(time.Hour),
		Identity:     ident,
	}
	b.mu.Lock()
	b.current = sess
	b.mu.Unlock()
	return sess
}

func (b *Backend) emit(chg session.AuthChange) {
	b.mu.Lock()
	fns := make([]func(session.AuthChange), 0, len(b.order))
	for _, id := range b.order {
		if fn, ok := b.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(chg)
	}
}
