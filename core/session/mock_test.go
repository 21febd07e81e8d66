package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/taskora/taskora-go/core"
)

// memLogger collects log lines for assertions.
type memLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *memLogger) Enable(bool) {}
func (l *memLogger) log(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+": "+msg)
}
func (l *memLogger) Debug(msg string, _ ...interface{}) { l.log("DEBUG", msg) }
func (l *memLogger) Info(msg string, _ ...interface{})  { l.log("INFO", msg) }
func (l *memLogger) Warn(msg string, _ ...interface{})  { l.log("WARN", msg) }
func (l *memLogger) Error(msg string, _ ...interface{}) { l.log("ERROR", msg) }
func (l *memLogger) Fatal(msg string, _ ...interface{}) { l.log("FATAL", msg) }

type mockAccount struct {
	id        string
	email     string
	password  string
	confirmed bool
}

// backendMock is an in-memory Backend with error injection and call
// counting, plus a Fire method to simulate backend-pushed auth
// transitions.
type backendMock struct {
	mu        sync.Mutex
	accounts  map[string]*mockAccount // keyed by email
	profiles  map[string]Profile      // keyed by identity id
	listeners []func(AuthChange)
	nextID    int

	// error injection
	signUpErr     error
	signInErr     error
	signOutErr    error
	getProfileErr error
	upsertErr     error
	updatePwdErr  error
	resetPwdErr   error

	// behavior toggles
	requireConfirmation bool
	echoOnSignIn        bool // fire the stream echo synchronously inside SignIn

	// call counters
	getProfileCalls int
	upsertCalls     int
	signOutCalls    int
	resetPwdCalls   int
	updatePwdCalls  int
}

var _ Backend = (*backendMock)(nil)

func newBackendMock() *backendMock {
	return &backendMock{
		accounts: make(map[string]*mockAccount),
		profiles: make(map[string]Profile),
	}
}

func (b *backendMock) addAccount(email, password string) *mockAccount {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	acc := &mockAccount{
		id:        fmt.Sprintf("uid-%03d", b.nextID),
		email:     email,
		password:  password,
		confirmed: true,
	}
	b.accounts[email] = acc
	return acc
}

func (b *backendMock) identity(acc *mockAccount) Identity {
	return Identity{ID: acc.id, Email: acc.email}
}

func (b *backendMock) session(acc *mockAccount) *Session {
	return &Session{
		AccessToken:  "token-" + acc.id,
		RefreshToken: "refresh-" + acc.id,
		Identity:     b.identity(acc),
	}
}

func (b *backendMock) SignUp(_ context.Context, email, password string, _ map[string]interface{}) (Identity, *Session, error) {
	if b.signUpErr != nil {
		return Identity{}, nil, b.signUpErr
	}
	b.mu.Lock()
	_, exists := b.accounts[email]
	b.mu.Unlock()
	if exists {
		return Identity{}, nil, core.NewAuthError(core.CodeEmailExists, "user already registered")
	}
	acc := b.addAccount(email, password)
	acc.confirmed = !b.requireConfirmation
	if b.requireConfirmation {
		return b.identity(acc), nil, nil
	}
	return b.identity(acc), b.session(acc), nil
}

func (b *backendMock) SignIn(_ context.Context, email, password string) (*Session, error) {
	if b.signInErr != nil {
		return nil, b.signInErr
	}
	b.mu.Lock()
	acc, ok := b.accounts[email]
	b.mu.Unlock()
	if !ok || acc.password != password {
		return nil, core.NewAuthError(core.CodeInvalidCredentials, "invalid login credentials")
	}
	if !acc.confirmed {
		return nil, core.NewAuthError(core.CodeEmailNotConfirmed, "email not confirmed")
	}
	sess := b.session(acc)
	if b.echoOnSignIn {
		b.Fire(AuthChange{Event: AuthSignedIn, Session: sess})
	}
	return sess, nil
}

func (b *backendMock) SignOut(context.Context) error {
	b.mu.Lock()
	b.signOutCalls++
	b.mu.Unlock()
	return b.signOutErr
}

func (b *backendMock) GetUser(context.Context) (Identity, error) {
	return Identity{}, core.NewAuthError(core.CodeUnknown, "no session")
}

func (b *backendMock) UpdatePassword(_ context.Context, _ string) error {
	b.mu.Lock()
	b.updatePwdCalls++
	b.mu.Unlock()
	return b.updatePwdErr
}

func (b *backendMock) ResetPassword(_ context.Context, _ string) error {
	b.mu.Lock()
	b.resetPwdCalls++
	b.mu.Unlock()
	return b.resetPwdErr
}

func (b *backendMock) OnAuthStateChange(fn func(AuthChange)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, fn)
	i := len(b.listeners) - 1
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if i < len(b.listeners) {
			b.listeners[i] = func(AuthChange) {}
		}
	}
}

// Fire pushes chg to all registered auth-state listeners, as the real
// backend stream would.
func (b *backendMock) Fire(chg AuthChange) {
	b.mu.Lock()
	listeners := make([]func(AuthChange), len(b.listeners))
	copy(listeners, b.listeners)
	b.mu.Unlock()
	for _, fn := range listeners {
		fn(chg)
	}
}

func (b *backendMock) listenerCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

func (b *backendMock) GetProfile(_ context.Context, id string) (Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.getProfileCalls++
	if b.getProfileErr != nil {
		return Profile{}, b.getProfileErr
	}
	prof, ok := b.profiles[id]
	if !ok {
		return Profile{}, core.NewProfileError(core.CodeProfileNotFound, "profile not found")
	}
	return prof, nil
}

func (b *backendMock) UpsertProfile(_ context.Context, prof Profile) (Profile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upsertCalls++
	if b.upsertErr != nil {
		return Profile{}, b.upsertErr
	}
	b.profiles[prof.ID] = prof
	return prof, nil
}
