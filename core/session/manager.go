package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/taskora/taskora-go/core"
)

var nowFunc = time.Now // mockable

// authMessages maps adapter error codes to user-facing text. An error
// whose code is not in the table keeps the backend's own message
// verbatim rather than being swallowed.
var authMessages = map[string]string{
	core.CodeInvalidCredentials: "Invalid email or password",
	core.CodeEmailExists:        "An account with this email already exists",
	core.CodeWeakPassword:       "Password should be at least 6 characters",
	core.CodeEmailNotConfirmed:  "Please confirm your email address before signing in",
}

// Manager owns the single authoritative notion of "current signed-in
// profile", mediates every auth/profile call to the backend and fans
// out session transitions to local subscribers.
//
// It is constructed by the composition root; Close releases its
// auth-stream subscription.
type Manager struct {
	backend Backend
	log     core.Logger

	mu      sync.Mutex
	current *Profile
	// inFlight suppresses the manager's reaction to the backend
	// stream's echo of its own login/logout while that call is still
	// running.
	inFlight bool

	subs      subscriberList
	unsubAuth func()
}

// NewManager wires a Manager to its backend. The auth-state listener is
// registered here, exactly once for the manager's lifetime.
func NewManager(backend Backend, log core.Logger) *Manager {
	m := &Manager{backend: backend, log: log}
	m.unsubAuth = backend.OnAuthStateChange(m.handleAuthChange)
	return m
}

// Close detaches the manager from the backend auth stream. The current
// profile is left as-is; Close is teardown, not logout.
func (m *Manager) Close() {
	if m.unsubAuth != nil {
		m.unsubAuth()
		m.unsubAuth = nil
	}
}

// Register signs up new credentials and provisions the matching profile
// record. Registration succeeds even when the backend still requires
// email confirmation; RegisterResult says so.
func (m *Manager) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	if err := in.Validate(); err != nil {
		return RegisterResult{}, err
	}
	role := in.Role
	if role == "" {
		role = RoleStudent
	}
	name := in.Name
	if name == "" {
		name = core.EmailLocalPart(in.Email)
	}

	m.beginCall()
	defer m.endCall()

	ident, sess, err := m.backend.SignUp(ctx, in.Email, in.Password, map[string]interface{}{
		"name": name,
		"role": role,
	})
	if err != nil {
		return RegisterResult{}, translate(err)
	}

	now := nowFunc().UTC()
	prof, err := m.backend.UpsertProfile(ctx, Profile{
		ID:        ident.ID,
		Email:     ident.Email,
		Name:      name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return RegisterResult{}, core.NewProfileError(core.CodeUnknown, "could not create user profile", err)
	}

	res := RegisterResult{Profile: prof}
	if sess == nil {
		res.PendingConfirmation = true
		res.Message = "Registration successful. Please check your email to confirm your account."
		return res, nil
	}

	// the backend signed the new account straight in
	m.setCurrent(prof)
	m.subs.emit(m.log, Event{Kind: SignedIn, Session: sess, Profile: &prof})
	res.Message = "Registration successful."
	return res, nil
}

// Login signs in, loads or auto-creates the matching profile and sets
// it as current. A credential failure and a profile materialization
// failure are distinct error kinds.
func (m *Manager) Login(ctx context.Context, email, password string) (Profile, error) {
	email = core.CleanString(email, true /* lower */)

	m.beginCall()
	defer m.endCall()

	sess, err := m.backend.SignIn(ctx, email, password)
	if err != nil {
		return Profile{}, translate(err)
	}
	prof, err := m.loadOrCreateProfile(ctx, sess.Identity)
	if err != nil {
		return Profile{}, err
	}
	m.setCurrent(prof)
	m.subs.emit(m.log, Event{Kind: SignedIn, Session: sess, Profile: &prof})
	return prof, nil
}

// Logout clears the current profile unconditionally, before the
// backend sign-out call settles: the local session view never lags a
// user-initiated logout. A backend failure is still reported.
func (m *Manager) Logout(ctx context.Context) error {
	m.beginCall()
	defer m.endCall()

	m.clearCurrent()
	m.subs.emit(m.log, Event{Kind: SignedOut})

	if err := m.backend.SignOut(ctx); err != nil {
		m.log.Warn("backend sign-out failed", err)
		return translate(err)
	}
	return nil
}

// CurrentUser is a pure read of in-memory state; no backend call.
func (m *Manager) CurrentUser() (Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return Profile{}, false
	}
	return *m.current, true
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// UpdateProfile merges upd into the backend profile record and into the
// in-memory copy on success. Fails with NotAuthenticated when no
// profile is current.
func (m *Manager) UpdateProfile(ctx context.Context, upd ProfileUpdate) (Profile, error) {
	if err := upd.Validate(); err != nil {
		return Profile{}, err
	}

	m.mu.Lock()
	cur := m.current
	m.mu.Unlock()
	if cur == nil {
		return Profile{}, core.NewNotAuthenticatedError()
	}

	merged := *cur
	merged.merge(upd)
	saved, err := m.backend.UpsertProfile(ctx, merged)
	if err != nil {
		return Profile{}, core.NewProfileError(core.CodeUnknown, "could not update profile", err)
	}
	m.setCurrent(saved)
	return saved, nil
}

func (m *Manager) ChangePassword(ctx context.Context, newPassword string) error {
	if !m.IsAuthenticated() {
		return core.NewNotAuthenticatedError()
	}
	if err := m.backend.UpdatePassword(ctx, newPassword); err != nil {
		return translate(err)
	}
	return nil
}

func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	email = core.CleanString(email, true /* lower */)
	if err := m.backend.ResetPassword(ctx, email); err != nil {
		return translate(err)
	}
	return nil
}

// OnSessionEvent registers a subscriber for session transitions and
// returns its unsubscribe handle.
func (m *Manager) OnSessionEvent(fn func(Event)) (unsubscribe func()) {
	return m.subs.add(fn)
}

// handleAuthChange reacts to backend-pushed transitions (e.g. a token
// refresh in another tab signing the user out). Echoes of the
// manager's own in-flight call are dropped to avoid redundant profile
// loads and duplicate fan-out.
func (m *Manager) handleAuthChange(chg AuthChange) {
	m.mu.Lock()
	suppressed := m.inFlight
	m.mu.Unlock()
	if suppressed {
		m.log.Debug("auth change suppressed: own call in flight", chg.Event)
		return
	}

	switch chg.Event {
	case AuthSignedIn:
		if chg.Session == nil {
			return
		}
		prof, err := m.loadOrCreateProfile(context.Background(), chg.Session.Identity)
		if err != nil {
			m.log.Error("loading profile on auth change", err)
			return
		}
		m.setCurrent(prof)
		m.subs.emit(m.log, Event{Kind: SignedIn, Session: chg.Session, Profile: &prof})
	case AuthSignedOut:
		m.clearCurrent()
		m.subs.emit(m.log, Event{Kind: SignedOut})
	}
}

// loadOrCreateProfile fetches the profile for ident, auto-provisioning
// it when the backend reports no row. Any other lookup failure is a
// hard error and must not trigger provisioning.
func (m *Manager) loadOrCreateProfile(ctx context.Context, ident Identity) (Profile, error) {
	prof, err := m.backend.GetProfile(ctx, ident.ID)
	if err == nil {
		return prof, nil
	}
	if core.ErrorCode(err) != core.CodeProfileNotFound {
		return Profile{}, core.NewProfileError(core.CodeUnknown, "could not load user profile", err)
	}

	created, err := m.backend.UpsertProfile(ctx, defaultProfile(ident))
	if err != nil {
		return Profile{}, core.NewProfileError(core.CodeUnknown, "could not create user profile", err)
	}
	return created, nil
}

// defaultProfile builds the auto-provisioned profile for an identity:
// name defaults to the email local part, role to student.
func defaultProfile(ident Identity) Profile {
	name := core.EmailLocalPart(ident.Email)
	role := RoleStudent
	if v, ok := ident.Metadata["name"].(string); ok && v != "" {
		name = v
	}
	if v, ok := ident.Metadata["role"].(string); ok {
		switch v {
		case RoleStudent, RoleInstructor:
			role = v
		}
	}
	created := ident.CreatedAt
	if created.IsZero() {
		created = nowFunc()
	}
	created = created.UTC()
	return Profile{
		ID:        ident.ID,
		Email:     ident.Email,
		Name:      name,
		Role:      role,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func (m *Manager) setCurrent(prof Profile) {
	m.mu.Lock()
	m.current = &prof
	m.mu.Unlock()
}

func (m *Manager) clearCurrent() {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
}

func (m *Manager) beginCall() {
	m.mu.Lock()
	m.inFlight = true
	m.mu.Unlock()
}

func (m *Manager) endCall() {
	m.mu.Lock()
	m.inFlight = false
	m.mu.Unlock()
}

// translate swaps an adapter error's message for its user-facing
// translation when the code is in the table; unmapped errors pass
// through verbatim.
func translate(err error) error {
	var appErr *core.Error
	if !errors.As(err, &appErr) {
		return err
	}
	if msg, ok := authMessages[appErr.Code]; ok {
		return &core.Error{Kind: appErr.Kind, Code: appErr.Code, Message: msg, Err: appErr}
	}
	return err
}
