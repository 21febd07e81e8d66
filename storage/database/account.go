package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/taskora/taskora-go/core"
	"github.com/taskora/taskora-go/core/session"
)

var nowFn = time.Now

// Repository is the self-host session.Backend: accounts and profiles in
// Postgres, HS256 access tokens signed with the app secret. It keeps the
// same local-session and auth-stream semantics as the hosted client so
// the Manager cannot tell the two apart.
type Repository struct {
	db     *sqlx.DB
	conf   *core.Config
	mailer core.EmailService
	log    core.Logger

	mu        sync.Mutex
	current   *session.Session
	listeners map[int]func(session.AuthChange)
	order     []int
	nextID    int
}

var _ session.Backend = (*Repository)(nil)

func NewRepository(db *sqlx.DB, conf *core.Config, mailer core.EmailService, log core.Logger) *Repository {
	return &Repository{
		db:        db,
		conf:      conf,
		mailer:    mailer,
		log:       log,
		listeners: make(map[int]func(session.AuthChange)),
	}
}

type accountRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash []byte    `db:"password_hash"`
	Confirmed    bool      `db:"confirmed"`
	CreatedAt    time.Time `db:"created_at"`
}

func (a accountRow) identity() session.Identity {
	ident := session.Identity{
		ID:        a.ID,
		Email:     a.Email,
		CreatedAt: a.CreatedAt,
	}
	if a.Confirmed {
		ident.ConfirmedAt = a.CreatedAt
	}
	return ident
}

const pqUniqueViolation = "23505"

func (r *Repository) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (session.Identity, *session.Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return session.Identity{}, nil, errors.Wrap(err, "hashing password")
	}

	acct := accountRow{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Confirmed:    true, // self-host accounts need no email confirmation
		CreatedAt:    nowFn().UTC(),
	}
	const q = `
	INSERT INTO accounts (id, email, password_hash, confirmed, created_at)
	VALUES ($1, $2, $3, $4, $5)`
	if _, err = r.db.ExecContext(ctx, q, acct.ID, acct.Email, acct.PasswordHash, acct.Confirmed, acct.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return session.Identity{}, nil, core.NewAuthError(core.CodeEmailExists, "an account with this email already exists", err)
		}
		return session.Identity{}, nil, errors.Wrap(err, "inserting account")
	}

	ident := acct.identity()
	ident.Metadata = metadata
	sess := r.issueSession(ident)
	r.emit(session.AuthChange{Event: session.AuthSignedIn, Session: sess})
	return ident, sess, nil
}

func (r *Repository) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	var acct accountRow
	err := r.db.GetContext(ctx, &acct, `SELECT * FROM accounts WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		return nil, core.NewAuthError(core.CodeInvalidCredentials, "invalid email or password", err)
	}
	if err != nil {
		return nil, errors.Wrap(err, "looking up account")
	}
	if err = bcrypt.CompareHashAndPassword(acct.PasswordHash, []byte(password)); err != nil {
		return nil, core.NewAuthError(core.CodeInvalidCredentials, "invalid email or password", err)
	}
	if !acct.Confirmed {
		return nil, core.NewAuthError(core.CodeEmailNotConfirmed, "email not confirmed", nil)
	}

	sess := r.issueSession(acct.identity())
	r.emit(session.AuthChange{Event: session.AuthSignedIn, Session: sess})
	return sess, nil
}

func (r *Repository) SignOut(ctx context.Context) error {
	r.mu.Lock()
	r.current = nil
	r.mu.Unlock()
	r.emit(session.AuthChange{Event: session.AuthSignedOut})
	return nil
}

func (r *Repository) GetUser(ctx context.Context) (session.Identity, error) {
	r.mu.Lock()
	sess := r.current
	r.mu.Unlock()
	if sess == nil {
		return session.Identity{}, core.NewNotAuthenticatedError()
	}

	var acct accountRow
	err := r.db.GetContext(ctx, &acct, `SELECT * FROM accounts WHERE id = $1`, sess.Identity.ID)
	if err == sql.ErrNoRows {
		return session.Identity{}, core.NewAuthError(core.CodeInvalidCredentials, "account no longer exists", err)
	}
	if err != nil {
		return session.Identity{}, errors.Wrap(err, "looking up account")
	}
	return acct.identity(), nil
}

func (r *Repository) UpdatePassword(ctx context.Context, newPassword string) error {
	r.mu.Lock()
	sess := r.current
	r.mu.Unlock()
	if sess == nil {
		return core.NewNotAuthenticatedError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	_, err = r.db.ExecContext(ctx, `UPDATE accounts SET password_hash = $1 WHERE id = $2`, hash, sess.Identity.ID)
	return errors.Wrap(err, "updating password")
}

// ResetPassword emails a reset link. An unknown email is not an error;
// reporting it would leak which addresses have accounts.
func (r *Repository) ResetPassword(ctx context.Context, email string) error {
	var acct accountRow
	err := r.db.GetContext(ctx, &acct, `SELECT * FROM accounts WHERE email = $1`, email)
	if err == sql.ErrNoRows {
		r.log.Debug("password reset requested for unknown email", email)
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "looking up account")
	}

	token := makeResetToken(r.conf.SecretKey, acct)
	link := fmt.Sprintf("%s/password-reset/%s/%s", r.conf.FrontendBaseURL, acct.ID, token)
	r.mailer.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: acct.Email}},
		Subject: fmt.Sprintf("Password reset on %s", r.conf.AppName),
		BodyStr: fmt.Sprintf(
			"You're receiving this email because you requested a password reset for your %s account.\n\n"+
				"Please follow the link below to choose a new password:\n%s\n\n"+
				"If you didn't ask for a reset you can safely ignore this email.",
			r.conf.AppName, link,
		),
	})
	return nil
}

// SetPassword is an administrative override keyed by email, with no
// session or token involved. Only the admin CLI should reach for it.
func (r *Repository) SetPassword(ctx context.Context, email, newPassword string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET password_hash = $1 WHERE email = $2`, hash, email)
	if err != nil {
		return errors.Wrap(err, "updating password")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.NewAuthError(core.CodeInvalidCredentials, "no account with this email")
	}
	return nil
}

// ConfirmPasswordReset validates a reset token from the emailed link and
// sets the new password.
func (r *Repository) ConfirmPasswordReset(ctx context.Context, accountID, token, newPassword string) error {
	var acct accountRow
	err := r.db.GetContext(ctx, &acct, `SELECT * FROM accounts WHERE id = $1`, accountID)
	if err == sql.ErrNoRows {
		return core.NewAuthError(core.CodeInvalidCredentials, "invalid or expired reset token", err)
	}
	if err != nil {
		return errors.Wrap(err, "looking up account")
	}
	if !checkResetToken(r.conf.SecretKey, acct, token) {
		return core.NewAuthError(core.CodeInvalidCredentials, "invalid or expired reset token", nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hashing password")
	}
	_, err = r.db.ExecContext(ctx, `UPDATE accounts SET password_hash = $1 WHERE id = $2`, hash, acct.ID)
	return errors.Wrap(err, "updating password")
}

func (r *Repository) OnAuthStateChange(fn func(session.AuthChange)) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.listeners[id] = fn
	r.order = append(r.order, id)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.listeners, id)
		for i, v := range r.order {
			if v == id {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
}

// CurrentSession returns the live session, if any. The API server uses
// it to answer token introspection without re-parsing the JWT.
func (r *Repository) CurrentSession() *session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Repository) emit(chg session.AuthChange) {
	r.mu.Lock()
	fns := make([]func(session.AuthChange), 0, len(r.order))
	for _, id := range r.order {
		if fn, ok := r.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn(chg)
	}
}

func (r *Repository) issueSession(ident session.Identity) *session.Session {
	expiresAt := nowFn().Add(r.conf.JWTExpirationDelta)
	token, err := SignAccessToken(r.conf.SecretKey, ident, expiresAt)
	if err != nil {
		// only reachable with a broken secret; keep the flow alive
		r.log.Error("signing access token", err)
	}
	sess := &session.Session{
		AccessToken:  token,
		RefreshToken: uuid.New().String(),
		ExpiresAt:    expiresAt,
		Identity:     ident,
	}
	r.mu.Lock()
	r.current = sess
	r.mu.Unlock()
	return sess
}

// Claims is the access token payload.
type Claims struct {
	jwt.StandardClaims
	Email string `json:"email"`
}

func SignAccessToken(secret []byte, ident session.Identity, expiresAt time.Time) (string, error) {
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   ident.ID,
			IssuedAt:  nowFn().Unix(),
			ExpiresAt: expiresAt.Unix(),
		},
		Email: ident.Email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// VerifyAccessToken parses and verifies an access token issued by
// SignAccessToken.
func VerifyAccessToken(secret []byte, token string) (Claims, error) {
	claims := Claims{}
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return Claims{}, core.NewAuthError(core.CodeInvalidCredentials, "invalid access token", err)
	}
	return claims, nil
}
