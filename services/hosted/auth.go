package hostedapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/taskora/taskora-go/core/session"
)

// defaultTokenLifetime is assumed when neither the token response nor
// the JWT itself says when the session expires.
const defaultTokenLifetime = time.Hour

// refreshMargin is how long before expiry the client refreshes.
const refreshMargin = 30 * time.Second

type tokenResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresIn    int              `json:"expires_in"`
	User         session.Identity `json:"user"`
}

func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]interface{}) (session.Identity, *session.Session, error) {
	body := map[string]interface{}{"email": email, "password": password, "data": metadata}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, nil, body, &raw); err != nil {
		return session.Identity{}, nil, err
	}

	var tok tokenResponse
	_ = json.Unmarshal(raw, &tok)
	if tok.AccessToken == "" {
		// email confirmation still pending: the response is the bare identity
		var ident session.Identity
		if err := json.Unmarshal(raw, &ident); err != nil {
			return session.Identity{}, nil, err
		}
		return ident, nil, nil
	}

	sess := c.setSession(tok)
	c.emit(session.AuthChange{Event: session.AuthSignedIn, Session: sess})
	return tok.User, sess, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*session.Session, error) {
	query := url.Values{"grant_type": {"password"}}
	body := map[string]interface{}{"email": email, "password": password}
	var tok tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", query, nil, body, &tok); err != nil {
		return nil, err
	}
	sess := c.setSession(tok)
	c.emit(session.AuthChange{Event: session.AuthSignedIn, Session: sess})
	return sess, nil
}

// SignOut drops the local session whether or not the backend call
// succeeds; a stale server-side session must never pin the client.
func (c *Client) SignOut(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, nil, nil)
	c.clearSession()
	c.emit(session.AuthChange{Event: session.AuthSignedOut})
	return err
}

func (c *Client) GetUser(ctx context.Context) (session.Identity, error) {
	var ident session.Identity
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, nil, nil, &ident); err != nil {
		return session.Identity{}, err
	}
	return ident, nil
}

func (c *Client) UpdatePassword(ctx context.Context, newPassword string) error {
	body := map[string]interface{}{"password": newPassword}
	return c.do(ctx, http.MethodPut, "/auth/v1/user", nil, nil, body, nil)
}

func (c *Client) ResetPassword(ctx context.Context, email string) error {
	body := map[string]interface{}{"email": email}
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", nil, nil, body, nil)
}

func (c *Client) OnAuthStateChange(fn func(session.AuthChange)) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.listeners[id] = fn
	c.order = append(c.order, id)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
		for i, v := range c.order {
			if v == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
}

func (c *Client) emit(chg session.AuthChange) {
	c.mu.Lock()
	fns := make([]func(session.AuthChange), 0, len(c.order))
	for _, id := range c.order {
		if fn, ok := c.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(chg)
	}
}

func (c *Client) setSession(tok tokenResponse) *session.Session {
	expiresAt := time.Now().Add(defaultTokenLifetime)
	if tok.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	} else if exp := tokenExpiry(tok.AccessToken); !exp.IsZero() {
		expiresAt = exp
	}
	sess := &session.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    expiresAt,
		Identity:     tok.User,
	}

	c.mu.Lock()
	c.session = sess
	if c.refresh != nil {
		c.refresh.Stop()
	}
	delay := time.Until(expiresAt) - refreshMargin
	if delay < time.Second {
		delay = time.Second
	}
	if sess.RefreshToken != "" {
		c.refresh = time.AfterFunc(delay, c.refreshSession)
	}
	c.mu.Unlock()
	return sess
}

func (c *Client) clearSession() {
	c.mu.Lock()
	c.session = nil
	if c.refresh != nil {
		c.refresh.Stop()
		c.refresh = nil
	}
	c.mu.Unlock()
}

// refreshSession exchanges the refresh token for a new session. A
// failed refresh signs the client out, exactly like the hosted backend
// does to a stale browser tab.
func (c *Client) refreshSession() {
	c.mu.Lock()
	sess := c.session
	c.mu.Unlock()
	if sess == nil {
		return
	}

	query := url.Values{"grant_type": {"refresh_token"}}
	body := map[string]interface{}{"refresh_token": sess.RefreshToken}
	var tok tokenResponse
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", query, nil, body, &tok); err != nil {
		c.log.Warn("session refresh failed, signing out", err)
		c.clearSession()
		c.emit(session.AuthChange{Event: session.AuthSignedOut})
		return
	}
	tok.User = sess.Identity
	c.setSession(tok)
}

// tokenExpiry extracts the exp claim without verifying the signature;
// the secret belongs to the backend, the client only needs the clock.
func tokenExpiry(token string) time.Time {
	claims := jwt.StandardClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, &claims); err == nil && claims.ExpiresAt > 0 {
		return time.Unix(claims.ExpiresAt, 0)
	}
	return time.Time{}
}
