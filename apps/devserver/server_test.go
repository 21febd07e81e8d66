package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskora/taskora-go/core"
	"github.com/taskora/taskora-go/core/session"
	hostedapi "github.com/taskora/taskora-go/services/hosted"
	dummydb "github.com/taskora/taskora-go/storage/database/dummy"
)

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

// setup serves the dev backend from an in-memory store and points a
// hosted client at it, the way the SDK would talk to the real service.
func setup(t *testing.T) (*hostedapi.Client, *dummydb.Backend) {
	t.Helper()

	store := dummydb.New()
	conf := &core.Config{TestMode: true}
	app := NewServer(&Options{
		DisableReqLogs: true,
		Conf:           conf,
		Store:          store,
	})
	srv := httptest.NewServer(app)
	t.Cleanup(srv.Close)

	clientConf := &core.Config{}
	clientConf.Hosted.BaseURL = srv.URL
	clientConf.Hosted.APIKey = "dev-api-key"
	client := hostedapi.NewClient(clientConf, nopLogger{})
	t.Cleanup(client.Close)
	return client, store
}

func TestServer_authRoundTrip(t *testing.T) {
	ctx := context.Background()
	client, _ := setup(t)

	ident, sess, err := client.SignUp(ctx, "awe@test.cd", "s3cr3t", map[string]interface{}{"name": "Awe"})
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "awe@test.cd", ident.Email)
	assert.Equal(t, sess.AccessToken, client.AccessToken())

	got, err := client.GetUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, ident.ID, got.ID)

	require.NoError(t, client.SignOut(ctx))
	assert.Empty(t, client.AccessToken())

	_, err = client.SignIn(ctx, "awe@test.cd", "wrong")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindAuth))
	assert.Equal(t, core.CodeInvalidCredentials, core.ErrorCode(err))

	sess, err = client.SignIn(ctx, "awe@test.cd", "s3cr3t")
	require.NoError(t, err)
	assert.Equal(t, ident.ID, sess.Identity.ID)
}

func TestServer_signUpErrors(t *testing.T) {
	ctx := context.Background()
	client, _ := setup(t)

	_, _, err := client.SignUp(ctx, "awe@test.cd", "s3cr3t", nil)
	require.NoError(t, err)

	_, _, err = client.SignUp(ctx, "awe@test.cd", "s3cr3t", nil)
	require.Error(t, err)
	assert.Equal(t, core.CodeEmailExists, core.ErrorCode(err))

	_, _, err = client.SignUp(ctx, "other@test.cd", "meh", nil)
	require.Error(t, err)
	assert.Equal(t, core.CodeWeakPassword, core.ErrorCode(err))
}

func TestServer_pendingConfirmation(t *testing.T) {
	ctx := context.Background()
	client, store := setup(t)
	store.RequireConfirmation = true

	ident, sess, err := client.SignUp(ctx, "awe@test.cd", "s3cr3t", nil)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.NotEmpty(t, ident.ID)

	_, err = client.SignIn(ctx, "awe@test.cd", "s3cr3t")
	require.Error(t, err)
	assert.Equal(t, core.CodeEmailNotConfirmed, core.ErrorCode(err))

	store.Confirm("awe@test.cd")
	_, err = client.SignIn(ctx, "awe@test.cd", "s3cr3t")
	assert.NoError(t, err)
}

func TestServer_profiles(t *testing.T) {
	ctx := context.Background()
	client, _ := setup(t)

	_, sess, err := client.SignUp(ctx, "awe@test.cd", "s3cr3t", nil)
	require.NoError(t, err)
	require.NotNil(t, sess)

	_, err = client.GetProfile(ctx, sess.Identity.ID)
	require.Error(t, err)
	assert.Equal(t, core.CodeProfileNotFound, core.ErrorCode(err))

	prof, err := client.UpsertProfile(ctx, session.Profile{
		ID:    sess.Identity.ID,
		Email: "awe@test.cd",
		Name:  "Awe",
		Role:  session.RoleStudent,
	})
	require.NoError(t, err)
	assert.Equal(t, "Awe", prof.Name)

	prof.Name = "Awe II"
	prof, err = client.UpsertProfile(ctx, prof)
	require.NoError(t, err)
	assert.Equal(t, "Awe II", prof.Name)

	got, err := client.GetProfile(ctx, sess.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, "Awe II", got.Name)
}

func TestServer_requiresAuth(t *testing.T) {
	ctx := context.Background()
	client, _ := setup(t)

	// no session: the client falls back to the api key, which the
	// table API does not accept
	_, err := client.GetProfile(ctx, "some-id")
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindAuth))
}

// TestServer_fullStack runs the session manager against the dev backend
// through the hosted client, end to end.
func TestServer_fullStack(t *testing.T) {
	ctx := context.Background()
	client, _ := setup(t)

	mgr := session.NewManager(client, nopLogger{})
	defer mgr.Close()

	var events []session.Event
	mgr.OnSessionEvent(func(evt session.Event) { events = append(events, evt) })

	res, err := mgr.Register(ctx, session.RegisterInput{
		Email:    "awe@test.cd",
		Password: "s3cr3t",
		Name:     "Awe",
		Role:     session.RoleInstructor,
	})
	require.NoError(t, err)
	assert.False(t, res.PendingConfirmation)
	assert.Equal(t, "Awe", res.Profile.Name)
	assert.True(t, mgr.IsAuthenticated())

	require.NoError(t, mgr.Logout(ctx))
	assert.False(t, mgr.IsAuthenticated())

	prof, err := mgr.Login(ctx, "awe@test.cd", "s3cr3t")
	require.NoError(t, err)
	assert.Equal(t, "Awe", prof.Name)
	assert.True(t, prof.IsInstructor())

	name := "Awe II"
	prof, err = mgr.UpdateProfile(ctx, session.ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Awe II", prof.Name)

	require.Len(t, events, 3)
	assert.Equal(t, session.SignedIn, events[0].Kind)
	assert.Equal(t, session.SignedOut, events[1].Kind)
	assert.Equal(t, session.SignedIn, events[2].Kind)
}
