package hopon_test

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hopon/go-hopon"
)

func newTestClient(t *testing.T, backend *fakeBackend) *hopon.Client {
	t.Helper()
	client, err := hopon.NewClient(hopon.SimpleConfig{BaseURL: backend.URL()})
	require.NoError(t, err)
	client.WithLogger(quietLogger{})
	return client
}

func TestNewClientRejectsBadBaseURL(t *testing.T) {
	_, err := hopon.NewClient(hopon.SimpleConfig{BaseURL: "://nope"})
	assert.Error(t, err)
}

func TestBearerIsReadAtSendTime(t *testing.T) {
	backend := newFakeBackend(t)
	client := newTestClient(t, backend)
	ctx := context.Background()

	token := "stale-garbage"
	client.SetTokenSource(func() string { return token })

	_, err := client.MyEvents(ctx)
	assert.True(t, hopon.IsUnauthorizedError(err))

	token = backend.mintToken("fresh@hopon.dev")
	_, err = client.MyEvents(ctx)
	assert.NoError(t, err, "a rotated token must be picked up without rebuilding the client")
}

func TestLoginValidatesBeforeSending(t *testing.T) {
	backend := newFakeBackend(t)
	client := newTestClient(t, backend)

	_, err := client.Login(context.Background(), hopon.Credentials{Email: "not-an-email", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, 0, backend.Calls("/auth/login"))
}

func TestLoginSurfacesBackendMessage(t *testing.T) {
	backend := newFakeBackend(t)
	client := newTestClient(t, backend)

	_, err := client.Login(context.Background(), hopon.Credentials{Email: "a@b.co", Password: "wrong"})
	require.Error(t, err)

	var apiErr *hopon.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, "invalid credentials", apiErr.Message)
	assert.Equal(t, "API 401: invalid credentials", apiErr.Error())
}

func TestCheckUsernameAvailable(t *testing.T) {
	backend := newFakeBackend(t)
	client := newTestClient(t, backend)
	ctx := context.Background()

	free, err := client.CheckUsernameAvailable(ctx, "fresh name")
	require.NoError(t, err)
	assert.True(t, free)

	free, err = client.CheckUsernameAvailable(ctx, "taken")
	require.NoError(t, err)
	assert.False(t, free)
}

func TestSetupAccount(t *testing.T) {
	backend := newFakeBackend(t)
	client := newTestClient(t, backend)
	token := backend.mintToken("setup@hopon.dev")
	client.SetTokenSource(func() string { return token })

	user, err := client.SetupAccount(context.Background(), hopon.SetupAccountInput{Username: "brand-new"})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "brand-new", user.Username)
	assert.False(t, user.NeedsUsernameSetup)
}

func TestNearbyEvents(t *testing.T) {
	backend := newFakeBackend(t)
	client := newTestClient(t, backend)

	events, err := client.NearbyEvents(context.Background(), 40.7, -73.9)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Morning Run", events[0].Name)
}

func TestGuestJoinLeaveFlow(t *testing.T) {
	backend := newFakeBackend(t)
	client := newTestClient(t, backend)
	ctx := context.Background()

	joined, err := client.JoinEvent(ctx, 9, hopon.JoinEventInput{PlayerName: "Sam"})
	require.NoError(t, err)
	require.NotEmpty(t, joined.GuestToken, "unauthenticated joins mint a guest token")

	again, err := client.JoinEvent(ctx, 9, hopon.JoinEventInput{GuestToken: joined.GuestToken})
	require.NoError(t, err)
	assert.Equal(t, "already joined", again.Message)

	require.NoError(t, client.LeaveEvent(ctx, 9, joined.GuestToken))

	err = client.LeaveEvent(ctx, 9, joined.GuestToken)
	require.Error(t, err, "a spent guest token no longer identifies the guest")
}

func TestGoogleLoginURLEncodesNext(t *testing.T) {
	client, err := hopon.NewClient(hopon.SimpleConfig{BaseURL: "https://api.hopon.dev"})
	require.NoError(t, err)

	next := "http://127.0.0.1:53100/callback?state=abc123"
	loginURL := client.GoogleLoginURL(next)

	parsed, err := url.Parse(loginURL)
	require.NoError(t, err)
	assert.Equal(t, "/auth/google/login", parsed.Path)
	assert.Equal(t, next, parsed.Query().Get("next"))
}

func TestClientMetrics(t *testing.T) {
	backend := newFakeBackend(t)
	client := newTestClient(t, backend)

	reg := prometheus.NewRegistry()
	metrics := hopon.NewMetrics(reg)
	client.WithMetrics(metrics)

	_, err := client.Session(context.Background())
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	var requests float64
	for _, f := range families {
		if f.GetName() != "hopon_client_requests_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			requests += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, requests)
}

func TestClientMetricsLabelBareRoutes(t *testing.T) {
	backend := newFakeBackend(t)
	client := newTestClient(t, backend)

	reg := prometheus.NewRegistry()
	client.WithMetrics(hopon.NewMetrics(reg))
	ctx := context.Background()

	_, err := client.CheckUsernameAvailable(ctx, "someone")
	require.NoError(t, err)
	_, err = client.NearbyEvents(ctx, 40.7, -73.9)
	require.NoError(t, err)

	families, err := reg.Gather()
	require.NoError(t, err)

	var paths []string
	for _, f := range families {
		for _, m := range f.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() != "path" {
					continue
				}
				assert.NotContains(t, label.GetValue(), "?", "query values must not become label values")
				paths = append(paths, label.GetValue())
			}
		}
	}
	assert.Contains(t, paths, "/auth/username-available")
	assert.Contains(t, paths, "/events/nearby")
}
