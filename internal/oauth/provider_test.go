package oauth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/dropDatabas3/tilgate/internal/oauth"
	"github.com/dropDatabas3/tilgate/internal/oauth/github"
	"github.com/dropDatabas3/tilgate/internal/oauth/google"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeIdP struct {
	tokenStatus  int
	userStatus   int
	userDelay    time.Duration
	googleUser   map[string]any
	githubUser   map[string]any
	githubEmails []map[string]any
}

func (f *fakeIdP) server(t *testing.T) *httptest.Server {
	t.Helper()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if f.tokenStatus != 0 && f.tokenStatus != http.StatusOK {
			writeJSON(w, f.tokenStatus, map[string]string{"error": "invalid_grant"})
			return
		}
		_ = r.ParseForm()
		if r.Form.Get("code") != "good-code" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_verification_code"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "at-123", "token_type": "bearer"})
	})
	userHandler := func(body func() any) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if f.userDelay > 0 {
				select {
				case <-time.After(f.userDelay):
				case <-r.Context().Done():
					return
				}
			}
			if r.Header.Get("Authorization") != "Bearer at-123" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
				return
			}
			if f.userStatus != 0 && f.userStatus != http.StatusOK {
				writeJSON(w, f.userStatus, map[string]string{"message": "nope"})
				return
			}
			writeJSON(w, http.StatusOK, body())
		}
	}
	mux.HandleFunc("GET /userinfo", userHandler(func() any { return f.googleUser }))
	mux.HandleFunc("GET /user", userHandler(func() any { return f.githubUser }))
	mux.HandleFunc("GET /user/emails", userHandler(func() any { return f.githubEmails }))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func endpoint(srv *httptest.Server) *oauth2.Endpoint {
	return &oauth2.Endpoint{
		AuthURL:   srv.URL + "/authorize",
		TokenURL:  srv.URL + "/token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func newGoogle(srv *httptest.Server, timeout time.Duration) *google.Provider {
	return google.New(google.Config{
		ClientID:     "gid",
		ClientSecret: "gsecret",
		RedirectURL:  "http://localhost/oauth/google",
		Timeout:      timeout,
		HTTP:         srv.Client(),
		Endpoint:     endpoint(srv),
		UserInfoURL:  srv.URL + "/userinfo",
	})
}

func newGitHub(srv *httptest.Server, timeout time.Duration) *github.Provider {
	return github.New(github.Config{
		ClientID:     "ghid",
		ClientSecret: "ghsecret",
		RedirectURL:  "http://localhost/oauth/github",
		Timeout:      timeout,
		HTTP:         srv.Client(),
		Endpoint:     endpoint(srv),
		APIBase:      srv.URL,
	})
}

func TestGoogleProfileMatchesByEmail(t *testing.T) {
	idp := &fakeIdP{googleUser: map[string]any{"email": "alice@example.com", "name": "Alice"}}
	srv := idp.server(t)
	p := newGoogle(srv, time.Second)

	assert.Equal(t, "google", p.Name())
	assert.Equal(t, oauth.MatchByEmail, p.MatchKey())

	at, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "at-123", at)

	prof, err := p.FetchProfile(context.Background(), at)
	require.NoError(t, err)
	assert.Equal(t, "Alice", prof.Name)
	assert.Equal(t, "alice@example.com", prof.Key(p.MatchKey()))
}

func TestGitHubProfileMatchesByLogin(t *testing.T) {
	idp := &fakeIdP{
		githubUser:   map[string]any{"login": "octo", "name": nil},
		githubEmails: []map[string]any{{"email": "octo@example.com", "primary": true}},
	}
	srv := idp.server(t)
	p := newGitHub(srv, time.Second)

	assert.Equal(t, oauth.MatchByUsername, p.MatchKey())

	prof, err := p.FetchProfile(context.Background(), "at-123")
	require.NoError(t, err)
	assert.Equal(t, "octo", prof.Key(p.MatchKey()))
	assert.Equal(t, "octo@example.com", prof.Email)
	assert.Equal(t, "null", prof.Name)
}

func TestProfile401RestartsFlow(t *testing.T) {
	idp := &fakeIdP{googleUser: map[string]any{"email": "a@b.c"}}
	srv := idp.server(t)

	_, err := newGoogle(srv, time.Second).FetchProfile(context.Background(), "expired")
	require.ErrorIs(t, err, oauth.ErrProviderUnauthorized)
	assert.NotErrorIs(t, err, oauth.ErrProviderFailure)

	_, err = newGitHub(srv, time.Second).FetchProfile(context.Background(), "expired")
	require.ErrorIs(t, err, oauth.ErrProviderUnauthorized)
}

func TestProfileOtherStatusIsFatal(t *testing.T) {
	for _, status := range []int{http.StatusForbidden, http.StatusInternalServerError, http.StatusBadGateway} {
		idp := &fakeIdP{userStatus: status}
		srv := idp.server(t)
		_, err := newGoogle(srv, time.Second).FetchProfile(context.Background(), "at-123")
		assert.ErrorIs(t, err, oauth.ErrProviderFailure, "status %d", status)
		assert.NotErrorIs(t, err, oauth.ErrProviderUnauthorized, "status %d", status)
	}
}

func TestProfileTimeoutIsFatal(t *testing.T) {
	idp := &fakeIdP{userDelay: 2 * time.Second, googleUser: map[string]any{"email": "a@b.c"}}
	srv := idp.server(t)

	start := time.Now()
	_, err := newGoogle(srv, 50*time.Millisecond).FetchProfile(context.Background(), "at-123")
	require.ErrorIs(t, err, oauth.ErrProviderFailure)
	assert.Less(t, time.Since(start), time.Second)
}

func TestExchangeErrors(t *testing.T) {
	idp := &fakeIdP{}
	srv := idp.server(t)
	p := newGoogle(srv, time.Second)

	_, err := p.Exchange(context.Background(), "bad-code")
	assert.ErrorIs(t, err, oauth.ErrProviderFailure)

	idp.tokenStatus = http.StatusUnauthorized
	_, err = p.Exchange(context.Background(), "good-code")
	assert.ErrorIs(t, err, oauth.ErrProviderUnauthorized)
}

func TestAuthCodeURL(t *testing.T) {
	srv := (&fakeIdP{}).server(t)
	raw := newGitHub(srv, time.Second).AuthCodeURL("st4te")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "ghid", q.Get("client_id"))
	assert.Equal(t, "st4te", q.Get("state"))
	assert.Equal(t, "user:email", q.Get("scope"))
	assert.Equal(t, "http://localhost/oauth/github", q.Get("redirect_uri"))
}

func TestRegistry(t *testing.T) {
	srv := (&fakeIdP{}).server(t)
	r := oauth.NewRegistry(newGoogle(srv, 0), newGitHub(srv, 0))

	assert.Equal(t, []string{"github", "google"}, r.Names())
	p, err := r.Get("GitHub")
	require.NoError(t, err)
	assert.Equal(t, "github", p.Name())

	_, err = r.Get("twitter")
	assert.ErrorIs(t, err, oauth.ErrUnknownProvider)
}
