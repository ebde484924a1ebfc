package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/tilgate/internal/bootstrap"
	"github.com/dropDatabas3/tilgate/internal/cache"
	"github.com/dropDatabas3/tilgate/internal/config"
	mail "github.com/dropDatabas3/tilgate/internal/email"
	dto "github.com/dropDatabas3/tilgate/internal/http/dto/auth"
	"github.com/dropDatabas3/tilgate/internal/oauth"
	"github.com/dropDatabas3/tilgate/internal/security/password"
	"github.com/dropDatabas3/tilgate/internal/store"
)

type harness struct {
	t      *testing.T
	srv    *httptest.Server
	store  *store.Store
	mailer *mail.MemorySender
}

func newHarness(t *testing.T, providers ...oauth.Provider) *harness {
	t.Helper()
	cfg, err := config.LoadOrDefault("")
	require.NoError(t, err)
	cfg.Rate.Enabled = false
	cfg.App.BaseURL = "http://tilgate.test"

	st := store.NewMemory()
	mailer := &mail.MemorySender{}
	ctx := context.Background()

	_, err = bootstrap.EnsureAdmin(ctx, bootstrap.AdminConfig{Users: st.Users, Password: "adminpass", Hasher: password.Fast})
	require.NoError(t, err)

	a, err := New(ctx, Deps{
		Config:   cfg,
		Store:    st,
		Cache:    cache.NewMemory("test", 0),
		Mailer:   mailer,
		Hasher:   password.Fast,
		Registry: prometheus.NewRegistry(),

		Providers: providers,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler)
	t.Cleanup(srv.Close)
	return &harness{t: t, srv: srv, store: st, mailer: mailer}
}

// browser devuelve un cliente con cookies que no sigue redirects.
func (h *harness) browser() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(h.t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (h *harness) postForm(c *http.Client, path string, form url.Values) *http.Response {
	h.t.Helper()
	resp, err := c.PostForm(h.srv.URL+path, form)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) get(c *http.Client, path string) *http.Response {
	h.t.Helper()
	resp, err := c.Get(h.srv.URL + path)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) apiLogin(username, secret string) (int, string) {
	h.t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/api/users/login", nil)
	require.NoError(h.t, err)
	req.SetBasicAuth(username, secret)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, ""
	}
	var out dto.LoginResponse
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out.Value
}

func (h *harness) api(method, path, bearer string) *http.Response {
	h.t.Helper()
	req, err := http.NewRequest(method, h.srv.URL+path, nil)
	require.NoError(h.t, err)
	req.Header.Set("Authorization", "Bearer "+bearer)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) registerAlice() {
	h.t.Helper()
	resp := h.postForm(h.browser(), "/register", url.Values{
		"name":            {"Alice"},
		"username":        {"alice"},
		"password":        {"correct-horse"},
		"confirmPassword": {"correct-horse"},
		"emailAddress":    {"alice@example.com"},
	})
	require.Equal(h.t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(h.t, "/", resp.Header.Get("Location"))
}

func (h *harness) userID(username string) string {
	u, err := h.store.Users.GetByUsername(context.Background(), username)
	require.NoError(h.t, err)
	return u.ID
}

func TestRegisterLoginAndMe(t *testing.T) {
	h := newHarness(t)
	h.registerAlice()

	status, token := h.apiLogin("alice", "correct-horse")
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, token)

	resp := h.api(http.MethodGet, "/api/users/me", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"username":"alice"`)
	assert.NotContains(t, strings.ToLower(string(body)), "password")

	status, _ = h.apiLogin("alice", "wrong")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRevokedTokenStopsWorking(t *testing.T) {
	h := newHarness(t)
	h.registerAlice()
	_, token := h.apiLogin("alice", "correct-horse")

	assert.Equal(t, http.StatusNoContent, h.api(http.MethodDelete, "/api/tokens/current", token).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, h.api(http.MethodGet, "/api/users/me", token).StatusCode)
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	h := newHarness(t)
	h.registerAlice()

	read := func(email string) string {
		resp := h.postForm(h.browser(), "/forgottenPassword", url.Values{"email": {email}})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		b, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(b)
	}

	known := read("alice@example.com")
	unknown := read("nobody@example.com")
	assert.Equal(t, known, unknown)
	assert.Len(t, h.mailer.Sent(), 1)
}

var tokenInLink = regexp.MustCompile(`token=([A-Za-z0-9_%\-]+)`)

func TestPasswordResetEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.registerAlice()

	h.postForm(h.browser(), "/forgottenPassword", url.Values{"email": {"alice@example.com"}})
	msg, ok := h.mailer.Last()
	require.True(t, ok)
	m := tokenInLink.FindStringSubmatch(msg.Text)
	require.Len(t, m, 2)
	raw, err := url.QueryUnescape(m[1])
	require.NoError(t, err)

	c := h.browser()
	resp := h.get(c, "/resetPassword?token="+url.QueryEscape(raw))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// el token se consume al validarlo
	again := h.get(h.browser(), "/resetPassword?token="+url.QueryEscape(raw))
	assert.Equal(t, http.StatusSeeOther, again.StatusCode)

	resp = h.postForm(c, "/resetPassword", url.Values{"password": {"new-secret-1"}, "confirmPassword": {"different-1"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.postForm(c, "/resetPassword", url.Values{"password": {"new-secret-1"}, "confirmPassword": {"new-secret-1"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	status, _ := h.apiLogin("alice", "correct-horse")
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = h.apiLogin("alice", "new-secret-1")
	assert.Equal(t, http.StatusOK, status)
}

func TestAccountLifecycleOverAPI(t *testing.T) {
	h := newHarness(t)
	h.registerAlice()
	aliceID := h.userID("alice")
	adminID := h.userID("admin")

	_, aliceToken := h.apiLogin("alice", "correct-horse")
	_, adminToken := h.apiLogin("admin", "adminpass")

	// un standard no puede borrar a nadie
	resp := h.api(http.MethodDelete, "/api/users/"+adminID, aliceToken)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = h.api(http.MethodDelete, "/api/users/"+aliceID, adminToken)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	status, _ := h.apiLogin("alice", "correct-horse")
	assert.Equal(t, http.StatusUnauthorized, status)
	// los tokens previos quedan revocados
	assert.Equal(t, http.StatusUnauthorized, h.api(http.MethodGet, "/api/users/me", aliceToken).StatusCode)

	resp = h.api(http.MethodPost, "/api/users/"+aliceID+"/restore", adminToken)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	status, _ = h.apiLogin("alice", "correct-horse")
	assert.Equal(t, http.StatusOK, status)
}

var csrfField = regexp.MustCompile(`name="csrfToken" value="([^"]+)"`)

// webLogin abre sesión web y devuelve el cliente con la cookie.
func (h *harness) webLogin(username, secret string) *http.Client {
	h.t.Helper()
	c := h.browser()
	resp := h.postForm(c, "/login", url.Values{"username": {username}, "password": {secret}})
	require.Equal(h.t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(h.t, "/", resp.Header.Get("Location"))
	return c
}

// indexCSRF renderiza / y extrae el token de los formularios de usuarios.
func (h *harness) indexCSRF(c *http.Client) string {
	h.t.Helper()
	resp := h.get(c, "/")
	require.Equal(h.t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(h.t, err)
	m := csrfField.FindSubmatch(body)
	require.NotNil(h.t, m, "index page has no csrf token")
	return string(m[1])
}

func TestAccountLifecycleOverWeb(t *testing.T) {
	h := newHarness(t)
	h.registerAlice()
	aliceID := h.userID("alice")
	adminID := h.userID("admin")

	// un standard recibe 403 aunque no mande token: el rol se mira primero
	alice := h.webLogin("alice", "correct-horse")
	resp := h.postForm(alice, "/users/"+adminID+"/delete", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	status, _ := h.apiLogin("admin", "adminpass")
	assert.Equal(t, http.StatusOK, status)

	admin := h.webLogin("admin", "adminpass")

	// admin sin token: rechazado por CSRF, nada cambia
	resp = h.postForm(admin, "/users/"+aliceID+"/delete", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	status, _ = h.apiLogin("alice", "correct-horse")
	assert.Equal(t, http.StatusOK, status)

	tok := h.indexCSRF(admin)
	resp = h.postForm(admin, "/users/"+aliceID+"/delete", url.Values{"csrfToken": {tok}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	u, err := h.store.Users.GetByID(context.Background(), aliceID, true)
	require.NoError(t, err)
	assert.True(t, u.Deleted())
	status, _ = h.apiLogin("alice", "correct-horse")
	assert.Equal(t, http.StatusUnauthorized, status)
	// la sesión web de alice murió con el delete
	assert.Equal(t, http.StatusSeeOther, h.get(alice, "/acronyms/create").StatusCode)

	// el token es de un solo uso
	resp = h.postForm(admin, "/users/"+aliceID+"/restore", url.Values{"csrfToken": {tok}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	tok = h.indexCSRF(admin)
	resp = h.postForm(admin, "/users/"+aliceID+"/restore", url.Values{"csrfToken": {tok}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	status, _ = h.apiLogin("alice", "correct-horse")
	assert.Equal(t, http.StatusOK, status)
}

func TestWebLoginAndLogout(t *testing.T) {
	h := newHarness(t)
	h.registerAlice()
	c := h.browser()

	resp := h.get(c, "/acronyms/create")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = h.postForm(c, "/login", url.Values{"username": {"alice"}, "password": {"nope"}})
	assert.Equal(t, "/login?error=true", resp.Header.Get("Location"))

	resp = h.postForm(c, "/login", url.Values{"username": {"alice"}, "password": {"correct-horse"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	assert.Equal(t, http.StatusOK, h.get(c, "/acronyms/create").StatusCode)

	h.postForm(c, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, h.get(c, "/acronyms/create").StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)
	c := h.browser()
	assert.Equal(t, http.StatusOK, h.get(c, "/healthz").StatusCode)
	assert.Equal(t, http.StatusOK, h.get(c, "/readyz").StatusCode)
	assert.Equal(t, http.StatusOK, h.get(c, "/metrics").StatusCode)
}

type fakeIdP struct {
	profile    oauth.Profile
	profileErr error
}

func (f *fakeIdP) Name() string             { return "fake" }
func (f *fakeIdP) MatchKey() oauth.MatchKey { return oauth.MatchByEmail }
func (f *fakeIdP) AuthCodeURL(state string) string {
	return "https://idp.test/authorize?state=" + url.QueryEscape(state)
}
func (f *fakeIdP) Exchange(context.Context, string) (string, error) { return "at", nil }
func (f *fakeIdP) FetchProfile(context.Context, string) (oauth.Profile, error) {
	return f.profile, f.profileErr
}

func (h *harness) startFederated(c *http.Client) string {
	h.t.Helper()
	resp := h.get(c, "/login-fake")
	require.Equal(h.t, http.StatusFound, resp.StatusCode)
	loc, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(h.t, err)
	require.Equal(h.t, "idp.test", loc.Host)
	return loc.Query().Get("state")
}

func TestFederatedLogin(t *testing.T) {
	idp := &fakeIdP{profile: oauth.Profile{Email: "carol@example.com", Name: "Carol"}}
	h := newHarness(t, idp)
	c := h.browser()

	state := h.startFederated(c)
	resp := h.get(c, "/oauth/fake?code=abc&state="+url.QueryEscape(state))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.NotEmpty(t, h.userID("carol@example.com"))

	// con sesión abierta la página protegida responde
	assert.Equal(t, http.StatusOK, h.get(c, "/acronyms/create").StatusCode)

	// el state es de un solo uso
	resp = h.get(c, "/oauth/fake?code=abc&state="+url.QueryEscape(state))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFederatedLoginRestartsOnUnauthorized(t *testing.T) {
	idp := &fakeIdP{profileErr: oauth.ErrProviderUnauthorized}
	h := newHarness(t, idp)
	c := h.browser()

	state := h.startFederated(c)
	resp := h.get(c, "/oauth/fake?code=abc&state="+url.QueryEscape(state))
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login-fake", resp.Header.Get("Location"))
}

func TestFederatedLoginProviderFailureIsFatal(t *testing.T) {
	idp := &fakeIdP{profileErr: oauth.ErrProviderFailure}
	h := newHarness(t, idp)
	c := h.browser()

	state := h.startFederated(c)
	resp := h.get(c, "/oauth/fake?code=abc&state="+url.QueryEscape(state))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestFederatedLoginRefusedAfterSoftDelete(t *testing.T) {
	idp := &fakeIdP{profile: oauth.Profile{Email: "carol@example.com", Name: "Carol"}}
	h := newHarness(t, idp)

	c := h.browser()
	state := h.startFederated(c)
	require.Equal(t, http.StatusSeeOther, h.get(c, "/oauth/fake?code=abc&state="+url.QueryEscape(state)).StatusCode)
	carolID := h.userID("carol@example.com")

	_, adminToken := h.apiLogin("admin", "adminpass")
	require.Equal(t, http.StatusNoContent, h.api(http.MethodDelete, "/api/users/"+carolID, adminToken).StatusCode)

	c = h.browser()
	state = h.startFederated(c)
	resp := h.get(c, "/oauth/fake?code=abc&state="+url.QueryEscape(state))
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login?error=true", resp.Header.Get("Location"))
	assert.Equal(t, http.StatusSeeOther, h.get(c, "/acronyms/create").StatusCode)

	// restore sigue funcionando: no apareció otra identidad con ese username
	require.Equal(t, http.StatusNoContent, h.api(http.MethodPost, "/api/users/"+carolID+"/restore", adminToken).StatusCode)
	c = h.browser()
	state = h.startFederated(c)
	resp = h.get(c, "/oauth/fake?code=abc&state="+url.QueryEscape(state))
	assert.Equal(t, "/", resp.Header.Get("Location"))
	assert.Equal(t, carolID, h.userID("carol@example.com"))
}
