package middlewares

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dropDatabas3/tilgate/internal/cache"
	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	"github.com/dropDatabas3/tilgate/internal/http/services/auth"
	"github.com/dropDatabas3/tilgate/internal/http/services/security"
	"github.com/dropDatabas3/tilgate/internal/http/services/session"
	"github.com/dropDatabas3/tilgate/internal/rate"
	"github.com/dropDatabas3/tilgate/internal/security/password"
	"github.com/dropDatabas3/tilgate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store  *store.Store
	auth   auth.Services
	mgr    *session.Manager
	alice  *repository.User
	admin  *repository.User
	cookie string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	st := store.NewMemory()
	ctx := context.Background()
	hash, err := password.Hash(password.Fast, "userpass1")
	require.NoError(t, err)

	alice, err := st.Users.Create(ctx, repository.CreateUserInput{Name: "Alice", Username: "alicea", PasswordHash: hash, Role: types.RoleStandard})
	require.NoError(t, err)
	admin, err := st.Users.Create(ctx, repository.CreateUserInput{Name: "Admin", Username: "admin", PasswordHash: hash, Role: types.RoleAdmin})
	require.NoError(t, err)

	svcs := auth.NewServices(auth.Deps{Users: st.Users, Tokens: st.Tokens, Hasher: password.Fast, TokenTTL: time.Hour})
	mgr := session.NewManager(session.Deps{
		Store:       session.NewStore(cache.NewMemory("", 0), time.Hour),
		Users:       st.Users,
		Credentials: svcs.Credentials,
		Cookie:      helpers.CookieOptions{Name: "til-session", SameSite: "lax"},
	})
	return fixture{store: st, auth: svcs, mgr: mgr, alice: alice, admin: admin, cookie: "til-session"}
}

// login abre una sesión para u y devuelve la cookie.
func (f fixture) login(t *testing.T, u *repository.User) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	_, err := f.mgr.Establish(context.Background(), rec, httptest.NewRequest(http.MethodPost, "/login", nil), u)
	require.NoError(t, err)
	for _, c := range rec.Result().Cookies() {
		if c.Name == f.cookie {
			return c
		}
	}
	t.Fatal("no session cookie")
	return nil
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(okHandler, mw("a"), mw("b"), mw("c"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestWithRequestID(t *testing.T) {
	var seen string
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}), WithRequestID())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 32)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
}

func TestWithRecover(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }), WithRecover())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWithRateLimit(t *testing.T) {
	lim, err := rate.NewMemoryLimiter(2, time.Minute, 0)
	require.NoError(t, err)
	h := Chain(okHandler, WithRateLimit(RateLimitConfig{Limiter: lim, Methods: []string{http.MethodPost}}))

	do := func(method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, "/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, do(http.MethodPost).Code)
	assert.Equal(t, http.StatusNoContent, do(http.MethodPost).Code)
	rec := do(http.MethodPost)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// GET no consume cupo
	assert.Equal(t, http.StatusNoContent, do(http.MethodGet).Code)
}

func TestRateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	lim, err := rate.NewMemoryLimiter(2, time.Minute, 0)
	require.NoError(t, err)
	h := Chain(okHandler,
		WithClientIP(nil),
		WithRateLimit(RateLimitConfig{Limiter: lim, Methods: []string{http.MethodPost}}),
	)

	blocked := 0
	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("198.51.100.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("192.0.2.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			blocked++
		}
	}
	assert.Equal(t, 18, blocked)
}

func TestRateLimitBehindTrustedProxy(t *testing.T) {
	trusted, err := helpers.ParseTrustedProxies([]string{"10.0.0.0/8"})
	require.NoError(t, err)
	lim, err := rate.NewMemoryLimiter(1, time.Minute, 0)
	require.NoError(t, err)
	h := Chain(okHandler,
		WithClientIP(trusted),
		WithRateLimit(RateLimitConfig{Limiter: lim}),
	)

	do := func(client string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("X-Forwarded-For", client)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// Clientes distintos detrás del proxy tienen cupos separados
	assert.Equal(t, http.StatusNoContent, do("203.0.113.7"))
	assert.Equal(t, http.StatusNoContent, do("203.0.113.8"))
	assert.Equal(t, http.StatusTooManyRequests, do("203.0.113.7"))
	// Un hop falso a la izquierda no cambia la clave
	assert.Equal(t, http.StatusTooManyRequests, do("1.2.3.4, 203.0.113.7"))
}

func TestRequireBearer(t *testing.T) {
	f := newFixture(t)
	issued, err := f.auth.Tokens.Issue(context.Background(), f.alice)
	require.NoError(t, err)

	var who *repository.User
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		who = GetIdentity(r.Context())
		assert.Equal(t, AuthMethodBearer, GetAuthMethod(r.Context()))
	}), RequireBearer(f.auth.Tokens))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+issued.Value)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, who)
	assert.Equal(t, f.alice.ID, who.ID)
}

func TestLoadAndRequireSession(t *testing.T) {
	f := newFixture(t)
	var who *repository.User
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		who = GetIdentity(r.Context())
	}), LoadSession(f.mgr), RequireSession())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(f.login(t, f.alice))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, who)
	assert.Equal(t, "alicea", who.Username)
}

func TestLoadSessionDropsDeletedIdentity(t *testing.T) {
	f := newFixture(t)
	ck := f.login(t, f.alice)
	require.NoError(t, f.store.Users.SoftDelete(context.Background(), f.alice.ID, time.Now()))

	h := Chain(okHandler, LoadSession(f.mgr), RequireSession())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(ck)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestRequireAction(t *testing.T) {
	f := newFixture(t)
	h := Chain(okHandler, LoadSession(f.mgr), RequireAction(types.ActionSoftDeleteUser))

	req := httptest.NewRequest(http.MethodPost, "/users/x/delete", nil)
	req.AddCookie(f.login(t, f.alice))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/users/x/delete", nil)
	req.AddCookie(f.login(t, f.admin))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireCSRF(t *testing.T) {
	f := newFixture(t)
	guard := security.NewCSRFService(f.mgr)
	ck := f.login(t, f.alice)
	h := Chain(okHandler, LoadSession(f.mgr), RequireCSRF(guard))

	post := func(token string) int {
		form := url.Values{}
		if token != "" {
			form.Set(security.FormField, token)
		}
		req := httptest.NewRequest(http.MethodPost, "/acronyms/create", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(ck)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	hdl, err := f.mgr.Current(context.Background(), func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.AddCookie(ck)
		return r
	}())
	require.NoError(t, err)

	// sin token emitido
	assert.Equal(t, http.StatusBadRequest, post("anything"))

	tok, err := guard.Issue(context.Background(), hdl)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, post("wrong"))
	// el intento fallido consumió el token
	assert.Equal(t, http.StatusBadRequest, post(tok))

	tok, err = guard.Issue(context.Background(), hdl)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, post(tok))
	// single-use
	assert.Equal(t, http.StatusBadRequest, post(tok))
}

func TestRequireCSRFSkipsSafeMethods(t *testing.T) {
	f := newFixture(t)
	h := Chain(okHandler, RequireCSRF(security.NewCSRFService(f.mgr)))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/acronyms/create", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
