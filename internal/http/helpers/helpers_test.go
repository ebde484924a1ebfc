package helpers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	_, ok := BearerToken(r)
	assert.False(t, ok)

	r.Header.Set("Authorization", "bearer abc123")
	tok, ok := BearerToken(r)
	require.True(t, ok)
	assert.Equal(t, "abc123", tok)

	r.Header.Set("Authorization", "Bearer ")
	_, ok = BearerToken(r)
	assert.False(t, ok)

	r.Header.Set("Authorization", "Basic Zm9vOmJhcg==")
	_, ok = BearerToken(r)
	assert.False(t, ok)
}

func TestBasicCredentials(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.SetBasicAuth("alicea", "userpass1")
	u, p, ok := BasicCredentials(r)
	require.True(t, ok)
	assert.Equal(t, "alicea", u)
	assert.Equal(t, "userpass1", p)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", ClientIP(r))

	// Sin proxies de confianza los headers no cuentan
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "10.0.0.1", ClientIP(r))
	assert.Equal(t, "10.0.0.1", TrustedProxies(nil).Resolve(r))

	r = r.WithContext(WithClientIP(r.Context(), "203.0.113.7"))
	assert.Equal(t, "203.0.113.7", ClientIP(r))
}

func TestTrustedProxiesResolve(t *testing.T) {
	tp, err := ParseTrustedProxies([]string{"10.0.0.0/8", " 192.168.1.10 ", ""})
	require.NoError(t, err)
	require.Len(t, tp, 2)

	cases := []struct {
		remote, xff, realIP, want string
	}{
		{"10.0.0.1:1", "203.0.113.7", "", "203.0.113.7"},
		{"10.0.0.1:1", "1.2.3.4, 203.0.113.7, 10.0.0.5", "", "203.0.113.7"},
		{"10.0.0.1:1", "10.0.0.9, 10.0.0.5", "", "10.0.0.9"},
		{"10.0.0.1:1", "", "198.51.100.4", "198.51.100.4"},
		{"10.0.0.1:1", "garbage", "", "10.0.0.1"},
		{"192.168.1.10:1", "203.0.113.9", "", "203.0.113.9"},
		{"192.168.1.11:1", "203.0.113.9", "198.51.100.4", "192.168.1.11"},
		{"203.0.113.50:1", "1.1.1.1", "", "203.0.113.50"},
	}
	for _, c := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = c.remote
		if c.xff != "" {
			r.Header.Set("X-Forwarded-For", c.xff)
		}
		if c.realIP != "" {
			r.Header.Set("X-Real-IP", c.realIP)
		}
		assert.Equal(t, c.want, tp.Resolve(r), "remote=%s xff=%q", c.remote, c.xff)
	}

	_, err = ParseTrustedProxies([]string{"not-an-ip"})
	assert.Error(t, err)
}

func TestBuildCookie(t *testing.T) {
	o := CookieOptions{Name: "til-session", SameSite: "strict", Secure: true}
	ck := BuildCookie(o, "v", time.Hour)
	assert.Equal(t, http.SameSiteStrictMode, ck.SameSite)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, 3600, ck.MaxAge)

	del := BuildDeletionCookie(o)
	assert.Equal(t, -1, del.MaxAge)
	assert.Empty(t, del.Value)
}

func TestReadJSON(t *testing.T) {
	var v struct{ Name string }

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	require.True(t, ReadJSON(w, r, &v))
	assert.Equal(t, "x", v.Name)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	r.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	assert.False(t, ReadJSON(w, r, &v))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`name=x`))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	assert.False(t, ReadJSON(w, r, &v))
}
