package views

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllPagesParse(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	assert.Len(t, r.pages, len(pages))
}

func TestRenderLoginError(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, r.Render(rec, http.StatusOK, PageLogin, LoginPage{
		Page:       Page{Title: "Log In"},
		LoginError: true,
		Providers:  []string{"github", "google"},
	}))
	body := rec.Body.String()
	assert.Contains(t, body, "problem with your username or password")
	assert.Contains(t, body, `href="/login-google"`)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestRenderEscapesAndCSRF(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	admin := &repository.User{ID: "a1", Username: "admin", Role: types.RoleAdmin}
	rec := httptest.NewRecorder()
	require.NoError(t, r.Render(rec, http.StatusOK, PageIndex, IndexPage{
		Page:      Page{Title: "Home", Viewer: admin},
		Acronyms:  []repository.Acronym{{ID: "x1", Short: "<b>OMG</b>", Long: "Oh My God", UserID: "u2"}},
		Users:     []repository.User{{ID: "u2", Username: "alicea", Name: "Alice", Role: types.RoleStandard}},
		CSRFToken: "tok123",
		Editable:  map[string]bool{"x1": true},
	}))
	body := rec.Body.String()
	assert.NotContains(t, body, "<b>OMG</b>")
	assert.Contains(t, body, "&lt;b&gt;OMG&lt;/b&gt;")
	assert.Contains(t, body, `value="tok123"`)
	assert.Contains(t, body, `/users/u2/delete`)
	assert.Contains(t, body, `/acronyms/x1/edit`)
}

func TestIndexCanEdit(t *testing.T) {
	p := IndexPage{Editable: map[string]bool{"a1": true}}
	assert.True(t, p.CanEdit(repository.Acronym{ID: "a1"}))
	assert.False(t, p.CanEdit(repository.Acronym{ID: "a2"}))
	assert.False(t, IndexPage{}.CanEdit(repository.Acronym{ID: "a1"}))
}

func TestRenderUnknownPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	assert.Error(t, r.Render(httptest.NewRecorder(), http.StatusOK, "nope", nil))
}
