package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDetailDoesNotMutateCatalogue(t *testing.T) {
	e := ErrForbidden.WithDetail("admin only")
	assert.Equal(t, "admin only", e.Detail)
	assert.Empty(t, ErrForbidden.Detail)
}

func TestFromErrorUnwrapsWrapped(t *testing.T) {
	wrapped := fmt.Errorf("ctx: %w", ErrUserNotFound)
	assert.Same(t, ErrUserNotFound, FromError(wrapped))

	plain := fmt.Errorf("boom")
	got := FromError(plain)
	assert.Equal(t, http.StatusInternalServerError, got.HTTPStatus)
	assert.ErrorIs(t, got, plain)
}

func TestWriteErrorHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, ErrConflict.WithCause(fmt.Errorf("pq: duplicate key")).WithDetail("username"))

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CONFLICT", body["code"])
	assert.Equal(t, "username", body["detail"])
	assert.NotContains(t, rec.Body.String(), "duplicate key")
}
