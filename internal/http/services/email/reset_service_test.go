package email

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropDatabas3/tilgate/internal/cache"
	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
	mail "github.com/dropDatabas3/tilgate/internal/email"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	"github.com/dropDatabas3/tilgate/internal/http/services/auth"
	"github.com/dropDatabas3/tilgate/internal/http/services/session"
	"github.com/dropDatabas3/tilgate/internal/security/password"
	"github.com/dropDatabas3/tilgate/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc      *ResetService
	sessions *session.Manager
	tokens   *auth.TokenService
	store    *store.Store
	mailer   *mail.MemorySender
	user     *repository.User
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	ctx := context.Background()

	hash, err := password.Hash(password.Fast, "userpass1")
	require.NoError(t, err)
	email := "alice@example.com"
	u, err := st.Users.Create(ctx, repository.CreateUserInput{
		Name: "Alice", Username: "alicea", PasswordHash: hash, Email: &email, Role: types.RoleStandard,
	})
	require.NoError(t, err)

	f := &fixture{store: st, mailer: &mail.MemorySender{}, user: u, now: time.Now()}
	f.sessions = session.NewManager(session.Deps{
		Store:       session.NewStore(cache.NewMemory("", 0), time.Hour),
		Users:       st.Users,
		Credentials: auth.NewCredentialService(st.Users),
		Cookie:      helpers.CookieOptions{Name: "til-session"},
	})
	f.tokens = auth.NewTokenService(auth.TokenDeps{Tokens: st.Tokens, Users: st.Users})
	f.svc = NewResetService(ResetDeps{
		Users:    st.Users,
		Resets:   st.ResetTokens,
		Tokens:   f.tokens,
		Sessions: f.sessions,
		Mailer:   f.mailer,
		BaseURL:  "http://til.test/",
		TTL:      time.Hour,
		Hasher:   password.Fast,
		Policy:   password.DefaultPolicy,
		Now:      func() time.Time { return f.now },
	})
	return f
}

// rawTokenFromMail extrae el token del link del último mail.
func (f *fixture) rawTokenFromMail(t *testing.T) string {
	t.Helper()
	msg, ok := f.mailer.Last()
	require.True(t, ok, "no email sent")
	i := strings.Index(msg.Text, "http://til.test/resetPassword?token=")
	require.GreaterOrEqual(t, i, 0)
	link := strings.Fields(msg.Text[i:])[0]
	u, err := url.Parse(link)
	require.NoError(t, err)
	return u.Query().Get("token")
}

// anonSession abre una sesión anónima y devuelve handle + request con cookie.
func (f *fixture) anonSession(t *testing.T) (*session.Handle, *http.Request) {
	t.Helper()
	rec := httptest.NewRecorder()
	h, err := f.sessions.Ensure(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/resetPassword", nil)
	for _, c := range rec.Result().Cookies() {
		r.AddCookie(c)
	}
	return h, r
}

func TestRequestResetUnknownEmailIsSilent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.RequestReset(context.Background(), "nobody@example.com"))
	assert.Empty(t, f.mailer.Sent())
}

func TestRequestResetMailerFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	f.mailer.Err = errors.New("smtp down")
	err := f.svc.RequestReset(context.Background(), "alice@example.com")
	assert.ErrorIs(t, err, ErrSendFailed)
}

func TestFullResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bearer, err := f.tokens.Issue(ctx, f.user)
	require.NoError(t, err)

	require.NoError(t, f.svc.RequestReset(ctx, "  ALICE@example.com "))
	msg, _ := f.mailer.Last()
	assert.Equal(t, "Reset Your Password", msg.Subject)
	assert.Equal(t, "alice@example.com", msg.ToAddress)
	raw := f.rawTokenFromMail(t)

	h, r := f.anonSession(t)
	u, err := f.svc.ValidateResetToken(ctx, h, raw)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, u.ID)

	// Consumido en la validación
	_, err = f.svc.ValidateResetToken(ctx, h, raw)
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	// Mismatch conserva el handoff
	_, err = f.svc.Redeem(ctx, httptest.NewRecorder(), r, "newpass99", "newpass98")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	_, err = f.svc.Redeem(ctx, httptest.NewRecorder(), r, "short", "short")
	var pe *PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Reasons, "too_short")

	_, err = f.svc.Redeem(ctx, httptest.NewRecorder(), r, "newpass99", "newpass99")
	require.NoError(t, err)

	stored, err := f.store.Users.GetByID(ctx, f.user.ID, false)
	require.NoError(t, err)
	assert.True(t, password.Verify("newpass99", stored.PasswordHash))
	assert.False(t, password.Verify("userpass1", stored.PasswordHash))

	// Sesión destruida y bearer tokens revocados
	_, err = f.sessions.Current(ctx, r)
	assert.ErrorIs(t, err, session.ErrNoSession)
	_, err = f.tokens.Authenticate(ctx, bearer.Value)
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	// Segundo submit: ya no hay reset en curso
	_, err = f.svc.Redeem(ctx, httptest.NewRecorder(), r, "another9", "another9")
	assert.ErrorIs(t, err, ErrNoResetInProgress)
}

func TestOnlyLatestResetTokenIsValid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestReset(ctx, "alice@example.com"))
	first := f.rawTokenFromMail(t)
	require.NoError(t, f.svc.RequestReset(ctx, "alice@example.com"))
	second := f.rawTokenFromMail(t)

	h, _ := f.anonSession(t)
	_, err := f.svc.ValidateResetToken(ctx, h, first)
	assert.ErrorIs(t, err, ErrInvalidResetToken)
	_, err = f.svc.ValidateResetToken(ctx, h, second)
	assert.NoError(t, err)
}

func TestExpiredResetToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestReset(ctx, "alice@example.com"))
	raw := f.rawTokenFromMail(t)

	f.now = f.now.Add(2 * time.Hour)
	h, _ := f.anonSession(t)
	_, err := f.svc.ValidateResetToken(ctx, h, raw)
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestConcurrentValidationSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestReset(ctx, "alice@example.com"))
	raw := f.rawTokenFromMail(t)

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < 8; i++ {
		h, _ := f.anonSession(t)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.ValidateResetToken(ctx, h, raw); err == nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRedeemWithoutHandoff(t *testing.T) {
	f := newFixture(t)
	_, r := f.anonSession(t)
	_, err := f.svc.Redeem(context.Background(), httptest.NewRecorder(), r, "newpass99", "newpass99")
	assert.ErrorIs(t, err, ErrNoResetInProgress)

	bare := httptest.NewRequest(http.MethodPost, "/resetPassword", nil)
	_, err = f.svc.Redeem(context.Background(), httptest.NewRecorder(), bare, "newpass99", "newpass99")
	assert.ErrorIs(t, err, ErrNoResetInProgress)
}

// flakyUsers falla la primera escritura de password.
type flakyUsers struct {
	repository.UserRepository
	failed atomic.Bool
}

func (f *flakyUsers) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	if f.failed.CompareAndSwap(false, true) {
		return errors.New("db unavailable")
	}
	return f.UserRepository.UpdatePasswordHash(ctx, id, hash)
}

func TestRedeemKeepsHandoffWhenWriteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.svc.deps.Users = &flakyUsers{UserRepository: f.store.Users}

	require.NoError(t, f.svc.RequestReset(ctx, "alice@example.com"))
	raw := f.rawTokenFromMail(t)
	h, r := f.anonSession(t)
	_, err := f.svc.ValidateResetToken(ctx, h, raw)
	require.NoError(t, err)

	_, err = f.svc.Redeem(ctx, httptest.NewRecorder(), r, "newpass99", "newpass99")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoResetInProgress)

	// El handoff sigue ahí: el reintento completa el reset
	uid, err := f.sessions.Peek(ctx, h, HandoffKey)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID, uid)

	_, err = f.svc.Redeem(ctx, httptest.NewRecorder(), r, "newpass99", "newpass99")
	require.NoError(t, err)
	stored, err := f.store.Users.GetByID(ctx, f.user.ID, false)
	require.NoError(t, err)
	assert.True(t, password.Verify("newpass99", stored.PasswordHash))
}
