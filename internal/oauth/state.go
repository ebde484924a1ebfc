package oauth

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// StateAudience audiencia esperada en los state JWT.
const StateAudience = "oauth-state"

var (
	ErrStateInvalid  = errors.New("oauth: invalid state")
	ErrStateProvider = errors.New("oauth: state provider mismatch")
)

// StateClaims viajan en el parámetro state del authorize.
type StateClaims struct {
	Provider string `json:"provider"`
	Nonce    string `json:"nonce"`
	jwtv5.RegisteredClaims
}

// StateSigner firma y valida state con HS256.
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

func NewStateSigner(key []byte, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateSigner{key: key, ttl: ttl, now: time.Now}
}

func (s *StateSigner) Sign(provider, nonce string) (string, error) {
	now := s.now().UTC()
	claims := StateClaims{
		Provider: provider,
		Nonce:    nonce,
		RegisteredClaims: jwtv5.RegisteredClaims{
			Audience:  jwtv5.ClaimStrings{StateAudience},
			IssuedAt:  jwtv5.NewNumericDate(now),
			NotBefore: jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString(s.key)
}

// Parse valida firma, exp y audiencia, y que el state sea del proveedor esperado.
func (s *StateSigner) Parse(raw, provider string) (*StateClaims, error) {
	var claims StateClaims
	tk, err := jwtv5.ParseWithClaims(raw, &claims,
		func(*jwtv5.Token) (any, error) { return s.key, nil },
		jwtv5.WithValidMethods([]string{jwtv5.SigningMethodHS256.Alg()}),
		jwtv5.WithAudience(StateAudience),
		jwtv5.WithExpirationRequired(),
		jwtv5.WithTimeFunc(s.now),
	)
	if err != nil || !tk.Valid {
		return nil, ErrStateInvalid
	}
	if claims.Provider != provider {
		return nil, ErrStateProvider
	}
	return &claims, nil
}
