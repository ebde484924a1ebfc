package helpers

import (
	"net/http"
	"strings"
	"time"
)

func ParseSameSite(s string) http.SameSite {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// CookieOptions atributos compartidos por la cookie de sesión.
type CookieOptions struct {
	Name     string
	Domain   string
	SameSite string
	Secure   bool
}

func BuildCookie(o CookieOptions, value string, ttl time.Duration) *http.Cookie {
	ck := &http.Cookie{
		Name:     o.Name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: ParseSameSite(o.SameSite),
	}
	if strings.TrimSpace(o.Domain) != "" {
		ck.Domain = o.Domain
	}
	if ttl > 0 {
		ck.Expires = time.Now().Add(ttl).UTC()
		ck.MaxAge = int(ttl.Seconds())
	}
	return ck
}

func BuildDeletionCookie(o CookieOptions) *http.Cookie {
	ck := &http.Cookie{
		Name:     o.Name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: ParseSameSite(o.SameSite),
		Expires:  time.Unix(0, 0).UTC(),
		MaxAge:   -1,
	}
	if strings.TrimSpace(o.Domain) != "" {
		ck.Domain = o.Domain
	}
	return ck
}
