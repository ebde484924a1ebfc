// Package util junta helpers chicos sin dependencias del dominio.
package util

import "strings"

// MaskEmail deja el primer carácter del local-part y del primer label del
// dominio: "alice@example.com" => "a…@e….com". Para logs.
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" {
		return maskToken(s)
	}
	labels := strings.Split(domain, ".")
	labels[0] = maskPrefix(labels[0])
	return maskPrefix(local) + "@" + strings.Join(labels, ".")
}

func maskPrefix(s string) string {
	if len([]rune(s)) <= 1 {
		return s
	}
	return string([]rune(s)[:1]) + "…"
}

// maskToken: sin @ no hay estructura que conservar.
func maskToken(s string) string {
	r := []rune(s)
	switch {
	case len(r) == 0:
		return ""
	case len(r) <= 3:
		return "***"
	default:
		return string(r[:1]) + "…" + string(r[len(r)-1:])
	}
}
