// Package sanitize limpia texto libre que llega de formularios o de
// proveedores externos antes de persistirlo.
package sanitize

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// Text elimina todo markup y normaliza espacios. La salida queda como texto
// plano (sin entidades) porque el escape lo hace quien renderiza.
type Text struct {
	policy *bluemonday.Policy
}

func NewText() *Text {
	return &Text{policy: bluemonday.StrictPolicy()}
}

func (t *Text) Clean(s string) string {
	s = html.UnescapeString(t.policy.Sanitize(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
