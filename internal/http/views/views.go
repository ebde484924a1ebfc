// Package views renderiza las páginas web server-side. Los controllers solo
// conocen la interfaz Renderer; HTMLRenderer es la implementación por
// defecto sobre templates embebidos.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
)

// Nombres de página.
const (
	PageIndex                      = "index"
	PageLogin                      = "login"
	PageRegister                   = "register"
	PageForgottenPassword          = "forgottenPassword"
	PageForgottenPasswordConfirmed = "forgottenPasswordConfirmed"
	PageResetPassword              = "resetPassword"
	PageAcronymForm                = "createAcronym"
)

var pages = []string{
	PageIndex,
	PageLogin,
	PageRegister,
	PageForgottenPassword,
	PageForgottenPasswordConfirmed,
	PageResetPassword,
	PageAcronymForm,
}

//go:embed templates/*.html
var templatesFS embed.FS

// Renderer escribe una página completa con el status indicado.
type Renderer interface {
	Render(w http.ResponseWriter, status int, page string, data any) error
}

// Page son los datos comunes a todas las páginas.
type Page struct {
	Title  string
	Viewer *repository.User
}

func (p Page) IsAdmin() bool {
	return p.Viewer != nil && p.Viewer.Role == types.RoleAdmin
}

type LoginPage struct {
	Page
	LoginError bool
	Providers  []string
}

type RegisterPage struct {
	Page
	Message string
	Fields  map[string][]string
}

// IndexPage: Editable son los ids de acrónimos que el viewer puede editar.
type IndexPage struct {
	Page
	Acronyms  []repository.Acronym
	Users     []repository.User
	CSRFToken string
	Editable  map[string]bool
}

func (p IndexPage) CanEdit(a repository.Acronym) bool {
	return p.Editable[a.ID]
}

type ResetPasswordPage struct {
	Page
	Error string
}

type AcronymFormPage struct {
	Page
	Editing   bool
	Acronym   *repository.Acronym
	CSRFToken string
	Message   string
}

// HTMLRenderer implementa Renderer con html/template.
type HTMLRenderer struct {
	pages map[string]*template.Template
}

// New parsea todos los templates al arranque; un template roto falla acá y
// no en el primer request.
func New() (*HTMLRenderer, error) {
	r := &HTMLRenderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.ParseFS(templatesFS, "templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("views: parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

func (r *HTMLRenderer) Render(w http.ResponseWriter, status int, page string, data any) error {
	t, ok := r.pages[page]
	if !ok {
		return fmt.Errorf("views: unknown page %q", page)
	}
	// render completo antes de escribir headers: un error no deja media página
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("views: render %s: %w", page, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
