package auth

import (
	"errors"
	"net/http"

	dto "github.com/dropDatabas3/tilgate/internal/http/dto/auth"
	dtoadmin "github.com/dropDatabas3/tilgate/internal/http/dto/admin"
	httperrors "github.com/dropDatabas3/tilgate/internal/http/errors"
	"github.com/dropDatabas3/tilgate/internal/http/helpers"
	mw "github.com/dropDatabas3/tilgate/internal/http/middlewares"
	svc "github.com/dropDatabas3/tilgate/internal/http/services/auth"
	"github.com/dropDatabas3/tilgate/internal/http/services/session"
	"github.com/dropDatabas3/tilgate/internal/http/views"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
)

const maxFormBody = 32 << 10

// RegisterController handles POST /api/users y GET/POST /register.
type RegisterController struct {
	service  *svc.RegisterService
	sessions *session.Manager
	views    views.Renderer
}

func NewRegisterController(service *svc.RegisterService, sessions *session.Manager, r views.Renderer) *RegisterController {
	return &RegisterController{service: service, sessions: sessions, views: r}
}

// Create es el alta por API; requiere bearer (lo exige el router).
func (c *RegisterController) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RegisterController.Create"))

	var req dto.RegisterRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	u, err := c.service.Register(ctx, svc.RegisterInput{
		Name:            req.Name,
		Username:        req.Username,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		Email:           req.Email,
		TwitterURL:      req.TwitterURL,
	})
	if err != nil {
		if ve, ok := svc.IsValidation(err); ok {
			helpers.WriteJSON(w, http.StatusBadRequest, dto.ValidationErrorResponse{
				Code:    "VALIDATION_FAILED",
				Message: "Datos de registro inválidos",
				Fields:  ve.Fields,
			})
			return
		}
		if errors.Is(err, svc.ErrUsernameTaken) {
			httperrors.WriteError(w, httperrors.ErrUsernameTaken)
			return
		}
		log.Error("register failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	helpers.WriteJSON(w, http.StatusCreated, dtoadmin.ToPublic(u))
}

// Page renderiza el formulario de registro.
func (c *RegisterController) Page(w http.ResponseWriter, r *http.Request) {
	c.render(w, r, http.StatusOK, views.RegisterPage{Page: views.Page{Title: "Register"}})
}

// Submit procesa el formulario; éxito abre sesión y redirige a /.
func (c *RegisterController) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("RegisterController.Submit"))

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
	if err := r.ParseForm(); err != nil {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("formulario inválido"))
		return
	}

	u, err := c.service.Register(ctx, svc.RegisterInput{
		Name:            r.PostForm.Get("name"),
		Username:        r.PostForm.Get("username"),
		Password:        r.PostForm.Get("password"),
		ConfirmPassword: r.PostForm.Get("confirmPassword"),
		Email:           r.PostForm.Get("emailAddress"),
		TwitterURL:      r.PostForm.Get("twitterURL"),
	})
	if err != nil {
		page := views.RegisterPage{Page: views.Page{Title: "Register"}}
		if ve, ok := svc.IsValidation(err); ok {
			page.Fields = ve.Fields
			c.render(w, r, http.StatusBadRequest, page)
			return
		}
		if errors.Is(err, svc.ErrUsernameTaken) {
			page.Message = "That username is already taken."
			c.render(w, r, http.StatusConflict, page)
			return
		}
		log.Error("register failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}

	if _, err := c.sessions.Establish(ctx, w, r, u); err != nil {
		log.Error("session establish failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
		return
	}
	helpers.Redirect(w, r, "/")
}

func (c *RegisterController) render(w http.ResponseWriter, r *http.Request, status int, page views.RegisterPage) {
	page.Viewer = mw.GetIdentity(r.Context())
	if err := c.views.Render(w, status, views.PageRegister, page); err != nil {
		logger.From(r.Context()).Error("render failed", logger.Op("RegisterController.render"), logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternalServerError)
	}
}
