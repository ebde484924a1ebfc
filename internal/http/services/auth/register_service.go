package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"sort"
	"strings"

	"github.com/dropDatabas3/tilgate/internal/domain/repository"
	"github.com/dropDatabas3/tilgate/internal/domain/types"
	"github.com/dropDatabas3/tilgate/internal/observability/logger"
	"github.com/dropDatabas3/tilgate/internal/security/password"
	"github.com/dropDatabas3/tilgate/internal/security/sanitize"
)

const minUsernameLen = 3

// RegisterInput datos del formulario / body de registro.
type RegisterInput struct {
	Name            string
	Username        string
	Password        string
	ConfirmPassword string
	Email           string
	TwitterURL      string
	Role            types.Role // 0 = standard
}

// ValidationError lista los problemas por campo.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ","))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, reason string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], reason)
}

// IsValidation reporta si err es (o envuelve) un ValidationError.
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// RegisterDeps contiene las dependencias del RegisterService.
type RegisterDeps struct {
	Users     repository.UserRepository
	Hasher    password.Params
	Policy    password.Policy
	Sanitizer *sanitize.Text
}

type RegisterService struct {
	deps RegisterDeps
}

func NewRegisterService(d RegisterDeps) *RegisterService {
	if d.Hasher.KeyLen == 0 {
		d.Hasher = password.Default
	}
	if d.Sanitizer == nil {
		d.Sanitizer = sanitize.NewText()
	}
	return &RegisterService{deps: d}
}

// Validate aplica las reglas de registro y devuelve el input normalizado.
func (s *RegisterService) Validate(in RegisterInput) (RegisterInput, error) {
	var ve ValidationError

	in.Name = s.deps.Sanitizer.Clean(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.TwitterURL = strings.TrimSpace(in.TwitterURL)

	switch {
	case in.Name == "":
		ve.add("name", "required")
	case !isPrintableASCII(in.Name):
		ve.add("name", "invalid_characters")
	}

	switch {
	case len(in.Username) < minUsernameLen:
		ve.add("username", "too_short")
	case !isAlphanumeric(in.Username):
		ve.add("username", "not_alphanumeric")
	}

	if ok, reasons := s.deps.Policy.Validate(in.Password); !ok {
		for _, r := range reasons {
			ve.add("password", r)
		}
	}
	if in.Password != in.ConfirmPassword {
		ve.add("confirmPassword", "mismatch")
	}

	if in.Email != "" {
		if a, err := mail.ParseAddress(in.Email); err != nil || a.Address != in.Email {
			ve.add("email", "invalid")
		}
	}
	if in.TwitterURL != "" {
		if u, err := url.Parse(in.TwitterURL); err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
			ve.add("twitterURL", "invalid")
		}
	}

	if len(ve.Fields) > 0 {
		return in, &ve
	}
	return in, nil
}

// Register valida, hashea y crea la identidad.
func (s *RegisterService) Register(ctx context.Context, in RegisterInput) (*repository.User, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("auth.register"),
		logger.Op("Register"),
	)

	in, err := s.Validate(in)
	if err != nil {
		log.Debug("registration rejected", logger.Err(err))
		return nil, err
	}

	hash, err := password.Hash(s.deps.Hasher, in.Password)
	if err != nil {
		log.Error("password hash failed", logger.Err(err))
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := in.Role
	if !role.Valid() {
		role = types.RoleStandard
	}
	cu := repository.CreateUserInput{
		Name:         in.Name,
		Username:     in.Username,
		PasswordHash: hash,
		Role:         role,
	}
	if in.Email != "" {
		cu.Email = &in.Email
	}
	if in.TwitterURL != "" {
		cu.TwitterURL = &in.TwitterURL
	}

	u, err := s.deps.Users.Create(ctx, cu)
	if err != nil {
		if repository.IsConflict(err) {
			log.Debug("username taken", logger.Username(in.Username))
			return nil, ErrUsernameTaken
		}
		log.Error("user creation failed", logger.Err(err))
		return nil, err
	}

	log.Info("user registered", logger.UserID(u.ID), logger.Role(u.Role.String()))
	return u, nil
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

func isAlphanumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
