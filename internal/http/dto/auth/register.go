package auth

// RegisterRequest es el body de POST /api/users. Los mismos campos llegan
// por formulario en /register.
type RegisterRequest struct {
	Name            string `json:"name"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	Email           string `json:"emailAddress,omitempty"`
	TwitterURL      string `json:"twitterURL,omitempty"`
}

// ValidationErrorResponse detalla los campos rechazados por el registro.
type ValidationErrorResponse struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields"`
}
