package domain

import "fmt"

// Error types for consistent error handling across the admin front-end.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates the backend answered with a non-2xx status.
// Err carries the best-effort message extracted from the body.
type ErrExternalService struct {
	Service string
	Status  int
	Err     error
}

func (e *ErrExternalService) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("external service error [%s] status %d: %v", e.Service, e.Status, e.Err)
	}
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// Detail returns the server-provided message without the wrapping prefix.
func (e *ErrExternalService) Detail() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// ErrNetwork indicates the request never got an HTTP response.
type ErrNetwork struct {
	Service string
	Message string
}

func (e *ErrNetwork) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Erro de conexão com o servidor"
}

// ErrValidation indicates a validation error caught before any network call.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Message
}

// ErrForbidden indicates the user lacks permission for the operation.
// Message, when set, is shown to the user as is.
type ErrForbidden struct {
	Action  string
	Message string
}

func (e *ErrForbidden) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrUnauthorized indicates the backend rejected the bearer token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrInvalidCredentials is returned when login gets a 401.
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "Usuário ou senha inválidos"
}

// ErrServer is returned when login gets any other non-2xx status.
type ErrServer struct {
	Status int
}

func (e *ErrServer) Error() string {
	return "Erro no servidor"
}

// ErrLoad is returned when a screen could not fetch all of its data.
// Nothing partial is shown.
type ErrLoad struct {
	Screen string
	Err    error
}

func (e *ErrLoad) Error() string {
	return "Erro ao carregar dados."
}

func (e *ErrLoad) Unwrap() error {
	return e.Err
}

// ErrUnexpectedFormat indicates a 2xx body that matches no known shape.
type ErrUnexpectedFormat struct {
	Endpoint string
}

func (e *ErrUnexpectedFormat) Error() string {
	return "Formato inesperado da resposta do servidor."
}

// ErrInFlight indicates the same form is already being submitted.
type ErrInFlight struct {
	Key string
}

func (e *ErrInFlight) Error() string {
	return "Operação já em andamento, aguarde."
}

