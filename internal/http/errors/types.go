package errors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores de la aplicación
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Error original (causa), útil para logs
}

// Error implementa la interfaz error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original
func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// FromError intenta convertir un error genérico en un AppError.
// Si no es un AppError, devuelve un error interno genérico conservando la causa.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternalServerError.WithCause(err)
}

// WithDetail agrega detalles adicionales al error.
// Devuelve una COPIA del error para no mutar las variables globales base.
func (e *AppError) WithDetail(detail string) *AppError {
	newErr := *e
	newErr.Detail = detail
	return &newErr
}

// WithCause agrega el error original (causa).
// Devuelve una COPIA del error.
func (e *AppError) WithCause(err error) *AppError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// =================================================================================
// LISTA DE ERRORES PREDEFINIDOS
// =================================================================================

// ---------------------------------------------------------------------------------
// Genéricos
// ---------------------------------------------------------------------------------

var (
	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "La solicitud contiene sintaxis inválida o parámetros faltantes.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidJSON = &AppError{
		Code:       "INVALID_JSON",
		Message:    "El cuerpo de la solicitud no es un JSON válido.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnauthorized = &AppError{
		Code:       "UNAUTHORIZED",
		Message:    "No autorizado. Se requiere autenticación.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "El token de acceso es inválido o ha expirado.",
		HTTPStatus: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "El recurso solicitado no fue encontrado.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrMethodNotAllowed = &AppError{
		Code:       "METHOD_NOT_ALLOWED",
		Message:    "El método HTTP no está permitido para este recurso.",
		HTTPStatus: http.StatusMethodNotAllowed,
	}

	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "La solicitud entra en conflicto con el estado actual del servidor.",
		HTTPStatus: http.StatusConflict,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Ha excedido el límite de solicitudes. Intente más tarde.",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrInternalServerError = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Ocurrió un error interno en el servidor.",
		HTTPStatus: http.StatusInternalServerError,
	}

	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "El servicio no está disponible temporalmente.",
		HTTPStatus: http.StatusServiceUnavailable,
	}
)

// ---------------------------------------------------------------------------------
// Identidad / Providers
// ---------------------------------------------------------------------------------

var (
	ErrBadProviderPayload = &AppError{
		Code:       "BAD_PROVIDER_PAYLOAD",
		Message:    "El payload del provider es inválido o está incompleto.",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidCredential = &AppError{
		Code:       "INVALID_CREDENTIAL",
		Message:    "La firma, HMAC o prueba del provider no es válida.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrExpiredCredential = &AppError{
		Code:       "EXPIRED_CREDENTIAL",
		Message:    "El token, nonce o mensaje del provider ha expirado.",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrLinkTargetMissing = &AppError{
		Code:       "LINK_TARGET_MISSING",
		Message:    "La identidad destino del linking no existe.",
		HTTPStatus: http.StatusNotFound,
	}

	ErrProviderAlreadyLinked = &AppError{
		Code:       "PROVIDER_ALREADY_LINKED",
		Message:    "Esa cuenta externa ya está vinculada a otra identidad.",
		HTTPStatus: http.StatusConflict,
	}

	ErrDuplicateUsernameOrWallet = &AppError{
		Code:       "DUPLICATE_USERNAME_OR_WALLET",
		Message:    "El username o la wallet ya están en uso.",
		HTTPStatus: http.StatusConflict,
	}

	ErrProviderUnavailable = &AppError{
		Code:       "PROVIDER_UNAVAILABLE",
		Message:    "El provider externo no respondió a tiempo.",
		HTTPStatus: http.StatusBadGateway,
	}
)

// ---------------------------------------------------------------------------------
// Rewards
// ---------------------------------------------------------------------------------

var (
	ErrNothingToClaim = &AppError{
		Code:       "NOTHING_TO_CLAIM",
		Message:    "No hay balance disponible para reclamar.",
		HTTPStatus: http.StatusConflict,
	}
)
