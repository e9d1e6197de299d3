package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden     ErrorCode = "FORBIDDEN"
	ErrCodeConflict      ErrorCode = "CONFLICT"
	ErrCodeInvalidState  ErrorCode = "INVALID_STATE"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	ErrCodeGateway       ErrorCode = "GATEWAY_ERROR"
	ErrCodeConfig        ErrorCode = "CONFIG_ERROR"
	ErrCodeRateLimited   ErrorCode = "RATE_LIMITED"
)

// AppError: ошибка уровня приложения с кодом, HTTP-статусом и деталями.
// Details несёт машиночитаемый контекст: исходный ответ платёжного
// провайдера, пару статусов недопустимого перехода и т.п.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
	Details    any
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с предопределёнными значениями.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// WithDetails возвращает копию ошибки с приложенными деталями.
func (e *AppError) WithDetails(details any) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// Gateway оборачивает отказ платёжного провайдера, сохраняя его сырой ответ.
func Gateway(message string, payload any, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeGateway,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(ErrCodeGateway),
		Cause:      cause,
		Details:    payload,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeInvalidState:
		return http.StatusConflict
	case ErrCodeGateway:
		return http.StatusBadGateway
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или ErrCodeInternal для посторонних ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool     { return hasCode(err, ErrCodeNotFound) }
func IsForbidden(err error) bool    { return hasCode(err, ErrCodeForbidden) }
func IsValidation(err error) bool   { return hasCode(err, ErrCodeValidation) }
func IsInvalidState(err error) bool { return hasCode(err, ErrCodeInvalidState) }
func IsConflict(err error) bool     { return hasCode(err, ErrCodeConflict) }
func IsGateway(err error) bool      { return hasCode(err, ErrCodeGateway) }
func IsConfig(err error) bool       { return hasCode(err, ErrCodeConfig) }

var (
	ErrJobNotFound         = New(ErrCodeNotFound, "заказ не найден")
	ErrTransactionNotFound = New(ErrCodeNotFound, "транзакция не найдена")
	ErrUserNotFound        = New(ErrCodeNotFound, "пользователь не найден")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden           = New(ErrCodeForbidden, "недостаточно прав")
	ErrAlreadySettled      = New(ErrCodeConflict, "по заказу уже проведены выплата или возврат")
	ErrConcurrentUpdate    = New(ErrCodeConflict, "заказ был изменён параллельным запросом")
)
