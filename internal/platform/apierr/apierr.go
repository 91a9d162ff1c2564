package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ===== Error model =====
type Code string

const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeMethodNotAllowed Code = "METHOD_NOT_ALLOWED"
	CodeInternal         Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
	cause   error
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func (e *APIError) Unwrap() error { return e.cause }

func ErrInvalid(msg string) *APIError          { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrUnauthenticated(msg string) *APIError  { return &APIError{Code: CodeUnauthenticated, Message: msg} }
func ErrNotFound(msg string) *APIError         { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError         { return &APIError{Code: CodeConflict, Message: msg} }
func ErrMethodNotAllowed(msg string) *APIError { return &APIError{Code: CodeMethodNotAllowed, Message: msg} }
func ErrInternal(msg string) *APIError         { return &APIError{Code: CodeInternal, Message: msg} }

// Persistence wraps a database failure as "<op> failed: <cause>". The cause
// text is the driver's message; statements only ever bind digests, never
// plaintext passwords.
func Persistence(op string, err error) *APIError {
	return &APIError{Code: CodeInternal, Message: op + " failed: " + err.Error(), cause: err}
}

// ToHTTPStatus maps an error to its response status. A duplicate username is
// reported as 400 like any other rejected signup.
func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument, CodeConflict:
			return http.StatusBadRequest
		case CodeUnauthenticated:
			return http.StatusUnauthorized
		case CodeNotFound:
			return http.StatusNotFound
		case CodeMethodNotAllowed:
			return http.StatusMethodNotAllowed
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

// ===== Envelope =====

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Success writes {"status":"success","message":msg} plus any extra fields.
func Success(c *gin.Context, msg string, extra gin.H) {
	body := gin.H{}
	for k, v := range extra {
		body[k] = v
	}
	body["status"] = StatusSuccess
	body["message"] = msg
	c.JSON(http.StatusOK, body)
}

// Write converts err into the error envelope with the mapped status.
func Write(c *gin.Context, err error) {
	status, body := Body(err)
	c.JSON(status, body)
}

// Abort is Write for middleware and NoMethod handlers.
func Abort(c *gin.Context, err error) {
	status, body := Body(err)
	c.AbortWithStatusJSON(status, body)
}

func Body(err error) (int, gin.H) {
	code, msg := CodeInternal, err.Error()
	var api *APIError
	if errors.As(err, &api) {
		code, msg = api.Code, api.Message
	}
	return ToHTTPStatus(err), gin.H{
		"status":  StatusError,
		"code":    code,
		"message": msg,
	}
}
