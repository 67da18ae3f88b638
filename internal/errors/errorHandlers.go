package errors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeBadRequest          ErrorType = "BAD_REQUEST"
	ErrorTypeUnauthorized        ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden           ErrorType = "FORBIDDEN"
	ErrorTypeNotFound            ErrorType = "NOT_FOUND"
	ErrorTypeQuotaExceeded       ErrorType = "QUOTA_EXCEEDED"
	ErrorTypeInternalServerError ErrorType = "INTERNAL_SERVER_ERROR"
)

// CustomError represents a custom error with associated HTTP status code and type
type CustomError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Internal   error
	Detail     map[string]interface{}
}

// Error implements the error interface
func (e *CustomError) Error() string {
	return e.Message
}

// newError creates a new CustomError
func newError(errType ErrorType, message string, statusCode int, internal error) *CustomError {
	return &CustomError{
		Type:       errType,
		Message:    message,
		StatusCode: statusCode,
		Internal:   internal,
	}
}

// New400Error creates a new bad request error
func New400Error(message string) *CustomError {
	return newError(ErrorTypeBadRequest, message, http.StatusBadRequest, nil)
}

// New401Error creates a new unauthorized error
func New401Error() *CustomError {
	return newError(ErrorTypeUnauthorized, "Unauthorized access", http.StatusUnauthorized, nil)
}

// New403Error creates a new forbidden error
func New403Error() *CustomError {
	return newError(ErrorTypeForbidden, "Access forbidden", http.StatusForbidden, nil)
}

// New404Error creates a new not found error
func New404Error(message string) *CustomError {
	return newError(ErrorTypeNotFound, message, http.StatusNotFound, nil)
}

// New429Error creates a new quota exceeded error with structured detail
func New429Error(message string, detail map[string]interface{}) *CustomError {
	err := newError(ErrorTypeQuotaExceeded, message, http.StatusTooManyRequests, nil)
	err.Detail = detail
	return err
}

// New500Error creates a new internal server error
func New500Error(internal error) *CustomError {
	return newError(ErrorTypeInternalServerError, "An unexpected error occurred", http.StatusInternalServerError, internal)
}

// HandleError handles the custom error and sends an appropriate JSON response
func HandleError(c *gin.Context, err error) {
	var customErr *CustomError
	var ok bool

	if customErr, ok = err.(*CustomError); !ok {
		customErr = New500Error(err)
	}

	// Log internal server errors
	if customErr.Type == ErrorTypeInternalServerError {
		log.Error().
			Err(customErr.Internal).
			Str("url", c.Request.URL.String()).
			Msg("Internal Server Error")
	}

	body := gin.H{
		"type":    customErr.Type,
		"message": customErr.Message,
	}
	if customErr.Detail != nil {
		body["detail"] = customErr.Detail
	}

	c.JSON(customErr.StatusCode, gin.H{"error": body})
}

// LogAndReturn500 logs an internal error and returns a 500 error
func LogAndReturn500(internal error) *CustomError {
	log.Error().Err(internal).Msg("Internal Server Error")
	return New500Error(internal)
}
