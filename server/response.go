package server

import (
	stderrors "errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/YuminosukeSato/loanml/loan"
)

// Error codes returned in ErrorInfo.Code.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeInvalidJSON    = "INVALID_JSON"
	CodePrediction     = "PREDICTION_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeInternal       = "INTERNAL_ERROR"
	CodeBatchTooLarge  = "BATCH_TOO_LARGE"
	CodeEmptyBatch     = "EMPTY_BATCH"
	CodeMethodNotAllow = "METHOD_NOT_ALLOWED"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error ErrorInfo `json:"error"`
}

// ErrorInfo describes what went wrong.
type ErrorInfo struct {
	Code      string        `json:"code"`
	Message   string        `json:"message"`
	RequestID string        `json:"request_id,omitempty"`
	Details   []FieldDetail `json:"details,omitempty"`
}

// FieldDetail is one failed field validation.
type FieldDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func abortWithError(c *gin.Context, status int, code, message string, details ...FieldDetail) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorInfo{
		Code:      code,
		Message:   message,
		RequestID: requestIDFrom(c),
		Details:   details,
	}})
}

// abortWithBindError answers a failed ShouldBindJSON: field-level details for
// validation failures, INVALID_JSON for anything the decoder rejected.
func abortWithBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		details := make([]FieldDetail, 0, len(verrs))
		for _, e := range verrs {
			details = append(details, FieldDetail{Field: fieldPath(e), Message: validationMessage(e)})
		}
		abortWithError(c, http.StatusBadRequest, CodeValidation, "Request validation failed", details...)
		return
	}
	abortWithError(c, http.StatusBadRequest, CodeInvalidJSON, err.Error())
}

var setupValidatorOnce sync.Once

// setupValidator makes validation errors name fields by their JSON keys.
func setupValidator() {
	setupValidatorOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(loan.JSONFieldName)
	})
}

// fieldPath is the namespace without the top-level type name, so batch
// errors read "applications[3].Gender" and single ones just "Gender".
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "gte":
		return "Must be greater than or equal to " + e.Param()
	case "gt":
		return "Must be greater than " + e.Param()
	case "min":
		return "Must be at least " + e.Param()
	case "max":
		return "Must be at most " + e.Param()
	case "dive":
		return "Invalid element"
	default:
		return "Invalid value"
	}
}
