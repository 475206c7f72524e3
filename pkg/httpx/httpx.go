/**
 * @description
 * HTTP helpers shared by the services: JSON responses, request decoding with
 * struct validation, and translation of classified errors into status codes.
 *
 * @dependencies
 * - github.com/go-playground/validator/v10: request DTO validation.
 */
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/Lgsalgado/banking-system-backend/pkg/apperror"
	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

var errInvalidBody = apperror.New(apperror.KindValidation, "INVALID_REQUEST_BODY", "invalid request body")

// Validator decodes and validates request bodies.
type Validator struct {
	validate *validator.Validate
}

// NewValidator reports field errors under their JSON names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates s.
func (v *Validator) Struct(s any) error {
	return v.validate.Struct(s)
}

// DecodeJSON reads the body into dst and validates it. Unknown fields are rejected.
func (v *Validator) DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return v.Struct(dst)
}

// WriteJSON writes data with the given status.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"error":"Failed to encode response"}`, http.StatusInternalServerError)
	}
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindBusinessRule:
		return http.StatusUnprocessableEntity
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict:
		return http.StatusConflict
	case apperror.KindBusy:
		return http.StatusServiceUnavailable
	case apperror.KindDelivery:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

// WriteError classifies err and writes the matching response. Internal errors
// are logged and their text is not exposed.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fmt.Sprintf("failed on '%s' rule", fe.Tag())
		}
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Code: "VALIDATION_FAILED", Details: details})
		return
	}

	kind := apperror.KindOf(err)
	status := StatusFor(kind)
	resp := ErrorResponse{Error: err.Error(), Code: apperror.CodeOf(err)}

	switch kind {
	case apperror.KindBusy:
		w.Header().Set("Retry-After", "1")
	case apperror.KindInternal:
		if logger != nil {
			logger.Error("request failed", "error", err)
		}
		resp.Error = "internal error, retry the request"
	}

	WriteJSON(w, status, resp)
}
