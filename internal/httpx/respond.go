package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
)

var ErrInvalidJSON = apperr.New(apperr.Invalid, "INVALID_JSON", "invalid json")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their json names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type errorBody struct {
	Message   string `json:"message"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	reqID := middleware.GetReqID(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("request_id", reqID), zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		log.Debug("request rejected", zap.String("request_id", reqID), zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, errorBody{
		Message:   apperr.PublicMessage(err),
		Error:     apperr.CodeOf(err),
		RequestID: reqID,
	})
}

// decode reads a JSON body into dst and validates it. dst may be a slice
// of structs; each element is validated.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		// field types may reject a value with their own typed error
		if _, ok := apperr.As(err); ok {
			return err
		}
		return ErrInvalidJSON
	}
	var err error
	if v := reflect.Indirect(reflect.ValueOf(dst)); v.Kind() == reflect.Slice {
		err = validate.Var(v.Interface(), "required,min=1,dive")
	} else {
		err = validate.Struct(dst)
	}
	if err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperr.New(apperr.Invalid, "VALIDATION_FAILED", "invalid request")
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		field := fe.Namespace()
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return apperr.New(apperr.Invalid, "VALIDATION_FAILED", "invalid request: "+strings.Join(parts, "; "))
}
