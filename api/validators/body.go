package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/naosaki/naowatt-backend/pkg/errors"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSONBody decodes and validates a JSON request body into dst.
// Unknown fields are rejected so typos surface as 400s instead of
// silently dropped input.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must contain a single JSON object")
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return pkgerrors.New(pkgerrors.CodeValidation, formatValidationErrors(verrs))
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	}
	return nil
}

func decodeError(err error) error {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError

	switch {
	case errors.Is(err, io.EOF):
		return pkgerrors.New(pkgerrors.CodeValidation, "request body must not be empty")
	case errors.As(err, &syntaxErr):
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("request body contains malformed JSON at position %d", syntaxErr.Offset))
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("request body has an invalid value for field %q", field))
	case errors.As(err, &maxErr):
		return pkgerrors.New(pkgerrors.CodeValidation, "request body too large")
	case strings.HasPrefix(err.Error(), "json: unknown field"):
		field := strings.TrimSuffix(strings.TrimPrefix(err.Error(), `json: unknown field "`), `"`)
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("request body contains unknown field %q", field))
	default:
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body")
	}
}

func formatValidationErrors(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("field %q is required", fe.Field()))
		case "email":
			parts = append(parts, fmt.Sprintf("field %q must be a valid email address", fe.Field()))
		case "min":
			parts = append(parts, fmt.Sprintf("field %q must be at least %s characters", fe.Field(), fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("field %q must be at most %s characters", fe.Field(), fe.Param()))
		case "uuid":
			parts = append(parts, fmt.Sprintf("field %q must be a valid UUID", fe.Field()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("field %q must be one of: %s", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("field %q failed validation %q", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
