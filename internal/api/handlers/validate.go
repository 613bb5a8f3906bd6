package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report json names so messages match what the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage renders the first failed rule of err.
func validationMessage(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err.Error()
	}
	fe := ve[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "http_url":
		return fe.Field() + " must be an http(s) url"
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "max":
		return fe.Field() + " is too long (max " + fe.Param() + ")"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

// bind decodes the JSON body into v and validates it. On failure the
// returned message is safe to show to the client.
func bind(r *http.Request, v interface{}) (string, bool) {
	if err := decode(r, v); err != nil {
		return "invalid JSON", false
	}
	if err := validate.Struct(v); err != nil {
		return validationMessage(err), false
	}
	return "", true
}
