package validate

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xopay/notify-service/internal/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report fields under their wire names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// Struct validates a request DTO, folding field errors into the meta map of
// one validation error.
func Struct(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return domain.ErrValidation(err.Error())
	}

	meta := make(map[string]string, len(fieldErrors))
	for _, fe := range fieldErrors {
		meta[fe.Field()] = fieldMessage(fe)
	}
	return domain.ErrValidationMeta("invalid request body", meta)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
