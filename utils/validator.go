package utils

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/vnkhanh/comuni-server/apperr"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report json names so messages match the payload the client sent.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		return IsDate(fl.Field().String())
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return IsClock(fl.Field().String())
	})
	return v
}

// ValidateStruct checks s and returns the first failing field as an
// apperr validation error tagged with op.
func ValidateStruct(op string, s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation(op, "", err.Error())
	}

	fe := verrs[0]
	field := fe.Field()
	param := fe.Param()

	var reason string
	switch fe.Tag() {
	case "required", "notblank":
		reason = "is required"
	case "min":
		reason = "must be at least " + param + " characters"
	case "max":
		reason = "must be at most " + param + " characters"
	case "ymd":
		reason = "must be a date in YYYY-MM-DD format"
	case "hhmm":
		reason = "must be a time in HH:mm format"
	case "oneof":
		reason = "must be one of " + param
	case "required_with":
		reason = "is required when " + strings.ToLower(param) + " is set"
	default:
		reason = "is invalid"
	}
	return apperr.Validation(op, field, reason)
}
