package httpapi

import (
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Rauan19/agendoai-sub000/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseClock(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("ymd", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseDate(fl.Field().String())
		return err == nil
	})
	return v
}

// bindJSON decodes and validates the body. Failures come back as
// *domain.ValidationError naming the offending wire field.
func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return domain.Invalid("body", "malformed JSON body")
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.Invalid("body", err.Error())
	}
	fe := fieldErrs[0]
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	var msg string
	switch fe.Tag() {
	case "required":
		msg = fe.Field() + " is required"
	case "hhmm":
		msg = fe.Field() + " must be HH:MM"
	case "ymd":
		msg = fe.Field() + " must be YYYY-MM-DD"
	case "max":
		msg = fe.Field() + " must be at most " + fe.Param()
	case "min", "gte":
		msg = fe.Field() + " must be at least " + fe.Param()
	case "lte":
		msg = fe.Field() + " must be at most " + fe.Param()
	case "uuid":
		msg = fe.Field() + " must be a UUID"
	default:
		msg = fe.Field() + " is invalid"
	}
	return domain.Invalid(field, msg)
}

// clock and day are only called on values the validator already accepted.
func clock(s string) domain.Minute {
	m, _ := domain.ParseClock(s)
	return m
}

func day(s string) time.Time {
	d, _ := domain.ParseDate(s)
	return d
}
