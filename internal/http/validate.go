package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"carteira/internal/core"
)

const maxBodyBytes = 64 << 10

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(time.DateOnly, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := core.ParseDecimalToCents(fl.Field().String())
		return err == nil
	})

	_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		s := strings.ReplaceAll(strings.TrimSpace(fl.Field().String()), ",", ".")
		if strings.ContainsAny(s, "eE+") {
			return false
		}
		d, err := decimal.NewFromString(s)
		return err == nil && !d.IsNegative()
	})

	// report JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it. Problems come back as
// core.ErrValidation.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", core.ErrValidation, err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fieldMessage(fe))
			}
			return fmt.Errorf("%w: %s", core.ErrValidation, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return fe.Field() + " is required"
	case "required_if":
		return fe.Field() + " is required for " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "isodate":
		return fe.Field() + " must be a YYYY-MM-DD date"
	case "amount":
		return fe.Field() + " must be a positive decimal amount"
	case "money", "numeric":
		return fe.Field() + " must be a non-negative decimal amount"
	case "max":
		return fe.Field() + " is too long"
	case "email":
		return fe.Field() + " must be an email address"
	default:
		return fe.Field() + " failed " + fe.Tag()
	}
}
