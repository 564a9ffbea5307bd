package dto

import (
	"encoding/json"
	"errors"
	"io"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"autoerp/internal/core/apperror"
	"autoerp/internal/domain"
)

var (
	periodePattern = regexp.MustCompile(`^[0-9]{4}-(0[1-9]|1[0-2])$`)
	hhmmPattern    = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

var registerOnce sync.Once

// RegisterValidators installs the custom rules on gin's validator:
// phone_ma (Moroccan phone), periode (YYYY-MM) and hhmm (HH:MM).
// Decimal amounts validate as numbers so that gte/gt apply to them.
// Must run before the first request is bound.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		v.RegisterCustomTypeFunc(dateValue, Date{})
		_ = v.RegisterValidation("phone_ma", func(fl validator.FieldLevel) bool {
			return domain.PhonePattern.MatchString(domain.NormalizePhone(fl.Field().String()))
		})
		_ = v.RegisterValidation("periode", func(fl validator.FieldLevel) bool {
			return periodePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
			return hhmmPattern.MatchString(fl.Field().String())
		})
	})
}

func jsonFieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

func decimalValue(v reflect.Value) any {
	d, ok := v.Interface().(decimal.Decimal)
	if !ok {
		return nil
	}
	f, _ := d.Float64()
	return f
}

// dateValue exposes a Date as its YYYY-MM-DD string, empty when unset,
// so that required works on it.
func dateValue(v reflect.Value) any {
	d, ok := v.Interface().(Date)
	if !ok || d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// BindError turns a gin binding error into a 400 AppError. Validator
// failures list each field with the rule it broke.
func BindError(err error) *apperror.AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fieldPath(fe)] = ruleMessage(fe)
		}
		return apperror.NewValidation("invalid request").WithDetail("fields", fields)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return apperror.NewValidation("request body is required")
	case errors.As(err, &syntaxErr):
		return apperror.NewValidation("malformed JSON").WithDetail("offset", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return apperror.NewValidation("invalid field type").
			WithDetail("field", typeErr.Field).
			WithDetail("expected", typeErr.Type.String())
	}
	return apperror.NewValidation("invalid request").WithCause(err).WithDetail("reason", err.Error())
}

// fieldPath keeps the json names only: "CommandeRequest.lignes[0].quantite"
// becomes "lignes[0].quantite" and "ClientListQuery.PageQuery.limit" "limit".
func fieldPath(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	out := parts[:0]
	for _, p := range parts[1:] {
		if p != "" && unicode.IsUpper(rune(p[0])) {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}

func ruleMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "phone_ma":
		return "must be a Moroccan phone number"
	case "periode":
		return "must be YYYY-MM"
	case "hhmm":
		return "must be HH:MM"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	}
	return "failed rule " + fe.Tag()
}
