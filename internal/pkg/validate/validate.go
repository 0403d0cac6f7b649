package validate

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sealdrop-api/internal/domain"
)

// v is the package-level singleton validator. Field names are reported by
// their json tag so clients see the keys they sent.
var v = func() *validator.Validate {
	val := validator.New()
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// singleline rejects CR and LF; such values end up in mail headers.
	_ = val.RegisterValidation("singleline", func(fl validator.FieldLevel) bool {
		return !strings.ContainsAny(fl.Field().String(), "\r\n")
	})
	return val
}()

// FieldErrors maps a request field to the rule it failed.
type FieldErrors map[string]string

// Error wraps field-level failures. It matches domain.ErrBadRequest with errors.Is.
type Error struct {
	Fields FieldErrors
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", k, e.Fields[k]))
	}
	return strings.Join(msgs, "; ")
}

func (e *Error) Unwrap() error { return domain.ErrBadRequest }

// Struct validates the given struct using its validate tags.
// Returns *Error on rule failures or nil.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	fields := make(FieldErrors, len(ve))
	for _, fe := range ve {
		fields[fe.Field()] = fe.Tag()
	}
	return &Error{Fields: fields}
}

// Email checks a single address with the same rules as the email tag.
func Email(addr string) error {
	if err := v.Var(addr, "required,email"); err != nil {
		return &Error{Fields: FieldErrors{"email": "email"}}
	}
	return nil
}
