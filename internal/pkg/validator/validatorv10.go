package validator

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
)

const maxLabelLength = 128

// ErrTranslatorNotFound indicates the requested translator is unavailable.
var ErrTranslatorNotFound = errors.New("translator not found")

// V10Validator is the go-playground/validator v10 implementation.
type V10Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// V10ValidationError maps snake_case field names to English messages.
type V10ValidationError map[string]string

// Error lists the failures sorted by field so log lines are stable.
func (vs V10ValidationError) Error() string {
	if len(vs) == 0 {
		return "validation error"
	}

	parts := make([]string, 0, len(vs))
	for _, field := range slices.Sorted(maps.Keys(vs)) {
		parts = append(parts, field+": "+vs[field])
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// Values is the map sent back in the error envelope.
func (vs V10ValidationError) Values() map[string]string {
	return vs
}

// rule is a custom tag with its English message. {0} is the field name.
type rule struct {
	tag     string
	message string
	check   func(s string) bool
}

var rules = []rule{
	{tag: "label", message: "{0} must be 1-128 printable characters without ':'", check: isLabel},
}

// NewV10Validator builds a validator with English messages and the custom
// rules registered.
func NewV10Validator() (*V10Validator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	lang := en.New()
	trans, ok := ut.New(lang, lang).GetTranslator("en")
	if !ok {
		return nil, ErrTranslatorNotFound
	}
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	for _, r := range rules {
		if err := register(validate, trans, r); err != nil {
			return nil, fmt.Errorf("register %q rule: %w", r.tag, err)
		}
	}

	return &V10Validator{validate: validate, translator: trans}, nil
}

func register(validate *validator.Validate, trans ut.Translator, r rule) error {
	err := validate.RegisterValidation(r.tag, func(fl validator.FieldLevel) bool {
		s, ok := fl.Field().Interface().(string)
		return ok && r.check(s)
	})
	if err != nil {
		return err
	}

	return validate.RegisterTranslation(r.tag, trans,
		func(t ut.Translator) error { return t.Add(r.tag, r.message, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			msg, err := t.T(fe.Tag(), fe.Field())
			if err != nil {
				slog.Warn("missing validation translation", "tag", fe.Tag(), "error", err)
				return fe.Field() + " is invalid"
			}
			return msg
		},
	)
}

// Validate checks the struct tags of data. Field failures come back as a
// V10ValidationError keyed by snake_case field name.
func (v *V10Validator) Validate(data any) error {
	err := v.validate.Struct(data)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := make(V10ValidationError, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[toLowerSnake(fe.Field())] = fe.Translate(v.translator)
	}
	return out
}

// isLabel accepts an otpauth label part: printable, no colon, at most
// maxLabelLength runes.
func isLabel(s string) bool {
	if s == "" || utf8.RuneCountInString(s) > maxLabelLength {
		return false
	}
	return !strings.ContainsFunc(s, func(r rune) bool {
		return r == ':' || !unicode.IsPrint(r)
	})
}

// toLowerSnake converts a Go field name to snake_case, keeping initialisms together
// (SecretURI -> secret_uri, HTTPServer -> http_server).
func toLowerSnake(s string) string {
	runes := []rune(s)

	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
