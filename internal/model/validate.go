package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslation "github.com/go-playground/validator/v10/translations/en"
)

var (
	validatorOnce sync.Once
	validate      *validator.Validate
	translator    ut.Translator
)

// newValidator builds the shared validator with English messages and
// field names taken from the json tags.
func newValidator() (*validator.Validate, ut.Translator) {
	v := validator.New(validator.WithRequiredStructEnabled())

	enLocale := en.New()
	trans, found := ut.New(enLocale, enLocale).GetTranslator("en")
	if !found {
		panic(fmt.Errorf("en translator was not found"))
	}
	if err := enTranslation.RegisterDefaultTranslations(v, trans); err != nil {
		panic(fmt.Errorf("translator was not registered: %w", err))
	}

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return v, trans
}

// Validate checks r against the record rules and returns a validation
// *Error listing every violated field.
func Validate(r Record) error {
	validatorOnce.Do(func() {
		validate, translator = newValidator()
	})

	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError("invalid record", err)
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Translate(translator))
	}
	return NewValidationError(strings.Join(msgs, "; "), err)
}

// ValidateKey checks a bare key, as used by delete.
func ValidateKey(key string) error {
	return Validate(Record{Key: key})
}
