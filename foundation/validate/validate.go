// Package validate contains the support for validating models.
package validate

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// validate holds the settings and caches for validating request struct values.
var validate *validator.Validate

// translator is a cache of locale and translation information.
var translator ut.Translator

// hexLower matches strings made only of lowercase hex digits.
var hexLower = regexp.MustCompile("^[0-9a-f]*$")

func init() {

	// Instantiate a validator.
	validate = validator.New()

	// Create a translator for english so the error messages are
	// more human-readable than technical.
	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")

	// Register the english error messages for use.
	en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Object ids, keys and signatures on the wire are lowercase hex.
	validate.RegisterValidation("hexlower", func(fl validator.FieldLevel) bool {
		return hexLower.MatchString(fl.Field().String())
	})

	validate.RegisterTranslation("hexlower", translator,
		func(ut ut.Translator) error {
			return ut.Add("hexlower", "{0} must be lowercase hex", true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T("hexlower", fe.Field())
			return t
		},
	)
}

// Check validates the provided model against it's declared tags.
func Check(val any) error {
	if err := validate.Struct(val); err != nil {
		return translate(err)
	}

	return nil
}

// Var validates a single value against the provided tag.
func Var(val any, tag string) error {
	if err := validate.Var(val, tag); err != nil {
		return translate(err)
	}

	return nil
}

func translate(err error) error {

	// Use a type assertion to get the real error value.
	var verrors validator.ValidationErrors
	if !errors.As(err, &verrors) {
		return err
	}

	var fields FieldErrors
	for _, verror := range verrors {
		field := FieldError{
			Field: verror.Field(),
			Error: verror.Translate(translator),
		}
		fields = append(fields, field)
	}

	return fields
}
