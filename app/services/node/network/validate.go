package network

import (
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// validate holds the settings and caches for validating request payloads.
var validate *validator.Validate

// translator is a cache of locale and translation information so
// validation failures come back as readable sentences, not struct paths.
var translator ut.Translator

func init() {
	validate = validator.New()

	translator, _ = ut.New(en.New(), en.New()).GetTranslator("en")
	entranslations.RegisterDefaultTranslations(validate, translator)
}

// checkRequest validates a request payload struct and returns a
// human-readable message for the first failing field, or "" when the
// payload is valid.
func checkRequest(val any) string {
	err := validate.Struct(val)
	if err == nil {
		return ""
	}

	verrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	for _, verror := range verrors {
		return verror.Translate(translator)
	}
	return err.Error()
}
