package validator

import (
	"errors"
	"reflect"
	"strings"

	"github.com/elivate/elivate-backend/internal/rules"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// trans is the singleton English translator for validation errors.
var trans ut.Translator

// Setup registers the validator with English translations on Gin's binding engine.
// Call once during application startup.
func Setup() {
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		// Use JSON tag name for field names in error messages.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		registerProgram(v)
	}
}

// registerProgram adds the "program" tag: the value must be a catalog key.
func registerProgram(v *govalidator.Validate) {
	_ = v.RegisterValidation("program", func(fl govalidator.FieldLevel) bool {
		return rules.Program(strings.ToLower(strings.TrimSpace(fl.Field().String()))).Valid()
	})

	keys := make([]string, 0, len(rules.Programs()))
	for _, p := range rules.Programs() {
		keys = append(keys, string(p))
	}
	_ = v.RegisterTranslation("program", trans,
		func(u ut.Translator) error {
			return u.Add("program", "{0} must be one of: {1}", true)
		},
		func(u ut.Translator, fe govalidator.FieldError) string {
			msg, _ := u.T("program", fe.Field(), strings.Join(keys, ", "))
			return msg
		},
	)
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name → human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
