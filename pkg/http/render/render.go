// Package render decodes and validates JSON request bodies and writes JSON responses.
package render

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"

	httperrors "github.com/zart/quizzer/pkg/http/errors"
)

// MaxBodyBytes caps request bodies read by Decode.
const MaxBodyBytes = 1 << 20

var (
	once     sync.Once
	validate *validator.Validate
	trans    ut.Translator
)

func engine() (*validator.Validate, ut.Translator) {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		_ = entranslations.RegisterDefaultTranslations(validate, trans)
	})
	return validate, trans
}

// Validate runs struct validation on v and returns field -> message, or nil when valid.
func Validate(v any) map[string]string {
	val, tr := engine()
	err := val.Struct(v)
	if err == nil {
		return nil
	}
	return TranslateErrors(err, tr)
}

// TranslateErrors turns a validator error into field -> human readable message.
// Non-validation errors land under "detail".
func TranslateErrors(err error, tr ut.Translator) map[string]string {
	fields := make(map[string]string)
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(tr)
		}
		return fields
	}
	fields["detail"] = err.Error()
	return fields
}

// Decode reads a JSON body into dst and validates it. On failure it writes a
// 400 response and returns false.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return false
	}
	if fields := Validate(dst); fields != nil {
		httperrors.RespondFieldErrors(w, fields)
		return false
	}
	return true
}

// JSON writes data with the given status.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
