package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("Corpo da requisição vazio.", err)
		}
		return badRequest("Corpo da requisição inválido.", err)
	}
	if reflect.Indirect(reflect.ValueOf(dst)).Kind() != reflect.Struct {
		return nil
	}
	if err := validate.Struct(dst); err != nil {
		return validationError(err)
	}
	return nil
}

// validationError describes the first failed field in Portuguese.
func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return badRequest("Dados inválidos.", err)
	}
	fe := ve[0]
	var msg string
	switch fe.Tag() {
	case "required":
		msg = fmt.Sprintf("O campo %s é obrigatório.", fe.Field())
	case "min":
		msg = fmt.Sprintf("O campo %s deve ter no mínimo %s caracteres.", fe.Field(), fe.Param())
	case "max":
		msg = fmt.Sprintf("O campo %s deve ter no máximo %s caracteres.", fe.Field(), fe.Param())
	case "oneof":
		msg = fmt.Sprintf("O campo %s deve ser um de: %s.", fe.Field(), fe.Param())
	default:
		msg = fmt.Sprintf("O campo %s é inválido.", fe.Field())
	}
	return badRequest(msg, err)
}

// parseIntParam parses a non-negative integer query parameter with a
// default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 0 {
		return defaultVal
	}
	return i
}

// parseTimeParam accepts RFC 3339 timestamps and plain dates. A bad value
// is a request error; an absent one the zero time.
func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	val := strings.TrimSpace(r.URL.Query().Get(name))
	if val == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, val); err == nil {
			return t, nil
		}
	}
	return time.Time{}, badRequest(fmt.Sprintf("Data inválida em %s, use AAAA-MM-DD.", name), nil)
}
