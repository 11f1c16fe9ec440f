package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/onnwee/forcegraph/internal/apierr"
)

// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
const DefaultMaxBodyBytes = 4 << 20

// LimitBody returns a middleware that caps the body size of POST, PUT and
// PATCH requests. Reads past the cap fail with *http.MaxBytesError.
func LimitBody(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodPost, http.MethodPut, http.MethodPatch:
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DecodeJSON decodes exactly one JSON value from the request body into v.
// Unknown fields are rejected so misspelled parameters do not silently fall
// back to defaults.
func DecodeJSON(r *http.Request, v interface{}) *apierr.Error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return apierr.ValidationInvalidFormat("Content-Type must be application/json")
		}
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return decodeError(err)
	}
	if dec.More() {
		return apierr.ValidationInvalidFormat("Request body must contain a single JSON value")
	}
	return nil
}

func decodeError(err error) *apierr.Error {
	var maxErr *http.MaxBytesError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &maxErr):
		return apierr.ValidationBodyTooLarge(maxErr.Limit)
	case errors.Is(err, io.EOF):
		return apierr.ValidationMissingField("body")
	case errors.As(err, &typeErr):
		return apierr.ValidationInvalidValue(typeErr.Field,
			fmt.Sprintf("Field %s must be %s", typeErr.Field, typeErr.Type))
	default:
		e := apierr.ValidationInvalidJSON()
		e.Message = "Invalid JSON request body: " + err.Error()
		return e
	}
}
