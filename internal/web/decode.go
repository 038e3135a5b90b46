package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/joao-fontenele/shopflow/internal/domain"
)

const maxBodyBytes = 1 << 20

// DecodeJSON decodes a JSON request body into dst.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.NewValidationError("body", "invalid request body")
	}
	return nil
}

// FormValue returns the trimmed form field.
func FormValue(r *http.Request, name string) string {
	return strings.TrimSpace(r.PostFormValue(name))
}

// FormInt parses an integer form field, returning def when it is absent.
func FormInt(r *http.Request, name string, def int) (int, error) {
	raw := FormValue(r, name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be a whole number")
	}
	return n, nil
}

// RequiredFormInt parses an integer form field that must be present.
func RequiredFormInt(r *http.Request, name string) (int, error) {
	if FormValue(r, name) == "" {
		return 0, domain.NewValidationError(name, "is required")
	}
	return FormInt(r, name, 0)
}

// FormBool treats the usual checkbox encodings as true.
func FormBool(r *http.Request, name string) bool {
	switch strings.ToLower(FormValue(r, name)) {
	case "1", "on", "true", "yes":
		return true
	}
	return false
}
