// Package response writes JSON API responses.
package response

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// WriteJSON writes data as JSON without HTML escaping
func WriteJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}

// WriteError sends an error response with the specified status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_ = WriteJSON(w, map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteSuccess sends data with HTTP 200, gzip compressed when the client
// accepts it
func WriteSuccess(w http.ResponseWriter, r *http.Request, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if r == nil || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
		w.WriteHeader(http.StatusOK)
		return WriteJSON(w, data)
	}

	w.Header().Set("Content-Encoding", "gzip")
	w.WriteHeader(http.StatusOK)
	gz := gzip.NewWriter(w)
	if err := WriteJSON(gz, data); err != nil {
		_ = gz.Close()
		return err
	}
	return gz.Close()
}
