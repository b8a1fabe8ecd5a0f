package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	pkgerrors "ideacanvas/pkg/errors"
)

// MaxBodyBytes caps JSON request bodies. Canvas documents are the largest
const MaxBodyBytes = 8 << 20

// RespondJSON sends data as a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ParseJSONBody decodes the request body into v. Malformed or oversized
// bodies come back as validation errors
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return pkgerrors.NewValidationError(fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
		case errors.Is(err, io.EOF):
			return pkgerrors.NewValidationError("request body is required")
		default:
			return pkgerrors.NewValidationError("invalid request body: " + err.Error())
		}
	}
	return nil
}
