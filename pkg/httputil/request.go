package httputil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// maxBodyBytes caps request bodies. None of the API payloads come close
// to this; it guards against accidental or hostile oversized uploads.
const maxBodyBytes = 1 << 20

// DecodeJSON decodes the request body into dest, rejecting unknown
// fields and bodies over 1MB.
func DecodeJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// PathVar extracts a required path variable registered on the mux route.
func PathVar(r *http.Request, key string) (string, error) {
	value := mux.Vars(r)[key]
	if value == "" {
		return "", fmt.Errorf("missing path parameter: %s", key)
	}
	return value, nil
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(r *http.Request, key string, defaultVal bool) (bool, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	switch str {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean for query param %s: %s", key, str)
}

// QueryTime parses an optional RFC 3339 timestamp query parameter.
// Returns nil when the parameter is absent.
func QueryTime(r *http.Request, key string) (*time.Time, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp for query param %s: %s (want RFC 3339)", key, str)
	}
	return &t, nil
}
