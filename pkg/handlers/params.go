package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	hangarsql "github.com/ekaya-inc/ekaya-hangar/pkg/sql"
)

// ParseEndpointURL returns the catalog URL captured by the {url...} wildcard.
// Returns the URL and true on success, or "" and false on error
// (after writing an error response).
func ParseEndpointURL(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	url := strings.Trim(r.PathValue("url"), "/")
	if url == "" {
		if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Endpoint URL is required"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return url, true
}

// ParseRequestParams casts the query string into typed query parameters.
// Returns the params and true on success, or nil and false on error
// (after writing an error response).
func ParseRequestParams(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (map[string]any, bool) {
	params, err := hangarsql.CastRequestParams(r.URL.Query())
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_parameter", err.Error()); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}
	return params, true
}

// ParseJSONPCallback validates the requested JSONP callback.
// Returns the callback ("" for plain JSON) and true on success, or false
// after writing an error response.
func ParseJSONPCallback(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	callback, ok := JSONPCallback(r)
	if !ok {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_callback", "Invalid JSONP callback name"); err != nil {
			logger.Error("Failed to write error response", zap.Error(err))
		}
		return "", false
	}
	return callback, true
}
