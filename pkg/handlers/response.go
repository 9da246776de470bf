package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-hangar/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-hangar/pkg/logging"
	"github.com/ekaya-inc/ekaya-hangar/pkg/services"
)

// jsonpCallbackPattern accepts dotted JavaScript identifiers such as "app.render".
var jsonpCallbackPattern = regexp.MustCompile(`^[A-Za-z_$][\w$]*(\.[A-Za-z_$][\w$]*)*$`)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteIndentedJSON writes data as two-space indented JSON. When callback is
// non-empty the body is wrapped as a JSONP call and served as JavaScript.
// The callback must already have passed ValidJSONPCallback.
func WriteIndentedJSON(w http.ResponseWriter, callback string, data any) error {
	body, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	if callback != "" {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		_, err = fmt.Fprintf(w, "%s(%s);", callback, body)
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(body)
	return err
}

// JSONPCallback returns the callback requested with ?jsonp= or ?callback=,
// jsonp taking precedence. ok is false when the name is not a valid
// JavaScript identifier path.
func JSONPCallback(r *http.Request) (callback string, ok bool) {
	query := r.URL.Query()
	callback = query.Get("jsonp")
	if callback == "" {
		callback = query.Get("callback")
	}
	if callback == "" {
		return "", true
	}
	return callback, jsonpCallbackPattern.MatchString(callback)
}

// errorStatus maps service errors to an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errUnknownTemplate):
		return http.StatusBadRequest, "unknown_template"
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrNoRows):
		return http.StatusNotFound, "no_rows"
	case services.IsClientError(err):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeServiceError writes err with the status errorStatus chooses.
// Server errors are logged and answered with a generic message so driver
// errors never reach the client.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.String("error", logging.SanitizeError(err)))
		message = "Failed to execute endpoint"
	}
	if err := ErrorResponse(w, status, code, message); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
