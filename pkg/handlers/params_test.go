package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseEndpointURL(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name       string
		pathValue  string
		wantOK     bool
		wantURL    string
		wantStatus int
	}{
		{name: "simple", pathValue: "customers", wantOK: true, wantURL: "customers"},
		{name: "nested", pathValue: "reports/daily/", wantOK: true, wantURL: "reports/daily"},
		{name: "empty", pathValue: "", wantOK: false, wantStatus: http.StatusNotFound},
		{name: "only slash", pathValue: "/", wantOK: false, wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/json/"+tt.pathValue, nil)
			req.SetPathValue("url", tt.pathValue)
			rec := httptest.NewRecorder()

			url, ok := ParseEndpointURL(rec, req, logger)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantURL, url)
			if !tt.wantOK {
				assert.Equal(t, tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestParseRequestParams(t *testing.T) {
	logger := zap.NewNop()

	req := httptest.NewRequest(http.MethodGet, "/json/x?int:id=7&list:int:ids=1,2&name=%20Ada%20&jsonp=cb", nil)
	rec := httptest.NewRecorder()

	params, ok := ParseRequestParams(rec, req, logger)

	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"id":   int64(7),
		"ids":  []int64{1, 2},
		"name": "Ada",
	}, params)
}

func TestParseRequestParams_BadInt(t *testing.T) {
	logger := zap.NewNop()

	req := httptest.NewRequest(http.MethodGet, "/json/x?int:id=seven", nil)
	rec := httptest.NewRecorder()

	_, ok := ParseRequestParams(rec, req, logger)

	require.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "invalid_parameter", body["error"])
}

func TestParseJSONPCallback_Invalid(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/json/x?callback=alert(document.cookie)", nil)
	rec := httptest.NewRecorder()

	_, ok := ParseJSONPCallback(rec, req, zap.NewNop())

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
