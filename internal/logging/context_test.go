package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogData_Missing(t *testing.T) {
	assert.Nil(t, GetLogData(context.Background()))
}

func TestRequestLogger_AttachesLogData(t *testing.T) {
	logger := SetupLogging()
	var out bytes.Buffer
	logger.Out = &out

	var seen *LogData
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		seen = GetLogData(req.Context())
		seen.AddData("userId", "u-1")
		w.WriteHeader(http.StatusNoContent)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.NotNil(t, seen)
	assert.Equal(t, http.StatusNoContent, w.Code)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))
	assert.Equal(t, "Request.Complete", line["msg"])
	assert.Equal(t, "info", line["loglevel"])
	assert.Equal(t, "u-1", line["userId"])
	assert.Equal(t, "/status", line["path"])
}

// -- LoggingWrapper tests --

func TestLoggingWrapper_LogsCompletion(t *testing.T) {
	logger := SetupLogging()
	var out bytes.Buffer
	logger.Out = &out

	var fromContext *LogData
	wrapped := LoggingWrapper("Status", logger, func(w http.ResponseWriter, req *http.Request, logData *LogData) error {
		fromContext = GetLogData(req.Context())
		assert.Same(t, logData, fromContext)
		w.WriteHeader(http.StatusOK)
		return nil
	})

	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status", nil))
	require.NotNil(t, fromContext)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))
	assert.Equal(t, "Handler.Status.Complete", line["msg"])
	assert.Equal(t, "GET", line["method"])
}

func TestLoggingWrapper_LogsError(t *testing.T) {
	logger := SetupLogging()
	var out bytes.Buffer
	logger.Out = &out

	wrapped := LoggingWrapper("Status", logger, func(w http.ResponseWriter, req *http.Request, logData *LogData) error {
		w.WriteHeader(http.StatusBadRequest)
		return errors.New("status: method not GET")
	})

	wrapped.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/status", nil))

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))
	assert.Equal(t, "Handler.Status.Error", line["msg"])
	assert.Equal(t, "error", line["loglevel"])
	assert.Equal(t, "status: method not GET", line["error"])
}
