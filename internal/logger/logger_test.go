package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel(" WARN "))
	assert.Equal(t, INFO, ParseLevel("nonsense"))
}

func TestLogger_WritesJSONLine(t *testing.T) {
	var console, js bytes.Buffer
	l := NewWriter(&console, &js, DEBUG)

	l.LogPayment("CALLBACK", "TKT-1-ABCDEF12", "completed")

	var entry Entry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(js.Bytes()), &entry))
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "PAYMENT", entry.Category)
	assert.Equal(t, "[CALLBACK] TKT-1-ABCDEF12 - completed", entry.Message)
	assert.Equal(t, "logger_test.go", entry.File)
	assert.Contains(t, console.String(), "TKT-1-ABCDEF12")
}

func TestLogger_FiltersBelowMinLevel(t *testing.T) {
	var js bytes.Buffer
	l := NewWriter(nil, &js, WARN)

	l.Info("API", "ignored")
	l.Debug("API", "ignored")
	l.Warn("API", "kept")
	l.LogSecurity("FORBIDDEN", "kept too")

	lines := strings.Split(strings.TrimSpace(js.String()), "\n")
	assert.Len(t, lines, 2)
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Info("X", "y") })
	assert.NoError(t, l.Close())
}

func TestRequestLogger(t *testing.T) {
	var console, js bytes.Buffer
	l := NewWriter(&console, &js, INFO)

	h := l.RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/tickets", nil))

	var entry Entry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(js.Bytes()), &entry))
	assert.Equal(t, "API", entry.Category)
	assert.Contains(t, entry.Message, "GET /api/tickets - 418")
}
