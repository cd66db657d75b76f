package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"message": "test"}

		err := WriteJSON(w, http.StatusOK, data)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusNoContent, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteOK(w, map[string]string{"result": "success"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)

	var response SuccessResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	dataMap := response.Data.(map[string]interface{})
	assert.Equal(t, "success", dataMap["result"])
}

func TestWriteStatus(t *testing.T) {
	t.Run("defaults to ok", func(t *testing.T) {
		w := httptest.NewRecorder()
		dnt := true

		require.NoError(t, WriteStatus(w, StatusResponse{DNT: &dnt}))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status": "ok", "dnt": true}`, w.Body.String())
	})

	t.Run("event id", func(t *testing.T) {
		w := httptest.NewRecorder()

		require.NoError(t, WriteStatus(w, StatusResponse{EventID: "e1"}))

		assert.JSONEq(t, `{"status": "ok", "event_id": "e1"}`, w.Body.String())
	})
}

func TestWriteBadRequest(t *testing.T) {
	w := httptest.NewRecorder()
	details := map[string]interface{}{"ts": "invalid format"}

	err := WriteBadRequest(w, "Validation failed", details)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))

	assert.Equal(t, "bad_request", response.Error)
	assert.Equal(t, "Validation failed", response.Message)
	assert.Equal(t, "invalid format", response.Details["ts"])
}

func TestWriteDefaultMessages(t *testing.T) {
	tests := []struct {
		name      string
		write     func(http.ResponseWriter) error
		wantCode  int
		wantError string
		wantMsg   string
	}{
		{
			name:      "unauthorized",
			write:     func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") },
			wantCode:  http.StatusUnauthorized,
			wantError: "unauthorized",
			wantMsg:   "Authentication required",
		},
		{
			name:      "forbidden",
			write:     func(w http.ResponseWriter) error { return WriteForbidden(w, "") },
			wantCode:  http.StatusForbidden,
			wantError: "forbidden",
			wantMsg:   "Access forbidden",
		},
		{
			name:      "not found",
			write:     func(w http.ResponseWriter) error { return WriteNotFound(w, "") },
			wantCode:  http.StatusNotFound,
			wantError: "not_found",
			wantMsg:   "Resource not found",
		},
		{
			name:      "internal",
			write:     func(w http.ResponseWriter) error { return WriteInternalServerError(w, "") },
			wantCode:  http.StatusInternalServerError,
			wantError: "internal_error",
			wantMsg:   "Internal server error",
		},
		{
			name:      "unavailable",
			write:     func(w http.ResponseWriter) error { return WriteServiceUnavailable(w, "", 0) },
			wantCode:  http.StatusServiceUnavailable,
			wantError: "service_unavailable",
			wantMsg:   "Service temporarily unavailable",
		},
		{
			name:      "custom message",
			write:     func(w http.ResponseWriter) error { return WriteForbidden(w, "Host not allowed") },
			wantCode:  http.StatusForbidden,
			wantError: "forbidden",
			wantMsg:   "Host not allowed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.wantCode, w.Code)

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.wantError, response.Error)
			assert.Equal(t, tt.wantMsg, response.Message)
		})
	}
}

func TestWriteServiceUnavailable_RetryAfter(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteServiceUnavailable(w, "storage unavailable", 5))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "5", w.Header().Get("Retry-After"))
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		status    int
		wantError string
	}{
		{http.StatusBadRequest, "bad_request"},
		{http.StatusUnauthorized, "unauthorized"},
		{http.StatusForbidden, "forbidden"},
		{http.StatusNotFound, "not_found"},
		{http.StatusServiceUnavailable, "service_unavailable"},
		{http.StatusTeapot, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.wantError, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, WriteError(w, tt.status, "msg", nil))

			assert.Equal(t, tt.status, w.Code)
			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.wantError, response.Error)
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name": "x"}`))
		var b body
		require.NoError(t, DecodeJSON(r, &b))
		assert.Equal(t, "x", b.Name)
	})

	t.Run("empty", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var b body
		err := DecodeJSON(r, &b)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "empty")
	})

	t.Run("malformed", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
		var b body
		err := DecodeJSON(r, &b)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON body")
	})

	t.Run("too large", func(t *testing.T) {
		big := `{"name": "` + strings.Repeat("a", MaxBodyBytes+10) + `"}`
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(big))
		var b body
		err := DecodeJSON(r, &b)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds")
	})
}
