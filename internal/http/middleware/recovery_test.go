package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRecovery_PanicBeforeWrite(t *testing.T) {
	handler := Recovery(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("negotiation table corrupted")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/media", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRecovery_PanicMidStream(t *testing.T) {
	// Composed as the server composes them, so the recovery sees the
	// logging wrapper and can tell the response is already committed.
	// No 500 must be appended to a stream that already carried bytes.
	handler := NewLoggingMiddleware(discardLogger())(
		Recovery(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("tsbytes"))
			panic("encoder died mid-segment")
		})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/media/01ABC/hls/0.ts", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tsbytes", rec.Body.String())
}

func TestRecovery_AbortHandlerPassesThrough(t *testing.T) {
	handler := Recovery(discardLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/media/01ABC/stream/direct", nil))
	})
}
