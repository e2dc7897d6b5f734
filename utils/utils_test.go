package utils

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := GenerateToken("s3cret", "user-42", time.Hour)
	require.NoError(t, err)

	userID, err := ValidateToken("s3cret", tok)
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)

	_, err = ValidateToken("other", tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateToken("s3cret", "user-42", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken("s3cret", expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = GenerateToken("", "user-42", time.Hour)
	assert.Error(t, err)
}

func TestLoggerRedactsSecrets(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.Info("calling backend", "api_key", "abc123", "query", "White Shirt")
	l.With("Authorization", "Bearer x").Warn("auth")

	entries := logs.All()
	require.Len(t, entries, 2)
	fields := entries[0].ContextMap()
	assert.Equal(t, "[REDACTED]", fields["api_key"])
	assert.Equal(t, "White Shirt", fields["query"])
	assert.Equal(t, "[REDACTED]", entries[1].ContextMap()["Authorization"])
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, NopLogger(), "outfits are required", http.StatusBadRequest)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "outfits are required", body["error"])
}

func TestResolveRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/short" {
			http.Redirect(w, r, "/final", http.StatusMovedPermanently)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	got, err := ResolveRedirects(context.Background(), srv.Client(), srv.URL+"/short")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/final", got)
}
