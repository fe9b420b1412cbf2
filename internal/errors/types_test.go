package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestProviderError(t *testing.T) {
	cause := stderrors.New("429 too many requests")
	err := NewProviderError("openai", "embedding", cause)

	assert.Equal(t, ErrCodeProvider, err.Code)
	assert.Equal(t, ErrorTypeExternal, err.Type)
	assert.Equal(t, http.StatusBadGateway, err.HTTPCode)
	assert.Contains(t, err.Error(), "openai embedding failed")
	assert.ErrorIs(t, err, cause)

	wrapped := fmt.Errorf("embed question: %w", err)
	assert.True(t, IsProviderError(wrapped))
	assert.False(t, IsStorageError(wrapped))
	assert.True(t, IsAppError(wrapped))
}

func TestStorageError(t *testing.T) {
	err := NewStorageError("postgres", "fetch candidates", stderrors.New("connection refused"))

	assert.Equal(t, ErrCodeStorage, err.Code)
	assert.True(t, IsStorageError(err))
	assert.False(t, IsProviderError(err))
	assert.Equal(t, "storage", err.Type.String())
}

func TestGetAppError_WrapsPlainError(t *testing.T) {
	plain := stderrors.New("boom")
	appErr := GetAppError(plain)

	assert.Equal(t, ErrCodeInternalServer, appErr.Code)
	assert.Equal(t, plain, appErr.Cause)
	assert.False(t, IsProviderError(plain))
}

func TestErrorLogger_LevelByType(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	el := NewErrorLogger(zap.New(core))

	el.LogError(NewProviderError("openai", "chat", stderrors.New("401")).WithRequestID("req-1"))
	el.LogError(NewValidationError("question is empty"))
	el.LogError(stderrors.New("unexpected"))
	el.LogError(nil)

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, zap.WarnLevel, entries[0].Level)
		assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
		assert.Equal(t, zap.InfoLevel, entries[1].Level)
		assert.Equal(t, zap.ErrorLevel, entries[2].Level)
	}
}
