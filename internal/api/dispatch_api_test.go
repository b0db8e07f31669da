package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jobmate-app/go-push-dispatch/internal/api"
	"github.com/jobmate-app/go-push-dispatch/internal/engine"
)

type MockDispatchEngine struct {
	mock.Mock
}

func (m *MockDispatchEngine) Dispatch(ctx context.Context, trigger engine.Trigger) (*engine.Report, error) {
	args := m.Called(ctx, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*engine.Report), args.Error(1)
}

func setupDispatchAPI(t *testing.T) (*api.DispatchAPI, *MockDispatchEngine) {
	mockEngine := new(MockDispatchEngine)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return api.NewDispatchAPI(mockEngine, logger), mockEngine
}

func TestHandleTrigger(t *testing.T) {
	changeBody := []byte(`{
		"type": "INSERT",
		"table": "messages",
		"schema": "public",
		"record": {"conversation_id": "c-1", "sender_id": "u-1", "content": "Bonjour"}
	}`)

	t.Run("Change Trigger Dispatched", func(t *testing.T) {
		apiHandler, mockEngine := setupDispatchAPI(t)

		mockEngine.On("Dispatch", mock.Anything, mock.MatchedBy(func(tr engine.Trigger) bool {
			return tr.Change != nil && tr.Change.Table == "messages"
		})).Return(&engine.Report{Recipients: 1, Delivered: 2, Pruned: 1}, nil)

		req := httptest.NewRequest("POST", "/v1/dispatch", bytes.NewReader(changeBody))
		w := httptest.NewRecorder()
		apiHandler.HandleTrigger(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, map[string]any{"success": true}, resp)
		mockEngine.AssertExpectations(t)
	})

	t.Run("Direct Trigger Dispatched", func(t *testing.T) {
		apiHandler, mockEngine := setupDispatchAPI(t)

		mockEngine.On("Dispatch", mock.Anything, mock.MatchedBy(func(tr engine.Trigger) bool {
			return tr.Direct != nil && tr.Direct.Type == "profile_reminder"
		})).Return(&engine.Report{}, nil)

		req := httptest.NewRequest("POST", "/v1/dispatch", bytes.NewReader([]byte(`{"type":"profile_reminder"}`)))
		w := httptest.NewRecorder()
		apiHandler.HandleTrigger(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockEngine.AssertExpectations(t)
	})

	t.Run("Malformed Body Is 400 Before Engine", func(t *testing.T) {
		apiHandler, mockEngine := setupDispatchAPI(t)

		req := httptest.NewRequest("POST", "/v1/dispatch", bytes.NewReader([]byte(`{not json`)))
		w := httptest.NewRecorder()
		apiHandler.HandleTrigger(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockEngine.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
	})

	t.Run("Unroutable Trigger Is 400", func(t *testing.T) {
		apiHandler, mockEngine := setupDispatchAPI(t)

		mockEngine.On("Dispatch", mock.Anything, mock.Anything).
			Return(nil, errors.Join(engine.ErrUnroutable, errors.New("unknown table")))

		req := httptest.NewRequest("POST", "/v1/dispatch", bytes.NewReader([]byte(`{"type":"INSERT","table":"invoices"}`)))
		w := httptest.NewRecorder()
		apiHandler.HandleTrigger(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Engine Failure Is 500", func(t *testing.T) {
		apiHandler, mockEngine := setupDispatchAPI(t)

		mockEngine.On("Dispatch", mock.Anything, mock.Anything).
			Return(nil, errors.New("acquire push credential: token exchange rejected"))

		req := httptest.NewRequest("POST", "/v1/dispatch", bytes.NewReader(changeBody))
		w := httptest.NewRecorder()
		apiHandler.HandleTrigger(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
