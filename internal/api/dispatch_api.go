// Package api exposes the HTTP surface: the dispatch trigger endpoint and
// device registration management.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-microservice-base/pkg/response"

	"github.com/jobmate-app/go-push-dispatch/internal/engine"
)

// DispatchEngine is the slice of the engine the trigger endpoint needs.
type DispatchEngine interface {
	Dispatch(ctx context.Context, trigger engine.Trigger) (*engine.Report, error)
}

type DispatchAPI struct {
	Engine DispatchEngine
	Logger *slog.Logger
}

func NewDispatchAPI(eng DispatchEngine, logger *slog.Logger) *DispatchAPI {
	return &DispatchAPI{Engine: eng, Logger: logger}
}

// HandleTrigger accepts either trigger shape (direct or change notification)
// and runs one dispatch invocation. Completion is 200 even when every
// recipient was suppressed; only unroutable triggers (400) and
// credential/unexpected failures (500) are errors.
func (a *DispatchAPI) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.WriteJSONError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	trigger, err := engine.DecodeTrigger(body)
	if err != nil {
		a.Logger.Warn("Rejected malformed trigger", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := a.Engine.Dispatch(r.Context(), trigger)
	if errors.Is(err, engine.ErrUnroutable) {
		a.Logger.Warn("Rejected unroutable trigger", "err", err)
		response.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		a.Logger.Error("Dispatch invocation failed", "err", err)
		response.WriteJSONError(w, http.StatusInternalServerError, "dispatch failed")
		return
	}
	a.Logger.Info("Dispatch invocation completed",
		"delivered", report.Delivered, "pruned", report.Pruned)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true})
}
