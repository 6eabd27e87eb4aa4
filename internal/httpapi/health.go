// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/taibuivan/yomira/internal/platform/constants"
	"github.com/taibuivan/yomira/internal/platform/respond"
)

// HealthDependencies holds the injectable dependency checkers for the
// liveness/readiness probes.
type HealthDependencies struct {
	// CheckDatabase performs a shallow ping of the PostgreSQL pool backing
	// the document store and DB-auth store.
	CheckDatabase func() error

	// CheckSessionStore performs a shallow ping of the session-token KV
	// store, when the configured adapter supports one (e.g. Redis).
	CheckSessionStore func() error
}

type healthHandler struct {
	dependencies HealthDependencies
	log          *slog.Logger
}

// NewHealthHandlers constructs the liveness and readiness [http.HandlerFunc] pair.
func NewHealthHandlers(deps HealthDependencies, log *slog.Logger) (liveness, readiness http.HandlerFunc) {
	h := &healthHandler{dependencies: deps, log: log}
	return h.liveness, h.readiness
}

// liveness handles GET /health: confirms the process is up.
func (h *healthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	respond.OK(w, map[string]string{
		constants.FieldStatus:  "ok",
		constants.FieldApp:     constants.AppName,
		constants.FieldVersion: constants.AppVersion,
	})
}

// readiness handles GET /ready: verifies downstream dependencies.
func (h *healthHandler) readiness(w http.ResponseWriter, _ *http.Request) {
	type checkResult struct {
		Name  string `json:"name"`
		IsOK  bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}

	results := make([]checkResult, 0, 2)
	ready := true

	if h.dependencies.CheckDatabase != nil {
		result := checkResult{Name: "postgres", IsOK: true}
		if err := h.dependencies.CheckDatabase(); err != nil {
			result.IsOK = false
			result.Error = err.Error()
			ready = false
			h.log.Error("readiness_check_failed", slog.String("dependency", "postgres"), slog.Any("error", err))
		}
		results = append(results, result)
	}

	if h.dependencies.CheckSessionStore != nil {
		result := checkResult{Name: "sessionstore", IsOK: true}
		if err := h.dependencies.CheckSessionStore(); err != nil {
			result.IsOK = false
			result.Error = err.Error()
			ready = false
			h.log.Error("readiness_check_failed", slog.String("dependency", "sessionstore"), slog.Any("error", err))
		}
		results = append(results, result)
	}

	status := "ready"
	httpStatus := http.StatusOK
	if !ready {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(httpStatus)
	}

	respond.OK(w, map[string]any{
		constants.FieldStatus: status,
		constants.FieldChecks: results,
	})
}
