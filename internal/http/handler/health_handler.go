package handler

import (
	"net/http"

	"github.com/credkit/session-service/internal/health"
	"github.com/credkit/session-service/internal/http/response"
)

type HealthHandler struct {
	schema *health.SchemaChecker
	probes *health.ProbeRunner
}

func NewHealthHandler(schema *health.SchemaChecker, probes *health.ProbeRunner) *HealthHandler {
	return &HealthHandler{schema: schema, probes: probes}
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, map[string]any{"status": "ok"})
}

// Check reports dependency liveness plus a full schema audit: every
// required table and column must exist for the service to be healthy.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	probesOK, results := h.probes.Ready(r.Context())

	schemaOK := true
	var tables []health.TableStatus
	if h.schema != nil {
		schemaOK, tables = h.schema.Report(r.Context())
	}

	body := map[string]any{
		"status": "healthy",
		"schema": h.schema.Schema(),
		"tables": tables,
		"checks": results,
	}
	if !probesOK || !schemaOK {
		body["status"] = "unhealthy"
		response.JSON(w, r, http.StatusInternalServerError, body)
		return
	}
	response.JSON(w, r, http.StatusOK, body)
}
