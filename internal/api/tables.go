package api

import (
	"net/http"

	"github.com/nbai/nbai/internal/agent"
	"github.com/nbai/nbai/internal/auth"
	"github.com/nbai/nbai/internal/catalog"
)

func handleListTables(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireRole(r.Context(), auth.RoleStatsReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"content_hash": catalog.ContentHash(),
		"tables":       catalog.Descriptors(),
	})
}

func handleTool(w http.ResponseWriter, r *http.Request) {
	if err := auth.RequireRole(r.Context(), auth.RoleStatsReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}
	writeJSON(w, http.StatusOK, agent.NewManifest())
}
