package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nbai/nbai/internal/auth"
	"github.com/nbai/nbai/internal/catalog"
	"github.com/nbai/nbai/internal/observability"
	"github.com/nbai/nbai/internal/pipeline"
	"github.com/nbai/nbai/internal/retrieval"
)

const maxRequestBytes = 64 << 10

type statsRequest struct {
	Question string `json:"question"`
}

type statsResponse struct {
	pipeline.Answer
	Text    string `json:"text"`
	TraceID string `json:"trace_id,omitempty"`
}

type selectTablesRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

type selectedTable struct {
	TableName   string  `json:"table_name"`
	Score       float64 `json:"score"`
	Description string  `json:"description,omitempty"`
}

func handleStats(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Stats == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "STATS_NOT_CONFIGURED", "stats pipeline is not configured", false, nil)
		return
	}
	if err := auth.RequireRole(r.Context(), auth.RoleStatsReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request statsRequest
	if !decodeRequest(w, r, &request) {
		return
	}

	answer := deps.Stats.GetNBAStats(r.Context(), request.Question)
	writeJSON(w, statusForAnswer(answer), statsResponse{
		Answer:  answer,
		Text:    answer.Text(),
		TraceID: observability.TraceIDFromContext(r.Context()),
	})
}

// statusForAnswer maps pipeline failure codes onto HTTP statuses. Answers
// with rows and the no-results sentinel are both successes.
func statusForAnswer(answer pipeline.Answer) int {
	if answer.Status != pipeline.StatusError {
		return http.StatusOK
	}
	switch answer.Code {
	case "INVALID_QUESTION":
		return http.StatusBadRequest
	case "RETRIEVAL_FAILED":
		return http.StatusServiceUnavailable
	case "SYNTHESIS_FAILED":
		return http.StatusBadGateway
	case "QUERY_EXECUTION_FAILED":
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func handleSelectTables(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Ranker == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "RETRIEVAL_NOT_CONFIGURED", "table retrieval is not configured", false, nil)
		return
	}
	if err := auth.RequireRole(r.Context(), auth.RoleStatsReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request selectTablesRequest
	if !decodeRequest(w, r, &request) {
		return
	}
	question := strings.TrimSpace(request.Question)
	if question == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_QUESTION", "question is required", false, nil)
		return
	}
	if request.TopK < 0 {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_TOP_K", "top_k must be positive", false, map[string]any{"top_k": request.TopK})
		return
	}
	topK := request.TopK
	if topK == 0 {
		topK = deps.DefaultTopK
	}
	if topK <= 0 {
		topK = retrieval.DefaultTopK
	}

	matches, err := deps.Ranker.Rank(r.Context(), question, topK)
	if err != nil {
		observability.LoggerOrDiscard(deps.Logger).ErrorContext(r.Context(), "table_selection_failed",
			slog.String("trace_id", observability.TraceIDFromContext(r.Context())),
			slog.String("error", err.Error()),
		)
		writeError(r.Context(), w, http.StatusServiceUnavailable, "RETRIEVAL_FAILED", "table retrieval failed", true, nil)
		return
	}

	tables := make([]selectedTable, 0, len(matches))
	for _, match := range matches {
		item := selectedTable{TableName: match.TableName, Score: match.Score}
		if descriptor, err := catalog.Lookup(match.TableName); err == nil {
			item.Description = descriptor.Description
		}
		tables = append(tables, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"question": question,
		"top_k":    topK,
		"tables":   tables,
	})
}

func decodeRequest(w http.ResponseWriter, r *http.Request, out any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid request body", false, map[string]any{"details": err.Error()})
		return false
	}
	return true
}
