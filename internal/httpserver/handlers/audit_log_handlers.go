package handlers

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"educhat/internal/audit"
)

// ListAuditLogs serves GET /api/admin/audit-logs with page/limit/userId/
// action/resource/startDate/endDate filters.
func ListAuditLogs(rec *audit.Recorder, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f := audit.QueryFilter{
			Action:   q.Get("action"),
			Resource: q.Get("resource"),
		}
		if v := q.Get("page"); v != "" {
			f.Page, _ = strconv.Atoi(v)
		}
		if v := q.Get("limit"); v != "" {
			f.Limit, _ = strconv.Atoi(v)
		}
		if v := q.Get("userId"); v != "" {
			if id, err := strconv.ParseUint(v, 10, 64); err == nil {
				uid := uint(id)
				f.UserID = &uid
			}
		}
		if v := q.Get("startDate"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				f.StartDate = &t
			}
		}
		if v := q.Get("endDate"); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				f.EndDate = &t
			}
		}
		rows, total, err := rec.Query(r.Context(), f)
		if err != nil {
			lg.Errorw("audit query failed", "error", err)
			respondError(w, http.StatusInternalServerError, "Erro interno")
			return
		}
		if rows == nil {
			rows = []audit.Row{}
		}
		respondJSON(w, map[string]any{
			"logs":  rows,
			"total": total,
			"page":  f.Page,
			"limit": f.Limit,
		})
	}
}
