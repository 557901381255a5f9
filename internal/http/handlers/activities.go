package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"fundcrm/internal/domain"
)

type activityResponse struct {
	ID         int64             `json:"id"`
	RecordKey  string            `json:"record_key"`
	Actor      string            `json:"actor"`
	Action     string            `json:"action"`
	Before     map[string]string `json:"before"`
	After      map[string]string `json:"after"`
	OutOfOrder bool              `json:"out_of_order,omitempty"`
	Timestamp  string            `json:"timestamp"`
}

func toActivityResponse(entry *domain.ActivityRecord) activityResponse {
	flatten := func(m map[domain.Field]string) map[string]string {
		out := make(map[string]string, len(m))
		for f, v := range m {
			out[string(f)] = v
		}
		return out
	}
	return activityResponse{
		ID:         entry.ID,
		RecordKey:  entry.RecordKey,
		Actor:      entry.Actor,
		Action:     string(entry.Action),
		Before:     flatten(entry.Before),
		After:      flatten(entry.After),
		OutOfOrder: entry.OutOfOrder,
		Timestamp:  entry.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// OrgsActivity returns the audit trail for one organization, oldest first.
func (a *App) OrgsActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Engine.History(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.engineError(w, err)
		return
	}
	items := make([]activityResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toActivityResponse(&entries[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// ActivityRecent returns the newest audit entries across the pipeline.
func (a *App) ActivityRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be between 1 and 500")
			return
		}
		limit = parsed
	}
	entries, err := a.Engine.Recent(r.Context(), limit)
	if err != nil {
		a.engineError(w, err)
		return
	}
	items := make([]activityResponse, 0, len(entries))
	for i := range entries {
		items = append(items, toActivityResponse(&entries[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}
