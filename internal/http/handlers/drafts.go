package handlers

import (
	"encoding/json"
	"net/http"

	"fundcrm/internal/providers/draft"
)

type draftRequest struct {
	Organization string `json:"organization"`
	Kind         string `json:"kind"`
	ProjectName  string `json:"project_name"`
	MeetingDate  string `json:"meeting_date"`
	Sender       string `json:"sender"`
}

// DraftsCreate resolves the organization and produces an email draft. The
// drafting provider only reads the record; generating a draft never mutates
// the pipeline.
func (a *App) DraftsCreate(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Organization == "" || req.Kind == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "organization and kind are required")
		return
	}
	rec, err := a.Engine.Resolve(r.Context(), req.Organization)
	if err != nil {
		a.engineError(w, err)
		return
	}
	result, err := a.Drafter.Draft(r.Context(), draft.Request{
		Kind:        req.Kind,
		Record:      *rec,
		ProjectName: req.ProjectName,
		MeetingDate: req.MeetingDate,
		Sender:      req.Sender,
	})
	if err != nil {
		a.error(w, http.StatusUnprocessableEntity, "invalid_draft_kind", err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]any{"draft": result})
}

// DraftKinds lists the supported draft kinds.
func (a *App) DraftKinds(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"kinds": draft.Kinds()})
}
