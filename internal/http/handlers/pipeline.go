package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"fundcrm/internal/domain"
	"fundcrm/internal/pipeline"
)

// PipelineBoard returns all records grouped by current stage, stages in
// pipeline order.
func (a *App) PipelineBoard(w http.ResponseWriter, r *http.Request) {
	grouped, err := a.Engine.GroupedByStage(r.Context())
	if err != nil {
		a.engineError(w, err)
		return
	}
	board := make([]map[string]any, 0, len(domain.Stages()))
	for _, stage := range domain.Stages() {
		records := grouped[stage]
		items := make([]donorResponse, 0, len(records))
		for i := range records {
			items = append(items, toDonorResponse(&records[i]))
		}
		board = append(board, map[string]any{
			"stage": string(stage),
			"orgs":  items,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"pipeline": board})
}

// OrgsList lists the whole pipeline, or searches when ?q= is present.
func (a *App) OrgsList(w http.ResponseWriter, r *http.Request) {
	var (
		records []domain.DonorRecord
		err     error
	)
	if q := r.URL.Query().Get("q"); q != "" {
		records, err = a.Engine.Search(r.Context(), q)
	} else {
		records, err = a.Engine.List(r.Context())
	}
	if err != nil {
		a.engineError(w, err)
		return
	}
	items := make([]donorResponse, 0, len(records))
	for i := range records {
		items = append(items, toDonorResponse(&records[i]))
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

type createOrgRequest struct {
	OrganizationName string `json:"organization_name"`
	Stage            string `json:"stage"`
	ContactPerson    string `json:"contact_person"`
	ContactEmail     string `json:"contact_email"`
	ContactRole      string `json:"contact_role"`
	SectorTags       string `json:"sector_tags"`
	Geography        string `json:"geography"`
	Actor            string `json:"actor"`
}

func (a *App) OrgsCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.OrganizationName == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "organization_name is required")
		return
	}
	rec := &domain.DonorRecord{
		OrganizationName: req.OrganizationName,
		ContactPerson:    req.ContactPerson,
		ContactEmail:     req.ContactEmail,
		ContactRole:      req.ContactRole,
		SectorTags:       req.SectorTags,
		Geography:        req.Geography,
	}
	if req.Stage != "" {
		stage, err := domain.ParseStage(req.Stage)
		if err != nil {
			a.engineError(w, err)
			return
		}
		rec.CurrentStage = stage
	}
	created, err := a.Engine.AddOrganization(r.Context(), rec, actorOrDefault(req.Actor))
	if err != nil && !errors.Is(err, domain.ErrPartialCommit) {
		a.engineError(w, err)
		return
	}
	if errors.Is(err, domain.ErrPartialCommit) {
		a.json(w, http.StatusCreated, map[string]any{"record": toDonorResponse(created), "warning": "partial_commit"})
		return
	}
	a.json(w, http.StatusCreated, map[string]any{"record": toDonorResponse(created)})
}

func (a *App) OrgsGet(w http.ResponseWriter, r *http.Request) {
	rec, err := a.Engine.GetStatus(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.engineError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"record": toDonorResponse(rec)})
}

type stageRequest struct {
	Stage         string `json:"stage"`
	Actor         string `json:"actor"`
	ExpectedToken string `json:"expected_token"`
}

func (a *App) OrgsTransitionStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	org := chi.URLParam(r, "name")
	if !a.tokenStillCurrent(w, r, org, req.ExpectedToken) {
		return
	}
	rec, err := a.Engine.TransitionStage(r.Context(), org, req.Stage, actorOrDefault(req.Actor))
	a.mutationResult(w, rec, err)
}

type ownerRequest struct {
	Owner         string `json:"owner"`
	Actor         string `json:"actor"`
	ExpectedToken string `json:"expected_token"`
}

func (a *App) OrgsAssignOwner(w http.ResponseWriter, r *http.Request) {
	var req ownerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	org := chi.URLParam(r, "name")
	if !a.tokenStillCurrent(w, r, org, req.ExpectedToken) {
		return
	}
	rec, err := a.Engine.AssignOwner(r.Context(), org, req.Owner, actorOrDefault(req.Actor))
	a.mutationResult(w, rec, err)
}

type nextActionRequest struct {
	Action        string `json:"action"`
	Date          string `json:"date"`
	Actor         string `json:"actor"`
	ExpectedToken string `json:"expected_token"`
}

func (a *App) OrgsSetNextAction(w http.ResponseWriter, r *http.Request) {
	var req nextActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	org := chi.URLParam(r, "name")
	if !a.tokenStillCurrent(w, r, org, req.ExpectedToken) {
		return
	}
	rec, err := a.Engine.SetNextAction(r.Context(), org, req.Action, req.Date, actorOrDefault(req.Actor))
	a.mutationResult(w, rec, err)
}

type notesRequest struct {
	Notes         string `json:"notes"`
	Append        bool   `json:"append"`
	Actor         string `json:"actor"`
	ExpectedToken string `json:"expected_token"`
}

func (a *App) OrgsUpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	org := chi.URLParam(r, "name")
	if !a.tokenStillCurrent(w, r, org, req.ExpectedToken) {
		return
	}
	actor := actorOrDefault(req.Actor)
	var (
		rec *domain.DonorRecord
		err error
	)
	if req.Append {
		rec, err = a.Engine.AppendNote(r.Context(), org, req.Notes, actor)
	} else {
		rec, err = a.Engine.UpdateNotes(r.Context(), org, req.Notes, actor)
	}
	a.mutationResult(w, rec, err)
}

type contactRequest struct {
	Person        *string `json:"person"`
	Email         *string `json:"email"`
	Role          *string `json:"role"`
	Actor         string  `json:"actor"`
	ExpectedToken string  `json:"expected_token"`
}

func (a *App) OrgsUpdateContact(w http.ResponseWriter, r *http.Request) {
	var req contactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Person == nil && req.Email == nil && req.Role == nil {
		a.error(w, http.StatusBadRequest, "bad_request", "at least one of person, email, role is required")
		return
	}
	org := chi.URLParam(r, "name")
	if !a.tokenStillCurrent(w, r, org, req.ExpectedToken) {
		return
	}
	rec, err := a.Engine.UpdateContact(r.Context(), org, pipeline.ContactUpdate{
		Person: req.Person,
		Email:  req.Email,
		Role:   req.Role,
	}, actorOrDefault(req.Actor))
	a.mutationResult(w, rec, err)
}

// tokenStillCurrent enforces the fetch-then-save contract for web edits: a
// client that supplies the token it last saw gets a conflict if the record
// moved since, instead of silently overwriting someone else's change.
func (a *App) tokenStillCurrent(w http.ResponseWriter, r *http.Request, org, expected string) bool {
	if expected == "" {
		return true
	}
	token, err := time.Parse(time.RFC3339Nano, expected)
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "expected_token must be an RFC 3339 timestamp")
		return false
	}
	rec, err := a.Engine.GetStatus(r.Context(), org)
	if err != nil {
		a.engineError(w, err)
		return false
	}
	if !rec.LastUpdated.Equal(token) {
		a.engineError(w, domain.ErrConcurrentModification)
		return false
	}
	return true
}

func actorOrDefault(actor string) string {
	if actor == "" {
		return "dashboard"
	}
	return actor
}
