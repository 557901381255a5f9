package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"fundcrm/internal/domain"
	"fundcrm/internal/pipeline"
	"fundcrm/internal/providers/draft"
	"fundcrm/internal/slack"
)

// App is the handler container wiring the dashboard API onto the pipeline
// engine. All mutations flow through the engine; handlers only translate
// HTTP to engine calls and engine errors to status codes.
type App struct {
	Engine        *pipeline.Engine
	Drafter       draft.Drafter
	Commander     *slack.Commander
	SigningSecret string
	Logger        zerolog.Logger
}

func NewApp(engine *pipeline.Engine, drafter draft.Drafter, commander *slack.Commander, signingSecret string, logger zerolog.Logger) *App {
	return &App{
		Engine:        engine,
		Drafter:       drafter,
		Commander:     commander,
		SigningSecret: signingSecret,
		Logger:        logger,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

// engineError maps the engine's error taxonomy onto HTTP statuses without
// leaking store internals. Ambiguous matches carry their candidate list so
// the dashboard can render a pick-list.
func (a *App) engineError(w http.ResponseWriter, err error) {
	var ambiguous *domain.AmbiguousMatchError
	switch {
	case errors.As(err, &ambiguous):
		a.json(w, http.StatusConflict, map[string]any{
			"error":      "ambiguous_match",
			"message":    "query matches more than one organization",
			"candidates": ambiguous.Candidates,
		})
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "organization not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		a.error(w, http.StatusConflict, "already_exists", "organization already exists")
	case errors.Is(err, domain.ErrInvalidStage):
		a.error(w, http.StatusUnprocessableEntity, "invalid_stage", "stage is not in the stage set")
	case errors.Is(err, domain.ErrInvalidDate):
		a.error(w, http.StatusUnprocessableEntity, "invalid_date", "date must be a valid YYYY-MM-DD calendar date")
	case errors.Is(err, domain.ErrStageLocked):
		a.error(w, http.StatusUnprocessableEntity, "stage_locked", "record is closed and locked")
	case errors.Is(err, domain.ErrConcurrentModification):
		a.error(w, http.StatusConflict, "concurrent_modification", "record changed concurrently, re-fetch and retry")
	case errors.Is(err, domain.ErrStoreUnavailable):
		a.error(w, http.StatusServiceUnavailable, "store_unavailable", "record store is unavailable")
	default:
		a.Logger.Error().Err(err).Msg("unhandled engine error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

type donorResponse struct {
	OrganizationName string `json:"organization_name"`
	ContactPerson    string `json:"contact_person,omitempty"`
	ContactEmail     string `json:"contact_email,omitempty"`
	ContactRole      string `json:"contact_role,omitempty"`
	CurrentStage     string `json:"current_stage"`
	PreviousStage    string `json:"previous_stage,omitempty"`
	AssignedTo       string `json:"assigned_to,omitempty"`
	NextAction       string `json:"next_action,omitempty"`
	NextActionDate   string `json:"next_action_date,omitempty"`
	LastContactDate  string `json:"last_contact_date,omitempty"`
	SectorTags       string `json:"sector_tags,omitempty"`
	Geography        string `json:"geography,omitempty"`
	Notes            string `json:"notes,omitempty"`
	Probability      *int   `json:"probability,omitempty"`
	Token            string `json:"token"`
}

func toDonorResponse(rec *domain.DonorRecord) donorResponse {
	return donorResponse{
		OrganizationName: rec.OrganizationName,
		ContactPerson:    rec.ContactPerson,
		ContactEmail:     rec.ContactEmail,
		ContactRole:      rec.ContactRole,
		CurrentStage:     string(rec.CurrentStage),
		PreviousStage:    string(rec.PreviousStage),
		AssignedTo:       rec.AssignedTo,
		NextAction:       rec.NextAction,
		NextActionDate:   rec.NextActionDate,
		LastContactDate:  rec.LastContactDate,
		SectorTags:       rec.SectorTags,
		Geography:        rec.Geography,
		Notes:            rec.Notes,
		Probability:      rec.Probability,
		Token:            rec.LastUpdated.UTC().Format(time.RFC3339Nano),
	}
}

// mutationResult renders a mutation outcome. A partial commit is reported as
// success with a warning: the record write took effect, the audit entry did
// not, and nothing is rolled back.
func (a *App) mutationResult(w http.ResponseWriter, rec *domain.DonorRecord, err error) {
	if errors.Is(err, domain.ErrPartialCommit) && rec != nil {
		a.json(w, http.StatusOK, map[string]any{
			"record":  toDonorResponse(rec),
			"warning": "partial_commit",
		})
		return
	}
	if err != nil {
		a.engineError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"record": toDonorResponse(rec)})
}
