package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"fundcrm/internal/domain"
	"fundcrm/internal/pipeline"
	"fundcrm/internal/providers/draft"
)

// memStore backs the engine with in-memory data for handler tests.
type memStore struct {
	records map[string]*domain.DonorRecord
	entries []domain.ActivityRecord
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*domain.DonorRecord)}
}

func (m *memStore) GetByKey(_ context.Context, key string) (*domain.DonorRecord, error) {
	rec, ok := m.records[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *memStore) List(_ context.Context) ([]domain.DonorRecord, error) {
	out := make([]domain.DonorRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, *rec.Clone())
	}
	return out, nil
}

func (m *memStore) Insert(_ context.Context, rec *domain.DonorRecord) error {
	if _, ok := m.records[rec.Key()]; ok {
		return domain.ErrAlreadyExists
	}
	m.records[rec.Key()] = rec.Clone()
	return nil
}

func (m *memStore) Update(_ context.Context, key string, changes domain.FieldChanges, expectedToken, newToken time.Time) (time.Time, error) {
	rec, ok := m.records[key]
	if !ok {
		return time.Time{}, domain.ErrNotFound
	}
	if !rec.LastUpdated.Equal(expectedToken) {
		return time.Time{}, domain.ErrConcurrentModification
	}
	rec.Apply(changes)
	rec.LastUpdated = newToken
	return newToken, nil
}

func (m *memStore) Append(_ context.Context, entry *domain.ActivityRecord) error {
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memStore) ListRecent(_ context.Context, limit int) ([]domain.ActivityRecord, error) {
	out := make([]domain.ActivityRecord, 0, limit)
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *memStore) ListForOrganization(_ context.Context, key string) ([]domain.ActivityRecord, error) {
	var out []domain.ActivityRecord
	for _, entry := range m.entries {
		if entry.RecordKey == key {
			out = append(out, entry)
		}
	}
	return out, nil
}

func newTestApp(t *testing.T) (*App, *memStore) {
	t.Helper()
	store := newMemStore()
	engine := pipeline.New(store, store, zerolog.Nop(), pipeline.Options{})
	app := NewApp(engine, draft.NewTemplateDrafter("Diksha Foundation"), nil, "", zerolog.Nop())
	return app, store
}

// testRouter mounts the org routes the way the API router does, without the
// middleware stack.
func testRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/pipeline", app.PipelineBoard)
	r.Get("/v1/activity", app.ActivityRecent)
	r.Route("/v1/orgs", func(r chi.Router) {
		r.Get("/", app.OrgsList)
		r.Post("/", app.OrgsCreate)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", app.OrgsGet)
			r.Get("/activity", app.OrgsActivity)
			r.Patch("/stage", app.OrgsTransitionStage)
			r.Patch("/owner", app.OrgsAssignOwner)
			r.Patch("/next-action", app.OrgsSetNextAction)
			r.Patch("/notes", app.OrgsUpdateNotes)
			r.Patch("/contact", app.OrgsUpdateContact)
		})
	})
	r.Post("/v1/drafts", app.DraftsCreate)
	r.Get("/v1/drafts/kinds", app.DraftKinds)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v\n%s", err, rr.Body.String())
	}
	return out
}

func recordField(t *testing.T, body map[string]any, field string) string {
	t.Helper()
	rec, ok := body["record"].(map[string]any)
	if !ok {
		t.Fatalf("response has no record: %v", body)
	}
	v, _ := rec[field].(string)
	return v
}

func TestOrgsCreateAndGet(t *testing.T) {
	app, _ := newTestApp(t)
	h := testRouter(app)

	rr := doJSON(t, h, http.MethodPost, "/v1/orgs", `{"organization_name":"Wipro Foundation","contact_person":"Anita Rao","actor":"gautam"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if recordField(t, body, "current_stage") != "Initial Contact" {
		t.Fatalf("create response = %v", body)
	}
	if recordField(t, body, "token") == "" {
		t.Fatalf("create response missing token")
	}

	rr = doJSON(t, h, http.MethodGet, "/v1/orgs/wipro%20foundation", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	body = decodeBody(t, rr)
	if recordField(t, body, "organization_name") != "Wipro Foundation" {
		t.Fatalf("get response = %v", body)
	}
}

func TestOrgsGetNotFound(t *testing.T) {
	app, _ := newTestApp(t)
	rr := doJSON(t, testRouter(app), http.MethodGet, "/v1/orgs/Infosys", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "not_found" {
		t.Fatalf("body = %v", body)
	}
}

func TestOrgsGetAmbiguousListsCandidates(t *testing.T) {
	app, _ := newTestApp(t)
	h := testRouter(app)
	doJSON(t, h, http.MethodPost, "/v1/orgs", `{"organization_name":"Tata Trust"}`)
	doJSON(t, h, http.MethodPost, "/v1/orgs", `{"organization_name":"Tata Steel Foundation"}`)

	rr := doJSON(t, h, http.MethodGet, "/v1/orgs/Tata", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["error"] != "ambiguous_match" {
		t.Fatalf("body = %v", body)
	}
	candidates, _ := body["candidates"].([]any)
	if len(candidates) != 2 {
		t.Fatalf("candidates = %v, want both", candidates)
	}
}

func TestOrgsTransitionStage(t *testing.T) {
	app, _ := newTestApp(t)
	h := testRouter(app)
	doJSON(t, h, http.MethodPost, "/v1/orgs", `{"organization_name":"Wipro Foundation"}`)

	rr := doJSON(t, h, http.MethodPatch, "/v1/orgs/Wipro%20Foundation/stage", `{"stage":"Proposal Sent","actor":"gautam"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if recordField(t, body, "current_stage") != "Proposal Sent" || recordField(t, body, "previous_stage") != "Initial Contact" {
		t.Fatalf("stage response = %v", body)
	}

	rr = doJSON(t, h, http.MethodPatch, "/v1/orgs/Wipro%20Foundation/stage", `{"stage":"Warp Drive"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("invalid stage status = %d, want 422", rr.Code)
	}
}

func TestOrgsStaleTokenRejected(t *testing.T) {
	app, _ := newTestApp(t)
	h := testRouter(app)
	rr := doJSON(t, h, http.MethodPost, "/v1/orgs", `{"organization_name":"Wipro Foundation"}`)
	staleToken := recordField(t, decodeBody(t, rr), "token")

	// Another editor moves the record; the first editor's token goes stale.
	if rr := doJSON(t, h, http.MethodPatch, "/v1/orgs/Wipro%20Foundation/owner", `{"owner":"rahul"}`); rr.Code != http.StatusOK {
		t.Fatalf("intervening update status = %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPatch, "/v1/orgs/Wipro%20Foundation/owner",
		`{"owner":"priya","expected_token":"`+staleToken+`"}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("stale token status = %d, want 409", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "concurrent_modification" {
		t.Fatalf("body = %v", body)
	}
}

func TestOrgsSetNextActionInvalidDate(t *testing.T) {
	app, _ := newTestApp(t)
	h := testRouter(app)
	doJSON(t, h, http.MethodPost, "/v1/orgs", `{"organization_name":"Wipro Foundation"}`)

	rr := doJSON(t, h, http.MethodPatch, "/v1/orgs/Wipro%20Foundation/next-action", `{"action":"Call Anita","date":"2025-13-45"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "invalid_date" {
		t.Fatalf("body = %v", body)
	}
}

func TestOrgsNotesAppend(t *testing.T) {
	app, _ := newTestApp(t)
	h := testRouter(app)
	doJSON(t, h, http.MethodPost, "/v1/orgs", `{"organization_name":"Wipro Foundation"}`)

	doJSON(t, h, http.MethodPatch, "/v1/orgs/Wipro%20Foundation/notes", `{"notes":"first call done","append":true}`)
	rr := doJSON(t, h, http.MethodPatch, "/v1/orgs/Wipro%20Foundation/notes", `{"notes":"concept note sent","append":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if notes := recordField(t, decodeBody(t, rr), "notes"); notes != "first call done\nconcept note sent" {
		t.Fatalf("notes = %q", notes)
	}
}

func TestPipelineBoardGroupsByStage(t *testing.T) {
	app, _ := newTestApp(t)
	h := testRouter(app)
	doJSON(t, h, http.MethodPost, "/v1/orgs", `{"organization_name":"Wipro Foundation"}`)
	doJSON(t, h, http.MethodPost, "/v1/orgs", `{"organization_name":"Tata Trust","stage":"Proposal Sent"}`)

	rr := doJSON(t, h, http.MethodGet, "/v1/pipeline", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	board, _ := body["pipeline"].([]any)
	if len(board) != len(domain.Stages()) {
		t.Fatalf("board has %d columns, want %d", len(board), len(domain.Stages()))
	}
	first, _ := board[0].(map[string]any)
	if first["stage"] != "Initial Contact" {
		t.Fatalf("first column = %v, want Initial Contact", first["stage"])
	}
	orgs, _ := first["orgs"].([]any)
	if len(orgs) != 1 {
		t.Fatalf("Initial Contact column = %v, want one org", orgs)
	}
}

func TestActivityEndpoints(t *testing.T) {
	app, _ := newTestApp(t)
	h := testRouter(app)
	doJSON(t, h, http.MethodPost, "/v1/orgs", `{"organization_name":"Wipro Foundation","actor":"gautam"}`)
	doJSON(t, h, http.MethodPatch, "/v1/orgs/Wipro%20Foundation/stage", `{"stage":"Intro Sent","actor":"gautam"}`)
	doJSON(t, h, http.MethodPatch, "/v1/orgs/Wipro%20Foundation/owner", `{"owner":"priya","actor":"gautam"}`)

	rr := doJSON(t, h, http.MethodGet, "/v1/orgs/Wipro%20Foundation/activity", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("history status = %d", rr.Code)
	}
	items, _ := decodeBody(t, rr)["items"].([]any)
	if len(items) != 3 {
		t.Fatalf("history has %d entries, want 3", len(items))
	}

	rr = doJSON(t, h, http.MethodGet, "/v1/activity?limit=2", "")
	items, _ = decodeBody(t, rr)["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("recent has %d entries, want 2", len(items))
	}
	newest, _ := items[0].(map[string]any)
	if newest["action"] != "assignment" {
		t.Fatalf("newest entry = %v, want the assignment", newest)
	}

	rr = doJSON(t, h, http.MethodGet, "/v1/activity?limit=9999", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("oversized limit status = %d, want 400", rr.Code)
	}
}

func TestDraftsCreate(t *testing.T) {
	app, _ := newTestApp(t)
	h := testRouter(app)
	doJSON(t, h, http.MethodPost, "/v1/orgs", `{"organization_name":"Wipro Foundation","contact_person":"Anita Rao"}`)

	rr := doJSON(t, h, http.MethodPost, "/v1/drafts", `{"organization":"Wipro Foundation","kind":"intro","sender":"Gautam"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	d, _ := body["draft"].(map[string]any)
	if d["provider"] != "template" {
		t.Fatalf("draft = %v", d)
	}
	if !strings.Contains(d["body"].(string), "Anita Rao") {
		t.Fatalf("draft body not personalized: %v", d["body"])
	}

	rr = doJSON(t, h, http.MethodPost, "/v1/drafts", `{"organization":"Wipro Foundation","kind":"ransom"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown kind status = %d, want 422", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/v1/drafts", `{"organization":"Infosys","kind":"intro"}`)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown org status = %d, want 404", rr.Code)
	}
}

func TestDraftKinds(t *testing.T) {
	app, _ := newTestApp(t)
	rr := doJSON(t, testRouter(app), http.MethodGet, "/v1/drafts/kinds", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	kinds, _ := decodeBody(t, rr)["kinds"].([]any)
	if len(kinds) != 6 {
		t.Fatalf("kinds = %v, want 6 entries", kinds)
	}
}
