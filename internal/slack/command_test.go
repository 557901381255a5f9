package slack

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fundcrm/internal/domain"
	"fundcrm/internal/pipeline"
)

// memStore backs a real pipeline engine with in-memory data for command tests.
type memStore struct {
	records map[string]*domain.DonorRecord
	entries []domain.ActivityRecord
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

func newTestCommander(t *testing.T, seed ...domain.DonorRecord) *Commander {
	t.Helper()
	store := &memStore{records: make(map[string]*domain.DonorRecord)}
	engine := pipeline.New(store, store, zerolog.Nop(), pipeline.Options{})
	for i := range seed {
		if _, err := engine.AddOrganization(context.Background(), &seed[i], "seed"); err != nil {
			t.Fatalf("seed %q: %v", seed[i].OrganizationName, err)
		}
	}
	return NewCommander(engine, zerolog.Nop())
}

func TestHandleEmptyShowsUsage(t *testing.T) {
	c := newTestCommander(t)
	for _, text := range []string{"", "help", "   "} {
		reply := c.Handle(context.Background(), text, "gautam")
		if !strings.Contains(reply, "/pipeline status") {
			t.Fatalf("Handle(%q) = %q, want usage text", text, reply)
		}
	}
}

func TestHandleUnknownAction(t *testing.T) {
	c := newTestCommander(t)
	reply := c.Handle(context.Background(), "launch Wipro", "gautam")
	if !strings.Contains(reply, "Unknown action") {
		t.Fatalf("Handle() = %q, want unknown action reply", reply)
	}
}

func TestHandleStatus(t *testing.T) {
	c := newTestCommander(t, domain.DonorRecord{
		OrganizationName: "Wipro Foundation",
		AssignedTo:       "priya",
		NextAction:       "Call Anita",
		NextActionDate:   "2026-09-15",
	})
	reply := c.Handle(context.Background(), "status wipro foundation", "gautam")
	for _, want := range []string{"*Wipro Foundation*", "Initial Contact", "Assigned: priya", "Call Anita", "due 2026-09-15"} {
		if !strings.Contains(reply, want) {
			t.Fatalf("status reply %q missing %q", reply, want)
		}
	}
}

func TestHandleStatusNotFound(t *testing.T) {
	c := newTestCommander(t)
	reply := c.Handle(context.Background(), "status Infosys", "gautam")
	if !strings.Contains(reply, "No organization found") {
		t.Fatalf("Handle() = %q, want not-found reply", reply)
	}
}

func TestHandleStatusAmbiguousListsCandidates(t *testing.T) {
	c := newTestCommander(t,
		domain.DonorRecord{OrganizationName: "Tata Trust"},
		domain.DonorRecord{OrganizationName: "Tata Steel Foundation"},
	)
	reply := c.Handle(context.Background(), "status Tata", "gautam")
	if !strings.Contains(reply, "matches several organizations") {
		t.Fatalf("Handle() = %q, want ambiguity reply", reply)
	}
	if !strings.Contains(reply, "Tata Trust") || !strings.Contains(reply, "Tata Steel Foundation") {
		t.Fatalf("ambiguity reply %q does not list both candidates", reply)
	}
}

func TestHandleStagePipeDelimited(t *testing.T) {
	c := newTestCommander(t, domain.DonorRecord{OrganizationName: "Wipro Foundation"})
	reply := c.Handle(context.Background(), "stage Wipro Foundation | Proposal Sent", "gautam")
	if !strings.Contains(reply, "From: Initial Contact") || !strings.Contains(reply, "To: Proposal Sent") {
		t.Fatalf("stage reply = %q", reply)
	}
}

func TestHandleStageInvalid(t *testing.T) {
	c := newTestCommander(t, domain.DonorRecord{OrganizationName: "Wipro Foundation"})
	reply := c.Handle(context.Background(), "stage Wipro Foundation | Warp Drive", "gautam")
	if !strings.Contains(reply, "Valid stages:") {
		t.Fatalf("invalid stage reply = %q, want stage listing", reply)
	}
}

func TestHandleAssign(t *testing.T) {
	c := newTestCommander(t, domain.DonorRecord{OrganizationName: "Wipro Foundation"})
	reply := c.Handle(context.Background(), "assign Wipro Foundation priya@diksha.org", "gautam")
	if !strings.Contains(reply, "Assigned *Wipro Foundation* to priya@diksha.org") {
		t.Fatalf("assign reply = %q", reply)
	}
}

func TestHandleNextInvalidDate(t *testing.T) {
	c := newTestCommander(t, domain.DonorRecord{OrganizationName: "Wipro Foundation"})
	reply := c.Handle(context.Background(), "next Wipro Foundation | Call Anita | 2025-13-45", "gautam")
	if !strings.Contains(reply, "YYYY-MM-DD") {
		t.Fatalf("invalid date reply = %q", reply)
	}
}

func TestHandleNoteAndStatusRoundTrip(t *testing.T) {
	c := newTestCommander(t, domain.DonorRecord{OrganizationName: "Wipro Foundation"})
	reply := c.Handle(context.Background(), "note Wipro Foundation | spoke with Anita", "gautam")
	if !strings.Contains(reply, "Note added") {
		t.Fatalf("note reply = %q", reply)
	}
}

func TestHandleAdd(t *testing.T) {
	c := newTestCommander(t)
	reply := c.Handle(context.Background(), "add Infosys Foundation | Intro Sent", "gautam")
	if !strings.Contains(reply, "Added *Infosys Foundation* at stage Intro Sent") {
		t.Fatalf("add reply = %q", reply)
	}
	dup := c.Handle(context.Background(), "add Infosys Foundation", "gautam")
	if !strings.Contains(dup, "already in the pipeline") {
		t.Fatalf("duplicate add reply = %q", dup)
	}
}

func TestHandleSearch(t *testing.T) {
	c := newTestCommander(t,
		domain.DonorRecord{OrganizationName: "Wipro Foundation"},
		domain.DonorRecord{OrganizationName: "Tata Trust"},
	)
	reply := c.Handle(context.Background(), "search Wipro", "gautam")
	if !strings.Contains(reply, "Found 1 match(es)") || !strings.Contains(reply, "*Wipro Foundation*") {
		t.Fatalf("search reply = %q", reply)
	}
}
