package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fundcrm/internal/domain"
)

// mergeRetries bounds how often a write is replayed on top of concurrent
// edits to disjoint fields before giving up.
const mergeRetries = 3

// Engine is the single authority for mutating donor records. Both the Slack
// command surface and the dashboard API go through it, so validation and
// audit logging cannot diverge between front-ends.
type Engine struct {
	donors     domain.DonorRepository
	activities domain.ActivityRepository
	logger     zerolog.Logger
	lockClosed bool
	now        func() time.Time
}

// Options tunes engine policy.
type Options struct {
	// LockClosedStages rejects transitions out of Closed Won / Closed Lost,
	// except Closed Won -> Thank You Sent. Off by default: moving records
	// backward is a legitimate correction workflow.
	LockClosedStages bool
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

func New(donors domain.DonorRepository, activities domain.ActivityRepository, logger zerolog.Logger, opts Options) *Engine {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		donors:     donors,
		activities: activities,
		logger:     logger,
		lockClosed: opts.LockClosedStages,
		now:        clock,
	}
}

// Resolve finds exactly one organization for the query. Exact
// case-insensitive name match wins outright; otherwise prefix and substring
// candidates are considered. Zero candidates is ErrNotFound, more than one
// is an AmbiguousMatchError listing them all.
func (e *Engine) Resolve(ctx context.Context, query string) (*domain.DonorRecord, error) {
	records, err := e.donors.List(ctx)
	if err != nil {
		return nil, err
	}
	var candidates []*domain.DonorRecord
	for i := range records {
		switch matchRank(query, records[i].OrganizationName) {
		case rankExact:
			return records[i].Clone(), nil
		case rankPrefix, rankSubstring:
			candidates = append(candidates, &records[i])
		}
	}
	switch len(candidates) {
	case 0:
		return nil, domain.ErrNotFound
	case 1:
		return candidates[0].Clone(), nil
	}
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.OrganizationName
	}
	sort.Strings(names)
	return nil, &domain.AmbiguousMatchError{Query: query, Candidates: names}
}

// GetStatus returns a read-only snapshot of the resolved record.
func (e *Engine) GetStatus(ctx context.Context, query string) (*domain.DonorRecord, error) {
	return e.Resolve(ctx, query)
}

// Search returns all candidates for the query ordered by relevance: exact
// match first, then prefix matches, then substring matches, names sorted
// within each rank.
func (e *Engine) Search(ctx context.Context, query string) ([]domain.DonorRecord, error) {
	records, err := e.donors.List(ctx)
	if err != nil {
		return nil, err
	}
	type ranked struct {
		rec  domain.DonorRecord
		rank int
	}
	var matches []ranked
	for _, rec := range records {
		if rank := matchRank(query, rec.OrganizationName); rank > rankNone {
			matches = append(matches, ranked{rec: rec, rank: rank})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank > matches[j].rank
		}
		return matches[i].rec.OrganizationName < matches[j].rec.OrganizationName
	})
	out := make([]domain.DonorRecord, len(matches))
	for i, m := range matches {
		out[i] = m.rec
	}
	return out, nil
}

// List returns the whole pipeline sorted by organization name.
func (e *Engine) List(ctx context.Context) ([]domain.DonorRecord, error) {
	records, err := e.donors.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return foldName(records[i].OrganizationName) < foldName(records[j].OrganizationName)
	})
	return records, nil
}

// GroupedByStage returns the pipeline keyed by current stage, for the
// dashboard board view.
func (e *Engine) GroupedByStage(ctx context.Context) (map[domain.Stage][]domain.DonorRecord, error) {
	records, err := e.List(ctx)
	if err != nil {
		return nil, err
	}
	grouped := make(map[domain.Stage][]domain.DonorRecord)
	for _, rec := range records {
		grouped[rec.CurrentStage] = append(grouped[rec.CurrentStage], rec)
	}
	return grouped, nil
}

// History lists the audit trail for one organization, oldest first.
func (e *Engine) History(ctx context.Context, query string) ([]domain.ActivityRecord, error) {
	rec, err := e.Resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	return e.activities.ListForOrganization(ctx, rec.Key())
}

// Recent lists the newest audit entries across the whole pipeline.
func (e *Engine) Recent(ctx context.Context, limit int) ([]domain.ActivityRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return e.activities.ListRecent(ctx, limit)
}

// AddOrganization creates a new donor record. Records are never deleted;
// Closed Lost is the logical end of life.
func (e *Engine) AddOrganization(ctx context.Context, rec *domain.DonorRecord, actor string) (*domain.DonorRecord, error) {
	if strings.TrimSpace(rec.OrganizationName) == "" {
		return nil, fmt.Errorf("%w: organization name is required", domain.ErrNotFound)
	}
	created := rec.Clone()
	created.OrganizationName = strings.TrimSpace(created.OrganizationName)
	if created.CurrentStage == "" {
		created.CurrentStage = domain.StageInitialContact
	}
	if !created.CurrentStage.Valid() {
		return nil, domain.ErrInvalidStage
	}
	created.LastUpdated = e.tick(time.Time{})
	if err := e.donors.Insert(ctx, created); err != nil {
		return nil, err
	}
	entry := &domain.ActivityRecord{
		RecordKey: created.Key(),
		Actor:     actor,
		Action:    domain.ActionCreate,
		Before:    map[domain.Field]string{},
		After: map[domain.Field]string{
			domain.FieldCurrentStage: string(created.CurrentStage),
		},
		Timestamp: created.LastUpdated,
	}
	if err := e.activities.Append(ctx, entry); err != nil {
		e.logger.Error().Err(err).Str("org", created.OrganizationName).Msg("activity append failed after create")
		return created, domain.ErrPartialCommit
	}
	e.logger.Info().Str("org", created.OrganizationName).Str("actor", actor).Msg("organization added")
	return created, nil
}

// TransitionStage moves the record to newStage, recording the prior stage in
// previous_stage. Any-to-any moves are allowed; moves against the expected
// progression are flagged out-of-order in the audit entry.
func (e *Engine) TransitionStage(ctx context.Context, org, newStage, actor string) (*domain.DonorRecord, error) {
	stage, err := domain.ParseStage(newStage)
	if err != nil {
		return nil, err
	}
	return e.mutate(ctx, org, actor, domain.ActionStageChange, func(rec *domain.DonorRecord) (domain.FieldChanges, error) {
		if e.lockClosed && rec.CurrentStage.Closing() {
			if !(rec.CurrentStage == domain.StageClosedWon && stage == domain.StageThankYouSent) {
				return nil, domain.ErrStageLocked
			}
		}
		return domain.FieldChanges{
			domain.FieldCurrentStage:  string(stage),
			domain.FieldPreviousStage: string(rec.CurrentStage),
		}, nil
	})
}

// AssignOwner sets assigned_to, last writer wins.
func (e *Engine) AssignOwner(ctx context.Context, org, owner, actor string) (*domain.DonorRecord, error) {
	return e.mutate(ctx, org, actor, domain.ActionAssignment, func(rec *domain.DonorRecord) (domain.FieldChanges, error) {
		return domain.FieldChanges{domain.FieldAssignedTo: strings.TrimSpace(owner)}, nil
	})
}

// SetNextAction overwrites the next action and its due date. The date must
// be a real calendar date in YYYY-MM-DD form.
func (e *Engine) SetNextAction(ctx context.Context, org, action, dueDate, actor string) (*domain.DonorRecord, error) {
	due := strings.TrimSpace(dueDate)
	if _, err := time.Parse("2006-01-02", due); err != nil {
		return nil, domain.ErrInvalidDate
	}
	return e.mutate(ctx, org, actor, domain.ActionNextActionUpdate, func(rec *domain.DonorRecord) (domain.FieldChanges, error) {
		return domain.FieldChanges{
			domain.FieldNextAction:     strings.TrimSpace(action),
			domain.FieldNextActionDate: due,
		}, nil
	})
}

// UpdateNotes replaces the notes field. Front-ends wanting append semantics
// use AppendNote instead.
func (e *Engine) UpdateNotes(ctx context.Context, org, notes, actor string) (*domain.DonorRecord, error) {
	return e.mutate(ctx, org, actor, domain.ActionNoteUpdate, func(rec *domain.DonorRecord) (domain.FieldChanges, error) {
		return domain.FieldChanges{domain.FieldNotes: notes}, nil
	})
}

// AppendNote reads the current notes and concatenates the new line.
func (e *Engine) AppendNote(ctx context.Context, org, note, actor string) (*domain.DonorRecord, error) {
	note = strings.TrimSpace(note)
	return e.mutate(ctx, org, actor, domain.ActionNoteUpdate, func(rec *domain.DonorRecord) (domain.FieldChanges, error) {
		combined := note
		if rec.Notes != "" {
			combined = rec.Notes + "\n" + note
		}
		return domain.FieldChanges{domain.FieldNotes: combined}, nil
	})
}

// ContactUpdate carries the optional contact fields; nil leaves a field as is.
type ContactUpdate struct {
	Person *string
	Email  *string
	Role   *string
}

// UpdateContact sets the contact person, email and role.
func (e *Engine) UpdateContact(ctx context.Context, org string, update ContactUpdate, actor string) (*domain.DonorRecord, error) {
	return e.mutate(ctx, org, actor, domain.ActionContactUpdate, func(rec *domain.DonorRecord) (domain.FieldChanges, error) {
		changes := domain.FieldChanges{}
		if update.Person != nil {
			changes[domain.FieldContactPerson] = strings.TrimSpace(*update.Person)
		}
		if update.Email != nil {
			changes[domain.FieldContactEmail] = strings.TrimSpace(*update.Email)
		}
		if update.Role != nil {
			changes[domain.FieldContactRole] = strings.TrimSpace(*update.Role)
		}
		if len(changes) == 0 {
			return nil, fmt.Errorf("contact update carries no fields")
		}
		return changes, nil
	})
}

// mutate is the shared write path: resolve, validate, optimistic-token
// update with field-level merge, audit append. A mutation that would not
// change any field is a no-op and produces no audit entry.
func (e *Engine) mutate(ctx context.Context, org, actor string, action domain.ActionKind, build func(rec *domain.DonorRecord) (domain.FieldChanges, error)) (*domain.DonorRecord, error) {
	rec, err := e.Resolve(ctx, org)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		changes, err := build(rec)
		if err != nil {
			return nil, err
		}
		if noop(rec, changes) {
			return rec, nil
		}

		before := make(map[domain.Field]string, len(changes))
		after := make(map[domain.Field]string, len(changes))
		for f, v := range changes {
			before[f] = rec.Value(f)
			after[f] = v
		}

		newToken := e.tick(rec.LastUpdated)
		token, err := e.donors.Update(ctx, rec.Key(), changes, rec.LastUpdated, newToken)
		if errors.Is(err, domain.ErrConcurrentModification) {
			if attempt >= mergeRetries {
				return nil, domain.ErrConcurrentModification
			}
			merged, mergeErr := e.rebase(ctx, rec, changes)
			if mergeErr != nil {
				return nil, mergeErr
			}
			rec = merged
			continue
		}
		if err != nil {
			return nil, err
		}

		updated := rec.Clone()
		updated.Apply(changes)
		updated.LastUpdated = token

		entry := &domain.ActivityRecord{
			RecordKey: updated.Key(),
			Actor:     actor,
			Action:    action,
			Before:    before,
			After:     after,
			Timestamp: token,
		}
		if action == domain.ActionStageChange {
			entry.OutOfOrder = !domain.Stage(after[domain.FieldCurrentStage]).ForwardOf(domain.Stage(before[domain.FieldCurrentStage]))
		}
		if err := e.activities.Append(ctx, entry); err != nil {
			// The record write already committed; surface the failed audit
			// entry instead of rolling back or dropping the result.
			e.logger.Error().Err(err).Str("org", updated.OrganizationName).Str("action", string(action)).Msg("activity append failed")
			return updated, domain.ErrPartialCommit
		}
		e.logger.Info().Str("org", updated.OrganizationName).Str("actor", actor).Str("action", string(action)).Msg("record updated")
		return updated, nil
	}
}

// rebase re-reads the record after a token mismatch and decides whether the
// concurrent edit touched disjoint fields. Disjoint edits merge: the write
// is replayed on the fresh snapshot. Overlapping edits surface
// ErrConcurrentModification for the caller to re-fetch and retry.
func (e *Engine) rebase(ctx context.Context, stale *domain.DonorRecord, changes domain.FieldChanges) (*domain.DonorRecord, error) {
	current, err := e.donors.GetByKey(ctx, stale.Key())
	if err != nil {
		return nil, err
	}
	for f := range changes {
		if current.Value(f) != stale.Value(f) {
			return nil, domain.ErrConcurrentModification
		}
	}
	return current, nil
}

func noop(rec *domain.DonorRecord, changes domain.FieldChanges) bool {
	for f, v := range changes {
		if rec.Value(f) != v {
			return false
		}
	}
	return true
}

// tick produces the next concurrency token, strictly after the previous one
// so a record's token and audit timestamps stay monotonic even within one
// clock tick.
func (e *Engine) tick(prev time.Time) time.Time {
	now := e.now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}
