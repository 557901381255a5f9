package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"fundcrm/internal/domain"
	"fundcrm/internal/infra"
)

// donorColumns maps field names onto their columns. Doubles as the
// whitelist for dynamically built updates.
var donorColumns = map[domain.Field]string{
	domain.FieldContactPerson:   "contact_person",
	domain.FieldContactEmail:    "contact_email",
	domain.FieldContactRole:     "contact_role",
	domain.FieldCurrentStage:    "current_stage",
	domain.FieldPreviousStage:   "previous_stage",
	domain.FieldAssignedTo:      "assigned_to",
	domain.FieldNextAction:      "next_action",
	domain.FieldNextActionDate:  "next_action_date",
	domain.FieldLastContactDate: "last_contact_date",
	domain.FieldSectorTags:      "sector_tags",
	domain.FieldGeography:       "geography",
	domain.FieldNotes:           "notes",
	domain.FieldProbability:     "probability",
}

const donorSelectList = `key, organization_name, contact_person, contact_email, contact_role,
current_stage, previous_stage, assigned_to, next_action, next_action_date,
last_contact_date, sector_tags, geography, notes, probability, last_updated`

// DonorRepositoryPG implements the record store port on PostgreSQL. It is a
// narrow persistence adapter: the token check lives in one conditional
// UPDATE so a write either fully commits or not at all.
type DonorRepositoryPG struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewDonorRepository creates the donor store adapter. timeout bounds every
// store call; an expired deadline surfaces as ErrStoreUnavailable.
func NewDonorRepository(pool *pgxpool.Pool, timeout time.Duration) *DonorRepositoryPG {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &DonorRepositoryPG{pool: pool, timeout: timeout}
}

func (r *DonorRepositoryPG) GetByKey(ctx context.Context, key string) (*domain.DonorRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
SELECT `+donorSelectList+`
FROM donors
WHERE key = $1;
`, domain.CanonicalKey(key))
	rec, err := scanDonor(row)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, storeErr("get donor", err)
	}
	return rec, nil
}

func (r *DonorRepositoryPG) List(ctx context.Context) ([]domain.DonorRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
SELECT `+donorSelectList+`
FROM donors
ORDER BY organization_name;
`)
	if err != nil {
		return nil, storeErr("list donors", err)
	}
	defer rows.Close()

	var items []domain.DonorRecord
	for rows.Next() {
		rec, err := scanDonor(rows)
		if err != nil {
			return nil, storeErr("scan donor", err)
		}
		items = append(items, *rec)
	}
	if err := rows.Err(); err != nil {
		// Never hand back a partial list.
		return nil, storeErr("list donors", err)
	}
	return items, nil
}

func (r *DonorRepositoryPG) Insert(ctx context.Context, rec *domain.DonorRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
INSERT INTO donors (key, organization_name, contact_person, contact_email, contact_role,
	current_stage, previous_stage, assigned_to, next_action, next_action_date,
	last_contact_date, sector_tags, geography, notes, probability, last_updated)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (key) DO NOTHING;
`, rec.Key(), rec.OrganizationName, rec.ContactPerson, rec.ContactEmail, rec.ContactRole,
		string(rec.CurrentStage), string(rec.PreviousStage), rec.AssignedTo, rec.NextAction, rec.NextActionDate,
		rec.LastContactDate, rec.SectorTags, rec.Geography, rec.Notes, rec.Probability, rec.LastUpdated)
	if err != nil {
		return storeErr("insert donor", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *DonorRepositoryPG) Update(ctx context.Context, key string, changes domain.FieldChanges, expectedToken, newToken time.Time) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	fields := make([]domain.Field, 0, len(changes))
	for f := range changes {
		if _, ok := donorColumns[f]; !ok {
			return time.Time{}, fmt.Errorf("unknown donor field %q", f)
		}
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	var set strings.Builder
	args := []any{domain.CanonicalKey(key), expectedToken, newToken}
	for _, f := range fields {
		args = append(args, changeArg(f, changes[f]))
		fmt.Fprintf(&set, ", %s = $%d", donorColumns[f], len(args))
	}

	tag, err := r.pool.Exec(ctx, `
UPDATE donors
SET last_updated = $3`+set.String()+`
WHERE key = $1 AND last_updated = $2;
`, args...)
	if err != nil {
		return time.Time{}, storeErr("update donor", err)
	}
	if tag.RowsAffected() == 1 {
		return newToken, nil
	}

	// No row matched: either the record is gone or the token moved.
	if _, err := r.GetByKey(ctx, key); err != nil {
		return time.Time{}, err
	}
	return time.Time{}, domain.ErrConcurrentModification
}

func changeArg(f domain.Field, v string) any {
	if f == domain.FieldProbability && v == "" {
		return nil
	}
	return v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDonor(row rowScanner) (*domain.DonorRecord, error) {
	var rec domain.DonorRecord
	var key, stage, prevStage string
	if err := row.Scan(&key, &rec.OrganizationName, &rec.ContactPerson, &rec.ContactEmail, &rec.ContactRole,
		&stage, &prevStage, &rec.AssignedTo, &rec.NextAction, &rec.NextActionDate,
		&rec.LastContactDate, &rec.SectorTags, &rec.Geography, &rec.Notes, &rec.Probability, &rec.LastUpdated); err != nil {
		return nil, err
	}
	rec.CurrentStage = domain.Stage(stage)
	rec.PreviousStage = domain.Stage(prevStage)
	rec.LastUpdated = rec.LastUpdated.UTC()
	return &rec, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}
