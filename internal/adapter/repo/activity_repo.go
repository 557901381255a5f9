package repo

import (
	"context"
	"encoding/json"
	"time"

	"fundcrm/internal/domain"
	"fundcrm/internal/infra"
	"fundcrm/internal/sqlinline"
)

// ActivityRepositoryPG is the append-only audit ledger on PostgreSQL.
// There is deliberately no update or delete path.
type ActivityRepositoryPG struct {
	sql     infra.SQLExecutor
	timeout time.Duration
}

func NewActivityRepository(sql infra.SQLExecutor, timeout time.Duration) *ActivityRepositoryPG {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ActivityRepositoryPG{sql: sql, timeout: timeout}
}

func (r *ActivityRepositoryPG) Append(ctx context.Context, entry *domain.ActivityRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	before, err := json.Marshal(fieldMap(entry.Before))
	if err != nil {
		return err
	}
	after, err := json.Marshal(fieldMap(entry.After))
	if err != nil {
		return err
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertActivity,
		entry.RecordKey, entry.Actor, string(entry.Action), before, after, entry.OutOfOrder, entry.Timestamp)
	if err := row.Scan(&entry.ID); err != nil {
		return storeErr("append activity", err)
	}
	return nil
}

func (r *ActivityRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.ActivityRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.sql.Query(ctx, sqlinline.QListRecentActivities, limit)
	if err != nil {
		return nil, storeErr("list recent activities", err)
	}
	defer rows.Close()
	return collectActivities(rows)
}

func (r *ActivityRepositoryPG) ListForOrganization(ctx context.Context, key string) ([]domain.ActivityRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.sql.Query(ctx, sqlinline.QListActivitiesForOrganization, domain.CanonicalKey(key))
	if err != nil {
		return nil, storeErr("list activities", err)
	}
	defer rows.Close()
	return collectActivities(rows)
}

type activityRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectActivities(rows activityRows) ([]domain.ActivityRecord, error) {
	var items []domain.ActivityRecord
	for rows.Next() {
		var entry domain.ActivityRecord
		var action string
		var before, after []byte
		if err := rows.Scan(&entry.ID, &entry.RecordKey, &entry.Actor, &action, &before, &after, &entry.OutOfOrder, &entry.Timestamp); err != nil {
			return nil, storeErr("scan activity", err)
		}
		entry.Action = domain.ActionKind(action)
		entry.Timestamp = entry.Timestamp.UTC()
		var decodeErr error
		if entry.Before, decodeErr = decodeFields(before); decodeErr != nil {
			return nil, decodeErr
		}
		if entry.After, decodeErr = decodeFields(after); decodeErr != nil {
			return nil, decodeErr
		}
		items = append(items, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate activities", err)
	}
	return items, nil
}

func fieldMap(m map[domain.Field]string) map[string]string {
	out := make(map[string]string, len(m))
	for f, v := range m {
		out[string(f)] = v
	}
	return out
}

func decodeFields(raw []byte) (map[domain.Field]string, error) {
	if len(raw) == 0 {
		return map[domain.Field]string{}, nil
	}
	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, err
	}
	out := make(map[domain.Field]string, len(flat))
	for k, v := range flat {
		out[domain.Field(k)] = v
	}
	return out, nil
}
