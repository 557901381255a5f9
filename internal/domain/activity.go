package domain

import "time"

// ActionKind classifies a pipeline mutation for the audit trail.
type ActionKind string

const (
	ActionCreate           ActionKind = "create"
	ActionStageChange      ActionKind = "stage_change"
	ActionAssignment       ActionKind = "assignment"
	ActionNoteUpdate       ActionKind = "note_update"
	ActionNextActionUpdate ActionKind = "next_action_update"
	ActionContactUpdate    ActionKind = "contact_update"
)

// ActivityRecord is one immutable audit entry. Entries are never updated or
// deleted; the serial ID breaks ties between entries sharing a timestamp.
type ActivityRecord struct {
	ID         int64
	RecordKey  string
	Actor      string
	Action     ActionKind
	Before     map[Field]string
	After      map[Field]string
	OutOfOrder bool
	Timestamp  time.Time
}
