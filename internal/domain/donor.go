package domain

import (
	"strconv"
	"strings"
	"time"
)

// DonorRecord is one tracked organization's pipeline state. The organization
// name is the unique key, matched case-insensitively on lookup. LastUpdated
// doubles as the optimistic concurrency token.
type DonorRecord struct {
	OrganizationName string
	ContactPerson    string
	ContactEmail     string
	ContactRole      string
	CurrentStage     Stage
	PreviousStage    Stage
	AssignedTo       string
	NextAction       string
	NextActionDate   string
	LastContactDate  string
	SectorTags       string
	Geography        string
	Notes            string
	Probability      *int
	LastUpdated      time.Time
}

// Key returns the canonical lookup key for the record.
func (r *DonorRecord) Key() string {
	return CanonicalKey(r.OrganizationName)
}

// CanonicalKey normalizes an organization name for case-insensitive lookup.
func CanonicalKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Field names a single mutable column of a donor record.
type Field string

const (
	FieldContactPerson   Field = "contact_person"
	FieldContactEmail    Field = "contact_email"
	FieldContactRole     Field = "contact_role"
	FieldCurrentStage    Field = "current_stage"
	FieldPreviousStage   Field = "previous_stage"
	FieldAssignedTo      Field = "assigned_to"
	FieldNextAction      Field = "next_action"
	FieldNextActionDate  Field = "next_action_date"
	FieldLastContactDate Field = "last_contact_date"
	FieldSectorTags      Field = "sector_tags"
	FieldGeography       Field = "geography"
	FieldNotes           Field = "notes"
	FieldProbability     Field = "probability"
)

// FieldChanges is a sparse field-level update. Keeping changes field-keyed is
// what allows concurrent edits to disjoint fields to merge instead of clobber.
type FieldChanges map[Field]string

// Value reads the named field as its string representation.
func (r *DonorRecord) Value(f Field) string {
	switch f {
	case FieldContactPerson:
		return r.ContactPerson
	case FieldContactEmail:
		return r.ContactEmail
	case FieldContactRole:
		return r.ContactRole
	case FieldCurrentStage:
		return string(r.CurrentStage)
	case FieldPreviousStage:
		return string(r.PreviousStage)
	case FieldAssignedTo:
		return r.AssignedTo
	case FieldNextAction:
		return r.NextAction
	case FieldNextActionDate:
		return r.NextActionDate
	case FieldLastContactDate:
		return r.LastContactDate
	case FieldSectorTags:
		return r.SectorTags
	case FieldGeography:
		return r.Geography
	case FieldNotes:
		return r.Notes
	case FieldProbability:
		if r.Probability == nil {
			return ""
		}
		return strconv.Itoa(*r.Probability)
	}
	return ""
}

// Apply writes the changes onto the record in place. Unknown fields are
// ignored; the store adapter validates field names before persisting.
func (r *DonorRecord) Apply(changes FieldChanges) {
	for f, v := range changes {
		switch f {
		case FieldContactPerson:
			r.ContactPerson = v
		case FieldContactEmail:
			r.ContactEmail = v
		case FieldContactRole:
			r.ContactRole = v
		case FieldCurrentStage:
			r.CurrentStage = Stage(v)
		case FieldPreviousStage:
			r.PreviousStage = Stage(v)
		case FieldAssignedTo:
			r.AssignedTo = v
		case FieldNextAction:
			r.NextAction = v
		case FieldNextActionDate:
			r.NextActionDate = v
		case FieldLastContactDate:
			r.LastContactDate = v
		case FieldSectorTags:
			r.SectorTags = v
		case FieldGeography:
			r.Geography = v
		case FieldNotes:
			r.Notes = v
		case FieldProbability:
			if v == "" {
				r.Probability = nil
			} else if p, err := strconv.Atoi(v); err == nil {
				r.Probability = &p
			}
		}
	}
}

// Clone returns a deep copy of the record.
func (r *DonorRecord) Clone() *DonorRecord {
	out := *r
	if r.Probability != nil {
		p := *r.Probability
		out.Probability = &p
	}
	return &out
}
