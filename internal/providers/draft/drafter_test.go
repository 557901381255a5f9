package draft

import (
	"context"
	"strings"
	"testing"

	"fundcrm/internal/domain"
)

func testRecord() domain.DonorRecord {
	return domain.DonorRecord{
		OrganizationName: "Wipro Foundation",
		ContactPerson:    "Anita Rao",
		CurrentStage:     domain.StageProposalSent,
		SectorTags:       "education, digital literacy",
		Geography:        "Karnataka",
	}
}

func TestTemplateDrafterFillsPlaceholders(t *testing.T) {
	d := NewTemplateDrafter("Diksha Foundation")
	out, err := d.Draft(context.Background(), Request{
		Kind:   "intro",
		Record: testRecord(),
		Sender: "Gautam",
	})
	if err != nil {
		t.Fatalf("Draft() error: %v", err)
	}
	if out.Provider != "template" {
		t.Fatalf("Provider = %q, want template", out.Provider)
	}
	for _, want := range []string{"Anita Rao", "Wipro Foundation", "Diksha Foundation", "Karnataka", "education, digital literacy", "Gautam"} {
		if !strings.Contains(out.Body, want) {
			t.Fatalf("Body missing %q:\n%s", want, out.Body)
		}
	}
	if strings.Contains(out.Subject+out.Body, "{{") {
		t.Fatalf("unreplaced placeholder left in draft:\n%s\n%s", out.Subject, out.Body)
	}
}

func TestTemplateDrafterDefaultsMissingFields(t *testing.T) {
	d := NewTemplateDrafter("")
	out, err := d.Draft(context.Background(), Request{
		Kind:   "intro",
		Record: domain.DonorRecord{OrganizationName: "acme giving"},
	})
	if err != nil {
		t.Fatalf("Draft() error: %v", err)
	}
	// No contact person on file: the greeting falls back to a titled team name.
	if !strings.Contains(out.Body, "Acme Giving Team") {
		t.Fatalf("Body missing fallback contact:\n%s", out.Body)
	}
	if !strings.Contains(out.Body, "our foundation") {
		t.Fatalf("Body missing default sender org:\n%s", out.Body)
	}
}

func TestTemplateDrafterMeetingRequestUsesDate(t *testing.T) {
	d := NewTemplateDrafter("Diksha Foundation")
	out, err := d.Draft(context.Background(), Request{
		Kind:        "MeetingRequest",
		Record:      testRecord(),
		MeetingDate: "2026-09-20",
	})
	if err != nil {
		t.Fatalf("Draft() error: %v", err)
	}
	if !strings.Contains(out.Body, "2026-09-20") {
		t.Fatalf("Body missing meeting date:\n%s", out.Body)
	}
}

func TestTemplateDrafterRejectsUnknownKind(t *testing.T) {
	d := NewTemplateDrafter("Diksha Foundation")
	if _, err := d.Draft(context.Background(), Request{Kind: "ransom", Record: testRecord()}); err == nil {
		t.Fatalf("Draft() expected error for unknown kind")
	}
}

func TestKindsCoverAllTemplates(t *testing.T) {
	kinds := Kinds()
	if len(kinds) != len(baseTemplates) {
		t.Fatalf("Kinds() returned %d kinds, templates has %d", len(kinds), len(baseTemplates))
	}
	for _, k := range kinds {
		if _, ok := baseTemplates[k]; !ok {
			t.Fatalf("kind %q has no template", k)
		}
	}
}
