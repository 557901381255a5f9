package draft

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fundcrm/internal/domain"
)

const (
	templateProviderName = "template"
	deepseekProviderName = "deepseek"
)

// Request carries a resolved donor record plus the per-draft details. The
// drafting layer only reads the record; it never writes back to the pipeline.
type Request struct {
	Kind        string
	Record      domain.DonorRecord
	ProjectName string
	MeetingDate string
	Sender      string
}

// Draft is a generated email, ready for human review. Drafts are never sent
// automatically.
type Draft struct {
	Subject  string            `json:"subject"`
	Body     string            `json:"body"`
	Provider string            `json:"provider"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Drafter interface {
	Draft(ctx context.Context, req Request) (*Draft, error)
}

// kindDescriptions doubles as the set of valid draft kinds.
var kindDescriptions = map[string]string{
	"intro":          "First introduction to a new donor",
	"followup":       "Follow-up on an earlier conversation",
	"concept":        "Concise concept pitch (2-3 paragraphs)",
	"meetingrequest": "Request for a meeting on a given date",
	"proposalcover":  "Cover note accompanying a full proposal",
	"thankyou":       "Thank-you after a closed deal or meeting",
}

// Kinds lists the supported draft kinds with their descriptions, sorted.
func Kinds() []string {
	out := make([]string, 0, len(kindDescriptions))
	for k := range kindDescriptions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func validKind(kind string) bool {
	_, ok := kindDescriptions[strings.ToLower(strings.TrimSpace(kind))]
	return ok
}

type baseTemplate struct {
	subject string
	body    string
}

var baseTemplates = map[string]baseTemplate{
	"intro": {
		subject: "Introducing {{sender_org}} - Partnering for Impact",
		body: `Dear {{contact_person}},

I hope this message finds you well. I am writing to introduce {{sender_org}} and the work we do in {{geography}}.

Given {{organization_name}}'s commitment to {{sector_tags}}, we believe there is a strong alignment between our missions. We would love the opportunity to share more about our programs and explore how we might work together.

Would you be open to a short conversation in the coming weeks?

Warm regards,
{{sender}}`,
	},
	"followup": {
		subject: "Following Up - {{sender_org}} and {{organization_name}}",
		body: `Dear {{contact_person}},

I wanted to follow up on our earlier exchange about a possible partnership between {{organization_name}} and {{sender_org}}.

We remain excited about the alignment with your work in {{sector_tags}} and would welcome any questions you may have.

Looking forward to hearing from you.

Best regards,
{{sender}}`,
	},
	"concept": {
		subject: "Concept Note: {{project_name}}",
		body: `Dear {{contact_person}},

I am sharing a short concept for {{project_name}}, an initiative we believe fits well with {{organization_name}}'s priorities in {{sector_tags}}.

The program focuses on measurable outcomes in {{geography}}, building on our existing community partnerships. A concise concept note is attached; we would value your feedback.

Thank you for your consideration.

Sincerely,
{{sender}}`,
	},
	"meetingrequest": {
		subject: "Meeting Request - {{sender_org}} x {{organization_name}}",
		body: `Dear {{contact_person}},

Would you be available for a short meeting on {{meeting_date}}? We would like to present our current work and discuss how {{organization_name}} and {{sender_org}} could collaborate.

Happy to adjust to a time that suits you better.

Best regards,
{{sender}}`,
	},
	"proposalcover": {
		subject: "Proposal: {{project_name}}",
		body: `Dear {{contact_person}},

Please find enclosed our proposal for {{project_name}}. The document outlines objectives, budget, and the outcomes we commit to deliver.

We are grateful for {{organization_name}}'s consideration and would be glad to walk your team through the details.

Sincerely,
{{sender}}`,
	},
	"thankyou": {
		subject: "Thank You from {{sender_org}}",
		body: `Dear {{contact_person}},

Thank you for your time and for {{organization_name}}'s support. Partnerships like yours make our work in {{geography}} possible.

We will keep you updated on progress and milestones.

With gratitude,
{{sender}}`,
	},
}

// TemplateDrafter fills the base templates from the donor record. It is the
// always-available fallback behind the LLM drafter.
type TemplateDrafter struct {
	SenderOrg string
}

func NewTemplateDrafter(senderOrg string) *TemplateDrafter {
	if senderOrg == "" {
		senderOrg = "our foundation"
	}
	return &TemplateDrafter{SenderOrg: senderOrg}
}

func (t *TemplateDrafter) Draft(ctx context.Context, req Request) (*Draft, error) {
	kind := strings.ToLower(strings.TrimSpace(req.Kind))
	tmpl, ok := baseTemplates[kind]
	if !ok {
		return nil, fmt.Errorf("unknown draft kind %q (supported: %s)", req.Kind, strings.Join(Kinds(), ", "))
	}
	repl := t.replacer(req)
	return &Draft{
		Subject:  repl.Replace(tmpl.subject),
		Body:     repl.Replace(tmpl.body),
		Provider: templateProviderName,
		Metadata: map[string]string{"kind": kind},
	}, nil
}

func (t *TemplateDrafter) replacer(req Request) *strings.Replacer {
	titler := cases.Title(language.English)
	contact := strings.TrimSpace(req.Record.ContactPerson)
	if contact == "" {
		contact = titler.String(req.Record.OrganizationName) + " Team"
	}
	return strings.NewReplacer(
		"{{organization_name}}", req.Record.OrganizationName,
		"{{contact_person}}", contact,
		"{{sector_tags}}", coalesce(req.Record.SectorTags, "social development"),
		"{{geography}}", coalesce(req.Record.Geography, "the communities we serve"),
		"{{project_name}}", coalesce(req.ProjectName, "our program"),
		"{{meeting_date}}", coalesce(req.MeetingDate, "a convenient date"),
		"{{sender}}", coalesce(req.Sender, "The Partnerships Team"),
		"{{sender_org}}", t.SenderOrg,
	)
}

func coalesce(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

var _ Drafter = (*TemplateDrafter)(nil)
