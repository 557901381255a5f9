package slack

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"fundcrm/internal/domain"
	"fundcrm/internal/pipeline"
)

const usage = "*Fundraising Pipeline Bot*\n\n" +
	"Usage:\n" +
	"• `/pipeline status <org>` - Check organization status\n" +
	"• `/pipeline search <query>` - Find organizations\n" +
	"• `/pipeline stage <org> | <stage>` - Update pipeline stage\n" +
	"• `/pipeline assign <org> <email>` - Assign to team member\n" +
	"• `/pipeline next <org> | <action> | <YYYY-MM-DD>` - Set next action\n" +
	"• `/pipeline note <org> | <text>` - Append a note\n" +
	"• `/pipeline add <org> [| <stage>]` - Add a new organization"

// Commander translates parsed slash-command text into pipeline engine calls
// and renders short mrkdwn replies. It never touches the store directly.
type Commander struct {
	engine *pipeline.Engine
	logger zerolog.Logger
}

func NewCommander(engine *pipeline.Engine, logger zerolog.Logger) *Commander {
	return &Commander{engine: engine, logger: logger}
}

// Handle runs one /pipeline invocation. actor identifies the Slack user for
// the audit trail. The returned string is the reply text; Handle never
// returns an error because every failure has a user-facing rendering.
func (c *Commander) Handle(ctx context.Context, text, actor string) string {
	text = strings.TrimSpace(text)
	if text == "" || text == "help" {
		return usage
	}

	action, rest, _ := strings.Cut(text, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(action) {
	case "status":
		return c.status(ctx, rest)
	case "search", "find":
		return c.search(ctx, rest)
	case "stage":
		return c.stage(ctx, rest, actor)
	case "assign":
		return c.assign(ctx, rest, actor)
	case "next":
		return c.next(ctx, rest, actor)
	case "note":
		return c.note(ctx, rest, actor)
	case "add":
		return c.add(ctx, rest, actor)
	}
	return "Unknown action. Use one of: status, search, stage, assign, next, note, add - or `/pipeline help`."
}

func (c *Commander) status(ctx context.Context, org string) string {
	if org == "" {
		return "Usage: `/pipeline status <organization>`"
	}
	rec, err := c.engine.GetStatus(ctx, org)
	if err != nil {
		return renderError(org, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n", rec.OrganizationName)
	fmt.Fprintf(&b, "Stage: %s", rec.CurrentStage)
	if rec.PreviousStage != "" {
		fmt.Fprintf(&b, " (was %s)", rec.PreviousStage)
	}
	b.WriteString("\n")
	if rec.AssignedTo != "" {
		fmt.Fprintf(&b, "Assigned: %s\n", rec.AssignedTo)
	}
	if rec.NextAction != "" {
		fmt.Fprintf(&b, "Next: %s", rec.NextAction)
		if rec.NextActionDate != "" {
			fmt.Fprintf(&b, " (due %s)", rec.NextActionDate)
		}
		b.WriteString("\n")
	}
	if rec.ContactPerson != "" {
		fmt.Fprintf(&b, "Contact: %s", rec.ContactPerson)
		if rec.ContactEmail != "" {
			fmt.Fprintf(&b, " <%s>", rec.ContactEmail)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Commander) search(ctx context.Context, query string) string {
	if query == "" {
		return "Usage: `/pipeline search <query>`"
	}
	matches, err := c.engine.Search(ctx, query)
	if err != nil {
		return renderError(query, err)
	}
	if len(matches) == 0 {
		return fmt.Sprintf("No organizations match %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d match(es) for %q:\n", len(matches), query)
	for _, rec := range matches {
		fmt.Fprintf(&b, "• *%s* - %s", rec.OrganizationName, rec.CurrentStage)
		if rec.AssignedTo != "" {
			fmt.Fprintf(&b, " (%s)", rec.AssignedTo)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Commander) stage(ctx context.Context, rest, actor string) string {
	org, stage, ok := splitPipe2(rest)
	if !ok {
		return "Usage: `/pipeline stage <org> | <stage>`"
	}
	rec, err := c.engine.TransitionStage(ctx, org, stage, actor)
	if warn := renderMutationError(org, rec, err); warn != "" {
		return warn
	}
	return fmt.Sprintf("Stage updated for *%s*:\n• From: %s\n• To: %s%s",
		rec.OrganizationName, rec.PreviousStage, rec.CurrentStage, partialSuffix(err))
}

func (c *Commander) assign(ctx context.Context, rest, actor string) string {
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return "Usage: `/pipeline assign <organization> <email>`"
	}
	org := strings.Join(fields[:len(fields)-1], " ")
	owner := fields[len(fields)-1]
	rec, err := c.engine.AssignOwner(ctx, org, owner, actor)
	if warn := renderMutationError(org, rec, err); warn != "" {
		return warn
	}
	return fmt.Sprintf("Assigned *%s* to %s%s", rec.OrganizationName, rec.AssignedTo, partialSuffix(err))
}

func (c *Commander) next(ctx context.Context, rest, actor string) string {
	parts := splitPipe(rest)
	if len(parts) < 3 {
		return "Usage: `/pipeline next <org> | <action> | <YYYY-MM-DD>`"
	}
	rec, err := c.engine.SetNextAction(ctx, parts[0], parts[1], parts[2], actor)
	if warn := renderMutationError(parts[0], rec, err); warn != "" {
		return warn
	}
	return fmt.Sprintf("Updated next action for *%s*:\n• Action: %s\n• Due: %s%s",
		rec.OrganizationName, rec.NextAction, rec.NextActionDate, partialSuffix(err))
}

func (c *Commander) note(ctx context.Context, rest, actor string) string {
	org, text, ok := splitPipe2(rest)
	if !ok {
		return "Usage: `/pipeline note <org> | <text>`"
	}
	rec, err := c.engine.AppendNote(ctx, org, text, actor)
	if warn := renderMutationError(org, rec, err); warn != "" {
		return warn
	}
	return fmt.Sprintf("Note added to *%s*.%s", rec.OrganizationName, partialSuffix(err))
}

func (c *Commander) add(ctx context.Context, rest, actor string) string {
	if rest == "" {
		return "Usage: `/pipeline add <org> [| <stage>]`"
	}
	parts := splitPipe(rest)
	rec := &domain.DonorRecord{OrganizationName: parts[0]}
	if len(parts) > 1 {
		rec.CurrentStage = domain.Stage(parts[1])
		if parsed, err := domain.ParseStage(parts[1]); err == nil {
			rec.CurrentStage = parsed
		} else {
			return renderError(parts[0], err)
		}
	}
	created, err := c.engine.AddOrganization(ctx, rec, actor)
	if err != nil && !errors.Is(err, domain.ErrPartialCommit) {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return fmt.Sprintf("*%s* is already in the pipeline.", parts[0])
		}
		return renderError(parts[0], err)
	}
	return fmt.Sprintf("Added *%s* at stage %s.%s", created.OrganizationName, created.CurrentStage, partialSuffix(err))
}

// renderMutationError returns a non-empty reply for hard failures. A
// partial commit is not a hard failure: the mutation took effect and only
// the audit entry is missing.
func renderMutationError(query string, rec *domain.DonorRecord, err error) string {
	if err == nil || (errors.Is(err, domain.ErrPartialCommit) && rec != nil) {
		return ""
	}
	return renderError(query, err)
}

func partialSuffix(err error) string {
	if errors.Is(err, domain.ErrPartialCommit) {
		return "\n:warning: The change was saved but could not be written to the activity log."
	}
	return ""
}

func renderError(query string, err error) string {
	var ambiguous *domain.AmbiguousMatchError
	if errors.As(err, &ambiguous) {
		var b strings.Builder
		fmt.Fprintf(&b, "%q matches several organizations - which one did you mean?\n", query)
		for _, name := range ambiguous.Candidates {
			fmt.Fprintf(&b, "• %s\n", name)
		}
		return strings.TrimRight(b.String(), "\n")
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Sprintf("No organization found for %q. Did you mean to `/pipeline search %s`?", query, query)
	case errors.Is(err, domain.ErrInvalidStage):
		stages := make([]string, 0, len(domain.Stages()))
		for _, s := range domain.Stages() {
			stages = append(stages, string(s))
		}
		return "That stage is not in the pipeline. Valid stages: " + strings.Join(stages, ", ")
	case errors.Is(err, domain.ErrInvalidDate):
		return "That date is not a valid calendar date. Use YYYY-MM-DD, e.g. 2025-01-15."
	case errors.Is(err, domain.ErrStageLocked):
		return "That record is closed and locked against further stage changes."
	case errors.Is(err, domain.ErrConcurrentModification):
		return "Someone else changed this record at the same time. Check its status and retry."
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "The pipeline store is temporarily unavailable. Please try again shortly."
	}
	return "Something went wrong handling that command. Please try again."
}

func splitPipe(s string) []string {
	raw := strings.Split(s, "|")
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func splitPipe2(s string) (string, string, bool) {
	parts := splitPipe(s)
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[0], strings.Join(parts[1:], " | "), true
}
