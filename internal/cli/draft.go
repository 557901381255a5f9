package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// DraftCmd returns the draft command
func DraftCmd() *cobra.Command {
	var (
		project     string
		meetingDate string
	)

	cmd := &cobra.Command{
		Use:   "draft <organization> <kind>",
		Short: "Generate an email draft for an organization",
		Long: `Generate an email draft for an organization. Kinds:
intro, followup, concept, meetingrequest, proposalcover, thankyou.

The draft is printed to stdout and never sent anywhere.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := apiClient().CreateDraft(cmd.Context(), args[0], args[1], project, meetingDate)
			if err != nil {
				return err
			}
			fmt.Printf("Subject: %s\n\n%s\n", color.New(color.Bold).Sprint(draft.Subject), draft.Body)
			if reason := draft.Metadata["fallback_reason"]; reason != "" {
				fmt.Printf("\n%s generated from template (%s)\n",
					color.New(color.FgYellow).Sprint("note:"), reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project name to mention in the draft")
	cmd.Flags().StringVar(&meetingDate, "meeting-date", "", "Meeting date for meeting-request drafts")

	return cmd
}
