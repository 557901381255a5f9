package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fundcrm/internal/domain"
)

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <organization>",
		Short: "Show the pipeline record for one organization",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org := strings.Join(args, " ")
			rec, err := apiClient().Get(cmd.Context(), org)
			if err != nil {
				return err
			}
			printRecord(rec)
			return nil
		},
	}
}

func printRecord(rec *Record) {
	fmt.Printf("%s\n", color.New(color.Bold).Sprint(rec.OrganizationName))
	fmt.Printf("  Stage:       %s", stageColor(rec.CurrentStage).Sprint(rec.CurrentStage))
	if rec.PreviousStage != "" {
		fmt.Printf("  (was %s)", rec.PreviousStage)
	}
	fmt.Println()
	if rec.ContactPerson != "" || rec.ContactEmail != "" {
		fmt.Printf("  Contact:     %s %s\n", rec.ContactPerson, rec.ContactEmail)
	}
	if rec.AssignedTo != "" {
		fmt.Printf("  Assigned to: %s\n", rec.AssignedTo)
	}
	if rec.NextAction != "" {
		fmt.Printf("  Next action: %s", rec.NextAction)
		if rec.NextActionDate != "" {
			fmt.Printf(" (%s)", rec.NextActionDate)
		}
		fmt.Println()
	}
	if rec.SectorTags != "" {
		fmt.Printf("  Sectors:     %s\n", rec.SectorTags)
	}
	if rec.Geography != "" {
		fmt.Printf("  Geography:   %s\n", rec.Geography)
	}
	if rec.Notes != "" {
		fmt.Println("  Notes:")
		for _, line := range strings.Split(rec.Notes, "\n") {
			fmt.Printf("    %s\n", line)
		}
	}
}

func stageColor(stage string) *color.Color {
	switch domain.Stage(stage) {
	case domain.StageClosedWon, domain.StageThankYouSent:
		return color.New(color.FgGreen)
	case domain.StageClosedLost:
		return color.New(color.FgRed)
	case domain.StageMeetingScheduled, domain.StageProposalSent:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}
