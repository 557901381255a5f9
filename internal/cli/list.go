package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fundcrm/internal/domain"
)

// ListCmd returns the list command
func ListCmd() *cobra.Command {
	var byStage bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all organizations in the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := apiClient().List(cmd.Context(), "")
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("Pipeline is empty.")
				return nil
			}
			if byStage {
				printBoard(records)
			} else {
				printTable(records)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&byStage, "by-stage", false, "Group the output by pipeline stage")

	return cmd
}

// SearchCmd returns the search command
func SearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Find organizations by partial name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			records, err := apiClient().List(cmd.Context(), query)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Printf("No organizations match %q.\n", query)
				return nil
			}
			printTable(records)
			return nil
		},
	}
}

func printTable(records []Record) {
	nameWidth := len("ORGANIZATION")
	for _, rec := range records {
		if len(rec.OrganizationName) > nameWidth {
			nameWidth = len(rec.OrganizationName)
		}
	}
	fmt.Printf("%-*s  %-18s  %-24s  %s\n", nameWidth, "ORGANIZATION", "STAGE", "OWNER", "NEXT ACTION")
	for _, rec := range records {
		next := rec.NextAction
		if next != "" && rec.NextActionDate != "" {
			next = fmt.Sprintf("%s (%s)", next, rec.NextActionDate)
		}
		// Pad before colorizing so escape codes do not skew the columns.
		fmt.Printf("%-*s  %s  %-24s  %s\n",
			nameWidth, rec.OrganizationName,
			stageColor(rec.CurrentStage).Sprintf("%-18s", rec.CurrentStage),
			rec.AssignedTo, next)
	}
}

func printBoard(records []Record) {
	grouped := make(map[string][]Record)
	for _, rec := range records {
		grouped[rec.CurrentStage] = append(grouped[rec.CurrentStage], rec)
	}
	for _, stage := range domain.Stages() {
		members := grouped[string(stage)]
		if len(members) == 0 {
			continue
		}
		fmt.Printf("%s (%d)\n", stageColor(string(stage)).Sprint(string(stage)), len(members))
		for _, rec := range members {
			owner := rec.AssignedTo
			if owner == "" {
				owner = "unassigned"
			}
			fmt.Printf("  - %s  [%s]\n", rec.OrganizationName, owner)
		}
		fmt.Println()
	}
}
