package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fundcrm/internal/domain"
)

// AddCmd returns the add command
func AddCmd() *cobra.Command {
	var stage string

	cmd := &cobra.Command{
		Use:   "add <organization>",
		Short: "Add a new organization to the pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			rec, warning, err := apiClient().AddOrganization(cmd.Context(), name, stage)
			if err != nil {
				return err
			}
			fmt.Printf("Added %s at stage %s.\n", rec.OrganizationName, rec.CurrentStage)
			printWarning(warning)
			return nil
		},
	}

	cmd.Flags().StringVar(&stage, "stage", "", "Initial stage (default Initial Contact)")

	return cmd
}

// StageCmd returns the stage command
func StageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stage <organization> <new-stage>",
		Short: "Move an organization to a different stage",
		Long: `Move an organization to a different pipeline stage. Valid stages:
` + stageListing(),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, warning, err := apiClient().TransitionStage(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%s: %s -> %s\n", rec.OrganizationName, rec.PreviousStage,
				stageColor(rec.CurrentStage).Sprint(rec.CurrentStage))
			printWarning(warning)
			return nil
		},
	}
}

// AssignCmd returns the assign command
func AssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <organization> <owner>",
		Short: "Assign an organization to a team member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, warning, err := apiClient().AssignOwner(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("%s assigned to %s.\n", rec.OrganizationName, rec.AssignedTo)
			printWarning(warning)
			return nil
		},
	}
}

// NextCmd returns the next command
func NextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "next <organization> <action> <date>",
		Short: "Set the next action and its due date (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, warning, err := apiClient().SetNextAction(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			fmt.Printf("%s: next action %q on %s.\n", rec.OrganizationName, rec.NextAction, rec.NextActionDate)
			printWarning(warning)
			return nil
		},
	}
}

// NoteCmd returns the note command
func NoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "note <organization> <text>",
		Short: "Append a note to an organization's record",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			note := strings.Join(args[1:], " ")
			rec, warning, err := apiClient().AppendNote(cmd.Context(), args[0], note)
			if err != nil {
				return err
			}
			fmt.Printf("Note added to %s.\n", rec.OrganizationName)
			printWarning(warning)
			return nil
		},
	}
}

func stageListing() string {
	var b strings.Builder
	for _, stage := range domain.Stages() {
		fmt.Fprintf(&b, "  - %s\n", stage)
	}
	return b.String()
}

func printWarning(warning string) {
	if warning == "" {
		return
	}
	fmt.Printf("%s change saved but the activity log entry failed; it will be missing from history.\n",
		color.New(color.FgYellow).Sprint("warning:"))
}
