package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	flagAPI   string
	flagActor string
)

// RootCmd builds the pipectl command tree.
func RootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pipectl",
		Short: "pipectl - fundraising pipeline from the terminal",
		Long: `pipectl talks to the pipeline API and mirrors the /pipeline slash
command surface: inspect organizations, move them through stages,
assign owners, schedule next actions and generate email drafts.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagAPI, "api", defaultAPI(), "Base URL of the pipeline API")
	rootCmd.PersistentFlags().StringVar(&flagActor, "actor", defaultActor(), "Name recorded in the activity log")

	rootCmd.AddCommand(StatusCmd())
	rootCmd.AddCommand(ListCmd())
	rootCmd.AddCommand(SearchCmd())
	rootCmd.AddCommand(AddCmd())
	rootCmd.AddCommand(StageCmd())
	rootCmd.AddCommand(AssignCmd())
	rootCmd.AddCommand(NextCmd())
	rootCmd.AddCommand(NoteCmd())
	rootCmd.AddCommand(HistoryCmd())
	rootCmd.AddCommand(DraftCmd())

	return rootCmd
}

func defaultAPI() string {
	if v := os.Getenv("PIPECTL_API"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func defaultActor() string {
	if v := os.Getenv("PIPECTL_ACTOR"); v != "" {
		return v
	}
	if v := os.Getenv("USER"); v != "" {
		return v
	}
	return "pipectl"
}

func apiClient() *Client {
	return NewClient(flagAPI, flagActor)
}
