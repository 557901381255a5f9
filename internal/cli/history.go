package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// HistoryCmd returns the history command
func HistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <organization>",
		Short: "Show the activity log for one organization",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			org := strings.Join(args, " ")
			entries, err := apiClient().History(cmd.Context(), org)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("No activity recorded.")
				return nil
			}
			for _, entry := range entries {
				marker := ""
				if entry.OutOfOrder {
					marker = color.New(color.FgYellow).Sprint(" [out of order]")
				}
				fmt.Printf("%s  %-18s %s%s\n", entry.Timestamp, entry.Action, entry.Actor, marker)
				for _, field := range sortedFields(entry.After) {
					before := entry.Before[field]
					after := entry.After[field]
					if before == "" {
						fmt.Printf("    %s: %q\n", field, after)
					} else {
						fmt.Printf("    %s: %q -> %q\n", field, before, after)
					}
				}
			}
			return nil
		},
	}
}

func sortedFields(m map[string]string) []string {
	fields := make([]string, 0, len(m))
	for f := range m {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
