package promptscan

import (
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/redactyl/promptscan/internal/detectors"
	"github.com/redactyl/promptscan/internal/report"
)

var flagShowRules bool

func init() {
	cmd := &cobra.Command{
		Use:   "detectors",
		Short: "List detector categories and rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cats := detectors.Default().Categories()
			if flagJSON {
				return report.WriteJSON(cmd.OutOrStdout(), cats)
			}
			table := tablewriter.NewWriter(cmd.OutOrStdout())
			if flagShowRules {
				table.Header("CATEGORY", "RULE", "GROUPS", "EXPRESSION")
				for _, c := range cats {
					for _, r := range c.Rules {
						_ = table.Append([]string{string(c.Name), strconv.Itoa(r.Index), strconv.Itoa(r.Groups), r.Expr})
					}
				}
			} else {
				table.Header("CATEGORY", "RULES")
				for _, c := range cats {
					_ = table.Append([]string{string(c.Name), strconv.Itoa(len(c.Rules))})
				}
			}
			return table.Render()
		},
	}
	cmd.Flags().BoolVar(&flagShowRules, "rules", false, "show every rule expression")
	rootCmd.AddCommand(cmd)
}
