package promptscan

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/redactyl/promptscan/internal/audit"
	"github.com/redactyl/promptscan/internal/report"
)

var flagHistoryPath string

func init() {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past file scans from the audit history",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	cmd.PersistentFlags().StringVarP(&flagHistoryPath, "path", "p", ".", "scan root whose history to read")

	del := &cobra.Command{
		Use:   "delete <index>",
		Short: "Delete one record (index as shown by history, 0 = newest)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q", args[0])
			}
			if err := historyLog().DeleteRecord(i); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Deleted record", i)
			return nil
		},
	}
	cmd.AddCommand(del)
	rootCmd.AddCommand(cmd)
}

func historyLog() *audit.AuditLog {
	abs, err := filepath.Abs(flagHistoryPath)
	if err != nil {
		abs = flagHistoryPath
	}
	return audit.NewAuditLog(abs)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	records, err := historyLog().LoadHistory()
	if err != nil {
		return err
	}
	if records == nil {
		records = []audit.ScanRecord{}
	}
	if flagJSON {
		return report.WriteJSON(cmd.OutOrStdout(), records)
	}
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.Header("#", "TIME", "SCAN ID", "FILES", "FINDINGS", "NEW", "DURATION")
	for i, r := range records {
		_ = table.Append([]string{
			strconv.Itoa(i),
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.ScanID,
			strconv.Itoa(r.FilesScanned),
			strconv.Itoa(r.TotalFindings),
			strconv.Itoa(r.NewFindings),
			r.Duration,
		})
	}
	return table.Render()
}
