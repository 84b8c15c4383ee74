package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/kerbaras/readly/pkg/data"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded downloads",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		path := rt.cfg.History.Path
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(cmd.OutOrStdout(), "No downloads recorded yet.")
			return nil
		}

		repo, err := data.NewDuckDBRepository(path)
		if err != nil {
			return err
		}
		defer repo.Close()

		records, err := repo.ListDownloads(historyLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), historyTable(records))
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of records to show, 0 for all")
}

func historyTable(records []*data.DownloadRecord) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		detail := rec.Output
		if rec.Error != "" {
			detail = rec.Error
		}
		rows = append(rows, []string{
			rec.FinishedAt.Local().Format("2006-01-02 15:04"),
			rec.Status,
			rec.Title,
			rec.Issue,
			rec.IssueID,
			detail,
		})
	}
	return renderTable(
		[]string{"When", "Status", "Title", "Issue", "ID", "Output"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
