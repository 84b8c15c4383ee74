package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/kerbaras/readly/pkg/app/styles"
	"github.com/kerbaras/readly/pkg/services"
	"github.com/mattn/go-isatty"
)

func isInteractive(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func errorLine(err error) string {
	switch {
	case errors.Is(err, services.ErrAuth):
		return styles.StatusError.Render("✗ " + err.Error() + ". Please check your token.")
	default:
		return styles.StatusError.Render("✗ " + err.Error())
	}
}

func summaryLine(report *services.BatchReport) string {
	style := styles.StatusCompleted
	if report.Failed() > 0 {
		style = styles.StatusWarning
	}
	return lipgloss.JoinHorizontal(lipgloss.Left,
		style.Render(fmt.Sprintf("%d done, %d failed", report.Succeeded(), report.Failed())),
		styles.MutedStyle.Render(fmt.Sprintf("  run %s", report.RunID)),
	)
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}
