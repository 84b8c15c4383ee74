package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/kerbaras/readly/pkg/app/styles"
	"github.com/kerbaras/readly/pkg/data"
)

// CandidateList renders the issues of a collection, highlighting the
// leading ones that will be processed.
type CandidateList struct {
	Items    []data.IssueMetadata
	Selected int // number of leading items marked
	Width    int
}

func NewCandidateList(items []data.IssueMetadata) *CandidateList {
	return &CandidateList{Items: items, Width: 80}
}

func (c *CandidateList) View() string {
	if len(c.Items) == 0 {
		return styles.MutedStyle.Render("No issues in this collection")
	}

	rows := make([][]string, 0, len(c.Items))
	for i, item := range c.Items {
		rows = append(rows, []string{fmt.Sprintf("%d", i+1), item.Title, item.Issue, item.Date, item.ID})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styles.TableBorderStyle).
		Headers("#", "TITLE", "ISSUE", "DATE", "ID").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styles.TableHeaderStyle
			case row < c.Selected:
				return styles.TableSelectedStyle
			default:
				return styles.TableCellStyle
			}
		})
	return t.String()
}
