package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kerbaras/readly/pkg/config"
	"github.com/kerbaras/readly/pkg/data"
	"github.com/kerbaras/readly/pkg/sources"
	"github.com/spf13/cobra"
)

type latestOptions struct {
	kinds      []string
	limit      int
	countries  []string
	languages  []string
	categories []string
	outputFile string
	table      bool
}

var latestOpts latestOptions

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "List the most recent issues",
	Long: `List the most recent magazine and newspaper issues.

The plain output can be saved with --output-file and fed back to
"readly get --list".`,
	Example: `  readly latest --kind newspapers --country SE --limit 10
  readly latest --output-file latest.txt && readly get --list latest.txt`,
	Args: cobra.NoArgs,
	RunE: runLatest,
}

func init() {
	flags := latestCmd.Flags()
	flags.StringSliceVar(&latestOpts.kinds, "kind", sources.CollectionKinds, "Publication kinds to list")
	flags.IntVarP(&latestOpts.limit, "limit", "n", 25, "Issues per kind")
	flags.StringSliceVar(&latestOpts.countries, "country", nil, "Filter by country code")
	flags.StringSliceVar(&latestOpts.languages, "language", nil, "Filter by language code")
	flags.StringSliceVar(&latestOpts.categories, "category", nil, "Filter by category")
	flags.StringVar(&latestOpts.outputFile, "output-file", "", "Write the list to a file instead of stdout")
	flags.BoolVar(&latestOpts.table, "table", false, "Print a table instead of a locator list")
}

func runLatest(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	source, err := rt.source(rt.cfg.Download.Resolution, false)
	if err != nil {
		return err
	}

	query := sources.LatestQuery{
		Limit:      latestOpts.limit,
		Countries:  latestOpts.countries,
		Languages:  latestOpts.languages,
		Categories: latestOpts.categories,
	}

	groups := make([]latestGroup, 0, len(latestOpts.kinds))
	for _, kind := range latestOpts.kinds {
		found, err := source.Latest(cmd.Context(), kind, query)
		if err != nil {
			return err
		}
		groups = append(groups, latestGroup{kind: kind, issues: found})
	}

	out := cmd.OutOrStdout()
	if latestOpts.outputFile != "" {
		path, err := config.ExpandPath(latestOpts.outputFile)
		if err != nil {
			return err
		}
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if latestOpts.table {
		_, err = fmt.Fprintln(out, latestTable(groups))
		return err
	}
	return writeLatestList(out, groups)
}

type latestGroup struct {
	kind   string
	issues []data.IssueMetadata
}

// writeLatestList prints a "# KIND" header per group, then each issue as a
// comment line followed by its id, which is the format ReadLocatorFile
// accepts. Groups end with a blank line.
func writeLatestList(w io.Writer, groups []latestGroup) error {
	var b strings.Builder
	for _, group := range groups {
		fmt.Fprintf(&b, "# %s\n", strings.ToUpper(group.kind))
		for _, issue := range group.issues {
			fmt.Fprintf(&b, "# %s - %s (%s)\n%s\n", issue.Title, issue.Issue, issue.Date, issue.ID)
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func latestTable(groups []latestGroup) string {
	var rows [][]string
	for _, group := range groups {
		for _, issue := range group.issues {
			rows = append(rows, []string{group.kind, issue.Title, issue.Issue, issue.Date, issue.ID})
		}
	}
	return renderTable(
		[]string{"Kind", "Title", "Issue", "Date", "ID"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
	)
}
