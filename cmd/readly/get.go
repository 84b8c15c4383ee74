package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kerbaras/readly/pkg/app"
	"github.com/kerbaras/readly/pkg/config"
	"github.com/kerbaras/readly/pkg/data"
	"github.com/kerbaras/readly/pkg/services"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type getOptions struct {
	imageFormat  string
	quality      int
	container    string
	dpi          int
	maxWidth     int
	resolution   int
	pause        float64
	maxDL        int
	noClean      bool
	getArticles  bool
	articlesOnly bool
	output       string
	pattern      string
	list         string
	yes          bool
	noHistory    bool
}

var getOpts getOptions

var getCmd = &cobra.Command{
	Use:   "get [locator...]",
	Short: "Download issues",
	Long: `Download one or more issues. Locators come from the arguments and from
the --list file (one per line, lines starting with # are ignored).

A collection id lists its issues; the first --max-dl of them are downloaded.
When stdin is a terminal and --yes is not given, you are asked how many.`,
	Example: `  readly get 5f1a2b3c4d5e6f7a8b9c0d1e
  readly get -f cbz --no-clean https://go.readly.com/magazines/abc/5f1a2b3c4d5e6f7a8b9c0d1e
  readly get --list latest.txt --yes`,
	RunE: runGet,
}

func init() {
	addGetFlags(getCmd)
}

// addGetFlags binds the download flags of cmd to getOpts. The root command
// shares them so that "readly <locator>" works like "readly get".
func addGetFlags(cmd *cobra.Command) {
	defaults := config.DefaultDownload()
	flags := cmd.Flags()
	flags.StringVarP(&getOpts.imageFormat, "image-format", "i", defaults.ImageFormat, "Page image format: jpeg or webp")
	flags.IntVarP(&getOpts.quality, "quality", "q", defaults.Quality, "Image quality, 1-100")
	flags.StringVarP(&getOpts.container, "container-format", "f", defaults.Container, "Output container: pdf, cbz or epub")
	flags.IntVar(&getOpts.dpi, "dpi", 0, "Target DPI, 0 keeps the original")
	flags.IntVar(&getOpts.maxWidth, "max-width", 0, "Downscale pages wider than this many pixels, 0 disables")
	flags.IntVar(&getOpts.resolution, "resolution", defaults.Resolution, "Page resolution requested from the service")
	flags.Float64VarP(&getOpts.pause, "pause", "p", 0, "Pause between page downloads, in seconds")
	flags.IntVarP(&getOpts.maxDL, "max-dl", "m", defaults.MaxDL, "Maximum number of issues taken from a collection")
	flags.BoolVar(&getOpts.noClean, "no-clean", false, "Keep the working directory after assembly")
	flags.BoolVar(&getOpts.getArticles, "get-articles", false, "Also download article archives")
	flags.BoolVar(&getOpts.articlesOnly, "get-articles-only", false, "Only download article archives, implies --no-clean")
	flags.StringVarP(&getOpts.output, "output", "o", defaults.Output, "Output folder")
	flags.StringVar(&getOpts.pattern, "pattern", defaults.Pattern, `Output name pattern using "title", "issue" and "date"`)
	flags.StringVarP(&getOpts.list, "list", "l", "", "File with one locator per line")
	flags.BoolVarP(&getOpts.yes, "yes", "y", false, "Never prompt, take --max-dl issues from collections")
	flags.BoolVar(&getOpts.noHistory, "no-history", false, "Do not record downloads in the history ledger")
}

// applyDownloadFlags overlays explicitly set flags on the configured values.
func applyDownloadFlags(flags *pflag.FlagSet, d config.Download) config.Download {
	if flags.Changed("image-format") {
		d.ImageFormat = getOpts.imageFormat
	}
	if flags.Changed("quality") {
		d.Quality = getOpts.quality
	}
	if flags.Changed("container-format") {
		d.Container = getOpts.container
	}
	if flags.Changed("dpi") {
		d.DPI = getOpts.dpi
	}
	if flags.Changed("max-width") {
		d.MaxWidth = getOpts.maxWidth
	}
	if flags.Changed("resolution") {
		d.Resolution = getOpts.resolution
	}
	if flags.Changed("pause") {
		d.Pause = getOpts.pause
	}
	if flags.Changed("max-dl") {
		d.MaxDL = getOpts.maxDL
	}
	if flags.Changed("no-clean") {
		d.NoClean = getOpts.noClean
	}
	if flags.Changed("get-articles") {
		d.GetArticles = getOpts.getArticles
	}
	if flags.Changed("get-articles-only") {
		d.ArticlesOnly = getOpts.articlesOnly
	}
	if flags.Changed("output") {
		d.Output = getOpts.output
	}
	if flags.Changed("pattern") {
		d.Pattern = getOpts.pattern
	}
	return d.Normalize()
}

func runGet(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}

	download := applyDownloadFlags(cmd.Flags(), rt.cfg.Download)
	if err := download.Validate(); err != nil {
		return err
	}

	locators := append([]string(nil), args...)
	if getOpts.list != "" {
		listPath, err := config.ExpandPath(getOpts.list)
		if err != nil {
			return err
		}
		listed, err := services.ReadLocatorFile(listPath)
		if err != nil {
			return err
		}
		locators = append(locators, listed...)
	}
	if len(locators) == 0 {
		return errors.New("no locator given")
	}

	source, err := rt.source(download.Resolution, true)
	if err != nil {
		return err
	}

	lock, err := services.LockOutput(download.Output)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	ctrlCfg := services.ControllerConfig{
		Download: download,
		Logger:   rt.logger,
	}

	if rt.cfg.History.Enabled && !getOpts.noHistory && rt.cfg.History.Path != "" {
		repo, err := data.NewDuckDBRepository(rt.cfg.History.Path)
		if err != nil {
			rt.logger.Warn("history ledger unavailable", slog.String("path", rt.cfg.History.Path), slog.Any("error", err))
		} else {
			defer repo.Close()
			ctrlCfg.Recorder = repo
		}
	}

	ui := app.NewApp(os.Stdin, cmd.OutOrStdout(), 80)
	if !getOpts.yes && isInteractive(os.Stdin) {
		ctrlCfg.Selector = ui.Selector()
	}

	controller := services.NewController(source, ctrlCfg)
	watched := make(chan struct{})
	go func() {
		ui.Watch(controller.GetProgressChannel())
		close(watched)
	}()

	report, runErr := controller.Run(cmd.Context(), locators)
	controller.Close()
	<-watched

	fmt.Fprintln(cmd.OutOrStdout(), summaryLine(report))
	if runErr != nil {
		return runErr
	}
	if report.Failed() > 0 {
		return fmt.Errorf("%d of %d issues failed", report.Failed(), len(report.Results))
	}
	return nil
}
