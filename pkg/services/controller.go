package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/kerbaras/readly/pkg/config"
	"github.com/kerbaras/readly/pkg/data"
	"github.com/kerbaras/readly/pkg/integrations"
	"github.com/kerbaras/readly/pkg/sources"
)

// Selector decides how many leading candidates of a collection to process.
type Selector interface {
	Select(ctx context.Context, candidates []data.IssueMetadata, max int) (int, error)
}

// FixedSelector takes the configured maximum without asking anyone.
type FixedSelector struct{}

func (FixedSelector) Select(_ context.Context, candidates []data.IssueMetadata, max int) (int, error) {
	return min(max, len(candidates)), nil
}

// Recorder stores the outcome of each issue. It is a log, never a cache.
type Recorder interface {
	SaveDownload(record *data.DownloadRecord) error
}

type ControllerConfig struct {
	Download config.Download
	RunID    string // generated when empty
	Selector Selector
	Recorder Recorder
	Logger   *slog.Logger
}

// IssueResult is the outcome of one issue, or of a locator that never
// resolved to one.
type IssueResult struct {
	Locator string
	Issue   data.IssueMetadata
	Stage   Stage // StageDone or the stage that failed
	Output  string
	WorkDir string
	Err     error
}

// OK reports a completed issue.
func (r *IssueResult) OK() bool { return r.Err == nil }

// BatchReport collects the results of a run in processing order.
type BatchReport struct {
	RunID   string
	Results []*IssueResult
}

func (b *BatchReport) Succeeded() int {
	n := 0
	for _, r := range b.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

func (b *BatchReport) Failed() int { return len(b.Results) - b.Succeeded() }

// Controller runs the pipeline for one or many locators, strictly one issue
// at a time.
type Controller struct {
	source     sources.Source
	resolver   *Resolver
	downloader *Downloader
	selector   Selector
	recorder   Recorder
	download   config.Download
	runID      string
	logger     *slog.Logger
}

func NewController(source sources.Source, cfg ControllerConfig) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runID := cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	selector := cfg.Selector
	if selector == nil {
		selector = FixedSelector{}
	}
	logger = logger.With(slog.String("run_id", runID))

	return &Controller{
		source:     source,
		resolver:   NewResolver(source, logger),
		downloader: NewDownloader(source, logger),
		selector:   selector,
		recorder:   cfg.Recorder,
		download:   cfg.Download.Normalize(),
		runID:      runID,
		logger:     logger,
	}
}

// GetProgressChannel returns the channel for receiving progress updates.
func (c *Controller) GetProgressChannel() <-chan Progress {
	return c.downloader.GetProgressChannel()
}

func (c *Controller) RunID() string { return c.runID }

// Close releases the progress channel.
func (c *Controller) Close() {
	c.downloader.Close()
}

// Authenticate checks the token against the subscription endpoint.
func (c *Controller) Authenticate(ctx context.Context) error {
	if !c.source.ValidateToken(ctx) {
		return fmt.Errorf("%w: no active subscription", ErrAuth)
	}
	return nil
}

// Run authenticates, then processes every locator in order. Per-issue
// failures are recorded in the report and the batch moves on; ErrAuth and
// context cancellation stop the run.
func (c *Controller) Run(ctx context.Context, locators []string) (*BatchReport, error) {
	report := &BatchReport{RunID: c.runID}
	if err := c.Authenticate(ctx); err != nil {
		return report, err
	}

	for _, locator := range locators {
		if err := c.runLocator(ctx, locator, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// runLocator returns only errors that must stop the run.
func (c *Controller) runLocator(ctx context.Context, locator string, report *BatchReport) error {
	res, err := c.resolver.Resolve(ctx, locator)
	if err != nil {
		c.fail(report, &IssueResult{Locator: locator, Issue: data.IssueMetadata{ID: locator}}, StageResolving, err)
		return fatal(ctx, err)
	}

	if !res.IsCollection() {
		result := c.ProcessIssue(ctx, *res.Issue)
		result.Locator = locator
		report.Results = append(report.Results, result)
		return fatal(ctx, result.Err)
	}

	c.logger.Info("collection resolved",
		slog.String("collection_id", res.CollectionID),
		slog.String("kind", res.Kind),
		slog.Int("candidates", len(res.Candidates)),
	)
	c.downloader.sendProgress(Progress{
		IssueID:    res.CollectionID,
		Stage:      StageResolving,
		Candidates: res.Candidates,
	})

	n, err := c.selector.Select(ctx, res.Candidates, c.download.MaxDL)
	if err != nil {
		c.fail(report, &IssueResult{Locator: locator, Issue: data.IssueMetadata{ID: res.CollectionID}}, StageResolving, err)
		return fatal(ctx, err)
	}
	n = max(0, min(n, len(res.Candidates)))

	for _, candidate := range res.Candidates[:n] {
		meta, err := c.resolver.Metadata(ctx, candidate.ID)
		if err != nil {
			c.logger.Warn("skipping candidate",
				slog.String("issue_id", candidate.ID),
				slog.Any("error", err),
			)
			c.fail(report, &IssueResult{Locator: locator, Issue: candidate}, StageResolving, err)
			if err := fatal(ctx, err); err != nil {
				return err
			}
			continue
		}

		result := c.ProcessIssue(ctx, *meta)
		result.Locator = locator
		report.Results = append(report.Results, result)
		if err := fatal(ctx, result.Err); err != nil {
			return err
		}
	}
	return nil
}

// ProcessIssue runs FETCHING and ASSEMBLING for one resolved issue and
// cleans the working set after a successful assembly. The working set is
// kept whenever something fails.
func (c *Controller) ProcessIssue(ctx context.Context, meta data.IssueMetadata) *IssueResult {
	cfg := c.download
	baseName := integrations.ApplyPattern(cfg.Pattern, meta)
	if baseName == "" {
		baseName = meta.ID
	}
	result := &IssueResult{Issue: meta}
	logger := c.logger.With(slog.String("issue_id", meta.ID))
	logger.Info("processing issue", slog.String("title", meta.Title), slog.String("issue", meta.Issue))

	workDir, err := newWorkDir(cfg.Output, baseName)
	if err != nil {
		return c.record(result, StageFetching, err)
	}
	result.WorkDir = workDir

	c.downloader.sendProgress(Progress{IssueID: meta.ID, Title: baseName, Stage: StageFetching})
	manifest, err := c.source.GetManifest(ctx, meta.ID)
	if err != nil {
		if errors.Is(err, sources.ErrUnauthorized) {
			err = fmt.Errorf("%w: %w", ErrAuth, err)
		}
		return c.record(result, StageFetching, err)
	}

	if _, err := c.downloader.Fetch(ctx, meta.ID, manifest, cfg, result.WorkDir); err != nil {
		return c.record(result, StageFetching, err)
	}

	if cfg.ArticlesOnly {
		result.Output = result.WorkDir
		return c.record(result, StageDone, nil)
	}

	c.downloader.sendProgress(Progress{IssueID: meta.ID, Title: baseName, Stage: StageAssembling})
	assembler, err := integrations.NewAssembler(cfg.Container, cfg.ImageFormat, cfg.DPI, logger)
	if err != nil {
		return c.record(result, StageAssembling, fmt.Errorf("%w: %w", ErrAssembly, err))
	}
	output, err := assembler.Assemble(result.WorkDir, cfg.Output, baseName)
	if err != nil {
		return c.record(result, StageAssembling, fmt.Errorf("%w: %w", ErrAssembly, err))
	}
	result.Output = output

	if !cfg.NoClean {
		if err := os.RemoveAll(result.WorkDir); err != nil {
			logger.Warn("failed to remove working directory", slog.String("path", result.WorkDir), slog.Any("error", err))
		}
	}
	return c.record(result, StageDone, nil)
}

// newWorkDir creates an empty working set for one issue. A directory left
// behind by an earlier issue with the same name is never reused.
func newWorkDir(output, baseName string) (string, error) {
	if err := os.MkdirAll(output, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output folder: %w", err)
	}
	dir, err := integrations.GetUniqueDir(output, baseName)
	if err != nil {
		return "", fmt.Errorf("working directory %s: %w", dir, err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create working directory: %w", err)
	}
	return dir, nil
}

func (c *Controller) fail(report *BatchReport, result *IssueResult, stage Stage, err error) {
	report.Results = append(report.Results, c.record(result, stage, classify(ErrResolution, err)))
}

// record finalizes result, emits the terminal progress event and appends
// the history row.
func (c *Controller) record(result *IssueResult, stage Stage, err error) *IssueResult {
	result.Stage = stage
	status := string(StageDone)
	if err != nil {
		result.Err = &IssueError{IssueID: result.Issue.ID, Stage: stage, Err: err}
		status = string(StageFailed)
		c.logger.Error("issue failed",
			slog.String("issue_id", result.Issue.ID),
			slog.String("stage", string(stage)),
			slog.Any("error", err),
		)
		c.downloader.sendProgress(Progress{IssueID: result.Issue.ID, Stage: StageFailed, Error: result.Err})
	} else {
		c.logger.Info("issue done", slog.String("issue_id", result.Issue.ID), slog.String("output", result.Output))
		c.downloader.sendProgress(Progress{IssueID: result.Issue.ID, Stage: StageDone, Output: result.Output})
	}

	if c.recorder != nil {
		rec := &data.DownloadRecord{
			RunID:      c.runID,
			IssueID:    result.Issue.ID,
			Title:      result.Issue.Title,
			Issue:      result.Issue.Issue,
			Date:       result.Issue.Date,
			Output:     result.Output,
			Status:     status,
			FinishedAt: time.Now(),
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if err := c.recorder.SaveDownload(rec); err != nil {
			c.logger.Warn("failed to record download", slog.Any("error", err))
		}
	}
	return result
}

// fatal filters the errors that end a run instead of a single issue.
func fatal(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrAuth) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return nil
}
