package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kerbaras/readly/pkg/config"
	"github.com/kerbaras/readly/pkg/data"
	"github.com/kerbaras/readly/pkg/integrations"
	"github.com/kerbaras/readly/pkg/sources"
)

// Progress is a status event for whatever renders the run. Events are
// dropped when nobody keeps up.
type Progress struct {
	IssueID     string
	Title       string
	Stage       Stage
	CurrentPage int
	TotalPages  int
	Candidates  []data.IssueMetadata // set once per collection, before selection
	Output      string
	Message     string
	Error       error
}

// FetchReport lists what Fetch wrote into the working set.
type FetchReport struct {
	Pages           []string
	Articles        []string
	ArticlesMissing bool // articles were requested but the manifest had none
}

// Downloader fetches, decodes and writes the pages of one issue at a time.
type Downloader struct {
	source       sources.Source
	logger       *slog.Logger
	progressChan chan Progress
	closeOnce    sync.Once
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewDownloader(source sources.Source, logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		source:       source,
		logger:       logger,
		progressChan: make(chan Progress, 100),
		sleep:        sleepContext,
	}
}

// GetProgressChannel returns the channel for receiving progress updates.
func (d *Downloader) GetProgressChannel() <-chan Progress {
	return d.progressChan
}

// Fetch downloads every page of manifest in order into workDir as
// page_NNN.<ext>, then the article archives when requested. Pages are
// skipped entirely for articles-only runs.
func (d *Downloader) Fetch(ctx context.Context, issueID string, manifest *data.Manifest, cfg config.Download, workDir string) (*FetchReport, error) {
	if manifest == nil {
		return nil, errors.New("manifest cannot be nil")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	report := &FetchReport{}
	fetched := 0

	if !cfg.ArticlesOnly {
		processor := integrations.NewImageProcessor(integrations.ImageSettings{
			Format:   cfg.ImageFormat,
			Quality:  cfg.Quality,
			DPI:      cfg.DPI,
			MaxWidth: cfg.MaxWidth,
		})

		total := len(manifest.Pages)
		for i, pageURL := range manifest.Pages {
			if err := d.pause(ctx, cfg, fetched); err != nil {
				return report, err
			}
			d.sendProgress(Progress{
				IssueID:     issueID,
				Stage:       StageFetching,
				CurrentPage: i + 1,
				TotalPages:  total,
			})

			path, err := d.fetchPage(ctx, issueID, pageURL, i, processor, workDir)
			if err != nil {
				return report, fmt.Errorf("page %d/%d: %w", i+1, total, err)
			}
			report.Pages = append(report.Pages, path)
			fetched++
		}
	}

	if !cfg.GetArticles && !cfg.ArticlesOnly {
		return report, nil
	}
	if !manifest.HasArticles {
		report.ArticlesMissing = true
		d.logger.Info("no articles found", slog.String("issue_id", issueID))
		d.sendProgress(Progress{IssueID: issueID, Stage: StageFetching, Message: "no articles found"})
		return report, nil
	}

	for i, article := range manifest.Articles {
		if err := d.pause(ctx, cfg, fetched); err != nil {
			return report, err
		}
		d.sendProgress(Progress{
			IssueID:     issueID,
			Stage:       StageFetching,
			CurrentPage: i + 1,
			TotalPages:  len(manifest.Articles),
			Message:     "articles",
		})

		path, err := d.fetchArticle(ctx, issueID, article, workDir)
		if err != nil {
			return report, fmt.Errorf("article %s: %w", article.Key, err)
		}
		report.Articles = append(report.Articles, path)
		fetched++
	}
	return report, nil
}

func (d *Downloader) fetchPage(ctx context.Context, issueID, pageURL string, index int, processor *integrations.ImageProcessor, workDir string) (string, error) {
	raw, err := d.source.Fetch(ctx, pageURL)
	if err != nil {
		return "", err
	}

	img, err := processor.ProcessImageData(integrations.Decode(raw, issueID))
	if err != nil {
		if errors.Is(err, integrations.ErrInvalidImage) {
			return "", fmt.Errorf("%w: %w", ErrDecode, err)
		}
		return "", err
	}

	path := filepath.Join(workDir, fmt.Sprintf("page_%03d.%s", index, processor.Ext()))
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return "", fmt.Errorf("failed to write page: %w", err)
	}
	return path, nil
}

func (d *Downloader) fetchArticle(ctx context.Context, issueID string, article data.Article, workDir string) (string, error) {
	raw, err := d.source.Fetch(ctx, article.URL)
	if err != nil {
		return "", err
	}

	path := filepath.Join(workDir, "article_"+integrations.CleanName(article.Key)+".zip")
	if err := os.WriteFile(path, integrations.Decode(raw, issueID), 0o644); err != nil {
		return "", fmt.Errorf("failed to write article: %w", err)
	}
	return path, nil
}

// pause waits between two downloads, never before the first.
func (d *Downloader) pause(ctx context.Context, cfg config.Download, fetched int) error {
	if fetched == 0 || cfg.Pause <= 0 {
		return ctx.Err()
	}
	return d.sleep(ctx, cfg.PauseDuration())
}

// sendProgress sends a progress update (non-blocking)
func (d *Downloader) sendProgress(progress Progress) {
	select {
	case d.progressChan <- progress:
	default:
		// Channel full, skip this update
	}
}

// Close closes the progress channel. Nothing may be fetched afterwards.
func (d *Downloader) Close() {
	d.closeOnce.Do(func() { close(d.progressChan) })
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
