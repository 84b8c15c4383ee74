package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/kerbaras/readly/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func servingSource(t *testing.T, issueID string) *mockSource {
	t.Helper()
	page := obfuscated(createTestPNG(t), issueID)
	return &mockSource{
		fetchFunc: func(_ context.Context, url string) ([]byte, error) {
			if strings.Contains(url, "/article/") {
				return obfuscated([]byte("PK article "+filepath.Base(url)), issueID), nil
			}
			return page, nil
		},
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestFetch_WritesPagesInManifestOrder(t *testing.T) {
	workDir := filepath.Join(t.TempDir(), "Issue")
	d := NewDownloader(servingSource(t, testIssueID), nil)

	report, err := d.Fetch(context.Background(), testIssueID, testManifest(12), config.DefaultDownload(), workDir)
	require.NoError(t, err)
	require.Len(t, report.Pages, 12)

	names := listDir(t, workDir)
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	assert.Equal(t, sorted, names)
	assert.Equal(t, "page_000.jpeg", names[0])
	assert.Equal(t, "page_011.jpeg", names[11])
	for i, p := range report.Pages {
		assert.Equal(t, filepath.Join(workDir, names[i]), p)
	}
}

func TestFetch_DecodesPagesWithIssueKey(t *testing.T) {
	workDir := t.TempDir()
	d := NewDownloader(servingSource(t, testIssueID), nil)
	cfg := config.DefaultDownload()
	cfg.ImageFormat = "webp"

	_, err := d.Fetch(context.Background(), testIssueID, testManifest(1), cfg, workDir)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(workDir, "page_000.webp"))
	require.NoError(t, err)
	assert.Equal(t, "WEBP", string(content[8:12]))
}

func TestFetch_WrongKeyIsDecodeError(t *testing.T) {
	d := NewDownloader(servingSource(t, "another-key-entirely-000"), nil)

	report, err := d.Fetch(context.Background(), testIssueID, testManifest(2), config.DefaultDownload(), t.TempDir())
	assert.ErrorIs(t, err, ErrDecode)
	assert.Empty(t, report.Pages)
}

func TestFetch_TransportFailureStopsIssue(t *testing.T) {
	calls := 0
	d := NewDownloader(&mockSource{
		fetchFunc: func(context.Context, string) ([]byte, error) {
			calls++
			return nil, ErrTransport
		},
	}, nil)

	_, err := d.Fetch(context.Background(), testIssueID, testManifest(3), config.DefaultDownload(), t.TempDir())
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, 1, calls)
}

func TestFetch_PausesBetweenDownloads(t *testing.T) {
	d := NewDownloader(servingSource(t, testIssueID), nil)
	var pauses []time.Duration
	d.sleep = func(_ context.Context, p time.Duration) error {
		pauses = append(pauses, p)
		return nil
	}
	cfg := config.DefaultDownload()
	cfg.Pause = 0.25
	cfg.GetArticles = true

	_, err := d.Fetch(context.Background(), testIssueID, testManifest(3, "a", "b"), cfg, t.TempDir())
	require.NoError(t, err)

	assert.Len(t, pauses, 4, "five downloads, no pause before the first")
	for _, p := range pauses {
		assert.Equal(t, 250*time.Millisecond, p)
	}
}

func TestFetch_NoPauseConfigured(t *testing.T) {
	d := NewDownloader(servingSource(t, testIssueID), nil)
	d.sleep = func(context.Context, time.Duration) error {
		t.Fatal("unexpected pause")
		return nil
	}

	_, err := d.Fetch(context.Background(), testIssueID, testManifest(2), config.DefaultDownload(), t.TempDir())
	assert.NoError(t, err)
}

func TestFetch_Articles(t *testing.T) {
	workDir := t.TempDir()
	d := NewDownloader(servingSource(t, testIssueID), nil)
	cfg := config.DefaultDownload()
	cfg.GetArticles = true

	report, err := d.Fetch(context.Background(), testIssueID, testManifest(1, "k1", "k/2"), cfg, workDir)
	require.NoError(t, err)

	assert.Len(t, report.Articles, 2)
	content, err := os.ReadFile(filepath.Join(workDir, "article_k1.zip"))
	require.NoError(t, err)
	assert.Equal(t, "PK article k1", string(content))
	_, err = os.Stat(filepath.Join(workDir, "article_k_2.zip"))
	assert.NoError(t, err)
}

func TestFetch_ArticlesOnlySkipsPages(t *testing.T) {
	workDir := t.TempDir()
	source := servingSource(t, testIssueID)
	d := NewDownloader(source, nil)
	cfg := config.Download{ArticlesOnly: true}.Normalize()

	report, err := d.Fetch(context.Background(), testIssueID, testManifest(4, "x"), cfg, workDir)
	require.NoError(t, err)

	assert.Empty(t, report.Pages)
	assert.Equal(t, []string{"article_x.zip"}, listDir(t, workDir))
	assert.Equal(t, 1, source.called("Fetch"))
}

func TestFetch_MissingArticlesIsInformational(t *testing.T) {
	d := NewDownloader(servingSource(t, testIssueID), nil)
	cfg := config.DefaultDownload()
	cfg.GetArticles = true

	report, err := d.Fetch(context.Background(), testIssueID, testManifest(1), cfg, t.TempDir())
	require.NoError(t, err)
	assert.True(t, report.ArticlesMissing)

	var sawInfo bool
	for len(d.GetProgressChannel()) > 0 {
		if p := <-d.GetProgressChannel(); p.Message == "no articles found" {
			sawInfo = true
		}
	}
	assert.True(t, sawInfo)
}

func TestFetch_ProgressEvents(t *testing.T) {
	d := NewDownloader(servingSource(t, testIssueID), nil)

	_, err := d.Fetch(context.Background(), testIssueID, testManifest(3), config.DefaultDownload(), t.TempDir())
	require.NoError(t, err)
	d.Close()

	var pages []int
	for p := range d.GetProgressChannel() {
		assert.Equal(t, 3, p.TotalPages)
		pages = append(pages, p.CurrentPage)
	}
	assert.Equal(t, []int{1, 2, 3}, pages)
}

func TestFetch_ProgressNeverBlocks(t *testing.T) {
	d := NewDownloader(servingSource(t, testIssueID), nil)

	done := make(chan error, 1)
	go func() {
		_, err := d.Fetch(context.Background(), testIssueID, testManifest(150), config.DefaultDownload(), t.TempDir())
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Fetch blocked on a full progress channel")
	}
}

func TestFetch_ContextCancelledDuringPause(t *testing.T) {
	d := NewDownloader(servingSource(t, testIssueID), nil)
	ctx, cancel := context.WithCancel(context.Background())
	d.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	cfg := config.DefaultDownload()
	cfg.Pause = 1

	report, err := d.Fetch(ctx, testIssueID, testManifest(3), cfg, t.TempDir())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, report.Pages, 1)
}

func TestFetch_NilManifest(t *testing.T) {
	d := NewDownloader(&mockSource{}, nil)
	_, err := d.Fetch(context.Background(), testIssueID, nil, config.DefaultDownload(), t.TempDir())
	assert.Error(t, err)
}
