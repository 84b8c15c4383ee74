package services

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kerbaras/readly/pkg/config"
	"github.com/kerbaras/readly/pkg/data"
	"github.com/kerbaras/readly/pkg/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedSelector(t *testing.T) {
	var s FixedSelector
	n, err := s.Select(context.Background(), candidateList(5), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Select(context.Background(), candidateList(1), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "short collections are not an error")

	n, err = s.Select(context.Background(), []data.IssueMetadata{}, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNewController_Defaults(t *testing.T) {
	c := NewController(&mockSource{}, ControllerConfig{})
	defer c.Close()

	assert.NotEmpty(t, c.RunID())
	assert.IsType(t, FixedSelector{}, c.selector)
	assert.Equal(t, config.DefaultDownload(), c.download)
}

func TestAuthenticate(t *testing.T) {
	c := NewController(&mockSource{validateTokenFunc: func(context.Context) bool { return false }}, ControllerConfig{})
	assert.ErrorIs(t, c.Authenticate(context.Background()), ErrAuth)

	c = NewController(&mockSource{}, ControllerConfig{})
	assert.NoError(t, c.Authenticate(context.Background()))
}

func TestRun_FailedIssueDoesNotAbortBatch(t *testing.T) {
	cfg := config.DefaultDownload()
	cfg.Output = t.TempDir()
	source := issueSource(t, testManifest(1))

	c := newTestController(source, cfg)
	report, err := c.Run(context.Background(), []string{"not a locator", testIssueID})
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.ErrorIs(t, report.Results[0].Err, ErrResolution)
	assert.Equal(t, StageResolving, report.Results[0].Stage)
	assert.Equal(t, "not a locator", report.Results[0].Locator)
	assert.NoError(t, report.Results[1].Err)
	assert.Equal(t, 1, report.Failed())
	assert.Equal(t, 1, report.Succeeded())
}

func TestRun_CandidateFailingReResolutionIsSkipped(t *testing.T) {
	cfg := config.DefaultDownload()
	cfg.Output = t.TempDir()
	cfg.MaxDL = 3
	candidates := candidateList(3)

	png := createTestPNG(t)
	var current string
	source := &mockSource{
		getInfoFunc: func(_ context.Context, id string) (*data.IssueMetadata, error) {
			switch id {
			case candidates[0].ID, candidates[2].ID:
				for _, c := range candidates {
					if c.ID == id {
						meta := c
						return &meta, nil
					}
				}
			}
			return nil, sources.ErrNotFound
		},
		listPublicationsFunc: func(context.Context, string, string) ([]data.IssueMetadata, error) {
			return candidates, nil
		},
		getManifestFunc: func(_ context.Context, id string) (*data.Manifest, error) {
			current = id
			return testManifest(1), nil
		},
		fetchFunc: func(context.Context, string) ([]byte, error) {
			return obfuscated(png, current), nil
		},
	}

	c := newTestController(source, cfg)
	report, err := c.Run(context.Background(), []string{"collection00000000000001"})
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.NoError(t, report.Results[0].Err)
	assert.ErrorIs(t, report.Results[1].Err, ErrResolution)
	assert.Equal(t, candidates[1].ID, report.Results[1].Issue.ID)
	assert.NoError(t, report.Results[2].Err)
	assert.Zero(t, source.called("GetManifest "+candidates[1].ID))
}

func TestRun_SelectorResultIsClamped(t *testing.T) {
	cfg := config.DefaultDownload()
	cfg.Output = t.TempDir()

	source := &mockSource{
		listPublicationsFunc: func(context.Context, string, string) ([]data.IssueMetadata, error) {
			return candidateList(2), nil
		},
	}
	c := newTestController(source, cfg, func(cc *ControllerConfig) { cc.Selector = stubSelector{n: 10} })
	report, err := c.Run(context.Background(), []string{testIssueID})
	require.NoError(t, err)

	// candidates never resolve in this source, so each selected one fails
	assert.Len(t, report.Results, 2)
	assert.Equal(t, 2, report.Failed())
}

func TestRun_SelectorCanDeclineEverything(t *testing.T) {
	source := &mockSource{
		listPublicationsFunc: func(context.Context, string, string) ([]data.IssueMetadata, error) {
			return candidateList(4), nil
		},
	}
	c := newTestController(source, config.DefaultDownload(), func(cc *ControllerConfig) { cc.Selector = stubSelector{n: 0} })
	report, err := c.Run(context.Background(), []string{testIssueID})
	require.NoError(t, err)

	assert.Empty(t, report.Results)
	assert.Zero(t, source.called("GetManifest"))
}

func TestRun_SelectorErrorFailsLocator(t *testing.T) {
	source := &mockSource{
		listPublicationsFunc: func(context.Context, string, string) ([]data.IssueMetadata, error) {
			return candidateList(4), nil
		},
	}
	c := newTestController(source, config.DefaultDownload(), func(cc *ControllerConfig) {
		cc.Selector = stubSelector{err: errors.New("prompt closed")}
	})
	report, err := c.Run(context.Background(), []string{testIssueID})
	require.NoError(t, err)

	require.Len(t, report.Results, 1)
	assert.Error(t, report.Results[0].Err)
}

func TestRun_RejectedManifestAbortsRun(t *testing.T) {
	cfg := config.DefaultDownload()
	cfg.Output = t.TempDir()
	source := issueSource(t, nil)
	source.getManifestFunc = func(context.Context, string) (*data.Manifest, error) {
		return nil, sources.ErrUnauthorized
	}

	c := newTestController(source, cfg)
	report, err := c.Run(context.Background(), []string{testIssueID, testIssueID})

	assert.ErrorIs(t, err, ErrAuth)
	require.Len(t, report.Results, 1, "the second issue is never attempted")
	var issueErr *IssueError
	require.ErrorAs(t, report.Results[0].Err, &issueErr)
	assert.Equal(t, StageFetching, issueErr.Stage)
}

func TestRun_TransportFailureContinuesBatch(t *testing.T) {
	cfg := config.DefaultDownload()
	cfg.Output = t.TempDir()
	source := issueSource(t, testManifest(2))
	good := source.fetchFunc
	calls := 0
	source.fetchFunc = func(ctx context.Context, url string) ([]byte, error) {
		calls++
		if calls == 1 {
			return nil, ErrTransport
		}
		return good(ctx, url)
	}

	c := newTestController(source, cfg)
	report, err := c.Run(context.Background(), []string{testIssueID, testIssueID})
	require.NoError(t, err)

	require.Len(t, report.Results, 2)
	assert.ErrorIs(t, report.Results[0].Err, ErrTransport)
	assert.NoError(t, report.Results[1].Err)
}

func TestProcessIssue_AssemblyFailureKeepsWorkingSet(t *testing.T) {
	cfg := config.DefaultDownload()
	cfg.Output = t.TempDir()

	c := newTestController(issueSource(t, testManifest(0)), cfg)
	result := c.ProcessIssue(context.Background(), data.IssueMetadata{ID: testIssueID, Title: "Empty", Issue: "1", Date: "2024-01-01"})

	assert.ErrorIs(t, result.Err, ErrAssembly)
	assert.Equal(t, StageAssembling, result.Stage)
	info, err := os.Stat(result.WorkDir)
	require.NoError(t, err, "working set must survive a failed assembly")
	assert.True(t, info.IsDir())
}

func TestProcessIssue_DecodeFailureKeepsWorkingSet(t *testing.T) {
	cfg := config.DefaultDownload()
	cfg.Output = t.TempDir()
	source := issueSource(t, testManifest(2))
	source.fetchFunc = func(context.Context, string) ([]byte, error) {
		return []byte("garbage"), nil
	}

	c := newTestController(source, cfg)
	result := c.ProcessIssue(context.Background(), data.IssueMetadata{ID: testIssueID, Title: "Broken"})

	assert.ErrorIs(t, result.Err, ErrDecode)
	assert.Equal(t, StageFetching, result.Stage)
	_, err := os.Stat(result.WorkDir)
	assert.NoError(t, err)
}

func TestProcessIssue_ExistingOutputIsNotOverwritten(t *testing.T) {
	cfg := config.DefaultDownload()
	cfg.Output = t.TempDir()
	existing := filepath.Join(cfg.Output, testBaseName+".pdf")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	c := newTestController(issueSource(t, testManifest(1)), cfg)
	result := c.ProcessIssue(context.Background(), data.IssueMetadata{ID: testIssueID, Title: "Wired", Issue: "March 2024", Date: "2024-03-01"})
	require.NoError(t, result.Err)

	assert.Equal(t, filepath.Join(cfg.Output, testBaseName+"_.pdf"), result.Output)
	content, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "old", string(content))
}

func TestRun_ContextCancelledStopsBatch(t *testing.T) {
	cfg := config.DefaultDownload()
	cfg.Output = t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	source := issueSource(t, testManifest(1))
	source.getManifestFunc = func(context.Context, string) (*data.Manifest, error) {
		cancel()
		return nil, context.Canceled
	}

	c := newTestController(source, cfg)
	report, err := c.Run(ctx, []string{testIssueID, testIssueID})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, report.Results, 1)
}

func TestIssueError(t *testing.T) {
	err := &IssueError{IssueID: "abc", Stage: StageAssembling, Err: ErrAssembly}
	assert.Equal(t, "issue abc: assembling: cannot assemble container", err.Error())
	assert.ErrorIs(t, err, ErrAssembly)
}

func TestProcessIssue_SameNameGetsFreshWorkingSet(t *testing.T) {
	cfg := config.DefaultDownload()
	cfg.Output = t.TempDir()
	cfg.Pattern = "title"
	cfg.Container = "cbz"
	cfg.NoClean = true

	pages := map[string]int{"first": 4, "second": 2}
	source := servingSource(t, testIssueID)
	current := "first"
	source.getManifestFunc = func(context.Context, string) (*data.Manifest, error) {
		return testManifest(pages[current]), nil
	}

	c := newTestController(source, cfg)
	first := c.ProcessIssue(context.Background(), data.IssueMetadata{ID: testIssueID, Title: "Wired"})
	require.NoError(t, first.Err)

	current = "second"
	second := c.ProcessIssue(context.Background(), data.IssueMetadata{ID: testIssueID, Title: "Wired"})
	require.NoError(t, second.Err)

	assert.Equal(t, filepath.Join(cfg.Output, "Wired"), first.WorkDir)
	assert.Equal(t, filepath.Join(cfg.Output, "Wired_"), second.WorkDir)
	assert.Equal(t, []string{"page_000.jpeg", "page_001.jpeg"}, listDir(t, second.WorkDir))

	r, err := zip.OpenReader(second.Output)
	require.NoError(t, err)
	defer r.Close()
	assert.Len(t, r.File, 2)
}

func TestProcessIssue_LeftoverWorkingSetIsNotReused(t *testing.T) {
	cfg := config.DefaultDownload()
	cfg.Output = t.TempDir()
	stale := filepath.Join(cfg.Output, testBaseName)
	require.NoError(t, os.Mkdir(stale, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stale, "page_009.jpeg"), []byte("stale"), 0o644))

	c := newTestController(issueSource(t, testManifest(1)), cfg)
	result := c.ProcessIssue(context.Background(), data.IssueMetadata{ID: testIssueID, Title: "Wired", Issue: "March 2024", Date: "2024-03-01"})
	require.NoError(t, result.Err)

	assert.Equal(t, filepath.Join(cfg.Output, testBaseName+"_"), result.WorkDir)
	assert.Equal(t, []string{"page_009.jpeg"}, listDir(t, stale))
}
