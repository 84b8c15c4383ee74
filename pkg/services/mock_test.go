package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/kerbaras/readly/pkg/data"
	"github.com/kerbaras/readly/pkg/integrations"
	"github.com/kerbaras/readly/pkg/sources"
)

// Mock implementations for testing

type mockSource struct {
	validateTokenFunc    func(ctx context.Context) bool
	getInfoFunc          func(ctx context.Context, id string) (*data.IssueMetadata, error)
	listPublicationsFunc func(ctx context.Context, kind, id string) ([]data.IssueMetadata, error)
	getManifestFunc      func(ctx context.Context, id string) (*data.Manifest, error)
	resolveProductFunc   func(ctx context.Context, url string) (string, error)
	fetchFunc            func(ctx context.Context, url string) ([]byte, error)

	mu    sync.Mutex
	calls []string
}

func (m *mockSource) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *mockSource) called(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (m *mockSource) ValidateToken(ctx context.Context) bool {
	m.record("ValidateToken")
	if m.validateTokenFunc != nil {
		return m.validateTokenFunc(ctx)
	}
	return true
}

func (m *mockSource) GetInfo(ctx context.Context, id string) (*data.IssueMetadata, error) {
	m.record("GetInfo " + id)
	if m.getInfoFunc != nil {
		return m.getInfoFunc(ctx, id)
	}
	return nil, sources.ErrNotFound
}

func (m *mockSource) ListPublications(ctx context.Context, kind, id string) ([]data.IssueMetadata, error) {
	m.record("ListPublications " + kind + " " + id)
	if m.listPublicationsFunc != nil {
		return m.listPublicationsFunc(ctx, kind, id)
	}
	return nil, sources.ErrNotFound
}

func (m *mockSource) GetManifest(ctx context.Context, id string) (*data.Manifest, error) {
	m.record("GetManifest " + id)
	if m.getManifestFunc != nil {
		return m.getManifestFunc(ctx, id)
	}
	return &data.Manifest{}, nil
}

func (m *mockSource) ResolveProduct(ctx context.Context, url string) (string, error) {
	m.record("ResolveProduct " + url)
	if m.resolveProductFunc != nil {
		return m.resolveProductFunc(ctx, url)
	}
	return "", sources.ErrNoIssueID
}

func (m *mockSource) Fetch(ctx context.Context, url string) ([]byte, error) {
	m.record("Fetch " + url)
	if m.fetchFunc != nil {
		return m.fetchFunc(ctx, url)
	}
	return nil, fmt.Errorf("unexpected fetch %s", url)
}

type mockRecorder struct {
	mu      sync.Mutex
	records []*data.DownloadRecord
}

func (r *mockRecorder) SaveDownload(rec *data.DownloadRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

type stubSelector struct {
	n   int
	err error
}

func (s stubSelector) Select(context.Context, []data.IssueMetadata, int) (int, error) {
	return s.n, s.err
}

// testIssueID is a valid 24 character id.
const testIssueID = "5f1a2b3c4d5e6f7a8b9c0d1e"

func createTestPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 12, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 12; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 15), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

// obfuscated returns content the way the service serves it for issueID.
func obfuscated(content []byte, issueID string) []byte {
	return integrations.Decode(content, issueID)
}

func testManifest(pages int, articles ...string) *data.Manifest {
	m := &data.Manifest{}
	for i := 0; i < pages; i++ {
		m.Pages = append(m.Pages, fmt.Sprintf("https://cdn.test/page/%d", i))
	}
	if len(articles) > 0 {
		m.HasArticles = true
		for _, key := range articles {
			m.Articles = append(m.Articles, data.Article{Key: key, URL: "https://cdn.test/article/" + key})
		}
	}
	return m
}

func candidateList(n int) []data.IssueMetadata {
	out := make([]data.IssueMetadata, n)
	for i := range out {
		out[i] = data.IssueMetadata{
			ID:    fmt.Sprintf("c%023d", i),
			Title: "Weekly",
			Issue: fmt.Sprintf("No %d", i+1),
			Date:  fmt.Sprintf("2024-01-%02d", i+1),
		}
	}
	return out
}
