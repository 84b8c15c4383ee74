package sources

import (
	"context"
	"errors"

	"github.com/kerbaras/readly/pkg/data"
)

var (
	// ErrNotFound reports an id the service does not know.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized reports a manifest request rejected for the token.
	ErrUnauthorized = errors.New("token rejected by service")
	// ErrNoIssueID reports a product page without an embedded issue id.
	ErrNoIssueID = errors.New("no issue id on product page")
)

// CollectionKinds are the collection listings tried, in order, for an id
// that is not an issue.
var CollectionKinds = []string{"magazines", "newspapers"}

type Source interface {
	ValidateToken(ctx context.Context) bool
	GetInfo(ctx context.Context, issueID string) (*data.IssueMetadata, error)
	ListPublications(ctx context.Context, kind, collectionID string) ([]data.IssueMetadata, error)
	GetManifest(ctx context.Context, issueID string) (*data.Manifest, error)
	ResolveProduct(ctx context.Context, productURL string) (string, error)
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// LatestQuery filters the latest-publications listing. Empty fields mean all.
type LatestQuery struct {
	Limit      int
	Countries  []string
	Languages  []string
	Categories []string
}
