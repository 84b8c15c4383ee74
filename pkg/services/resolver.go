package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/kerbaras/readly/pkg/data"
	"github.com/kerbaras/readly/pkg/sources"
)

var (
	issueIDPattern    = regexp.MustCompile(`^[0-9a-zA-Z]{24}$`)
	productURLPattern = regexp.MustCompile(`^https?://(?:www\.|[a-z]{2,3}\.)?readly\.com/`)
	goURLPattern      = regexp.MustCompile(`^https?://go\.readly\.com/`)
	siteURLPattern    = regexp.MustCompile(`https://go\.readly\.com/(.+)/(.+?)/(.+)`)
)

// LocatorKind tells how a locator string was recognized.
type LocatorKind int

const (
	LocatorUnknown LocatorKind = iota
	LocatorID
	LocatorProduct
	LocatorSite
)

// Locator is a parsed reference to an issue or a collection.
type Locator struct {
	Raw        string
	Kind       LocatorKind
	ID         string // issue or collection id; empty for product URLs until fetched
	Category   string
	MagazineID string
}

// ParseLocator classifies a locator without touching the network.
func ParseLocator(raw string) (Locator, error) {
	raw = strings.TrimSpace(raw)
	loc := Locator{Raw: raw}

	switch {
	case issueIDPattern.MatchString(raw):
		loc.Kind, loc.ID = LocatorID, raw
	case siteURLPattern.MatchString(raw):
		m := siteURLPattern.FindStringSubmatch(raw)
		loc.Kind = LocatorSite
		loc.Category = m[1]
		loc.MagazineID = cleanSegment(m[2])
		loc.ID = cleanSegment(m[3])
		if loc.ID == "" {
			return loc, fmt.Errorf("%w: %q has no issue id", ErrResolution, raw)
		}
	case productURLPattern.MatchString(raw) && !goURLPattern.MatchString(raw):
		loc.Kind = LocatorProduct
	default:
		return loc, fmt.Errorf("%w: unrecognized locator %q", ErrResolution, raw)
	}
	return loc, nil
}

// cleanSegment drops any query string or fragment and stray slashes.
func cleanSegment(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return strings.ReplaceAll(s, "/", "")
}

// Resolution is the outcome of resolving a locator. Exactly one of Issue and
// Candidates is meaningful: Issue is nil when the locator named a collection.
type Resolution struct {
	Locator      Locator
	Issue        *data.IssueMetadata
	CollectionID string
	Kind         string // collection kind that answered
	Candidates   []data.IssueMetadata
}

// IsCollection reports whether the caller must select among candidates.
func (r *Resolution) IsCollection() bool { return r.Issue == nil }

// Resolver turns locators into issue metadata or collection candidates.
type Resolver struct {
	source sources.Source
	logger *slog.Logger
}

func NewResolver(source sources.Source, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{source: source, logger: logger}
}

// Resolve parses locator, follows a product page if needed, and resolves the
// id it names.
func (r *Resolver) Resolve(ctx context.Context, locator string) (*Resolution, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}

	if loc.Kind == LocatorProduct {
		id, err := r.source.ResolveProduct(ctx, loc.Raw)
		if err != nil {
			if errors.Is(err, sources.ErrNoIssueID) {
				return nil, fmt.Errorf("%w: %w", ErrResolution, err)
			}
			return nil, err
		}
		r.logger.Debug("product page resolved", slog.String("url", loc.Raw), slog.String("issue_id", id))
		loc.ID = id
	}

	res, err := r.ResolveID(ctx, loc.ID)
	if err != nil {
		return nil, err
	}
	res.Locator = loc
	return res, nil
}

// ResolveID fetches metadata for id. When the service does not know id as an
// issue, the collection kinds are tried in order and the first non-empty
// listing is returned as candidates.
func (r *Resolver) ResolveID(ctx context.Context, id string) (*Resolution, error) {
	meta, err := r.source.GetInfo(ctx, id)
	if err == nil {
		return &Resolution{Issue: meta}, nil
	}
	if !errors.Is(err, sources.ErrNotFound) {
		return nil, err
	}

	r.logger.Info("id is not an issue, trying collections", slog.String("issue_id", id))
	for _, kind := range sources.CollectionKinds {
		list, err := r.source.ListPublications(ctx, kind, id)
		if errors.Is(err, sources.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(list) == 0 {
			continue
		}
		return &Resolution{CollectionID: id, Kind: kind, Candidates: list}, nil
	}

	return nil, fmt.Errorf("%w: %s is neither an issue nor a collection", ErrResolution, id)
}

// Metadata re-resolves a selected candidate. Unlike ResolveID it never falls
// back to collections.
func (r *Resolver) Metadata(ctx context.Context, id string) (*data.IssueMetadata, error) {
	meta, err := r.source.GetInfo(ctx, id)
	if errors.Is(err, sources.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrResolution, err)
	}
	return meta, err
}
