package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/kerbaras/readly/pkg/data"
	"github.com/kerbaras/readly/pkg/transport"
	"github.com/tidwall/gjson"
)

const (
	DefaultAPIURL     = "https://api.readly.com"
	DefaultCDNURL     = "https://d3og6tlt23zks5.cloudfront.net"
	DefaultUserAgent  = "okhttp/3.12.1"
	DefaultResolution = 2400

	// pages are always requested as webp; the local re-encode picks the final format
	manifestFormat = "webp"
)

var productIssuePattern = regexp.MustCompile(`(?i)issue(?:[_-]?id)?["']?\s*[:=/]\s*["']?([0-9a-z]{24})\b`)

type Endpoints struct {
	API string
	CDN string
}

type Readly struct {
	client     *transport.Client
	token      string
	userAgent  string
	endpoints  Endpoints
	resolution int
}

func NewReadly(client *transport.Client, token, userAgent string, endpoints Endpoints, resolution int) *Readly {
	if endpoints.API == "" {
		endpoints.API = DefaultAPIURL
	}
	if endpoints.CDN == "" {
		endpoints.CDN = DefaultCDNURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if resolution <= 0 {
		resolution = DefaultResolution
	}
	return &Readly{
		client:     client,
		token:      token,
		userAgent:  userAgent,
		endpoints:  endpoints,
		resolution: resolution,
	}
}

func (r *Readly) headers() http.Header {
	h := http.Header{}
	h.Set("X-Auth-Token", r.token)
	h.Set("User-Agent", r.userAgent)
	return h
}

func (r *Readly) get(ctx context.Context, url string) (*transport.Response, error) {
	return r.client.Get(ctx, url, r.headers())
}

// ValidateToken reports whether the token has at least one active
// subscription. Any failure or malformed answer counts as invalid.
func (r *Readly) ValidateToken(ctx context.Context) bool {
	resp, err := r.get(ctx, r.endpoints.API+"/subscriptions")
	if err != nil || !resp.OK() || !gjson.ValidBytes(resp.Body) {
		return false
	}
	subs := gjson.GetBytes(resp.Body, "subscriptions")
	if !subs.IsArray() {
		return false
	}
	for _, s := range subs.Array() {
		if s.Get("isActive").Type == gjson.True {
			return true
		}
	}
	return false
}

// GetInfo fetches issue metadata. An empty body, a 404 or a body mentioning
// "not found" yields ErrNotFound.
func (r *Readly) GetInfo(ctx context.Context, issueID string) (*data.IssueMetadata, error) {
	resp, err := r.get(ctx, fmt.Sprintf("%s/content/%s", r.endpoints.CDN, issueID))
	if err != nil {
		return nil, err
	}
	body := bytes.TrimSpace(resp.Body)
	if resp.StatusCode == http.StatusNotFound || len(body) == 0 ||
		bytes.Contains(bytes.ToUpper(body), []byte("NOT FOUND")) {
		return nil, fmt.Errorf("issue %s: %w", issueID, ErrNotFound)
	}
	if !resp.OK() || !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("issue %s: unexpected response (status %d)", issueID, resp.StatusCode)
	}

	meta := parseIssue(gjson.ParseBytes(body))
	if meta.ID == "" {
		meta.ID = issueID
	}
	return &meta, nil
}

// ListPublications lists the issues of a collection of the given kind.
// An unknown collection yields ErrNotFound.
func (r *Readly) ListPublications(ctx context.Context, kind, collectionID string) ([]data.IssueMetadata, error) {
	resp, err := r.get(ctx, fmt.Sprintf("%s/%s/%s", r.endpoints.CDN, kind, collectionID))
	if err != nil {
		return nil, err
	}
	body := bytes.TrimSpace(resp.Body)
	if resp.StatusCode == http.StatusNotFound || len(body) == 0 {
		return nil, fmt.Errorf("%s %s: %w", kind, collectionID, ErrNotFound)
	}
	if !resp.OK() || !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%s %s: unexpected response (status %d)", kind, collectionID, resp.StatusCode)
	}
	return parseIssues(gjson.GetBytes(body, "content")), nil
}

// Latest lists the most recent publications of one kind.
func (r *Readly) Latest(ctx context.Context, kind string, q LatestQuery) ([]data.IssueMetadata, error) {
	if q.Limit <= 0 {
		q.Limit = 25
	}
	params := url.Values{}
	params.Set("ppage", "1")
	params.Set("per_page", strconv.Itoa(q.Limit))
	params.Set("origin", "")
	params.Set("countries", strings.Join(q.Countries, ","))
	params.Set("languages", strings.Join(q.Languages, ","))
	params.Set("categories", strings.Join(q.Categories, ","))

	resp, err := r.client.Get(ctx, fmt.Sprintf("%s/%s?%s", r.endpoints.CDN, kind, params.Encode()), nil)
	if err != nil {
		return nil, err
	}
	if !resp.OK() || !gjson.ValidBytes(resp.Body) {
		return nil, fmt.Errorf("latest %s: unexpected response (status %d)", kind, resp.StatusCode)
	}
	return parseIssues(gjson.GetBytes(resp.Body, "content")), nil
}

// GetManifest fetches page and article URLs for an issue.
func (r *Readly) GetManifest(ctx context.Context, issueID string) (*data.Manifest, error) {
	u := fmt.Sprintf("%s/issue/%s/content?format=%s&r=%d", r.endpoints.API, issueID, manifestFormat, r.resolution)
	resp, err := r.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("manifest %s: %w", issueID, ErrUnauthorized)
	}
	if !gjson.ValidBytes(resp.Body) {
		return nil, fmt.Errorf("manifest %s: malformed response (status %d)", issueID, resp.StatusCode)
	}

	doc := gjson.ParseBytes(resp.Body)
	if success := doc.Get("success"); success.Exists() && !success.Bool() {
		return nil, fmt.Errorf("manifest %s: %w", issueID, ErrUnauthorized)
	}

	manifest := &data.Manifest{}
	for _, page := range doc.Get("content").Array() {
		manifest.Pages = append(manifest.Pages, page.String())
	}
	if articles := doc.Get("articles"); articles.Exists() {
		manifest.HasArticles = true
		for _, a := range articles.Array() {
			manifest.Articles = append(manifest.Articles, data.Article{
				Key: a.Get("key").String(),
				URL: a.Get("url").String(),
			})
		}
	}
	return manifest, nil
}

// Fetch downloads raw content bytes. Content URLs are pre-signed, so no
// credentials are attached.
func (r *Readly) Fetch(ctx context.Context, url string) ([]byte, error) {
	h := http.Header{}
	h.Set("User-Agent", r.userAgent)
	resp, err := r.client.Get(ctx, url, h)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return resp.Body, nil
}

// ResolveProduct fetches a product page and extracts the issue id it embeds.
func (r *Readly) ResolveProduct(ctx context.Context, productURL string) (string, error) {
	h := http.Header{}
	h.Set("User-Agent", r.userAgent)
	resp, err := r.client.Get(ctx, productURL, h)
	if err != nil {
		return "", err
	}
	if !resp.OK() {
		return "", fmt.Errorf("product page %s: status %d", productURL, resp.StatusCode)
	}
	id, ok := extractIssueID(resp.Body)
	if !ok {
		return "", fmt.Errorf("product page %s: %w", productURL, ErrNoIssueID)
	}
	return id, nil
}

// extractIssueID looks at link targets and meta contents first, then inline
// scripts, then the raw body.
func extractIssueID(body []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		var found string
		doc.Find("a[href], link[href], meta[content]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, attr := range []string{"href", "content"} {
				if v, ok := s.Attr(attr); ok {
					if m := productIssuePattern.FindStringSubmatch(v); m != nil {
						found = m[1]
						return false
					}
				}
			}
			return true
		})
		if found != "" {
			return found, true
		}
		doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if m := productIssuePattern.FindStringSubmatch(s.Text()); m != nil {
				found = m[1]
				return false
			}
			return true
		})
		if found != "" {
			return found, true
		}
	}
	if m := productIssuePattern.FindSubmatch(body); m != nil {
		return string(m[1]), true
	}
	return "", false
}

func parseIssues(list gjson.Result) []data.IssueMetadata {
	items := list.Array()
	out := make([]data.IssueMetadata, 0, len(items))
	for _, item := range items {
		out = append(out, parseIssue(item))
	}
	return out
}

func parseIssue(v gjson.Result) data.IssueMetadata {
	publish := v.Get("publish_date").String()
	date := publish
	if len(date) > len("YYYY-MM-DD") {
		date = date[:len("YYYY-MM-DD")]
	}
	issue := date
	if label := v.Get("issue"); label.Exists() && label.String() != "" {
		issue = label.String()
	}
	return data.IssueMetadata{
		ID:          v.Get("id").String(),
		Title:       v.Get("title").String(),
		Issue:       issue,
		Date:        date,
		PublishDate: publish,
	}
}
