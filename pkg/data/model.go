package data

import "time"

// IssueMetadata describes one resolved issue. Collection listings reuse it for
// candidates, where only ID, Title, Issue and Date are filled.
type IssueMetadata struct {
	ID          string
	Title       string
	Issue       string // explicit label, or the publish date when the service has none
	Date        string // YYYY-MM-DD
	PublishDate string // raw value from the service
}

type Article struct {
	Key string
	URL string
}

// Manifest is the per-issue payload: page URLs in reading order and the
// optional article archives.
type Manifest struct {
	Pages       []string
	Articles    []Article
	HasArticles bool // false when the service omitted the articles section
}

type DownloadRecord struct {
	RunID      string
	IssueID    string
	Title      string
	Issue      string
	Date       string
	Output     string
	Status     string // "done", "failed"
	Error      string
	FinishedAt time.Time
}
