package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/kerbaras/readly/pkg/app/styles"
	"github.com/kerbaras/readly/pkg/services"
)

// ProgressTracker keeps the latest event per issue and renders it.
type ProgressTracker struct {
	issues map[string]*services.Progress
	order  []string
	bar    progress.Model
	width  int
}

func NewProgressTracker(width int) *ProgressTracker {
	barWidth := width - 4
	if barWidth < 10 {
		barWidth = 10
	}
	return &ProgressTracker{
		issues: make(map[string]*services.Progress),
		bar: progress.New(
			progress.WithGradient(string(styles.Secondary), string(styles.Primary)),
			progress.WithWidth(barWidth),
			progress.WithoutPercentage(),
		),
		width: width,
	}
}

func (p *ProgressTracker) Update(event services.Progress) {
	if event.Candidates != nil {
		return
	}
	if event.Stage == services.StageDone {
		// finished issues leave the active view
		delete(p.issues, event.IssueID)
		p.order = removeID(p.order, event.IssueID)
		return
	}

	if prev, ok := p.issues[event.IssueID]; ok {
		if event.Title == "" {
			event.Title = prev.Title
		}
	} else {
		p.order = append(p.order, event.IssueID)
	}
	ev := event // Copy
	p.issues[event.IssueID] = &ev
}

func (p *ProgressTracker) Clear() {
	p.issues = make(map[string]*services.Progress)
	p.order = nil
}

func (p *ProgressTracker) HasActive() bool {
	return len(p.issues) > 0
}

func (p *ProgressTracker) View() string {
	if len(p.issues) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render("Active Downloads"))
	b.WriteString("\n\n")

	for _, id := range p.order {
		b.WriteString(p.Line(*p.issues[id]))
		b.WriteString("\n")
	}
	return b.String()
}

// Line renders one event as a single status line, with a bar while pages
// are being fetched.
func (p *ProgressTracker) Line(event services.Progress) string {
	name := event.Title
	if name == "" {
		name = event.IssueID
	}
	status := styles.StatusStyle(string(event.Stage))

	switch {
	case event.Error != nil:
		return styles.StatusError.Render(fmt.Sprintf("✗ %s: %v", name, event.Error))
	case event.Stage == services.StageDone:
		return styles.StatusCompleted.Render(fmt.Sprintf("✓ %q successfully created", event.Output))
	case event.TotalPages > 0:
		label := "Page"
		if event.Message == "articles" {
			label = "Article"
		}
		return fmt.Sprintf("%s %s\n%s",
			status.Render(fmt.Sprintf("%s %d / %d", label, event.CurrentPage, event.TotalPages)),
			styles.MutedStyle.Render(name),
			p.renderBar(event.CurrentPage, event.TotalPages),
		)
	case event.Message != "":
		return styles.StatusWarning.Render(fmt.Sprintf("[INFO] %s: %s", name, event.Message))
	default:
		return status.Render(fmt.Sprintf("%s %s", event.Stage, name))
	}
}

func (p *ProgressTracker) renderBar(current, total int) string {
	if total == 0 {
		return ""
	}
	percent := float64(current) / float64(total)
	if percent > 1 {
		percent = 1
	}
	return p.bar.ViewAs(percent)
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
