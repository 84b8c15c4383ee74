package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/kerbaras/readly/pkg/app/components"
	"github.com/kerbaras/readly/pkg/app/screens"
	"github.com/kerbaras/readly/pkg/app/styles"
	"github.com/kerbaras/readly/pkg/data"
	"github.com/kerbaras/readly/pkg/services"
)

// App is the human-facing side of a run: it renders progress events and
// provides the interactive selector.
type App struct {
	mu          sync.Mutex // held while rendering or while the prompt owns the terminal
	in          io.Reader
	out         io.Writer
	tracker     *components.ProgressTracker
	interactive bool
}

func NewApp(in io.Reader, out io.Writer, width int) *App {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if width <= 0 {
		width = 80
	}
	return &App{in: in, out: out, tracker: components.NewProgressTracker(width)}
}

// Selector returns the interactive count prompt. The prompt shows the
// candidates itself, so Render stops listing them, and progress lines wait
// until the prompt is gone. Call it before Watch.
func (a *App) Selector() services.Selector {
	a.interactive = true
	return a.exclusive(screens.NewPrompt(a.in, a.out))
}

func (a *App) exclusive(next services.Selector) services.Selector {
	return &exclusiveSelector{mu: &a.mu, next: next}
}

// exclusiveSelector keeps the renderer off the terminal while next runs.
type exclusiveSelector struct {
	mu   *sync.Mutex
	next services.Selector
}

func (s *exclusiveSelector) Select(ctx context.Context, candidates []data.IssueMetadata, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Select(ctx, candidates, limit)
}

// Watch renders events until the channel is closed.
func (a *App) Watch(events <-chan services.Progress) {
	for event := range events {
		a.Render(event)
	}
}

// Render prints one event as status lines.
func (a *App) Render(event services.Progress) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if event.Candidates != nil {
		if a.interactive {
			return
		}
		list := components.NewCandidateList(event.Candidates)
		fmt.Fprintln(a.out, styles.TitleStyle.Render(fmt.Sprintf("%d issues found", len(event.Candidates))))
		fmt.Fprintln(a.out, list.View())
		return
	}
	a.tracker.Update(event)
	fmt.Fprintln(a.out, a.tracker.Line(event))
}
