package screens

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kerbaras/readly/pkg/app/components"
	"github.com/kerbaras/readly/pkg/app/styles"
	"github.com/kerbaras/readly/pkg/data"
)

// ErrSelectionCancelled is returned when the prompt is left without an answer.
var ErrSelectionCancelled = errors.New("selection cancelled")

// SelectScreen asks how many of the leading candidates to download.
type SelectScreen struct {
	list      *components.CandidateList
	input     textinput.Model
	limit     int
	count     int
	done      bool
	cancelled bool
	err       string
	width     int
}

func NewSelectScreen(candidates []data.IssueMetadata, limit int) *SelectScreen {
	limit = min(limit, len(candidates))

	ti := textinput.New()
	ti.Placeholder = strconv.Itoa(limit)
	ti.Focus()
	ti.CharLimit = 4
	ti.Width = 10

	list := components.NewCandidateList(candidates)
	list.Selected = limit

	return &SelectScreen{
		list:  list,
		input: ti,
		limit: limit,
		count: limit,
	}
}

func (s *SelectScreen) Init() tea.Cmd {
	return textinput.Blink
}

func (s *SelectScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.list.Width = msg.Width

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			s.cancelled = true
			return s, tea.Quit

		case tea.KeyEnter:
			n, err := s.parse()
			if err != nil {
				s.err = err.Error()
				return s, nil
			}
			s.count = n
			s.done = true
			return s, tea.Quit
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	if n, err := s.parse(); err == nil {
		s.list.Selected = n
		s.err = ""
	}
	return s, cmd
}

// parse reads the typed count; an empty input means the limit.
func (s *SelectScreen) parse() (int, error) {
	value := strings.TrimSpace(s.input.Value())
	if value == "" {
		return s.limit, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 || n > s.limit {
		return 0, fmt.Errorf("enter a number between 0 and %d", s.limit)
	}
	return n, nil
}

func (s *SelectScreen) View() string {
	if s.done || s.cancelled {
		return ""
	}

	prompt := lipgloss.JoinHorizontal(lipgloss.Center,
		styles.TextStyle.Render(fmt.Sprintf("How many issues to download (max %d)? ", s.limit)),
		styles.FocusedInputStyle.Render(s.input.View()),
	)

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(fmt.Sprintf("%d issues found", len(s.list.Items))))
	b.WriteString("\n")
	b.WriteString(s.list.View())
	b.WriteString("\n")
	b.WriteString(prompt)
	if s.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.StatusError.Render(s.err))
	}
	b.WriteString(styles.HelpStyle.Render("\nenter: confirm • esc: cancel"))
	return b.String()
}

// Count is the confirmed number of issues.
func (s *SelectScreen) Count() int { return s.count }

func (s *SelectScreen) Cancelled() bool { return s.cancelled }

// Prompt asks a human through a bubbletea program. It satisfies the
// pipeline's Selector.
type Prompt struct {
	in  io.Reader
	out io.Writer
}

func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: in, out: out}
}

func (p *Prompt) Select(ctx context.Context, candidates []data.IssueMetadata, limit int) (int, error) {
	if len(candidates) == 0 || limit <= 0 {
		return 0, nil
	}

	model := NewSelectScreen(candidates, limit)
	program := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)
	final, err := program.Run()
	if err != nil {
		return 0, fmt.Errorf("selection prompt: %w", err)
	}

	screen, ok := final.(*SelectScreen)
	if !ok || screen.Cancelled() {
		return 0, ErrSelectionCancelled
	}
	return screen.Count(), nil
}
