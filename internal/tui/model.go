package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docrag/internal/domain"
	"docrag/internal/service"
	"docrag/internal/snippet"
)

// SearchPort is the TUI-facing subset of the service.
type SearchPort interface {
	Search(ctx context.Context, query string, opts service.SearchOptions) (domain.SearchResult, error)
	ExpandSnippet(ctx context.Context, sn domain.Snippet, contextSize int) string
}

type searchDoneMsg struct {
	query  string
	result domain.SearchResult
	err    error
}

type expandDoneMsg struct {
	chunkID string
	text    string
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	service     SearchPort
	opts        service.SearchOptions
	contextSize int
	input       textinput.Model
	viewport    viewport.Model
	result      domain.SearchResult
	groups      []snippet.Group
	expanded    map[string]string
	showExpand  bool
	summary     string
	status      string
	cursor      int
	ready       bool
	searching   bool
	lastQuery   string
}

// New creates a new TUI model instance. summary is shown under the header.
func New(svc SearchPort, opts service.SearchOptions, contextSize int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type query and press Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:     svc,
		opts:        opts,
		contextSize: contextSize,
		input:       ti,
		viewport:    vp,
		expanded:    make(map[string]string),
		summary:     summary,
		status:      "Loaded. Type to search.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) searchCmd(q string) tea.Cmd {
	svc, opts := m.service, m.opts
	return func() tea.Msg {
		res, err := svc.Search(context.Background(), q, opts)
		return searchDoneMsg{query: q, result: res, err: err}
	}
}

func (m Model) expandCmd(sn domain.Snippet) tea.Cmd {
	svc, size := m.service, m.contextSize
	return func() tea.Msg {
		return expandDoneMsg{chunkID: sn.ChunkID, text: svc.ExpandSnippet(context.Background(), sn, size)}
	}
}

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		totalHeaderLines := 4                                    // header, summary, answer, files
		totalFooterLines := 1                                    // status
		reserved := totalHeaderLines + totalFooterLines + qh + 1 // 1 spacer
		vh := max(3, msg.Height-reserved)
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case searchDoneMsg:
		m.searching = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.result = domain.SearchResult{}
		} else {
			m.result = msg.result
			if len(msg.result.Snippets) == 0 {
				m.status = fmt.Sprintf("No matches for %q", msg.query)
			} else {
				m.status = fmt.Sprintf("%d results for %q  (up/down to browse, tab to expand)", len(msg.result.Snippets), msg.query)
			}
		}
		m.groups = snippet.GroupByFile(m.result.Snippets)
		m.lastQuery = msg.query
		m.cursor = 0
		m.showExpand = false
		clear(m.expanded)
		m.viewport.SetContent(m.renderCurrentResult())
		m.viewport.GotoTop()
		return m, nil
	case expandDoneMsg:
		m.expanded[msg.chunkID] = msg.text
		m.viewport.SetContent(m.renderCurrentResult())
		return m, nil
	case tea.KeyMsg:
		// Global quits
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q != "" && !m.searching {
				m.searching = true
				m.status = fmt.Sprintf("Searching for %q...", q)
				return m, m.searchCmd(q)
			}
		case "down":
			if n := len(m.result.Snippets); n > 0 {
				m.cursor = (m.cursor + 1) % n
				return m.afterMove()
			}
		case "up":
			if n := len(m.result.Snippets); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				return m.afterMove()
			}
		case "tab":
			if len(m.result.Snippets) > 0 {
				m.showExpand = !m.showExpand
				return m.afterMove()
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// afterMove re-renders the current snippet, fetching its expansion when
// needed.
func (m Model) afterMove() (tea.Model, tea.Cmd) {
	m.viewport.SetContent(m.renderCurrentResult())
	m.viewport.GotoTop()
	if !m.showExpand {
		return m, nil
	}
	sn := m.result.Snippets[m.cursor]
	if _, ok := m.expanded[sn.ChunkID]; ok {
		return m, nil
	}
	return m, m.expandCmd(sn)
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Document Search")
	summary := dimStyle.Render(m.summary)
	answer := answerStyle.Render(m.renderAnswer())
	files := dimStyle.Render(m.renderFiles())
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return strings.Join([]string{header, summary, answer, files, results, input, status}, "\n")
}

func (m Model) renderAnswer() string {
	if m.result.Answer == "" {
		return ""
	}
	return "Answer: " + m.result.Answer
}

func (m Model) renderFiles() string {
	if len(m.groups) == 0 {
		return ""
	}
	parts := make([]string, len(m.groups))
	for i, g := range m.groups {
		parts[i] = fmt.Sprintf("%s (%d)", g.File, len(g.Snippets))
	}
	return "Files: " + strings.Join(parts, " | ")
}

func (m Model) renderCurrentResult() string {
	if len(m.result.Snippets) == 0 {
		return "No results yet."
	}
	sn := m.result.Snippets[m.cursor]
	title := fmt.Sprintf("Result %d/%d  %s  similarity=%.3f", m.cursor+1, len(m.result.Snippets), fileStyle.Render(sn.File), sn.Similarity)
	text := sn.Text
	if m.showExpand {
		if exp, ok := m.expanded[sn.ChunkID]; ok {
			text = exp
		} else {
			title += "  (expanding...)"
		}
	}
	return title + "\n\n" + highlight(text, m.lastQuery)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	fileStyle      = lipgloss.NewStyle().Underline(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func highlight(text, query string) string {
	var b strings.Builder
	for _, seg := range snippet.Highlight(text, query) {
		if seg.Match {
			b.WriteString(highlightStyle.Render(seg.Text))
		} else {
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}
