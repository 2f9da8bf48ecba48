package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/HaPhanBaoMinh/kskew/internal/domain"
	"github.com/HaPhanBaoMinh/kskew/internal/ui/styles"
	"github.com/HaPhanBaoMinh/kskew/internal/ui/widgets"
)

// FetchFunc produces a fresh report.
type FetchFunc func(ctx context.Context) (domain.ResultSet, error)

type Model struct {
	ctx      context.Context
	fetch    FetchFunc
	interval time.Duration
	title    string

	table  table.Model
	detail viewport.Model

	rows    domain.ResultSet
	updated time.Time
	loading bool
	// seq numbers fetches; applied is the newest one shown.
	seq, applied int

	width, height int
	err           error
}

type tickMsg struct{}
type resultMsg struct {
	seq int
	rs  domain.ResultSet
	at  time.Time
}
type errMsg struct {
	seq int
	error
}

func New(ctx context.Context, fetch FetchFunc, interval time.Duration, title string) Model {
	t := table.New(table.WithFocused(true))
	t.SetHeight(12)
	t.SetWidth(100)

	m := Model{
		ctx:      ctx,
		fetch:    fetch,
		interval: interval,
		title:    title,
		table:    t,
		detail:   viewport.New(100, 8),
		loading:  true,
		seq:      1,
	}
	m.rebuildTable()
	return m
}

// Run blocks until the user quits or ctx is canceled.
func Run(ctx context.Context, fetch FetchFunc, interval time.Duration, title string) error {
	_, err := tea.NewProgram(New(ctx, fetch, interval, title), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(m.seq), m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m Model) refresh(seq int) tea.Cmd {
	return func() tea.Msg {
		rs, err := m.fetch(m.ctx)
		if err != nil {
			return errMsg{seq: seq, error: err}
		}
		return resultMsg{seq: seq, rs: rs, at: time.Now()}
	}
}

// startRefresh issues the next fetch.
func (m *Model) startRefresh() tea.Cmd {
	m.seq++
	m.loading = true
	return m.refresh(m.seq)
}

// stale reports whether a fetch was overtaken by one already shown.
func (m Model) stale(seq int) bool { return seq < m.applied }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height

		headerH := lipgloss.Height(styles.Header.Render("x"))
		footerH := lipgloss.Height(styles.Footer.Render("x"))
		base := m.height - headerH - footerH - 2
		if base < 10 {
			base = 10
		}
		m.table.SetHeight(int(float64(base) * 0.55))
		m.table.SetWidth(m.width - 4)
		m.detail.Width = m.width - 6
		m.detail.Height = base - m.table.Height() - 2
		m.rebuildTable()
		m.rebuildDetail()
		return m, nil

	case resultMsg:
		if m.stale(msg.seq) {
			return m, nil
		}
		m.applied = msg.seq
		m.rows = msg.rs
		m.updated = msg.at
		m.loading = msg.seq < m.seq
		m.err = nil
		m.rebuildTable()
		if cur := m.table.Cursor(); len(m.rows) > 0 && (cur < 0 || cur >= len(m.rows)) {
			m.table.SetCursor(0)
		}
		m.rebuildDetail()
		return m, nil

	case errMsg:
		if m.stale(msg.seq) {
			return m, nil
		}
		m.applied = msg.seq
		m.err = msg.error
		m.loading = msg.seq < m.seq
		return m, nil

	case tickMsg:
		if m.loading {
			return m, m.tick()
		}
		return m, tea.Batch(m.startRefresh(), m.tick())

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit

		case "r":
			return m, m.startRefresh()

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd

		case "up", "k", "down", "j", "home", "end":
			var cmd tea.Cmd
			m.table, cmd = m.table.Update(msg)
			m.rebuildDetail()
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) rebuildTable() {
	wOwner, wTotal, wSkew, wDomains := ownerColWidths(m.table.Width())
	cols := []table.Column{
		{Title: "OWNER", Width: wOwner},
		{Title: "TOTAL", Width: wTotal},
		{Title: "MAX SKEW", Width: wSkew},
		{Title: "DOMAINS", Width: wDomains},
	}
	rows := make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		rows = append(rows, table.Row{
			r.Resource.String(),
			fmt.Sprintf("%d", r.Total()),
			fmt.Sprintf("%d", r.MaxSkew()),
			fmt.Sprintf("%d", len(r.Topology)),
		})
	}
	m.table.SetColumns(cols)
	m.table.SetRows(rows)
}

func (m *Model) rebuildDetail() {
	m.detail.SetContent(m.renderDetail())
}

func (m Model) selected() (domain.SkewRow, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return domain.SkewRow{}, false
	}
	return m.rows[i], true
}

func (m Model) renderDetail() string {
	r, ok := m.selected()
	if !ok {
		return styles.Faint.Render("No owner selected")
	}
	var top int
	for _, c := range r.Topology {
		if c.Count > top {
			top = c.Count
		}
	}
	if top == 0 {
		top = 1
	}
	wDomain, wBar := detailColWidths(m.detail.Width, r.Topology)

	var b strings.Builder
	b.WriteString(styles.Title.Render(r.Resource.String()))
	for _, c := range r.Topology {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%-*s %4d %s %s",
			wDomain, c.Domain, c.Count,
			widgets.Bar(float64(c.Count)/float64(top), wBar),
			styles.Skew(c.Skew).Render(fmt.Sprintf("skew %d", c.Skew)),
		))
	}
	return b.String()
}

func (m Model) View() string {
	status := "loading"
	if !m.updated.IsZero() {
		status = "updated " + m.updated.Format("15:04:05")
	}
	head := styles.Header.Render(fmt.Sprintf("kskew  │ %s  │ every %s  │ %s", m.title, m.interval, status))
	body := lipgloss.NewStyle().Padding(0, 1).Render(m.table.View())

	var detail string
	switch {
	case m.err != nil:
		detail = styles.Box.Width(m.width - 2).Render(styles.Danger.Render("Error: " + m.err.Error()))
	case len(m.rows) == 0 && !m.loading:
		detail = styles.Box.Width(m.width - 2).Render(styles.Faint.Render("No resources found."))
	default:
		detail = styles.Box.Width(m.width - 2).Render(m.detail.View())
	}
	footer := styles.Footer.Render("↑/↓ move • [pgup/pgdn] scroll domains • [r] refresh • [q] quit")

	return lipgloss.JoinVertical(lipgloss.Left, head, body, detail, footer)
}
