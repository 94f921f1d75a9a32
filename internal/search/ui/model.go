// Package ui renders a result set as an interactive table.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/petr-muller/taiga-query/internal/search/executor"
	"github.com/petr-muller/taiga-query/internal/search/query"
	"github.com/petr-muller/taiga-query/internal/taiga"
)

// Model represents the TUI model for browsing query results
type Model struct {
	table     table.Model
	result    query.ResultSet
	queryText string
	width     int
	height    int

	// displayed mirrors the table rows so the selection can show record
	// details
	displayed []*taiga.Record
}

// NewModel creates a new TUI model
func NewModel(queryText string, result query.ResultSet) Model {
	columns := []table.Column{
		{Title: "Ref", Width: 6},
		{Title: "Subject", Width: 40},
		{Title: "Status", Width: 12},
		{Title: "Assignee", Width: 14},
		{Title: "Milestone", Width: 14},
		{Title: "Modified", Width: 10},
	}
	if result.Grouped() {
		columns = append([]table.Column{{Title: "Group", Width: 14}}, columns...)
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(1),
	)

	s := table.DefaultStyles()
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("240")).
		Bold(true)
	t.SetStyles(s)

	m := Model{
		table:     t,
		result:    result,
		queryText: queryText,
	}

	m.updateTable()
	return m
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateTableSize()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the model
func (m Model) View() string {
	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	s.WriteString(headerStyle.Render(fmt.Sprintf("Query: %s", m.queryText)))
	s.WriteString("\n")

	infoStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))
	s.WriteString(infoStyle.Render(fmt.Sprintf("%d matching, executed %s in %s",
		m.result.Total,
		m.result.ExecutedAt.Format("2006-01-02 15:04:05"),
		m.result.Took.Round(time.Millisecond))))
	s.WriteString("\n")

	s.WriteString(m.table.View())
	s.WriteString("\n")

	if len(m.displayed) > 15 {
		scrollStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
		s.WriteString(scrollStyle.Render(fmt.Sprintf("Showing 15 of %d items - use arrow keys to scroll", len(m.displayed))))
		s.WriteString("\n")
	}

	if len(m.displayed) > 0 {
		cursor := m.table.Cursor()
		if cursor >= 0 && cursor < len(m.displayed) {
			selected := m.displayed[cursor]
			detailStyle := lipgloss.NewStyle().
				Foreground(lipgloss.Color("250")).
				MarginTop(1)
			s.WriteString(detailStyle.Render(fmt.Sprintf("Subject: %s", selected.Subject)))
			s.WriteString("\n")
		}
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		MarginTop(1)
	s.WriteString(helpStyle.Render("Press 'q' to quit, arrow keys to navigate"))

	return s.String()
}

// updateTable fills the table with the (possibly grouped) result set
func (m *Model) updateTable() {
	var rows []table.Row
	m.displayed = nil

	if m.result.Grouped() {
		for _, group := range m.result.Groups {
			for _, record := range group.Items {
				rows = append(rows, append(table.Row{group.Value}, m.recordToRow(record)...))
				m.displayed = append(m.displayed, record)
			}
		}
	} else {
		for _, record := range m.result.Results {
			rows = append(rows, m.recordToRow(record))
			m.displayed = append(m.displayed, record)
		}
	}

	m.table.SetRows(rows)
	m.updateTableSize()
}

// recordToRow converts a record to a table row
func (m *Model) recordToRow(record *taiga.Record) table.Row {
	modified := record.ModifiedDate
	if t, ok := parseDate(modified); ok {
		modified = t.Format("2006-01-02")
	}

	return table.Row{
		fmt.Sprintf("#%d", record.Ref),
		record.Subject,
		displayValue(record, "status"),
		displayValue(record, "assignee"),
		displayValue(record, "milestone"),
		modified,
	}
}

// displayValue renders a resolved field for display, with missing values
// shown as a dash.
func displayValue(record *taiga.Record, field string) string {
	resolved := executor.Resolve(record, field)
	if resolved == nil {
		return "-"
	}
	return fmt.Sprint(resolved)
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// updateTableSize caps the table at 15 visible rows plus the header
func (m *Model) updateTableSize() {
	tableHeight := min(len(m.displayed), 15) + 1
	if tableHeight < 2 {
		tableHeight = 2
	}
	m.table.SetHeight(tableHeight)
}

// min returns the minimum of two integers
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
