package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	bubbletable "github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/backyonatan-alt/restable/internal/config"
	"github.com/backyonatan-alt/restable/internal/fetcher"
	"github.com/backyonatan-alt/restable/internal/model"
	"github.com/backyonatan-alt/restable/internal/pipeline"
	"github.com/backyonatan-alt/restable/internal/table"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	urlStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// Form fields: base url, then two key/value pairs.
const (
	fieldBase = iota
	fieldKey1
	fieldValue1
	fieldKey2
	fieldValue2
	fieldCount
)

const maxColumnWidth = 24

var fieldDefaults = [fieldCount]struct{ prompt, value string }{
	{"base url: ", "https://data.police.uk/api/crimes-street/all-crime"},
	{"param 1:  ", "lat"},
	{"value 1:  ", "51.5080"},
	{"param 2:  ", "lng"},
	{"value 2:  ", "-0.1281"},
}

type modelState int

const (
	stateForm modelState = iota
	stateFetching
)

type interactiveModel struct {
	pipeline *pipeline.Pipeline
	out      string
	inputs   []textinput.Model
	focusIdx int
	state    modelState

	fetchedURL string
	result     *table.Table
	preview    bubbletable.Model
	status     string
	err        error
}

type fetchedMsg struct {
	url   string
	table *table.Table
	err   error
}

type savedMsg struct {
	path  string
	bytes int
	err   error
}

func runInteractive(cfg *config.Config, out string) error {
	a, err := build(context.Background(), cfg, false)
	if err != nil {
		return err
	}
	defer a.close()

	_, err = tea.NewProgram(newInteractiveModel(a.pipeline, out), tea.WithAltScreen()).Run()
	return err
}

func newInteractiveModel(p *pipeline.Pipeline, out string) *interactiveModel {
	m := &interactiveModel{pipeline: p, out: out, state: stateForm}
	m.inputs = make([]textinput.Model, fieldCount)
	for i, d := range fieldDefaults {
		ti := textinput.New()
		ti.Prompt = d.prompt
		ti.Placeholder = "e.g. " + d.value
		ti.SetValue(d.value)
		ti.Width = 60
		if i == fieldBase {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	return m
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

// targetURL is the url assembled from the current form values.
func (m *interactiveModel) targetURL() string {
	return fetcher.BuildURL(m.inputs[fieldBase].Value(), []fetcher.Param{
		{Key: m.inputs[fieldKey1].Value(), Value: m.inputs[fieldValue1].Value()},
		{Key: m.inputs[fieldKey2].Value(), Value: m.inputs[fieldValue2].Value()},
	})
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "tab", "down":
			m.focus((m.focusIdx + 1) % fieldCount)
			return m, nil

		case "shift+tab", "up":
			m.focus((m.focusIdx + fieldCount - 1) % fieldCount)
			return m, nil

		case "enter":
			if m.state == stateFetching {
				return m, nil
			}
			url := m.targetURL()
			if url == "" {
				m.err = fmt.Errorf("enter a base url first")
				return m, nil
			}
			m.state = stateFetching
			m.err = nil
			m.status = "fetching " + url
			return m, m.fetch(url)

		case "ctrl+s":
			if m.result == nil {
				m.err = fmt.Errorf("nothing to save yet")
				return m, nil
			}
			return m, m.save(m.result)
		}

	case fetchedMsg:
		m.state = stateForm
		m.status = ""
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.fetchedURL = msg.url
		m.result = msg.table
		m.preview = newPreviewTable(msg.table)
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("wrote %d bytes to %s", msg.bytes, msg.path)
		return m, nil
	}

	if m.state == stateForm {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}
	return m, nil
}

func (m *interactiveModel) focus(idx int) {
	m.inputs[m.focusIdx].Blur()
	m.focusIdx = idx
	m.inputs[m.focusIdx].Focus()
}

func (m *interactiveModel) fetch(url string) tea.Cmd {
	return func() tea.Msg {
		t, err := m.pipeline.Refresh(context.Background(), url)
		return fetchedMsg{url: url, table: t, err: err}
	}
}

func (m *interactiveModel) save(t *table.Table) tea.Cmd {
	path := m.out
	return func() tea.Msg {
		data, err := t.CSV()
		if err != nil {
			return savedMsg{err: err}
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return savedMsg{err: fmt.Errorf("write csv: %w", err)}
		}
		return savedMsg{path: path, bytes: len(data)}
	}
}

// newPreviewTable renders the first rows of t.
func newPreviewTable(t *table.Table) bubbletable.Model {
	head := t.Head(model.PreviewRows)
	names := head.Columns()

	widths := make([]int, len(names))
	for i, name := range names {
		widths[i] = utf8.RuneCountInString(name)
	}
	rows := make([]bubbletable.Row, head.Len())
	for r := range rows {
		cells := head.Row(r)
		row := make(bubbletable.Row, len(cells))
		for c, v := range cells {
			row[c] = table.FormatCell(v)
			widths[c] = max(widths[c], utf8.RuneCountInString(row[c]))
		}
		rows[r] = row
	}

	columns := make([]bubbletable.Column, len(names))
	for i, name := range names {
		columns[i] = bubbletable.Column{Title: name, Width: min(widths[i], maxColumnWidth)}
	}

	styles := bubbletable.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		Bold(true)
	styles.Selected = lipgloss.NewStyle()

	return bubbletable.New(
		bubbletable.WithColumns(columns),
		bubbletable.WithRows(rows),
		bubbletable.WithHeight(len(rows)+1),
		bubbletable.WithFocused(false),
		bubbletable.WithStyles(styles),
	)
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("REST to table"))
	b.WriteString("\n\n")

	for _, input := range m.inputs {
		b.WriteString(input.View())
		b.WriteString("\n")
	}
	b.WriteString("\nTarget url: ")
	b.WriteString(urlStyle.Render(m.targetURL()))
	b.WriteString("\n\n")

	if m.result != nil {
		b.WriteString(fmt.Sprintf("%s  %d rows x %d columns\n\n", m.fetchedURL, m.result.Len(), m.result.Width()))
		if m.result.Width() > 0 {
			b.WriteString(m.preview.View())
			b.WriteString("\n\n")
		}
	}
	if m.status != "" {
		b.WriteString(resultStyle.Render(m.status))
		b.WriteString("\n\n")
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n\n")
	}

	b.WriteString(helpStyle.Render("tab next field • enter fetch • ctrl+s save " + m.out + " • esc quit"))
	return b.String()
}
