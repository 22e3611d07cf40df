// Package tui provides a read-only terminal browser for client contacts
// using Bubble Tea.
package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/taxilian/portal/internal/db"
	"github.com/taxilian/portal/internal/format"
	"github.com/taxilian/portal/internal/model"
)

// Source is the read access the browser needs. *db.DB implements it.
type Source interface {
	ListContacts(filter db.ContactFilter) ([]model.Contact, error)
	ListContactProjects(filter db.LinkFilter) ([]model.ContactProject, error)
}

// ViewMode represents the current view state.
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
)

// chrome is the number of lines used by the header, help and padding.
const chrome = 7

// Model is the main Bubble Tea model for the browser.
type Model struct {
	src       Source
	projectID int64 // 0 shows every contact

	contacts []model.Contact
	filtered []model.Contact
	table    table.Model
	viewMode ViewMode

	searching bool
	search    string

	detailLinks []model.ContactProject

	width  int
	height int
	err    error
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	filterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39"))

	inputStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	mainStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	contentPadding = 2
)

var columns = []table.Column{
	{Title: "ID", Width: 6},
	{Title: "NAME", Width: 24},
	{Title: "EMAILS", Width: 36},
	{Title: "ACCOUNT", Width: 8},
}

// New creates a browser over src. projectID 0 lists every contact.
func New(src Source, projectID int64) Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.Bold(true).Foreground(lipgloss.Color("39"))
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57"))
	t.SetStyles(styles)

	return Model{
		src:       src,
		projectID: projectID,
		table:     t,
		viewMode:  ViewList,
	}
}

// Messages
type contactsMsg struct {
	contacts []model.Contact
	err      error
}

type linksMsg struct {
	links []model.ContactProject
	err   error
}

func (m Model) loadContacts() tea.Cmd {
	return func() tea.Msg {
		contacts, err := m.src.ListContacts(db.ContactFilter{ProjectID: m.projectID})
		return contactsMsg{contacts: contacts, err: err}
	}
}

func (m Model) loadLinks(contactID int64) tea.Cmd {
	return func() tea.Msg {
		links, err := m.src.ListContactProjects(db.LinkFilter{ContactID: contactID})
		return linksMsg{links: links, err: err}
	}
}

// applyFilter narrows contacts to those matching the search text and
// refreshes the table rows.
func (m *Model) applyFilter() {
	m.filtered = nil
	search := strings.ToLower(m.search)
	for _, c := range m.contacts {
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(strings.ToLower(format.Emails(c)), search) {
			continue
		}
		m.filtered = append(m.filtered, c)
	}

	rows := make([]table.Row, 0, len(m.filtered))
	for _, c := range m.filtered {
		rows = append(rows, contactRow(c))
	}
	m.table.SetRows(rows)
	m.table.SetCursor(0)
}

func contactRow(c model.Contact) table.Row {
	return table.Row{
		strconv.FormatInt(c.ID, 10),
		format.Truncate(c.Name, columns[1].Width),
		format.Truncate(format.Emails(c), columns[2].Width),
		strconv.FormatInt(c.AccountID, 10),
	}
}

// selected returns the contact under the cursor.
func (m Model) selected() (model.Contact, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.filtered) {
		return model.Contact{}, false
	}
	return m.filtered[i], true
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.loadContacts()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		m.err = nil
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if h := msg.Height - chrome; h > 0 {
			m.table.SetHeight(h)
		}
		return m, nil

	case contactsMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.contacts = msg.contacts
		m.applyFilter()
		return m, nil

	case linksMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.detailLinks = msg.links
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		return m.handleSearchKey(msg)
	}
	switch m.viewMode {
	case ViewDetail:
		return m.handleDetailKey(msg)
	default:
		return m.handleListKey(msg)
	}
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.searching = false
		m.search = ""
		m.applyFilter()
	case tea.KeyEnter:
		m.searching = false
	case tea.KeyBackspace:
		if r := []rune(m.search); len(r) > 0 {
			m.search = string(r[:len(r)-1])
			m.applyFilter()
		}
	case tea.KeySpace:
		m.search += " "
		m.applyFilter()
	case tea.KeyRunes:
		m.search += string(msg.Runes)
		m.applyFilter()
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "/":
		m.searching = true
		return m, nil
	case "r":
		return m, m.loadContacts()
	case "enter":
		c, ok := m.selected()
		if !ok {
			return m, nil
		}
		m.viewMode = ViewDetail
		m.detailLinks = nil
		return m, m.loadLinks(c.ID)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc", "q", "backspace":
		m.viewMode = ViewList
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	switch m.viewMode {
	case ViewList:
		b.WriteString(m.listView())
	case ViewDetail:
		b.WriteString(m.detailView())
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	}

	padStyle := lipgloss.NewStyle().
		PaddingLeft(contentPadding).
		PaddingRight(contentPadding).
		PaddingTop(1)

	return padStyle.Render(b.String())
}

func (m Model) listView() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("portal contacts"))
	b.WriteString(fmt.Sprintf("  %d/%d", len(m.filtered), len(m.contacts)))
	if m.projectID != 0 {
		b.WriteString("  ")
		b.WriteString(filterStyle.Render(fmt.Sprintf("project:%d", m.projectID)))
	}
	if m.search != "" && !m.searching {
		b.WriteString("  ")
		b.WriteString(filterStyle.Render("search:" + m.search))
	}
	b.WriteString("\n\n")

	if len(m.filtered) == 0 {
		b.WriteString("No contacts\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.searching {
		b.WriteString(inputStyle.Render("Search: " + m.search + "█"))
	} else {
		b.WriteString(helpStyle.Render("↑/↓ move • enter details • / search • r reload • q quit"))
	}
	return b.String()
}

func (m Model) detailView() string {
	var b strings.Builder

	c, ok := m.selected()
	if !ok {
		return "No contact selected"
	}

	b.WriteString(titleStyle.Render(c.Name))
	b.WriteString("\n\n")
	b.WriteString(detailLabelStyle.Render("ID:      "))
	b.WriteString(strconv.FormatInt(c.ID, 10))
	b.WriteString("\n")
	b.WriteString(detailLabelStyle.Render("Account: "))
	b.WriteString(strconv.FormatInt(c.AccountID, 10))
	b.WriteString("\n")
	b.WriteString(detailLabelStyle.Render("Emails:  "))
	b.WriteString(format.Emails(c))
	b.WriteString("\n")
	b.WriteString(detailLabelStyle.Render("Created: "))
	b.WriteString(c.CreatedAt.Format("2006-01-02 15:04"))
	b.WriteString("\n\n")

	b.WriteString(detailLabelStyle.Render("Projects"))
	b.WriteString("\n")
	if len(m.detailLinks) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, l := range m.detailLinks {
		line := "  " + format.LinkSummary(l)
		if l.Main {
			line = mainStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("esc back • ctrl+c quit"))
	return b.String()
}

// Run starts the browser.
func Run(src Source, projectID int64) error {
	p := tea.NewProgram(New(src, projectID), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
