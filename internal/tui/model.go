package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"shortvid-saver/internal/downloader"
	"shortvid-saver/internal/utils"
	"shortvid-saver/pkg/models"
)

// State represents different screens of the TUI
type State int

const (
	MainMenu State = iota
	PasteScreen
	History
	Help
)

// resolvedMsg carries the outcome of a resolve attempt
type resolvedMsg struct {
	result *models.ExtractionResult
	err    error
}

// downloadEventMsg wraps one download state change
type downloadEventMsg models.DownloadEvent

// historyMsg carries freshly loaded history records
type historyMsg struct {
	records []*models.HistoryRecord
	err     error
}

// Model represents the main application state
type Model struct {
	state    State
	input    textinput.Model
	table    table.Model
	resolver models.ClipResolver
	storage  models.Storage
	manager  *downloader.Manager
	status   string
	busy     bool
	width    int
	height   int
	styles   Styles
}

// Styles holds all the styling for the TUI
type Styles struct {
	title       lipgloss.Style
	subtitle    lipgloss.Style
	menuItem    lipgloss.Style
	input       lipgloss.Style
	statusBar   lipgloss.Style
	errorText   lipgloss.Style
	successText lipgloss.Style
	table       lipgloss.Style
}

// InitialModel creates the initial model for the TUI
func InitialModel(resolver models.ClipResolver, storage models.Storage, manager *downloader.Manager) Model {
	ti := textinput.New()
	ti.Placeholder = "Paste a share link..."
	ti.Focus()
	ti.CharLimit = 1000
	ti.Width = 60

	columns := []table.Column{
		{Title: "Platform", Width: 10},
		{Title: "Title", Width: 32},
		{Title: "Author", Width: 18},
		{Title: "Status", Width: 12},
		{Title: "Progress", Width: 10},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	styles := Styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingTop(1).
			PaddingBottom(1),
		subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingBottom(1),
		menuItem: lipgloss.NewStyle().
			PaddingLeft(2).
			PaddingRight(2).
			Margin(0, 1),
		input: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(1),
		statusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 1),
		errorText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5555")),
		successText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B")),
		table: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")),
	}

	return Model{
		state:    MainMenu,
		input:    ti,
		table:    t,
		resolver: resolver,
		storage:  storage,
		manager:  manager,
		styles:   styles,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForEvent())
}

// waitForEvent blocks on the next download state change
func (m Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-m.manager.Events()
		if !ok {
			return nil
		}
		return downloadEventMsg(ev)
	}
}

func (m Model) loadHistory() tea.Cmd {
	return func() tea.Msg {
		records, err := m.storage.ListRecords(models.MaxHistoryRecords)
		return historyMsg{records: records, err: err}
	}
}

func (m Model) resolveClip(text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		result, err := m.resolver.Resolve(ctx, text)
		return resolvedMsg{result: result, err: err}
	}
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case resolvedMsg:
		m.busy = false
		if msg.err != nil {
			m.status = m.styles.errorText.Render(msg.err.Error())
			return m, nil
		}
		return m, m.startDownload(msg.result)

	case downloadEventMsg:
		ev := models.DownloadEvent(msg)
		patch := map[string]interface{}{
			"status":         ev.State,
			"bytes_received": ev.BytesReceived,
			"total_bytes":    ev.TotalBytes,
			"percent":        ev.Percent,
		}
		if ev.Error != "" {
			patch["last_error"] = ev.Error
		}
		m.storage.PatchRecordByDownloadID(ev.DownloadID, patch)

		switch ev.State {
		case models.DownloadComplete:
			m.status = m.styles.successText.Render("Saved " + ev.Filename)
		case models.DownloadInterrupted:
			m.status = m.styles.errorText.Render(ev.Error)
		default:
			m.status = fmt.Sprintf("Downloading %s  %d%%", ev.Filename, ev.Percent)
		}
		return m, tea.Batch(m.waitForEvent(), m.loadHistory())

	case historyMsg:
		if msg.err == nil {
			m.setRows(msg.records)
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state == MainMenu || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}

		case "esc":
			if m.state != MainMenu {
				m.state = MainMenu
				return m, nil
			}

		case "1":
			if m.state == MainMenu {
				m.state = PasteScreen
				m.status = ""
				return m, nil
			}

		case "2":
			if m.state == MainMenu {
				m.state = History
				return m, m.loadHistory()
			}

		case "3":
			if m.state == MainMenu {
				m.state = Help
				return m, nil
			}

		case "enter":
			if m.state == PasteScreen && m.input.Value() != "" && !m.busy {
				text := m.input.Value()
				m.input.SetValue("")
				m.busy = true
				m.status = "Resolving..."
				return m, m.resolveClip(text)
			}
		}
	}

	switch m.state {
	case PasteScreen:
		m.input, cmd = m.input.Update(msg)
	case History:
		m.table, cmd = m.table.Update(msg)
	}

	return m, cmd
}

// startDownload records the resolved video and hands it to the manager
func (m *Model) startDownload(result *models.ExtractionResult) tea.Cmd {
	filename := utils.BuildFilename(result.Video.Author, result.Video.ID, result.Video.Format)
	record := &models.HistoryRecord{
		RecordID: uuid.NewString(),
		VideoID:  result.Video.ID,
		Platform: result.Platform,
		Title:    result.Video.Title,
		Author:   result.Video.Author,
		URL:      result.Video.BestURL,
		PageURL:  result.PageURL,
		Filename: filename,
		Status:   models.DownloadPending,
		Method:   "resolve",
	}

	id, err := m.manager.Begin(context.Background(), result.Video.BestURL, filename, false)
	if err != nil {
		m.status = m.styles.errorText.Render(err.Error())
		return nil
	}
	record.DownloadID = id

	if err := m.storage.UpsertRecord(record); err != nil {
		m.status = m.styles.errorText.Render(err.Error())
		return nil
	}

	m.status = "Queued " + filename
	return m.loadHistory()
}

func (m *Model) setRows(records []*models.HistoryRecord) {
	var rows []table.Row
	for _, record := range records {
		title := record.Title
		if title == "" {
			title = record.VideoID
		}
		rows = append(rows, table.Row{
			string(record.Platform),
			title,
			record.Author,
			string(record.Status),
			fmt.Sprintf("%d%%", record.Percent),
		})
	}
	m.table.SetRows(rows)
}

// View renders the UI
func (m Model) View() string {
	switch m.state {
	case MainMenu:
		return m.renderMainMenu()
	case PasteScreen:
		return m.renderPasteScreen()
	case History:
		return m.renderHistory()
	case Help:
		return m.renderHelp()
	default:
		return m.renderMainMenu()
	}
}

func (m Model) renderMainMenu() string {
	title := m.styles.title.Render("ShortVid Saver")
	subtitle := m.styles.subtitle.Render("Resolve and save Douyin/TikTok videos from share links")

	menu := []string{
		"1. Paste Share Link",
		"2. History",
		"3. Help",
		"",
		"q. Quit",
	}

	var menuItems []string
	for _, item := range menu {
		if item == "" {
			menuItems = append(menuItems, "")
		} else {
			menuItems = append(menuItems, m.styles.menuItem.Render(item))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		subtitle,
		"",
		strings.Join(menuItems, "\n"),
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderPasteScreen() string {
	title := m.styles.title.Render("Paste Share Link")

	input := m.styles.input.Render(m.input.View())

	instructions := []string{
		"Paste the text copied from the app's share sheet.",
		"The link inside will be found automatically, for example:",
		"• https://v.douyin.com/abc123/",
		"• https://vt.tiktok.com/xyz789/",
		"",
		"Press Enter to resolve and download • ESC to go back",
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		input,
		"",
		strings.Join(instructions, "\n"),
		"",
		m.styles.statusBar.Render(m.status),
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderHistory() string {
	title := m.styles.title.Render("History")

	tableView := m.styles.table.Render(m.table.View())

	instructions := "↑/↓ to navigate • ESC to go back"

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		tableView,
		"",
		m.styles.statusBar.Render(m.status),
		instructions,
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderHelp() string {
	title := m.styles.title.Render("Help")

	helpText := []string{
		"Navigation:",
		"• Use number keys to select menu items",
		"• ESC to go back to main menu",
		"• q or Ctrl+C to quit",
		"",
		"Resolving:",
		"• Paste any text containing a Douyin or TikTok share link",
		"• The short link is followed to the video page and the",
		"  best-quality source URL is extracted automatically",
		"",
		"History keeps the most recent 50 entries.",
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		strings.Join(helpText, "\n"),
		"",
		"ESC to go back",
	)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
