package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"imagebatch/internal/models"
)

// Model renders the snapshots of one job until its stream ends
type Model struct {
	updates  <-chan models.Snapshot
	cancel   func()
	started  time.Time
	width    int
	last     models.Snapshot
	received int
	stopping bool
	quitting bool
}

type doneMsg struct{}

type updateMsg models.Snapshot

// NewModel reads updates until the channel closes. cancel is called once on Ctrl+C;
// the model keeps rendering until the job's final snapshot arrives.
func NewModel(updates <-chan models.Snapshot, cancel func()) Model {
	return Model{updates: updates, cancel: cancel, started: time.Now()}
}

func (m Model) Init() tea.Cmd {
	return listenForUpdates(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		m.last = models.Snapshot(msg)
		m.received++
		return m, listenForUpdates(m.updates)
	case doneMsg:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" && !m.stopping {
			m.stopping = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	default:
		return m, nil
	}
}

// Last returns the most recent snapshot seen
func (m Model) Last() models.Snapshot {
	return m.last
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	barWidth := 40
	if m.width > 0 {
		barWidth = int(math.Min(60, float64(m.width-16)))
		if barWidth < 20 {
			barWidth = 20
		}
	}

	s := m.last
	elapsed := time.Since(m.started).Round(time.Second)

	lines := []string{
		titleStyle.Render("imagebatch"),
		messageStyle(s).Render(s.Message),
	}
	if s.CurrentFolderName != "" {
		lines = append(lines, labelStyle.Render("Folder: ")+dimStyle.Render(fmt.Sprintf("%s (%d files)", s.CurrentFolderName, s.FilesInCurrentFolder)))
	}
	if s.CurrentFile != "" {
		lines = append(lines, labelStyle.Render("File:   ")+dimStyle.Render(s.CurrentFile))
	}
	lines = append(lines,
		labelStyle.Render("Folder  ")+barStyle.Render(renderBar(barWidth, s.FolderProgress))+dimStyle.Render(percent(s.FolderProgress)),
		labelStyle.Render("Overall ")+barStyle.Render(renderBar(barWidth, s.OverallProgress))+dimStyle.Render(percent(s.OverallProgress)),
		labelStyle.Render("Saved:  ")+valueStyle.Render(FormatSaving(s.TotalOriginalSize, s.TotalConvertedSize, s.TotalSpaceSaving)),
		dimStyle.Render(fmt.Sprintf("Elapsed: %s", elapsed)),
	)
	if m.stopping {
		lines = append(lines, warnStyle.Render("Canceling... waiting for the current tool to stop"))
	} else {
		lines = append(lines, dimStyle.Render("ctrl+c to cancel"))
	}

	return strings.Join(lines, "\n")
}

func messageStyle(s models.Snapshot) lipgloss.Style {
	switch {
	case s.IsCanceled:
		return warnStyle
	case s.IsError:
		return errorStyle
	case s.IsComplete:
		return successStyle
	default:
		return labelStyle
	}
}

func listenForUpdates(updates <-chan models.Snapshot) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return updateMsg(update)
	}
}

func renderBar(width int, ratio float64) string {
	filled := int(math.Round(ratio * float64(width)))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}

func percent(ratio float64) string {
	return fmt.Sprintf(" %3.0f%%", ratio*100)
}
