package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle  = lipgloss.NewStyle().Bold(true)
	messageStyle = lipgloss.NewStyle().Foreground(darkGray).PaddingLeft(2)
)

// ConfirmModel asks the user to approve a signature request.
type ConfirmModel struct {
	Identity string
	Message  string
	Approved bool
	done     bool
}

func NewConfirmModel(identity string, message []byte) ConfirmModel {
	return ConfirmModel{Identity: identity, Message: string(message)}
}

func (m ConfirmModel) Init() tea.Cmd {
	return nil
}

func (m ConfirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "y", "Y":
		m.Approved = true
		m.done = true
		return m, tea.Quit
	case "n", "N", "enter", "esc", "ctrl+c":
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m ConfirmModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("\n %s\n\n%s\n\n %s ",
		promptStyle.Render(inputStyle.Render(m.Identity)+" is asked to sign:"),
		messageStyle.Render(m.Message),
		continueStyle.Render("Sign? [y/N]"),
	)
}
