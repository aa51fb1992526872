package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	ProfileName = iota
	StorageBackend
	StorageLocation
	LedgerBackend
	LedgerDSN
	SignerType
	SignerKey
	OidcDiscoveryEndpoint
	ClientID
	ClientSecret
)

type (
	errMsg error
)

const (
	hotPink  = lipgloss.Color("#FF06B7")
	darkGray = lipgloss.Color("#767676")
)

var (
	inputStyle    = lipgloss.NewStyle().Foreground(hotPink)
	continueStyle = lipgloss.NewStyle().Foreground(darkGray)
)

type field struct {
	label       string
	placeholder string
	width       int
	secret      bool
}

var fields = []field{
	ProfileName:           {"Profile Name", "default", 20, false},
	StorageBackend:        {"Storage Backend", "badger | http", 20, false},
	StorageLocation:       {"Storage Path / URL", "~/.contextvault/blobs", 100, false},
	LedgerBackend:         {"Ledger Backend", "badger | postgres", 20, false},
	LedgerDSN:             {"Ledger Path / DSN", "~/.contextvault/ledger", 100, false},
	SignerType:            {"Signer Type", "jwk | pkcs11", 20, false},
	SignerKey:             {"Signer Key File / Label", "~/.contextvault/signer.jwk", 100, false},
	OidcDiscoveryEndpoint: {"OIDC Endpoint", "https://idp/.well-known/openid-configuration", 100, false},
	ClientID:              {"Client ID", "", 40, false},
	ClientSecret:          {"Client Secret", "", 40, true},
}

type Model struct {
	Inputs  []textinput.Model
	focused int
	err     error
	Quit    bool
}

// InitialModel builds the profile form. defaults, keyed by field index,
// pre-fill values from an existing profile.
func InitialModel(defaults map[int]string) Model {
	inputs := make([]textinput.Model, len(fields))
	for i, f := range fields {
		inputs[i] = textinput.New()
		inputs[i].Placeholder = f.placeholder
		inputs[i].CharLimit = 256
		inputs[i].Width = f.width
		if f.secret {
			inputs[i].EchoMode = textinput.EchoPassword
		}
		inputs[i].SetValue(defaults[i])
	}
	inputs[ProfileName].Focus()

	return Model{
		Inputs: inputs,
	}
}

// Value returns the trimmed value of input i.
func (m Model) Value(i int) string {
	return strings.TrimSpace(m.Inputs[i].Value())
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd = make([]tea.Cmd, len(m.Inputs))
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEnter:
			if m.focused == len(m.Inputs)-1 {
				return m, tea.Quit
			}
			m.nextInput()
		case tea.KeyCtrlC, tea.KeyEsc:
			m.Quit = true
			return m, tea.Quit
		case tea.KeyShiftTab, tea.KeyCtrlP:
			m.prevInput()
		case tea.KeyTab, tea.KeyCtrlN:
			m.nextInput()
		}
		for i := range m.Inputs {
			m.Inputs[i].Blur()
		}
		m.Inputs[m.focused].Focus()

	case errMsg:
		m.err = msg
		return m, nil
	}

	for i := range m.Inputs {
		m.Inputs[i], cmds[i] = m.Inputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString("\n")
	for i, f := range fields {
		b.WriteString(" ")
		b.WriteString(inputStyle.Width(26).Render(f.label))
		b.WriteString("  ")
		b.WriteString(m.Inputs[i].View())
		b.WriteString("\n")
	}
	b.WriteString("\n ")
	b.WriteString(continueStyle.Render("Submit ->"))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(" " + m.err.Error() + "\n")
	}
	return b.String()
}

// nextInput focuses the next input field
func (m *Model) nextInput() {
	m.focused = (m.focused + 1) % len(m.Inputs)
}

// prevInput focuses the previous input field
func (m *Model) prevInput() {
	m.focused--
	// Wrap around
	if m.focused < 0 {
		m.focused = len(m.Inputs) - 1
	}
}
