package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"snapvault/internal/logger"
	"snapvault/internal/wizard"
)

// guideSteps is the guided setup shown before the interactive stages.
var guideSteps = []struct {
	title string
	body  string
}{
	{
		title: "Create a Google Cloud project",
		body: "Open https://console.cloud.google.com and create a new project\n" +
			"(any name works, e.g. \"snapvault\"). You only need to do this once.",
	},
	{
		title: "Enable the Google Drive API",
		body: "In the project, open \"APIs & Services\" -> \"Library\",\n" +
			"search for \"Google Drive API\" and click Enable.",
	},
	{
		title: "Configure the OAuth consent screen",
		body: "Open \"APIs & Services\" -> \"OAuth consent screen\".\n" +
			"Choose \"External\", fill in only the required fields and save.",
	},
	{
		title: "Add yourself as a test user",
		body: "On the consent screen's \"Test users\" section, add the Google\n" +
			"account that owns the Drive where backups should be stored.",
	},
	{
		title: "Create OAuth client credentials",
		body: "Open \"APIs & Services\" -> \"Credentials\" and create an\n" +
			"\"OAuth client ID\" of type \"Desktop app\".",
	},
	{
		title: "Keep the client ID and secret at hand",
		body: "Copy the client ID and client secret from the credentials page.\n" +
			"The next screen will ask for both.",
	},
}

type codeResultMsg struct {
	out wizard.ExchangeOutcome
}

// WizardModel renders the authorization wizard. All flow decisions live in
// the wizard state machine; this model only displays state and forwards
// user actions.
type WizardModel struct {
	wiz *wizard.Wizard
	log logger.Logger

	idInput     textinput.Model
	secretInput textinput.Model
	codeInput   textinput.Model
	focusSecret bool

	exchanging bool
	stale      bool
	errMsg     string
	quitting   bool
}

// NewWizardModel creates the wizard TUI.
func NewWizardModel(wiz *wizard.Wizard, log logger.Logger) WizardModel {
	idInput := textinput.New()
	idInput.Placeholder = "client id"
	idInput.Focus()
	idInput.CharLimit = 256

	secretInput := textinput.New()
	secretInput.Placeholder = "client secret"
	secretInput.EchoMode = textinput.EchoPassword
	secretInput.CharLimit = 256

	codeInput := textinput.New()
	codeInput.Placeholder = "authorization code"
	codeInput.CharLimit = 512

	return WizardModel{
		wiz:         wiz,
		log:         log,
		idInput:     idInput,
		secretInput: secretInput,
		codeInput:   codeInput,
	}
}

// Init initializes the model
func (m WizardModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case codeResultMsg:
		// The command only ran the exchange; the state transition happens
		// here, on the update goroutine.
		m.exchanging = false
		if err := m.wiz.ApplyExchange(msg.out); err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		m.errMsg = ""
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

		switch m.wiz.Phase() {
		case wizard.PhaseGuide:
			return m.updateGuide(msg)
		case wizard.PhaseCredentials:
			return m.updateCredentials(msg)
		case wizard.PhaseAuthorization:
			return m.updateAuthorization(msg)
		case wizard.PhaseCode:
			return m.updateCode(msg)
		case wizard.PhaseComplete:
			if msg.String() == "enter" || msg.String() == "q" {
				m.quitting = true
				return m, tea.Quit
			}
		case wizard.PhaseFailed:
			switch msg.String() {
			case "r":
				m.wiz.Restart()
				m.errMsg = ""
			case "q", "esc", "enter":
				m.quitting = true
				return m, tea.Quit
			}
		}
	}

	return m, nil
}

func (m WizardModel) updateGuide(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		m.quitting = true
		return m, tea.Quit
	case "enter", "right", "n":
		m.wiz.Next()
		if m.wiz.Phase() == wizard.PhaseCredentials {
			m.idInput.Focus()
		}
	case "left", "b":
		m.wiz.Back()
	}
	return m, nil
}

func (m WizardModel) updateCredentials(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.wiz.Back()
		m.errMsg = ""
		return m, nil

	case "tab", "shift+tab", "up", "down":
		m.focusSecret = !m.focusSecret
		if m.focusSecret {
			m.idInput.Blur()
			return m, m.secretInput.Focus()
		}
		m.secretInput.Blur()
		return m, m.idInput.Focus()

	case "enter":
		if !m.focusSecret {
			m.focusSecret = true
			m.idInput.Blur()
			return m, m.secretInput.Focus()
		}
		if _, err := m.wiz.SubmitCredentials(m.idInput.Value(), m.secretInput.Value()); err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		m.errMsg = ""
		return m, nil
	}

	var cmd tea.Cmd
	if m.focusSecret {
		m.secretInput, cmd = m.secretInput.Update(msg)
	} else {
		m.idInput, cmd = m.idInput.Update(msg)
	}
	return m, cmd
}

func (m WizardModel) updateAuthorization(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "n":
		m.wiz.Next()
		m.stale = m.wiz.Stale()
		return m, m.codeInput.Focus()
	case "esc", "q":
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

func (m WizardModel) updateCode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.exchanging {
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.wiz.Back()
		m.errMsg = ""
		return m, nil

	case "enter":
		code := m.codeInput.Value()
		m.exchanging = true
		m.errMsg = ""
		wiz := m.wiz
		return m, func() tea.Msg {
			return codeResultMsg{out: wiz.ExchangeCode(context.Background(), code)}
		}
	}

	var cmd tea.Cmd
	m.codeInput, cmd = m.codeInput.Update(msg)
	return m, cmd
}

// View renders the current wizard stage
func (m WizardModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder

	switch m.wiz.Phase() {
	case wizard.PhaseGuide:
		step := m.wiz.GuideStep()
		guide := guideSteps[step-1]
		header := titleStyle.Render(fmt.Sprintf("Authorize Google Drive (step %d/%d)", step, wizard.TotalGuideSteps))
		s.WriteString(fmt.Sprintf("\n%s\n\n", header))
		s.WriteString(stepStyle.Render(guide.title) + "\n\n")
		s.WriteString(guide.body + "\n\n")
		s.WriteString(infoStyle.Render("Enter: Next • ←/b: Back • q: Quit") + "\n")

	case wizard.PhaseCredentials:
		header := titleStyle.Render("Application credentials")
		s.WriteString(fmt.Sprintf("\n%s\n\n", header))
		s.WriteString("Paste the OAuth client credentials from the Cloud Console:\n\n")
		s.WriteString("  Client ID:     " + m.idInput.View() + "\n")
		s.WriteString("  Client secret: " + m.secretInput.View() + "\n\n")
		if m.errMsg != "" {
			s.WriteString(errorStyle.Render("Error: "+m.errMsg) + "\n\n")
		}
		s.WriteString(infoStyle.Render("Tab: Switch field • Enter: Continue • ESC: Back") + "\n")

	case wizard.PhaseAuthorization:
		header := titleStyle.Render("Authorize in your browser")
		s.WriteString(fmt.Sprintf("\n%s\n\n", header))
		s.WriteString("Open this URL, sign in, and approve access:\n\n")
		s.WriteString(urlStyle.Render(m.wiz.AuthURL()) + "\n\n")
		s.WriteString("The provider will display an authorization code when you approve.\n\n")
		s.WriteString(infoStyle.Render("Enter: I have the code • q: Quit") + "\n")

	case wizard.PhaseCode:
		header := titleStyle.Render("Authorization code")
		s.WriteString(fmt.Sprintf("\n%s\n\n", header))
		s.WriteString("Paste the code shown by the provider:\n\n")
		s.WriteString("  Code: " + m.codeInput.View() + "\n\n")
		if m.stale {
			s.WriteString(errorStyle.Render("Note: authorization was started a while ago; the code may have expired.") + "\n")
			s.WriteString("If the exchange fails, restart the wizard to get a fresh code.\n\n")
		}
		if m.exchanging {
			s.WriteString(infoStyle.Render("Exchanging code...") + "\n\n")
		}
		if m.errMsg != "" {
			s.WriteString(errorStyle.Render("Error: "+m.errMsg) + "\n\n")
		}
		s.WriteString(infoStyle.Render("Enter: Submit • ESC: Back") + "\n")

	case wizard.PhaseComplete:
		s.WriteString("\n" + successStyle.Render("✓ Remote storage authorized") + "\n\n")
		s.WriteString("Backups can now be uploaded. Run 'snapvault backup' to try it.\n\n")
		s.WriteString(infoStyle.Render("Enter: Finish") + "\n")

	case wizard.PhaseFailed:
		s.WriteString("\n" + errorStyle.Render("✗ Authorization failed") + "\n\n")
		if m.wiz.Failure() != nil {
			s.WriteString(m.wiz.Failure().Error() + "\n\n")
		}
		s.WriteString(infoStyle.Render("r: Start over • q: Quit") + "\n")
	}

	return s.String()
}
