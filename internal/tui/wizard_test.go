package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"snapvault/internal/credstore"
	"snapvault/internal/logger"
	"snapvault/internal/wizard"
)

// memStore keeps the credential record in memory. issuedAgo backdates
// pending records for staleness scenarios.
type memStore struct {
	rec       credstore.Record
	issuedAgo time.Duration
}

func (m *memStore) Get() (credstore.Record, error) {
	return m.rec, nil
}

func (m *memStore) SetPending(clientID, clientSecret string) error {
	m.rec = credstore.Record{
		State:        credstore.StatePending,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		IssuedAt:     time.Now().UTC().Add(-m.issuedAgo),
	}
	return nil
}

func (m *memStore) SetActive(clientID, clientSecret, refreshToken string) error {
	m.rec = credstore.Record{
		State:        credstore.StateActive,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RefreshToken: refreshToken,
		IssuedAt:     time.Now().UTC(),
	}
	return nil
}

// blockingExchanger holds the exchange open until released, so a test can
// overlap it with concurrent rendering.
type blockingExchanger struct {
	release chan struct{}
}

func (b *blockingExchanger) Exchange(ctx context.Context, clientID, clientSecret, code string) (string, error) {
	<-b.release
	return "refresh-1", nil
}

type staticExchanger struct {
	token string
	err   error
}

func (s staticExchanger) Exchange(ctx context.Context, clientID, clientSecret, code string) (string, error) {
	return s.token, s.err
}

func modelAtCodePrompt(t *testing.T, store *memStore, exchange wizard.TokenExchanger) (WizardModel, *wizard.Wizard) {
	t.Helper()

	wiz := wizard.NewWithExchanger(store, exchange, logger.NewNullLogger())
	if _, err := wiz.SubmitCredentials("client-1", "secret-1"); err != nil {
		t.Fatalf("SubmitCredentials: %v", err)
	}

	m := NewWizardModel(wiz, logger.NewNullLogger())
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(WizardModel)
	if wiz.Phase() != wizard.PhaseCode {
		t.Fatalf("expected code prompt, got %v", wiz.Phase())
	}
	return m, wiz
}

// The exchange command must not touch wizard state: the event loop keeps
// rendering (blink ticks) while the command goroutine runs, and only the
// resulting message may transition the wizard.
func TestCodeExchangeRunsOffTheSharedState(t *testing.T) {
	store := &memStore{}
	exchange := &blockingExchanger{release: make(chan struct{})}
	m, wiz := modelAtCodePrompt(t, store, exchange)

	m.codeInput.SetValue("4/long-enough-code")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(WizardModel)
	if cmd == nil {
		t.Fatal("expected an exchange command")
	}

	msgCh := make(chan tea.Msg, 1)
	go func() { msgCh <- cmd() }()

	// Render concurrently with the in-flight exchange, then let it finish.
	for i := 0; i < 50; i++ {
		if !strings.Contains(m.View(), "Code:") {
			t.Fatal("expected the code prompt while exchanging")
		}
		if wiz.Phase() != wizard.PhaseCode {
			t.Fatalf("phase changed while the exchange was in flight: %v", wiz.Phase())
		}
	}
	close(exchange.release)

	msg := <-msgCh
	if wiz.Phase() != wizard.PhaseCode {
		t.Fatalf("command must not transition the wizard, got %v", wiz.Phase())
	}
	if store.rec.State != credstore.StatePending {
		t.Fatalf("command must not persist credentials, got %q", store.rec.State)
	}

	next, _ = m.Update(msg)
	m = next.(WizardModel)
	if wiz.Phase() != wizard.PhaseComplete {
		t.Errorf("expected completion after the result message, got %v", wiz.Phase())
	}
	if !store.rec.IsActive() {
		t.Errorf("expected active record after the result message, got %+v", store.rec)
	}
}

func TestCodeExchangeFailureShownAfterMessage(t *testing.T) {
	store := &memStore{}
	m, wiz := modelAtCodePrompt(t, store, staticExchanger{err: errors.New("invalid_grant")})

	m.codeInput.SetValue("4/long-enough-code")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(WizardModel)

	next, _ = m.Update(cmd())
	m = next.(WizardModel)

	if wiz.Phase() != wizard.PhaseFailed {
		t.Errorf("expected failed phase, got %v", wiz.Phase())
	}
	if !strings.Contains(m.View(), "Authorization failed") {
		t.Error("expected the failure screen after a denied exchange")
	}
	if store.rec.IsActive() {
		t.Error("denied exchange must not produce an active record")
	}
}

func TestCodePromptShowsStaleNote(t *testing.T) {
	store := &memStore{issuedAgo: 20 * time.Minute}
	m, _ := modelAtCodePrompt(t, store, staticExchanger{token: "refresh-1"})

	if !strings.Contains(m.View(), "may have expired") {
		t.Error("expected a staleness note on the code prompt")
	}
}

func TestCodePromptFreshHasNoStaleNote(t *testing.T) {
	store := &memStore{}
	m, _ := modelAtCodePrompt(t, store, staticExchanger{token: "refresh-1"})

	if strings.Contains(m.View(), "may have expired") {
		t.Error("fresh authorization must not show a staleness note")
	}
}
