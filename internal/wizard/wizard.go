// Package wizard drives the interactive OAuth2 authorization-code flow as
// an explicit state machine. The presentation layer renders it and feeds
// user actions in; the wizard never reaches back into presentation code.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"snapvault/internal/credstore"
	"snapvault/internal/drive"
	"snapvault/internal/logger"
)

// TotalGuideSteps is the number of guided setup screens before the
// interactive stages begin.
const TotalGuideSteps = 6

// MinCodeLength is the shortest authorization code accepted locally.
// Anything shorter is rejected before any network call.
const MinCodeLength = 10

// StaleThreshold is how old a pending authorization may be before code
// submission logs a staleness warning. The provider stays authoritative,
// so the exchange is still attempted.
const StaleThreshold = 15 * time.Minute

// OOBRedirectURL is the out-of-band redirect: the provider displays the
// authorization code to the user instead of calling back into a server.
const OOBRedirectURL = "urn:ietf:wg:oauth:2.0:oob"

var (
	// ErrCodeTooShort means the submitted authorization code failed local
	// validation; no exchange was attempted.
	ErrCodeTooShort = errors.New("authorization code is too short")

	// ErrCredentialStateMissing means no pending authorization exists to
	// exchange the code against; the temporary state was lost or never set.
	ErrCredentialStateMissing = errors.New("no pending authorization found")

	// ErrAuthorizationDenied means the provider rejected the code
	// (invalid, expired or already used).
	ErrAuthorizationDenied = errors.New("authorization was denied by the provider")

	// ErrNoRefreshToken means the exchange succeeded but granted no
	// refresh token, so unattended uploads would be impossible.
	ErrNoRefreshToken = errors.New("no refresh token was granted")
)

// Phase names the wizard's current stage.
type Phase int

const (
	PhaseGuide Phase = iota
	PhaseCredentials
	PhaseAuthorization
	PhaseCode
	PhaseComplete
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseGuide:
		return "guide"
	case PhaseCredentials:
		return "credentials"
	case PhaseAuthorization:
		return "authorization"
	case PhaseCode:
		return "code"
	case PhaseComplete:
		return "complete"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Store is the credential persistence the wizard needs.
type Store interface {
	Get() (credstore.Record, error)
	SetPending(clientID, clientSecret string) error
	SetActive(clientID, clientSecret, refreshToken string) error
}

// TokenExchanger swaps an authorization code for a refresh token.
type TokenExchanger interface {
	Exchange(ctx context.Context, clientID, clientSecret, code string) (refreshToken string, err error)
}

// Wizard is the authorization flow state machine.
type Wizard struct {
	store    Store
	exchange TokenExchanger
	log      logger.Logger
	now      func() time.Time

	phase     Phase
	guideStep int
	authURL   string
	failure   error
}

// New creates a wizard starting at the first guide step, exchanging codes
// against the real OAuth2 endpoint.
func New(store Store, log logger.Logger) *Wizard {
	return NewWithExchanger(store, oauthExchanger{}, log)
}

// NewWithExchanger creates a wizard with a custom token exchanger.
func NewWithExchanger(store Store, exchange TokenExchanger, log logger.Logger) *Wizard {
	return &Wizard{
		store:     store,
		exchange:  exchange,
		log:       log,
		now:       time.Now,
		phase:     PhaseGuide,
		guideStep: 1,
	}
}

// Phase returns the current stage.
func (w *Wizard) Phase() Phase { return w.phase }

// GuideStep returns the current guide step (valid during PhaseGuide).
func (w *Wizard) GuideStep() int { return w.guideStep }

// AuthURL returns the authorization URL (valid from PhaseAuthorization on).
func (w *Wizard) AuthURL() string { return w.authURL }

// Failure returns the terminal failure, if any.
func (w *Wizard) Failure() error { return w.failure }

// Next advances the wizard. On the last guide step it moves to the
// credentials prompt; during authorization it moves to the code prompt.
func (w *Wizard) Next() {
	switch w.phase {
	case PhaseGuide:
		if w.guideStep >= TotalGuideSteps {
			w.phase = PhaseCredentials
			return
		}
		w.guideStep++
	case PhaseAuthorization:
		w.phase = PhaseCode
	}
}

// Back moves one step backwards, clamped at the first guide step.
func (w *Wizard) Back() {
	switch w.phase {
	case PhaseGuide:
		if w.guideStep > 1 {
			w.guideStep--
		}
	case PhaseCredentials:
		w.phase = PhaseGuide
		w.guideStep = TotalGuideSteps
	case PhaseCode:
		w.phase = PhaseAuthorization
	}
}

// SubmitCredentials stores a fresh pending authorization for the given
// application credentials and produces the authorization URL. Any prior
// pending state is superseded; an active record is only replaced once a
// later code exchange succeeds.
func (w *Wizard) SubmitCredentials(clientID, clientSecret string) (string, error) {
	clientID = strings.TrimSpace(clientID)
	clientSecret = strings.TrimSpace(clientSecret)
	if clientID == "" || clientSecret == "" {
		return "", fmt.Errorf("client id and client secret are required")
	}

	if err := w.store.SetPending(clientID, clientSecret); err != nil {
		return "", fmt.Errorf("persist pending authorization: %w", err)
	}

	w.authURL = authCodeURL(clientID, clientSecret)
	w.phase = PhaseAuthorization
	return w.authURL, nil
}

// Stale reports whether the pending authorization is older than
// StaleThreshold, meaning the code may already have expired on the provider
// side. The provider stays authoritative, so submission is never blocked.
func (w *Wizard) Stale() bool {
	rec, err := w.store.Get()
	if err != nil || rec.State != credstore.StatePending {
		return false
	}
	return w.now().Sub(rec.IssuedAt) > StaleThreshold
}

// ExchangeOutcome is the result of validating and exchanging one
// authorization code. The exchange runs off the state machine so a UI can
// perform it on another goroutine; ApplyExchange folds the outcome back in.
type ExchangeOutcome struct {
	refreshToken string
	clientID     string
	clientSecret string
	err          error
}

// Err returns the validation or exchange error, if any.
func (o ExchangeOutcome) Err() error { return o.err }

// ExchangeCode validates the code and performs the provider exchange. It
// never touches the wizard's visible state, so it is safe to run while
// another goroutine renders the wizard.
func (w *Wizard) ExchangeCode(ctx context.Context, code string) ExchangeOutcome {
	code = strings.TrimSpace(code)
	if len(code) < MinCodeLength {
		return ExchangeOutcome{err: ErrCodeTooShort}
	}

	rec, err := w.store.Get()
	if err != nil {
		return ExchangeOutcome{err: fmt.Errorf("load credentials: %w", err)}
	}
	if rec.State != credstore.StatePending {
		return ExchangeOutcome{err: ErrCredentialStateMissing}
	}

	if age := w.now().Sub(rec.IssuedAt); age > StaleThreshold {
		w.log.Debug("Pending authorization is stale; the code may have expired on the provider side",
			"age", age.Round(time.Second).String())
	}

	refreshToken, err := w.exchange.Exchange(ctx, rec.ClientID, rec.ClientSecret, code)
	if err != nil {
		return ExchangeOutcome{err: fmt.Errorf("%w: %v", ErrAuthorizationDenied, err)}
	}
	if refreshToken == "" {
		return ExchangeOutcome{err: ErrNoRefreshToken}
	}

	return ExchangeOutcome{
		refreshToken: refreshToken,
		clientID:     rec.ClientID,
		clientSecret: rec.ClientSecret,
	}
}

// ApplyExchange folds an exchange outcome into the state machine. A rejected
// or tokenless exchange is terminal until Restart; local validation errors
// keep the code prompt. Failures never modify a previously active credential.
func (w *Wizard) ApplyExchange(out ExchangeOutcome) error {
	if out.err != nil {
		switch {
		case errors.Is(out.err, ErrAuthorizationDenied), errors.Is(out.err, ErrNoRefreshToken):
			w.fail(out.err)
			return w.failure
		default:
			return out.err
		}
	}

	if err := w.store.SetActive(out.clientID, out.clientSecret, out.refreshToken); err != nil {
		w.fail(fmt.Errorf("persist active credentials: %w", err))
		return w.failure
	}

	w.phase = PhaseComplete
	w.failure = nil
	return nil
}

// SubmitCode validates and exchanges the authorization code, then applies
// the outcome. Equivalent to ExchangeCode followed by ApplyExchange.
func (w *Wizard) SubmitCode(ctx context.Context, code string) error {
	return w.ApplyExchange(w.ExchangeCode(ctx, code))
}

func (w *Wizard) fail(err error) {
	w.phase = PhaseFailed
	w.failure = err
}

// Restart returns the wizard to the first guide step without touching the
// stored credential.
func (w *Wizard) Restart() {
	w.phase = PhaseGuide
	w.guideStep = 1
	w.authURL = ""
	w.failure = nil
}

func oauthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  OOBRedirectURL,
		Scopes:       []string{drive.Scope},
	}
}

func authCodeURL(clientID, clientSecret string) string {
	return oauthConfig(clientID, clientSecret).
		AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// oauthExchanger exchanges codes against the real token endpoint.
type oauthExchanger struct{}

func (oauthExchanger) Exchange(ctx context.Context, clientID, clientSecret, code string) (string, error) {
	token, err := oauthConfig(clientID, clientSecret).Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	return token.RefreshToken, nil
}
