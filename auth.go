package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/pquerna/otp/totp"
)

// ChallengeSolver answers the Arkose challenge some logins are gated behind.
type ChallengeSolver interface {
	// Solve returns a solution token for the challenge identified by
	// siteKey on pageURL.
	Solve(ctx context.Context, siteKey, pageURL string) (token string, err error)
}

// arkosePublicKey is the FunCaptcha public key of the login flow.
const arkosePublicKey = "0152B4EB-D2DC-460A-89A1-629838B529C9"

const (
	loginTimeout   = 3 * time.Minute
	maxLoginRounds = 10
	onboardingURL  = twitterAPIURL + "/1.1/onboarding/task.json"
	guestTokenURL  = twitterAPIURL + "/1.1/guest/activate.json"
)

// --- Session persistence ---

func sessionDir(override string) string {
	if override != "" {
		return override
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".go-twitter-scraper", "sessions")
}

func sessionPath(dir, username string) string {
	return filepath.Join(sessionDir(dir), username+".json")
}

type savedSession struct {
	AuthToken string    `json:"auth_token"`
	CT0       string    `json:"ct0"`
	SavedAt   time.Time `json:"saved_at"`
}

func saveSession(dir, username, authToken, ct0 string) error {
	if err := os.MkdirAll(sessionDir(dir), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(savedSession{AuthToken: authToken, CT0: ct0, SavedAt: time.Now()}, "", "  ")
	if err != nil {
		return err
	}
	path := sessionPath(dir, username)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}
	slog.Debug("session saved", slog.String("user", username))
	return nil
}

// loadSession returns the saved session for username, or empty strings when
// none exists or it is older than ttl.
func loadSession(dir, username string, ttl time.Duration) (authToken, ct0 string, err error) {
	data, err := os.ReadFile(sessionPath(dir, username))
	if errors.Is(err, os.ErrNotExist) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	var s savedSession
	if err := json.Unmarshal(data, &s); err != nil {
		return "", "", fmt.Errorf("parse session %s: %w", username, err)
	}
	if time.Since(s.SavedAt) > ttl {
		slog.Debug("session expired", slog.String("user", username))
		return "", "", nil
	}
	return s.AuthToken, s.CT0, nil
}

// persist saves acc's current credentials, logging failures.
func (t *StealthTransport) persist(acc *Account) {
	authToken, ct0, _ := acc.credentials()
	if err := saveSession(t.cfg.SessionDir, acc.Username, authToken, ct0); err != nil {
		slog.Warn("session save failed", slog.String("user", acc.Username), slog.Any("error", err))
	}
}

// --- Login ---

// loadOrLogin restores a saved session, falls back to provided cookies, and
// logs in with the password as a last resort.
func (t *StealthTransport) loadOrLogin(acc *Account) error {
	authToken, ct0, err := loadSession(t.cfg.SessionDir, acc.Username, t.cfg.SessionTTL)
	if err != nil {
		slog.Warn("error loading session", slog.String("user", acc.Username), slog.Any("error", err))
	}
	if authToken != "" && ct0 != "" {
		acc.setCredentials(authToken, ct0)
		slog.Info("loaded session from disk", slog.String("user", acc.Username))
		return nil
	}

	if authToken, ct0, _ := acc.credentials(); authToken != "" && ct0 != "" {
		acc.setCredentials(authToken, ct0)
		slog.Info("using provided credentials", slog.String("user", acc.Username))
		t.persist(acc)
		return nil
	}

	if acc.Password == "" {
		return fmt.Errorf("no session and no password for account %s", acc.Username)
	}
	if err := t.login(acc); err != nil {
		return fmt.Errorf("login %s: %w", acc.Username, err)
	}
	t.persist(acc)
	return nil
}

// relogin drops acc's credentials and saved session and logs in again.
func (t *StealthTransport) relogin(acc *Account) error {
	slog.Info("attempting relogin", slog.String("user", acc.Username))
	acc.setCredentials("", "")
	_ = os.Remove(sessionPath(t.cfg.SessionDir, acc.Username))

	if err := t.loadOrLogin(acc); err != nil {
		return fmt.Errorf("relogin %s: %w", acc.Username, err)
	}
	acc.Reset()
	slog.Info("relogin succeeded", slog.String("user", acc.Username))
	return nil
}

// loginFlow drives the onboarding task API one subtask at a time.
type loginFlow struct {
	bc         *stealth.BrowserClient
	guestToken string
	flowToken  string
	subtasks   []string
}

type flowResponse struct {
	FlowToken string `json:"flow_token"`
	Subtasks  []struct {
		SubtaskID string `json:"subtask_id"`
	} `json:"subtasks"`
}

func (f *loginFlow) post(url, payload string) error {
	body, _, status, err := f.bc.DoWithHeaderOrder("POST", url, loginFlowHeaders(f.guestToken), strings.NewReader(payload), headerOrder)
	if err != nil {
		return err
	}
	if status != 200 {
		return fmt.Errorf("onboarding HTTP %d: %s", status, truncateBytes(body, 300))
	}
	var fr flowResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return fmt.Errorf("parse flow response: %w", err)
	}
	if fr.FlowToken == "" {
		return fmt.Errorf("empty flow_token in response: %s", truncateBytes(body, 200))
	}
	f.flowToken = fr.FlowToken
	f.subtasks = f.subtasks[:0]
	for _, st := range fr.Subtasks {
		f.subtasks = append(f.subtasks, st.SubtaskID)
	}
	return nil
}

// submit answers subtaskID with one subtask input object.
func (f *loginFlow) submit(subtaskID string, input map[string]any) error {
	input["subtask_id"] = subtaskID
	payload, err := json.Marshal(map[string]any{
		"flow_token":     f.flowToken,
		"subtask_inputs": []map[string]any{input},
	})
	if err != nil {
		return err
	}
	return f.post(onboardingURL, string(payload))
}

func nextLink(key string, value map[string]any) map[string]any {
	value["link"] = "next_link"
	return map[string]any{key: value}
}

// login runs the multi-step login flow for acc and stores the resulting cookies.
func (t *StealthTransport) login(acc *Account) error {
	slog.Info("logging in", slog.String("user", acc.Username))
	ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
	defer cancel()

	bc := t.clientFor(acc)
	guestToken, err := t.fetchGuestToken(bc)
	if err != nil {
		return fmt.Errorf("get guest token: %w", err)
	}
	flow := &loginFlow{bc: bc, guestToken: guestToken}
	if err := flow.post(onboardingURL+"?flow_name=login", loginFlowPayload); err != nil {
		return fmt.Errorf("init login flow: %w", err)
	}

	for range maxLoginRounds {
		if len(flow.subtasks) == 0 {
			break
		}
		subtask := flow.subtasks[0]
		slog.Debug("login subtask", slog.String("user", acc.Username), slog.String("subtask", subtask))

		var input map[string]any
		switch subtask {
		case "LoginJsInstrumentationSubtask":
			input = nextLink("js_instrumentation", map[string]any{"response": `{"rf":{"a":"b"},"s":"s"}`})
		case "LoginEnterUserIdentifierSSO":
			input = nextLink("settings_list", map[string]any{
				"setting_responses": []map[string]any{{
					"key":           "user_identifier",
					"response_data": map[string]any{"text_data": map[string]any{"result": acc.Username}},
				}},
			})
		case "LoginEnterPassword":
			input = nextLink("enter_password", map[string]any{"password": acc.Password})
		case "LoginEnterAlternateIdentifierSubtask":
			input = nextLink("enter_text", map[string]any{"text": acc.Username})
		case "LoginTwoFactorAuthChallenge":
			if acc.TOTPSecret == "" {
				return fmt.Errorf("2FA required but no TOTP secret for %s", acc.Username)
			}
			code, err := totp.GenerateCode(acc.TOTPSecret, time.Now())
			if err != nil {
				return fmt.Errorf("generate TOTP code: %w", err)
			}
			input = nextLink("enter_text", map[string]any{"text": code})
		case "LoginArkoseChallenge", "LoginArkoseCaptcha", "LoginEnterRecaptcha":
			if t.cfg.ChallengeSolver == nil {
				return fmt.Errorf("challenge required but no solver configured for %s", acc.Username)
			}
			token, err := t.cfg.ChallengeSolver.Solve(ctx, arkosePublicKey, "https://twitter.com")
			if err != nil {
				return fmt.Errorf("solve challenge: %w", err)
			}
			slog.Info("login challenge solved", slog.String("user", acc.Username))
			input = map[string]any{"web_modal": map[string]any{
				"completion_deeplink": "twitter://onboarding/web_modal/next_link?access_token=" + token,
			}}
		case "LoginSuccessSubtask", "AccountDuplicationCheck":
			flow.subtasks = nil
			continue
		case "DenyLoginSubtask":
			return fmt.Errorf("login denied for %s (account may be locked or disabled)", acc.Username)
		default:
			slog.Warn("unknown login subtask, skipping", slog.String("user", acc.Username), slog.String("subtask", subtask))
			input = map[string]any{"action_list": map[string]any{"link": "next_link"}}
		}
		if err := flow.submit(subtask, input); err != nil {
			return fmt.Errorf("login subtask %s: %w", subtask, err)
		}
	}

	authToken := cookie(bc, "auth_token")
	if authToken == "" {
		return fmt.Errorf("login completed but no auth_token cookie for %s", acc.Username)
	}
	ct0 := cookie(bc, "ct0")
	if ct0 == "" {
		ct0 = generateCT0()
	}
	acc.setCredentials(authToken, ct0)
	slog.Info("login successful", slog.String("user", acc.Username))
	return nil
}

// cookie reads name from the client's jar for either API host.
func cookie(bc *stealth.BrowserClient, name string) string {
	if v := bc.GetCookieValue("https://api.twitter.com", name); v != "" {
		return v
	}
	return bc.GetCookieValue("https://twitter.com", name)
}

// --- Guest tokens ---

func (t *StealthTransport) fetchGuestToken(bc *stealth.BrowserClient) (string, error) {
	headers := baseHeaders("")
	body, _, status, err := bc.DoWithHeaderOrder("POST", guestTokenURL, headers, nil, headerOrder)
	if err != nil {
		return "", err
	}
	if status != 200 {
		return "", fmt.Errorf("guest token: HTTP %d", status)
	}
	var resp struct {
		GuestToken string `json:"guest_token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse guest token: %w", err)
	}
	if resp.GuestToken == "" {
		return "", errors.New("empty guest token in response")
	}
	return resp.GuestToken, nil
}

// acquireGuestToken fetches a guest token, retrying with exponential backoff.
func (t *StealthTransport) acquireGuestToken(ctx context.Context) (string, error) {
	backoff := stealth.BackoffConfig{
		InitialWait: 2 * time.Second,
		MaxWait:     60 * time.Second,
		Multiplier:  2.0,
		JitterPct:   0.3,
	}
	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff.Duration(attempt)):
			}
		}
		token, err := t.fetchGuestToken(t.client)
		if err == nil {
			return token, nil
		}
		lastErr = err
		slog.Warn("guest token acquisition failed", slog.Int("attempt", attempt+1), slog.Any("error", err))
	}
	return "", fmt.Errorf("acquire guest token after 3 attempts: %w", lastErr)
}

// loginFlowPayload opens the login flow with the subtask versions the web client advertises.
const loginFlowPayload = `{"input_flow_data":{"flow_context":{"debug_overrides":{},"start_location":{"location":"splash_screen"}}},"subtask_versions":{"action_list":2,"alert_dialog":1,"app_download_cta":1,"check_logged_in_account":1,"choice_selection":3,"contacts_live_sync_permission_prompt":0,"cta":7,"email_verification":2,"end_flow":1,"enter_date":1,"enter_email":2,"enter_password":5,"enter_phone":2,"enter_recaptcha":1,"enter_text":5,"enter_username":2,"generic_urt":3,"in_app_notification":1,"interest_picker":3,"js_instrumentation":1,"menu_dialog":1,"notifications_permission_prompt":2,"open_account":2,"open_home_timeline":1,"open_link":1,"phone_verification":4,"privacy_options":1,"security_key":3,"select_avatar":4,"select_banner":2,"settings_list":7,"show_code":1,"sign_up":2,"sign_up_review":4,"tweet_selection_urt":1,"update_users":1,"upload_media":1,"user_recommendations_list":4,"user_recommendations_urt":1,"wait_spinner":3,"web_modal":1}}`
