package twitter

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/pool"
	"github.com/anatolykoptev/go-stealth/ratelimit"
)

// ct0MaxAge is how long a ct0 token is used before it is rotated proactively.
const ct0MaxAge = 4 * time.Hour

// Account is one logged-in identity in the transport's pool. The core never
// sees it; it is the opaque auth context behind every fetch.
type Account struct {
	Username   string
	Password   string
	AuthToken  string
	CT0        string
	TOTPSecret string
	Proxy      string
	UserAgent  string
	Profile    stealth.BrowserProfile

	active       bool
	reactivateAt time.Time
	client       *stealth.BrowserClient

	mu               sync.Mutex
	ct0RefreshedAt   time.Time
	proxyBackoff     time.Time
	proxyConsecFails int
	limiter          *ratelimit.Limiter

	pool.HealthTracker
}

// ID implements pool.Identity.
func (a *Account) ID() string { return a.Username }

// IsActive implements pool.Identity.
func (a *Account) IsActive() bool { return a.active }

// SetActive implements pool.Identity.
func (a *Account) SetActive(v bool) { a.active = v }

// ReactivateAt implements pool.Identity.
func (a *Account) ReactivateAt() time.Time { return a.reactivateAt }

// SetReactivateAt implements pool.Identity.
func (a *Account) SetReactivateAt(t time.Time) { a.reactivateAt = t }

// credentials returns a consistent snapshot of auth_token, ct0 and user agent.
func (a *Account) credentials() (authToken, ct0, userAgent string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.AuthToken, a.CT0, a.UserAgent
}

func (a *Account) setCredentials(authToken, ct0 string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.AuthToken = authToken
	a.CT0 = ct0
	a.ct0RefreshedAt = time.Now()
}

// ct0Stale reports whether ct0 is due for proactive rotation.
func (a *Account) ct0Stale() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ct0RefreshedAt.IsZero() || time.Since(a.ct0RefreshedAt) > ct0MaxAge
}

func (a *Account) rotateCT0() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.CT0 = generateCT0()
	a.ct0RefreshedAt = time.Now()
}

// adoptCT0 takes a ct0 handed out by the server. It reports whether the
// value changed.
func (a *Account) adoptCT0(ct0 string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ct0 == "" || ct0 == a.CT0 {
		return false
	}
	a.CT0 = ct0
	a.ct0RefreshedAt = time.Now()
	return true
}

// usable reports whether the account may call operation now.
func (a *Account) usable(operation string) bool {
	a.mu.Lock()
	rl, backoff := a.limiter, a.proxyBackoff
	a.mu.Unlock()
	if time.Now().Before(backoff) {
		return false
	}
	return rl == nil || rl.Allow(operation)
}

func (a *Account) markRateLimited(operation string, until time.Time) {
	a.mu.Lock()
	rl := a.limiter
	a.mu.Unlock()
	if rl != nil {
		rl.MarkRateLimited(operation, until)
	}
}

// availableAt returns when operation is next allowed for this account.
func (a *Account) availableAt(operation string) time.Time {
	a.mu.Lock()
	rl := a.limiter
	a.mu.Unlock()
	if rl == nil || !rl.IsRateLimited(operation) {
		return time.Time{}
	}
	return rl.AvailableAt(operation)
}

// generateCT0 returns a random 32-byte hex ct0 CSRF token.
func generateCT0() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return strings.Repeat("0", 64)
	}
	return hex.EncodeToString(b)
}

// ct0FromHeaders extracts ct0 from a set-cookie response header.
func ct0FromHeaders(headers map[string]string) string {
	for part := range strings.SplitSeq(headers["set-cookie"], ";") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(part), "ct0="); ok && v != "" {
			return v
		}
	}
	return ""
}

// ParseAccounts parses a comma-separated account list. Each entry is
// "user:pass", "user:pass:auth_token:ct0" or "user:pass:auth_token:ct0:totp_secret".
// Each account gets a browser profile from stealth.BuiltinProfiles in turn.
func ParseAccounts(raw string) []*Account {
	var accounts []*Account
	for entry := range strings.SplitSeq(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 5)
		if len(parts) < 2 || parts[0] == "" {
			slog.Warn("invalid account entry, skipping", slog.String("entry", maskEntry(entry)))
			continue
		}
		acc := &Account{Username: parts[0], Password: parts[1], active: true}
		if len(parts) >= 4 {
			acc.AuthToken, acc.CT0 = parts[2], parts[3]
			acc.ct0RefreshedAt = time.Now()
		}
		if len(parts) == 5 {
			acc.TOTPSecret = parts[4]
		}
		profile := stealth.BuiltinProfiles[len(accounts)%len(stealth.BuiltinProfiles)]
		acc.Profile, acc.UserAgent = profile, profile.UserAgent
		accounts = append(accounts, acc)
	}
	return accounts
}

// maskEntry keeps only the username of an account entry for logging.
func maskEntry(entry string) string {
	user, _, _ := strings.Cut(entry, ":")
	return user + ":***"
}
