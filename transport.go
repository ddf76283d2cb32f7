package twitter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/pool"
	"github.com/anatolykoptev/go-stealth/ratelimit"
)

// Transport performs one authenticated GraphQL GET and returns the raw body.
// Implementations own authentication, retries and backoff.
type Transport interface {
	Get(ctx context.Context, operation, url string) ([]byte, error)
}

// StealthTransport is the default Transport. It rotates requests across an
// account pool with a TLS-fingerprinted browser client and falls back to a
// guest token when no account can serve an operation that allows it.
type StealthTransport struct {
	client *stealth.BrowserClient
	pool   *pool.Pool[*Account]
	cfg    ClientConfig
	get    getFunc

	mu                sync.Mutex
	guestToken        string
	guestLimitedUntil time.Time
}

// NewStealthTransport builds the default transport and logs in every
// configured account, restoring saved sessions where possible. Accounts that
// fail to log in are kept in the pool but deactivated.
func NewStealthTransport(cfg ClientConfig) (*StealthTransport, error) {
	cfg.defaults()

	opts := []stealth.ClientOption{stealth.WithHeaderOrder(headerOrder)}
	if cfg.DefaultProxy != "" {
		opts = append(opts, stealth.WithProxy(cfg.DefaultProxy))
	}
	bc, err := stealth.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("stealth client: %w", err)
	}

	for _, acc := range cfg.Accounts {
		acc.limiter = ratelimit.NewLimiter(cfg.RateLimit)
		acc.HealthTracker = pool.DefaultHealthTracker()
	}

	t := &StealthTransport{
		client: bc,
		cfg:    cfg,
		get:    browserGET,
		pool: pool.New(cfg.Accounts, pool.Config{
			AlertHook: func(topic string, payload any) {
				slog.Warn("pool alert", slog.String("topic", topic), slog.Any("payload", payload))
			},
			ProxyBackoff: pool.BackoffConfig{
				InitialWait: cfg.ProxyBackoffInitial,
				MaxWait:     cfg.ProxyBackoffMax,
				Multiplier:  2.0,
				JitterPct:   0.3,
			},
		}),
	}

	for _, acc := range cfg.Accounts {
		if acc.Proxy != "" {
			ac, err := stealth.NewClient(
				stealth.WithProxy(acc.Proxy),
				stealth.WithProfile(acc.Profile.TLSProfile),
				stealth.WithHeaderOrder(headerOrder),
			)
			if err != nil {
				slog.Warn("per-account client failed", slog.String("user", acc.Username), slog.Any("error", err))
			} else {
				acc.client = ac
			}
		}
		if err := t.loadOrLogin(acc); err != nil {
			slog.Warn("account login failed", slog.String("user", acc.Username), slog.Any("error", err))
			acc.SetActive(false)
		}
	}
	return t, nil
}

// Get implements Transport.
func (t *StealthTransport) Get(ctx context.Context, operation, url string) ([]byte, error) {
	return t.doGET(ctx, operation, url)
}

// Pool returns the underlying account pool.
func (t *StealthTransport) Pool() *pool.Pool[*Account] {
	return t.pool
}

// clientFor returns the account's own client when it has a proxy, else the shared one.
func (t *StealthTransport) clientFor(acc *Account) *stealth.BrowserClient {
	if acc.client != nil {
		return acc.client
	}
	return t.client
}

// getFunc performs one GET through bc and returns body, response headers and status.
type getFunc func(bc *stealth.BrowserClient, url string, headers map[string]string) ([]byte, map[string]string, int, error)

func browserGET(bc *stealth.BrowserClient, url string, headers map[string]string) ([]byte, map[string]string, int, error) {
	return bc.DoWithHeaderOrder("GET", url, headers, nil, headerOrder)
}

func (t *StealthTransport) send(bc *stealth.BrowserClient, url string, headers map[string]string) ([]byte, map[string]string, int, error) {
	if t.get != nil {
		return t.get(bc, url, headers)
	}
	return browserGET(bc, url, headers)
}

func (t *StealthTransport) record(operation string, success, rateLimited bool) {
	if t.cfg.MetricsHook != nil {
		t.cfg.MetricsHook(operation, success, rateLimited)
	}
}

func (t *StealthTransport) setGuestToken(token string) {
	t.mu.Lock()
	t.guestToken = token
	t.guestLimitedUntil = time.Time{}
	t.mu.Unlock()
}

func (t *StealthTransport) markGuestRateLimited(until time.Time) {
	t.mu.Lock()
	t.guestLimitedUntil = until
	t.mu.Unlock()
}

// cachedGuestToken returns the current guest token and whether it is usable.
func (t *StealthTransport) cachedGuestToken() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.guestToken == "" || time.Now().Before(t.guestLimitedUntil) {
		return "", false
	}
	return t.guestToken, true
}
