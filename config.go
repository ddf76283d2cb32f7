package twitter

import (
	"time"

	"github.com/anatolykoptev/go-stealth/ratelimit"
)

// ClientConfig holds all configuration for the scraper client and its
// default transport.
type ClientConfig struct {
	// Accounts is the pool of logged-in accounts. With no accounts the
	// transport falls back to guest tokens for operations that allow it.
	Accounts []*Account

	// DefaultProxy is the proxy URL for accounts without per-account proxies.
	DefaultProxy string

	// SessionTTL controls how long saved sessions are considered valid.
	SessionTTL time.Duration

	// SessionDir overrides the session persistence directory.
	// Default: ~/.go-twitter-scraper/sessions
	SessionDir string

	// AuthCooldown is the soft-deactivation duration for auth errors.
	AuthCooldown time.Duration

	// BanCooldown is the soft-deactivation duration for banned/locked accounts.
	BanCooldown time.Duration

	// ChallengeSolver answers login challenges. Optional.
	ChallengeSolver ChallengeSolver

	// RateLimit configures per-account per-operation rate limiting.
	RateLimit ratelimit.Config

	// MetricsHook is called once per upstream request outcome.
	MetricsHook func(operation string, success, rateLimited bool)

	ProxyBackoffInitial time.Duration
	ProxyBackoffMax     time.Duration

	// PageSize is the count requested per timeline page.
	PageSize int

	// ThreadLimit caps the length of an assembled self-thread.
	ThreadLimit int

	// LatestScanLimit is how many timeline tweets GetLatestTweet inspects
	// before giving up. Default: 200.
	LatestScanLimit int

	// UserCacheSize and UserCacheTTL bound the username to user id cache.
	UserCacheSize int
	UserCacheTTL  time.Duration
}

// defaultLatestScanLimit bounds the timeline walk behind GetLatestTweet.
const defaultLatestScanLimit = 200

// defaults fills in zero-value config fields with sensible defaults.
func (cfg *ClientConfig) defaults() {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.AuthCooldown == 0 {
		cfg.AuthCooldown = 1 * time.Hour
	}
	if cfg.BanCooldown == 0 {
		cfg.BanCooldown = 6 * time.Hour
	}
	if cfg.RateLimit.RequestsPerWindow == 0 {
		cfg.RateLimit = ratelimit.DefaultConfig
	}
	if cfg.ProxyBackoffInitial == 0 {
		cfg.ProxyBackoffInitial = 30 * time.Second
	}
	if cfg.ProxyBackoffMax == 0 {
		cfg.ProxyBackoffMax = 30 * time.Minute
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.PageSize > maxPageSize {
		cfg.PageSize = maxPageSize
	}
	if cfg.ThreadLimit <= 0 {
		cfg.ThreadLimit = defaultThreadLimit
	}
	if cfg.LatestScanLimit <= 0 {
		cfg.LatestScanLimit = defaultLatestScanLimit
	}
	if cfg.UserCacheSize <= 0 {
		cfg.UserCacheSize = 1000
	}
	if cfg.UserCacheTTL == 0 {
		cfg.UserCacheTTL = time.Hour
	}
}
