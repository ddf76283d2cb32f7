package twitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/buger/jsonparser"
)

const maxRetries = 3

// accountWait bounds how long an auth-only operation waits for a pooled account.
const accountWait = 5 * time.Minute

var errRateLimited = errors.New("rate limited")

// doGET executes a GET with account rotation, ct0 rotation, relogin and
// guest-token fallback.
func (t *StealthTransport) doGET(ctx context.Context, operation, url string) ([]byte, error) {
	if err := stealth.DefaultJitter.Sleep(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := range maxRetries {
		if attempt > 0 {
			select {
			case <-time.After(stealth.DefaultBackoff.Duration(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		acc, err := t.nextAccount(ctx, operation)
		if err != nil {
			lastErr = err
			break
		}
		body, retry, err := t.tryAccount(acc, operation, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
	}

	if requiresAuth(operation) {
		if lastErr != nil {
			return nil, fmt.Errorf("pool exhausted for %s (requires auth): %w", operation, lastErr)
		}
		return nil, fmt.Errorf("%s requires an authenticated account", operation)
	}
	return t.guestGET(ctx, operation, url, lastErr)
}

func (t *StealthTransport) nextAccount(ctx context.Context, operation string) (*Account, error) {
	filter := func(a *Account) bool { return a.usable(operation) }
	if requiresAuth(operation) {
		return t.pool.NextWithWait(ctx, filter, accountWait)
	}
	return t.pool.Next(filter)
}

// tryAccount sends one request as acc and reacts to the outcome. retry
// reports whether another account may still succeed.
func (t *StealthTransport) tryAccount(acc *Account, operation, url string) (body []byte, retry bool, err error) {
	if acc.ct0Stale() {
		acc.rotateCT0()
		slog.Info("ct0 rotated (proactive)", slog.String("user", acc.Username))
		t.persist(acc)
	}

	authToken, ct0, ua := acc.credentials()
	body, hdrs, status, err := t.send(t.clientFor(acc), url, accountHeaders(authToken, ct0, ua))
	if err != nil {
		if acc.Proxy != "" && isProxyError(err) {
			t.markProxyDown(acc)
		} else {
			acc.RecordFailure()
		}
		return nil, true, err
	}
	acc.mu.Lock()
	acc.proxyConsecFails = 0
	acc.mu.Unlock()

	switch status {
	case 200, 401, 403:
	case 429:
		t.record(operation, false, true)
		acc.markRateLimited(operation, parseRateLimitReset(hdrs["x-rate-limit-reset"]))
		slog.Info("account rate limited",
			slog.String("user", acc.Username),
			slog.String("operation", operation),
			slog.Time("available_at", acc.availableAt(operation)))
		return nil, true, errRateLimited
	default:
		t.record(operation, false, false)
		slog.Warn("non-200 response", slog.String("operation", operation), slog.Int("status", status), slog.String("body", truncateBytes(body, 500)))
		if acc.RecordFailure() {
			total, failed, consec := acc.Stats()
			slog.Warn("account unhealthy, deactivating",
				slog.String("user", acc.Username),
				slog.Int("total", total),
				slog.Int("failed", failed),
				slog.Int("consec", consec))
			t.pool.DeactivateItem(acc)
		}
		return nil, false, fmt.Errorf("%s HTTP %d: %s", operation, status, truncateBytes(body, 200))
	}

	class := classifyError(body)
	switch {
	case status == 200 && class == errNone,
		status == 200 && class == errInternal && hasResponseData(body):
		if acc.adoptCT0(ct0FromHeaders(hdrs)) {
			t.persist(acc)
		}
		if class == errInternal {
			slog.Debug("error 131 with usable data, treating as success", slog.String("operation", operation))
		}
		t.record(operation, true, false)
		acc.RecordSuccess()
		return body, false, nil
	}

	t.record(operation, false, false)
	switch class {
	case errCSRF:
		slog.Warn("csrf error 353, rotating ct0", slog.String("user", acc.Username))
		acc.rotateCT0()
		t.persist(acc)
		return t.resend(acc, operation, url, nil)

	case errAuthExpired:
		slog.Warn("auth expired (code 32), attempting relogin", slog.String("user", acc.Username))
		if err := t.relogin(acc); err != nil {
			t.pool.SoftDeactivate(acc, t.cfg.AuthCooldown)
			return nil, true, err
		}
		return t.resend(acc, operation, url, func() { t.pool.SoftDeactivate(acc, t.cfg.AuthCooldown) })

	case errInternal:
		slog.Warn("error 131 without data, retrying", slog.String("user", acc.Username), slog.String("operation", operation))
		return nil, true, errors.New("twitter internal error (131)")

	case errBanned:
		slog.Warn("account rate-banned (code 88)", slog.String("user", acc.Username))
		t.pool.SoftDeactivate(acc, t.cfg.BanCooldown)
		return nil, true, errors.New("account banned")

	case errSuspended:
		slog.Warn("account suspended (code 64), deactivating", slog.String("user", acc.Username))
		t.pool.DeactivateItem(acc)
		return nil, true, errors.New("account suspended")

	case errLocked:
		slog.Warn("account locked (code 326)", slog.String("user", acc.Username))
		if t.cfg.ChallengeSolver != nil {
			err := t.relogin(acc)
			if err == nil {
				return t.resend(acc, operation, url, func() { t.pool.SoftDeactivate(acc, t.cfg.BanCooldown) })
			}
			slog.Warn("unlock via relogin failed", slog.String("user", acc.Username), slog.Any("error", err))
		}
		t.pool.SoftDeactivate(acc, t.cfg.BanCooldown)
		return nil, true, errors.New("account locked")

	case errBlocked, errNotAuthorized:
		slog.Warn("account error", slog.String("user", acc.Username), slog.String("class", class.String()))
		t.pool.SoftDeactivate(acc, t.cfg.AuthCooldown)
		return nil, true, fmt.Errorf("account error: %s", class)
	}

	acc.RecordFailure()
	return nil, true, fmt.Errorf("%s HTTP %d: %s", operation, status, truncateBytes(body, 200))
}

// resend repeats the request once with acc's refreshed credentials. onFail
// runs when the repeat does not succeed.
func (t *StealthTransport) resend(acc *Account, operation, url string, onFail func()) ([]byte, bool, error) {
	authToken, ct0, ua := acc.credentials()
	body, hdrs, status, err := t.send(t.clientFor(acc), url, accountHeaders(authToken, ct0, ua))
	if err == nil && status == 200 && classifyError(body) == errNone {
		if acc.adoptCT0(ct0FromHeaders(hdrs)) {
			t.persist(acc)
		}
		t.record(operation, true, false)
		acc.RecordSuccess()
		return body, false, nil
	}
	acc.RecordFailure()
	if onFail != nil {
		onFail()
	}
	if err != nil {
		return nil, true, fmt.Errorf("%s retry: %w", operation, err)
	}
	return nil, true, fmt.Errorf("%s retry HTTP %d", operation, status)
}

// guestGET serves operation with a guest token, acquiring or refreshing it as needed.
func (t *StealthTransport) guestGET(ctx context.Context, operation, url string, poolErr error) ([]byte, error) {
	gt, ok := t.cachedGuestToken()
	if !ok {
		token, err := t.acquireGuestToken(ctx)
		if err != nil {
			if poolErr != nil {
				return nil, fmt.Errorf("pool exhausted for %s: %w", operation, poolErr)
			}
			return nil, fmt.Errorf("guest token unavailable for %s: %w", operation, err)
		}
		t.setGuestToken(token)
		gt = token
		slog.Info("guest token acquired as fallback", slog.String("operation", operation))
	}

	body, hdrs, status, err := t.send(t.client, url, guestHeaders(gt))
	if err != nil {
		return nil, err
	}
	switch status {
	case 200:
		t.record(operation, true, false)
		return body, nil
	case 429:
		t.record(operation, false, true)
		t.markGuestRateLimited(parseRateLimitReset(hdrs["x-rate-limit-reset"]))
		return nil, fmt.Errorf("guest token rate-limited for %s: %w", operation, errRateLimited)
	case 401, 403:
		slog.Warn("guest token rejected, reacquiring", slog.String("operation", operation), slog.Int("status", status))
		t.setGuestToken("")
		fresh, err := t.acquireGuestToken(ctx)
		if err != nil {
			t.record(operation, false, false)
			return nil, fmt.Errorf("guest token reacquisition failed for %s: %w", operation, err)
		}
		t.setGuestToken(fresh)
		body, _, status, err = t.send(t.client, url, guestHeaders(fresh))
		if err != nil {
			return nil, err
		}
		if status == 200 {
			t.record(operation, true, false)
			return body, nil
		}
	}
	t.record(operation, false, false)
	return nil, fmt.Errorf("%s (guest) HTTP %d: %s", operation, status, truncateBytes(body, 200))
}

// requiresAuth reports operations that guest tokens cannot serve.
func requiresAuth(operation string) bool {
	return operation == opSearchTimeline
}

// isProxyError reports whether err looks like a proxy connectivity failure.
func isProxyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"proxy", "SOCKS", "tunnel", "connection refused", "no such host"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// markProxyDown backs the account off exponentially after a proxy failure.
func (t *StealthTransport) markProxyDown(acc *Account) {
	acc.mu.Lock()
	acc.proxyConsecFails++
	fails := acc.proxyConsecFails
	acc.mu.Unlock()

	d := stealth.BackoffConfig{
		InitialWait: t.cfg.ProxyBackoffInitial,
		MaxWait:     t.cfg.ProxyBackoffMax,
		Multiplier:  2.0,
		JitterPct:   0.3,
	}.Duration(fails - 1)

	acc.mu.Lock()
	acc.proxyBackoff = time.Now().Add(d)
	acc.mu.Unlock()

	slog.Warn("proxy down, backing off",
		slog.String("user", acc.Username),
		slog.String("proxy", stealth.MaskProxy(acc.Proxy)),
		slog.Int("consec_fails", fails),
		slog.Duration("backoff", d))
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// hasResponseData reports whether body carries a non-null top-level "data" object.
func hasResponseData(body []byte) bool {
	_, dataType, _, err := jsonparser.Get(body, "data")
	return err == nil && dataType == jsonparser.Object
}
