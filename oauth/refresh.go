// Package oauth keeps the bot's stored credentials fresh. A background
// refresher wakes on a jittered interval, checks the oauth_tokens row for a
// provider, and refreshes it when the remaining lifetime falls inside the
// configured window. Reads and writes go through the db package so encrypted
// rows round-trip correctly.
package oauth

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/shad0w7en/smart-youtube-bot/db"
)

// RefreshFunc performs provider-specific refresh and returns
// (access, refresh, expiry, scope).
type RefreshFunc func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error)

// StartRefresher launches a goroutine that periodically checks an oauth token
// row and refreshes it.
// provider: key in oauth_tokens table.
// interval: how often to wake up and check.
// window: refresh when remaining lifetime <= window.
func StartRefresher(ctx context.Context, database *sql.DB, provider string, interval, window time.Duration, fn RefreshFunc) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	// Randomize initial delay so restarts don't line the check up with expiry.
	//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
	initialJitter := time.Duration(rand.Int63n(int64(interval / 2)))
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(initialJitter):
		}
		for {
			// Per-iteration jitter of +-20% of interval, floored at interval/2.
			jitterRange := int64(interval / 5)
			//nolint:gosec // G404: math/rand is sufficient for scheduling jitter, not used for security
			jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			nextSleep := interval + jitter
			if nextSleep < interval/2 {
				nextSleep = interval / 2
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(nextSleep):
			}
			refreshed, err := checkAndRefresh(ctx, database, provider, window, fn)
			if err != nil {
				slog.Warn("token refresh failed", slog.String("provider", provider), slog.Any("err", err))
				continue
			}
			if refreshed {
				slog.Info("token refreshed", slog.String("provider", provider))
			}
		}
	}()
}

// checkAndRefresh loads the stored token for provider and refreshes it when
// expiry falls inside window. It reports whether a refresh happened. A row
// with no refresh token, a missing row, or a token still comfortably valid
// are all quiet no-ops.
func checkAndRefresh(ctx context.Context, database *sql.DB, provider string, window time.Duration, fn RefreshFunc) (bool, error) {
	_, rt, exp, scope, err := db.GetOAuthToken(ctx, database, provider)
	if err != nil {
		return false, fmt.Errorf("load token: %w", err)
	}
	if rt == "" {
		return false, nil
	}
	if !exp.IsZero() && time.Until(exp) > window {
		return false, nil
	}
	rctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	newAT, newRT, newExp, newScope, err := fn(rctx, rt)
	cancel()
	if err != nil {
		return false, fmt.Errorf("refresh: %w", err)
	}
	// Providers may omit the refresh token or scope on renewal. Keep the old
	// values rather than wiping them.
	if newRT == "" {
		newRT = rt
	}
	if newScope == "" {
		newScope = scope
	}
	if err := db.UpsertOAuthToken(ctx, database, provider, newAT, newRT, newExp, "", strings.TrimSpace(newScope)); err != nil {
		return false, fmt.Errorf("persist token: %w", err)
	}
	return true, nil
}
