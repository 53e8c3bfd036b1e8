package oauth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/shad0w7en/smart-youtube-bot/testutil"
)

func seedToken(t *testing.T, database *sql.DB, provider, access, refresh string, expiry time.Time, scope string) {
	t.Helper()
	_, err := database.Exec(`INSERT INTO oauth_tokens (provider, access_token, refresh_token, expires_at, scope, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (provider) DO UPDATE SET
		  access_token=EXCLUDED.access_token,
		  refresh_token=EXCLUDED.refresh_token,
		  expires_at=EXCLUDED.expires_at,
		  scope=EXCLUDED.scope,
		  updated_at=NOW()`,
		provider, access, refresh, expiry, scope)
	if err != nil {
		t.Fatalf("seed token: %v", err)
	}
	t.Cleanup(func() {
		_, _ = database.Exec(`DELETE FROM oauth_tokens WHERE provider=$1`, provider)
	})
}

func TestCheckAndRefreshOutsideWindow(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	database := testutil.SetupTestDB(t)
	seedToken(t, database, "yt-outside", "access123", "refresh456", time.Now().Add(time.Hour), "scope1")

	fn := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		t.Fatal("refresh called for a token that expires in an hour")
		return "", "", time.Time{}, "", nil
	}

	refreshed, err := checkAndRefresh(context.Background(), database, "yt-outside", 15*time.Minute, fn)
	if err != nil {
		t.Fatalf("checkAndRefresh: %v", err)
	}
	if refreshed {
		t.Error("expected no refresh outside the window")
	}
}

func TestCheckAndRefreshWithinWindow(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	database := testutil.SetupTestDB(t)
	seedToken(t, database, "yt-within", "old-access", "old-refresh", time.Now().Add(5*time.Minute), "scope1")

	newExpiry := time.Now().Add(2 * time.Hour)
	fn := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		if refreshToken != "old-refresh" {
			t.Errorf("refresh called with token %q, want old-refresh", refreshToken)
		}
		return "new-access", "new-refresh", newExpiry, "scope2", nil
	}

	refreshed, err := checkAndRefresh(context.Background(), database, "yt-within", 15*time.Minute, fn)
	if err != nil {
		t.Fatalf("checkAndRefresh: %v", err)
	}
	if !refreshed {
		t.Fatal("expected a refresh for a token expiring inside the window")
	}

	var access, refresh, scope string
	err = database.QueryRow(`SELECT access_token, refresh_token, scope FROM oauth_tokens WHERE provider='yt-within'`).
		Scan(&access, &refresh, &scope)
	if err != nil {
		t.Fatalf("query updated token: %v", err)
	}
	if access != "new-access" {
		t.Errorf("access token = %q, want new-access", access)
	}
	if refresh != "new-refresh" {
		t.Errorf("refresh token = %q, want new-refresh", refresh)
	}
	if scope != "scope2" {
		t.Errorf("scope = %q, want scope2", scope)
	}
}

func TestCheckAndRefreshMissingRow(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	database := testutil.SetupTestDB(t)

	fn := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		t.Fatal("refresh called with no stored token")
		return "", "", time.Time{}, "", nil
	}

	refreshed, err := checkAndRefresh(context.Background(), database, "yt-absent", 15*time.Minute, fn)
	if err != nil {
		t.Fatalf("checkAndRefresh: %v", err)
	}
	if refreshed {
		t.Error("expected no refresh when the row is missing")
	}
}

func TestCheckAndRefreshNoRefreshToken(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	database := testutil.SetupTestDB(t)
	seedToken(t, database, "yt-no-rt", "access123", "", time.Now().Add(5*time.Minute), "scope1")

	fn := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		t.Fatal("refresh called without a refresh token")
		return "", "", time.Time{}, "", nil
	}

	refreshed, err := checkAndRefresh(context.Background(), database, "yt-no-rt", 15*time.Minute, fn)
	if err != nil {
		t.Fatalf("checkAndRefresh: %v", err)
	}
	if refreshed {
		t.Error("expected no refresh without a refresh token")
	}
}

func TestCheckAndRefreshKeepsRowOnError(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	database := testutil.SetupTestDB(t)
	seedToken(t, database, "yt-err", "old-access", "old-refresh", time.Now().Add(5*time.Minute), "scope1")

	fn := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		return "", "", time.Time{}, "", errors.New("provider says no")
	}

	refreshed, err := checkAndRefresh(context.Background(), database, "yt-err", 15*time.Minute, fn)
	if err == nil {
		t.Fatal("expected an error from a failing refresh")
	}
	if refreshed {
		t.Error("refresh reported success despite provider error")
	}

	var access string
	if err := database.QueryRow(`SELECT access_token FROM oauth_tokens WHERE provider='yt-err'`).Scan(&access); err != nil {
		t.Fatalf("query token: %v", err)
	}
	if access != "old-access" {
		t.Errorf("access token = %q, want the original old-access", access)
	}
}

func TestCheckAndRefreshPreservesRefreshTokenAndScope(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	database := testutil.SetupTestDB(t)
	seedToken(t, database, "yt-keep", "old-access", "original-refresh", time.Now().Add(5*time.Minute), "scope1")

	// Providers commonly omit the rotated refresh token and scope.
	fn := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		return "new-access", "", time.Now().Add(2 * time.Hour), "", nil
	}

	refreshed, err := checkAndRefresh(context.Background(), database, "yt-keep", 15*time.Minute, fn)
	if err != nil {
		t.Fatalf("checkAndRefresh: %v", err)
	}
	if !refreshed {
		t.Fatal("expected a refresh")
	}

	var refresh, scope string
	err = database.QueryRow(`SELECT refresh_token, scope FROM oauth_tokens WHERE provider='yt-keep'`).
		Scan(&refresh, &scope)
	if err != nil {
		t.Fatalf("query token: %v", err)
	}
	if refresh != "original-refresh" {
		t.Errorf("refresh token = %q, want preserved original-refresh", refresh)
	}
	if scope != "scope1" {
		t.Errorf("scope = %q, want preserved scope1", scope)
	}
}

func TestStartRefresherRefreshesThroughLoop(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	database := testutil.SetupTestDB(t)
	seedToken(t, database, "yt-loop", "old-access", "old-refresh", time.Now().Add(5*time.Minute), "scope1")

	fn := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		return "new-access", "new-refresh", time.Now().Add(2 * time.Hour), "scope1", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartRefresher(ctx, database, "yt-loop", 20*time.Millisecond, 15*time.Minute, fn)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		var access string
		if err := database.QueryRow(`SELECT access_token FROM oauth_tokens WHERE provider='yt-loop'`).Scan(&access); err != nil {
			t.Fatalf("query token: %v", err)
		}
		if access == "new-access" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("refresher loop never refreshed the token")
}

func TestStartRefresherStopsOnCancel(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	database := testutil.SetupTestDB(t)

	fn := func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
		return "access", "refresh", time.Now().Add(time.Hour), "scope", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	StartRefresher(ctx, database, "yt-cancel", time.Second, 15*time.Minute, fn)
	cancel()

	// Nothing to observe beyond the goroutine exiting promptly.
	time.Sleep(50 * time.Millisecond)
}
