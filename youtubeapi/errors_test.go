package youtubeapi

import (
	"errors"
	"fmt"
	"testing"

	"google.golang.org/api/googleapi"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{name: "sentinel chat ended", err: ErrChatEnded, want: ErrorClassTerminal},
		{name: "wrapped sentinel", err: fmt.Errorf("poll: %w", ErrChatDisabled), want: ErrorClassTerminal},
		{name: "sentinel quota", err: ErrQuota, want: ErrorClassQuota},
		{name: "sentinel auth", err: ErrUnauthorized, want: ErrorClassAuth},
		{
			name: "quotaExceeded reason",
			err:  &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}}},
			want: ErrorClassQuota,
		},
		{
			name: "rateLimitExceeded reason",
			err:  &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "rateLimitExceeded"}}},
			want: ErrorClassQuota,
		},
		{
			name: "liveChatEnded reason",
			err:  &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "liveChatEnded"}}},
			want: ErrorClassTerminal,
		},
		{
			name: "liveChatDisabled reason",
			err:  &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "liveChatDisabled"}}},
			want: ErrorClassTerminal,
		},
		{
			name: "forbidden reason",
			err:  &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}},
			want: ErrorClassAuth,
		},
		{name: "bare 401", err: &googleapi.Error{Code: 401}, want: ErrorClassAuth},
		{name: "bare 403", err: &googleapi.Error{Code: 403}, want: ErrorClassAuth},
		{name: "404 chat gone", err: &googleapi.Error{Code: 404}, want: ErrorClassTerminal},
		{name: "500", err: &googleapi.Error{Code: 500}, want: ErrorClassTransient},
		{name: "503", err: &googleapi.Error{Code: 503}, want: ErrorClassTransient},
		{
			name: "wrapped googleapi",
			err:  fmt.Errorf("list chat messages: %w", &googleapi.Error{Code: 502}),
			want: ErrorClassTransient,
		},
		{name: "plain network error", err: errors.New("dial tcp: connection refused"), want: ErrorClassTransient},
		{name: "missing stored token", err: errors.New("no youtube token stored"), want: ErrorClassAuth},
		{name: "revoked grant", err: errors.New(`oauth2: "invalid_grant" token expired or revoked`), want: ErrorClassAuth},
		{name: "plain quota wording", err: errors.New("request would exceed quota"), want: ErrorClassQuota},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify(%v) = %s, want %s", tc.err, got, tc.want)
			}
		})
	}
}

func TestPredicates(t *testing.T) {
	if !IsTerminal(ErrChatEnded) || IsTerminal(nil) {
		t.Error("IsTerminal misclassified")
	}
	if !IsQuota(fmt.Errorf("x: %w", ErrQuota)) || IsQuota(errors.New("boom")) {
		t.Error("IsQuota misclassified")
	}
	if !IsAuth(ErrUnauthorized) || IsAuth(errors.New("boom")) {
		t.Error("IsAuth misclassified")
	}
}
