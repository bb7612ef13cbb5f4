package gatekeeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/example/id-verify/internal/repository"
)

type stubRequestSource struct {
	latest *repository.VerificationRequest
	err    error
}

func (s *stubRequestSource) LatestByUser(ctx context.Context, userID string) (*repository.VerificationRequest, error) {
	return s.latest, s.err
}

func newTestGatekeeper(store RequestSource, now time.Time) *Gatekeeper {
	return &Gatekeeper{
		store:    store,
		logger:   zap.NewNop(),
		cooldown: RejectionCooldown,
		now:      func() time.Time { return now },
	}
}

func TestIsSubmissionBlocked(t *testing.T) {
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	rejected := func(age time.Duration) *repository.VerificationRequest {
		return &repository.VerificationRequest{
			Status:      repository.StatusRejected,
			SubmittedAt: now.Add(-age),
		}
	}

	cases := []struct {
		name    string
		latest  *repository.VerificationRequest
		blocked bool
	}{
		{"no prior request", nil, false},
		{"pending request", &repository.VerificationRequest{Status: repository.StatusPending, SubmittedAt: now.Add(-time.Hour)}, true},
		{"approved request", &repository.VerificationRequest{Status: repository.StatusApproved, SubmittedAt: now.Add(-30 * 24 * time.Hour)}, true},
		{"rejected six days ago", rejected(6 * 24 * time.Hour), true},
		{"rejected exactly seven days ago", rejected(RejectionCooldown), false},
		{"rejected eight days ago", rejected(8 * 24 * time.Hour), false},
		{"expired request", &repository.VerificationRequest{Status: repository.StatusExpired, SubmittedAt: now.Add(-time.Hour)}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := newTestGatekeeper(&stubRequestSource{latest: tc.latest}, now)
			if got := gate.IsSubmissionBlocked(context.Background(), "user-1"); got != tc.blocked {
				t.Fatalf("expected blocked=%v, got %v", tc.blocked, got)
			}
		})
	}
}

func TestIsSubmissionBlockedFailsClosed(t *testing.T) {
	gate := newTestGatekeeper(&stubRequestSource{err: errors.New("store unreachable")}, time.Now())

	if !gate.IsSubmissionBlocked(context.Background(), "user-1") {
		t.Fatal("a failed store lookup must block the submission")
	}
}
