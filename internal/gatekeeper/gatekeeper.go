// Package gatekeeper decides whether a user may submit a new verification
// request right now.
package gatekeeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/example/id-verify/internal/repository"
)

// RejectionCooldown is how long a reviewer-rejected request blocks new
// submissions from the same user, measured from the rejected request's
// submission time.
const RejectionCooldown = 7 * 24 * time.Hour

// RequestSource looks up prior submissions. *repository.RequestRepository
// satisfies it.
type RequestSource interface {
	LatestByUser(ctx context.Context, userID string) (*repository.VerificationRequest, error)
}

// Gatekeeper applies the resubmission policy: one active request per user,
// and a cooldown after a rejection.
type Gatekeeper struct {
	store    RequestSource
	logger   *zap.Logger
	cooldown time.Duration
	now      func() time.Time
}

// New builds a gatekeeper with the default cooldown.
func New(store RequestSource, logger *zap.Logger) *Gatekeeper {
	return &Gatekeeper{
		store:    store,
		logger:   logger.Named("gatekeeper"),
		cooldown: RejectionCooldown,
		now:      time.Now,
	}
}

// IsSubmissionBlocked reports whether a new submission from the user must be
// refused. A store lookup failure blocks the submission: letting one through
// unchecked could create a second active request for the user.
func (g *Gatekeeper) IsSubmissionBlocked(ctx context.Context, userID string) bool {
	latest, err := g.store.LatestByUser(ctx, userID)
	if err != nil {
		g.logger.Error("request lookup failed, blocking submission",
			zap.String("user_id", userID), zap.Error(err))
		return true
	}
	if latest == nil {
		return false
	}

	switch latest.Status {
	case repository.StatusPending, repository.StatusApproved:
		return true
	case repository.StatusRejected:
		return g.now().Sub(latest.SubmittedAt) < g.cooldown
	default:
		return false
	}
}
