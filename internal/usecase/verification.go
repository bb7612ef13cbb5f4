package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/id-verify/internal/logging"
	"github.com/example/id-verify/internal/repository"
	"github.com/example/id-verify/internal/verify"
)

// RequestStore defines the persistence operations needed by the use case.
type RequestStore interface {
	Create(ctx context.Context, request *repository.VerificationRequest) error
	FindByRequestID(ctx context.Context, requestID, userID string) (*repository.VerificationRequest, error)
	UpdateStatus(ctx context.Context, requestID string, status repository.Status, reviewerNotes string, reviewedAt time.Time) error
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// Verifier runs the photo comparison rules.
type Verifier interface {
	Verify(ctx context.Context, idPhoto, selfie verify.File) (*verify.Verdict, error)
}

// Gate decides whether a user may submit right now.
type Gate interface {
	IsSubmissionBlocked(ctx context.Context, userID string) bool
}

// VerificationUseCase encapsulates business logic for the verification flow.
type VerificationUseCase struct {
	store          RequestStore
	gate           Gate
	engine         Verifier
	cache          Cache
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	now            func() time.Time
}

// SubmissionResult is the outcome of a submission attempt. Exactly one of
// Blocked, an invalid Verdict, or a populated RequestID applies.
type SubmissionResult struct {
	RequestID string
	Verdict   *verify.Verdict
	Blocked   bool
}

type cachedStatus struct {
	RequestID   string    `json:"request_id"`
	UserID      string    `json:"user_id"`
	Status      string    `json:"status"`
	Code        string    `json:"code,omitempty"`
	Detail      string    `json:"detail,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// NewVerificationUseCase constructs a new use case instance.
func NewVerificationUseCase(store RequestStore, gate Gate, engine Verifier, cache Cache, logger *zap.Logger) *VerificationUseCase {
	return &VerificationUseCase{
		store:          store,
		gate:           gate,
		engine:         engine,
		cache:          cache,
		logger:         logger.Named("verification_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
		now:            time.Now,
	}
}

// Submit runs the full flow for one verification attempt: the gatekeeper is
// consulted first (a blocked user never reaches inference), then the engine
// compares the photos, and only a passing verdict creates a pending request.
// Failed verdicts are returned to the caller without a store row: the
// cooldown applies to reviewer-rejected requests, not to bounced uploads.
func (uc *VerificationUseCase) Submit(ctx context.Context, userID string, idPhoto, selfie verify.File, documents string) (*SubmissionResult, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.submit", requestID)

	if uc.gate.IsSubmissionBlocked(ctx, userID) {
		opLogger.Info("submission blocked by gatekeeper", zap.String("user_id", userID))
		return &SubmissionResult{Blocked: true}, nil
	}

	cacheKey := statusCacheKey(requestID)
	if err := uc.withRedisRetry(ctx, requestID, "cache.set.processing", func() error {
		return uc.cache.Set(ctx, cacheKey, "processing", processingTTL)
	}); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return nil, err
	}

	verdict, err := uc.engine.Verify(ctx, idPhoto, selfie)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.verify_photos", requestID, err)
		opLogger.Error("verification engine failed", zap.Error(wrapped))
		return nil, wrapped
	}

	if !verdict.Valid {
		opLogger.Info("verification declined",
			zap.String("code", string(verdict.Code)), zap.String("user_id", userID))
		uc.cacheStatus(ctx, opLogger, cachedStatus{
			RequestID:   requestID,
			UserID:      userID,
			Status:      "declined",
			Code:        string(verdict.Code),
			Detail:      verdict.Description,
			SubmittedAt: uc.now().UTC(),
		})
		return &SubmissionResult{Verdict: verdict}, nil
	}

	request := &repository.VerificationRequest{
		RequestID:   requestID,
		UserID:      userID,
		Status:      repository.StatusPending,
		Documents:   documents,
		SubmittedAt: uc.now().UTC(),
	}
	if err := uc.store.Create(ctx, request); err != nil {
		wrapped := logging.NewOperationError("usecase.create_request", requestID, err)
		opLogger.Error("failed to persist verification request", zap.Error(wrapped))
		return nil, wrapped
	}

	uc.cacheStatus(ctx, opLogger, cachedStatus{
		RequestID:   requestID,
		UserID:      userID,
		Status:      string(repository.StatusPending),
		SubmittedAt: request.SubmittedAt,
	})

	return &SubmissionResult{RequestID: requestID, Verdict: verdict}, nil
}

// StatusRecord is the caller-facing view of a submission's state.
type StatusRecord struct {
	RequestID   string
	UserID      string
	Status      string
	Code        string
	Detail      string
	SubmittedAt time.Time
}

// Status retrieves a cached submission outcome or falls back to persistence.
func (uc *VerificationUseCase) Status(ctx context.Context, userID, requestID string) (*StatusRecord, error) {
	cacheKey := statusCacheKey(requestID)
	if cached, err := uc.withRedisGet(ctx, requestID, "cache.get.status", cacheKey); err == nil {
		var payload cachedStatus
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			logging.WithOperation(uc.logger, "usecase.status", requestID).Warn("failed to decode cached status", zap.Error(err))
		} else if payload.UserID == userID {
			return &StatusRecord{
				RequestID:   payload.RequestID,
				UserID:      payload.UserID,
				Status:      payload.Status,
				Code:        payload.Code,
				Detail:      payload.Detail,
				SubmittedAt: payload.SubmittedAt,
			}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.status", requestID).Warn("failed to read cache", zap.Error(err))
	}

	request, err := uc.store.FindByRequestID(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	return &StatusRecord{
		RequestID:   request.RequestID,
		UserID:      request.UserID,
		Status:      string(request.Status),
		Detail:      request.ReviewerNotes,
		SubmittedAt: request.SubmittedAt,
	}, nil
}

// Review records a manual decision on a pending request and refreshes the
// cached status.
func (uc *VerificationUseCase) Review(ctx context.Context, userID, requestID string, approve bool, notes string) error {
	opLogger := logging.WithOperation(uc.logger, "usecase.review", requestID)

	request, err := uc.store.FindByRequestID(ctx, requestID, userID)
	if err != nil {
		return err
	}
	if request.Status != repository.StatusPending {
		return logging.NewOperationError("usecase.review", requestID,
			fmt.Errorf("request is %s, only pending requests can be reviewed", request.Status))
	}

	status := repository.StatusRejected
	if approve {
		status = repository.StatusApproved
	}
	reviewedAt := uc.now().UTC()
	if err := uc.store.UpdateStatus(ctx, requestID, status, notes, reviewedAt); err != nil {
		opLogger.Error("failed to update request status", zap.Error(err))
		return err
	}

	uc.cacheStatus(ctx, opLogger, cachedStatus{
		RequestID:   requestID,
		UserID:      request.UserID,
		Status:      string(status),
		Detail:      notes,
		SubmittedAt: request.SubmittedAt,
	})
	return nil
}

func statusCacheKey(requestID string) string {
	return fmt.Sprintf("verification:%s", requestID)
}

// cacheStatus writes the status payload to Redis on a best-effort basis: the
// store already holds the durable record, so a cache failure is logged and
// swallowed.
func (uc *VerificationUseCase) cacheStatus(ctx context.Context, opLogger *zap.Logger, payload cachedStatus) {
	serialized, err := json.Marshal(payload)
	if err != nil {
		opLogger.Error("failed to serialize status payload", zap.Error(err))
		return
	}
	if err := uc.withRedisRetry(ctx, payload.RequestID, "cache.set.status", func() error {
		return uc.cache.Set(ctx, statusCacheKey(payload.RequestID), string(serialized), statusTTL)
	}); err != nil {
		opLogger.Warn("failed to cache status", zap.Error(err))
	}
}

func (uc *VerificationUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	if uc.retryAttempts <= 1 {
		err := fn()
		return logging.NewOperationError(operation, requestID, err)
	}

	backoff := uc.initialBackoff
	opLogger := logging.WithOperation(uc.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < uc.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= uc.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("redis operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !logging.IsTransient(err) || attempt == uc.retryAttempts-1 {
			opLogger.Error("redis operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient redis error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}

func (uc *VerificationUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
	var result string
	err := uc.withRedisRetry(ctx, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}
