package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/id-verify/internal/logging"
)

// Status is the lifecycle state of a verification request.
type Status string

// Request lifecycle states. Pending and approved are "active": at most one
// active request may exist per user, enforced ahead of Create by the
// gatekeeper.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// VerificationRequest is a persisted submission and its review state.
type VerificationRequest struct {
	ID            uint       `gorm:"primaryKey"`
	RequestID     string     `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID        string     `gorm:"column:user_id;size:64;index"`
	Status        Status     `gorm:"column:status;size:20;default:'pending';index"`
	Documents     string     `gorm:"column:documents;type:text"`
	ReviewerNotes string     `gorm:"column:reviewer_notes;type:text"`
	SubmittedAt   time.Time  `gorm:"column:submitted_at;index"`
	ReviewedAt    *time.Time `gorm:"column:reviewed_at"`
}

// TableName overrides the default table name.
func (VerificationRequest) TableName() string {
	return "verification_requests"
}

// MetricsAggregation holds raw aggregates over all persisted requests.
type MetricsAggregation struct {
	TotalCount             int64
	PendingCount           int64
	ApprovedCount          int64
	RejectedCount          int64
	ExpiredCount           int64
	AverageReviewLatencyMs float64
}

// RequestRepository provides persistence APIs for verification requests.
type RequestRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewRequestRepository creates a new repository instance.
func NewRequestRepository(db *gorm.DB, logger *zap.Logger) *RequestRepository {
	return &RequestRepository{
		db:             db,
		logger:         logger.Named("request_repository"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AutoMigrate ensures the schema is available.
func (r *RequestRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&VerificationRequest{})
}

// Create persists a new verification request.
func (r *RequestRepository) Create(ctx context.Context, request *VerificationRequest) error {
	return r.executeWithRetry(ctx, "repository.create", request.RequestID, func() error {
		return r.db.WithContext(ctx).Create(request).Error
	})
}

// LatestByUser returns the user's most recent request by submission time, or
// nil when the user has never submitted.
func (r *RequestRepository) LatestByUser(ctx context.Context, userID string) (*VerificationRequest, error) {
	var request VerificationRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("submitted_at DESC").
		First(&request).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, logging.NewOperationError("repository.latest_by_user", "", err)
	}
	return &request, nil
}

// FindByRequestID retrieves a request matching the id and owner.
func (r *RequestRepository) FindByRequestID(ctx context.Context, requestID, userID string) (*VerificationRequest, error) {
	var request VerificationRequest
	if err := r.db.WithContext(ctx).First(&request, "request_id = ? AND user_id = ?", requestID, userID).Error; err != nil {
		return nil, logging.NewOperationError("repository.find_by_request_id", requestID, err)
	}
	return &request, nil
}

// UpdateStatus records a review decision on a request.
func (r *RequestRepository) UpdateStatus(ctx context.Context, requestID string, status Status, reviewerNotes string, reviewedAt time.Time) error {
	return r.executeWithRetry(ctx, "repository.update_status", requestID, func() error {
		result := r.db.WithContext(ctx).
			Model(&VerificationRequest{}).
			Where("request_id = ?", requestID).
			Updates(map[string]interface{}{
				"status":         status,
				"reviewer_notes": reviewerNotes,
				"reviewed_at":    reviewedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// AggregateMetrics computes request counts per status and the average review
// latency over reviewed requests.
func (r *RequestRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var aggregation MetricsAggregation
	err := r.db.WithContext(ctx).
		Model(&VerificationRequest{}).
		Select(`COUNT(*) AS total_count,
			COUNT(*) FILTER (WHERE status = 'pending') AS pending_count,
			COUNT(*) FILTER (WHERE status = 'approved') AS approved_count,
			COUNT(*) FILTER (WHERE status = 'rejected') AS rejected_count,
			COUNT(*) FILTER (WHERE status = 'expired') AS expired_count,
			COALESCE(AVG(EXTRACT(EPOCH FROM (reviewed_at - submitted_at)) * 1000) FILTER (WHERE reviewed_at IS NOT NULL), 0) AS average_review_latency_ms`).
		Scan(&aggregation).Error
	if err != nil {
		return nil, logging.NewOperationError("repository.aggregate_metrics", "", err)
	}
	return &aggregation, nil
}

func (r *RequestRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	if r.retryAttempts <= 1 {
		return logging.NewOperationError(operation, requestID, fn())
	}

	backoff := r.initialBackoff
	opLogger := logging.WithOperation(r.logger, operation, requestID)
	var err error
	for attempt := 0; attempt < r.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return logging.NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= r.maxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("database operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !logging.IsTransient(err) || attempt == r.retryAttempts-1 {
			opLogger.Error("database operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return logging.NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient database error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return logging.NewOperationError(operation, requestID, err)
}
