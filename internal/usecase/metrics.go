package usecase

import "context"

// MetricsSummary represents aggregated verification insights.
type MetricsSummary struct {
	TotalRequests          int64   `json:"total_requests"`
	PendingRequests        int64   `json:"pending_requests"`
	ApprovedRequests       int64   `json:"approved_requests"`
	RejectedRequests       int64   `json:"rejected_requests"`
	ExpiredRequests        int64   `json:"expired_requests"`
	ApprovalRate           float64 `json:"approval_rate"`
	AverageReviewLatencyMs float64 `json:"average_review_latency_ms"`
}

// GetMetricsSummary aggregates verification metrics from persisted requests.
func (uc *VerificationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.store.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:          aggregation.TotalCount,
		PendingRequests:        aggregation.PendingCount,
		ApprovedRequests:       aggregation.ApprovedCount,
		RejectedRequests:       aggregation.RejectedCount,
		ExpiredRequests:        aggregation.ExpiredCount,
		AverageReviewLatencyMs: aggregation.AverageReviewLatencyMs,
	}

	if reviewed := aggregation.ApprovedCount + aggregation.RejectedCount; reviewed > 0 {
		summary.ApprovalRate = float64(aggregation.ApprovedCount) / float64(reviewed)
	}

	return summary, nil
}
