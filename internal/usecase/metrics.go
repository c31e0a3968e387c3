package usecase

import (
	"context"
	"math"
)

// MetricsSummary represents aggregated identification insights.
type MetricsSummary struct {
	TotalRequests              int64   `json:"total_requests"`
	AcceptedRequests           int64   `json:"accepted_requests"`
	LowQualityRequests         int64   `json:"low_quality_requests"`
	AcceptanceRate             float64 `json:"acceptance_rate"`
	AverageTopScore            float64 `json:"average_top_score"`
	AverageProcessingLatencyMs float64 `json:"average_processing_latency_ms"`
}

// GetMetricsSummary aggregates identification metrics from persisted logs.
func (uc *IdentificationUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.repo.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalRequests:              aggregation.TotalCount,
		AcceptedRequests:           aggregation.AcceptedCount,
		LowQualityRequests:         aggregation.LowQualityCount,
		AverageTopScore:            round2(aggregation.AverageTopScore),
		AverageProcessingLatencyMs: round2(aggregation.AverageProcessingLatencyMs),
	}

	if aggregation.TotalCount > 0 {
		summary.AcceptanceRate = float64(aggregation.AcceptedCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
