package usecase

import "context"

// MetricsSummary represents aggregated screening insights.
type MetricsSummary struct {
	TotalScans         int64   `json:"total_scans"`
	PositiveScans      int64   `json:"positive_scans"`
	PositiveRate       float64 `json:"positive_rate"`
	AverageProbability float64 `json:"average_probability"`
}

// GetMetricsSummary aggregates screening metrics from persisted scans.
func (uc *AnalysisUseCase) GetMetricsSummary(ctx context.Context) (*MetricsSummary, error) {
	aggregation, err := uc.scans.AggregateMetrics(ctx)
	if err != nil {
		return nil, err
	}

	summary := &MetricsSummary{
		TotalScans:         aggregation.TotalCount,
		PositiveScans:      aggregation.PositiveCount,
		AverageProbability: aggregation.AverageProbability,
	}

	if aggregation.TotalCount > 0 {
		summary.PositiveRate = float64(aggregation.PositiveCount) / float64(aggregation.TotalCount)
	}

	return summary, nil
}
