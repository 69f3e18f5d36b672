package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// scanHistoryLimit caps the previous-records listing.
const scanHistoryLimit = 50

// MetricsAggregation holds raw aggregates over persisted scans.
type MetricsAggregation struct {
	TotalCount         int64
	PositiveCount      int64
	AverageProbability float64
}

// ScanRepository provides persistence for completed analyses.
type ScanRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	retry  retryPolicy
}

// NewScanRepository creates a new repository instance.
func NewScanRepository(db *gorm.DB, logger *zap.Logger) *ScanRepository {
	return &ScanRepository{
		db:     db,
		logger: logger.Named("scan_repository"),
		retry:  defaultRetryPolicy(),
	}
}

// AutoMigrate ensures the scan_records schema is available.
func (r *ScanRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&ScanRecord{})
}

// SaveScan persists one completed analysis.
func (r *ScanRepository) SaveScan(ctx context.Context, record *ScanRecord) error {
	return r.retry.execute(ctx, r.logger, "repository.save_scan", record.RequestID, func() error {
		return r.db.WithContext(ctx).Create(record).Error
	})
}

// FindByRequestIDAndUser retrieves a scan matching the request and owner.
func (r *ScanRepository) FindByRequestIDAndUser(ctx context.Context, requestID string, userID uint) (*ScanRecord, error) {
	var record ScanRecord
	err := r.db.WithContext(ctx).First(&record, "request_id = ? AND user_id = ?", requestID, userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// ListByUser returns a user's most recent scans, newest first.
func (r *ScanRepository) ListByUser(ctx context.Context, userID uint) ([]ScanRecord, error) {
	var records []ScanRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(scanHistoryLimit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// AggregateMetrics computes totals over all persisted scans.
func (r *ScanRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	err := r.db.WithContext(ctx).
		Model(&ScanRecord{}).
		Select("COUNT(*) AS total_count, " +
			"COALESCE(SUM(CASE WHEN positive THEN 1 ELSE 0 END), 0) AS positive_count, " +
			"COALESCE(AVG(probability), 0) AS average_probability").
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	return &agg, nil
}
