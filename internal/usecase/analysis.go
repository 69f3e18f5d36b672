package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/chestscan/internal/inference"
	"github.com/example/chestscan/internal/logging"
	"github.com/example/chestscan/internal/repository"
	"github.com/example/chestscan/internal/upload"
)

// ScanStore defines the persistence operations needed by the use case.
type ScanStore interface {
	SaveScan(ctx context.Context, record *repository.ScanRecord) error
	FindByRequestIDAndUser(ctx context.Context, requestID string, userID uint) (*repository.ScanRecord, error)
	ListByUser(ctx context.Context, userID uint) ([]repository.ScanRecord, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// FileStore writes validated uploads to disk.
type FileStore interface {
	Save(fileName string, r io.Reader) (*upload.StoredFile, error)
}

// AnalysisUseCase orchestrates the upload → inference → persistence flow.
type AnalysisUseCase struct {
	scans          ScanStore
	files          FileStore
	classifier     inference.Classifier
	cache          Cache
	logger         *zap.Logger
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// Result is what one analysis produces for the caller.
type Result struct {
	RequestID   string
	Positive    bool
	Probability float32
	StoredPath  string
}

type cachedScan struct {
	RequestID   string    `json:"request_id"`
	UserID      uint      `json:"user_id"`
	FileName    string    `json:"file_name"`
	StoredPath  string    `json:"stored_path"`
	Hash        string    `json:"sha1_hash"`
	Probability float32   `json:"probability"`
	Positive    bool      `json:"positive"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewAnalysisUseCase constructs a new use case instance.
func NewAnalysisUseCase(scans ScanStore, files FileStore, classifier inference.Classifier, cache Cache, logger *zap.Logger) *AnalysisUseCase {
	return &AnalysisUseCase{
		scans:          scans,
		files:          files,
		classifier:     classifier,
		cache:          cache,
		logger:         logger.Named("analysis_usecase"),
		retryAttempts:  3,
		initialBackoff: 50 * time.Millisecond,
		maxBackoff:     time.Second,
	}
}

// AnalyseUpload stores the submitted image, runs inference on it, persists
// the scan record, and caches the result. Upload and inference failures are
// returned as their sentinel errors so the handler can render each branch.
func (uc *AnalysisUseCase) AnalyseUpload(ctx context.Context, userID uint, fileName string, file io.Reader) (*Result, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.analyse_upload", requestID)

	stored, err := uc.files.Save(fileName, file)
	if err != nil {
		opLogger.Warn("upload rejected", zap.String("file_name", fileName), zap.Error(err))
		return nil, err
	}

	tensor, err := inference.PreprocessFile(stored.Path)
	if err != nil {
		opLogger.Warn("preprocessing failed", zap.String("path", stored.Path), zap.Error(err))
		return nil, err
	}

	prediction, err := uc.classifier.Classify(ctx, tensor)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.classify", requestID, err)
		opLogger.Error("inference failed", zap.Error(wrapped))
		return nil, wrapped
	}

	record := &repository.ScanRecord{
		RequestID:   requestID,
		UserID:      userID,
		FileName:    stored.Name,
		StoredPath:  stored.Path,
		SHA1Hash:    stored.SHA1Hash,
		Probability: prediction.Probability,
		Positive:    prediction.Positive(),
		CreatedAt:   time.Now().UTC(),
	}
	if err := uc.scans.SaveScan(ctx, record); err != nil {
		wrapped := logging.NewOperationError("usecase.save_scan", requestID, err)
		opLogger.Error("failed to persist scan record", zap.Error(wrapped))
		return nil, wrapped
	}

	// The record is already persisted, so a cache failure only costs the
	// fast path on later lookups.
	if err := uc.cacheScan(ctx, record); err != nil {
		opLogger.Warn("failed to cache scan result", zap.Error(err))
	}

	opLogger.Info("analysis complete",
		zap.Bool("positive", record.Positive),
		zap.Float32("probability", record.Probability))

	return &Result{
		RequestID:   requestID,
		Positive:    record.Positive,
		Probability: record.Probability,
		StoredPath:  record.StoredPath,
	}, nil
}

// GetScan retrieves one scan, cache first, repository as fallback. Only the
// owner sees their record.
func (uc *AnalysisUseCase) GetScan(ctx context.Context, userID uint, requestID string) (*repository.ScanRecord, error) {
	cacheKey := scanCacheKey(requestID)
	if payload, err := uc.withCacheGet(ctx, requestID, "cache.get.scan", cacheKey); err == nil {
		var cached cachedScan
		if err := json.Unmarshal([]byte(payload), &cached); err != nil {
			logging.WithOperation(uc.logger, "usecase.get_scan", requestID).Warn("failed to decode cached scan", zap.Error(err))
		} else if cached.UserID == userID {
			return &repository.ScanRecord{
				RequestID:   cached.RequestID,
				UserID:      cached.UserID,
				FileName:    cached.FileName,
				StoredPath:  cached.StoredPath,
				SHA1Hash:    cached.Hash,
				Probability: cached.Probability,
				Positive:    cached.Positive,
				CreatedAt:   cached.CreatedAt,
			}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logging.WithOperation(uc.logger, "usecase.get_scan", requestID).Warn("failed to read cache", zap.Error(err))
	}

	return uc.scans.FindByRequestIDAndUser(ctx, requestID, userID)
}

// ListScans returns the user's scan history, newest first.
func (uc *AnalysisUseCase) ListScans(ctx context.Context, userID uint) ([]repository.ScanRecord, error) {
	return uc.scans.ListByUser(ctx, userID)
}

func (uc *AnalysisUseCase) cacheScan(ctx context.Context, record *repository.ScanRecord) error {
	cached := cachedScan{
		RequestID:   record.RequestID,
		UserID:      record.UserID,
		FileName:    record.FileName,
		StoredPath:  record.StoredPath,
		Hash:        record.SHA1Hash,
		Probability: record.Probability,
		Positive:    record.Positive,
		CreatedAt:   record.CreatedAt,
	}
	serialized, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return uc.withCacheRetry(ctx, record.RequestID, "cache.set.scan", func() error {
		return uc.cache.Set(ctx, scanCacheKey(record.RequestID), string(serialized), 5*time.Minute)
	})
}

func scanCacheKey(requestID string) string {
	return "scan:" + requestID
}
