package repository

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Faissen/signatures-recognition/internal/imageprocessor"
	"github.com/Faissen/signatures-recognition/internal/retry"
	"github.com/Faissen/signatures-recognition/internal/signature"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicate is returned when a signature with the same image hash exists.
	ErrDuplicate = errors.New("repository: duplicate signature")
)

// SignatureRepository persists enrolled signatures and identification logs.
// It also serves the enrolled signatures as a gallery.
type SignatureRepository struct {
	db             *gorm.DB
	logger         *zap.Logger
	opts           signature.Options
	retryAttempts  int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewSignatureRepository creates a repository. opts must match the options
// the stored canvases were normalized with.
func NewSignatureRepository(db *gorm.DB, opts signature.Options, logger *zap.Logger) *SignatureRepository {
	policy := retry.DefaultPolicy()
	return &SignatureRepository{
		db:             db,
		logger:         logger.Named("signature_repository"),
		opts:           opts,
		retryAttempts:  policy.Attempts,
		initialBackoff: policy.InitialBackoff,
		maxBackoff:     policy.MaxBackoff,
	}
}

// AutoMigrate ensures the schema is available.
func (r *SignatureRepository) AutoMigrate(ctx context.Context) error {
	return r.executeWithRetry(ctx, "repository.auto_migrate", "", func() error {
		return r.db.WithContext(ctx).AutoMigrate(&EnrolledSignature{}, &IdentificationLog{})
	})
}

// SaveSignature stores a newly enrolled signature.
func (r *SignatureRepository) SaveSignature(ctx context.Context, sig *EnrolledSignature) error {
	return r.executeWithRetry(ctx, "repository.save_signature", "", func() error {
		err := r.db.WithContext(ctx).Create(sig).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return err
	})
}

// FindSignatureByHash looks up an enrolled signature by image hash.
func (r *SignatureRepository) FindSignatureByHash(ctx context.Context, hash string) (*EnrolledSignature, error) {
	var sig EnrolledSignature
	err := r.executeWithRetry(ctx, "repository.find_signature_by_hash", "", func() error {
		return notFound(r.db.WithContext(ctx).First(&sig, "sha1_hash = ?", hash).Error)
	})
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

// ListSignatures returns every enrolled signature in enrollment order.
func (r *SignatureRepository) ListSignatures(ctx context.Context) ([]EnrolledSignature, error) {
	var rows []EnrolledSignature
	err := r.executeWithRetry(ctx, "repository.list_signatures", "", func() error {
		rows = rows[:0]
		return r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountSignatures returns the gallery size.
func (r *SignatureRepository) CountSignatures(ctx context.Context) (int64, error) {
	var n int64
	err := r.executeWithRetry(ctx, "repository.count_signatures", "", func() error {
		return r.db.WithContext(ctx).Model(&EnrolledSignature{}).Count(&n).Error
	})
	return n, err
}

// Entries implements gallery.Provider over the stored canvases.
func (r *SignatureRepository) Entries(ctx context.Context) ([]signature.GalleryEntry, error) {
	rows, err := r.ListSignatures(ctx)
	if err != nil {
		return nil, err
	}
	return galleryEntries(rows, r.opts)
}

// galleryEntries decodes stored rows in order. A row whose canvas cannot be
// restored fails the whole gallery.
func galleryEntries(rows []EnrolledSignature, opts signature.Options) ([]signature.GalleryEntry, error) {
	entries := make([]signature.GalleryEntry, len(rows))
	for i, row := range rows {
		c, err := imageprocessor.DecodeCanvas(row.Canvas, opts)
		if err != nil {
			return nil, &signature.EntryError{Identity: row.PersonName, Index: i, Err: err}
		}
		entries[i] = signature.GalleryEntry{Identity: row.PersonName, Canvas: c}
	}
	return entries, nil
}

// SaveLog persists an identification log entry.
func (r *SignatureRepository) SaveLog(ctx context.Context, log *IdentificationLog) error {
	return r.executeWithRetry(ctx, "repository.save_log", log.RequestID, func() error {
		return r.db.WithContext(ctx).Create(log).Error
	})
}

// FindByRequestIDAndUser retrieves an identification log owned by userID.
func (r *SignatureRepository) FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*IdentificationLog, error) {
	var log IdentificationLog
	err := r.executeWithRetry(ctx, "repository.find_log", requestID, func() error {
		return notFound(r.db.WithContext(ctx).First(&log, "request_id = ? AND user_id = ?", requestID, userID).Error)
	})
	if err != nil {
		return nil, err
	}
	return &log, nil
}

// FindDuplicatesByHash lists the other identifications of the same image by
// userID, newest first.
func (r *SignatureRepository) FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*IdentificationLog, error) {
	var logs []*IdentificationLog
	err := r.executeWithRetry(ctx, "repository.find_duplicates", excludeRequestID, func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND sha1_hash = ? AND request_id <> ?", userID, hash, excludeRequestID).
			Order("created_at DESC").
			Find(&logs).Error
	})
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// AggregateMetrics summarizes every identification log.
func (r *SignatureRepository) AggregateMetrics(ctx context.Context) (*MetricsAggregation, error) {
	var agg MetricsAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_metrics", "", func() error {
		return r.db.WithContext(ctx).
			Model(&IdentificationLog{}).
			Select(`COUNT(*) AS total_count,
				COALESCE(SUM(CASE WHEN accepted THEN 1 ELSE 0 END), 0) AS accepted_count,
				COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS low_quality_count,
				COALESCE(AVG(CASE WHEN status = ? THEN top_score END), 0) AS average_top_score,
				COALESCE(AVG(processing_latency_ms), 0) AS average_processing_latency_ms`,
				StatusLowQuality, StatusOK).
			Scan(&agg).Error
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}

func (r *SignatureRepository) executeWithRetry(ctx context.Context, operation, requestID string, fn func() error) error {
	policy := retry.Policy{Attempts: r.retryAttempts, InitialBackoff: r.initialBackoff, MaxBackoff: r.maxBackoff}
	return policy.Do(ctx, r.logger, operation, requestID, fn)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
