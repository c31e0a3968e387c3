package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faissen/signatures-recognition/internal/gallery"
	"github.com/Faissen/signatures-recognition/internal/imageprocessor"
	"github.com/Faissen/signatures-recognition/internal/logging"
	"github.com/Faissen/signatures-recognition/internal/repository"
	"github.com/Faissen/signatures-recognition/internal/retry"
	"github.com/Faissen/signatures-recognition/internal/signature"
)

// Cached request states that never reach the identification log.
const (
	// StatusProcessing marks a cached request that has not finished yet.
	StatusProcessing = "processing"
	// StatusFailed replaces the processing marker when the request errors out.
	StatusFailed = "failed"
)

// failedResultTTL bounds how long a failed request stays visible.
const failedResultTTL = time.Minute

// DefaultAcceptThreshold is the top score at which a match is reported as
// accepted.
const DefaultAcceptThreshold = 60.0

var (
	// ErrAlreadyEnrolled is returned when the same image was enrolled before.
	ErrAlreadyEnrolled = errors.New("signature already enrolled")
	// ErrInvalidName is returned when an enrollment has no person name.
	ErrInvalidName = errors.New("person name is required")
	// ErrResultNotFound is returned when no identification matches the request.
	ErrResultNotFound = errors.New("identification result not found")
)

// SignatureRepository defines the persistence operations needed by the use case.
type SignatureRepository interface {
	SaveSignature(ctx context.Context, sig *repository.EnrolledSignature) error
	FindSignatureByHash(ctx context.Context, hash string) (*repository.EnrolledSignature, error)
	SaveLog(ctx context.Context, log *repository.IdentificationLog) error
	FindByRequestIDAndUser(ctx context.Context, requestID, userID string) (*repository.IdentificationLog, error)
	FindDuplicatesByHash(ctx context.Context, userID, hash, excludeRequestID string) ([]*repository.IdentificationLog, error)
	AggregateMetrics(ctx context.Context) (*repository.MetricsAggregation, error)
}

// Matcher is the matching pipeline; *signature.Engine implements it.
type Matcher interface {
	Prepare(raw *image.Gray) (*signature.Canvas, error)
	Rank(ctx context.Context, query *signature.Canvas, entries []signature.GalleryEntry) (*signature.Outcome, error)
	IsCursive(c *signature.Canvas) bool
}

// TextExtractor reads handwritten text from a signature image.
type TextExtractor interface {
	ExtractText(ctx context.Context, imageBytes []byte) (string, error)
}

// IdentificationResult is the outcome of one identification request.
type IdentificationResult struct {
	RequestID           string                  `json:"request_id"`
	UserID              string                  `json:"user_id"`
	Status              string                  `json:"status"`
	TopMatches          []signature.MatchResult `json:"top_matches"`
	All                 []signature.MatchResult `json:"all,omitempty"`
	Accepted            bool                    `json:"accepted"`
	Threshold           float64                 `json:"threshold"`
	Cursive             bool                    `json:"cursive"`
	GallerySize         int                     `json:"gallery_size"`
	Text                string                  `json:"text,omitempty"`
	SHA1Hash            string                  `json:"sha1_hash"`
	ProcessingLatencyMs int64                   `json:"processing_latency_ms"`
	CreatedAt           time.Time               `json:"created_at"`
}

// DuplicateReport lists earlier identifications of the same image.
type DuplicateReport struct {
	Request    *IdentificationResult   `json:"request"`
	Duplicates []*IdentificationResult `json:"duplicates"`
}

// EnrollRequest carries one signature to add to the gallery.
type EnrollRequest struct {
	Name      string
	ImagePath string
	Image     []byte
}

// EnrollmentResult describes a stored gallery signature.
type EnrollmentResult struct {
	ID        uint      `json:"id"`
	Name      string    `json:"name"`
	InkPixels int       `json:"ink_pixels"`
	Cursive   bool      `json:"cursive"`
	SHA1Hash  string    `json:"sha1_hash"`
	CreatedAt time.Time `json:"created_at"`
}

// IdentificationUseCase encapsulates the identify and enroll flows.
type IdentificationUseCase struct {
	repo            SignatureRepository
	cache           Cache
	gallery         gallery.Provider
	matcher         Matcher
	text            TextExtractor
	logger          *zap.Logger
	acceptThreshold float64
	cacheTTL        time.Duration
	retryAttempts   int
	initialBackoff  time.Duration
	maxBackoff      time.Duration
}

// Option customizes an IdentificationUseCase.
type Option func(*IdentificationUseCase)

// WithAcceptThreshold sets the score at which the top match is accepted.
func WithAcceptThreshold(threshold float64) Option {
	return func(uc *IdentificationUseCase) { uc.acceptThreshold = threshold }
}

// WithCacheTTL sets how long finished results stay cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(uc *IdentificationUseCase) {
		if ttl > 0 {
			uc.cacheTTL = ttl
		}
	}
}

// WithTextExtractor enables text extraction on identify.
func WithTextExtractor(text TextExtractor) Option {
	return func(uc *IdentificationUseCase) { uc.text = text }
}

// NewIdentificationUseCase constructs a new use case instance. Enrollment only
// needs repo and matcher.
func NewIdentificationUseCase(repo SignatureRepository, cache Cache, provider gallery.Provider, matcher Matcher, logger *zap.Logger, opts ...Option) *IdentificationUseCase {
	policy := retry.DefaultPolicy()
	uc := &IdentificationUseCase{
		repo:            repo,
		cache:           cache,
		gallery:         provider,
		matcher:         matcher,
		logger:          logger.Named("identification_usecase"),
		acceptThreshold: DefaultAcceptThreshold,
		cacheTTL:        5 * time.Minute,
		retryAttempts:   policy.Attempts,
		initialBackoff:  policy.InitialBackoff,
		maxBackoff:      policy.MaxBackoff,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// AcceptThreshold returns the configured acceptance score.
func (uc *IdentificationUseCase) AcceptThreshold() float64 { return uc.acceptThreshold }

// Identify ranks the gallery against an uploaded signature. The request is
// logged and cached under a new request ID. A low-quality query is recorded
// too; the result is then returned along with an error wrapping
// signature.ErrLowQuality.
func (uc *IdentificationUseCase) Identify(ctx context.Context, userID string, imageBytes []byte) (*IdentificationResult, error) {
	requestID := uuid.NewString()
	started := time.Now()
	opLogger := logging.WithOperation(uc.logger, "usecase.identify", requestID)

	result := &IdentificationResult{
		RequestID:  requestID,
		UserID:     userID,
		Status:     StatusProcessing,
		TopMatches: []signature.MatchResult{},
		Threshold:  uc.acceptThreshold,
		SHA1Hash:   sha1Hex(imageBytes),
	}
	if err := uc.cacheResult(ctx, result, "cache.set.processing", time.Minute); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return nil, err
	}

	raw, err := imageprocessor.Decode(imageBytes)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.decode_image", requestID, err)
		opLogger.Warn("rejected undecodable upload", zap.Error(wrapped))
		uc.markFailed(ctx, opLogger, result)
		return nil, wrapped
	}

	query, err := uc.matcher.Prepare(raw)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.prepare_query", requestID, err)
		if !errors.Is(err, signature.ErrLowQuality) {
			opLogger.Error("failed to prepare query", zap.Error(wrapped))
			uc.markFailed(ctx, opLogger, result)
			return nil, wrapped
		}
		opLogger.Info("query quality too low", zap.Error(err))
		result.Status = repository.StatusLowQuality
		if err := uc.record(ctx, opLogger, result, started); err != nil {
			return nil, err
		}
		return result, wrapped
	}
	result.Cursive = uc.matcher.IsCursive(query)

	entries, err := uc.gallery.Entries(ctx)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.load_gallery", requestID, err)
		opLogger.Error("failed to load gallery", zap.Error(wrapped))
		uc.markFailed(ctx, opLogger, result)
		return nil, wrapped
	}

	outcome, err := uc.matcher.Rank(ctx, query, entries)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.rank", requestID, err)
		opLogger.Error("ranking failed", zap.Error(wrapped))
		uc.markFailed(ctx, opLogger, result)
		return nil, wrapped
	}

	result.GallerySize = len(entries)
	result.TopMatches = outcome.Top
	result.All = outcome.All
	result.Status = repository.StatusOK
	if len(entries) == 0 {
		result.Status = repository.StatusEmptyGallery
	}
	result.Accepted = len(outcome.Top) > 0 && outcome.Top[0].Score >= uc.acceptThreshold

	if uc.text != nil {
		text, err := uc.text.ExtractText(ctx, imageBytes)
		if err != nil {
			opLogger.Warn("text extraction failed", zap.Error(err))
		} else {
			result.Text = strings.TrimSpace(text)
		}
	}

	if err := uc.record(ctx, opLogger, result, started); err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.String("status", result.Status), zap.Int("gallery_size", result.GallerySize), zap.Bool("accepted", result.Accepted)}
	if len(result.TopMatches) > 0 {
		fields = append(fields, zap.String("top_identity", result.TopMatches[0].Identity), zap.Float64("top_score", result.TopMatches[0].Score))
	}
	opLogger.Info("identification finished", fields...)
	return result, nil
}

// record persists the identification log and caches the finished result.
func (uc *IdentificationUseCase) record(ctx context.Context, opLogger *zap.Logger, result *IdentificationResult, started time.Time) error {
	result.CreatedAt = time.Now().UTC()
	result.ProcessingLatencyMs = time.Since(started).Milliseconds()

	details, err := json.Marshal(result.TopMatches)
	if err != nil {
		opLogger.Error("failed to serialize matches", zap.Error(err))
		return logging.NewOperationError("usecase.serialize_matches", result.RequestID, err)
	}
	log := &repository.IdentificationLog{
		RequestID:           result.RequestID,
		UserID:              result.UserID,
		Status:              result.Status,
		Accepted:            result.Accepted,
		Details:             string(details),
		GallerySize:         result.GallerySize,
		ProcessingLatencyMs: result.ProcessingLatencyMs,
		SHA1Hash:            result.SHA1Hash,
		CreatedAt:           result.CreatedAt,
	}
	if len(result.TopMatches) > 0 {
		log.TopIdentity = result.TopMatches[0].Identity
		log.TopScore = result.TopMatches[0].Score
	}
	if err := uc.repo.SaveLog(ctx, log); err != nil {
		wrapped := logging.NewOperationError("usecase.save_log", result.RequestID, err)
		opLogger.Error("failed to persist identification log", zap.Error(wrapped))
		return wrapped
	}

	if err := uc.cacheResult(ctx, result, "cache.set.result", uc.cacheTTL); err != nil {
		opLogger.Error("failed to cache identification result", zap.Error(err))
		return err
	}
	return nil
}

// markFailed overwrites the processing marker. Cache errors are only logged
// since the request has already failed.
func (uc *IdentificationUseCase) markFailed(ctx context.Context, opLogger *zap.Logger, result *IdentificationResult) {
	result.Status = StatusFailed
	if err := uc.cacheResult(ctx, result, "cache.set.failed", failedResultTTL); err != nil {
		opLogger.Warn("failed to mark request as failed", zap.Error(err))
	}
}

func (uc *IdentificationUseCase) cacheResult(ctx context.Context, result *IdentificationResult, operation string, ttl time.Duration) error {
	cached := *result
	cached.All = nil
	serialized, err := json.Marshal(cached)
	if err != nil {
		return logging.NewOperationError(operation, result.RequestID, err)
	}
	return uc.withRedisRetry(ctx, result.RequestID, operation, func() error {
		return uc.cache.Set(ctx, resultCacheKey(result.RequestID), string(serialized), ttl)
	})
}

// GetResult retrieves a cached identification outcome or loads it from
// persistence. Results owned by another user are reported as not found.
func (uc *IdentificationUseCase) GetResult(ctx context.Context, userID, requestID string) (*IdentificationResult, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.get_result", requestID)
	if cached, err := uc.withRedisGet(ctx, requestID, "cache.get.result", resultCacheKey(requestID)); err == nil {
		var payload IdentificationResult
		if err := json.Unmarshal([]byte(cached), &payload); err != nil {
			opLogger.Warn("failed to decode cached result", zap.Error(err))
		} else if payload.UserID == userID {
			return &payload, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		opLogger.Warn("failed to read cache", zap.Error(err))
	}

	log, err := uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrResultNotFound, requestID)
		}
		return nil, err
	}
	return uc.resultFromLog(opLogger, log), nil
}

// GetDuplicateReport returns the stored request together with every other
// identification the same user ran on byte-identical images.
func (uc *IdentificationUseCase) GetDuplicateReport(ctx context.Context, userID, requestID string) (*DuplicateReport, error) {
	opLogger := logging.WithOperation(uc.logger, "usecase.get_duplicate_report", requestID)
	log, err := uc.repo.FindByRequestIDAndUser(ctx, requestID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrResultNotFound, requestID)
		}
		return nil, err
	}

	duplicates, err := uc.repo.FindDuplicatesByHash(ctx, userID, log.SHA1Hash, log.RequestID)
	if err != nil {
		opLogger.Error("failed to look up duplicates", zap.Error(err))
		return nil, err
	}

	report := &DuplicateReport{
		Request:    uc.resultFromLog(opLogger, log),
		Duplicates: make([]*IdentificationResult, 0, len(duplicates)),
	}
	for _, d := range duplicates {
		report.Duplicates = append(report.Duplicates, uc.resultFromLog(opLogger, d))
	}
	return report, nil
}

func (uc *IdentificationUseCase) resultFromLog(opLogger *zap.Logger, log *repository.IdentificationLog) *IdentificationResult {
	result := &IdentificationResult{
		RequestID:           log.RequestID,
		UserID:              log.UserID,
		Status:              log.Status,
		TopMatches:          []signature.MatchResult{},
		Accepted:            log.Accepted,
		Threshold:           uc.acceptThreshold,
		GallerySize:         log.GallerySize,
		SHA1Hash:            log.SHA1Hash,
		ProcessingLatencyMs: log.ProcessingLatencyMs,
		CreatedAt:           log.CreatedAt,
	}
	if log.Details != "" {
		if err := json.Unmarshal([]byte(log.Details), &result.TopMatches); err != nil {
			opLogger.Warn("failed to decode stored matches", zap.Error(err))
		}
	}
	return result
}

// Enroll normalizes and stores a signature for req.Name. The image must pass
// the same quality gate as identification queries.
func (uc *IdentificationUseCase) Enroll(ctx context.Context, req EnrollRequest) (*EnrollmentResult, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidName
	}
	hash := sha1Hex(req.Image)
	opLogger := logging.WithOperation(uc.logger, "usecase.enroll", "").With(zap.String("sha1_hash", hash))

	existing, err := uc.repo.FindSignatureByHash(ctx, hash)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: enrolled as %s", ErrAlreadyEnrolled, existing.PersonName)
	case !errors.Is(err, repository.ErrNotFound):
		opLogger.Error("failed to check enrolled signatures", zap.Error(err))
		return nil, err
	}

	raw, err := imageprocessor.Decode(req.Image)
	if err != nil {
		return nil, logging.NewOperationError("usecase.decode_image", "", err)
	}
	canvas, err := uc.matcher.Prepare(raw)
	if err != nil {
		return nil, logging.NewOperationError("usecase.prepare_enrollment", "", err)
	}
	data, err := imageprocessor.EncodeCanvas(canvas)
	if err != nil {
		return nil, logging.NewOperationError("usecase.encode_canvas", "", err)
	}

	row := &repository.EnrolledSignature{
		PersonName: name,
		ImagePath:  req.ImagePath,
		Canvas:     data,
		InkPixels:  signature.InkPixels(canvas),
		Quality:    true,
		Cursive:    uc.matcher.IsCursive(canvas),
		SHA1Hash:   hash,
		CreatedAt:  time.Now().UTC(),
	}
	if err := uc.repo.SaveSignature(ctx, row); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: %v", ErrAlreadyEnrolled, err)
		}
		opLogger.Error("failed to store signature", zap.Error(err))
		return nil, err
	}

	opLogger.Info("signature enrolled", zap.String("name", name), zap.Uint("id", row.ID), zap.Bool("cursive", row.Cursive))
	return &EnrollmentResult{
		ID:        row.ID,
		Name:      row.PersonName,
		InkPixels: row.InkPixels,
		Cursive:   row.Cursive,
		SHA1Hash:  row.SHA1Hash,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (uc *IdentificationUseCase) withRedisRetry(ctx context.Context, requestID, operation string, fn func() error) error {
	policy := retry.Policy{Attempts: uc.retryAttempts, InitialBackoff: uc.initialBackoff, MaxBackoff: uc.maxBackoff}
	return policy.Do(ctx, uc.logger, operation, requestID, fn)
}

func (uc *IdentificationUseCase) withRedisGet(ctx context.Context, requestID, operation, cacheKey string) (string, error) {
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

func sha1Hex(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}
