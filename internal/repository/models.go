package repository

import "time"

// Identification statuses stored in IdentificationLog.Status.
const (
	StatusOK           = "ok"
	StatusLowQuality   = "low_quality"
	StatusEmptyGallery = "empty_gallery"
)

// EnrolledSignature is one gallery signature stored as its canonical canvas.
type EnrolledSignature struct {
	ID         uint      `gorm:"primaryKey"`
	PersonName string    `gorm:"column:person_name;size:255;index"`
	ImagePath  string    `gorm:"column:image_path;size:1024"`
	Canvas     []byte    `gorm:"column:canvas;type:bytea"`
	InkPixels  int       `gorm:"column:ink_pixels"`
	Quality    bool      `gorm:"column:quality"`
	Cursive    bool      `gorm:"column:cursive"`
	SHA1Hash   string    `gorm:"column:sha1_hash;size:40;uniqueIndex"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (EnrolledSignature) TableName() string {
	return "signatures"
}

// IdentificationLog records one identification request and its outcome.
type IdentificationLog struct {
	ID                  uint      `gorm:"primaryKey"`
	RequestID           string    `gorm:"column:request_id;uniqueIndex;size:64"`
	UserID              string    `gorm:"column:user_id;size:64;index"`
	Status              string    `gorm:"column:status;size:32"`
	TopIdentity         string    `gorm:"column:top_identity;size:255"`
	TopScore            float64   `gorm:"column:top_score"`
	Accepted            bool      `gorm:"column:accepted"`
	Details             string    `gorm:"column:details;type:text"`
	GallerySize         int       `gorm:"column:gallery_size"`
	ProcessingLatencyMs int64     `gorm:"column:processing_latency_ms"`
	SHA1Hash            string    `gorm:"column:sha1_hash;size:40;index"`
	CreatedAt           time.Time `gorm:"column:created_at"`
}

// TableName overrides the default table name.
func (IdentificationLog) TableName() string {
	return "identification_logs"
}

// MetricsAggregation holds raw aggregates over identification logs.
type MetricsAggregation struct {
	TotalCount                 int64   `gorm:"column:total_count"`
	AcceptedCount              int64   `gorm:"column:accepted_count"`
	LowQualityCount            int64   `gorm:"column:low_quality_count"`
	AverageTopScore            float64 `gorm:"column:average_top_score"`
	AverageProcessingLatencyMs float64 `gorm:"column:average_processing_latency_ms"`
}
