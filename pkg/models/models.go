package models

import (
	"time"
)

// Platform represents the supported platforms
type Platform string

const (
	PlatformDouyin Platform = "douyin"
	PlatformTikTok Platform = "tiktok"
)

// Format represents the container/stream type of a video URL
type Format string

const (
	FormatMP4     Format = "mp4"
	FormatM3U8    Format = "m3u8"
	FormatUnknown Format = "unknown"
)

// SourceTier classifies where a URL candidate was collected from.
// Only TierPrimary and TierCodecVariant are considered pre-watermark.
type SourceTier string

const (
	TierPrimary      SourceTier = "primary-play"
	TierCodecVariant SourceTier = "secondary-codec-variant"
	TierDownload     SourceTier = "download-fallback"
	TierBitrate      SourceTier = "bitrate-ladder"
	TierPerformance  SourceTier = "performance-fallback"
)

// URLCandidate is one playable-URL candidate gathered from a video record
type URLCandidate struct {
	URL     string     `json:"url"`
	Tier    SourceTier `json:"tier"`
	Bitrate int64      `json:"bitrate"`
}

// SourceKind identifies which embedded-data mechanism produced a result
type SourceKind string

const (
	SourceRenderData  SourceKind = "RENDER_DATA"
	SourceSigiState   SourceKind = "SIGI_STATE"
	SourceNextData    SourceKind = "NEXT_DATA"
	SourceRouterData  SourceKind = "ROUTER_DATA"
	SourceItemAPI     SourceKind = "ITEM_API"
	SourceDOMFallback SourceKind = "DOM_FALLBACK"
)

// VideoDetail holds the per-video fields of an extraction result
type VideoDetail struct {
	ID             string `json:"id"`
	Author         string `json:"author"`
	AuthorID       string `json:"author_id,omitempty"`
	Title          string `json:"title"`
	ThumbnailURL   string `json:"thumbnail_url"`
	NoWatermarkURL string `json:"no_watermark_url,omitempty"`
	BestURL        string `json:"best_url"`
	Format         Format `json:"format"`
}

// ResultSource describes where and when an extraction result was produced
type ResultSource struct {
	Kind        SourceKind `json:"kind"`
	ExtractedAt time.Time  `json:"extracted_at"`
}

// ExtractionResult is the immutable outcome of one successful extraction.
// BestURL is never empty; the absence of a usable URL is an error, not a
// result with an empty field.
type ExtractionResult struct {
	Platform      Platform     `json:"platform"`
	PageURL       string       `json:"page_url"`
	Video         VideoDetail  `json:"video"`
	Source        ResultSource `json:"source"`
	CandidateURLs []string     `json:"candidate_urls"`
}

// DownloadState represents the lifecycle of one download
type DownloadState string

const (
	DownloadPending     DownloadState = "pending"
	DownloadInProgress  DownloadState = "in_progress"
	DownloadComplete    DownloadState = "complete"
	DownloadInterrupted DownloadState = "interrupted"
)

// DownloadEvent is an asynchronous state change emitted by the download
// service, keyed by the numeric download identifier.
type DownloadEvent struct {
	DownloadID    int64         `json:"download_id"`
	State         DownloadState `json:"state"`
	BytesReceived int64         `json:"bytes_received"`
	TotalBytes    int64         `json:"total_bytes"`
	Percent       int           `json:"percent"`
	Filename      string        `json:"filename"`
	Error         string        `json:"error,omitempty"`
}

// HistoryRecord is one entry in the capped download/extraction history,
// keyed by an opaque request identifier.
type HistoryRecord struct {
	RecordID      string        `json:"record_id" gorm:"primaryKey"`
	DownloadID    int64         `json:"download_id" gorm:"index"`
	VideoID       string        `json:"video_id"`
	Platform      Platform      `json:"platform" gorm:"index"`
	Title         string        `json:"title"`
	Author        string        `json:"author"`
	URL           string        `json:"url"`
	PageURL       string        `json:"page_url"`
	Filename      string        `json:"filename"`
	Status        DownloadState `json:"status" gorm:"default:pending"`
	Method        string        `json:"method"`
	BytesReceived int64         `json:"bytes_received"`
	TotalBytes    int64         `json:"total_bytes"`
	Percent       int           `json:"percent"`
	LastError     string        `json:"last_error"`
	CreatedAt     time.Time     `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt     time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

// MaxHistoryRecords caps retained history records, most-recent-first
const MaxHistoryRecords = 50

// Stats represents aggregate history statistics
type Stats struct {
	TotalRecords    int64   `json:"total_records"`
	Completed       int64   `json:"completed"`
	Interrupted     int64   `json:"interrupted"`
	InProgress      int64   `json:"in_progress"`
	TotalBytes      int64   `json:"total_bytes"`
	SuccessRate     float64 `json:"success_rate"`
	RecordsToday    int64   `json:"records_today"`
	RecordsThisWeek int64   `json:"records_this_week"`
}

// Config represents the application configuration
type Config struct {
	Server struct {
		Host         string `mapstructure:"host" yaml:"host"`
		Port         int    `mapstructure:"port" yaml:"port"`
		ReadTimeout  int    `mapstructure:"read_timeout" yaml:"read_timeout"`
		WriteTimeout int    `mapstructure:"write_timeout" yaml:"write_timeout"`
	} `mapstructure:"server" yaml:"server"`

	Download struct {
		MaxWorkers int    `mapstructure:"max_workers" yaml:"max_workers"`
		Timeout    int    `mapstructure:"timeout" yaml:"timeout"`
		SavePath   string `mapstructure:"save_path" yaml:"save_path"`
	} `mapstructure:"download" yaml:"download"`

	Database struct {
		Path string `mapstructure:"path" yaml:"path"`
	} `mapstructure:"database" yaml:"database"`

	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Proxy struct {
		Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
		URL     string `mapstructure:"url" yaml:"url"`
	} `mapstructure:"proxy" yaml:"proxy"`

	Platforms struct {
		Douyin struct {
			Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
			Cookie    string `mapstructure:"cookie" yaml:"cookie"`
			UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
		} `mapstructure:"douyin" yaml:"douyin"`

		TikTok struct {
			Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
			Cookie    string `mapstructure:"cookie" yaml:"cookie"`
			UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
		} `mapstructure:"tiktok" yaml:"tiktok"`
	} `mapstructure:"platforms" yaml:"platforms"`

	Auth struct {
		Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
		JWTSecret     string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
		TokenExpiry   int    `mapstructure:"token_expiry" yaml:"token_expiry"`
		AdminPassword string `mapstructure:"admin_password" yaml:"admin_password"`
	} `mapstructure:"auth" yaml:"auth"`

	RateLimit struct {
		Enabled           bool `mapstructure:"enabled" yaml:"enabled"`
		RequestsPerSecond int  `mapstructure:"requests_per_second" yaml:"requests_per_second"`
		Burst             int  `mapstructure:"burst" yaml:"burst"`
		MaxConcurrent     int  `mapstructure:"max_concurrent" yaml:"max_concurrent"`
	} `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// User represents an API user account
type User struct {
	ID        string     `json:"id" gorm:"primaryKey"`
	Username  string     `json:"username" gorm:"uniqueIndex"`
	Password  string     `json:"-" gorm:"not null"`
	Role      string     `json:"role" gorm:"default:user"`
	Active    bool       `json:"active" gorm:"default:true"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	LastLogin *time.Time `json:"last_login"`
}

// Session represents an API session
type Session struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index"`
	Token     string    `json:"token" gorm:"uniqueIndex"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	Active    bool      `json:"active" gorm:"default:true"`
}
