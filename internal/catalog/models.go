package catalog

import "time"

// Status represents the lifecycle of a rendition or subtitle track.
type Status string

const (
	StatusStarted   Status = "started"
	StatusEnded     Status = "ended"
	StatusUploading Status = "uploading"
	StatusReady     Status = "ready"
	StatusError     Status = "error"
)

// Output formats a rendition can be packaged as.
const (
	OutputHLS  = "hls"
	OutputDASH = "dash"
)

// Preview record types.
const (
	PreviewTypePreview = "preview"
	PreviewTypeSprite  = "sprite"
)

// Video is the source asset descriptor. Created by the platform when the
// upload lands; the prober fills the metadata fields once on first use.
type Video struct {
	ID                 string
	BucketID           string
	FileID             string
	Duration           int64 // milliseconds
	Format             string
	Width              int
	Height             int
	AspectRatio        string
	VideoFormat        string
	VideoFormatProfile string
	VideoFrameRate     string
	VideoFrameRateMode string
	VideoBitRate       int
	AudioFormat        string
	AudioSampleRate    string
	AudioBitRate       int
	Size               int64
	PreviewID          string
}

// VideoPatch updates only the fields that are set. Nil pointers leave the
// stored value untouched.
type VideoPatch struct {
	Duration           *int64
	Format             *string
	Width              *int
	Height             *int
	AspectRatio        *string
	VideoFormat        *string
	VideoFormatProfile *string
	VideoFrameRate     *string
	VideoFrameRateMode *string
	VideoBitRate       *int
	AudioFormat        *string
	AudioSampleRate    *string
	AudioBitRate       *int
	PreviewID          *string
}

// Profile holds the target encode parameters. Profiles are owned by the
// platform and arrive embedded in the job payload.
type Profile struct {
	ID           string `json:"$id"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	VideoBitRate int    `json:"videoBitRate"`
	AudioBitRate int    `json:"audioBitRate"`
}

// Rendition is one transcode job instance and its result state.
type Rendition struct {
	ID             string
	VideoID        string
	ProfileID      string
	Name           string
	Status         Status
	Progress       int
	StartedAt      time.Time
	EndedAt        *time.Time
	Output         string
	Path           string
	Metadata       string // opaque JSON: manifest info or error info
	TargetDuration int
	Width          int
	Height         int
	VideoBitRate   int
	AudioBitRate   int
}

// Segment is one media chunk of a rendition stream. Append-only.
type Segment struct {
	ID          string
	RenditionID string
	StreamID    int
	FileName    string
	Path        string
	Duration    float64 // HLS only
	IsInit      bool    // DASH only
}

// Subtitle is a queued text track for a video.
type Subtitle struct {
	ID             string
	VideoID        string
	BucketID       string
	FileID         string
	Name           string
	Code           string
	Status         Status // empty until claimed
	Path           string
	TargetDuration int
}

// SubtitleSegment is one chunk of a packaged subtitle track. Append-only.
type SubtitleSegment struct {
	ID         string
	SubtitleID string
	FileName   string
	Path       string
	Duration   float64
}

// Preview is a single-frame preview or a timeline sprite sheet record,
// upserted by (videoId, type, name).
type Preview struct {
	ID      string
	VideoID string
	Type    string
	Name    string
	Path    string
	Second  int
}

// Bucket carries the permission settings events are resolved against.
type Bucket struct {
	ID           string
	FileSecurity bool
	Permissions  []string
}

// File describes a stored original, including the at-rest encryption and
// compression metadata the retriever needs.
type File struct {
	ID            string
	BucketID      string
	Name          string
	Path          string
	MimeType      string
	Size          int64
	Cipher        string // empty when stored in the clear
	CipherVersion string
	IVHex         string
	TagHex        string
	Algorithm     string // compression algorithm id
	Permissions   []string
}
