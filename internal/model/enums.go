package model

import "strings"

// Download status
type DownloadStatus string

const (
	StatusProcessing DownloadStatus = "processing"
	StatusCompleted  DownloadStatus = "completed"
	StatusFailed     DownloadStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed.
func (s DownloadStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Stage is the sub-state of a download while it is processing.
type Stage string

const (
	StageDownloading Stage = "downloading"
	StageProcessing  Stage = "processing"
	StageUploading   Stage = "uploading"
	StageCompleted   Stage = "completed"
)

var stageOrder = map[Stage]int{
	StageDownloading: 0,
	StageProcessing:  1,
	StageUploading:   2,
	StageCompleted:   3,
}

// Before reports whether s comes strictly before other in the pipeline.
func (s Stage) Before(other Stage) bool {
	return stageOrder[s] < stageOrder[other]
}

// Output formats
type Format string

const (
	FormatMP4   Format = "mp4"
	FormatMP4HD Format = "mp4-hd"
	FormatMP3   Format = "mp3"
	FormatMP3HQ Format = "mp3-hq"
)

var ValidFormats = []Format{FormatMP4, FormatMP4HD, FormatMP3, FormatMP3HQ}

// IsValid reports whether f is one of the supported output formats.
func (f Format) IsValid() bool {
	for _, v := range ValidFormats {
		if f == v {
			return true
		}
	}
	return false
}

// MediaKind derives the kind of media from the format tag.
func (f Format) MediaKind() MediaKind {
	tag := strings.ToLower(string(f))
	if strings.Contains(tag, "mp3") || strings.Contains(tag, "audio") {
		return MediaAudio
	}
	return MediaVideo
}

// Tier derives the quality tier from the format tag.
func (f Format) Tier() QualityTier {
	tag := strings.ToLower(string(f))
	if strings.Contains(tag, "hd") || strings.Contains(tag, "hq") {
		return TierHigh
	}
	return TierStandard
}

// Extension returns the file extension of the produced artifact.
func (f Format) Extension() string {
	if f.MediaKind() == MediaAudio {
		return "mp3"
	}
	return "mp4"
}

// Media kinds
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaAudio MediaKind = "audio"
)

// ContentType returns the MIME type used when storing the artifact.
func (k MediaKind) ContentType() string {
	if k == MediaAudio {
		return "audio/mpeg"
	}
	return "video/mp4"
}

// Quality tiers
type QualityTier string

const (
	TierStandard QualityTier = "standard"
	TierHigh     QualityTier = "high"
)
