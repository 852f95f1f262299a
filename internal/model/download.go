package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTerminal        = errors.New("download already finished")
	ErrStageRegression = errors.New("stage cannot move backwards")
)

// Download is the persisted state of one download request
type Download struct {
	ID           string         `json:"id"`
	URL          string         `json:"url"`
	Format       Format         `json:"format"`
	Status       DownloadStatus `json:"status"`
	Stage        Stage          `json:"stage"`
	Progress     int            `json:"progress"`
	FilePath     string         `json:"file_path,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// NewDownload returns a record in its initial state.
func NewDownload(id, url string, format Format, now time.Time) *Download {
	return &Download{
		ID:        id,
		URL:       url,
		Format:    format,
		Status:    StatusProcessing,
		Stage:     StageDownloading,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// DownloadUpdate is a partial update. Nil fields are left untouched.
type DownloadUpdate struct {
	Status       *DownloadStatus
	Stage        *Stage
	Progress     *int
	FilePath     *string
	ErrorMessage *string
}

// ProgressUpdate sets only the progress of the current stage.
func ProgressUpdate(progress int) DownloadUpdate {
	p := ClampProgress(progress)
	return DownloadUpdate{Progress: &p}
}

// StageUpdate advances to stage, resetting progress to zero.
func StageUpdate(stage Stage) DownloadUpdate {
	p := 0
	return DownloadUpdate{Stage: &stage, Progress: &p}
}

// CompletedUpdate finalizes a successful download.
func CompletedUpdate() DownloadUpdate {
	status := StatusCompleted
	stage := StageCompleted
	p := 100
	return DownloadUpdate{Status: &status, Stage: &stage, Progress: &p}
}

// FailedUpdate finalizes a failed download. Progress is kept as is.
func FailedUpdate(message string) DownloadUpdate {
	status := StatusFailed
	if message == "" {
		message = "unknown error"
	}
	return DownloadUpdate{Status: &status, ErrorMessage: &message}
}

// Apply validates u against the record's lifecycle and merges it in place.
func (d *Download) Apply(u DownloadUpdate, now time.Time) error {
	if d.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminal, d.ID, d.Status)
	}

	if u.Status != nil {
		switch *u.Status {
		case StatusProcessing, StatusCompleted:
		case StatusFailed:
			if u.ErrorMessage == nil || *u.ErrorMessage == "" {
				return errors.New("failed status requires an error message")
			}
		default:
			return fmt.Errorf("unknown status %q", *u.Status)
		}
	}

	if u.Stage != nil {
		if _, ok := stageOrder[*u.Stage]; !ok {
			return fmt.Errorf("unknown stage %q", *u.Stage)
		}
		if u.Stage.Before(d.Stage) {
			return fmt.Errorf("%w: %s -> %s", ErrStageRegression, d.Stage, *u.Stage)
		}
		if *u.Stage == StageCompleted && (u.Status == nil || *u.Status != StatusCompleted) {
			return errors.New("completed stage requires completed status")
		}
	}

	if u.FilePath != nil && d.FilePath != "" && *u.FilePath != d.FilePath {
		return errors.New("file path is immutable once set")
	}

	if u.Status != nil {
		d.Status = *u.Status
	}
	if u.Stage != nil {
		if *u.Stage != d.Stage && u.Progress == nil {
			d.Progress = 0
		}
		d.Stage = *u.Stage
	}
	if u.Progress != nil {
		d.Progress = ClampProgress(*u.Progress)
	}
	if u.FilePath != nil {
		d.FilePath = *u.FilePath
	}
	if u.ErrorMessage != nil {
		d.ErrorMessage = *u.ErrorMessage
	}
	d.UpdatedAt = now

	return nil
}

// ClampProgress pins p into [0, 100].
func ClampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ObjectKey returns the blob store location of the download's artifact.
func ObjectKey(id string, format Format) string {
	ext := format.Extension()
	return fmt.Sprintf("%s/%s.%s", ext, id, ext)
}

// SubmitDownloadRequest is the body of a download submission
type SubmitDownloadRequest struct {
	URL    string `json:"url" validate:"required,source_url"`
	Format Format `json:"format" validate:"required,oneof=mp4 mp4-hd mp3 mp3-hq"`
}

// SubmitDownloadResponse is returned once the download record exists
type SubmitDownloadResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// DownloadURLRequest asks for a signed retrieval URL
type DownloadURLRequest struct {
	DownloadID string `json:"downloadId" validate:"required"`
}

// DownloadURLResponse carries the signed retrieval URL
type DownloadURLResponse struct {
	URL string `json:"url"`
}

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
