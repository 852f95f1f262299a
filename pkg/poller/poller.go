// Package poller follows a download from submission to completion.
package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/mediagrab/api/internal/model"
)

const DefaultInterval = time.Second

// StatusUnavailableError means the status could not be read. The download
// itself may still be running.
type StatusUnavailableError struct {
	ID  string
	Err error
}

func (e *StatusUnavailableError) Error() string {
	return fmt.Sprintf("status of %s unavailable: %v", e.ID, e.Err)
}

func (e *StatusUnavailableError) Unwrap() error { return e.Err }

// JobFailedError means the download reached the failed state
type JobFailedError struct {
	ID      string
	Message string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("download %s failed: %s", e.ID, e.Message)
}

// StatusReader reads the current record of a download
type StatusReader interface {
	Status(ctx context.Context, id string) (*model.Download, error)
}

// Poller reads a download's status on a fixed interval
type Poller struct {
	Reader   StatusReader
	Interval time.Duration
}

func New(reader StatusReader) *Poller {
	return &Poller{Reader: reader, Interval: DefaultInterval}
}

// Wait polls until the download completes or fails. onUpdate, when non-nil,
// sees every record read.
func (p *Poller) Wait(ctx context.Context, id string, onUpdate func(*model.Download)) (*model.Download, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		d, err := p.Reader.Status(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &StatusUnavailableError{ID: id, Err: err}
		}
		if onUpdate != nil {
			onUpdate(d)
		}

		switch d.Status {
		case model.StatusCompleted:
			return d, nil
		case model.StatusFailed:
			return d, &JobFailedError{ID: id, Message: d.ErrorMessage}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// StageMessage renders a one-line description of where a download is.
func StageMessage(stage model.Stage, progress int) string {
	switch stage {
	case model.StageDownloading:
		return fmt.Sprintf("Downloading… %d%%", progress)
	case model.StageProcessing:
		return "Processing…"
	case model.StageUploading:
		return fmt.Sprintf("Uploading… %d%%", progress)
	case model.StageCompleted:
		return "Completed"
	}
	return string(stage)
}
