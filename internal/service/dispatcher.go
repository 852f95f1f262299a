package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TaskTypeDownload = "download:process"

// Dispatcher schedules the background unit of work of a download
type Dispatcher interface {
	Dispatch(ctx context.Context, downloadID string) error
}

// DownloadTaskPayload is the asynq payload of a download task
type DownloadTaskPayload struct {
	DownloadID string `json:"downloadId"`
}

// AsynqDispatcher enqueues downloads on redis for the asynq worker server
type AsynqDispatcher struct {
	client    *asynq.Client
	queue     string
	retention time.Duration
}

func NewAsynqDispatcher(client *asynq.Client, queue string) *AsynqDispatcher {
	return &AsynqDispatcher{
		client:    client,
		queue:     queue,
		retention: 24 * time.Hour,
	}
}

// Dispatch enqueues exactly one task per download. The task ID is the
// download ID, so a second enqueue of the same download is rejected, and
// failed tasks are never retried.
func (d *AsynqDispatcher) Dispatch(ctx context.Context, downloadID string) error {
	task, err := NewDownloadTask(downloadID)
	if err != nil {
		return err
	}

	_, err = d.client.EnqueueContext(ctx, task,
		asynq.Queue(d.queue),
		asynq.MaxRetry(0),
		asynq.TaskID(downloadID),
		asynq.Retention(d.retention),
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}
	return nil
}

func NewDownloadTask(downloadID string) (*asynq.Task, error) {
	data, err := json.Marshal(DownloadTaskPayload{DownloadID: downloadID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return asynq.NewTask(TaskTypeDownload, data), nil
}

// ParseDownloadTask extracts the download ID from a task payload.
func ParseDownloadTask(t *asynq.Task) (string, error) {
	var p DownloadTaskPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return "", fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	if p.DownloadID == "" {
		return "", fmt.Errorf("task payload has no download id")
	}
	return p.DownloadID, nil
}
