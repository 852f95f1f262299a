package worker

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/mediagrab/api/internal/client"
	"github.com/mediagrab/api/internal/model"
	"github.com/mediagrab/api/internal/resolver"
	"github.com/mediagrab/api/internal/service"
	"github.com/mediagrab/api/internal/store"
	"github.com/mediagrab/api/internal/websocket"
	"github.com/mediagrab/api/pkg/response"
)

// finalWriteTimeout bounds the terminal record write, which runs even when
// the task context is already done.
const finalWriteTimeout = 10 * time.Second

// StreamResolver turns a source URL into a fetchable stream URL
type StreamResolver interface {
	Resolve(ctx context.Context, sourceURL string, tier model.QualityTier, kind model.MediaKind) (string, error)
}

// Fetcher buffers a stream into memory
type Fetcher interface {
	Fetch(ctx context.Context, streamURL string, onProgress client.ProgressFunc) ([]byte, error)
}

// Options tunes the background task
type Options struct {
	// ProcessingDelay is spent in the processing stage
	ProcessingDelay time.Duration
	// UploadTimeout bounds the blob store upload
	UploadTimeout time.Duration
}

// DownloadWorker runs the background unit of work of a download
type DownloadWorker struct {
	store    store.DownloadStore
	resolver StreamResolver
	fetcher  Fetcher
	storage  client.StorageClient
	hub      *websocket.Hub
	opts     Options
	log      *logrus.Logger
}

func NewDownloadWorker(downloads store.DownloadStore, res StreamResolver, fetcher Fetcher, storage client.StorageClient, hub *websocket.Hub, opts Options, log *logrus.Logger) *DownloadWorker {
	return &DownloadWorker{
		store:    downloads,
		resolver: res,
		fetcher:  fetcher,
		storage:  storage,
		hub:      hub,
		opts:     opts,
		log:      log,
	}
}

// ProcessTask handles download tasks from asynq. Errors are never retried.
func (w *DownloadWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	id, err := service.ParseDownloadTask(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := w.Run(ctx, id); err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// Run processes one download: resolve, fetch, process, upload, finalize.
// A record that is already terminal is left alone.
func (w *DownloadWorker) Run(ctx context.Context, id string) error {
	d, err := w.store.Get(ctx, id)
	if err != nil {
		w.log.WithError(err).WithField("download_id", id).Error("failed to load download")
		return err
	}

	platform, _ := resolver.Detect(d.URL)
	log := w.log.WithFields(logrus.Fields{
		"download_id": d.ID,
		"format":      d.Format,
		"platform":    platform,
	})

	if d.Status.IsTerminal() {
		log.WithField("status", d.Status).Info("download already finished, skipping")
		return nil
	}

	log.Info("starting download")
	start := time.Now()

	kind := d.Format.MediaKind()
	tier := d.Format.Tier()

	// Step 1: Resolve the stream
	streamURL, err := w.resolver.Resolve(ctx, d.URL, tier, kind)
	if err != nil {
		return w.fail(ctx, log, d.ID, err)
	}

	// Step 2: Fetch into memory
	progress := w.startProgress(ctx, log, d.ID, model.StageDownloading)
	data, err := w.fetcher.Fetch(ctx, streamURL, progress.Report)
	progress.Close()
	if err != nil {
		return w.fail(ctx, log, d.ID, err)
	}
	log.WithField("bytes", len(data)).Debug("stream fetched")

	// Step 3: Processing
	if err := w.advance(ctx, log, d.ID, model.StageUpdate(model.StageProcessing)); err != nil {
		return err
	}
	if w.opts.ProcessingDelay > 0 {
		select {
		case <-ctx.Done():
			return w.fail(ctx, log, d.ID, model.NewError(model.KindTransferFailed, "processing", ctx.Err()))
		case <-time.After(w.opts.ProcessingDelay):
		}
	}

	// Step 4: Upload
	filePath := model.ObjectKey(d.ID, d.Format)
	uploading := model.StageUpdate(model.StageUploading)
	uploading.FilePath = &filePath
	if err := w.advance(ctx, log, d.ID, uploading); err != nil {
		return err
	}

	if err := w.upload(ctx, log, d.ID, filePath, data, kind); err != nil {
		return w.fail(ctx, log, d.ID, err)
	}

	// Step 5: Complete
	finalCtx, cancel := finalContext(ctx)
	_, err = w.store.Update(finalCtx, d.ID, model.CompletedUpdate())
	cancel()
	if err != nil {
		return w.fail(ctx, log, d.ID, err)
	}
	w.hub.BroadcastProgress(d.ID, model.StatusCompleted, model.StageCompleted, 100)
	w.hub.BroadcastComplete(d.ID, filePath)

	log.WithFields(logrus.Fields{
		"file_path": filePath,
		"duration":  time.Since(start).String(),
	}).Info("download completed")
	return nil
}

func (w *DownloadWorker) upload(ctx context.Context, log *logrus.Entry, id, filePath string, data []byte, kind model.MediaKind) error {
	if w.opts.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.opts.UploadTimeout)
		defer cancel()
	}

	progress := w.startProgress(ctx, log, id, model.StageUploading)
	err := w.storage.Upload(ctx, filePath, bytes.NewReader(data), int64(len(data)), kind.ContentType(), progress.Report)
	progress.Close()

	if err != nil {
		if _, classified := model.KindOf(err); classified {
			return err
		}
		return model.NewError(model.KindStorageFailed, "upload", err)
	}
	return nil
}

// advance moves the record to the next stage. A failed write fails the
// download.
func (w *DownloadWorker) advance(ctx context.Context, log *logrus.Entry, id string, u model.DownloadUpdate) error {
	d, err := w.store.Update(ctx, id, u)
	if err != nil {
		return w.fail(ctx, log, id, err)
	}

	log.WithField("stage", d.Stage).Debug("stage advanced")
	w.hub.BroadcastProgress(id, d.Status, d.Stage, d.Progress)
	return nil
}

func (w *DownloadWorker) fail(ctx context.Context, log *logrus.Entry, id string, cause error) error {
	if _, classified := model.KindOf(cause); !classified {
		cause = model.NewError(model.KindRecordStoreFailed, "", cause)
	}
	message := cause.Error()

	log.WithError(cause).Error("download failed")

	// Written past cancellation so a stopped task never leaves the record
	// processing. The record may be terminal already if the failure came from
	// the final write; that is not worth a second error.
	finalCtx, cancel := finalContext(ctx)
	defer cancel()
	if _, err := w.store.Update(finalCtx, id, model.FailedUpdate(message)); err != nil {
		log.WithError(err).Error("failed to mark download as failed")
	}
	w.hub.BroadcastError(id, response.CodeFor(cause), message)

	return cause
}

func finalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
}

// progressWriter persists progress without blocking the transfer. Only the
// latest pending value is kept; a single goroutine writes it.
type progressWriter struct {
	mu      sync.Mutex
	closed  bool
	pending chan int
	done    chan struct{}
}

func (w *DownloadWorker) startProgress(ctx context.Context, log *logrus.Entry, id string, stage model.Stage) *progressWriter {
	p := &progressWriter{
		pending: make(chan int, 1),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(p.done)
		for percent := range p.pending {
			if _, err := w.store.Update(ctx, id, model.ProgressUpdate(percent)); err != nil {
				log.WithError(err).WithField("stage", stage).Warn("failed to update progress")
				continue
			}
			w.hub.BroadcastProgress(id, model.StatusProcessing, stage, percent)
		}
	}()

	return p
}

// Report replaces any unwritten value with percent.
func (p *progressWriter) Report(percent int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	for {
		select {
		case p.pending <- percent:
			return
		default:
			select {
			case <-p.pending:
			default:
			}
		}
	}
}

// Close flushes the last value and waits for the writer to finish.
func (p *progressWriter) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.pending)
	}
	p.mu.Unlock()

	<-p.done
}
