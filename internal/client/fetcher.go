package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/mediagrab/api/internal/model"
)

const fetchChunkSize = 32 * 1024

// StreamFetcher downloads a resolved media stream fully into memory
type StreamFetcher struct {
	httpClient  *http.Client
	idleTimeout time.Duration
	maxBytes    int64
}

// NewStreamFetcher creates a fetcher. idleTimeout bounds the wait for the
// response headers and for each subsequent chunk, not the whole transfer.
// maxBytes of 0 disables the size ceiling.
func NewStreamFetcher(httpClient *http.Client, idleTimeout time.Duration, maxBytes int64) *StreamFetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &StreamFetcher{
		httpClient:  httpClient,
		idleTimeout: idleTimeout,
		maxBytes:    maxBytes,
	}
}

// idleWatch cancels a transfer once no progress was seen for the timeout.
type idleWatch struct {
	timer   *time.Timer
	timeout time.Duration
	fired   atomic.Bool
}

func watchIdle(ctx context.Context, timeout time.Duration) (context.Context, *idleWatch, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	if timeout <= 0 {
		return ctx, nil, cancel
	}

	w := &idleWatch{timeout: timeout}
	w.timer = time.AfterFunc(timeout, func() {
		w.fired.Store(true)
		cancel()
	})
	return ctx, w, func() {
		w.timer.Stop()
		cancel()
	}
}

func (w *idleWatch) touch() {
	if w != nil {
		w.timer.Reset(w.timeout)
	}
}

// wrap reports a stall instead of the bare cancellation it caused.
func (w *idleWatch) wrap(err error) error {
	if w != nil && w.fired.Load() {
		return fmt.Errorf("no data for %s: %w", w.timeout, err)
	}
	return err
}

// Fetch streams streamURL into a single buffer. When the response declares a
// content length, onProgress is called with the rounded percentage each time
// it changes; otherwise it is never called.
func (f *StreamFetcher) Fetch(ctx context.Context, streamURL string, onProgress ProgressFunc) ([]byte, error) {
	ctx, idle, cancel := watchIdle(ctx, f.idleTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, model.NewError(model.KindTransferFailed, "create request", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, model.NewError(model.KindTransferFailed, "fetch stream", idle.wrap(err))
	}
	defer resp.Body.Close()
	idle.touch()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, model.NewError(model.KindTransferFailed, "fetch stream", &model.HTTPError{
			StatusCode: resp.StatusCode,
			URL:        streamURL,
		})
	}

	total := resp.ContentLength
	if f.maxBytes > 0 && total > f.maxBytes {
		return nil, model.NewError(model.KindTransferFailed, "fetch stream",
			fmt.Errorf("stream of %d bytes exceeds limit of %d", total, f.maxBytes))
	}

	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}

	chunk := make([]byte, fetchChunkSize)
	var received int64
	last := -1
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			idle.touch()
			buf.Write(chunk[:n])
			received += int64(n)

			if f.maxBytes > 0 && received > f.maxBytes {
				return nil, model.NewError(model.KindTransferFailed, "fetch stream",
					fmt.Errorf("stream exceeds limit of %d bytes", f.maxBytes))
			}

			if total > 0 && onProgress != nil {
				if p := Percent(received, total); p != last {
					last = p
					onProgress(p)
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, model.NewError(model.KindTransferFailed, "read stream", idle.wrap(readErr))
		}
	}

	if received == 0 {
		return nil, model.NewError(model.KindTransferFailed, "read stream", model.ErrEmptyBody)
	}

	return buf.Bytes(), nil
}

// Percent returns round(done/total*100) clamped to [0, 100].
func Percent(done, total int64) int {
	if total <= 0 {
		return 0
	}
	return model.ClampProgress(int(math.Round(float64(done) / float64(total) * 100)))
}
