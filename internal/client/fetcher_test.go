package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mediagrab/api/internal/model"
)

func TestFetch_ReportsProgressWithContentLength(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 1_000_000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		// Write in tenths so the client sees roughly 10% increments.
		step := len(payload) / 10
		for i := 0; i < 10; i++ {
			w.Write(payload[i*step : (i+1)*step])
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	var reports []int
	f := NewStreamFetcher(srv.Client(), 5*time.Second, 0)
	data, err := f.Fetch(context.Background(), srv.URL, func(p int) {
		reports = append(reports, p)
	})
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if len(data) != len(payload) {
		t.Fatalf("expected %d bytes, got %d", len(payload), len(data))
	}
	if len(reports) == 0 {
		t.Fatal("expected progress callbacks")
	}
	for i, p := range reports {
		if p < 0 || p > 100 {
			t.Errorf("progress out of range: %d", p)
		}
		if i > 0 && p <= reports[i-1] {
			t.Errorf("progress not increasing: %v", reports)
		}
	}
	if reports[len(reports)-1] != 100 {
		t.Errorf("expected final progress 100, got %d", reports[len(reports)-1])
	}
}

func TestFetch_NoContentLengthNoProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Flushing before the body is complete forces chunked encoding.
		w.Write([]byte("first"))
		w.(http.Flusher).Flush()
		w.Write([]byte("second"))
	}))
	defer srv.Close()

	called := false
	f := NewStreamFetcher(srv.Client(), 5*time.Second, 0)
	data, err := f.Fetch(context.Background(), srv.URL, func(int) { called = true })
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if string(data) != "firstsecond" {
		t.Errorf("unexpected body %q", data)
	}
	if called {
		t.Error("progress must not be reported without a content length")
	}
}

func TestFetch_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewStreamFetcher(srv.Client(), 5*time.Second, 0)
	_, err := f.Fetch(context.Background(), srv.URL, nil)

	if !errors.Is(err, model.ErrTransferFailed) {
		t.Fatalf("expected TransferFailed, got %v", err)
	}
	var httpErr *model.HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusForbidden {
		t.Errorf("expected HTTPError with 403, got %v", err)
	}
}

func TestFetch_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := NewStreamFetcher(srv.Client(), 5*time.Second, 0)
	_, err := f.Fetch(context.Background(), srv.URL, nil)

	if !errors.Is(err, model.ErrEmptyBody) {
		t.Errorf("expected ErrEmptyBody, got %v", err)
	}
}

func TestFetch_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := NewStreamFetcher(srv.Client(), 50*time.Millisecond, 0)
	_, err := f.Fetch(context.Background(), srv.URL, nil)

	if !errors.Is(err, model.ErrTransferFailed) {
		t.Errorf("expected TransferFailed on deadline, got %v", err)
	}
}

func TestFetch_SlowSteadyStreamCompletes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "12")
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		// 12 chunks 20ms apart: the transfer outlasts the idle bound several
		// times over but is never idle for long.
		for i := 0; i < 12; i++ {
			time.Sleep(20 * time.Millisecond)
			w.Write([]byte("x"))
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	f := NewStreamFetcher(srv.Client(), 80*time.Millisecond, 0)
	data, err := f.Fetch(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if len(data) != 12 {
		t.Errorf("expected 12 bytes, got %d", len(data))
	}
}

func TestFetch_StallMidBody(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1024")
		w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := NewStreamFetcher(srv.Client(), 50*time.Millisecond, 0)
	_, err := f.Fetch(context.Background(), srv.URL, nil)

	if !errors.Is(err, model.ErrTransferFailed) {
		t.Fatalf("expected TransferFailed on stall, got %v", err)
	}
	if !strings.Contains(err.Error(), "no data for 50ms") {
		t.Errorf("expected stall in message, got %q", err.Error())
	}
}

func TestFetch_MaxBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(bytes.Repeat([]byte("x"), 2048))
	}))
	defer srv.Close()

	f := NewStreamFetcher(srv.Client(), 5*time.Second, 1024)
	_, err := f.Fetch(context.Background(), srv.URL, nil)

	if !errors.Is(err, model.ErrTransferFailed) {
		t.Errorf("expected TransferFailed for oversized stream, got %v", err)
	}
}

func TestPercent(t *testing.T) {
	cases := []struct {
		done, total int64
		want        int
	}{
		{0, 100, 0},
		{1, 3, 33},
		{2, 3, 67},
		{100, 100, 100},
		{150, 100, 100},
		{5, 0, 0},
	}
	for _, c := range cases {
		if got := Percent(c.done, c.total); got != c.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", c.done, c.total, got, c.want)
		}
	}
}
