package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mediagrab/api/internal/model"
)

// APIError is a non-2xx answer from the download API
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// Client talks to the download API
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the API at baseURL. token is sent as a
// bearer token when non-empty.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// Submit creates a download and returns its id
func (c *Client) Submit(ctx context.Context, url string, format model.Format) (string, error) {
	var out model.SubmitDownloadResponse
	err := c.do(ctx, http.MethodPost, "/api/downloads", model.SubmitDownloadRequest{URL: url, Format: format}, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

// Status reads the current record of a download
func (c *Client) Status(ctx context.Context, id string) (*model.Download, error) {
	var d model.Download
	if err := c.do(ctx, http.MethodGet, "/api/downloads/"+id, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// SignedURL returns a short lived link to a completed download
func (c *Client) SignedURL(ctx context.Context, id string) (string, error) {
	var out model.DownloadURLResponse
	if err := c.do(ctx, http.MethodPost, "/api/download-url", model.DownloadURLRequest{DownloadID: id}, &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

// Retrieve saves a completed download as dir/<id>.<ext> and returns the path.
func (c *Client) Retrieve(ctx context.Context, id, dir string) (string, error) {
	d, err := c.Status(ctx, id)
	if err != nil {
		return "", err
	}
	if d.Status != model.StatusCompleted {
		return "", fmt.Errorf("download %s is %s", id, d.Status)
	}

	signed, err := c.SignedURL(ctx, id)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, signed, nil)
	if err != nil {
		return "", fmt.Errorf("build file request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Status: resp.StatusCode, Message: "file download failed"}
	}

	path := filepath.Join(dir, id+"."+d.Format.Extension())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var e model.ErrorResponse
		if json.Unmarshal(data, &e) != nil || e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Code: e.Code, Message: e.Error}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
