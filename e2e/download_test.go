package e2e

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/mediagrab/api/internal/model"
)

func submitBody(sourceURL, format string) string {
	return fmt.Sprintf(`{"url": %q, "format": %q}`, sourceURL, format)
}

func submit(t *testing.T, ta *testApp, path, body string) string {
	t.Helper()
	resp, err := doAuthRequest(t, ta.app, http.MethodPost, path, body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["message"] != "Download started" {
		t.Errorf("expected message 'Download started', got %v", result["message"])
	}
	id, _ := result["id"].(string)
	if id == "" {
		t.Fatal("expected 'id' in response")
	}
	return id
}

func TestSubmit_Success(t *testing.T) {
	ta := setupApp(t)

	id := submit(t, ta, "/api/downloads", submitBody("https://vimeo.com/76979871", "mp4"))

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/downloads/"+id, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["url"] != "https://vimeo.com/76979871" || body["format"] != "mp4" {
		t.Errorf("unexpected record %v", body)
	}
}

func TestSubmit_Alias(t *testing.T) {
	ta := setupApp(t)
	submit(t, ta, "/functions/v1/process-download", submitBody("https://www.dailymotion.com/video/x8abc12", "mp3"))
}

func TestSubmit_Unauthorized(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/downloads", submitBody("https://vimeo.com/1", "mp4"), nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestSubmit_ValidationErrors(t *testing.T) {
	ta := setupApp(t)

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing url", `{"format": "mp4"}`, "URL is required"},
		{"blank url", `{"url": "   ", "format": "mp4"}`, "URL is required"},
		{"malformed url", submitBody("not a url", "mp4"), "URL is malformed"},
		{"missing format", `{"url": "https://vimeo.com/1"}`, "Format is required"},
		{"unknown format", submitBody("https://vimeo.com/1", "flac"), "unsupported format"},
		{"invalid json", `{"url":`, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/downloads", tt.body)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			assertStatus(t, resp, http.StatusBadRequest)

			body := parseJSON(t, resp)
			msg, _ := body["error"].(string)
			if !strings.Contains(msg, tt.message) {
				t.Errorf("expected error containing %q, got %q", tt.message, msg)
			}
			if body["code"] != "VALIDATION_ERROR" {
				t.Errorf("expected code VALIDATION_ERROR, got %v", body["code"])
			}
		})
	}
}

func TestStatus_NotFound(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/downloads/does-not-exist", "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNotFound)
}

func TestDownload_FullFlow(t *testing.T) {
	ta := setupApp(t)

	id := submit(t, ta, "/api/downloads", submitBody("https://youtu.be/dQw4w9WgXcQ", "mp4-hd"))

	record := waitForStatus(t, ta, id)
	if record["status"] != "completed" {
		t.Fatalf("expected completed, got %v (%v)", record["status"], record["error_message"])
	}
	if record["stage"] != "completed" {
		t.Errorf("expected stage completed, got %v", record["stage"])
	}
	if record["progress"] != float64(100) {
		t.Errorf("expected progress 100, got %v", record["progress"])
	}
	if record["file_path"] != model.ObjectKey(id, model.FormatMP4HD) {
		t.Errorf("unexpected file_path %v", record["file_path"])
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/functions/v1/get-download-url", fmt.Sprintf(`{"downloadId": %q}`, id))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	signed, _ := parseJSON(t, resp)["url"].(string)
	u, err := url.Parse(signed)
	if err != nil || u.Query().Get("expires") == "" || u.Query().Get("signature") == "" {
		t.Fatalf("unexpected signed url %q", signed)
	}

	resp, err = doRequest(ta.app, http.MethodGet, u.RequestURI(), "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("expected video/mp4, got %q", ct)
	}
	if n := len(readBody(t, resp)); n != mediaSize {
		t.Errorf("expected %d bytes, got %d", mediaSize, n)
	}
}

func TestDownload_ResolveFailure(t *testing.T) {
	ta := setupApp(t)
	ta.resolver.err = model.NewError(model.KindExtractionFailed, "vimeo", errors.New("no playable files"))

	id := submit(t, ta, "/api/downloads", submitBody("https://vimeo.com/1", "mp4"))

	record := waitForStatus(t, ta, id)
	if record["status"] != "failed" {
		t.Fatalf("expected failed, got %v", record["status"])
	}
	msg, _ := record["error_message"].(string)
	if !strings.Contains(msg, "no playable files") {
		t.Errorf("unexpected error_message %q", msg)
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/download-url", fmt.Sprintf(`{"downloadId": %q}`, id))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusInternalServerError)
}

func TestDownloadURL_MissingRecord(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/download-url", `{"downloadId": "missing"}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusInternalServerError)

	body := parseJSON(t, resp)
	if body["error"] == nil {
		t.Error("expected 'error' in response")
	}
}

func TestDownloadURL_MissingID(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/download-url", `{}`)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusInternalServerError)

	if msg := parseJSON(t, resp)["error"]; msg != "downloadId is required" {
		t.Errorf("expected missing id message, got %v", msg)
	}
}

func TestFiles_RejectsUnsignedAndExpiredLinks(t *testing.T) {
	ta := setupApp(t)
	ctx := context.Background()
	if err := ta.storage.Upload(ctx, "mp4/secret.mp4", strings.NewReader("secret"), 6, "video/mp4", nil); err != nil {
		t.Fatalf("upload: %v", err)
	}

	expired, _ := ta.storage.GetSignedURL(ctx, "mp4/secret.mp4", -time.Minute)
	expiredURL, _ := url.Parse(expired)
	valid, _ := ta.storage.GetSignedURL(ctx, "mp4/secret.mp4", time.Minute)
	validURL, _ := url.Parse(valid)
	signature := validURL.Query().Get("signature")

	tests := map[string]struct {
		path    string
		status  int
		message string
	}{
		"no signature":     {"/files/mp4/secret.mp4?expires=99999999999", http.StatusForbidden, "Invalid signature"},
		"extended expiry":  {"/files/mp4/secret.mp4?expires=99999999999&signature=" + signature, http.StatusForbidden, "Invalid signature"},
		"signature reused": {"/files/mp4/other.mp4?" + validURL.RawQuery, http.StatusForbidden, "Invalid signature"},
		"expired":          {expiredURL.RequestURI(), http.StatusForbidden, "Signed URL expired"},
		"minted and fresh": {validURL.RequestURI(), http.StatusOK, ""},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp, err := doRequest(ta.app, http.MethodGet, tt.path, "", nil)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			assertStatus(t, resp, tt.status)
			if tt.message == "" {
				return
			}
			if msg := parseJSON(t, resp)["error"]; msg != tt.message {
				t.Errorf("expected error %q, got %v", tt.message, msg)
			}
		})
	}
}
