package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/mediagrab/api/internal/auth"
	"github.com/mediagrab/api/internal/client"
	"github.com/mediagrab/api/internal/handler"
	"github.com/mediagrab/api/internal/logging"
	"github.com/mediagrab/api/internal/middleware"
	"github.com/mediagrab/api/internal/model"
	"github.com/mediagrab/api/internal/service"
	"github.com/mediagrab/api/internal/store"
	"github.com/mediagrab/api/internal/websocket"
	"github.com/mediagrab/api/internal/worker"
)

const testJWTSecret = "test-secret-for-e2e"

const mediaSize = 256 * 1024

// testApp holds all components needed for testing
type testApp struct {
	app      *fiber.App
	store    store.DownloadStore
	storage  *client.MemoryStorage
	media    *httptest.Server
	resolver *fakeResolver
}

// fakeResolver points every source URL at the local media server
type fakeResolver struct {
	streamURL string
	err       error
}

func (r *fakeResolver) Resolve(ctx context.Context, sourceURL string, tier model.QualityTier, kind model.MediaKind) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.streamURL, nil
}

// setupApp creates a Fiber app wired like main.go with the local queue
// driver, in-memory backends and a fake platform resolver.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	log := logging.Discard()

	media := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte(strings.Repeat("v", mediaSize)))
	}))
	t.Cleanup(media.Close)

	downloads := store.NewMemoryStore()
	storage := client.NewMemoryStorage("http://localhost/files")
	res := &fakeResolver{streamURL: media.URL + "/stream.mp4"}

	hub := websocket.NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	downloadWorker := worker.NewDownloadWorker(
		downloads,
		res,
		client.NewStreamFetcher(nil, 5*time.Second, 0),
		storage,
		hub,
		worker.Options{UploadTimeout: 5 * time.Second},
		log,
	)
	pool := worker.NewPool(2, 16, downloadWorker.Run, log)
	pool.Start()
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		pool.Stop(stopCtx)
		stopCancel()
		cancel()
	})

	downloadService := service.NewDownloadService(downloads, storage, pool, time.Minute, log)

	app := handler.NewApp(log, false)
	handler.Register(app, handler.Routes{
		Downloads: handler.NewDownloadHandler(downloadService, log),
		Health:    handler.NewHealthHandler(nil, handler.HealthInfo{Storage: "memory", Queue: "local", AuthEnabled: true}),
		Files:     handler.NewFilesHandler(storage),
		Hub:       hub,
		Auth:      middleware.NewAuthMiddleware(auth.NewHMACVerifier(testJWTSecret)).Authenticate(),
	})

	return &testApp{
		app:      app,
		store:    downloads,
		storage:  storage,
		media:    media,
		resolver: res,
	}
}

// generateToken creates an HMAC JWT token for test requests.
func generateToken(t *testing.T) string {
	t.Helper()
	signed, err := auth.NewHMACVerifier(testJWTSecret).Sign("test-user-123", "test@example.com", time.Hour)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return signed
}

// doRequest is a helper to perform HTTP requests against the test app.
func doRequest(app *fiber.App, method, path string, body string, headers map[string]string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, path, bodyReader)
	if err != nil {
		return nil, err
	}

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doAuthRequest performs an authenticated request.
func doAuthRequest(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, error) {
	t.Helper()
	token := generateToken(t)
	return doRequest(app, method, path, body, map[string]string{
		"Authorization": "Bearer " + token,
	})
}

// readBody reads and returns the response body as a string.
func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return string(b)
}

// parseJSON parses response body into a map.
func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	body := readBody(t, resp)
	var result map[string]interface{}
	if err := json.Unmarshal([]byte(body), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, body)
	}
	return result
}

// assertStatus checks the HTTP status code.
func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

// waitForStatus polls the status endpoint until the download is terminal.
func waitForStatus(t *testing.T, ta *testApp, id string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/downloads/"+id, "")
		if err != nil {
			t.Fatalf("status request failed: %v", err)
		}
		body := parseJSON(t, resp)
		if s := body["status"]; s == "completed" || s == "failed" {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("download %s never finished", id)
	return nil
}
