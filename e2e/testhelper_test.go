package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ytsprites/api/internal/middleware"
	"github.com/ytsprites/api/internal/model"
	"github.com/ytsprites/api/internal/server"
	"github.com/ytsprites/api/internal/service"
	"github.com/ytsprites/api/internal/sprite"
	"github.com/ytsprites/api/internal/websocket"
	"github.com/ytsprites/api/internal/worker"
	"github.com/ytsprites/api/internal/workspace"
)

// testApp holds all components needed for testing
type testApp struct {
	app   *fiber.App
	store *service.JobStore
	base  string
}

// frameExtractor stands in for ffmpeg and writes count grey frames
type frameExtractor struct {
	count int
	gate  chan struct{}
}

func (f *frameExtractor) ExtractFrames(_ context.Context, _, outDir string, _ float64, w, h int) ([]string, error) {
	if f.gate != nil {
		<-f.gate
	}
	var frames []string
	for i := 0; i < f.count; i++ {
		img := image.NewGray(image.Rect(0, 0, w, h))
		for p := range img.Pix {
			img.Pix[p] = 128
		}
		path := filepath.Join(outDir, fmt.Sprintf("frame_%06d.png", i+1))
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return nil, err
		}
		frames = append(frames, path)
	}
	return frames, nil
}

type setupOptions struct {
	capacity  int
	extractor sprite.FrameExtractor
	noWorkers bool
}

// setupApp creates a Fiber app identical to the serve command but with a fake frame extractor.
func setupApp(t *testing.T, opts setupOptions) *testApp {
	t.Helper()

	if opts.capacity == 0 {
		opts.capacity = 10
	}
	if opts.extractor == nil {
		opts.extractor = &frameExtractor{count: 5}
	}

	base := t.TempDir()
	store := service.NewJobStore(opts.capacity)
	ws := workspace.NewManager(base, nil)
	defaults := model.SpriteOptions{StepSec: 2, Columns: 2, Rows: 2, Format: "jpg", Quality: 70}
	svc := service.NewSpriteService(store, ws, defaults, nil)
	engine := sprite.NewEngine(opts.extractor, 16, 9, nil)

	if !opts.noWorkers {
		ctx, cancel := context.WithCancel(context.Background())
		pool := worker.NewPool(store, engine, ws, nil,
			worker.WithWorkers(2),
			worker.WithIdleBackoff(5*time.Millisecond),
		)
		pool.Start(ctx)
		t.Cleanup(func() {
			cancel()
			pool.Wait()
		})
	}

	app := server.New(server.Deps{
		Service:     svc,
		Hub:         websocket.NewHub(svc, 10*time.Millisecond, nil),
		RateLimiter: middleware.NewRateLimiter(nil, nil),
		BodyLimit:   1024 * 1024,
		Version:     "test",
		Port:        "60051",
		Labels:      map[string]string{"env": "test"},
	})

	return &testApp{app: app, store: store, base: base}
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

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return app.Test(req, -1)
}

// doSubmit uploads video bytes with the given form fields.
func doSubmit(t *testing.T, app *fiber.App, video []byte, fields map[string]string) *http.Response {
	t.Helper()
	return doSubmitTo(t, app, "/api/sprites/submit", video, fields)
}

// doSubmitTo is doSubmit against an explicit path, so fields may also ride in the query string.
func doSubmitTo(t *testing.T, app *fiber.App, path string, video []byte, fields map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if video != nil {
		part, err := mw.CreateFormFile("file", "clip.mp4")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(video); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := doRequest(app, http.MethodPost, path, buf.String(), map[string]string{
		"Content-Type": mw.FormDataContentType(),
	})
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// submitJob submits a valid video and returns the job id.
func submitJob(t *testing.T, app *fiber.App, fields map[string]string) string {
	t.Helper()
	resp := doSubmit(t, app, []byte("not really a video"), fields)
	assertStatus(t, resp, http.StatusAccepted)
	result := parseJSON(t, resp)
	jobID, _ := result["jobId"].(string)
	if jobID == "" {
		t.Fatalf("expected 'jobId' in response, got %v", result)
	}
	return jobID
}

// waitForState polls the status endpoint until the job reaches state.
func waitForState(t *testing.T, app *fiber.App, jobID string, state model.JobState) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	var last map[string]interface{}
	for time.Now().Before(deadline) {
		resp, err := doRequest(app, http.MethodGet, "/api/sprites/status/"+jobID, "", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		last = parseJSON(t, resp)
		if last["state"] == string(state) {
			return last
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %s, last status %v", jobID, state, last)
	return nil
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

// errorCode extracts error.code from an error envelope.
func errorCode(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}
