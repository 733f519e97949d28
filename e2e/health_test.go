package e2e

import (
	"net/http"
	"testing"
)

func TestBaseURL(t *testing.T) {
	ta := setupApp(t, setupOptions{noWorkers: true})

	resp, err := doRequest(ta.app, http.MethodGet, "/", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if _, ok := body["timestamp"]; !ok {
		t.Error("expected 'timestamp' field in response")
	}
}

func TestHealth(t *testing.T) {
	ta := setupApp(t, setupOptions{noWorkers: true})

	resp, err := doRequest(ta.app, http.MethodGet, "/health", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", body["status"])
	}
}

func TestInfo(t *testing.T) {
	ta := setupApp(t, setupOptions{noWorkers: true})
	submitJob(t, ta.app, nil)

	resp, err := doRequest(ta.app, http.MethodGet, "/info", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	body := parseJSON(t, resp)
	if body["appName"] != "YTSprites-srv" {
		t.Errorf("expected appName 'YTSprites-srv', got %v", body["appName"])
	}
	if body["version"] != "test" {
		t.Errorf("expected version 'test', got %v", body["version"])
	}
	labels, _ := body["labels"].(map[string]interface{})
	if labels["env"] != "test" {
		t.Errorf("expected env label, got %v", body["labels"])
	}
	metrics, _ := body["metrics"].(map[string]interface{})
	if _, ok := metrics["uptime_sec"]; !ok {
		t.Error("expected 'uptime_sec' metric")
	}
	if metrics["jobs_queued"] != float64(1) {
		t.Errorf("expected one queued job, got %v", metrics["jobs_queued"])
	}
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	ta := setupApp(t, setupOptions{noWorkers: true})

	resp, err := doRequest(ta.app, http.MethodGet, "/ws/jobs/abc", "", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUpgradeRequired)
}
