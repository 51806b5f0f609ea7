package api_test

import (
	"net/http"
	"testing"
)

func TestHealthEndpoint(t *testing.T) {
	e := newEnv(t)

	var out map[string]string
	status := e.do(t, http.MethodGet, "/health", "", nil, &out)
	if status != http.StatusOK {
		t.Fatalf("health failed: %d", status)
	}
	if out["status"] != "ok" || out["service"] != "ascent" {
		t.Fatalf("unexpected health body: %v", out)
	}
}

func TestVersionEndpoint(t *testing.T) {
	e := newEnv(t)

	var out map[string]string
	status := e.do(t, http.MethodGet, "/version", "", nil, &out)
	if status != http.StatusOK {
		t.Fatalf("version failed: %d", status)
	}
	if out["version"] != "test" {
		t.Fatalf("unexpected version body: %v", out)
	}
}

func TestCORSHeaders(t *testing.T) {
	e := newEnv(t)

	resp, err := e.srv.Client().Get(e.srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()

	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS headers")
	}
	if resp.Header.Get("Access-Control-Allow-Headers") == "" {
		t.Fatalf("missing allowed headers")
	}
}
