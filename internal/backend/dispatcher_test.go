package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vku/taskchat/internal/config"
	"github.com/vku/taskchat/internal/models"
)

// modelResponse scripts one candidate's behavior in the fake backend.
type modelResponse struct {
	status int
	body   string
}

func okBody(text string) string {
	b, _ := json.Marshal(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"parts": []interface{}{map[string]interface{}{"text": text}},
				},
			},
		},
	})
	return string(b)
}

// newTestDispatcher wires a Dispatcher to a scripted httptest backend and
// records per-model attempts and sleeps.
func newTestDispatcher(t *testing.T, responses map[string]modelResponse) (*Dispatcher, *[]string, *[]time.Duration) {
	t.Helper()

	attempts := &[]string{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Path: /v1beta/models/<model>:generateContent
		path := strings.TrimPrefix(r.URL.Path, "/v1beta/models/")
		model := strings.TrimSuffix(path, ":generateContent")
		*attempts = append(*attempts, model)

		resp, ok := responses[model]
		if !ok {
			t.Errorf("Unexpected model %q", model)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(resp.status)
		w.Write([]byte(resp.body))
	}))
	t.Cleanup(server.Close)

	candidates := make([]string, 0, len(responses))
	for _, m := range []string{"model-a", "model-b", "model-c"} {
		if _, ok := responses[m]; ok {
			candidates = append(candidates, m)
		}
	}

	d := New(config.BackendConfig{
		BaseURL:        server.URL,
		APIKey:         "test-key",
		Candidates:     candidates,
		CallTimeoutSec: 5,
		BackoffSec:     1,
	})

	sleeps := &[]time.Duration{}
	d.sleep = func(dur time.Duration) { *sleeps = append(*sleeps, dur) }

	return d, attempts, sleeps
}

func TestDispatch_FirstCandidateSucceeds(t *testing.T) {
	d, attempts, sleeps := newTestDispatcher(t, map[string]modelResponse{
		"model-a": {http.StatusOK, okBody("hello")},
		"model-b": {http.StatusOK, okBody("never reached")},
	})

	reply, err := d.Dispatch(context.Background(), []models.Turn{{Role: models.RoleUser, Text: "hi"}})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if reply != "hello" {
		t.Errorf("Expected 'hello', got %q", reply)
	}
	if len(*attempts) != 1 {
		t.Errorf("Expected 1 attempt, got %d", len(*attempts))
	}
	if len(*sleeps) != 0 {
		t.Errorf("Expected no backoff, got %d", len(*sleeps))
	}
}

func TestDispatch_FallbackAfterRateLimit(t *testing.T) {
	d, attempts, sleeps := newTestDispatcher(t, map[string]modelResponse{
		"model-a": {http.StatusTooManyRequests, "rate limited"},
		"model-b": {http.StatusNotFound, "no such model"},
		"model-c": {http.StatusOK, okBody("third time lucky")},
	})

	reply, err := d.Dispatch(context.Background(), []models.Turn{{Role: models.RoleUser, Text: "hi"}})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if reply != "third time lucky" {
		t.Errorf("Expected third candidate's reply, got %q", reply)
	}
	if got := *attempts; len(got) != 3 || got[0] != "model-a" || got[1] != "model-b" || got[2] != "model-c" {
		t.Errorf("Expected ordered attempts a,b,c, got %v", got)
	}
	// 429 and 404 each cost one fixed backoff interval.
	if len(*sleeps) != 2 {
		t.Errorf("Expected 2 backoff sleeps, got %d", len(*sleeps))
	}
}

func TestDispatch_ServerErrorNoBackoff(t *testing.T) {
	d, _, sleeps := newTestDispatcher(t, map[string]modelResponse{
		"model-a": {http.StatusInternalServerError, "boom"},
		"model-b": {http.StatusOK, okBody("ok")},
	})

	reply, err := d.Dispatch(context.Background(), []models.Turn{{Role: models.RoleUser, Text: "hi"}})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if reply != "ok" {
		t.Errorf("Expected 'ok', got %q", reply)
	}
	if len(*sleeps) != 0 {
		t.Errorf("Expected no backoff after a 500, got %d sleeps", len(*sleeps))
	}
}

func TestDispatch_MalformedSuccessBodyContinues(t *testing.T) {
	d, attempts, _ := newTestDispatcher(t, map[string]modelResponse{
		"model-a": {http.StatusOK, `{"candidates":[]}`},
		"model-b": {http.StatusOK, okBody("recovered")},
	})

	reply, err := d.Dispatch(context.Background(), []models.Turn{{Role: models.RoleUser, Text: "hi"}})
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if reply != "recovered" {
		t.Errorf("Expected 'recovered', got %q", reply)
	}
	if len(*attempts) != 2 {
		t.Errorf("Expected 2 attempts, got %d", len(*attempts))
	}
}

func TestDispatch_AllExhausted(t *testing.T) {
	d, attempts, _ := newTestDispatcher(t, map[string]modelResponse{
		"model-a": {http.StatusTooManyRequests, "slow down"},
		"model-b": {http.StatusServiceUnavailable, "backend down"},
	})

	_, err := d.Dispatch(context.Background(), []models.Turn{{Role: models.RoleUser, Text: "hi"}})
	if !errors.Is(err, ErrAllBackendsExhausted) {
		t.Fatalf("Expected ErrAllBackendsExhausted, got %v", err)
	}
	// The error carries the last candidate's failure for diagnostics.
	if !strings.Contains(err.Error(), "backend down") {
		t.Errorf("Expected last error text in %q", err.Error())
	}
	if len(*attempts) != 2 {
		t.Errorf("Expected 2 attempts, got %d", len(*attempts))
	}
}

func TestBuildRequest_CallerPrefix(t *testing.T) {
	req := buildRequest([]models.Turn{
		{Role: models.RoleUser, Text: "find my tasks"},
		{Role: models.RoleAssistant, Text: "TASK_IDS:[1]"},
	})

	if len(req.Contents) != 1 {
		t.Fatalf("Expected one flattened content block, got %d", len(req.Contents))
	}
	parts := req.Contents[0].Parts
	if len(parts) != 2 {
		t.Fatalf("Expected 2 parts, got %d", len(parts))
	}
	if parts[0].Text != "You: find my tasks" {
		t.Errorf("Expected caller prefix, got %q", parts[0].Text)
	}
	if parts[1].Text != "TASK_IDS:[1]" {
		t.Errorf("Expected assistant turn unprefixed, got %q", parts[1].Text)
	}
}
