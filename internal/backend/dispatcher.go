// Package backend dispatches transcripts to the generative AI backend.
//
// Availability of any single model identifier is flaky across deployments,
// so dispatch walks an ordered candidate list: one bounded call per model,
// a short fixed backoff after not-found/rate-limit replies, and immediate
// continuation on any other failure. The scan is strictly sequential; the
// list is a priority order, never a fan-out set.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/vku/taskchat/internal/config"
	"github.com/vku/taskchat/internal/models"
)

// ErrAllBackendsExhausted is returned when no candidate produced a usable
// reply. It wraps a description of the last failure for diagnostics.
var ErrAllBackendsExhausted = errors.New("all backend candidates exhausted")

// callerPrefix marks caller-authored turns in the flattened payload;
// assistant turns pass through unprefixed.
const callerPrefix = "You: "

// Dispatcher performs the call-with-fallback protocol.
type Dispatcher struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	candidates []string
	backoff    time.Duration
	sleep      func(time.Duration)
}

// New builds a Dispatcher from backend configuration.
func New(cfg config.BackendConfig) *Dispatcher {
	return &Dispatcher{
		client:     &http.Client{Timeout: cfg.CallTimeout()},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		candidates: cfg.Candidates,
		backoff:    cfg.Backoff(),
		sleep:      time.Sleep,
	}
}

// Gemini generateContent wire shapes.
type wirePart struct {
	Text string `json:"text"`
}

type wireContent struct {
	Parts []wirePart `json:"parts"`
}

type generateRequest struct {
	Contents []wireContent `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content wireContent `json:"content"`
	} `json:"candidates"`
}

// Dispatch sends the transcript to the candidates in order and returns the
// first usable reply text.
func (d *Dispatcher) Dispatch(ctx context.Context, turns []models.Turn) (string, error) {
	payload, err := json.Marshal(buildRequest(turns))
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	var lastErr error
	for _, model := range d.candidates {
		reply, throttled, err := d.call(ctx, model, payload)
		if err == nil {
			return reply, nil
		}
		log.Printf("[backend] %s: %v", model, err)
		lastErr = err
		if throttled {
			d.sleep(d.backoff)
		}
	}
	return "", fmt.Errorf("%w: %v", ErrAllBackendsExhausted, lastErr)
}

// buildRequest flattens turns into one ordered part list.
func buildRequest(turns []models.Turn) generateRequest {
	parts := make([]wirePart, 0, len(turns))
	for _, turn := range turns {
		text := turn.Text
		if turn.Role == models.RoleUser {
			text = callerPrefix + text
		}
		parts = append(parts, wirePart{Text: text})
	}
	return generateRequest{Contents: []wireContent{{Parts: parts}}}
}

// call issues one bounded request to a single model. throttled reports
// whether the failure warrants the fixed backoff before the next candidate.
func (d *Dispatcher) call(ctx context.Context, model string, payload []byte) (reply string, throttled bool, err error) {
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", d.baseURL, model, d.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", false, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusTooManyRequests:
		return "", true, fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", false, fmt.Errorf("status %d: %s", resp.StatusCode, snippet(body))
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, fmt.Errorf("malformed reply: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", false, errors.New("malformed reply: no content parts")
	}
	text := parsed.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", false, errors.New("malformed reply: empty text")
	}
	return text, false, nil
}

// snippet bounds error text taken from response bodies.
func snippet(body []byte) string {
	const max = 300
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
