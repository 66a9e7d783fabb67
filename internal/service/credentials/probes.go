package credentials

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"omnichat/internal/models"
)

// ProbeTimeout bounds every vendor liveness probe.
const ProbeTimeout = 10 * time.Second

// ProbeStatus classifies a probe outcome. Invalid means the vendor rejected
// the key; Timeout and Error mean nothing was proven about it.
type ProbeStatus string

const (
	StatusValid       ProbeStatus = "valid"
	StatusInvalid     ProbeStatus = "invalid"
	StatusRateLimited ProbeStatus = "rate_limited"
	StatusTimeout     ProbeStatus = "timeout"
	StatusError       ProbeStatus = "error"
)

// ProbeResult is the uniform outcome of a vendor liveness probe.
type ProbeResult struct {
	Vendor         models.Vendor `json:"vendor"`
	Status         ProbeStatus   `json:"status"`
	Valid          bool          `json:"valid"`
	Error          string        `json:"error,omitempty"`
	ResponseTimeMs int64         `json:"response_time_ms"`
	ModelCount     int           `json:"model_count,omitempty"`
	Detail         string        `json:"detail,omitempty"`
}

type prober func(ctx context.Context, client *http.Client, baseURL, secret string) ProbeResult

// probers holds the per-vendor validation heuristics. Each one is a plain
// function so the quirks stay individually testable.
var probers = map[models.Vendor]prober{
	models.VendorOpenAI:   probeOpenAI,
	models.VendorClaude:   probeClaude,
	models.VendorGemini:   probeGemini,
	models.VendorDeepSeek: probeDeepSeek,
}

// statusFromCode maps a list-models response code to a probe status:
// any 2xx proves the key, 401/403 disproves it, 429 is reported separately
// and everything else is a vendor-side error.
func statusFromCode(code int) ProbeStatus {
	switch {
	case code >= 200 && code < 300:
		return StatusValid
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return StatusInvalid
	case code == http.StatusTooManyRequests:
		return StatusRateLimited
	default:
		return StatusError
	}
}

func transportResult(vendor models.Vendor, err error) ProbeResult {
	if errors.Is(err, context.DeadlineExceeded) {
		return ProbeResult{Vendor: vendor, Status: StatusTimeout, Error: "probe timed out"}
	}
	return ProbeResult{Vendor: vendor, Status: StatusError, Error: err.Error()}
}

// countModels extracts the entry count from a list-models payload, trying the
// field names the vendors use.
func countModels(body []byte) int {
	var listing struct {
		Data   []json.RawMessage `json:"data"`
		Models []json.RawMessage `json:"models"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		return 0
	}
	if len(listing.Data) > 0 {
		return len(listing.Data)
	}
	return len(listing.Models)
}

// probeOpenAI lists models with the key as a bearer header.
func probeOpenAI(ctx context.Context, client *http.Client, baseURL, secret string) ProbeResult {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return probeModelListing(ctx, client, models.VendorOpenAI, baseURL+"/v1/models", secret)
}

// probeDeepSeek lists models; DeepSeek speaks the OpenAI wire format.
func probeDeepSeek(ctx context.Context, client *http.Client, baseURL, secret string) ProbeResult {
	if baseURL == "" {
		baseURL = "https://api.deepseek.com"
	}
	return probeModelListing(ctx, client, models.VendorDeepSeek, baseURL+"/models", secret)
}

func probeModelListing(ctx context.Context, client *http.Client, vendor models.Vendor, endpoint, secret string) ProbeResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ProbeResult{Vendor: vendor, Status: StatusError, Error: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+secret)

	resp, err := client.Do(req)
	if err != nil {
		return transportResult(vendor, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	result := ProbeResult{Vendor: vendor, Status: statusFromCode(resp.StatusCode)}
	switch result.Status {
	case StatusValid:
		result.Valid = true
		result.ModelCount = countModels(body)
		if remaining := resp.Header.Get("x-ratelimit-remaining-requests"); remaining != "" {
			result.Detail = "remaining requests: " + remaining
		}
	case StatusInvalid:
		result.Error = "vendor rejected the key"
	case StatusRateLimited:
		result.Error = "vendor rate limit hit"
	default:
		result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return result
}

// probeGemini lists models with the key passed as a query parameter, which is
// how the Gemini API authenticates.
func probeGemini(ctx context.Context, client *http.Client, baseURL, secret string) ProbeResult {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com"
	}
	endpoint := baseURL + "/v1beta/models?pageSize=5&key=" + url.QueryEscape(secret)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return ProbeResult{Vendor: models.VendorGemini, Status: StatusError, Error: err.Error()}
	}

	resp, err := client.Do(req)
	if err != nil {
		return transportResult(models.VendorGemini, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	// Gemini answers 400 INVALID_ARGUMENT for malformed keys, which counts as
	// a rejection here, not a vendor error.
	status := statusFromCode(resp.StatusCode)
	if resp.StatusCode == http.StatusBadRequest {
		status = StatusInvalid
	}
	result := ProbeResult{Vendor: models.VendorGemini, Status: status}
	switch status {
	case StatusValid:
		result.Valid = true
		result.ModelCount = countModels(body)
	case StatusInvalid:
		result.Error = "vendor rejected the key"
	case StatusRateLimited:
		result.Error = "vendor rate limit hit"
	default:
		result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return result
}

// probeClaude issues a deliberately tiny completion request. A 400 still
// proves the key: the request authenticated before the body was rejected.
// Only 401/403 disprove it.
func probeClaude(ctx context.Context, client *http.Client, baseURL, secret string) ProbeResult {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	payload, _ := json.Marshal(map[string]any{
		"model":      "claude-3-5-haiku-20241022",
		"max_tokens": 1,
		"messages": []map[string]string{
			{"role": "user", "content": "ping"},
		},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return ProbeResult{Vendor: models.VendorClaude, Status: StatusError, Error: err.Error()}
	}
	req.Header.Set("x-api-key", secret)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return transportResult(models.VendorClaude, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	result := ProbeResult{Vendor: models.VendorClaude}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300, resp.StatusCode == http.StatusBadRequest:
		result.Status = StatusValid
		result.Valid = true
		result.Detail = fmt.Sprintf("completion probe status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		result.Status = StatusInvalid
		result.Error = "vendor rejected the key"
	case resp.StatusCode == http.StatusTooManyRequests:
		result.Status = StatusRateLimited
		result.Error = "vendor rate limit hit"
	default:
		result.Status = StatusError
		result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return result
}
