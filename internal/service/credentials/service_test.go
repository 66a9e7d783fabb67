package credentials

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"omnichat/internal/config"
	"omnichat/internal/models"
)

func newProbeService(baseURL string) *Service {
	cfg := &config.Config{Providers: map[string]config.ProviderConfig{
		"openai":   {BaseURL: baseURL},
		"claude":   {BaseURL: baseURL},
		"gemini":   {BaseURL: baseURL},
		"deepseek": {BaseURL: baseURL},
	}}
	return &Service{
		client: &http.Client{Timeout: ProbeTimeout},
		cfg:    cfg,
	}
}

func TestValidateUnknownVendor(t *testing.T) {
	svc := newProbeService("http://127.0.0.1:0")
	res := svc.Validate(context.Background(), models.Vendor("fax"), "key")
	if res.Status != StatusError || res.Valid {
		t.Fatalf("result = %+v, want error status", res)
	}
}

func TestValidateMeasuresResponseTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	svc := newProbeService(srv.URL)
	res := svc.Validate(context.Background(), models.VendorOpenAI, "sk-x")
	if !res.Valid {
		t.Fatalf("result = %+v", res)
	}
	if res.ResponseTimeMs < 30 {
		t.Fatalf("response time = %dms, want >= 30", res.ResponseTimeMs)
	}
}

func TestValidateBatchBoundedConcurrency(t *testing.T) {
	var inFlight, peak int64
	var mu sync.Mutex

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := atomic.AddInt64(&inFlight, 1)
		mu.Lock()
		if cur > peak {
			peak = cur
		}
		mu.Unlock()
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		w.Write([]byte(`{"data":[{"id":"m"}]}`))
	}))
	defer srv.Close()

	svc := newProbeService(srv.URL)
	items := make([]BatchItem, 12)
	for i := range items {
		items[i] = BatchItem{Vendor: models.VendorOpenAI, Secret: "sk-batch"}
	}

	results, summary := svc.ValidateBatch(context.Background(), items)
	if len(results) != 12 {
		t.Fatalf("results len = %d", len(results))
	}
	if summary.Total != 12 || summary.Valid != 12 || summary.Invalid != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.AvgResponseTimeMs <= 0 {
		t.Fatalf("avg response time = %d", summary.AvgResponseTimeMs)
	}

	mu.Lock()
	defer mu.Unlock()
	if peak > BatchConcurrency {
		t.Fatalf("peak concurrency = %d, want <= %d", peak, BatchConcurrency)
	}
}

func TestValidateBatchMixedOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			w.Write([]byte(`{"data":[]}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	svc := newProbeService(srv.URL)
	items := []BatchItem{
		{Vendor: models.VendorOpenAI, Secret: "good"},
		{Vendor: models.VendorOpenAI, Secret: "bad"},
		{Vendor: models.VendorDeepSeek, Secret: "good"},
	}
	results, summary := svc.ValidateBatch(context.Background(), items)
	if summary.Valid != 2 || summary.Invalid != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	// Results keep request order.
	if !results[0].Valid || results[1].Valid || !results[2].Valid {
		t.Fatalf("results out of order: %+v", results)
	}
}
