package credentials

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func probeClient() *http.Client {
	return &http.Client{Timeout: ProbeTimeout}
}

func TestProbeOpenAIStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus ProbeStatus
		wantValid  bool
		wantCount  int
	}{
		{
			name: "valid key with model listing",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/models" {
					t.Errorf("path = %s, want /v1/models", r.URL.Path)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer sk-good" {
					t.Errorf("auth header = %q", got)
				}
				w.Write([]byte(`{"data":[{"id":"gpt-4o"},{"id":"gpt-4o-mini"}]}`))
			},
			wantStatus: StatusValid,
			wantValid:  true,
			wantCount:  2,
		},
		{
			name:       "rejected key",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
			wantStatus: StatusInvalid,
		},
		{
			name:       "forbidden key",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusForbidden) },
			wantStatus: StatusInvalid,
		},
		{
			name:       "rate limited",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			wantStatus: StatusRateLimited,
		},
		{
			name:       "vendor outage",
			handler:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) },
			wantStatus: StatusError,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			res := probeOpenAI(context.Background(), probeClient(), srv.URL, "sk-good")
			if res.Status != tc.wantStatus || res.Valid != tc.wantValid {
				t.Fatalf("result = %+v, want status %s valid %v", res, tc.wantStatus, tc.wantValid)
			}
			if res.ModelCount != tc.wantCount {
				t.Fatalf("model count = %d, want %d", res.ModelCount, tc.wantCount)
			}
		})
	}
}

func TestProbeGeminiKeyInQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "g-key" {
			t.Errorf("key query param = %q", got)
		}
		if r.Header.Get("Authorization") != "" {
			t.Error("gemini probe must not send an Authorization header")
		}
		w.Write([]byte(`{"models":[{"name":"models/gemini-2.0-flash"}]}`))
	}))
	defer srv.Close()

	res := probeGemini(context.Background(), probeClient(), srv.URL, "g-key")
	if !res.Valid || res.ModelCount != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestProbeGeminiBadRequestIsInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	res := probeGemini(context.Background(), probeClient(), srv.URL, "malformed")
	if res.Status != StatusInvalid || res.Valid {
		t.Fatalf("result = %+v, want invalid", res)
	}
}

func TestProbeClaudeCompletionHeuristic(t *testing.T) {
	cases := []struct {
		name       string
		code       int
		wantStatus ProbeStatus
		wantValid  bool
	}{
		{"ok proves key", http.StatusOK, StatusValid, true},
		{"bad request still proves key", http.StatusBadRequest, StatusValid, true},
		{"unauthorized disproves key", http.StatusUnauthorized, StatusInvalid, false},
		{"rate limited", http.StatusTooManyRequests, StatusRateLimited, false},
		{"outage", http.StatusServiceUnavailable, StatusError, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/v1/messages" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				if r.Header.Get("x-api-key") != "ak-test" {
					t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
				}
				if r.Header.Get("anthropic-version") == "" {
					t.Error("missing anthropic-version header")
				}
				w.WriteHeader(tc.code)
			}))
			defer srv.Close()

			res := probeClaude(context.Background(), probeClient(), srv.URL, "ak-test")
			if res.Status != tc.wantStatus || res.Valid != tc.wantValid {
				t.Fatalf("result = %+v, want status %s valid %v", res, tc.wantStatus, tc.wantValid)
			}
		})
	}
}

func TestProbeDeepSeekEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Errorf("path = %s, want /models", r.URL.Path)
		}
		w.Write([]byte(`{"data":[{"id":"deepseek-chat"}]}`))
	}))
	defer srv.Close()

	res := probeDeepSeek(context.Background(), probeClient(), srv.URL, "ds-key")
	if !res.Valid || res.ModelCount != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestProbeTimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := probeOpenAI(ctx, probeClient(), srv.URL, "sk")
	if res.Status != StatusTimeout {
		t.Fatalf("status = %s, want timeout", res.Status)
	}
}
