package httputils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

func TestSendJSON(t *testing.T) {
	w := httptest.NewRecorder()
	SendJSON(w, http.StatusCreated, map[string]bool{"received": true})

	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("expected a JSON content type, got %q", ct)
	}

	if got := w.Body.String(); got != `{"received":true}` {
		t.Errorf("unexpected body %s", got)
	}
}

func TestReadBody(t *testing.T) {
	var tests = []struct {
		name string
		body string
		max  int64
		err  bool
	}{
		{"Body under the limit", `{"id":"evt_1"}`, 64, false},
		{"Body at the limit", "0123456789", 10, false},
		{"Body over the limit", "0123456789a", 10, true},
		{"Empty body", "", 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "https://localhost", strings.NewReader(tt.body))

			body, err := ReadBody(r, tt.max)
			if err != nil && !tt.err {
				t.Fatalf("did not expect error, got: %s", err)
			} else if err == nil && tt.err {
				t.Fatalf("expected an error, got body %q", body)
			}

			if !tt.err && string(body) != tt.body {
				t.Errorf("expected body %q, got %q", tt.body, body)
			}
		})
	}
}

func TestVerifyRequestType(t *testing.T) {
	var tests = []struct {
		name, method string
	}{
		{"GET Request", http.MethodGet},
		{"POST Request", http.MethodPost},
		{"PUT Request", http.MethodPut},
	}

	methodsToTest := []string{
		http.MethodHead,
		http.MethodOptions,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodDelete,
		http.MethodPatch,
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, method := range methodsToTest {
				w := httptest.NewRecorder()
				r := httptest.NewRequest(method, "https://localhost", nil)

				err := VerifyRequestType(w, r, tt.method)
				if err != nil && tt.method == method {
					t.Errorf("did not expect error, got: %s", err)
				}

				if tt.method != method {
					if err == nil {
						t.Errorf("expected error verifying %s against %s", method, tt.method)
					}
					if w.Code != http.StatusMethodNotAllowed {
						t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, w.Code)
					}
				}
			}
		})
	}
}

func TestEnableCORS(t *testing.T) {
	corsHandler := EnableCORS(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(http.HandlerFunc(corsHandler))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("did not expect error, got: %s", err)
	}
	defer resp.Body.Close()

	wantHeaders := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Headers": "Origin, Accept, Content-Type, X-Requested-With",
		"Access-Control-Allow-Methods": "POST, OPTIONS",
	}

	// Check that all CORS headers were added to the response
	for k, v := range wantHeaders {
		header := resp.Header.Get(k)
		if header != v {
			t.Errorf("header %v was not added to request", k)
		}
	}

	// Preflight requests never reach the handler
	req := httptest.NewRequest(http.MethodOptions, "https://localhost", nil)
	w := httptest.NewRecorder()
	corsHandler(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected preflight status %d, got %d", http.StatusNoContent, w.Code)
	}
}

func TestThrottleMiddleware(t *testing.T) {
	var calls int
	limiter := rate.NewLimiter(rate.Every(time.Hour), 2)
	handler := ThrottleMiddleware(limiter, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	wantCodes := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	for i, want := range wantCodes {
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodPost, "https://localhost", nil))

		if w.Code != want {
			t.Errorf("request %d: expected status %d, got %d", i, want, w.Code)
		}
	}

	if calls != 2 {
		t.Errorf("expected handler to be called twice, got %d", calls)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	// A fresh id is generated when none is sent
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "https://localhost", nil))

	generated := w.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(generated); err != nil {
		t.Fatalf("expected a generated UUID, got %q", generated)
	}
	if seen != generated {
		t.Errorf("expected context id %q to match header %q", seen, generated)
	}

	// A valid inbound id is kept
	inbound := uuid.NewString()
	r := httptest.NewRequest(http.MethodGet, "https://localhost", nil)
	r.Header.Set(RequestIDHeader, inbound)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if got := w.Header().Get(RequestIDHeader); got != inbound {
		t.Errorf("expected inbound id %q to be kept, got %q", inbound, got)
	}
}
