package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

func TestGetPrices(t *testing.T) {
	var gotPath, gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"BTC": {"current": "110000", "previous24h": "100000", "change24h": "10000", "changePercentage24h": "10"},
			"ETH": {"current": "4000", "previous24h": "4100"}
		}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "session-token")

	prices, err := client.GetPrices(context.Background())
	if err != nil {
		t.Fatalf("GetPrices failed: %v", err)
	}

	if gotPath != "/api/prices" {
		t.Errorf("path = %q, want /api/prices", gotPath)
	}
	if gotAuth != "Bearer session-token" {
		t.Errorf("Authorization = %q, want Bearer session-token", gotAuth)
	}
	if len(prices) != 2 {
		t.Errorf("symbols = %d, want 2", len(prices))
	}
	if !prices["BTC"].Current.Equal(decimal.NewFromInt(110000)) {
		t.Errorf("BTC current = %s, want 110000", prices["BTC"].Current)
	}
	if !prices["BTC"].ChangePercentage24h.Equal(decimal.NewFromInt(10)) {
		t.Errorf("BTC changePercentage24h = %s, want 10", prices["BTC"].ChangePercentage24h)
	}
}

func TestGetPrices_RetriesServerErrors(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			http.Error(w, "bad gateway", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"BTC": {"current": "1"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "",
		WithRetries(3, 10*time.Millisecond),
	)

	prices, err := client.GetPrices(context.Background())
	if err != nil {
		t.Fatalf("GetPrices failed after retries: %v", err)
	}
	if len(prices) != 1 {
		t.Errorf("symbols = %d, want 1", len(prices))
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestGetPrices_NoRetryOnClientError(t *testing.T) {
	var calls int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, "",
		WithRetries(3, 10*time.Millisecond),
	)

	_, err := client.GetPrices(context.Background())
	if err == nil {
		t.Fatal("expected error for 404")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want 1 (client errors are not retried)", got)
	}
}

func TestGetSession_Unauthenticated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "")

	_, err := client.GetSession(context.Background())
	if !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestCreateVault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}

		var req VaultRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Name != "growth" {
			t.Errorf("name = %q, want growth", req.Name)
		}

		w.Write([]byte(`{"id": 42, "name": "growth", "strategy": "aggressive"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")

	vault, err := client.CreateVault(context.Background(), VaultRequest{
		Name:     "growth",
		Strategy: "aggressive",
	})
	if err != nil {
		t.Fatalf("CreateVault failed: %v", err)
	}
	if vault.ID != 42 {
		t.Errorf("id = %d, want 42", vault.ID)
	}
}

func TestAPIError_IsRetryable(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{500, true},
		{502, true},
		{429, true},
		{400, false},
		{404, false},
		{401, false},
	}

	for _, tt := range tests {
		err := &APIError{StatusCode: tt.status}
		if got := err.IsRetryable(); got != tt.want {
			t.Errorf("IsRetryable(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}
