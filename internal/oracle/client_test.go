package oracle

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"crypto-calls-dashboard/config"

	"github.com/rs/zerolog"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.OracleConfig{
		BaseURL:        baseURL,
		RequestTimeout: 2 * time.Second,
		MaxParallel:    4,
	}, zerolog.Nop())
}

func TestGetPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/price" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		symbol := r.URL.Query().Get("symbol")
		fmt.Fprintf(w, `{"symbol":%q,"price":"64250.12000000"}`, symbol)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	price, err := client.GetPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetPrice failed: %v", err)
	}
	if price != 64250.12 {
		t.Errorf("Expected 64250.12, got %v", price)
	}
}

func TestGetPriceAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	if _, err := client.GetPrice(context.Background(), "NOPEUSDT"); err == nil {
		t.Fatal("Expected error for invalid symbol")
	}
}

func TestGetPriceRejectsNonPositive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"0.00000000"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	if _, err := client.GetPrice(context.Background(), "BTCUSDT"); err == nil {
		t.Fatal("Expected error for zero price")
	}
}

func TestSnapshotOmitsFailedSymbols(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "BTCUSDT":
			fmt.Fprint(w, `{"symbol":"BTCUSDT","price":"64000.00"}`)
		case "ETHUSDT":
			fmt.Fprint(w, `{"symbol":"ETHUSDT","price":"3200.50"}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"code":-1121,"msg":"Invalid symbol."}`)
		}
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	snapshot := client.Snapshot(context.Background(), []string{"BTCUSDT", "ETHUSDT", "BADUSDT"})

	if len(snapshot) != 2 {
		t.Fatalf("Expected 2 prices, got %d: %v", len(snapshot), snapshot)
	}
	if snapshot["BTCUSDT"] != 64000.00 || snapshot["ETHUSDT"] != 3200.50 {
		t.Errorf("Unexpected snapshot: %v", snapshot)
	}
	if _, ok := snapshot["BADUSDT"]; ok {
		t.Error("Failed symbol must be omitted from the snapshot")
	}
}

func TestSnapshotEmptyInput(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")

	snapshot := client.Snapshot(context.Background(), nil)
	if len(snapshot) != 0 {
		t.Errorf("Expected empty snapshot, got %v", snapshot)
	}
}
