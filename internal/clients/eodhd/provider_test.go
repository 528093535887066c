package eodhd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/models"
)

var asx = models.Market{Code: "ASX", Currency: "AUD", Aliases: map[string]string{"EODHD": "AU"}}

func newTestClient(url string) *Client {
	return NewClient(models.ProviderConfig{ID: ProviderID, APIKey: "test-key", Markets: []string{"ASX", "NYSE"}}, WithBaseURL(url))
}

func TestGetPrices_StringFields(t *testing.T) {
	// AU exchange returns price/volume fields as strings, and the whole
	// exchange rather than just the requested symbols
	mockResp := `[
		{"code": "BHP", "exchange_short_name": "AU", "date": "2025-03-28",
		 "open": "42.10", "high": "43.50", "low": "41.80", "close": "43.25",
		 "adjusted_close": "43.25", "prev_close": "42.00", "volume": "5000000"},
		{"code": "RIO", "exchange_short_name": "AU", "date": "2025-03-28",
		 "open": "110.50", "high": "112.00", "low": "109.80", "close": "111.75",
		 "adjusted_close": "111.75", "volume": "3000000"},
		{"code": "DEAD", "exchange_short_name": "AU", "date": "2025-03-28",
		 "open": "N/A", "high": "N/A", "low": "N/A", "close": "N/A", "volume": null}
	]`

	var gotPath, gotSymbols, gotDate, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSymbols = r.URL.Query().Get("symbols")
		gotDate = r.URL.Query().Get("date")
		gotToken = r.URL.Query().Get("api_token")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(mockResp))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	date := time.Date(2025, time.March, 28, 0, 0, 0, 0, time.UTC)
	result, err := client.GetPrices(context.Background(), asx, "BHP.AU,DEAD.AU", date)
	if err != nil {
		t.Fatalf("GetPrices failed: %v", err)
	}

	if gotPath != "/eod-bulk-last-day/AU" {
		t.Errorf("path = %q, want /eod-bulk-last-day/AU", gotPath)
	}
	if gotSymbols != "BHP.AU,DEAD.AU" || gotDate != "2025-03-28" || gotToken != "test-key" {
		t.Errorf("query symbols=%q date=%q token=%q", gotSymbols, gotDate, gotToken)
	}

	bhp, ok := result["BHP.AU"]
	if !ok {
		t.Fatalf("BHP.AU missing from %v", result)
	}
	if !bhp.Close.Equal(decimal.RequireFromString("43.25")) {
		t.Errorf("BHP close = %s, want 43.25", bhp.Close)
	}
	if !bhp.PreviousClose.Equal(decimal.RequireFromString("42")) {
		t.Errorf("BHP prev close = %s, want 42", bhp.PreviousClose)
	}
	if bhp.Volume != 5000000 {
		t.Errorf("BHP volume = %d, want 5000000", bhp.Volume)
	}
	if !bhp.Date.Equal(date) {
		t.Errorf("BHP date = %s, want %s", bhp.Date, date)
	}
	if _, ok := result["RIO.AU"]; !ok {
		t.Errorf("market-wide rows should be returned for correlation")
	}
	if _, ok := result["DEAD.AU"]; ok {
		t.Errorf("row without a close should be omitted")
	}
}

func TestGetPrices_NumericFields(t *testing.T) {
	mockResp := `[{"code": "AAPL", "exchange_short_name": "US", "date": "2025-03-28",
		"open": 175.50, "high": 178.00, "low": 174.25, "close": 177.80,
		"adjusted_close": 177.80, "volume": 45000000}]`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mockResp))
	}))
	defer srv.Close()

	nyse := models.Market{Code: "NYSE", Aliases: map[string]string{"EODHD": "US"}}
	result, err := newTestClient(srv.URL).GetPrices(context.Background(), nyse, "AAPL.US", time.Time{})
	if err != nil {
		t.Fatalf("GetPrices failed: %v", err)
	}

	aapl := result["AAPL.US"]
	if aapl == nil || !aapl.Close.Equal(decimal.RequireFromString("177.8")) {
		t.Fatalf("AAPL = %+v, want close 177.80", aapl)
	}
	if aapl.Volume != 45000000 {
		t.Errorf("AAPL volume = %d, want 45000000", aapl.Volume)
	}
}

func TestGetBulkEOD_KeysByExchangeShortName(t *testing.T) {
	mockResp := `[
		{"code": "MSFT", "exchange_short_name": "US", "date": "2025-03-28", "close": 390.10},
		{"code": "AAPL", "date": "2025-03-28", "close": 177.80}
	]`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(mockResp))
	}))
	defer srv.Close()

	result, err := newTestClient(srv.URL).GetBulkEOD(context.Background(), "NASDAQ", []string{"MSFT", "AAPL"}, time.Time{})
	if err != nil {
		t.Fatalf("GetBulkEOD failed: %v", err)
	}
	if _, ok := result["MSFT.US"]; !ok {
		t.Errorf("MSFT should be keyed by exchange_short_name, got %v", result)
	}
	if _, ok := result["AAPL.NASDAQ"]; !ok {
		t.Errorf("row without exchange_short_name should use the requested exchange, got %v", result)
	}
}

func TestGetPrices_EmptySymbols(t *testing.T) {
	result, err := NewClient(models.ProviderConfig{}).GetPrices(context.Background(), asx, "", time.Time{})
	if err != nil {
		t.Fatalf("empty batch should not fail: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("expected empty result, got %d", len(result))
	}
}

func TestGetPrices_ErrorKinds(t *testing.T) {
	tests := []struct {
		status   int
		business bool
	}{
		{http.StatusUnauthorized, true},
		{http.StatusNotFound, true},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
	}

	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))

		_, err := newTestClient(srv.URL).GetPrices(context.Background(), asx, "BHP.AU", time.Time{})
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		if common.IsBusiness(err) != tt.business || common.IsSystem(err) == tt.business {
			t.Errorf("status %d: business=%v system=%v", tt.status, common.IsBusiness(err), common.IsSystem(err))
		}
	}
}

func TestFlexDecimal_NullAndEmptyValues(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"null_open", `{"code":"X","open":null}`},
		{"empty_open", `{"code":"X","open":""}`},
		{"na_open", `{"code":"X","open":"N/A"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var row bulkEODResponse
			if err := json.Unmarshal([]byte(tt.json), &row); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if !row.Open.Decimal().IsZero() {
				t.Errorf("open = %s, want 0", row.Open.Decimal())
			}
		})
	}
}

func TestIsMarketSupported(t *testing.T) {
	client := newTestClient("http://unused")
	if !client.IsMarketSupported(asx) {
		t.Error("ASX should be supported")
	}
	if client.IsMarketSupported(models.Market{Code: "TSX"}) {
		t.Error("TSX should not be supported")
	}
	if client.ID() != ProviderID {
		t.Errorf("ID = %q", client.ID())
	}
}
