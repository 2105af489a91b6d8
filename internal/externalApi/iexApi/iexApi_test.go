package iexApi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stockfolio/backend/config"
	"github.com/stockfolio/backend/internal/externalApi"
	"github.com/stockfolio/backend/internal/model/iexModel"
	"github.com/stretchr/testify/assert"
)

func testClient(url string) *IexApi {
	return New(&config.Config{
		API: config.API{
			Timeout: 5 * time.Second,
			IexApi:  config.IexApi{Url: url, Token: "test-token"},
		},
	})
}

func TestGetChart_ReducesToNameAndPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stable/stock/aapl/chart/ytd", r.URL.Path)
		assert.Equal(t, "test-token", r.URL.Query().Get("token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"date":"2023-06-15","close":150.2},{"date":"short","close":151.4}]`))
	}))
	defer server.Close()

	entries, err := testClient(server.URL).GetChart(context.Background(), "aapl")

	assert.NoError(t, err)
	assert.Equal(t, []iexModel.ChartEntry{
		{Name: "06-15", Price: 150.2},
		{Name: "short", Price: 151.4},
	}, entries)
}

func TestGetCollection_SortsDescAndLimits(t *testing.T) {
	stocks := make([]map[string]any, 0, 20)
	for i := 0; i < 20; i++ {
		stocks = append(stocks, map[string]any{
			"symbol":      "S" + string(rune('A'+i)),
			"latestPrice": float64(i * 10),
			"change":      1.5,
			"companyName": "Company " + string(rune('A'+i)),
		})
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stable/stock/market/collection/sector", r.URL.Path)
		assert.Equal(t, "Technology", r.URL.Query().Get("collectionName"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stocks)
	}))
	defer server.Close()

	entries, err := testClient(server.URL).GetCollection(context.Background(), "sector", "Technology")

	assert.NoError(t, err)
	assert.Len(t, entries, 15)
	assert.Equal(t, 190.0, entries[0].LatestPrice)
	for i := 1; i < len(entries); i++ {
		assert.GreaterOrEqual(t, entries[i-1].LatestPrice, entries[i].LatestPrice)
	}
	assert.Equal(t, "Company T", entries[0].CompanyName)
	assert.Equal(t, 1.5, entries[0].Change)
}

func TestGetCollection_StableOnEqualPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"symbol":"AAA","latestPrice":50,"change":0,"companyName":"A"},
			{"symbol":"BBB","latestPrice":50,"change":0,"companyName":"B"}
		]`))
	}))
	defer server.Close()

	entries, err := testClient(server.URL).GetCollection(context.Background(), "list", "mostactive")

	assert.NoError(t, err)
	assert.Equal(t, "AAA", entries[0].Symbol)
	assert.Equal(t, "BBB", entries[1].Symbol)
}

func TestGetFinancials_ReturnsFirstElement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"AAPL","financials":[{"reportDate":"2023-06-30"},{"reportDate":"2023-03-31"}]}`))
	}))
	defer server.Close()

	body, err := testClient(server.URL).GetFinancials(context.Background(), "aapl")

	assert.NoError(t, err)
	assert.JSONEq(t, `{"reportDate":"2023-06-30"}`, string(body))
}

func TestGetFinancials_EmptyArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"XYZ","financials":[]}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetFinancials(context.Background(), "xyz")

	assert.ErrorIs(t, err, externalApi.ErrNotFound)
}

func TestGet_UpstreamErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := testClient(server.URL).GetCompany(context.Background(), "aapl")

	assert.ErrorIs(t, err, externalApi.ErrUnavailable)
}

func TestGet_UpstreamUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := testClient(server.URL).GetCompany(context.Background(), "aapl")

	assert.ErrorIs(t, err, externalApi.ErrUnavailable)
}

func TestGetClosingPrices_KeyedByUppercaseSymbol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/stock/market/quote/latestprice/batch", r.URL.Path)
		assert.Equal(t, "aapl,tsla", r.URL.Query().Get("symbols"))
		assert.Equal(t, "symbol,close", r.URL.Query().Get("filter"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"symbol":"aapl","close":150.2},{"symbol":"TSLA","close":201.4}]`))
	}))
	defer server.Close()

	prices, err := testClient(server.URL).GetClosingPrices(context.Background(), []string{"aapl", "tsla"})

	assert.NoError(t, err)
	assert.Equal(t, map[string]float64{"AAPL": 150.2, "TSLA": 201.4}, prices)
}

func TestGetMostActive_ReducesFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "mostactive", r.URL.Query().Get("collectionName"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"symbol":"AAPL","latestPrice":150.2,"change":-1.1,"companyName":"Apple"}]`))
	}))
	defer server.Close()

	entries, err := testClient(server.URL).GetMostActive(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, []iexModel.MostActiveEntry{{Symbol: "AAPL", LatestPrice: 150.2, Change: -1.1}}, entries)
}
