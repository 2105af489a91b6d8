package iexApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/stockfolio/backend/config"
	"github.com/stockfolio/backend/internal/externalApi"
	"github.com/stockfolio/backend/internal/model/iexModel"
	"github.com/stockfolio/backend/utils"
)

const collectionLimit = 15

// IexApi wraps the market-data provider. Most operations forward the raw
// JSON body; chart, most-active, collection and financials reshape it.
type IexApi struct {
	client *resty.Client
	token  string
}

func New(cfg *config.Config) *IexApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.IexApi.Url)
	return &IexApi{client: client, token: cfg.API.IexApi.Token}
}

// get issues the provider request with the access token attached and maps
// every network or HTTP-level failure to externalApi.ErrUnavailable.
func (a *IexApi) get(ctx context.Context, op, url string, params map[string]string) ([]byte, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug("start "+op+" request", slog.String("rqID", rqID), slog.String("url", url))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParam("token", a.token).
		SetQueryParams(params).
		Get(url)

	if err != nil {
		slog.Error("error while dialing IexApi", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, fmt.Errorf("%w: %s", externalApi.ErrUnavailable, err.Error())
	}

	if resp.IsError() {
		slog.Error("IexApi returned error status", slog.String("rqID", rqID), slog.Int("status", resp.StatusCode()), slog.String("url", url))
		return nil, fmt.Errorf("%w: status %d", externalApi.ErrUnavailable, resp.StatusCode())
	}

	slog.Debug(op+" request complete", slog.String("rqID", rqID))

	return resp.Body(), nil
}

func (a *IexApi) GetCompany(ctx context.Context, symbol string) (json.RawMessage, error) {
	return a.get(ctx, "IexApi.GetCompany", fmt.Sprintf("/stable/stock/%s/company", symbol), nil)
}

// GetStockPrices forwards the provider's batch latest-price payload untouched.
func (a *IexApi) GetStockPrices(ctx context.Context, symbols string) (json.RawMessage, error) {
	return a.get(ctx, "IexApi.GetStockPrices", "/v1/stock/market/quote/latestprice/batch", map[string]string{
		"symbols": symbols,
	})
}

func (a *IexApi) GetLatestPrice(ctx context.Context, symbol string) (json.RawMessage, error) {
	return a.get(ctx, "IexApi.GetLatestPrice", fmt.Sprintf("/stable/stock/%s/quote/latestPrice", symbol), nil)
}

func (a *IexApi) Search(ctx context.Context, fragment string) (json.RawMessage, error) {
	return a.get(ctx, "IexApi.Search", fmt.Sprintf("/stable/search/%s", fragment), nil)
}

func (a *IexApi) GetNews(ctx context.Context, symbol string) (json.RawMessage, error) {
	return a.get(ctx, "IexApi.GetNews", fmt.Sprintf("/stable/stock/%s/news/last/5", symbol), nil)
}

func (a *IexApi) GetSectors(ctx context.Context) (json.RawMessage, error) {
	return a.get(ctx, "IexApi.GetSectors", "/stable/ref-data/sectors", nil)
}

// GetChart returns the year-to-date chart reduced to {name, price} pairs in
// provider order, name being the MM-DD part of the provider date.
func (a *IexApi) GetChart(ctx context.Context, symbol string) ([]iexModel.ChartEntry, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	body, err := a.get(ctx, "IexApi.GetChart", fmt.Sprintf("/stable/stock/%s/chart/ytd", symbol), nil)
	if err != nil {
		return nil, err
	}

	var points []iexModel.ChartPoint
	if err := json.Unmarshal(body, &points); err != nil {
		slog.Error("can't unmarshal chart response", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	entries := make([]iexModel.ChartEntry, 0, len(points))
	for _, point := range points {
		name := point.Date
		if len(name) >= 10 {
			name = name[5:10]
		}
		entries = append(entries, iexModel.ChartEntry{Name: name, Price: point.Close})
	}

	return entries, nil
}

// GetMostActive reduces the mostactive collection to {symbol, latestPrice, change}.
func (a *IexApi) GetMostActive(ctx context.Context) ([]iexModel.MostActiveEntry, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	body, err := a.get(ctx, "IexApi.GetMostActive", "/stable/stock/market/collection/list", map[string]string{
		"collectionName": "mostactive",
	})
	if err != nil {
		return nil, err
	}

	var stocks []iexModel.CollectionStock
	if err := json.Unmarshal(body, &stocks); err != nil {
		slog.Error("can't unmarshal most-active response", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	entries := make([]iexModel.MostActiveEntry, 0, len(stocks))
	for _, stock := range stocks {
		entries = append(entries, iexModel.MostActiveEntry{
			Symbol:      stock.Symbol,
			LatestPrice: stock.LatestPrice,
			Change:      stock.Change,
		})
	}

	return entries, nil
}

// GetCollection sorts the named collection by latestPrice descending
// (stable, provider order breaks ties) and returns at most the top 15.
func (a *IexApi) GetCollection(ctx context.Context, tag, name string) ([]iexModel.CollectionEntry, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	body, err := a.get(ctx, "IexApi.GetCollection", fmt.Sprintf("/stable/stock/market/collection/%s", tag), map[string]string{
		"collectionName": name,
	})
	if err != nil {
		return nil, err
	}

	var stocks []iexModel.CollectionStock
	if err := json.Unmarshal(body, &stocks); err != nil {
		slog.Error("can't unmarshal collection response", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	sort.SliceStable(stocks, func(i, j int) bool {
		return stocks[i].LatestPrice > stocks[j].LatestPrice
	})

	if len(stocks) > collectionLimit {
		stocks = stocks[:collectionLimit]
	}

	entries := make([]iexModel.CollectionEntry, 0, len(stocks))
	for _, stock := range stocks {
		entries = append(entries, iexModel.CollectionEntry{
			Symbol:      stock.Symbol,
			LatestPrice: stock.LatestPrice,
			Change:      stock.Change,
			CompanyName: stock.CompanyName,
		})
	}

	return entries, nil
}

// GetFinancials returns only the first element of the provider's financials
// array. An empty array is ErrNotFound, not a fault.
func (a *IexApi) GetFinancials(ctx context.Context, symbol string) (json.RawMessage, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	body, err := a.get(ctx, "IexApi.GetFinancials", fmt.Sprintf("/stable/stock/%s/financials", symbol), nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Financials []json.RawMessage `json:"financials"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Error("can't unmarshal financials response", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	if len(payload.Financials) == 0 {
		slog.Warn("financials array is empty", slog.String("rqID", rqID), slog.String("symbol", symbol))
		return nil, externalApi.ErrNotFound
	}

	return payload.Financials[0], nil
}

// GetClosingPrices fetches closing prices for the given symbols, keyed by
// the provider's uppercase symbol.
func (a *IexApi) GetClosingPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	body, err := a.get(ctx, "IexApi.GetClosingPrices", "/v1/stock/market/quote/latestprice/batch", map[string]string{
		"symbols": strings.Join(symbols, ","),
		"filter":  "symbol,close",
	})
	if err != nil {
		return nil, err
	}

	var closes []iexModel.BatchClose
	if err := json.Unmarshal(body, &closes); err != nil {
		slog.Error("can't unmarshal batch closes response", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	prices := make(map[string]float64, len(closes))
	for _, c := range closes {
		prices[strings.ToUpper(c.Symbol)] = c.Close
	}

	return prices, nil
}
