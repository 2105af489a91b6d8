package model

import (
	"github.com/shopspring/decimal"
)

// User is the aggregate root. Holdings, watchlists and history points live
// inside the user document and have no existence outside it. Sub-entities
// are addressed by their own id, unique within the owning user.
type User struct {
	ID                       string                 `json:"id"`
	Username                 string                 `json:"username"`
	Password                 string                 `json:"-"`
	Cash                     decimal.Decimal        `json:"cash"`
	Portfolio                []Holding              `json:"portfolio"`
	Lists                    []Watchlist            `json:"lists"`
	HistoricalPortfolioValue []HistoricalValuePoint `json:"historicalPortfolioValue"`
}

type Holding struct {
	ID     string          `json:"id"`
	Ticker string          `json:"ticker"`
	Shares decimal.Decimal `json:"shares"`
}

type Watchlist struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Stocks []string `json:"stocks"`
}

type HistoricalValuePoint struct {
	Date  string          `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// HoldingByID returns the index of the holding with the given id, -1 if absent.
func (u *User) HoldingByID(id string) int {
	for i := range u.Portfolio {
		if u.Portfolio[i].ID == id {
			return i
		}
	}
	return -1
}

// ListByID returns the index of the watchlist with the given id, -1 if absent.
func (u *User) ListByID(id string) int {
	for i := range u.Lists {
		if u.Lists[i].ID == id {
			return i
		}
	}
	return -1
}
