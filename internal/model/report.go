package model

import "github.com/shopspring/decimal"

type PortfolioReportRow struct {
	Ticker string
	Shares decimal.Decimal
	Price  decimal.Decimal
	Value  decimal.Decimal
}

type PortfolioReport struct {
	Username string
	Cash     decimal.Decimal
	Rows     []PortfolioReportRow
	Total    decimal.Decimal
}
