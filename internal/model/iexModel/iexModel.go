package iexModel

// Provider payloads. Only the operations that get reshaped have typed
// models; pass-through operations hand the raw JSON body to the caller.

type ChartPoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// ChartEntry is a chart point reduced for the frontend graph: name carries
// the "MM-DD" part of the provider date.
type ChartEntry struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type CollectionStock struct {
	Symbol      string  `json:"symbol"`
	CompanyName string  `json:"companyName"`
	LatestPrice float64 `json:"latestPrice"`
	Change      float64 `json:"change"`
}

type MostActiveEntry struct {
	Symbol      string  `json:"symbol"`
	LatestPrice float64 `json:"latestPrice"`
	Change      float64 `json:"change"`
}

type CollectionEntry struct {
	Symbol      string  `json:"symbol"`
	LatestPrice float64 `json:"latestPrice"`
	Change      float64 `json:"change"`
	CompanyName string  `json:"companyName"`
}

type BatchClose struct {
	Symbol string  `json:"symbol"`
	Close  float64 `json:"close"`
}
