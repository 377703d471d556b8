package domain

// BitcoinRate is the current exchange price of BTC in a fiat currency.
type BitcoinRate struct {
	Rate     float64 `json:"rate"`
	Currency string  `json:"currency"`
}

// TickerResponse is the wire shape of the rate endpoint: a JSON object keyed
// by currency code, e.g. {"USD": {"last": 45000.0, "symbol": "$"}}.
type TickerResponse map[string]CurrencyTicker

// CurrencyTicker is one currency entry of the ticker payload.
type CurrencyTicker struct {
	Last   float64 `json:"last"`
	Symbol string  `json:"symbol"`
}
