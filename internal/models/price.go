package models

// Price kinds, looked up by name in the prices table. chat_input, chat_output
// and document are per-10000-unit rates; search is a flat per-call price.
const (
	PriceChatInput  = "chat_input"
	PriceChatOutput = "chat_output"
	PriceDocument   = "document"
	PriceSearch     = "search"
)

// Price is one row of the billing rate table.
type Price struct {
	Name  string  `json:"name" db:"name"`
	Value float64 `json:"value" db:"value"`
}

// UpsertPriceRequest is the body for the admin price endpoint
type UpsertPriceRequest struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}
