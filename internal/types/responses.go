package types

import "time"

// OrderRequest is the payload for placing an order. Quantity and bid
// price arrive as strings straight from the form; trade intake owns
// the parsing so a malformed value is rejected as InvalidInput rather
// than failing JSON binding with an opaque error.
type OrderRequest struct {
	Symbol   string `json:"symbol" binding:"required"`
	Action   string `json:"action" binding:"required"`
	Quantity string `json:"quantity" binding:"required"`
	BidPrice string `json:"bid_price" binding:"required"`
}

// PortfolioResponse is the holdings view rendered for the user.
type PortfolioResponse struct {
	Username  string    `json:"username"`
	Holdings  []Holding `json:"holdings"`
	Timestamp time.Time `json:"timestamp"`
}

// SweepResponse reports the outcome of one settlement sweep.
type SweepResponse struct {
	Changes   int       `json:"changes"`
	Timestamp time.Time `json:"timestamp"`
}
