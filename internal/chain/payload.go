// Package chain normalizes NSE option-chain payloads into a flat
// strike-indexed table paired by call and put side.
package chain

// Quote is one instrument side (CE or PE) of an option-chain record as
// served by the NSE API. Tags follow the wire names exactly, including
// the lowercase "bidprice".
type Quote struct {
	StrikePrice       float64 `json:"strikePrice"`
	ExpiryDate        string  `json:"expiryDate"`
	Underlying        string  `json:"underlying"`
	Identifier        string  `json:"identifier"`
	OpenInterest      float64 `json:"openInterest"`
	ChangeInOI        float64 `json:"changeinOpenInterest"`
	PChangeInOI       float64 `json:"pchangeinOpenInterest"`
	TotalTradedVolume float64 `json:"totalTradedVolume"`
	ImpliedVolatility float64 `json:"impliedVolatility"`
	LastPrice         float64 `json:"lastPrice"`
	Change            float64 `json:"change"`
	PChange           float64 `json:"pChange"`
	TotalBuyQuantity  float64 `json:"totalBuyQuantity"`
	TotalSellQuantity float64 `json:"totalSellQuantity"`
	BidQty            float64 `json:"bidQty"`
	BidPrice          float64 `json:"bidprice"`
	AskQty            float64 `json:"askQty"`
	AskPrice          float64 `json:"askPrice"`
	UnderlyingValue   float64 `json:"underlyingValue"`
}

// Record is one entry of records.data: a strike/expiry container
// carrying one or both instrument sides. A record with neither side is
// discarded during the transform.
type Record struct {
	StrikePrice float64 `json:"strikePrice"`
	ExpiryDate  string  `json:"expiryDate"`
	CE          *Quote  `json:"CE,omitempty"`
	PE          *Quote  `json:"PE,omitempty"`
}

// SideTotals holds the whole-expiry aggregates precomputed by NSE.
// They are trusted as-is when present; the transform only recomputes
// the near-strike variants.
type SideTotals struct {
	TotOI  float64 `json:"totOI"`
	TotVol float64 `json:"totVol"`
}

// Records is the records block of the response.
type Records struct {
	ExpiryDates     []string  `json:"expiryDates"`
	Data            []Record  `json:"data"`
	Timestamp       string    `json:"timestamp"`
	UnderlyingValue float64   `json:"underlyingValue"`
	StrikePrices    []float64 `json:"strikePrices"`
}

// Filtered is the expiry-filtered block of the response. Older API
// shapes omit it entirely.
type Filtered struct {
	Data []Record   `json:"data"`
	CE   SideTotals `json:"CE"`
	PE   SideTotals `json:"PE"`
}

// Payload is the full option-chain response for one symbol.
type Payload struct {
	Records  Records   `json:"records"`
	Filtered *Filtered `json:"filtered,omitempty"`
}
