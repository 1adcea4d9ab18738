package chain

// Leg holds the fourteen per-side metrics of a joined chain row.
type Leg struct {
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
}

func legFromQuote(q *Quote) Leg {
	return Leg{
		OpenInterest:      q.OpenInterest,
		ChangeInOI:        q.ChangeInOI,
		PChangeInOI:       q.PChangeInOI,
		TotalTradedVolume: q.TotalTradedVolume,
		ImpliedVolatility: q.ImpliedVolatility,
		LastPrice:         q.LastPrice,
		Change:            q.Change,
		PChange:           q.PChange,
		TotalBuyQuantity:  q.TotalBuyQuantity,
		TotalSellQuantity: q.TotalSellQuantity,
		BidQty:            q.BidQty,
		BidPrice:          q.BidPrice,
		AskQty:            q.AskQty,
		AskPrice:          q.AskPrice,
	}
}

func (l Leg) values() []float64 {
	return []float64{
		l.OpenInterest,
		l.ChangeInOI,
		l.PChangeInOI,
		l.TotalTradedVolume,
		l.ImpliedVolatility,
		l.LastPrice,
		l.Change,
		l.PChange,
		l.TotalBuyQuantity,
		l.TotalSellQuantity,
		l.BidQty,
		l.BidPrice,
		l.AskQty,
		l.AskPrice,
	}
}

// Row is one output row of the flat chain table: a strike that had
// both a call and a put record inside the expiry and strike window.
type Row struct {
	Strike float64 `json:"strikePrice"`
	CE     Leg     `json:"ce"`
	PE     Leg     `json:"pe"`
}

// metricColumns is the canonical per-side metric order. The flat table
// mirrors it: call metrics ascending, strike, put metrics descending,
// matching the exchange's own option-chain layout.
var metricColumns = [...]string{
	"openInterest",
	"changeinOpenInterest",
	"pchangeinOpenInterest",
	"totalTradedVolume",
	"impliedVolatility",
	"lastPrice",
	"change",
	"pChange",
	"totalBuyQuantity",
	"totalSellQuantity",
	"bidQty",
	"bidprice",
	"askQty",
	"askPrice",
}

// Columns returns the flat table header: the fourteen call metrics
// suffixed _ce in canonical order, then strikePrice, then the fourteen
// put metrics suffixed _pe in reverse canonical order.
func Columns() []string {
	cols := make([]string, 0, 2*len(metricColumns)+1)
	for _, m := range metricColumns {
		cols = append(cols, m+"_ce")
	}
	cols = append(cols, "strikePrice")
	for i := len(metricColumns) - 1; i >= 0; i-- {
		cols = append(cols, metricColumns[i]+"_pe")
	}
	return cols
}

// Values returns the row's numbers in Columns() order.
func (r Row) Values() []float64 {
	ce := r.CE.values()
	pe := r.PE.values()
	out := make([]float64, 0, len(ce)+len(pe)+1)
	out = append(out, ce...)
	out = append(out, r.Strike)
	for i := len(pe) - 1; i >= 0; i-- {
		out = append(out, pe[i])
	}
	return out
}
