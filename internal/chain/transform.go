package chain

import (
	"encoding/json"
	"sort"
	"strconv"

	apperrors "nseoptions/internal/errors"
)

// Options parameterize a single Transform call.
type Options struct {
	Symbol   string
	Expiry   string // exact NSE textual format, e.g. "26-Aug-2026"
	NStrikes int    // strikes retained on each side of ATM
	Multiple int    // strike step; 0 selects DefaultMultiple(Symbol)
}

// Ratio is a put-call ratio that may be indeterminate. Valid is false
// when the call-side denominator was zero; the value is then never
// Inf or NaN, it simply does not exist.
type Ratio struct {
	Value float64
	Valid bool
}

// MarshalJSON renders an indeterminate ratio as null.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON accepts null as indeterminate.
func (r *Ratio) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = Ratio{}
		return nil
	}
	if err := json.Unmarshal(data, &r.Value); err != nil {
		return err
	}
	r.Valid = true
	return nil
}

func (r Ratio) String() string {
	if !r.Valid {
		return "n/a"
	}
	return strconv.FormatFloat(r.Value, 'f', 2, 64)
}

func newRatio(num, den float64) Ratio {
	if den == 0 {
		return Ratio{}
	}
	return Ratio{Value: num / den, Valid: true}
}

// Metrics bundles the aggregate figures of one transformed snapshot.
type Metrics struct {
	Symbol     string  `json:"symbol"`
	Expiry     string  `json:"expiry"`
	Timestamp  string  `json:"timestamp"`
	Underlying float64 `json:"underlyingValue"`
	ATM        float64 `json:"atmStrike"`
	LowStrike  float64 `json:"lowStrike"`
	HighStrike float64 `json:"highStrike"`

	// Whole-expiry totals, trusted from the payload's filtered block
	// when present.
	TotOICE  float64 `json:"totOICE"`
	TotOIPE  float64 `json:"totOIPE"`
	TotVolCE float64 `json:"totVolCE"`
	TotVolPE float64 `json:"totVolPE"`

	// Near-window sums over the expiry+window filtered sides.
	NearOICE  float64 `json:"nearOICE"`
	NearOIPE  float64 `json:"nearOIPE"`
	NearVolCE float64 `json:"nearVolCE"`
	NearVolPE float64 `json:"nearVolPE"`

	PCR     Ratio `json:"putCallRatio"`
	NearPCR Ratio `json:"nearPutCallRatio"`
}

// Transform filters a raw option-chain payload to one expiry and a
// symmetric strike window around ATM, joins call and put quotes by
// strike, and computes the aggregate metrics.
//
// Transform is pure: it performs no I/O, does not mutate p, and calling
// it repeatedly with the same inputs yields identical results. Strikes
// present on only one side are dropped from the table; a duplicate
// strike on one side within the filtered slice is malformed input and
// fails with a DataShapeError.
func Transform(p *Payload, opts Options) ([]Row, Metrics, error) {
	if opts.NStrikes < 0 {
		return nil, Metrics{}, apperrors.NewValidationError("nstrikes", opts.NStrikes, "must be non-negative")
	}
	multiple := opts.Multiple
	if multiple <= 0 {
		multiple = DefaultMultiple(opts.Symbol)
	}

	w := NewWindow(p.Records.UnderlyingValue, multiple, opts.NStrikes)
	m := Metrics{
		Symbol:     opts.Symbol,
		Expiry:     opts.Expiry,
		Timestamp:  p.Records.Timestamp,
		Underlying: p.Records.UnderlyingValue,
		ATM:        w.ATM,
		LowStrike:  w.Low,
		HighStrike: w.High,
	}

	// Whole-expiry totals come from NSE's own filtered block. Older
	// API shapes lack it; then they are recomputed from the records
	// filtered by expiry only, before the strike window narrows them.
	if p.Filtered != nil {
		m.TotOICE, m.TotVolCE = p.Filtered.CE.TotOI, p.Filtered.CE.TotVol
		m.TotOIPE, m.TotVolPE = p.Filtered.PE.TotOI, p.Filtered.PE.TotVol
	} else {
		for i := range p.Records.Data {
			rec := &p.Records.Data[i]
			if q := rec.CE; q != nil && q.ExpiryDate == opts.Expiry {
				m.TotOICE += q.OpenInterest
				m.TotVolCE += q.TotalTradedVolume
			}
			if q := rec.PE; q != nil && q.ExpiryDate == opts.Expiry {
				m.TotOIPE += q.OpenInterest
				m.TotVolPE += q.TotalTradedVolume
			}
		}
	}

	ceByStrike := make(map[float64]*Quote)
	peByStrike := make(map[float64]*Quote)
	for i := range p.Records.Data {
		rec := &p.Records.Data[i]
		if q := rec.CE; q != nil && q.ExpiryDate == opts.Expiry && w.Contains(q.StrikePrice) {
			if _, dup := ceByStrike[q.StrikePrice]; dup {
				return nil, Metrics{}, apperrors.NewDataShapeError("CE", q.StrikePrice, "duplicate strike for instrument side")
			}
			ceByStrike[q.StrikePrice] = q
			m.NearOICE += q.OpenInterest
			m.NearVolCE += q.TotalTradedVolume
		}
		if q := rec.PE; q != nil && q.ExpiryDate == opts.Expiry && w.Contains(q.StrikePrice) {
			if _, dup := peByStrike[q.StrikePrice]; dup {
				return nil, Metrics{}, apperrors.NewDataShapeError("PE", q.StrikePrice, "duplicate strike for instrument side")
			}
			peByStrike[q.StrikePrice] = q
			m.NearOIPE += q.OpenInterest
			m.NearVolPE += q.TotalTradedVolume
		}
	}

	// Inner join on strike, ascending.
	strikes := make([]float64, 0, len(ceByStrike))
	for strike := range ceByStrike {
		if _, ok := peByStrike[strike]; ok {
			strikes = append(strikes, strike)
		}
	}
	sort.Float64s(strikes)

	rows := make([]Row, 0, len(strikes))
	for _, strike := range strikes {
		rows = append(rows, Row{
			Strike: strike,
			CE:     legFromQuote(ceByStrike[strike]),
			PE:     legFromQuote(peByStrike[strike]),
		})
	}

	m.PCR = newRatio(m.TotOIPE, m.TotOICE)
	m.NearPCR = newRatio(m.NearOIPE, m.NearOICE)

	return rows, m, nil
}
