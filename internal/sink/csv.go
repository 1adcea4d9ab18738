package sink

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"nseoptions/internal/chain"
	apperrors "nseoptions/internal/errors"
)

// CSVSink maintains a session spreadsheet, rewritten in full on every
// cycle so the file always holds the latest chain.
type CSVSink struct {
	path string
}

// NewCSVSink creates a CSV sink writing to path.
func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

// csvRow is the flat spreadsheet layout. Field order is the column
// contract: call metrics ascending, strike, put metrics descending.
type csvRow struct {
	OpenInterestCE      float64 `csv:"openInterest_ce"`
	ChangeInOICE        float64 `csv:"changeinOpenInterest_ce"`
	PChangeInOICE       float64 `csv:"pchangeinOpenInterest_ce"`
	TotalTradedVolumeCE float64 `csv:"totalTradedVolume_ce"`
	ImpliedVolatilityCE float64 `csv:"impliedVolatility_ce"`
	LastPriceCE         float64 `csv:"lastPrice_ce"`
	ChangeCE            float64 `csv:"change_ce"`
	PChangeCE           float64 `csv:"pChange_ce"`
	TotalBuyQuantityCE  float64 `csv:"totalBuyQuantity_ce"`
	TotalSellQuantityCE float64 `csv:"totalSellQuantity_ce"`
	BidQtyCE            float64 `csv:"bidQty_ce"`
	BidPriceCE          float64 `csv:"bidprice_ce"`
	AskQtyCE            float64 `csv:"askQty_ce"`
	AskPriceCE          float64 `csv:"askPrice_ce"`
	StrikePrice         float64 `csv:"strikePrice"`
	AskPricePE          float64 `csv:"askPrice_pe"`
	AskQtyPE            float64 `csv:"askQty_pe"`
	BidPricePE          float64 `csv:"bidprice_pe"`
	BidQtyPE            float64 `csv:"bidQty_pe"`
	TotalSellQuantityPE float64 `csv:"totalSellQuantity_pe"`
	TotalBuyQuantityPE  float64 `csv:"totalBuyQuantity_pe"`
	PChangePE           float64 `csv:"pChange_pe"`
	ChangePE            float64 `csv:"change_pe"`
	LastPricePE         float64 `csv:"lastPrice_pe"`
	ImpliedVolatilityPE float64 `csv:"impliedVolatility_pe"`
	TotalTradedVolumePE float64 `csv:"totalTradedVolume_pe"`
	PChangeInOIPE       float64 `csv:"pchangeinOpenInterest_pe"`
	ChangeInOIPE        float64 `csv:"changeinOpenInterest_pe"`
	OpenInterestPE      float64 `csv:"openInterest_pe"`
}

func newCSVRow(r chain.Row) csvRow {
	return csvRow{
		OpenInterestCE:      r.CE.OpenInterest,
		ChangeInOICE:        r.CE.ChangeInOI,
		PChangeInOICE:       r.CE.PChangeInOI,
		TotalTradedVolumeCE: r.CE.TotalTradedVolume,
		ImpliedVolatilityCE: r.CE.ImpliedVolatility,
		LastPriceCE:         r.CE.LastPrice,
		ChangeCE:            r.CE.Change,
		PChangeCE:           r.CE.PChange,
		TotalBuyQuantityCE:  r.CE.TotalBuyQuantity,
		TotalSellQuantityCE: r.CE.TotalSellQuantity,
		BidQtyCE:            r.CE.BidQty,
		BidPriceCE:          r.CE.BidPrice,
		AskQtyCE:            r.CE.AskQty,
		AskPriceCE:          r.CE.AskPrice,
		StrikePrice:         r.Strike,
		AskPricePE:          r.PE.AskPrice,
		AskQtyPE:            r.PE.AskQty,
		BidPricePE:          r.PE.BidPrice,
		BidQtyPE:            r.PE.BidQty,
		TotalSellQuantityPE: r.PE.TotalSellQuantity,
		TotalBuyQuantityPE:  r.PE.TotalBuyQuantity,
		PChangePE:           r.PE.PChange,
		ChangePE:            r.PE.Change,
		LastPricePE:         r.PE.LastPrice,
		ImpliedVolatilityPE: r.PE.ImpliedVolatility,
		TotalTradedVolumePE: r.PE.TotalTradedVolume,
		PChangeInOIPE:       r.PE.PChangeInOI,
		ChangeInOIPE:        r.PE.ChangeInOI,
		OpenInterestPE:      r.PE.OpenInterest,
	}
}

// Write implements Sink.
func (s *CSVSink) Write(ctx context.Context, rows []chain.Row, m chain.Metrics) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return apperrors.Wrap(err, "creating output directory")
	}

	records := make([]csvRow, 0, len(rows))
	for _, r := range rows {
		records = append(records, newCSVRow(r))
	}

	f, err := os.Create(s.path)
	if err != nil {
		return apperrors.Wrap(err, "creating session file")
	}
	defer f.Close()

	if err := gocsv.Marshal(&records, f); err != nil {
		return apperrors.Wrap(err, "writing session file")
	}
	return nil
}
