package chain

import "math"

// Window is the symmetric strike band retained around the at-the-money
// strike. Both bounds are inclusive.
type Window struct {
	Multiple int
	ATM      float64
	Low      float64
	High     float64
}

// NewWindow computes the strike window for an underlying value. The ATM
// strike is the underlying rounded to the nearest multiple; exact
// halves round to even, matching NSE's published strike ladder.
func NewWindow(underlying float64, multiple, nstrikes int) Window {
	m := float64(multiple)
	atm := math.RoundToEven(underlying/m) * m
	return Window{
		Multiple: multiple,
		ATM:      atm,
		Low:      atm - float64(nstrikes)*m,
		High:     atm + float64(nstrikes)*m,
	}
}

// Contains reports whether strike lies within the window.
func (w Window) Contains(strike float64) bool {
	return strike >= w.Low && strike <= w.High
}

// DefaultMultiple returns the strike step for a symbol. Index steps
// follow the NSE contract specifications; unrecognized symbols default
// to 50.
func DefaultMultiple(symbol string) int {
	switch symbol {
	case "BANKNIFTY", "NIFTYNXT50":
		return 100
	case "MIDCPNIFTY":
		return 25
	default:
		return 50
	}
}
