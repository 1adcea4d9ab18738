package utils

import (
	"testing"
	"time"
)

func TestFormatIndianCurrency(t *testing.T) {
	tests := []struct {
		amount float64
		want   string
	}{
		{0, "₹0.00"},
		{999, "₹999.00"},
		{24837, "₹24,837.00"},
		{2483750.5, "₹24,83,750.50"},
		{123456789, "₹12,34,56,789.00"},
		{-24850, "-₹24,850.00"},
	}
	for _, tt := range tests {
		if got := FormatIndianCurrency(tt.amount); got != tt.want {
			t.Errorf("FormatIndianCurrency(%v) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestFormatCompact(t *testing.T) {
	tests := []struct {
		value float64
		want  string
	}{
		{0, "0"},
		{950, "950"},
		{1500, "1.5K"},
		{250000, "2.50L"},
		{35000000, "3.50Cr"},
		{-250000, "-2.50L"},
	}
	for _, tt := range tests {
		if got := FormatCompact(tt.value); got != tt.want {
			t.Errorf("FormatCompact(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestMarketStatusAt(t *testing.T) {
	day := func(hour, min int) time.Time {
		// A Wednesday.
		return time.Date(2026, 8, 26, hour, min, 0, 0, IndiaLocation)
	}
	tests := []struct {
		name string
		at   time.Time
		want MarketStatus
	}{
		{"before pre-open", day(8, 59), MarketClosed},
		{"pre-open start", day(9, 0), MarketPreOpen},
		{"session start", day(9, 15), MarketOpen},
		{"mid session", day(12, 30), MarketOpen},
		{"session close", day(15, 30), MarketClosed},
		{"evening", day(18, 0), MarketClosed},
		{"saturday", time.Date(2026, 8, 29, 12, 0, 0, 0, IndiaLocation), MarketClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MarketStatusAt(tt.at); got != tt.want {
				t.Errorf("MarketStatusAt = %v, want %v", got, tt.want)
			}
		})
	}
}
