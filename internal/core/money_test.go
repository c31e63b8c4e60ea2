package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"4.50", "4.5", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{".5", "0.5", true},
		{"7.", "7", true},
		{" 2.50 ", "2.5", true},
		{"1.005", "1.005", true}, // no rounding
		{"-1", "", false},
		{"+1", "", false},
		{"0", "", false},
		{"0.00", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{".", "", false},
		{"", "", false},
		{"١٢", "", false}, // non-ASCII digits
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
			}
		}
	}
}

func TestSumAmounts(t *testing.T) {
	if got := SumAmounts(nil); !got.IsZero() {
		t.Fatalf("empty sum = %s, want 0", got)
	}

	// 0.1 + 0.2 is the classic float failure
	list := []Expense{
		{Amount: decimal.RequireFromString("0.1")},
		{Amount: decimal.RequireFromString("0.2")},
	}
	if got := SumAmounts(list); !got.Equal(decimal.RequireFromString("0.3")) {
		t.Fatalf("sum = %s, want 0.3", got)
	}

	list = []Expense{
		{Title: "Lunch", Amount: decimal.RequireFromString("12.00"), Date: time.Now()},
		{Title: "Coffee", Amount: decimal.RequireFromString("4.50"), Date: time.Now()},
	}
	if got := SumAmounts(list).StringFixed(2); got != "16.50" {
		t.Fatalf("sum = %s, want 16.50", got)
	}
}

func TestFormatTotal(t *testing.T) {
	got := FormatTotal(IndianRupee, decimal.RequireFromString("16.5"))
	if got != "₹ 16.50" {
		t.Fatalf("FormatTotal = %q", got)
	}
	if got := FormatTotal(USDollar, decimal.Zero); got != "$ 0.00" {
		t.Fatalf("FormatTotal zero = %q", got)
	}
}
