package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func testRates() Rates {
	return Rates{
		"GBP": decimal.NewFromInt(1),
		"EUR": decimal.RequireFromString("1.18"),
		"USD": decimal.RequireFromString("1.31"),
	}
}

func TestConvert(t *testing.T) {
	cases := []struct {
		amount   string
		from, to string
		want     string
	}{
		{"850", "EUR", "GBP", "720.34"},
		{"100", "GBP", "USD", "131.00"},
		{"49.99", "USD", "GBP", "38.16"},
		{"100", "EUR", "USD", "111.02"},
	}
	for _, tc := range cases {
		got, err := Convert(decimal.RequireFromString(tc.amount), tc.from, tc.to, testRates())
		if err != nil {
			t.Fatalf("%s %s->%s: %v", tc.amount, tc.from, tc.to, err)
		}
		if MoneyString(RoundMoney(got)) != tc.want {
			t.Fatalf("%s %s->%s: expected %s, got %s", tc.amount, tc.from, tc.to, tc.want, got)
		}
	}
}

func TestConvertIdentity(t *testing.T) {
	amount := decimal.RequireFromString("123.456789")
	// identical codes bypass the table entirely
	got, err := Convert(amount, "JPY", "JPY", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(amount) {
		t.Fatalf("expected %s unchanged, got %s", amount, got)
	}
}

func TestConvertMissingRate(t *testing.T) {
	rates := testRates()
	rates["CHF"] = decimal.Zero
	for _, pair := range [][2]string{{"JPY", "GBP"}, {"GBP", "JPY"}, {"CHF", "GBP"}} {
		_, err := Convert(decimal.NewFromInt(10), pair[0], pair[1], rates)
		if !errors.Is(err, ErrConversion) {
			t.Fatalf("%s->%s: expected conversion error, got %v", pair[0], pair[1], err)
		}
		var ce *ConversionError
		if !errors.As(err, &ce) || ce.From != pair[0] || ce.To != pair[1] {
			t.Fatalf("unexpected error detail %#v", err)
		}
	}
}

func TestConvertRoundTrip(t *testing.T) {
	tolerance := decimal.RequireFromString("0.000000001")
	for _, start := range []string{"0.01", "100", "98765.43"} {
		amount := decimal.RequireFromString(start)
		there, err := Convert(amount, "EUR", "USD", testRates())
		if err != nil {
			t.Fatal(err)
		}
		back, err := Convert(there, "USD", "EUR", testRates())
		if err != nil {
			t.Fatal(err)
		}
		if back.Sub(amount).Abs().GreaterThan(tolerance) {
			t.Fatalf("round trip drifted: %s -> %s", amount, back)
		}
	}
}

func TestRatesFrom(t *testing.T) {
	rates := RatesFrom([]Currency{
		{Code: "GBP", Rate: decimal.NewFromInt(1)},
		{Code: "EUR", Rate: decimal.RequireFromString("1.18")},
	})
	if len(rates) != 2 || !rates["EUR"].Equal(decimal.RequireFromString("1.18")) {
		t.Fatalf("unexpected table %v", rates)
	}
}

func TestFormatAmount(t *testing.T) {
	currencies := []Currency{
		{Code: "GBP", Symbol: "£"},
		{Code: "EUR", Symbol: "€"},
	}
	cases := []struct {
		amount string
		code   string
		want   string
	}{
		{"850", "EUR", "€850.00"},
		{"142.5", "GBP", "£142.50"},
		{"12.345", "GBP", "£12.35"},
		{"7", "JPY", "JPY 7.00"},
	}
	for _, tc := range cases {
		if got := FormatAmount(decimal.RequireFromString(tc.amount), tc.code, currencies); got != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, got)
		}
	}
}
