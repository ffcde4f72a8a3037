package gateway

import (
	"math/big"
	"testing"
)

func TestFormatUnits(t *testing.T) {
	cases := []struct {
		in       string
		decimals int
		want     string
	}{
		{"0", 18, "0"},
		{"1000000000000000000", 18, "1"},
		{"1500000000000000000", 18, "1.5"},
		{"1", 18, "0.000000000000000001"},
		{"123450000000000000000", 18, "123.45"},
		{"-2500000000000000000", 18, "-2.5"},
		{"42", 0, "42"},
		{"1050", 2, "10.5"},
	}
	for _, c := range cases {
		v, ok := new(big.Int).SetString(c.in, 10)
		if !ok {
			t.Fatalf("bad case input %q", c.in)
		}
		if got := FormatUnits(v, c.decimals); got != c.want {
			t.Errorf("FormatUnits(%s, %d) = %q, want %q", c.in, c.decimals, got, c.want)
		}
	}
}

func TestParseUnits(t *testing.T) {
	cases := []struct {
		in       string
		decimals int
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"1.5", 18, "1500000000000000000"},
		{"0.000000000000000001", 18, "1"},
		{"-2.5", 18, "-2500000000000000000"},
		{"10.5", 2, "1050"},
		{".5", 2, "50"},
	}
	for _, c := range cases {
		got, err := ParseUnits(c.in, c.decimals)
		if err != nil {
			t.Errorf("ParseUnits(%q, %d): %v", c.in, c.decimals, err)
			continue
		}
		if got.String() != c.want {
			t.Errorf("ParseUnits(%q, %d) = %s, want %s", c.in, c.decimals, got, c.want)
		}
	}
}

func TestParseUnitsRejectsExcessPrecision(t *testing.T) {
	if _, err := ParseUnits("1.555", 2); err == nil {
		t.Fatal("expected error for more fractional digits than the ledger precision")
	}
	if _, err := ParseUnits("", 18); err == nil {
		t.Fatal("expected error for empty amount")
	}
	if _, err := ParseUnits("abc", 18); err == nil {
		t.Fatal("expected error for non-numeric amount")
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	v, _ := new(big.Int).SetString("123456789000000000000", 10)
	s := FormatUnits(v, 18)
	back, err := ParseUnits(s, 18)
	if err != nil {
		t.Fatalf("ParseUnits(%q): %v", s, err)
	}
	if back.Cmp(v) != 0 {
		t.Fatalf("round trip %s -> %s -> %s", v, s, back)
	}
}

func TestTrimDecimals(t *testing.T) {
	cases := []struct {
		in     string
		places int
		want   string
	}{
		{"1.23456789", 4, "1.2345"},
		{"1.2", 4, "1.2"},
		{"100", 2, "100"},
		{"1.2000009", 4, "1.2"},
		{"0.0000001", 4, "0"},
	}
	for _, c := range cases {
		if got := TrimDecimals(c.in, c.places); got != c.want {
			t.Errorf("TrimDecimals(%q, %d) = %q, want %q", c.in, c.places, got, c.want)
		}
	}
}
