package marketdata

import "testing"

func TestParseDateRoundTrip(t *testing.T) {
	d, err := ParseDate("2024-03-15")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if got := d.String(); got != "2024-03-15" {
		t.Fatalf("String() = %q, want 2024-03-15", got)
	}
}

func TestParseDateInvalid(t *testing.T) {
	if _, err := ParseDate("not-a-date"); err == nil {
		t.Fatal("expected error for malformed date")
	}
}

func TestPanelIndexOf(t *testing.T) {
	bars := []PriceBar{
		{Date: NewDate(2024, 1, 2), Open: 10, High: 11, Low: 9, Close: 10, Volume: 100},
		{Date: NewDate(2024, 1, 3), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100},
		{Date: NewDate(2024, 1, 4), Open: 10, High: 11, Low: 9, Close: 11, Volume: 100},
	}
	p := NewPricePanel("ACME", bars)

	idx, ok := p.IndexOf(NewDate(2024, 1, 3))
	if !ok || idx != 1 {
		t.Fatalf("IndexOf(1/3) = (%d, %v), want (1, true)", idx, ok)
	}
	if _, ok := p.IndexOf(NewDate(2024, 1, 10)); ok {
		t.Fatal("IndexOf should miss a date past the panel end")
	}
}

func TestPanelValidateNegativePrice(t *testing.T) {
	bars := []PriceBar{
		{Date: NewDate(2024, 1, 2), Open: -1, High: 11, Low: 9, Close: 10, Volume: 100},
	}
	p := NewPricePanel("ACME", bars)
	if err := p.Validate(); err == nil {
		t.Fatal("expected InputShapeError for negative price")
	}
}

func TestPanelValidateNonMonotonicDates(t *testing.T) {
	bars := []PriceBar{
		{Date: NewDate(2024, 1, 4), Open: 10, High: 11, Low: 9, Close: 10, Volume: 100},
		{Date: NewDate(2024, 1, 2), Open: 10, High: 11, Low: 9, Close: 10, Volume: 100},
	}
	p := NewPricePanel("ACME", bars)
	if err := p.Validate(); err == nil {
		t.Fatal("expected InputShapeError for non-monotonic dates")
	}
}

func TestPanelValidateHighLowInconsistent(t *testing.T) {
	bars := []PriceBar{
		{Date: NewDate(2024, 1, 2), Open: 10, High: 9, Low: 9, Close: 10, Volume: 100},
	}
	p := NewPricePanel("ACME", bars)
	if err := p.Validate(); err == nil {
		t.Fatal("expected InputShapeError for high < close")
	}
}

func TestUnionDates(t *testing.T) {
	a := NewPricePanel("A", []PriceBar{
		{Date: NewDate(2024, 1, 2), Close: 1, High: 1, Low: 1},
		{Date: NewDate(2024, 1, 4), Close: 1, High: 1, Low: 1},
	})
	b := NewPricePanel("B", []PriceBar{
		{Date: NewDate(2024, 1, 3), Close: 1, High: 1, Low: 1},
		{Date: NewDate(2024, 1, 4), Close: 1, High: 1, Low: 1},
	})
	dates := UnionDates(map[string]*PricePanel{"A": a, "B": b})
	if len(dates) != 3 {
		t.Fatalf("len(UnionDates) = %d, want 3", len(dates))
	}
	for i := 1; i < len(dates); i++ {
		if !dates[i-1].Before(dates[i]) {
			t.Fatalf("UnionDates not sorted at %d", i)
		}
	}
}
