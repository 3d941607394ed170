package backoffice

import (
	"encoding/json"
	"testing"
)

func TestFlexStringAcceptsStringAndNumber(t *testing.T) {
	t.Parallel()

	var p Partner
	if err := json.Unmarshal([]byte(`{"id":1,"oked":"123456"}`), &p); err != nil {
		t.Fatalf("unmarshal string oked: %v", err)
	}
	if p.Oked != "123456" {
		t.Fatalf("Oked = %q, want 123456", p.Oked)
	}

	if err := json.Unmarshal([]byte(`{"id":1,"oked":987654}`), &p); err != nil {
		t.Fatalf("unmarshal numeric oked: %v", err)
	}
	if p.Oked != "987654" {
		t.Fatalf("Oked = %q, want 987654", p.Oked)
	}

	if err := json.Unmarshal([]byte(`{"id":1,"oked":null}`), &p); err != nil {
		t.Fatalf("unmarshal null oked: %v", err)
	}
	if p.Oked != "" {
		t.Fatalf("Oked = %q, want empty for null", p.Oked)
	}
}

func TestPartnerChatID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		oked   string
		wantID int64
		wantOK bool
	}{
		{"100500", 100500, true},
		{" 42 ", 42, true},
		{"-1001234", -1001234, true},
		{"", 0, false},
		{"manager notes", 0, false},
		{"12.5", 0, false},
	}
	for _, tc := range cases {
		p := Partner{Oked: FlexString(tc.oked)}
		id, ok := p.ChatID()
		if id != tc.wantID || ok != tc.wantOK {
			t.Fatalf("ChatID(%q) = (%d, %v), want (%d, %v)", tc.oked, id, ok, tc.wantID, tc.wantOK)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"+998 90 123-45-67", "998901234567"},
		{"(90) 123 45 67", "901234567"},
		{"998901234567", "998901234567"},
		{"+", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFlexFloatAcceptsString(t *testing.T) {
	t.Parallel()

	var p Payment
	if err := json.Unmarshal([]byte(`{"exchange_rate":"12650.55"}`), &p); err != nil {
		t.Fatalf("unmarshal string rate: %v", err)
	}
	if float64(p.ExchangeRate) != 12650.55 {
		t.Fatalf("ExchangeRate = %v, want 12650.55", p.ExchangeRate)
	}

	if err := json.Unmarshal([]byte(`{"exchange_rate":"not a rate"}`), &p); err != nil {
		t.Fatalf("unmarshal junk rate: %v", err)
	}
	if float64(p.ExchangeRate) != 0 {
		t.Fatalf("ExchangeRate = %v, want 0 for junk input", p.ExchangeRate)
	}
}

func TestBalanceEntryClosing(t *testing.T) {
	t.Parallel()

	e := BalanceEntry{StartAmount: 50, Debit: 20, Credit: 100}
	if got := e.Closing(); got != -30 {
		t.Fatalf("Closing() = %v, want -30", got)
	}
}

func TestDocumentWarehouseID(t *testing.T) {
	t.Parallel()

	d := Document{Stock: &Ref{ID: 7}, StockID: 3}
	if got := d.WarehouseID(); got != 7 {
		t.Fatalf("WarehouseID() = %d, want stock object id 7", got)
	}
	d = Document{StockID: 3}
	if got := d.WarehouseID(); got != 3 {
		t.Fatalf("WarehouseID() = %d, want fallback 3", got)
	}
}
