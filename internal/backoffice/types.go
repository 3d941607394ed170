package backoffice

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexString decodes a JSON field that the back office serves either as
// a string or as a bare number.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// FlexFloat decodes a numeric field that may arrive as a string.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

// Ref is a named back office entity reference.
type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Partner is a counterparty record. The oked field is repurposed to
// hold the partner's messenger chat id as free-form text.
type Partner struct {
	ID       int64      `json:"id"`
	Name     string     `json:"name"`
	FullName string     `json:"fullName"`
	Phones   string     `json:"phones"`
	Oked     FlexString `json:"oked"`
}

// ChatID parses the chat id stored in the oked field. ok is false when
// the field is empty or not a number.
func (p Partner) ChatID() (int64, bool) {
	s := strings.TrimSpace(p.Oked.String())
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Document is a trade document (shipment, purchase or a return).
type Document struct {
	ID      int64    `json:"id"`
	Code    string   `json:"code"`
	Date    int64    `json:"date"`
	Total   float64  `json:"total"`
	Partner *Partner `json:"partner"`
	Stock   *Ref     `json:"stock"`
	StockID int64    `json:"stock_id"`
}

// WarehouseID returns the stock id from either of the two places the
// back office puts it.
func (d Document) WarehouseID() int64 {
	if d.Stock != nil && d.Stock.ID != 0 {
		return d.Stock.ID
	}
	return d.StockID
}

// Operation is a single item line of a trade document.
type Operation struct {
	Item        Ref     `json:"item"`
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	Cost        float64 `json:"cost"`
	Description string  `json:"description"`
}

// PaymentCategory carries the payment direction flag.
type PaymentCategory struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Positive bool   `json:"positive"`
}

// Payment is a money movement document.
type Payment struct {
	ID           int64            `json:"id"`
	Code         string           `json:"code"`
	Date         int64            `json:"date"`
	Amount       float64          `json:"amount"`
	Type         *Ref             `json:"type"`
	Currency     *Ref             `json:"currency"`
	ExchangeRate FlexFloat        `json:"exchange_rate"`
	Category     *PaymentCategory `json:"category"`
	Description  string           `json:"description"`
	Partner      *Partner         `json:"partner"`
	Stock        *Ref             `json:"stock"`
	StockID      int64            `json:"stock_id"`
}

func (p Payment) WarehouseID() int64 {
	if p.Stock != nil && p.Stock.ID != 0 {
		return p.Stock.ID
	}
	return p.StockID
}

// BalanceEntry is one row of a partner's mutual settlement ledger for a
// firm and currency pair.
type BalanceEntry struct {
	Firm        Ref     `json:"firm"`
	Currency    Ref     `json:"currency"`
	Date        int64   `json:"date"`
	StartAmount float64 `json:"start_amount"`
	Debit       float64 `json:"debit"`
	Credit      float64 `json:"credit"`
}

// Closing is the balance after applying the entry's turnover to its
// opening amount.
func (e BalanceEntry) Closing() float64 {
	return e.StartAmount + e.Debit - e.Credit
}

// NormalizePhone strips formatting characters and the leading plus so
// numbers stored in different styles compare equal.
func NormalizePhone(phone string) string {
	r := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	return strings.TrimLeft(r.Replace(phone), "+")
}
