// Package report renders settlement ledgers as files for delivery to
// partners.
package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/partnergate/partnergate/internal/backoffice"
	"github.com/partnergate/partnergate/internal/receipt"
)

// Generator produces a balance report file and returns its path. The
// caller owns the file and removes it after delivery.
type Generator interface {
	PartnerBalance(entries []backoffice.BalanceEntry) (string, error)
}

// CSVGenerator writes balance reports as CSV files in the system temp
// directory. Column headings use partner-perspective terminology, so
// debit and credit are swapped relative to the system ledger.
type CSVGenerator struct {
	location *time.Location
}

func NewCSVGenerator(loc *time.Location) *CSVGenerator {
	if loc == nil {
		loc = time.Local
	}
	return &CSVGenerator{location: loc}
}

func (g *CSVGenerator) PartnerBalance(entries []backoffice.BalanceEntry) (string, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("balance-%s.csv", uuid.NewString()))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	debitLabel, creditLabel := receipt.InvertedLedgerLabels()
	header := []string{"Дата", "Фирма", "Валюта", "Начальный остаток", debitLabel, creditLabel, "Конечный остаток"}
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("write report header: %w", err)
	}

	for _, e := range entries {
		row := []string{
			time.Unix(e.Date, 0).In(g.location).Format("02.01.2006"),
			e.Firm.Name,
			e.Currency.Name,
			formatAmount(e.StartAmount),
			// The system's debit is money the partner receives, so it
			// lands under the partner-facing credit heading.
			formatAmount(e.Debit),
			formatAmount(e.Credit),
			formatAmount(e.Closing()),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush report: %w", err)
	}
	return path, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
