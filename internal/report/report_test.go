package report

import (
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/partnergate/partnergate/internal/backoffice"
)

func TestPartnerBalanceCSV(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("UTC")
	require.NoError(t, err)

	gen := NewCSVGenerator(loc)
	entries := []backoffice.BalanceEntry{
		{
			Date:        time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC).Unix(),
			Firm:        backoffice.Ref{ID: 1, Name: "Фирма А"},
			Currency:    backoffice.Ref{ID: 2, Name: "UZS"},
			StartAmount: 100,
			Debit:       50,
			Credit:      200,
		},
	}

	path, err := gen.PartnerBalance(entries)
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, []string{"Дата", "Фирма", "Валюта", "Начальный остаток", "Кредит", "Дебет", "Конечный остаток"}, rows[0])
	require.Equal(t, []string{"15.03.2026", "Фирма А", "UZS", "100.00", "50.00", "200.00", "-50.00"}, rows[1])
}

func TestPartnerBalanceEmptyEntries(t *testing.T) {
	t.Parallel()

	gen := NewCSVGenerator(nil)
	path, err := gen.PartnerBalance(nil)
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(path) })

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
