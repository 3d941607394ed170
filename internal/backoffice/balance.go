package backoffice

import (
	"context"
	"log/slog"
	"sync"
)

// ListFirms fetches all firms.
func (c *Client) ListFirms(ctx context.Context, token string) ([]Ref, error) {
	var firms []Ref
	if err := c.call(ctx, token, "Firm/Get", map[string]any{}, &firms); err != nil {
		return nil, err
	}
	return firms, nil
}

// ListCurrencies fetches all currencies.
func (c *Client) ListCurrencies(ctx context.Context, token string) ([]Ref, error) {
	var currencies []Ref
	if err := c.call(ctx, token, "Currency/Get", map[string]any{}, &currencies); err != nil {
		return nil, err
	}
	return currencies, nil
}

// GetPartnerBalance fetches the settlement ledger of one partner for
// one firm and currency pair over the given unix time window.
func (c *Client) GetPartnerBalance(ctx context.Context, token string, partnerID, firmID, currencyID, startDate, endDate int64) ([]BalanceEntry, error) {
	payload := map[string]any{
		"partner_id":  partnerID,
		"firm_id":     firmID,
		"currency_id": currencyID,
		"start_date":  startDate,
		"end_date":    endDate,
	}
	var entries []BalanceEntry
	if err := c.call(ctx, token, "PartnerBalance/Get", payload, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// CollectPartnerBalances fans out one ledger request per firm×currency
// pair concurrently and returns every entry that came back. Failed
// pairs are skipped so one broken combination does not lose the rest.
func (c *Client) CollectPartnerBalances(ctx context.Context, token string, partnerID int64, firms, currencies []Ref, startDate, endDate int64) []BalanceEntry {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		entries []BalanceEntry
	)
	for _, firm := range firms {
		for _, currency := range currencies {
			wg.Add(1)
			go func(firmID, currencyID int64) {
				defer wg.Done()
				got, err := c.GetPartnerBalance(ctx, token, partnerID, firmID, currencyID, startDate, endDate)
				if err != nil {
					c.log.Warn("partner balance fetch failed",
						slog.Int64("partner_id", partnerID),
						slog.Int64("firm_id", firmID),
						slog.Int64("currency_id", currencyID),
						slog.String("error", err.Error()))
					return
				}
				mu.Lock()
				entries = append(entries, got...)
				mu.Unlock()
			}(firm.ID, currency.ID)
		}
	}
	wg.Wait()
	return entries
}
