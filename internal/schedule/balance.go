package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/partnergate/partnergate/internal/backoffice"
	"github.com/partnergate/partnergate/internal/receipt"
	"github.com/partnergate/partnergate/internal/report"
)

// balanceWindow is how far back the settlement ledger is read.
const balanceWindow = 30 * 24 * time.Hour

// TenantCredentials is what the balance task needs to act on behalf of
// a tenant.
type TenantCredentials struct {
	TelegramToken    string
	IntegrationToken string
	Language         string
}

// CredentialSource resolves a tenant id to its live credentials.
type CredentialSource interface {
	Credentials(ctx context.Context, tenantID int64) (TenantCredentials, bool, error)
}

// BalanceOffice is the back office read surface of the balance task.
type BalanceOffice interface {
	ListPartners(ctx context.Context, token string) ([]backoffice.Partner, error)
	ListFirms(ctx context.Context, token string) ([]backoffice.Ref, error)
	ListCurrencies(ctx context.Context, token string) ([]backoffice.Ref, error)
	CollectPartnerBalances(ctx context.Context, token string, partnerID int64, firms, currencies []backoffice.Ref, startDate, endDate int64) []backoffice.BalanceEntry
}

// FileSender delivers messages and files to chats.
type FileSender interface {
	SendText(ctx context.Context, token string, chatID int64, text string, markup any) error
	SendFile(ctx context.Context, token string, chatID int64, path, caption string) error
}

// BalanceAlertTask notifies linked partners whose settlement balance
// went negative, attaching a detailed ledger report.
type BalanceAlertTask struct {
	log         *slog.Logger
	credentials CredentialSource
	office      BalanceOffice
	sender      FileSender
	reports     report.Generator
	now         func() time.Time
}

func NewBalanceAlertTask(credentials CredentialSource, office BalanceOffice, sender FileSender, reports report.Generator) *BalanceAlertTask {
	return &BalanceAlertTask{
		log:         slog.With(slog.String("service", "balance_alert")),
		credentials: credentials,
		office:      office,
		sender:      sender,
		reports:     reports,
		now:         time.Now,
	}
}

func (t *BalanceAlertTask) Run(ctx context.Context, cfg Config) error {
	creds, found, err := t.credentials.Credentials(ctx, cfg.TenantID)
	if err != nil {
		return fmt.Errorf("tenant %d credentials: %w", cfg.TenantID, err)
	}
	if !found {
		t.log.Warn("tenant gone, skipping balance run", slog.Int64("tenant_id", cfg.TenantID))
		return nil
	}

	partners, err := t.office.ListPartners(ctx, creds.IntegrationToken)
	if err != nil {
		return fmt.Errorf("list partners: %w", err)
	}

	type linkedPartner struct {
		id     int64
		chatID int64
	}
	var linked []linkedPartner
	for _, p := range partners {
		if chatID, ok := p.ChatID(); ok {
			linked = append(linked, linkedPartner{p.ID, chatID})
		}
	}
	if len(linked) == 0 {
		t.log.Info("no linked partners, nothing to do", slog.Int64("tenant_id", cfg.TenantID))
		return nil
	}

	firms, currencies, err := t.listFirmsAndCurrencies(ctx, creds.IntegrationToken)
	if err != nil {
		return err
	}
	if len(firms) == 0 || len(currencies) == 0 {
		t.log.Warn("no firms or currencies, skipping balance run", slog.Int64("tenant_id", cfg.TenantID))
		return nil
	}

	end := t.now()
	start := end.Add(-balanceWindow)

	for _, p := range linked {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.notifyPartner(ctx, creds, p.id, p.chatID, firms, currencies, start.Unix(), end.Unix()); err != nil {
			t.log.Error("balance notification failed",
				slog.Int64("partner_id", p.id),
				slog.String("error", err.Error()))
		}
	}
	return nil
}

// listFirmsAndCurrencies fetches both reference lists concurrently.
func (t *BalanceAlertTask) listFirmsAndCurrencies(ctx context.Context, token string) ([]backoffice.Ref, []backoffice.Ref, error) {
	var (
		wg          sync.WaitGroup
		firms       []backoffice.Ref
		currencies  []backoffice.Ref
		firmErr     error
		currencyErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		firms, firmErr = t.office.ListFirms(ctx, token)
	}()
	go func() {
		defer wg.Done()
		currencies, currencyErr = t.office.ListCurrencies(ctx, token)
	}()
	wg.Wait()
	if firmErr != nil {
		return nil, nil, fmt.Errorf("list firms: %w", firmErr)
	}
	if currencyErr != nil {
		return nil, nil, fmt.Errorf("list currencies: %w", currencyErr)
	}
	return firms, currencies, nil
}

func (t *BalanceAlertTask) notifyPartner(ctx context.Context, creds TenantCredentials, partnerID, chatID int64, firms, currencies []backoffice.Ref, startDate, endDate int64) error {
	entries := t.office.CollectPartnerBalances(ctx, creds.IntegrationToken, partnerID, firms, currencies, startDate, endDate)
	if len(entries) == 0 {
		return nil
	}

	negatives := NegativeBalances(entries)
	if len(negatives) == 0 {
		return nil
	}

	text := formatBalanceAlert(partnerID, negatives)
	if err := t.sender.SendText(ctx, creds.TelegramToken, chatID, text, nil); err != nil {
		return fmt.Errorf("send balance summary: %w", err)
	}

	path, err := t.reports.PartnerBalance(entries)
	if err != nil {
		return fmt.Errorf("generate balance report: %w", err)
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			t.log.Warn("report file cleanup failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}()

	caption := fmt.Sprintf("📊 Баланс партнера (ID: %d)", partnerID)
	if err := t.sender.SendFile(ctx, creds.TelegramToken, chatID, path, caption); err != nil {
		return fmt.Errorf("send balance report: %w", err)
	}
	t.log.Info("balance alert sent",
		slog.Int64("partner_id", partnerID),
		slog.Int64("chat_id", chatID),
		slog.Int("negative_pairs", len(negatives)))
	return nil
}

// NegativeBalance is a firm and currency pair whose closing balance is
// below zero.
type NegativeBalance struct {
	Firm     string
	Currency string
	Amount   float64
}

// NegativeBalances groups ledger entries by firm and currency, takes
// the latest entry of each pair and keeps only pairs whose closing
// balance is negative. Earlier entries of a pair are superseded, not
// summed.
func NegativeBalances(entries []backoffice.BalanceEntry) []NegativeBalance {
	type pair struct{ firmID, currencyID int64 }
	latest := make(map[pair]backoffice.BalanceEntry)
	for _, e := range entries {
		key := pair{e.Firm.ID, e.Currency.ID}
		if cur, ok := latest[key]; !ok || e.Date >= cur.Date {
			latest[key] = e
		}
	}

	var out []NegativeBalance
	for _, e := range latest {
		if closing := e.Closing(); closing < 0 {
			out = append(out, NegativeBalance{
				Firm:     e.Firm.Name,
				Currency: e.Currency.Name,
				Amount:   closing,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Firm != out[j].Firm {
			return out[i].Firm < out[j].Firm
		}
		return out[i].Currency < out[j].Currency
	})
	return out
}

func formatBalanceAlert(partnerID int64, negatives []NegativeBalance) string {
	lines := []string{
		"⚠️ Уведомление о балансе",
		"",
		fmt.Sprintf("Партнер ID: %d", partnerID),
		"",
		"Отрицательный баланс:",
		"",
	}
	for _, n := range negatives {
		lines = append(lines, fmt.Sprintf("🏢 %s (%s): %s", n.Firm, n.Currency, receipt.FormatNumber(n.Amount, 2)))
	}
	lines = append(lines, "", "Подробная информация в прикрепленном файле.")
	return strings.Join(lines, "\n")
}
