// Package receipt renders back office documents as partner-facing
// messenger messages. Document type names are inverted to the partner's
// perspective: what the system ships, the partner buys.
package receipt

import (
	"fmt"
	"strings"
	"time"

	"github.com/partnergate/partnergate/internal/backoffice"
)

// DefaultWarehouseName is shown when the document's warehouse cannot be
// resolved.
const DefaultWarehouseName = "Склад"

const cancelledNotice = "❌ *ОТМЕНЕНО*"

// DocumentOptions controls how a trade document is rendered.
type DocumentOptions struct {
	// Warehouse is the resolved warehouse display name.
	Warehouse string
	// Cancelled prepends the cancellation notice.
	Cancelled bool
	// Return renders the document as a return receipt.
	Return bool
	// UseCost prices lines by cost instead of sale price. Set for
	// purchase documents, where the partner is the seller.
	UseCost bool
	// Location is the timezone for rendering document dates. Defaults
	// to the local timezone.
	Location *time.Location
}

// documentTitle returns the receipt heading from the partner's
// perspective. The system's shipment is the partner's purchase and
// vice versa.
func documentTitle(isReturn, useCost bool) string {
	switch {
	case isReturn && useCost:
		return "Чек возврата отгрузки"
	case isReturn:
		return "Чек возврата закупки"
	case useCost:
		return "Чек отгрузки"
	default:
		return "Чек закупки"
	}
}

// FormatDocument renders a trade document with its item lines as a
// Markdown receipt. The total is recomputed as the sum of line totals
// rather than taken from the document header.
func FormatDocument(doc backoffice.Document, ops []backoffice.Operation, opts DocumentOptions) string {
	var lines []string
	if opts.Cancelled {
		lines = append(lines, cancelledNotice, "")
	}

	lines = append(lines,
		fmt.Sprintf("🧾 *%s*", documentTitle(opts.Return, opts.UseCost)),
		fmt.Sprintf("📄 *Документ №%s*", doc.Code),
		fmt.Sprintf("📅 Дата: %s", formatDate(doc.Date, opts.Location)),
	)
	if opts.Warehouse != "" {
		lines = append(lines, fmt.Sprintf("🏢 Склад: %s", opts.Warehouse))
	}
	lines = append(lines, "", "📦 *Товары:*", "")

	var totalItems, totalToPay float64
	for i, op := range ops {
		name := op.Item.Name
		if name == "" {
			name = "Неизвестный товар"
		}
		price := op.Price
		if opts.UseCost {
			price = op.Cost
		}
		lineTotal := op.Quantity * price
		totalItems += op.Quantity
		totalToPay += lineTotal

		lines = append(lines,
			fmt.Sprintf("%d. *%s*", i+1, name),
			fmt.Sprintf("   %s × %s = %s", FormatNumber(op.Quantity, 2), FormatNumber(price, 2), FormatNumber(lineTotal, 2)),
		)
		if op.Description != "" {
			lines = append(lines, fmt.Sprintf("   Примечание: %s", op.Description))
		}
		lines = append(lines, "")
	}

	lines = append(lines,
		strings.Repeat("─", 20),
		fmt.Sprintf("📊 Всего товаров: %s", FormatNumber(totalItems, 2)),
		fmt.Sprintf("💵 *Итого к оплате: %s*", FormatNumber(totalToPay, 2)),
	)
	return strings.Join(lines, "\n")
}

// FormatPayment renders a payment document as a Markdown notification.
// Direction comes from the payment category: positive means money paid
// out to the partner.
func FormatPayment(p backoffice.Payment, warehouse string, cancelled bool, loc *time.Location) string {
	var lines []string
	if cancelled {
		lines = append(lines, cancelledNotice, "")
	}

	direction, emoji := "Получено", "⬇️"
	if p.Category != nil && p.Category.Positive {
		direction, emoji = "Выплачено", "⬆️"
	}

	lines = append(lines,
		fmt.Sprintf("%s *%s*", emoji, direction),
		fmt.Sprintf("📄 *Документ № %s*", p.Code),
		fmt.Sprintf("📅 Дата: %s", formatDate(p.Date, loc)),
	)
	if warehouse != "" {
		lines = append(lines, fmt.Sprintf("🏢 Склад: %s", warehouse))
	}

	typeName := "Неизвестный тип"
	if p.Type != nil && p.Type.Name != "" {
		typeName = p.Type.Name
	}
	lines = append(lines, "", fmt.Sprintf("💳 Тип платежа: %s", typeName))

	amount := fmt.Sprintf("💵 Сумма: %s", FormatNumber(p.Amount, 2))
	if p.Currency != nil && p.Currency.Name != "" {
		amount += " " + p.Currency.Name
	}
	lines = append(lines, amount)

	if rate := float64(p.ExchangeRate); rate != 0 && rate != 1 {
		lines = append(lines, fmt.Sprintf("📊 Курс обмена: %s", FormatNumber(rate, 4)))
	}
	if p.Description != "" {
		lines = append(lines, fmt.Sprintf("📝 Примечание: %s", p.Description))
	}
	return strings.Join(lines, "\n")
}

// InvertedLedgerLabels returns the debit and credit column headings
// from the partner's perspective. The system's debit is money the
// partner receives, so the labels swap.
func InvertedLedgerLabels() (debit, credit string) {
	return "Кредит", "Дебет"
}

func formatDate(ts int64, loc *time.Location) string {
	if ts == 0 {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(ts, 0).In(loc).Format("02.01.2006 15:04")
}
