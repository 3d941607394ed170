package events

// Kind is the recognized family of back office events.
type Kind string

const (
	KindWholeSale       Kind = "wholesale"
	KindWholeSaleReturn Kind = "wholesale_return"
	KindPurchase        Kind = "purchase"
	KindPurchaseReturn  Kind = "purchase_return"
	KindPayment         Kind = "payment"
)

// endpoints maps a document kind to its fetch RPC endpoints. Payments
// have a dedicated fetch path and no operations endpoint.
type endpoints struct {
	document   string
	operations string
}

var kindEndpoints = map[Kind]endpoints{
	KindWholeSale:       {"DocWholeSale/Get", "WholeSaleOperation/Get"},
	KindWholeSaleReturn: {"DocWholeSaleReturn/Get", "WholeSaleReturnOperation/Get"},
	KindPurchase:        {"DocPurchase/Get", "PurchaseOperation/Get"},
	KindPurchaseReturn:  {"DocReturnsToPartner/Get", "ReturnsToPartnerOperation/Get"},
}

// actionKinds maps the wire-level action names to (kind, cancelled).
var actionKinds = map[string]struct {
	kind      Kind
	cancelled bool
}{
	"DocWholeSalePerformed":             {KindWholeSale, false},
	"DocWholeSalePerformCanceled":       {KindWholeSale, true},
	"DocWholeSaleReturnPerformed":       {KindWholeSaleReturn, false},
	"DocWholeSaleReturnPerformCanceled": {KindWholeSaleReturn, true},
	"DocPurchasePerformed":              {KindPurchase, false},
	"DocPurchasePerformCanceled":        {KindPurchase, true},
	"DocReturnsToPartnerPerformed":      {KindPurchaseReturn, false},
	"DocReturnsToPartnerPerformCanceled": {KindPurchaseReturn, true},
	"DocPaymentPerformed":               {KindPayment, false},
	"DocPaymentPerformCanceled":         {KindPayment, true},
}

// ParseAction classifies a wire action name. ok is false for actions
// outside the recognized set; those events are acknowledged and skipped.
func ParseAction(action string) (kind Kind, cancelled bool, ok bool) {
	k, ok := actionKinds[action]
	if !ok {
		return "", false, false
	}
	return k.kind, k.cancelled, true
}

// Return reports whether the kind is a return document.
func (k Kind) Return() bool {
	return k == KindWholeSaleReturn || k == KindPurchaseReturn
}

// UseCost reports whether line totals for this kind use cost instead of
// sale price. True for purchase-side documents.
func (k Kind) UseCost() bool {
	return k == KindPurchase || k == KindPurchaseReturn
}
