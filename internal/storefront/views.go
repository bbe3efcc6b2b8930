package storefront

import (
	"encoding/json"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

type lineView struct {
	ProductID         string      `json:"productId"`
	Name              string      `json:"name"`
	UnitPrice         json.Number `json:"unitPrice"`
	Quantity          int         `json:"quantity"`
	Subtotal          json.Number `json:"subtotal"`
	FormattedSubtotal string      `json:"formattedSubtotal"`
}

type cartView struct {
	Lines          []lineView  `json:"lines"`
	ItemCount      int         `json:"itemCount"`
	Total          json.Number `json:"total"`
	FormattedTotal string      `json:"formattedTotal"`
	Version        uint64      `json:"version"`
	Locked         bool        `json:"locked"`
}

type checkoutView struct {
	Success bool   `json:"success"`
	OrderID string `json:"orderId,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func major(m pricing.Money) json.Number {
	return json.Number(pricing.ToDecimal(m).StringFixed(2))
}

func newCartView(snap cart.Snapshot) cartView {
	v := cartView{
		Lines:          make([]lineView, 0, len(snap.Lines)),
		Total:          major(snap.Total),
		FormattedTotal: pricing.Format(snap.Total),
		Version:        snap.Version,
		Locked:         snap.Locked,
	}
	for _, l := range snap.Lines {
		sub := l.Subtotal()
		v.Lines = append(v.Lines, lineView{
			ProductID:         l.ProductID,
			Name:              l.Name,
			UnitPrice:         major(l.UnitPrice),
			Quantity:          l.Quantity,
			Subtotal:          major(sub),
			FormattedSubtotal: pricing.Format(sub),
		})
		v.ItemCount += l.Quantity
	}
	return v
}

func newCheckoutView(out checkout.Outcome) checkoutView {
	if out.Err == nil {
		return checkoutView{Success: true, OrderID: out.Result.OrderID, Message: out.Result.Message}
	}
	appErr := toAppError(out.Err)
	return checkoutView{Success: false, Message: appErr.Message, Code: appErr.Code}
}
