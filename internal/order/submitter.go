package order

import (
	"context"
	"fmt"

	"github.com/iliyamo/pod-kiosk/internal/kioskerr"
	"github.com/iliyamo/pod-kiosk/internal/logger"
	"github.com/iliyamo/pod-kiosk/internal/model"
	"github.com/iliyamo/pod-kiosk/internal/pricing"
)

// LineItem is one canonical entry sent to the order service.
type LineItem struct {
	ItemID        string `json:"item_id"`
	Quantity      int    `json:"quantity"`
	SelectedValue string `json:"selected_value,omitempty"`
}

// CreateOrderRequest is the payload for the backend order-creation call.
type CreateOrderRequest struct {
	LocationID string
	GuestName  string
	LineItems  []LineItem
}

// CreateOrderResult carries the identifiers and pre-tax total the backend
// assigned.
type CreateOrderResult struct {
	OrderID            string
	OrderNumber        string
	KitchenOrderNumber string
	PreTaxTotalCents   int64
}

// OrderAPI is the backend order-persistence service.
type OrderAPI interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (CreateOrderResult, error)
}

// LineItems flattens a guest's selections into the canonical list, in menu
// order.  SINGLE selections become quantity 1, MULTIPLE cart entries keep
// their quantity, and sliders become quantity 1 with the chosen label as
// the selected value.
func LineItems(guest *model.GuestOrder, menu *Menu) []LineItem {
	var out []LineItem
	for _, step := range menu.Steps {
		for _, sec := range step.Sections {
			switch sec.Mode {
			case model.ModeSingle:
				if id, ok := guest.Selections[sec.ID]; ok {
					out = append(out, LineItem{ItemID: id, Quantity: 1})
				}
			case model.ModeMultiple:
				for _, it := range sec.Items {
					if q := guest.Cart[it.ID]; q > 0 {
						out = append(out, LineItem{ItemID: it.ID, Quantity: q})
					}
				}
			case model.ModeSlider:
				for _, it := range sec.Items {
					if _, ok := guest.Cart[it.ID]; ok {
						out = append(out, LineItem{ItemID: it.ID, Quantity: 1, SelectedValue: guest.SliderLabels[it.ID]})
					}
				}
			}
		}
	}
	return out
}

// Submitter turns a guest's selections into a backend order.
type Submitter struct {
	api        OrderAPI
	locationID string
	taxRate    float64
	log        *logger.Logger
}

// NewSubmitter returns a Submitter for one location.
func NewSubmitter(api OrderAPI, locationID string, taxRate float64, log *logger.Logger) *Submitter {
	return &Submitter{api: api, locationID: locationID, taxRate: taxRate, log: log}
}

// Submit creates the order for guest.  A guest that already has an order
// ID is left untouched, so retrying a party never duplicates an order.
// The backend's pre-tax total is authoritative; tax is added locally and
// the result stored on the guest is what the payment step charges.
func (s *Submitter) Submit(ctx context.Context, sessionID string, guest *model.GuestOrder, menu *Menu) error {
	if guest.Submitted() {
		return nil
	}
	lines := LineItems(guest, menu)
	if len(lines) == 0 {
		return kioskerr.Invalid("cart", "add at least one item before submitting")
	}
	res, err := s.api.CreateOrder(ctx, CreateOrderRequest{
		LocationID: s.locationID,
		GuestName:  guest.GuestName,
		LineItems:  lines,
	})
	if err != nil {
		s.log.Error("create_order", sessionID, fmt.Sprintf("order for guest %d failed", guest.GuestNumber), err)
		return &kioskerr.SubmissionError{Op: "create order", Err: err}
	}
	if local := RunningTotal(guest, menu); local != res.PreTaxTotalCents {
		s.log.Warn("create_order", sessionID, fmt.Sprintf("guest %d: kiosk total %d differs from order total %d, using order total", guest.GuestNumber, local, res.PreTaxTotalCents))
	}
	guest.OrderID = res.OrderID
	guest.OrderNumber = res.OrderNumber
	guest.KitchenOrderNumber = res.KitchenOrderNumber
	guest.Totals = pricing.Totals(res.PreTaxTotalCents, s.taxRate)
	s.log.Info("create_order", sessionID, fmt.Sprintf("guest %d order %s created", guest.GuestNumber, res.OrderNumber))
	return nil
}
