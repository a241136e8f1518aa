// Package order builds a single guest's order from menu selections and
// submits it to the backend order service.
package order

import (
	"errors"
	"fmt"

	"github.com/iliyamo/pod-kiosk/internal/kioskerr"
	"github.com/iliyamo/pod-kiosk/internal/model"
	"github.com/iliyamo/pod-kiosk/internal/pricing"
)

var (
	// ErrUnknownItem is returned for an item ID that is not on the menu.
	ErrUnknownItem = errors.New("unknown menu item")
	// ErrUnknownSection is returned for a section ID that is not on the menu.
	ErrUnknownSection = errors.New("unknown menu section")
)

// Menu indexes the steps of a menu by section and item ID.
type Menu struct {
	Steps    []model.Step
	sections map[string]*model.Section
	owner    map[string]*model.Section // item ID -> section
	items    map[string]model.MenuItem
}

// NewMenu indexes steps for lookups.  When an item ID appears in more than
// one section the first occurrence wins.
func NewMenu(steps []model.Step) *Menu {
	m := &Menu{
		Steps:    steps,
		sections: map[string]*model.Section{},
		owner:    map[string]*model.Section{},
		items:    map[string]model.MenuItem{},
	}
	for si := range steps {
		for ci := range steps[si].Sections {
			sec := &steps[si].Sections[ci]
			m.sections[sec.ID] = sec
			for _, it := range sec.Items {
				if _, dup := m.items[it.ID]; dup {
					continue
				}
				m.items[it.ID] = it
				m.owner[it.ID] = sec
			}
		}
	}
	return m
}

// Item returns the menu item and the section it belongs to.
func (m *Menu) Item(id string) (model.MenuItem, *model.Section, bool) {
	it, ok := m.items[id]
	if !ok {
		return model.MenuItem{}, nil, false
	}
	return it, m.owner[id], true
}

// Section returns a section by ID.
func (m *Menu) Section(id string) (*model.Section, bool) {
	s, ok := m.sections[id]
	return s, ok
}

// Builder accumulates one guest's selections.  It mutates the GuestOrder it
// was created with.
type Builder struct {
	guest *model.GuestOrder
	menu  *Menu
}

// NewBuilder returns a builder for guest over menu.
func NewBuilder(guest *model.GuestOrder, menu *Menu) *Builder {
	return &Builder{guest: guest, menu: menu}
}

// UpdateCart sets the quantity of a MULTIPLE-mode item.  Negative
// quantities clamp to zero and a positive maxQty (or, when maxQty is zero,
// the section's MaxQuantity) caps the value.  A zero quantity removes the
// item from the cart.
func (b *Builder) UpdateCart(itemID string, qty, maxQty int) error {
	_, sec, ok := b.menu.Item(itemID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if sec.Mode != model.ModeMultiple {
		return kioskerr.Invalid(itemID, "item is not sold by quantity")
	}
	if maxQty <= 0 {
		maxQty = sec.MaxQuantity
	}
	if qty < 0 {
		qty = 0
	}
	if maxQty > 0 && qty > maxQty {
		qty = maxQty
	}
	if qty == 0 {
		delete(b.guest.Cart, itemID)
		return nil
	}
	b.guest.Cart[itemID] = qty
	return nil
}

// UpdateSlider records a slider position and the label configured for it.
// Sliders describe a qualitative level; they are never priced.
func (b *Builder) UpdateSlider(itemID string, value int) error {
	_, sec, ok := b.menu.Item(itemID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if sec.Mode != model.ModeSlider || sec.Slider == nil {
		return kioskerr.Invalid(itemID, "item is not a slider")
	}
	cfg := *sec.Slider
	if value < cfg.Min {
		value = cfg.Min
	}
	if cfg.Max > cfg.Min && value > cfg.Max {
		value = cfg.Max
	}
	b.guest.Cart[itemID] = value
	b.guest.SliderLabels[itemID] = cfg.Label(value)
	return nil
}

// UpdateSelection overwrites the single choice for a SINGLE-mode section.
func (b *Builder) UpdateSelection(sectionID, itemID string) error {
	sec, ok := b.menu.Section(sectionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSection, sectionID)
	}
	_, owner, ok := b.menu.Item(itemID)
	if !ok || owner.ID != sec.ID {
		return kioskerr.Invalid(sectionID, "item "+itemID+" is not part of this section")
	}
	b.guest.Selections[sectionID] = itemID
	return nil
}

// RunningTotal sums the guest's current selections in cents: SINGLE
// selections at base price, MULTIPLE cart items at their tiered price,
// sliders free.
func (b *Builder) RunningTotal() int64 {
	return RunningTotal(b.guest, b.menu)
}

// RunningTotal computes the pre-tax price of guest's selections.
func RunningTotal(guest *model.GuestOrder, menu *Menu) int64 {
	var total int64
	for _, step := range menu.Steps {
		for _, sec := range step.Sections {
			switch sec.Mode {
			case model.ModeSingle:
				if id, ok := guest.Selections[sec.ID]; ok {
					if it, _, ok := menu.Item(id); ok {
						total += it.BasePriceCents
					}
				}
			case model.ModeMultiple:
				for _, it := range sec.Items {
					total += pricing.Price(it, guest.Cart[it.ID])
				}
			}
		}
	}
	return total
}

// ValidateStep checks that every required section of the step has a
// choice.  It returns a *kioskerr.ValidationError naming the first
// incomplete section.
func (b *Builder) ValidateStep(stepIndex int) error {
	if stepIndex < 0 || stepIndex >= len(b.menu.Steps) {
		return kioskerr.Invalid("step", "no such menu step")
	}
	for _, sec := range b.menu.Steps[stepIndex].Sections {
		if !sec.Required {
			continue
		}
		switch sec.Mode {
		case model.ModeSingle:
			if _, ok := b.guest.Selections[sec.ID]; !ok {
				return kioskerr.Invalid(sec.ID, "please choose one "+sec.Title)
			}
		case model.ModeMultiple, model.ModeSlider:
			if !anyInCart(b.guest, sec) {
				return kioskerr.Invalid(sec.ID, "please make a choice for "+sec.Title)
			}
		}
	}
	return nil
}

func anyInCart(g *model.GuestOrder, sec model.Section) bool {
	for _, it := range sec.Items {
		if _, ok := g.Cart[it.ID]; ok {
			return true
		}
	}
	return false
}
