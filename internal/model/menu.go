package model

// SelectionMode controls how a section's items are chosen and priced.
type SelectionMode string

const (
    // ModeSingle sections hold exactly one chosen item (e.g. a base).
    ModeSingle SelectionMode = "SINGLE"
    // ModeMultiple sections hold a quantity per item and use tiered pricing.
    ModeMultiple SelectionMode = "MULTIPLE"
    // ModeSlider sections record a qualitative level (e.g. spice) and are free.
    ModeSlider SelectionMode = "SLIDER"
)

// MenuItem is a selectable entry within a section.  Prices are in cents.
// IncludedQuantity units are free; see pricing.ItemPrice for the tiers
// beyond it.
type MenuItem struct {
    ID                   string        `json:"id"`
    Name                 string        `json:"name"`
    BasePriceCents       int64         `json:"base_price_cents"`
    AdditionalPriceCents int64         `json:"additional_price_cents"`
    IncludedQuantity     int           `json:"included_quantity"`
    Mode                 SelectionMode `json:"selection_mode"`
}

// SliderConfig describes the positions of a slider section.  Labels[i]
// names position Min+i.
type SliderConfig struct {
    Min    int      `json:"min"`
    Max    int      `json:"max"`
    Labels []string `json:"labels"`
}

// Label resolves the display label for a slider position.  Positions
// without a configured label resolve to the empty string.
func (c SliderConfig) Label(value int) string {
    i := value - c.Min
    if i < 0 || i >= len(c.Labels) {
        return ""
    }
    return c.Labels[i]
}

// Section groups items that share a selection mode.
type Section struct {
    ID          string        `json:"id"`
    Title       string        `json:"title"`
    Mode        SelectionMode `json:"selection_mode"`
    Required    bool          `json:"required"`
    MaxQuantity int           `json:"max_quantity,omitempty"` // per item, 0 = unlimited
    Items       []MenuItem    `json:"items"`
    Slider      *SliderConfig `json:"slider_config,omitempty"`
}

// Step is one screen of the menu builder.
type Step struct {
    ID       string    `json:"id"`
    Title    string    `json:"title"`
    Sections []Section `json:"sections"`
}
