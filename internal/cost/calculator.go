// Package cost implements the landed cost and resale margin calculator for
// imported goods.
package cost

import "github.com/rotisserie/eris"

// Rates holds default percentage rates applied when an input leaves them
// unset.
type Rates struct {
	CustomsPct float64 `yaml:"customs_pct" mapstructure:"customs_pct"`
	FeesPct    float64 `yaml:"fees_pct" mapstructure:"fees_pct"`
}

// DefaultRates returns typical rates for small-volume imports: 20% customs
// and taxes on the CIF value, 5% payment and platform fees.
func DefaultRates() Rates {
	return Rates{CustomsPct: 20, FeesPct: 5}
}

// Inputs describes one purchase. CustomsPct and FeesPct override the
// calculator defaults when non-nil.
type Inputs struct {
	UnitPrice  float64  `json:"unit_price"`
	Quantity   int      `json:"quantity"`
	Shipping   float64  `json:"shipping"`
	CustomsPct *float64 `json:"customs_pct,omitempty"`
	FeesPct    *float64 `json:"fees_pct,omitempty"`
}

// Breakdown is the landed cost decomposition for one purchase.
type Breakdown struct {
	Goods    float64 `json:"goods"`
	Shipping float64 `json:"shipping"`
	Customs  float64 `json:"customs"`
	Fees     float64 `json:"fees"`
	Total    float64 `json:"total"`
	PerUnit  float64 `json:"per_unit"`
}

// Margin is the resale outcome for one unit.
type Margin struct {
	UnitCost     float64 `json:"unit_cost"`
	ResalePrice  float64 `json:"resale_price"`
	GrossPerUnit float64 `json:"gross_per_unit"`
	MarginPct    float64 `json:"margin_pct"` // gross / resale
	MarkupPct    float64 `json:"markup_pct"` // gross / cost
	Breakeven    float64 `json:"breakeven"`  // resale price at zero gross
}

// Calculator computes landed costs and margins.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given default rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Landed computes the full landed cost of a purchase. Customs applies to the
// CIF value (goods plus shipping); fees apply to the customs-inclusive total.
func (c *Calculator) Landed(in Inputs) (Breakdown, error) {
	if in.Quantity <= 0 {
		return Breakdown{}, eris.New("cost: quantity must be positive")
	}
	if in.UnitPrice < 0 || in.Shipping < 0 {
		return Breakdown{}, eris.New("cost: price and shipping must not be negative")
	}

	customsPct := c.rates.CustomsPct
	if in.CustomsPct != nil {
		customsPct = *in.CustomsPct
	}
	feesPct := c.rates.FeesPct
	if in.FeesPct != nil {
		feesPct = *in.FeesPct
	}
	if customsPct < 0 || feesPct < 0 {
		return Breakdown{}, eris.New("cost: rates must not be negative")
	}

	goods := in.UnitPrice * float64(in.Quantity)
	customs := (goods + in.Shipping) * customsPct / 100
	fees := (goods + in.Shipping + customs) * feesPct / 100
	total := goods + in.Shipping + customs + fees

	return Breakdown{
		Goods:    goods,
		Shipping: in.Shipping,
		Customs:  customs,
		Fees:     fees,
		Total:    total,
		PerUnit:  total / float64(in.Quantity),
	}, nil
}

// ResaleMargin computes the per-unit margin for a resale price against a
// landed per-unit cost.
func (c *Calculator) ResaleMargin(unitCost, resalePrice float64) (Margin, error) {
	if unitCost < 0 {
		return Margin{}, eris.New("cost: unit cost must not be negative")
	}
	if resalePrice <= 0 {
		return Margin{}, eris.New("cost: resale price must be positive")
	}

	gross := resalePrice - unitCost
	m := Margin{
		UnitCost:     unitCost,
		ResalePrice:  resalePrice,
		GrossPerUnit: gross,
		MarginPct:    gross / resalePrice * 100,
		Breakeven:    unitCost,
	}
	if unitCost > 0 {
		m.MarkupPct = gross / unitCost * 100
	}
	return m, nil
}
