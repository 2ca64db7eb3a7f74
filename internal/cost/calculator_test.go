package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanded(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(DefaultRates())

	tests := []struct {
		name string
		in   Inputs
		want Breakdown
	}{
		{
			name: "defaults applied",
			in:   Inputs{UnitPrice: 10, Quantity: 100, Shipping: 200},
			want: Breakdown{
				Goods:    1000,
				Shipping: 200,
				Customs:  240, // (1000+200) * 20%
				Fees:     72,  // (1000+200+240) * 5%
				Total:    1512,
				PerUnit:  15.12,
			},
		},
		{
			name: "zero rates override",
			in: Inputs{
				UnitPrice: 5, Quantity: 10, Shipping: 50,
				CustomsPct: fptr(0), FeesPct: fptr(0),
			},
			want: Breakdown{Goods: 50, Shipping: 50, Total: 100, PerUnit: 10},
		},
		{
			name: "single unit no shipping",
			in:   Inputs{UnitPrice: 100, Quantity: 1, CustomsPct: fptr(10), FeesPct: fptr(0)},
			want: Breakdown{Goods: 100, Customs: 10, Total: 110, PerUnit: 110},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Landed(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Goods, got.Goods, 1e-9)
			assert.InDelta(t, tt.want.Shipping, got.Shipping, 1e-9)
			assert.InDelta(t, tt.want.Customs, got.Customs, 1e-9)
			assert.InDelta(t, tt.want.Fees, got.Fees, 1e-9)
			assert.InDelta(t, tt.want.Total, got.Total, 1e-9)
			assert.InDelta(t, tt.want.PerUnit, got.PerUnit, 1e-9)
		})
	}
}

func TestLandedRejectsBadInputs(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(DefaultRates())

	_, err := calc.Landed(Inputs{UnitPrice: 10, Quantity: 0})
	assert.Error(t, err)

	_, err = calc.Landed(Inputs{UnitPrice: -1, Quantity: 5})
	assert.Error(t, err)

	_, err = calc.Landed(Inputs{UnitPrice: 1, Quantity: 5, CustomsPct: fptr(-3)})
	assert.Error(t, err)
}

func TestResaleMargin(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(DefaultRates())

	m, err := calc.ResaleMargin(15.12, 25)
	require.NoError(t, err)
	assert.InDelta(t, 9.88, m.GrossPerUnit, 1e-9)
	assert.InDelta(t, 39.52, m.MarginPct, 1e-9)
	assert.InDelta(t, 65.34, m.MarkupPct, 0.01)
	assert.InDelta(t, 15.12, m.Breakeven, 1e-9)
}

func TestResaleMarginLoss(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(DefaultRates())

	m, err := calc.ResaleMargin(20, 15)
	require.NoError(t, err)
	assert.InDelta(t, -5, m.GrossPerUnit, 1e-9)
	assert.Less(t, m.MarginPct, 0.0)
}

func TestResaleMarginRejectsBadInputs(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(DefaultRates())

	_, err := calc.ResaleMargin(-1, 10)
	assert.Error(t, err)

	_, err = calc.ResaleMargin(10, 0)
	assert.Error(t, err)
}

func fptr(v float64) *float64 { return &v }
