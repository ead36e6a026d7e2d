package service

import (
	"context"
	"testing"

	"github.com/verivolabs/verivo-engine/internal/markethours"
	"github.com/verivolabs/verivo-engine/internal/platform/yahoo"
)

func fptr(v float64) *float64 { return &v }

func TestPriceFromChartFallbackChain(t *testing.T) {
	tests := []struct {
		name string
		q    yahoo.Quote
		want float64
		ok   bool
	}{
		{
			name: "regular market price wins",
			q: yahoo.Quote{
				RegularMarketPrice: fptr(101),
				PreviousClose:      fptr(99),
				Closes:             []*float64{fptr(100)},
			},
			want: 101,
			ok:   true,
		},
		{
			name: "last non-null intraday close when regular missing",
			q: yahoo.Quote{
				PreviousClose: fptr(99),
				Closes:        []*float64{fptr(100), fptr(100.5), nil, nil},
			},
			want: 100.5,
			ok:   true,
		},
		{
			name: "previous close as last resort",
			q: yahoo.Quote{
				PreviousClose: fptr(99),
				Closes:        []*float64{nil, nil},
			},
			want: 99,
			ok:   true,
		},
		{
			name: "nothing usable",
			q:    yahoo.Quote{Closes: []*float64{nil}},
			want: 0,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := PriceFromChart(tt.q)
			if got != tt.want || ok != tt.ok {
				t.Errorf("PriceFromChart() = (%v, %v), want (%v, %v)", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCommodityRouting(t *testing.T) {
	spot := &stubSpot{price: 2400}
	charts := &stubCharts{quote: yahoo.Quote{RegularMarketPrice: fptr(78.2)}}
	svc := NewQuoteService(spot, &stubFX{}, charts, markethours.New(), nil, quietLogger)

	gold, err := svc.CommodityPrice(context.Background(), "XAU")
	if err != nil || gold != 2400 {
		t.Fatalf("XAU = (%v, %v), want 2400 via spot", gold, err)
	}
	if len(spot.pairs) != 1 || spot.pairs[0] != "PAXG-USD" {
		t.Errorf("gold routed to %v, want PAXG-USD", spot.pairs)
	}

	wti, err := svc.CommodityPrice(context.Background(), "WTI")
	if err != nil || wti != 78.2 {
		t.Fatalf("WTI = (%v, %v), want 78.2 via futures chart", wti, err)
	}

	if _, err := svc.CommodityPrice(context.Background(), "COPPER-ETF"); err == nil {
		t.Error("unsupported commodity accepted")
	}
}

func TestForexBaseTruncation(t *testing.T) {
	fx := &stubFX{rate: 0.79}
	svc := NewQuoteService(&stubSpot{}, fx, &stubCharts{}, markethours.New(), nil, quietLogger)

	rate, err := svc.ForexUSD(context.Background(), "gbpusd")
	if err != nil || rate != 0.79 {
		t.Fatalf("ForexUSD = (%v, %v), want 0.79", rate, err)
	}
}
