package quote

import (
	"context"
	"math/big"
	"time"

	"github.com/brojonat/solwallet/service/solana"
)

// Quote is one priced answer for Params.
type Quote struct {
	Params         Params        `json:"params"`
	InAmount       solana.Amount `json:"in_amount"`
	OutAmount      solana.Amount `json:"out_amount"`
	MinOutAmount   solana.Amount `json:"min_out_amount"`
	PriceImpactPct string        `json:"price_impact_pct,omitempty"`
	SlippageBps    int           `json:"slippage_bps"`
	RouteLabels    []string      `json:"route_labels,omitempty"`
	Source         string        `json:"source"`
	FetchedAt      time.Time     `json:"fetched_at"`
}

// Price is OutAmount per one display unit of the input, formatted with
// the output asset's precision.
func (q Quote) Price() string {
	if q.InAmount.BaseUnits == 0 {
		return "0"
	}
	out := new(big.Rat).SetFrac(
		new(big.Int).SetUint64(q.OutAmount.BaseUnits),
		pow10(q.OutAmount.Decimals),
	)
	in := new(big.Rat).SetFrac(
		new(big.Int).SetUint64(q.InAmount.BaseUnits),
		pow10(q.InAmount.Decimals),
	)
	return new(big.Rat).Quo(out, in).FloatString(int(q.OutAmount.Decimals))
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// Source fetches a single quote.
type Source interface {
	Name() string
	Fetch(ctx context.Context, p Params) (Quote, error)
}
