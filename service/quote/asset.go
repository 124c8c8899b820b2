// Package quote fetches exchange-rate quotes between two assets and keeps
// a live quote fresh for the currently selected pair.
package quote

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/brojonat/solwallet/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

// Asset is a quotable token.
type Asset struct {
	Symbol   string             `json:"symbol"`
	Mint     solanago.PublicKey `json:"mint"`
	Decimals uint8              `json:"decimals"`
}

var (
	// SOL is quoted through its wrapped mint.
	SOL = Asset{
		Symbol:   "SOL",
		Mint:     solanago.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"),
		Decimals: 9,
	}
	USDC = Asset{
		Symbol:   "USDC",
		Mint:     solanago.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"),
		Decimals: 6,
	}
)

// Registry resolves asset names to mints.
type Registry struct {
	bySymbol map[string]Asset
	byMint   map[solanago.PublicKey]Asset
}

// NewRegistry builds a registry from assets.
func NewRegistry(assets ...Asset) *Registry {
	r := &Registry{
		bySymbol: make(map[string]Asset, len(assets)),
		byMint:   make(map[solanago.PublicKey]Asset, len(assets)),
	}
	for _, a := range assets {
		r.bySymbol[strings.ToUpper(a.Symbol)] = a
		r.byMint[a.Mint] = a
	}
	return r
}

// DefaultRegistry knows SOL and USDC.
func DefaultRegistry() *Registry {
	return NewRegistry(SOL, USDC)
}

// Assets lists the registered assets by symbol.
func (r *Registry) Assets() []Asset {
	out := make([]Asset, 0, len(r.bySymbol))
	for _, a := range r.bySymbol {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (r *Registry) symbols() string {
	assets := r.Assets()
	names := make([]string, len(assets))
	for i, a := range assets {
		names[i] = a.Symbol
	}
	return strings.Join(names, ", ")
}

// Resolve accepts a registered symbol (case-insensitive), a registered mint
// address, or "<mint>:<decimals>" for an unregistered mint.
func (r *Registry) Resolve(s string) (Asset, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Asset{}, fmt.Errorf("%w: asset is required", solana.ErrInvalidInput)
	}
	if a, ok := r.bySymbol[strings.ToUpper(s)]; ok {
		return a, nil
	}

	addr, decimals, hasDecimals := strings.Cut(s, ":")
	mint, err := solana.ParseAddress(addr)
	if err != nil {
		return Asset{}, fmt.Errorf("unknown asset %q (known: %s): %w", s, r.symbols(), err)
	}
	if a, ok := r.byMint[mint]; ok && !hasDecimals {
		return a, nil
	}
	if !hasDecimals {
		return Asset{}, fmt.Errorf("%w: unregistered mint %s needs explicit decimals (<mint>:<decimals>)", solana.ErrInvalidInput, mint)
	}
	d, err := strconv.Atoi(decimals)
	if err != nil || d < 0 || d > 18 {
		return Asset{}, fmt.Errorf("%w: invalid decimals %q", solana.ErrInvalidInput, decimals)
	}
	return Asset{Symbol: mint.String(), Mint: mint, Decimals: uint8(d)}, nil
}

// Params selects what to quote: Amount of From (in From's base units)
// converted to To.
type Params struct {
	From   Asset         `json:"from"`
	To     Asset         `json:"to"`
	Amount solana.Amount `json:"amount"`
}

// NewParams resolves assets and parses a display-unit amount.
func NewParams(reg *Registry, from, to, amount string) (Params, error) {
	fromAsset, err := reg.Resolve(from)
	if err != nil {
		return Params{}, err
	}
	toAsset, err := reg.Resolve(to)
	if err != nil {
		return Params{}, err
	}
	if fromAsset.Mint.Equals(toAsset.Mint) {
		return Params{}, fmt.Errorf("%w: cannot quote %s against itself", solana.ErrInvalidInput, fromAsset.Symbol)
	}
	amt, err := solana.ParseAmount(amount, fromAsset.Decimals)
	if err != nil {
		return Params{}, err
	}
	if amt.IsZero() {
		return Params{}, fmt.Errorf("%w: amount must be greater than zero", solana.ErrInvalidInput)
	}
	return Params{From: fromAsset, To: toAsset, Amount: amt}, nil
}

// Key identifies the tuple for supersession checks.
func (p Params) Key() string {
	return fmt.Sprintf("%s/%s/%d", p.From.Mint, p.To.Mint, p.Amount.BaseUnits)
}
