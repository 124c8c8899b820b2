package db

import (
	"context"

	"github.com/brojonat/solwallet/service/wallet"
)

// MintRecorder stores workflow outcomes in the registry for one network.
type MintRecorder struct {
	store   *Store
	network string
}

var _ wallet.MintRecorder = (*MintRecorder)(nil)

// NewMintRecorder records into store under network ("mainnet" or "devnet").
func NewMintRecorder(store *Store, network string) *MintRecorder {
	return &MintRecorder{store: store, network: network}
}

func (r *MintRecorder) RecordMint(ctx context.Context, rec wallet.MintRecord) error {
	_, err := r.store.CreateMint(ctx, CreateMintParams{
		Address:         rec.Mint,
		Network:         r.network,
		Name:            rec.Name,
		Symbol:          rec.Symbol,
		Decimals:        rec.Decimals,
		Authority:       rec.Authority,
		CreateSignature: rec.CreateSignature,
	})
	return err
}

func (r *MintRecorder) RecordIssue(ctx context.Context, mint string, status wallet.Status) error {
	_, err := r.store.RecordIssue(ctx, RecordIssueParams{
		Mint:      mint,
		Network:   r.network,
		Amount:    status.BaseUnits,
		Succeeded: status.Succeeded(),
	})
	return err
}
