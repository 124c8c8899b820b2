package solana

import (
	"fmt"
	"math/big"
	"math/bits"
	"regexp"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

// NativeDecimals is the number of decimal places of SOL (1 SOL = 1e9 lamports).
const NativeDecimals uint8 = 9

// MaxMintDecimals is the largest decimals value accepted for new mints.
const MaxMintDecimals = 9

// ParseAddress parses a base58 account address.
func ParseAddress(s string) (solana.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return solana.PublicKey{}, invalidInputf("address is required")
	}
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, invalidInputf("invalid address %q: %v", s, err)
	}
	return pk, nil
}

// Amount is a quantity of an asset in base units together with the
// decimals exponent that relates it to display units.
type Amount struct {
	BaseUnits uint64 `json:"base_units"`
	Decimals  uint8  `json:"decimals"`
}

var decimalPattern = regexp.MustCompile(`^\d+(\.\d+)?$`)

// ParseAmount converts a decimal display string (e.g. "0.5") into base units.
// Digits beyond the asset's precision are truncated.
func ParseAmount(s string, decimals uint8) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, invalidInputf("amount is required")
	}
	if strings.HasPrefix(s, "-") {
		return Amount{}, invalidInputf("amount must not be negative")
	}
	if !decimalPattern.MatchString(s) {
		return Amount{}, invalidInputf("invalid amount %q", s)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return Amount{}, invalidInputf("invalid amount %q", s)
	}
	if r.Sign() < 0 {
		return Amount{}, invalidInputf("amount must not be negative")
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	scaled := new(big.Rat).Mul(r, new(big.Rat).SetInt(scale))
	base := new(big.Int).Quo(scaled.Num(), scaled.Denom())
	if !base.IsUint64() {
		return Amount{}, invalidInputf("amount %q overflows %d-decimal base units", s, decimals)
	}

	return Amount{BaseUnits: base.Uint64(), Decimals: decimals}, nil
}

// AmountFromDisplayUnits converts a whole number of display units into base units.
func AmountFromDisplayUnits(units uint64, decimals uint8) (Amount, error) {
	scale := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		hi, lo := bits.Mul64(scale, 10)
		if hi != 0 {
			return Amount{}, invalidInputf("decimals %d out of range", decimals)
		}
		scale = lo
	}
	hi, base := bits.Mul64(units, scale)
	if hi != 0 {
		return Amount{}, invalidInputf("%d units with %d decimals overflows base units", units, decimals)
	}
	return Amount{BaseUnits: base, Decimals: decimals}, nil
}

// IsZero reports whether the amount has no base units.
func (a Amount) IsZero() bool {
	return a.BaseUnits == 0
}

// String formats the amount in display units, trimming trailing zeros.
func (a Amount) String() string {
	digits := fmt.Sprintf("%0*d", int(a.Decimals)+1, a.BaseUnits)
	if a.Decimals == 0 {
		return digits
	}
	whole := digits[:len(digits)-int(a.Decimals)]
	frac := strings.TrimRight(digits[len(digits)-int(a.Decimals):], "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}

// RecencyAnchor is the latest blockhash a transaction must reference to be
// accepted. It expires once the cluster passes LastValidBlockHeight.
type RecencyAnchor struct {
	Blockhash            solana.Hash `json:"blockhash"`
	LastValidBlockHeight uint64      `json:"last_valid_block_height"`
	FetchedAt            time.Time   `json:"fetched_at"`
}

// IsZero reports whether the anchor was never fetched.
func (a RecencyAnchor) IsZero() bool {
	return a.Blockhash.IsZero()
}

// Transaction is an assembled, unsigned transaction.
// CoSigners are locally generated keys (e.g. a new mint account) that must
// sign alongside the custodian.
type Transaction struct {
	Tx        *solana.Transaction
	FeePayer  solana.PublicKey
	Anchor    RecencyAnchor
	CoSigners []solana.PrivateKey
}

// SignedTransaction is a transaction whose required signatures are all present.
type SignedTransaction struct {
	Tx *solana.Transaction
}

// Signature returns the fee payer's signature, which identifies the transaction.
func (s SignedTransaction) Signature() solana.Signature {
	if s.Tx == nil || len(s.Tx.Signatures) == 0 {
		return solana.Signature{}
	}
	return s.Tx.Signatures[0]
}

// SubmissionResult identifies a transaction the network accepted for relay.
// It does not imply confirmation.
type SubmissionResult struct {
	Signature solana.Signature `json:"signature"`
}

// ConfirmationStatus is the finality state of a submitted transaction.
type ConfirmationStatus string

const (
	StatusPending   ConfirmationStatus = "pending"
	StatusConfirmed ConfirmationStatus = "confirmed"
	StatusFailed    ConfirmationStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s ConfirmationStatus) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// Confirmation is the outcome of waiting on a signature.
type Confirmation struct {
	Signature solana.Signature   `json:"signature"`
	Status    ConfirmationStatus `json:"status"`
	Slot      uint64             `json:"slot,omitempty"`
	Err       string             `json:"err,omitempty"` // on-chain error when Status is failed
	Polls     int                `json:"polls"`
}

// AccountInfo is the subset of on-chain account state we care about.
type AccountInfo struct {
	Address  solana.PublicKey `json:"address"`
	Lamports uint64           `json:"lamports"`
	Owner    solana.PublicKey `json:"owner"`
	Data     []byte           `json:"-"`
}

// MintInfo is a decoded SPL token mint account.
type MintInfo struct {
	Address         solana.PublicKey  `json:"address"`
	Supply          uint64            `json:"supply"`
	Decimals        uint8             `json:"decimals"`
	MintAuthority   *solana.PublicKey `json:"mint_authority,omitempty"`
	FreezeAuthority *solana.PublicKey `json:"freeze_authority,omitempty"`
	IsInitialized   bool              `json:"is_initialized"`
}
