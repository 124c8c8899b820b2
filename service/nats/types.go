package nats

import (
	"fmt"
	"strings"
	"time"

	"github.com/brojonat/solwallet/service/quote"
	"github.com/brojonat/solwallet/service/wallet"
)

// OperationEvent is a workflow state transition published to the subject
// "ops.{operation}".
type OperationEvent struct {
	OperationID string `json:"operation_id,omitempty"`
	Operation   string `json:"operation"`
	Phase       string `json:"phase,omitempty"`
	State       string `json:"state"`
	Terminal    bool   `json:"terminal"`

	Signature string `json:"signature,omitempty"`
	Mint      string `json:"mint,omitempty"`

	// Set only on failure.
	Kind  string `json:"kind,omitempty"`
	Cause string `json:"cause,omitempty"`

	Timestamp   time.Time `json:"timestamp"`
	PublishedAt time.Time `json:"published_at"`
}

// Subject is where the event is published.
func (e *OperationEvent) Subject() string {
	return OperationSubjectPrefix + subjectToken(e.Operation)
}

// FromWalletEvent converts a workflow transition for publishing.
func FromWalletEvent(e wallet.Event) *OperationEvent {
	return &OperationEvent{
		OperationID: e.OperationID,
		Operation:   e.Operation,
		Phase:       e.Phase,
		State:       string(e.State),
		Terminal:    e.State.IsTerminal(),
		Signature:   e.Signature,
		Mint:        e.Mint,
		Kind:        string(e.Kind),
		Cause:       e.Cause,
		Timestamp:   e.Timestamp,
		PublishedAt: time.Now().UTC(),
	}
}

// QuoteEvent is an accepted quote published to "quotes.{from}.{to}".
type QuoteEvent struct {
	FromMint    string    `json:"from_mint"`
	FromSymbol  string    `json:"from_symbol"`
	ToMint      string    `json:"to_mint"`
	ToSymbol    string    `json:"to_symbol"`
	InAmount    string    `json:"in_amount"`
	OutAmount   string    `json:"out_amount"`
	MinOut      string    `json:"min_out_amount"`
	Price       string    `json:"price"`
	Source      string    `json:"source"`
	FetchedAt   time.Time `json:"fetched_at"`
	PublishedAt time.Time `json:"published_at"`
}

// Subject is where the event is published.
func (e *QuoteEvent) Subject() string {
	return fmt.Sprintf("%s%s.%s", QuoteSubjectPrefix, e.FromMint, e.ToMint)
}

// FromQuote converts a quote for publishing. Amounts are display units.
func FromQuote(q quote.Quote) *QuoteEvent {
	return &QuoteEvent{
		FromMint:    q.Params.From.Mint.String(),
		FromSymbol:  q.Params.From.Symbol,
		ToMint:      q.Params.To.Mint.String(),
		ToSymbol:    q.Params.To.Symbol,
		InAmount:    q.InAmount.String(),
		OutAmount:   q.OutAmount.String(),
		MinOut:      q.MinOutAmount.String(),
		Price:       q.Price(),
		Source:      q.Source,
		FetchedAt:   q.FetchedAt,
		PublishedAt: time.Now().UTC(),
	}
}

// NATS subject tokens cannot contain '.', '*', '>' or whitespace.
func subjectToken(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}
