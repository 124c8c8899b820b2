// Package db persists the registry of mints created by the custodian along
// with the issued supply and issue state of each.
package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"time"

	"github.com/brojonat/solwallet/service/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// ErrNotFound is returned when a mint is not in the registry.
var ErrNotFound = errors.New("not found")

// Issue states stored on a mint.
const (
	IssueStatePending = "pending"
	IssueStateIssued  = "issued"
	IssueStateFailed  = "failed"
)

// Store provides database operations for the service.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithMetrics records query timings on m.
func (s *Store) WithMetrics(m *metrics.Metrics) *Store {
	s.metrics = m
	return s
}

// Migrate applies the embedded schema files in name order. Every statement
// is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	names, err := fs.Glob(schemaFS, "schema/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list schema files: %w", err)
	}
	sort.Strings(names)
	for _, name := range names {
		sql, err := schemaFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if _, err := s.pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("failed to apply %s: %w", name, err)
		}
	}
	return nil
}

// Mint is a token mint created by the custodian.
type Mint struct {
	Address         string
	Network         string
	Name            string
	Symbol          string
	Decimals        uint8
	Authority       string
	CreateSignature string
	IssuedSupply    uint64 // base units
	IssueState      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateMintParams contains the parameters for registering a mint.
type CreateMintParams struct {
	Address         string
	Network         string
	Name            string
	Symbol          string
	Decimals        uint8
	Authority       string
	CreateSignature string
}

// RecordIssueParams contains the outcome of one issuance against a mint.
type RecordIssueParams struct {
	Mint      string
	Network   string
	Amount    uint64 // base units
	Succeeded bool
}

// ListMintsParams contains pagination parameters.
type ListMintsParams struct {
	Network string
	Limit   int32
	Offset  int32
}

const mintColumns = `address, network, name, symbol, decimals, authority, create_signature,
	issued_supply::text, issue_state, created_at, updated_at`

// CreateMint registers a mint. Registering the same mint twice updates its
// metadata and keeps its issuance state.
func (s *Store) CreateMint(ctx context.Context, params CreateMintParams) (*Mint, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO mints (address, network, name, symbol, decimals, authority, create_signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (address, network) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			updated_at = now()
		RETURNING `+mintColumns,
		params.Address, params.Network, params.Name, params.Symbol,
		int16(params.Decimals), params.Authority, params.CreateSignature,
	)
	m, err := scanMint(row)
	s.record("create_mint", "mints", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to create mint: %w", err)
	}
	return m, nil
}

// GetMint retrieves a mint by address and network.
func (s *Store) GetMint(ctx context.Context, address, network string) (*Mint, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `SELECT `+mintColumns+` FROM mints WHERE address = $1 AND network = $2`, address, network)
	m, err := scanMint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		s.record("get_mint", "mints", start, nil)
		return nil, ErrNotFound
	}
	s.record("get_mint", "mints", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to get mint: %w", err)
	}
	return m, nil
}

// ListMints returns mints for a network, newest first.
func (s *Store) ListMints(ctx context.Context, params ListMintsParams) ([]*Mint, error) {
	if params.Limit <= 0 {
		params.Limit = 100
	}
	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT `+mintColumns+` FROM mints
		WHERE network = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		params.Network, params.Limit, params.Offset,
	)
	if err != nil {
		s.record("list_mints", "mints", start, err)
		return nil, fmt.Errorf("failed to list mints: %w", err)
	}
	mints, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Mint, error) {
		return scanMint(row)
	})
	s.record("list_mints", "mints", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to list mints: %w", err)
	}
	return mints, nil
}

// RecordIssue updates the mint row in place. A success adds the amount to
// the issued supply; a failure only marks the mint failed if nothing has been
// issued yet. Returns ErrNotFound when the mint is not in the registry.
func (s *Store) RecordIssue(ctx context.Context, params RecordIssueParams) (*Mint, error) {
	start := time.Now()
	var row pgx.Row
	if params.Succeeded {
		row = s.pool.QueryRow(ctx, `
			UPDATE mints SET issued_supply = issued_supply + $3::numeric, issue_state = $4, updated_at = now()
			WHERE address = $1 AND network = $2
			RETURNING `+mintColumns,
			params.Mint, params.Network, strconv.FormatUint(params.Amount, 10), IssueStateIssued)
	} else {
		row = s.pool.QueryRow(ctx, `
			UPDATE mints SET
				issue_state = CASE WHEN issue_state = $3 THEN issue_state ELSE $4 END,
				updated_at = now()
			WHERE address = $1 AND network = $2
			RETURNING `+mintColumns,
			params.Mint, params.Network, IssueStateIssued, IssueStateFailed)
	}
	m, err := scanMint(row)
	if errors.Is(err, pgx.ErrNoRows) {
		s.record("record_issue", "mints", start, nil)
		return nil, ErrNotFound
	}
	s.record("record_issue", "mints", start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to record issue: %w", err)
	}
	return m, nil
}

func (s *Store) record(op, table string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(op, table, time.Since(start).Seconds(), err)
	}
}

func scanMint(row pgx.Row) (*Mint, error) {
	var (
		m        Mint
		decimals int16
		supply   string
	)
	if err := row.Scan(
		&m.Address, &m.Network, &m.Name, &m.Symbol, &decimals, &m.Authority,
		&m.CreateSignature, &supply, &m.IssueState, &m.CreatedAt, &m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	m.Decimals = uint8(decimals)
	n, err := strconv.ParseUint(supply, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid issued supply %q: %w", supply, err)
	}
	m.IssuedSupply = n
	return &m, nil
}
