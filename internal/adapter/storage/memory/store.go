// Package memory is an in-process implementation of the persistence ports.
// It backs the "memory" database driver and the concurrency tests.
//
// A transaction holds the store-wide lock from Begin until Commit or
// Rollback, so units of work are serialized. Methods that take a pgx.Tx
// assume the lock is held; methods without one acquire it themselves and
// must not be called while the same goroutine has a transaction open.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"yield-ledger/internal/core/domain"
	"yield-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type payoutKey struct {
	userID   uuid.UUID
	currency string
}

type tables struct {
	investments map[uuid.UUID]domain.Investment
	ledger      map[uuid.UUID]domain.LedgerEntry
	withdrawals map[uuid.UUID]domain.Withdrawal
	audit       []domain.AuditLog
}

func (t tables) clone() tables {
	c := tables{
		investments: make(map[uuid.UUID]domain.Investment, len(t.investments)),
		ledger:      make(map[uuid.UUID]domain.LedgerEntry, len(t.ledger)),
		withdrawals: make(map[uuid.UUID]domain.Withdrawal, len(t.withdrawals)),
		audit:       append([]domain.AuditLog(nil), t.audit...),
	}
	for k, v := range t.investments {
		c.investments[k] = v
	}
	for k, v := range t.ledger {
		c.ledger[k] = v
	}
	for k, v := range t.withdrawals {
		c.withdrawals[k] = v
	}
	return c
}

// Store holds every table behind one mutex.
type Store struct {
	mu sync.Mutex
	tables

	accounts   map[uuid.UUID]domain.Account
	payouts    map[payoutKey]string
	plans      map[uuid.UUID]domain.Plan
	currencies map[string]domain.SupportedCurrency
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		tables: tables{
			investments: make(map[uuid.UUID]domain.Investment),
			ledger:      make(map[uuid.UUID]domain.LedgerEntry),
			withdrawals: make(map[uuid.UUID]domain.Withdrawal),
		},
		accounts:   make(map[uuid.UUID]domain.Account),
		payouts:    make(map[payoutKey]string),
		plans:      make(map[uuid.UUID]domain.Plan),
		currencies: make(map[string]domain.SupportedCurrency),
	}
}

// PutAccount inserts or replaces an account and its payout addresses.
func (s *Store) PutAccount(a domain.Account, addresses map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.ID] = a
	for cur, addr := range addresses {
		s.payouts[payoutKey{a.ID, strings.ToUpper(cur)}] = addr
	}
}

// PutPlan inserts or replaces a plan.
func (s *Store) PutPlan(p domain.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[p.ID] = p
}

// PutCurrency inserts or replaces a supported currency.
func (s *Store) PutCurrency(c domain.SupportedCurrency) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Symbol = strings.ToUpper(c.Symbol)
	s.currencies[c.Symbol] = c
}

// AuditLogs returns a copy of every recorded audit log.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditLog(nil), s.audit...)
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return nil }

// Name returns the component name for health reporting.
func (s *Store) Name() string { return "memory" }

// Transactor implements ports.DBTransactor over a Store.
type Transactor struct {
	s *Store
}

// NewTransactor creates a transactor for s.
func NewTransactor(s *Store) *Transactor {
	return &Transactor{s: s}
}

// Begin locks the store and snapshots it for rollback.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.s.mu.Lock()
	return &memTx{s: t.s, snapshot: t.s.tables.clone()}, nil
}

// memTx is a pgx.Tx whose only meaningful operations are Commit and Rollback.
type memTx struct {
	s        *Store
	snapshot tables
	done     bool
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.s.mu.Unlock()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.s.tables = t.snapshot
	t.s.mu.Unlock()
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *memTx) Conn() *pgx.Conn                                               { return nil }

func paginate[T any](items []T, params ports.ListParams) []T {
	start := params.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + params.PageSize
	if params.PageSize <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func sortByMaturity(invs []domain.Investment) {
	sort.Slice(invs, func(i, j int) bool {
		mi, mj := invs[i].MaturesAt, invs[j].MaturesAt
		if mi != nil && mj != nil && !mi.Equal(*mj) {
			return mi.Before(*mj)
		}
		return invs[i].ID.String() < invs[j].ID.String()
	})
}
