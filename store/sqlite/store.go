// Package sqlite provides a SQLite-backed payment store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/vitwit/payments/store"
	"github.com/vitwit/payments/store/sqlite/migrations"
	"github.com/vitwit/payments/types"
	"github.com/vitwit/payments/utils"
	_ "modernc.org/sqlite"
)

// maxStoredID is the largest id a SQLite INTEGER column holds.
const maxStoredID = types.PaymentID(math.MaxInt64)

// Store persists payments in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens a SQLite payment store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One writer keeps the counter update and record writes serialized.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) NextID(ctx context.Context) (types.PaymentID, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin next id: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var last int64
	if err := tx.QueryRowContext(ctx, `SELECT last_id FROM payment_counter WHERE singleton = 1`).Scan(&last); err != nil {
		return 0, fmt.Errorf("read payment counter: %w", err)
	}
	if types.PaymentID(last) >= maxStoredID {
		return 0, store.ErrIDOverflow
	}
	next := last + 1
	if _, err := tx.ExecContext(ctx, `UPDATE payment_counter SET last_id = ? WHERE singleton = 1`, next); err != nil {
		return 0, fmt.Errorf("advance payment counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit next id: %w", err)
	}
	return types.PaymentID(next), nil
}

func (s *Store) Get(ctx context.Context, key types.PaymentKey) (*types.Payment, error) {
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT asset, amount, incentive_amount, status, cancel_at, fees
		   FROM payments
		  WHERE sender = ? AND beneficiary = ? AND payment_id = ?`,
		string(key.Sender), string(key.Beneficiary), int64(key.ID),
	)
	p, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", key, err)
	}
	return p, nil
}

func (s *Store) Put(ctx context.Context, key types.PaymentKey, payment *types.Payment) error {
	if payment == nil {
		return fmt.Errorf("payment is required")
	}
	if key.ID > maxStoredID {
		return store.ErrIDOverflow
	}
	fees, err := json.Marshal(payment.Fees)
	if err != nil {
		return fmt.Errorf("encode fees: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO payments (
		   sender, beneficiary, payment_id, asset, amount, incentive_amount,
		   status, cancel_at, fees, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (sender, beneficiary, payment_id) DO UPDATE SET
		   asset = excluded.asset,
		   amount = excluded.amount,
		   incentive_amount = excluded.incentive_amount,
		   status = excluded.status,
		   cancel_at = excluded.cancel_at,
		   fees = excluded.fees,
		   updated_at = excluded.updated_at`,
		string(key.Sender),
		string(key.Beneficiary),
		int64(key.ID),
		string(payment.Asset),
		utils.FormatBalance(payment.Amount),
		utils.FormatBalance(payment.IncentiveAmount),
		string(payment.State.Status),
		int64(payment.State.CancelAt),
		string(fees),
		time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("put payment %s: %w", key, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key types.PaymentKey) error {
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM payments WHERE sender = ? AND beneficiary = ? AND payment_id = ?`,
		string(key.Sender), string(key.Beneficiary), int64(key.ID),
	)
	if err != nil {
		return fmt.Errorf("remove payment %s: %w", key, err)
	}
	return requireAffected(res)
}

func (s *Store) Parties(ctx context.Context, id types.PaymentID) (types.Parties, error) {
	var sender, beneficiary string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT sender, beneficiary FROM payment_parties WHERE payment_id = ?`, int64(id),
	).Scan(&sender, &beneficiary)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Parties{}, store.ErrNotFound
	}
	if err != nil {
		return types.Parties{}, fmt.Errorf("get parties of %d: %w", id, err)
	}
	return types.Parties{Sender: types.AccountID(sender), Beneficiary: types.AccountID(beneficiary)}, nil
}

func (s *Store) PutParties(ctx context.Context, id types.PaymentID, parties types.Parties) error {
	if id > maxStoredID {
		return store.ErrIDOverflow
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO payment_parties (payment_id, sender, beneficiary) VALUES (?, ?, ?)
		 ON CONFLICT (payment_id) DO UPDATE SET sender = excluded.sender, beneficiary = excluded.beneficiary`,
		int64(id), string(parties.Sender), string(parties.Beneficiary),
	)
	if err != nil {
		return fmt.Errorf("put parties of %d: %w", id, err)
	}
	return nil
}

func (s *Store) RemoveParties(ctx context.Context, id types.PaymentID) error {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM payment_parties WHERE payment_id = ?`, int64(id))
	if err != nil {
		return fmt.Errorf("remove parties of %d: %w", id, err)
	}
	return requireAffected(res)
}

func (s *Store) ListBySender(ctx context.Context, sender types.AccountID) ([]store.Entry, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT sender, beneficiary, payment_id, asset, amount, incentive_amount, status, cancel_at, fees
		   FROM payments
		  WHERE sender = ?
		  ORDER BY payment_id`,
		string(sender),
	)
	if err != nil {
		return nil, fmt.Errorf("list payments of %s: %w", sender, err)
	}
	return scanEntries(rows)
}

func (s *Store) ListByStatus(ctx context.Context, status types.Status) ([]store.Entry, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT sender, beneficiary, payment_id, asset, amount, incentive_amount, status, cancel_at, fees
		   FROM payments
		  WHERE status = ?
		  ORDER BY payment_id`,
		string(status),
	)
	if err != nil {
		return nil, fmt.Errorf("list %s payments: %w", status, err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]store.Entry, error) {
	defer rows.Close()

	var out []store.Entry
	for rows.Next() {
		var sender, beneficiary string
		var id int64
		var asset, amount, incentive, status, fees string
		var cancelAt int64
		if err := rows.Scan(&sender, &beneficiary, &id, &asset, &amount, &incentive, &status, &cancelAt, &fees); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p, err := decodePayment(asset, amount, incentive, status, cancelAt, fees)
		if err != nil {
			return nil, err
		}
		out = append(out, store.Entry{
			Key: types.PaymentKey{
				Sender:      types.AccountID(sender),
				Beneficiary: types.AccountID(beneficiary),
				ID:          types.PaymentID(id),
			},
			Payment: p,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return out, nil
}

func scanPayment(row *sql.Row) (*types.Payment, error) {
	var asset, amount, incentive, status, fees string
	var cancelAt int64
	if err := row.Scan(&asset, &amount, &incentive, &status, &cancelAt, &fees); err != nil {
		return nil, err
	}
	return decodePayment(asset, amount, incentive, status, cancelAt, fees)
}

func decodePayment(asset, amount, incentive, status string, cancelAt int64, fees string) (*types.Payment, error) {
	amt, err := utils.ParseBalance(amount)
	if err != nil {
		return nil, fmt.Errorf("decode amount: %w", err)
	}
	inc, err := utils.ParseBalance(incentive)
	if err != nil {
		return nil, fmt.Errorf("decode incentive: %w", err)
	}
	p := &types.Payment{
		Asset:           types.AssetID(asset),
		Amount:          amt,
		IncentiveAmount: inc,
		State:           types.State{Status: types.Status(status), CancelAt: types.BlockNumber(cancelAt)},
	}
	if err := json.Unmarshal([]byte(fees), &p.Fees); err != nil {
		return nil, fmt.Errorf("decode fees: %w", err)
	}
	return p, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
