package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/accountcore/account"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const accountColumns = `id, email, dni, first_name, last_name, password_hash, role,
		failed_attempts, lock_until, two_factor_enabled, two_factor_code, two_factor_expires,
		reset_token_used, password_changed_at, created_at, updated_at`

// DBTX is the subset of database/sql used by the queries.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Options configures a Store.
type Options struct {
	Now func() time.Time
}

// Store keeps accounts and revoked-token digests in PostgreSQL.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ account.Store = (*Store)(nil)

// New returns a Store using db. Run Migrate first.
func New(db *sql.DB, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{db: db, now: opts.Now}
}

func (s *Store) FindByEmail(ctx context.Context, email string) (account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, normalizeEmail(email)))
}

func (s *Store) FindByID(ctx context.Context, id string) (account.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(s.db.QueryRowContext(ctx, query, id))
}

// Create inserts acc. An empty ID is replaced with a random UUID.
func (s *Store) Create(ctx context.Context, acc account.Account) (account.Account, error) {
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	acc.Email = normalizeEmail(acc.Email)
	now := s.now().UTC()
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = now
	}
	acc.UpdatedAt = now

	query :=
		`INSERT INTO accounts (` + accountColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := s.db.ExecContext(ctx, query,
		acc.ID, acc.Email, nullInt64(acc.DNI), acc.FirstName, acc.LastName, acc.PasswordHash, string(acc.Role),
		acc.FailedAttempts, nullTime(acc.LockUntil), acc.TwoFactorEnabled, nullInt64(int64(acc.TwoFactorCode)), nullTime(acc.TwoFactorExpires),
		acc.ResetTokenUsed, nullTime(acc.PasswordChangedAt), acc.CreatedAt, acc.UpdatedAt)
	if err != nil {
		return account.Account{}, mapWriteError(err)
	}
	return acc, nil
}

// Update locks the row with SELECT ... FOR UPDATE, applies mutate and writes
// the row and revocations before COMMIT.
func (s *Store) Update(ctx context.Context, id string, mutate account.Mutation) (account.Account, error) {
	var result account.Account

	err := withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`
		current, err := scanAccount(tx.QueryRowContext(ctx, query, id))
		if err != nil {
			return err
		}

		next := current
		revocations, err := mutate(&next)
		if err != nil {
			return err
		}
		next.ID = current.ID
		next.Email = normalizeEmail(next.Email)
		next.CreatedAt = current.CreatedAt
		next.UpdatedAt = s.now().UTC()

		update :=
			`UPDATE accounts SET email = $2, dni = $3, first_name = $4, last_name = $5,
			 password_hash = $6, role = $7, failed_attempts = $8, lock_until = $9,
			 two_factor_enabled = $10, two_factor_code = $11, two_factor_expires = $12,
			 reset_token_used = $13, password_changed_at = $14, updated_at = $15
			 WHERE id = $1`
		_, err = tx.ExecContext(ctx, update,
			next.ID, next.Email, nullInt64(next.DNI), next.FirstName, next.LastName,
			next.PasswordHash, string(next.Role), next.FailedAttempts, nullTime(next.LockUntil),
			next.TwoFactorEnabled, nullInt64(int64(next.TwoFactorCode)), nullTime(next.TwoFactorExpires),
			next.ResetTokenUsed, nullTime(next.PasswordChangedAt), next.UpdatedAt)
		if err != nil {
			return mapWriteError(err)
		}

		if err := insertRevocations(ctx, tx, revocations); err != nil {
			return err
		}

		result = next
		return nil
	})
	if err != nil {
		return account.Account{}, err
	}
	return result, nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

// Destroy deletes the row and writes revocations in one transaction.
func (s *Store) Destroy(ctx context.Context, id string, revocations ...account.Revocation) error {
	return withTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if n == 0 {
			return account.ErrNotFound
		}
		return insertRevocations(ctx, tx, revocations)
	})
}

// Revoke inserts revocation digests; duplicates are ignored.
func (s *Store) Revoke(ctx context.Context, revocations ...account.Revocation) error {
	return insertRevocations(ctx, s.db, revocations)
}

func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	var revoked bool
	query := `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_digest = $1)`
	if err := s.db.QueryRowContext(ctx, query, account.TokenDigest(token)).Scan(&revoked); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return revoked, nil
}

// PurgeRevoked deletes entries whose token has expired and returns how many
// were removed.
func (s *Store) PurgeRevoked(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at IS NOT NULL AND expires_at < $1`, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func insertRevocations(ctx context.Context, db DBTX, revocations []account.Revocation) error {
	query :=
		`INSERT INTO revoked_tokens (token_digest, expires_at)
		 VALUES ($1, $2)
		 ON CONFLICT (token_digest) DO NOTHING`
	for _, r := range revocations {
		if r.Token == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, query, account.TokenDigest(r.Token), nullTime(r.ExpiresAt)); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}
	return nil
}

// withTx begins a transaction, runs fn and commits on success or rolls
// back on error or panic. Panics are rethrown.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("db error: %w", cerr)
		}
	}()

	return fn(ctx, tx)
}

func scanAccount(row *sql.Row) (account.Account, error) {
	var (
		acc                                         account.Account
		role                                        string
		dni, code                                   sql.NullInt64
		lockUntil, twoFactorExpires, passwordChange sql.NullTime
	)
	err := row.Scan(
		&acc.ID, &acc.Email, &dni, &acc.FirstName, &acc.LastName, &acc.PasswordHash, &role,
		&acc.FailedAttempts, &lockUntil, &acc.TwoFactorEnabled, &code, &twoFactorExpires,
		&acc.ResetTokenUsed, &passwordChange, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return account.Account{}, account.ErrNotFound
		}
		return account.Account{}, fmt.Errorf("db error: %w", err)
	}

	acc.Role = account.Role(role)
	acc.DNI = dni.Int64
	acc.TwoFactorCode = int(code.Int64)
	acc.LockUntil = fromNullTime(lockUntil)
	acc.TwoFactorExpires = fromNullTime(twoFactorExpires)
	acc.PasswordChangedAt = fromNullTime(passwordChange)
	acc.CreatedAt = acc.CreatedAt.UTC()
	acc.UpdatedAt = acc.UpdatedAt.UTC()
	return acc, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return account.ErrConflict
	}
	return fmt.Errorf("db error: %w", err)
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}

func nullInt64(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
