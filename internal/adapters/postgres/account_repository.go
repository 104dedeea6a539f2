package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/ports"
)

// AccountRepository implements ports.AccountRepository with hand-written SQL
// over pgx.
type AccountRepository struct {
	db ports.DBPort
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db ports.DBPort) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) executor(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db.GetDB()
}

const accountColumns = `id, owner_ref, kind, balance, currency, active, created_at, updated_at`

// Create inserts a new account. A duplicate (owner_ref, kind) insert is a
// no-op so concurrent lazy creation converges on one row.
func (r *AccountRepository) Create(ctx context.Context, tx ports.DBTX, account *models.Account) error {
	balance, err := decimalToNumeric(account.Balance)
	if err != nil {
		return err
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO accounts (id, owner_ref, kind, balance, currency, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (owner_ref, kind) DO NOTHING`,
		account.ID, account.OwnerRef, string(account.Kind), balance,
		account.Currency, account.Active, account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// GetByID retrieves an account by its ID
func (r *AccountRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*models.Account, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	return scanAccount(row, id.String())
}

// GetForUpdate reads an account row under FOR UPDATE. The row lock serializes
// concurrent transfers touching the account until the surrounding transaction
// ends.
func (r *AccountRepository) GetForUpdate(ctx context.Context, tx ports.DBTX, id uuid.UUID) (*models.Account, error) {
	if tx == nil {
		return nil, fmt.Errorf("get account for update: transaction required")
	}
	row := tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id)
	return scanAccount(row, id.String())
}

// GetByOwnerAndKind retrieves the account for an owner/kind pair
func (r *AccountRepository) GetByOwnerAndKind(ctx context.Context, db ports.DBTX, ownerRef string, kind models.AccountKind) (*models.Account, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE owner_ref = $1 AND kind = $2`,
		ownerRef, string(kind))
	return scanAccount(row, fmt.Sprintf("%s/%s", ownerRef, kind))
}

// UpdateBalance overwrites the stored balance for an account
func (r *AccountRepository) UpdateBalance(ctx context.Context, tx ports.DBTX, id uuid.UUID, balance decimal.Decimal) error {
	numeric, err := decimalToNumeric(balance)
	if err != nil {
		return err
	}

	tag, err := r.executor(tx).Exec(ctx,
		`UPDATE accounts SET balance = $2, updated_at = now() WHERE id = $1`,
		id, numeric)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound.WithDetail("account_id", id.String())
	}
	return nil
}

// SetActive flips the active flag on an account
func (r *AccountRepository) SetActive(ctx context.Context, tx ports.DBTX, id uuid.UUID, active bool) error {
	tag, err := r.executor(tx).Exec(ctx,
		`UPDATE accounts SET active = $2, updated_at = now() WHERE id = $1`,
		id, active)
	if err != nil {
		return fmt.Errorf("set account active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound.WithDetail("account_id", id.String())
	}
	return nil
}

// ListByKind lists accounts of one kind, newest first
func (r *AccountRepository) ListByKind(ctx context.Context, db ports.DBTX, kind models.AccountKind, limit, offset int32) ([]*models.Account, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE kind = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		string(kind), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list accounts by kind: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		account, err := scanAccount(rows, string(kind))
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner, ref string) (*models.Account, error) {
	var (
		account models.Account
		kind    string
		balance pgtype.Numeric
	)
	err := row.Scan(&account.ID, &account.OwnerRef, &kind, &balance,
		&account.Currency, &account.Active, &account.CreatedAt, &account.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrAccountNotFound.WithDetail("account", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}

	account.Kind = models.AccountKind(kind)
	if account.Balance, err = numericToDecimal(balance); err != nil {
		return nil, err
	}
	return &account, nil
}
