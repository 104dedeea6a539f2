package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/ports"
)

// TransactionRepository implements ports.TransactionRepository. The
// ledger_transactions table is append-only: there is deliberately no update
// statement here.
type TransactionRepository struct {
	db ports.DBPort
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db ports.DBPort) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) executor(db ports.DBTX) ports.DBTX {
	if db != nil {
		return db
	}
	return r.db.GetDB()
}

const transactionColumns = `id, reference, from_account_id, to_account_id, amount, currency, kind, status, description, payout_id, created_at`

// Create appends a transaction to the log
func (r *TransactionRepository) Create(ctx context.Context, tx ports.DBTX, txn *models.Transaction) error {
	amount, err := decimalToNumeric(txn.Amount)
	if err != nil {
		return err
	}

	_, err = r.executor(tx).Exec(ctx, `
		INSERT INTO ledger_transactions
			(id, reference, from_account_id, to_account_id, amount, currency, kind, status, description, payout_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		txn.ID, txn.Reference, txn.FromAccountID, txn.ToAccountID, amount,
		txn.Currency, string(txn.Kind), string(txn.Status), nullText(txn.Description),
		nullUUID(txn.PayoutID), txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, db ports.DBTX, id uuid.UUID) (*models.Transaction, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM ledger_transactions WHERE id = $1`, id)
	return scanTransaction(row)
}

// GetByReference retrieves a transaction by its unique reference
func (r *TransactionRepository) GetByReference(ctx context.Context, db ports.DBTX, reference string) (*models.Transaction, error) {
	row := r.executor(db).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM ledger_transactions WHERE reference = $1`, reference)
	return scanTransaction(row)
}

// ListByPayout lists the transactions linked to one payout record
func (r *TransactionRepository) ListByPayout(ctx context.Context, db ports.DBTX, payoutID uuid.UUID) ([]*models.Transaction, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT `+transactionColumns+` FROM ledger_transactions
		 WHERE payout_id = $1 ORDER BY created_at ASC`, payoutID)
	if err != nil {
		return nil, fmt.Errorf("list transactions by payout: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// ListByAccount lists transactions touching an account, newest first
func (r *TransactionRepository) ListByAccount(ctx context.Context, db ports.DBTX, accountID uuid.UUID, limit, offset int32) ([]*models.Transaction, error) {
	rows, err := r.executor(db).Query(ctx,
		`SELECT `+transactionColumns+` FROM ledger_transactions
		 WHERE from_account_id = $1 OR to_account_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions by account: %w", err)
	}
	defer rows.Close()
	return collectTransactions(rows)
}

// CountCompletedInPeriod counts COMPLETED transactions created in [start, end)
func (r *TransactionRepository) CountCompletedInPeriod(ctx context.Context, db ports.DBTX, start, end time.Time) (int64, error) {
	var count int64
	err := r.executor(db).QueryRow(ctx,
		`SELECT count(*) FROM ledger_transactions
		 WHERE status = $1 AND created_at >= $2 AND created_at < $3`,
		string(models.TransactionCompleted), start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed transactions: %w", err)
	}
	return count, nil
}

func collectTransactions(rows pgx.Rows) ([]*models.Transaction, error) {
	var txns []*models.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	return txns, rows.Err()
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		txn         models.Transaction
		amount      pgtype.Numeric
		kind        string
		status      string
		description pgtype.Text
		payoutID    pgtype.UUID
	)
	err := row.Scan(&txn.ID, &txn.Reference, &txn.FromAccountID, &txn.ToAccountID,
		&amount, &txn.Currency, &kind, &status, &description, &payoutID, &txn.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.WrapError(domain.ErrorCodeDatabaseError, "transaction not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}

	txn.Kind = models.TransactionKind(kind)
	txn.Status = models.TransactionStatus(status)
	txn.Description = textValue(description)
	txn.PayoutID = uuidValue(payoutID)
	if txn.Amount, err = numericToDecimal(amount); err != nil {
		return nil, err
	}
	return &txn, nil
}
