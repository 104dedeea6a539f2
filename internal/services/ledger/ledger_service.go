package ledger

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/models"
	"github.com/ChrisMasinaAtLazyConcepts/rubhub-backend/internal/domain/ports"
)

// Config holds ledger policy knobs.
type Config struct {
	// AllowHoldingOverdraft lets the holding account run a temporary negative
	// float when the platform pre-funds it out of band. Provider and platform
	// accounts are always checked strictly.
	AllowHoldingOverdraft bool
	// Currency is the ledger's single operating currency.
	Currency string
}

// Service is the ledger store: the only component allowed to mutate account
// balances. Every movement of value goes through Transfer; there are no ad
// hoc balance edits.
type Service struct {
	db           ports.DBPort
	accounts     ports.AccountRepository
	transactions ports.TransactionRepository
	cfg          Config
	logger       *zap.Logger
}

// NewService creates a new ledger service
func NewService(db ports.DBPort, accounts ports.AccountRepository, transactions ports.TransactionRepository, cfg Config, logger *zap.Logger) *Service {
	return &Service{
		db:           db,
		accounts:     accounts,
		transactions: transactions,
		cfg:          cfg,
		logger:       logger,
	}
}

// Transfer debits the source, credits the destination and appends a COMPLETED
// transaction, all inside one database transaction with both account rows
// locked, so no partial balance change is ever observable. On a ledger-level
// failure no balances move and a FAILED transaction is retained for audit.
func (s *Service) Transfer(ctx context.Context, params ports.TransferParams) (*models.Transaction, error) {
	if !params.Amount.IsPositive() {
		return nil, domain.ErrValidationAmountInvalid.WithDetail("amount", params.Amount.String())
	}
	if params.FromAccountID == params.ToAccountID {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "source and destination accounts must differ")
	}

	txn := &models.Transaction{
		ID:            uuid.New(),
		Reference:     models.NewTransactionReference(),
		FromAccountID: params.FromAccountID,
		ToAccountID:   params.ToAccountID,
		Amount:        params.Amount,
		Currency:      s.cfg.Currency,
		Kind:          params.Kind,
		Status:        models.TransactionPending,
		Description:   params.Description,
		PayoutID:      params.PayoutID,
		CreatedAt:     time.Now().UTC(),
	}

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		from, to, err := s.lockAccounts(ctx, tx, params.FromAccountID, params.ToAccountID)
		if err != nil {
			return err
		}

		if !from.Active {
			return domain.ErrAccountInactive.WithDetail("account", from.OwnerRef)
		}
		if !to.Active {
			return domain.ErrAccountInactive.WithDetail("account", to.OwnerRef)
		}
		if !from.CanDebit(params.Amount, s.cfg.AllowHoldingOverdraft) {
			return domain.ErrAccountInsufficientBalance.
				WithDetail("account", from.OwnerRef).
				WithDetail("balance", from.Balance.String()).
				WithDetail("amount", params.Amount.String())
		}

		if err := s.accounts.UpdateBalance(ctx, tx, from.ID, from.Balance.Sub(params.Amount)); err != nil {
			return err
		}
		if err := s.accounts.UpdateBalance(ctx, tx, to.ID, to.Balance.Add(params.Amount)); err != nil {
			return err
		}

		txn.Status = models.TransactionCompleted
		return s.transactions.Create(ctx, tx, txn)
	})
	if err != nil {
		if domain.IsLedgerError(err) {
			s.recordFailedTransfer(ctx, txn, err)
		}
		s.logger.Warn("transfer failed",
			zap.String("reference", txn.Reference),
			zap.String("kind", string(params.Kind)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("transfer completed",
		zap.String("reference", txn.Reference),
		zap.String("kind", string(params.Kind)),
		zap.String("amount", params.Amount.String()))
	return txn, nil
}

// lockAccounts acquires both row locks in a fixed ID order so two opposing
// transfers cannot deadlock.
func (s *Service) lockAccounts(ctx context.Context, tx pgx.Tx, fromID, toID uuid.UUID) (from, to *models.Account, err error) {
	first, second := fromID, toID
	if bytes.Compare(second[:], first[:]) < 0 {
		first, second = second, first
	}

	firstAcc, err := s.accounts.GetForUpdate(ctx, tx, first)
	if err != nil {
		return nil, nil, err
	}
	secondAcc, err := s.accounts.GetForUpdate(ctx, tx, second)
	if err != nil {
		return nil, nil, err
	}

	if firstAcc.ID == fromID {
		return firstAcc, secondAcc, nil
	}
	return secondAcc, firstAcc, nil
}

// recordFailedTransfer appends the FAILED transaction outside the rolled-back
// transfer so the attempt stays auditable. Best effort: a failure here is
// logged, not surfaced.
func (s *Service) recordFailedTransfer(ctx context.Context, txn *models.Transaction, cause error) {
	txn.Status = models.TransactionFailed
	txn.Description = fmt.Sprintf("%s (failed: %v)", txn.Description, cause)
	if err := s.transactions.Create(ctx, nil, txn); err != nil {
		s.logger.Error("failed to record FAILED transaction",
			zap.String("reference", txn.Reference),
			zap.Error(err))
	}
}

// GetOrCreateAccount resolves the account for an owner/kind pair, creating it
// on first use. Idempotent: the same pair always resolves to the same account.
func (s *Service) GetOrCreateAccount(ctx context.Context, ownerRef string, kind models.AccountKind) (*models.Account, error) {
	account, err := s.accounts.GetByOwnerAndKind(ctx, nil, ownerRef, kind)
	if err == nil {
		return account, nil
	}
	if !domain.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	fresh := &models.Account{
		ID:        uuid.New(),
		OwnerRef:  ownerRef,
		Kind:      kind,
		Balance:   decimal.Zero,
		Currency:  s.cfg.Currency,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.accounts.Create(ctx, nil, fresh); err != nil {
		return nil, err
	}

	// Re-read: a concurrent creator may have won the insert race.
	account, err = s.accounts.GetByOwnerAndKind(ctx, nil, ownerRef, kind)
	if err != nil {
		return nil, err
	}
	if account.ID == fresh.ID {
		s.logger.Info("account created",
			zap.String("owner_ref", ownerRef),
			zap.String("kind", string(kind)))
	}
	return account, nil
}

// GetAccountByOwnerAndKind resolves an existing account without creating it.
// Used for the shared holding and platform accounts, which must be
// provisioned up front.
func (s *Service) GetAccountByOwnerAndKind(ctx context.Context, ownerRef string, kind models.AccountKind) (*models.Account, error) {
	return s.accounts.GetByOwnerAndKind(ctx, nil, ownerRef, kind)
}

// GetAccount retrieves an account by ID
func (s *Service) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return s.accounts.GetByID(ctx, nil, id)
}

// DeactivateAccount takes an account out of service. Accounts are never
// deleted.
func (s *Service) DeactivateAccount(ctx context.Context, id uuid.UUID) error {
	return s.accounts.SetActive(ctx, nil, id, false)
}

// ReactivateAccount puts a deactivated account back in service
func (s *Service) ReactivateAccount(ctx context.Context, id uuid.UUID) error {
	return s.accounts.SetActive(ctx, nil, id, true)
}

// ListAccounts lists accounts of one kind for the operator surface
func (s *Service) ListAccounts(ctx context.Context, kind models.AccountKind, limit, offset int32) ([]*models.Account, error) {
	return s.accounts.ListByKind(ctx, nil, kind, limit, offset)
}

// ListAccountTransactions lists the ledger entries touching an account
func (s *Service) ListAccountTransactions(ctx context.Context, accountID uuid.UUID, limit, offset int32) ([]*models.Transaction, error) {
	return s.transactions.ListByAccount(ctx, nil, accountID, limit, offset)
}
