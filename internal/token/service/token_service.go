package service

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"oureat/internal/domain"
	"oureat/internal/errors"
	"oureat/internal/infrastructure/mysql"
)

type TransactionManager interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (mysql.Tx, error)
}

type TokenRepository interface {
	BalanceOf(ctx context.Context, holder domain.Address) (uint64, error)
	Credit(ctx context.Context, q mysql.DBTX, holder domain.Address, amount uint64) error
	Debit(ctx context.Context, q mysql.DBTX, holder domain.Address, amount uint64) error
	TotalSupply(ctx context.Context) (uint64, error)
}

// TokenService is the reward-token ledger. Supply is fixed at genesis; every
// transfer is a paired debit/credit in one transaction, so the sum of
// balances never changes.
type TokenService struct {
	txm       TransactionManager
	repo      TokenRepository
	logger    *zap.Logger
	txTimeout time.Duration
}

func NewTokenService(txm TransactionManager, repo TokenRepository, logger *zap.Logger, txTimeout time.Duration) *TokenService {
	return &TokenService{
		txm:       txm,
		repo:      repo,
		logger:    logger,
		txTimeout: txTimeout,
	}
}

// Transfer moves amount from one holder to another. Fails with
// InsufficientBalance when the sender cannot cover it; no partial move is
// ever visible.
func (s *TokenService) Transfer(ctx context.Context, from, to domain.Address, amount uint64) error {
	if from.IsZero() || to.IsZero() {
		return errors.NewValidationError("transfer requires both holder addresses")
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.txm.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		s.logger.Error("failed to begin transaction", zap.Error(err))
		return err
	}
	defer tx.Rollback()

	if err := s.repo.Debit(txCtx, tx, from, amount); err != nil {
		return err
	}

	if err := s.repo.Credit(txCtx, tx, to, amount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit transfer", zap.Error(err))
		return err
	}

	s.logger.Info("token transfer committed",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Uint64("amount", amount))

	return nil
}

func (s *TokenService) BalanceOf(ctx context.Context, holder domain.Address) (uint64, error) {
	return s.repo.BalanceOf(ctx, holder)
}

func (s *TokenService) TotalSupply(ctx context.Context) (uint64, error) {
	return s.repo.TotalSupply(ctx)
}
