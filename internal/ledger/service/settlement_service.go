package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"oureat/internal/domain"
	"oureat/internal/dto"
	apperrors "oureat/internal/errors"
	"oureat/internal/infrastructure/mysql"
)

type TransactionManager interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (mysql.Tx, error)
}

type OrderRepository interface {
	AllocateOrderID(ctx context.Context, q mysql.DBTX) (uint64, error)
	Insert(ctx context.Context, q mysql.DBTX, order domain.Order) error
	InsertItems(ctx context.Context, q mysql.DBTX, orderID uint64, dishIDs, qtys []int64) error
	FindByIDForUpdate(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error)
	SetAccepted(ctx context.Context, q mysql.DBTX, id uint64, merchant domain.Address) error
	SetPicked(ctx context.Context, q mysql.DBTX, id uint64, rider domain.Address) error
	SetFulfilled(ctx context.Context, q mysql.DBTX, id uint64, platformFee uint64) error
}

type AccountRepository interface {
	Credit(ctx context.Context, q mysql.DBTX, holder domain.Address, amount uint64) error
	Debit(ctx context.Context, q mysql.DBTX, holder domain.Address, amount uint64) error
}

type TokenRepository interface {
	Credit(ctx context.Context, q mysql.DBTX, holder domain.Address, amount uint64) error
	Debit(ctx context.Context, q mysql.DBTX, holder domain.Address, amount uint64) error
}

type CredentialMinter interface {
	Mint(ctx context.Context, q mysql.DBTX, caller, to domain.Address, orderID uint64) (uint64, error)
}

// SettlementService is the order state machine. Every mutating operation is a
// single database transaction: the order row lock serializes racing
// transitions and the commit is the only point where any of its effects
// become visible.
type SettlementService struct {
	txm         TransactionManager
	orders      OrderRepository
	accounts    AccountRepository
	tokens      TokenRepository
	credentials CredentialMinter
	policy      domain.FeePolicy
	quantum     uint64
	ledger      domain.Address
	escrow      domain.Address
	platform    domain.Address
	logger      *zap.Logger
	txTimeout   time.Duration
}

type Accounts struct {
	Ledger   domain.Address
	Escrow   domain.Address
	Platform domain.Address
}

func NewSettlementService(
	txm TransactionManager,
	orders OrderRepository,
	accounts AccountRepository,
	tokens TokenRepository,
	credentials CredentialMinter,
	policy domain.FeePolicy,
	rewardQuantum uint64,
	wellKnown Accounts,
	logger *zap.Logger,
	txTimeout time.Duration,
) *SettlementService {
	return &SettlementService{
		txm:         txm,
		orders:      orders,
		accounts:    accounts,
		tokens:      tokens,
		credentials: credentials,
		policy:      policy,
		quantum:     rewardQuantum,
		ledger:      wellKnown.Ledger,
		escrow:      wellKnown.Escrow,
		platform:    wellKnown.Platform,
		logger:      logger,
		txTimeout:   txTimeout,
	}
}

// CreateOrder escrows the attached payment and appends a new order. The
// caller becomes the customer. Ids are sequential from zero; a rejected
// creation leaves the counter untouched because the allocation happens inside
// the rolled-back transaction.
func (s *SettlementService) CreateOrder(
	ctx context.Context,
	caller domain.Address,
	item string,
	dishIDs, qtys []int64,
	amount, payment uint64,
) (uint64, error) {
	if payment != amount {
		return 0, apperrors.NewEscrowMismatchError(
			fmt.Sprintf("attached payment %d does not match order amount %d", payment, amount))
	}

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.txm.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		s.logger.Error("failed to begin transaction", zap.Error(err))
		return 0, err
	}
	defer tx.Rollback()

	orderID, err := s.orders.AllocateOrderID(txCtx, tx)
	if err != nil {
		return 0, err
	}

	// Escrow: the customer funds the order up front.
	if err := s.accounts.Debit(txCtx, tx, caller, amount); err != nil {
		return 0, err
	}
	if err := s.accounts.Credit(txCtx, tx, s.escrow, amount); err != nil {
		return 0, err
	}

	order := domain.Order{
		ID:       orderID,
		Customer: caller,
		Item:     item,
		Amount:   amount,
	}
	if err := s.orders.Insert(txCtx, tx, order); err != nil {
		return 0, err
	}
	if len(dishIDs) > 0 {
		if err := s.orders.InsertItems(txCtx, tx, orderID, dishIDs, qtys); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit order creation", zap.Error(err))
		return 0, err
	}

	s.logger.Info("order created",
		zap.Uint64("orderId", orderID),
		zap.String("customer", string(caller)),
		zap.Uint64("amount", amount))

	return orderID, nil
}

// AcceptOrder records the caller as the order's merchant. Any merchant may
// accept; only the first acceptance wins.
func (s *SettlementService) AcceptOrder(ctx context.Context, caller domain.Address, orderID uint64) (*domain.Order, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.txm.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		s.logger.Error("failed to begin transaction", zap.Error(err))
		return nil, err
	}
	defer tx.Rollback()

	order, err := s.orders.FindByIDForUpdate(txCtx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.CanAccept() {
		s.logger.Warn("accept rejected", zap.Uint64("orderId", orderID), zap.String("status", order.Status()))
		return nil, apperrors.NewInvalidStateError(
			fmt.Sprintf("order %d is already accepted", orderID))
	}

	if err := s.orders.SetAccepted(txCtx, tx, orderID, caller); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit acceptance", zap.Error(err))
		return nil, err
	}

	order.Merchant = caller
	order.Accepted = true

	s.logger.Info("order accepted",
		zap.Uint64("orderId", orderID),
		zap.String("merchant", string(caller)))

	return order, nil
}

// PickOrder records the caller as the order's rider. Requires a prior
// acceptance; two riders racing for the same order serialize on the row lock
// and the second one fails here.
func (s *SettlementService) PickOrder(ctx context.Context, caller domain.Address, orderID uint64) (*domain.Order, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.txm.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		s.logger.Error("failed to begin transaction", zap.Error(err))
		return nil, err
	}
	defer tx.Rollback()

	order, err := s.orders.FindByIDForUpdate(txCtx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.CanPick() {
		s.logger.Warn("pick rejected", zap.Uint64("orderId", orderID), zap.String("status", order.Status()))
		if !order.Accepted {
			return nil, apperrors.NewInvalidStateError(
				fmt.Sprintf("order %d has not been accepted yet", orderID))
		}
		return nil, apperrors.NewInvalidStateError(
			fmt.Sprintf("order %d is already picked", orderID))
	}

	if err := s.orders.SetPicked(txCtx, tx, orderID, caller); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit pick", zap.Error(err))
		return nil, err
	}

	order.Rider = caller
	order.Picked = true

	s.logger.Info("order picked",
		zap.Uint64("orderId", orderID),
		zap.String("rider", string(caller)))

	return order, nil
}

// FulfillOrder is delivery confirmation and settlement in one atomic unit:
// flag the order, split the escrowed amount between merchant, rider and
// platform, pay the customer the reward quantum and mint the reputation
// credential. Any failed sub-step rolls the whole transaction back, flags
// included; in particular an exhausted reward pool blocks fulfillment rather
// than leaving a fulfilled order without its reward.
func (s *SettlementService) FulfillOrder(ctx context.Context, caller domain.Address, orderID uint64) (*dto.SettlementResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	tx, err := s.txm.BeginTx(txCtx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		s.logger.Error("failed to begin transaction", zap.Error(err))
		return nil, err
	}
	defer tx.Rollback()

	order, err := s.orders.FindByIDForUpdate(txCtx, tx, orderID)
	if err != nil {
		return nil, err
	}

	if !order.CanFulfill() {
		s.logger.Warn("fulfill rejected", zap.Uint64("orderId", orderID), zap.String("status", order.Status()))
		if order.Fulfilled {
			return nil, apperrors.NewInvalidStateError(
				fmt.Sprintf("order %d is already fulfilled", orderID))
		}
		return nil, apperrors.NewInvalidStateError(
			fmt.Sprintf("order %d has not been picked yet", orderID))
	}

	if caller != order.Rider {
		s.logger.Warn("fulfill by non-rider",
			zap.Uint64("orderId", orderID),
			zap.String("caller", string(caller)))
		return nil, apperrors.NewUnauthorizedError("only the assigned rider may confirm delivery")
	}

	settlement := s.policy.Split(order.Amount)

	if err := s.orders.SetFulfilled(txCtx, tx, orderID, settlement.PlatformFee); err != nil {
		return nil, err
	}

	// Release escrow three ways. The split conserves the amount exactly.
	if err := s.accounts.Debit(txCtx, tx, s.escrow, order.Amount); err != nil {
		return nil, err
	}
	if err := s.accounts.Credit(txCtx, tx, order.Merchant, settlement.MerchantPayout); err != nil {
		return nil, err
	}
	if err := s.accounts.Credit(txCtx, tx, order.Rider, settlement.RiderPayout); err != nil {
		return nil, err
	}
	if err := s.accounts.Credit(txCtx, tx, s.platform, settlement.PlatformFee); err != nil {
		return nil, err
	}

	// Reward quantum from the ledger's funded pool to the customer.
	if err := s.tokens.Debit(txCtx, tx, s.ledger, s.quantum); err != nil {
		if _, ok := apperrors.IsInsufficientBalanceError(err); ok {
			s.logger.Warn("reward pool exhausted", zap.Uint64("orderId", orderID))
			return nil, apperrors.NewInsufficientRewardPoolError(
				fmt.Sprintf("reward pool cannot cover quantum of %d", s.quantum))
		}
		return nil, err
	}
	if err := s.tokens.Credit(txCtx, tx, order.Customer, s.quantum); err != nil {
		return nil, err
	}

	credentialID, err := s.credentials.Mint(txCtx, tx, s.ledger, order.Customer, orderID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("failed to commit settlement", zap.Error(err))
		return nil, err
	}

	s.logger.Info("order fulfilled",
		zap.Uint64("orderId", orderID),
		zap.Uint64("platformFee", settlement.PlatformFee),
		zap.Uint64("merchantPayout", settlement.MerchantPayout),
		zap.Uint64("riderPayout", settlement.RiderPayout),
		zap.Uint64("credentialId", credentialID))

	return &dto.SettlementResult{
		OrderID:        orderID,
		PlatformFee:    settlement.PlatformFee,
		MerchantPayout: settlement.MerchantPayout,
		RiderPayout:    settlement.RiderPayout,
		RewardPaid:     s.quantum,
		CredentialID:   credentialID,
	}, nil
}
