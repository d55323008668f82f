package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"oureat/internal/domain"
	apperrors "oureat/internal/errors"
	"oureat/internal/infrastructure/mysql"
)

// Fake transaction: satisfies mysql.Tx, records commit/rollback.

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (f *fakeTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return nil, nil
}

func (f *fakeTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return nil, nil
}

func (f *fakeTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return nil
}

func (f *fakeTx) Commit() error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback() error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type mockTxManager struct {
	tx         *fakeTx
	beginCalls int
}

func (m *mockTxManager) BeginTx(ctx context.Context, opts *sql.TxOptions) (mysql.Tx, error) {
	m.beginCalls++
	return m.tx, nil
}

// Mock repositories in the usual func-field style.

type mockOrderRepository struct {
	AllocateOrderIDFunc   func(ctx context.Context, q mysql.DBTX) (uint64, error)
	InsertFunc            func(ctx context.Context, q mysql.DBTX, order domain.Order) error
	InsertItemsFunc       func(ctx context.Context, q mysql.DBTX, orderID uint64, dishIDs, qtys []int64) error
	FindByIDForUpdateFunc func(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error)
	SetAcceptedFunc       func(ctx context.Context, q mysql.DBTX, id uint64, merchant domain.Address) error
	SetPickedFunc         func(ctx context.Context, q mysql.DBTX, id uint64, rider domain.Address) error
	SetFulfilledFunc      func(ctx context.Context, q mysql.DBTX, id uint64, platformFee uint64) error
}

func (m *mockOrderRepository) AllocateOrderID(ctx context.Context, q mysql.DBTX) (uint64, error) {
	return m.AllocateOrderIDFunc(ctx, q)
}

func (m *mockOrderRepository) Insert(ctx context.Context, q mysql.DBTX, order domain.Order) error {
	return m.InsertFunc(ctx, q, order)
}

func (m *mockOrderRepository) InsertItems(ctx context.Context, q mysql.DBTX, orderID uint64, dishIDs, qtys []int64) error {
	return m.InsertItemsFunc(ctx, q, orderID, dishIDs, qtys)
}

func (m *mockOrderRepository) FindByIDForUpdate(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error) {
	return m.FindByIDForUpdateFunc(ctx, q, id)
}

func (m *mockOrderRepository) SetAccepted(ctx context.Context, q mysql.DBTX, id uint64, merchant domain.Address) error {
	return m.SetAcceptedFunc(ctx, q, id, merchant)
}

func (m *mockOrderRepository) SetPicked(ctx context.Context, q mysql.DBTX, id uint64, rider domain.Address) error {
	return m.SetPickedFunc(ctx, q, id, rider)
}

func (m *mockOrderRepository) SetFulfilled(ctx context.Context, q mysql.DBTX, id uint64, platformFee uint64) error {
	return m.SetFulfilledFunc(ctx, q, id, platformFee)
}

// ledgerMove records a balance movement for conservation assertions.
type ledgerMove struct {
	holder domain.Address
	amount uint64
	credit bool
}

type mockBalanceRepository struct {
	moves    []ledgerMove
	DebitErr func(holder domain.Address, amount uint64) error
}

func (m *mockBalanceRepository) Credit(ctx context.Context, q mysql.DBTX, holder domain.Address, amount uint64) error {
	m.moves = append(m.moves, ledgerMove{holder: holder, amount: amount, credit: true})
	return nil
}

func (m *mockBalanceRepository) Debit(ctx context.Context, q mysql.DBTX, holder domain.Address, amount uint64) error {
	if m.DebitErr != nil {
		if err := m.DebitErr(holder, amount); err != nil {
			return err
		}
	}
	m.moves = append(m.moves, ledgerMove{holder: holder, amount: amount})
	return nil
}

type mockCredentialMinter struct {
	MintFunc func(ctx context.Context, q mysql.DBTX, caller, to domain.Address, orderID uint64) (uint64, error)
}

func (m *mockCredentialMinter) Mint(ctx context.Context, q mysql.DBTX, caller, to domain.Address, orderID uint64) (uint64, error) {
	return m.MintFunc(ctx, q, caller, to, orderID)
}

type fixture struct {
	svc         *SettlementService
	txm         *mockTxManager
	orders      *mockOrderRepository
	accounts    *mockBalanceRepository
	tokens      *mockBalanceRepository
	credentials *mockCredentialMinter
}

func newFixture() *fixture {
	f := &fixture{
		txm:      &mockTxManager{tx: &fakeTx{}},
		orders:   &mockOrderRepository{},
		accounts: &mockBalanceRepository{},
		tokens:   &mockBalanceRepository{},
		credentials: &mockCredentialMinter{
			MintFunc: func(ctx context.Context, q mysql.DBTX, caller, to domain.Address, orderID uint64) (uint64, error) {
				return 0, nil
			},
		},
	}

	f.orders.AllocateOrderIDFunc = func(ctx context.Context, q mysql.DBTX) (uint64, error) { return 0, nil }
	f.orders.InsertFunc = func(ctx context.Context, q mysql.DBTX, order domain.Order) error { return nil }
	f.orders.InsertItemsFunc = func(ctx context.Context, q mysql.DBTX, orderID uint64, dishIDs, qtys []int64) error {
		return nil
	}
	f.orders.SetAcceptedFunc = func(ctx context.Context, q mysql.DBTX, id uint64, merchant domain.Address) error {
		return nil
	}
	f.orders.SetPickedFunc = func(ctx context.Context, q mysql.DBTX, id uint64, rider domain.Address) error {
		return nil
	}
	f.orders.SetFulfilledFunc = func(ctx context.Context, q mysql.DBTX, id uint64, platformFee uint64) error {
		return nil
	}

	f.svc = NewSettlementService(
		f.txm,
		f.orders,
		f.accounts,
		f.tokens,
		f.credentials,
		domain.FeePolicy{FeeRateBps: 250, MerchantShareBps: 9000},
		10,
		Accounts{Ledger: "0xledger", Escrow: "0xescrow", Platform: "0xplatform"},
		zap.NewNop(),
		5*time.Second,
	)

	return f
}

func TestCreateOrder_EscrowsPaymentAndAssignsID(t *testing.T) {
	f := newFixture()

	var inserted domain.Order
	f.orders.AllocateOrderIDFunc = func(ctx context.Context, q mysql.DBTX) (uint64, error) { return 7, nil }
	f.orders.InsertFunc = func(ctx context.Context, q mysql.DBTX, order domain.Order) error {
		inserted = order
		return nil
	}

	orderID, err := f.svc.CreateOrder(context.Background(), "0xcustomer", "ramen", nil, nil, 120, 120)

	require.NoError(t, err)
	assert.Equal(t, uint64(7), orderID)
	assert.True(t, f.txm.tx.committed)

	assert.Equal(t, uint64(7), inserted.ID)
	assert.Equal(t, domain.Address("0xcustomer"), inserted.Customer)
	assert.Equal(t, uint64(120), inserted.Amount)
	assert.False(t, inserted.Accepted)
	assert.False(t, inserted.Picked)
	assert.False(t, inserted.Fulfilled)

	require.Len(t, f.accounts.moves, 2)
	assert.Equal(t, ledgerMove{holder: "0xcustomer", amount: 120}, f.accounts.moves[0])
	assert.Equal(t, ledgerMove{holder: "0xescrow", amount: 120, credit: true}, f.accounts.moves[1])
}

func TestCreateOrder_EscrowMismatchRejectedBeforeAnyStateChange(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateOrder(context.Background(), "0xcustomer", "ramen", nil, nil, 120, 100)

	require.Error(t, err)
	_, ok := apperrors.IsEscrowMismatchError(err)
	assert.True(t, ok)
	assert.Equal(t, 0, f.txm.beginCalls, "mismatch must be rejected before touching the ledger")
}

func TestCreateOrder_InsufficientBalanceRollsBack(t *testing.T) {
	f := newFixture()

	f.accounts.DebitErr = func(holder domain.Address, amount uint64) error {
		return apperrors.NewInsufficientBalanceError("account 0xcustomer cannot cover 120 units")
	}

	_, err := f.svc.CreateOrder(context.Background(), "0xcustomer", "ramen", nil, nil, 120, 120)

	require.Error(t, err)
	_, ok := apperrors.IsInsufficientBalanceError(err)
	assert.True(t, ok)
	assert.False(t, f.txm.tx.committed)
	assert.True(t, f.txm.tx.rolledBack)
}

func TestCreateOrder_WithDishList(t *testing.T) {
	f := newFixture()

	var gotDishIDs, gotQtys []int64
	f.orders.InsertItemsFunc = func(ctx context.Context, q mysql.DBTX, orderID uint64, dishIDs, qtys []int64) error {
		gotDishIDs, gotQtys = dishIDs, qtys
		return nil
	}

	_, err := f.svc.CreateOrder(context.Background(), "0xcustomer", "", []int64{11, 12}, []int64{2, 1}, 40, 40)

	require.NoError(t, err)
	assert.Equal(t, []int64{11, 12}, gotDishIDs)
	assert.Equal(t, []int64{2, 1}, gotQtys)
}

func TestAcceptOrder_SetsMerchant(t *testing.T) {
	f := newFixture()

	f.orders.FindByIDForUpdateFunc = func(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error) {
		return &domain.Order{ID: id, Customer: "0xcustomer", Amount: 120}, nil
	}

	var setMerchant domain.Address
	f.orders.SetAcceptedFunc = func(ctx context.Context, q mysql.DBTX, id uint64, merchant domain.Address) error {
		setMerchant = merchant
		return nil
	}

	order, err := f.svc.AcceptOrder(context.Background(), "0xmerchant", 0)

	require.NoError(t, err)
	assert.Equal(t, domain.Address("0xmerchant"), setMerchant)
	assert.True(t, order.Accepted)
	assert.Equal(t, domain.Address("0xmerchant"), order.Merchant)
	assert.True(t, f.txm.tx.committed)
}

func TestAcceptOrder_AlreadyAcceptedFails(t *testing.T) {
	f := newFixture()

	f.orders.FindByIDForUpdateFunc = func(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error) {
		return &domain.Order{ID: id, Accepted: true, Merchant: "0xfirst"}, nil
	}

	_, err := f.svc.AcceptOrder(context.Background(), "0xsecond", 0)

	require.Error(t, err)
	_, ok := apperrors.IsInvalidStateError(err)
	assert.True(t, ok)
	assert.False(t, f.txm.tx.committed)
}

func TestAcceptOrder_NotFound(t *testing.T) {
	f := newFixture()

	f.orders.FindByIDForUpdateFunc = func(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error) {
		return nil, apperrors.NewNotFoundError("order 99 not found")
	}

	_, err := f.svc.AcceptOrder(context.Background(), "0xmerchant", 99)

	require.Error(t, err)
	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
}

func TestPickOrder_SetsRider(t *testing.T) {
	f := newFixture()

	f.orders.FindByIDForUpdateFunc = func(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error) {
		return &domain.Order{ID: id, Accepted: true, Merchant: "0xmerchant"}, nil
	}

	order, err := f.svc.PickOrder(context.Background(), "0xrider", 0)

	require.NoError(t, err)
	assert.True(t, order.Picked)
	assert.Equal(t, domain.Address("0xrider"), order.Rider)
	assert.True(t, f.txm.tx.committed)
}

func TestPickOrder_BeforeAcceptFails(t *testing.T) {
	f := newFixture()

	f.orders.FindByIDForUpdateFunc = func(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error) {
		return &domain.Order{ID: id}, nil
	}

	_, err := f.svc.PickOrder(context.Background(), "0xrider", 0)

	require.Error(t, err)
	_, ok := apperrors.IsInvalidStateError(err)
	assert.True(t, ok)
	assert.False(t, f.txm.tx.committed)
}

func TestPickOrder_AlreadyPickedFails(t *testing.T) {
	f := newFixture()

	// The serialized loser of a pick race sees the winner's flag.
	f.orders.FindByIDForUpdateFunc = func(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error) {
		return &domain.Order{ID: id, Accepted: true, Picked: true, Rider: "0xwinner"}, nil
	}

	_, err := f.svc.PickOrder(context.Background(), "0xloser", 0)

	require.Error(t, err)
	_, ok := apperrors.IsInvalidStateError(err)
	assert.True(t, ok)
	assert.False(t, f.txm.tx.committed)
}

func pickedOrder() *domain.Order {
	return &domain.Order{
		ID:       0,
		Customer: "0xcustomer",
		Merchant: "0xmerchant",
		Rider:    "0xrider",
		Amount:   120,
		Accepted: true,
		Picked:   true,
	}
}

func TestFulfillOrder_SettlesAtomically(t *testing.T) {
	f := newFixture()

	f.orders.FindByIDForUpdateFunc = func(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error) {
		return pickedOrder(), nil
	}

	var fulfilledFee uint64
	f.orders.SetFulfilledFunc = func(ctx context.Context, q mysql.DBTX, id uint64, platformFee uint64) error {
		fulfilledFee = platformFee
		return nil
	}

	var mintedTo domain.Address
	var mintCaller domain.Address
	f.credentials.MintFunc = func(ctx context.Context, q mysql.DBTX, caller, to domain.Address, orderID uint64) (uint64, error) {
		mintCaller, mintedTo = caller, to
		return 5, nil
	}

	result, err := f.svc.FulfillOrder(context.Background(), "0xrider", 0)

	require.NoError(t, err)
	assert.True(t, f.txm.tx.committed)

	// 120 at 250 bps: fee 3, net 117 split 105/12.
	assert.Equal(t, uint64(3), result.PlatformFee)
	assert.Equal(t, uint64(105), result.MerchantPayout)
	assert.Equal(t, uint64(12), result.RiderPayout)
	assert.Equal(t, uint64(10), result.RewardPaid)
	assert.Equal(t, uint64(5), result.CredentialID)
	assert.Equal(t, uint64(3), fulfilledFee)

	// Escrow release conserves the amount: one debit of 120, credits 105+12+3.
	require.Len(t, f.accounts.moves, 4)
	assert.Equal(t, ledgerMove{holder: "0xescrow", amount: 120}, f.accounts.moves[0])
	assert.Equal(t, ledgerMove{holder: "0xmerchant", amount: 105, credit: true}, f.accounts.moves[1])
	assert.Equal(t, ledgerMove{holder: "0xrider", amount: 12, credit: true}, f.accounts.moves[2])
	assert.Equal(t, ledgerMove{holder: "0xplatform", amount: 3, credit: true}, f.accounts.moves[3])

	// Reward quantum moves pool -> customer.
	require.Len(t, f.tokens.moves, 2)
	assert.Equal(t, ledgerMove{holder: "0xledger", amount: 10}, f.tokens.moves[0])
	assert.Equal(t, ledgerMove{holder: "0xcustomer", amount: 10, credit: true}, f.tokens.moves[1])

	assert.Equal(t, domain.Address("0xledger"), mintCaller)
	assert.Equal(t, domain.Address("0xcustomer"), mintedTo)
}

func TestFulfillOrder_OnlyAssignedRider(t *testing.T) {
	f := newFixture()

	f.orders.FindByIDForUpdateFunc = func(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error) {
		return pickedOrder(), nil
	}

	_, err := f.svc.FulfillOrder(context.Background(), "0xsomeoneelse", 0)

	require.Error(t, err)
	_, ok := apperrors.IsUnauthorizedError(err)
	assert.True(t, ok)
	assert.False(t, f.txm.tx.committed)
	assert.Empty(t, f.accounts.moves)
}

func TestFulfillOrder_BeforePickFails(t *testing.T) {
	f := newFixture()

	f.orders.FindByIDForUpdateFunc = func(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error) {
		return &domain.Order{ID: id, Accepted: true, Merchant: "0xmerchant"}, nil
	}

	_, err := f.svc.FulfillOrder(context.Background(), "0xrider", 0)

	require.Error(t, err)
	_, ok := apperrors.IsInvalidStateError(err)
	assert.True(t, ok)
}

func TestFulfillOrder_DoubleFulfillFails(t *testing.T) {
	f := newFixture()

	order := pickedOrder()
	order.Fulfilled = true
	f.orders.FindByIDForUpdateFunc = func(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error) {
		return order, nil
	}

	_, err := f.svc.FulfillOrder(context.Background(), "0xrider", 0)

	require.Error(t, err)
	_, ok := apperrors.IsInvalidStateError(err)
	assert.True(t, ok)
	assert.False(t, f.txm.tx.committed)
	assert.Empty(t, f.accounts.moves)
	assert.Empty(t, f.tokens.moves)
}

func TestFulfillOrder_RewardPoolExhaustedRollsEverythingBack(t *testing.T) {
	f := newFixture()

	f.orders.FindByIDForUpdateFunc = func(ctx context.Context, q mysql.DBTX, id uint64) (*domain.Order, error) {
		return pickedOrder(), nil
	}

	f.tokens.DebitErr = func(holder domain.Address, amount uint64) error {
		return apperrors.NewInsufficientBalanceError("holder 0xledger cannot cover 10 token units")
	}

	_, err := f.svc.FulfillOrder(context.Background(), "0xrider", 0)

	require.Error(t, err)
	_, ok := apperrors.IsInsufficientRewardPoolError(err)
	assert.True(t, ok, "pool exhaustion must surface as its own kind")
	assert.False(t, f.txm.tx.committed)
	assert.True(t, f.txm.tx.rolledBack, "flags and fee split must revert with the transaction")
}
