package usecase

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"oureat/internal/domain"
	"oureat/internal/dto"
	apperrors "oureat/internal/errors"
)

type SettlementService interface {
	CreateOrder(ctx context.Context, caller domain.Address, item string, dishIDs, qtys []int64, amount, payment uint64) (uint64, error)
	AcceptOrder(ctx context.Context, caller domain.Address, orderID uint64) (*domain.Order, error)
	PickOrder(ctx context.Context, caller domain.Address, orderID uint64) (*domain.Order, error)
	FulfillOrder(ctx context.Context, caller domain.Address, orderID uint64) (*dto.SettlementResult, error)
}

type OrderReader interface {
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
	Count(ctx context.Context) (uint64, error)
	List(ctx context.Context) ([]domain.Order, error)
	ItemsByOrderID(ctx context.Context, orderID uint64) (dishIDs, qtys []int64, err error)
}

type EventPublisher interface {
	Publish(routingKey string, payload interface{}) error
}

// OrderLifecycleUseCase fronts the settlement service: request validation,
// deadlock retry, and best-effort event publishing after commit. The getters
// pass straight through to the repository; they are pure projections.
type OrderLifecycleUseCase struct {
	settlement       SettlementService
	orders           OrderReader
	publisher        EventPublisher
	logger           *zap.Logger
	maxRetryAttempts int
}

func NewOrderLifecycleUseCase(
	settlement SettlementService,
	orders OrderReader,
	publisher EventPublisher,
	logger *zap.Logger,
	maxRetryAttempts int,
) *OrderLifecycleUseCase {
	return &OrderLifecycleUseCase{
		settlement:       settlement,
		orders:           orders,
		publisher:        publisher,
		logger:           logger,
		maxRetryAttempts: maxRetryAttempts,
	}
}

func (uc *OrderLifecycleUseCase) CreateOrder(ctx context.Context, caller domain.Address, req dto.CreateOrderRequest) (uint64, error) {
	if err := validateCreateOrder(req); err != nil {
		return 0, err
	}

	var orderID uint64
	err := uc.withRetry(ctx, "createOrder", func() error {
		var err error
		orderID, err = uc.settlement.CreateOrder(ctx, caller, req.Item, req.DishIDs, req.Qtys, req.Amount, req.Payment)
		return err
	})
	if err != nil {
		return 0, err
	}

	uc.publish(domain.OrderEvent{
		Type:      domain.EventOrderCreated,
		OrderID:   orderID,
		Actor:     caller,
		Amount:    req.Amount,
		Timestamp: time.Now().UTC(),
	})

	return orderID, nil
}

func (uc *OrderLifecycleUseCase) AcceptOrder(ctx context.Context, caller domain.Address, orderID uint64) (*domain.Order, error) {
	var order *domain.Order
	err := uc.withRetry(ctx, "acceptOrder", func() error {
		var err error
		order, err = uc.settlement.AcceptOrder(ctx, caller, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.publish(domain.OrderEvent{
		Type:      domain.EventOrderAccepted,
		OrderID:   orderID,
		Actor:     caller,
		Timestamp: time.Now().UTC(),
	})

	return order, nil
}

func (uc *OrderLifecycleUseCase) PickOrder(ctx context.Context, caller domain.Address, orderID uint64) (*domain.Order, error) {
	var order *domain.Order
	err := uc.withRetry(ctx, "pickOrder", func() error {
		var err error
		order, err = uc.settlement.PickOrder(ctx, caller, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.publish(domain.OrderEvent{
		Type:      domain.EventOrderPicked,
		OrderID:   orderID,
		Actor:     caller,
		Timestamp: time.Now().UTC(),
	})

	return order, nil
}

func (uc *OrderLifecycleUseCase) FulfillOrder(ctx context.Context, caller domain.Address, orderID uint64) (*dto.SettlementResult, error) {
	var result *dto.SettlementResult
	err := uc.withRetry(ctx, "fulfillOrder", func() error {
		var err error
		result, err = uc.settlement.FulfillOrder(ctx, caller, orderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.publish(domain.OrderEvent{
		Type:        domain.EventOrderFulfilled,
		OrderID:     orderID,
		Actor:       caller,
		PlatformFee: result.PlatformFee,
		Timestamp:   time.Now().UTC(),
	})

	return result, nil
}

func (uc *OrderLifecycleUseCase) GetOrder(ctx context.Context, orderID uint64) (*domain.Order, error) {
	return uc.orders.FindByID(ctx, orderID)
}

func (uc *OrderLifecycleUseCase) GetOrderCount(ctx context.Context) (uint64, error) {
	return uc.orders.Count(ctx)
}

func (uc *OrderLifecycleUseCase) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return uc.orders.List(ctx)
}

func (uc *OrderLifecycleUseCase) GetOrderItems(ctx context.Context, orderID uint64) (dishIDs, qtys []int64, err error) {
	// Existence check so a bad id reads as NotFound, not an empty list.
	if _, err := uc.orders.FindByID(ctx, orderID); err != nil {
		return nil, nil, err
	}
	return uc.orders.ItemsByOrderID(ctx, orderID)
}

// withRetry re-runs an operation when MySQL reports a lock conflict.
// Backoff with jitter, same shape as any hot-row contention handler.
func (uc *OrderLifecycleUseCase) withRetry(ctx context.Context, name string, op func() error) error {
	backoffs := []time.Duration{0, 100 * time.Millisecond, 200 * time.Millisecond}

	for attempt := 1; attempt <= uc.maxRetryAttempts; attempt++ {
		err := op()
		if err == nil {
			return nil
		}

		if !isDeadlockError(err) {
			return err
		}

		if attempt == uc.maxRetryAttempts {
			break
		}

		backoff := backoffs[(attempt-1)%len(backoffs)]
		jitter := time.Duration(float64(backoff) * (0.8 + rand.Float64()*0.4))
		uc.logger.Warn("lock conflict, retrying",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", uc.maxRetryAttempts))

		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return apperrors.NewDeadlockError("max retries exceeded on " + name)
}

func isDeadlockError(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1213 || mysqlErr.Number == 1205
	}
	return false
}

func (uc *OrderLifecycleUseCase) publish(event domain.OrderEvent) {
	if uc.publisher == nil {
		return
	}
	if err := uc.publisher.Publish(event.Type, event); err != nil {
		uc.logger.Warn("event publish failed",
			zap.String("type", event.Type),
			zap.Uint64("orderId", event.OrderID),
			zap.Error(err))
	}
}

func validateCreateOrder(req dto.CreateOrderRequest) error {
	var details []apperrors.ValidationDetail

	if req.Amount == 0 {
		details = append(details, apperrors.ValidationDetail{
			Field:   "amount",
			Message: "amount must be greater than zero",
		})
	}

	if req.Item == "" && len(req.DishIDs) == 0 {
		details = append(details, apperrors.ValidationDetail{
			Field:   "item",
			Message: "order needs an item name or a dish list",
		})
	}

	if len(req.DishIDs) != len(req.Qtys) {
		details = append(details, apperrors.ValidationDetail{
			Field:   "qtys",
			Message: "qtys must have one entry per dish",
		})
	} else {
		for idx, qty := range req.Qtys {
			if qty < 1 {
				details = append(details, apperrors.ValidationDetail{
					Field:   "qtys[" + strconv.Itoa(idx) + "]",
					Message: "quantity must be at least 1",
				})
			}
		}
		for idx, dishID := range req.DishIDs {
			if dishID < 0 {
				details = append(details, apperrors.ValidationDetail{
					Field:   "dishIds[" + strconv.Itoa(idx) + "]",
					Message: "dish id must be non-negative",
				})
			}
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("validation failed", details...)
	}

	return nil
}
