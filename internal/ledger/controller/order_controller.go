package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"oureat/internal/domain"
	"oureat/internal/dto"
	apperrors "oureat/internal/errors"
	"oureat/internal/middleware"
)

type OrderLifecycleUseCase interface {
	CreateOrder(ctx context.Context, caller domain.Address, req dto.CreateOrderRequest) (uint64, error)
	AcceptOrder(ctx context.Context, caller domain.Address, orderID uint64) (*domain.Order, error)
	PickOrder(ctx context.Context, caller domain.Address, orderID uint64) (*domain.Order, error)
	FulfillOrder(ctx context.Context, caller domain.Address, orderID uint64) (*dto.SettlementResult, error)
	GetOrder(ctx context.Context, orderID uint64) (*domain.Order, error)
	GetOrderCount(ctx context.Context) (uint64, error)
	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrderItems(ctx context.Context, orderID uint64) (dishIDs, qtys []int64, err error)
}

type AccountReader interface {
	BalanceOf(ctx context.Context, holder domain.Address) (uint64, error)
}

type OrderController struct {
	useCase  OrderLifecycleUseCase
	accounts AccountReader
	logger   *zap.Logger
}

func NewOrderController(useCase OrderLifecycleUseCase, accounts AccountReader, logger *zap.Logger) *OrderController {
	return &OrderController{
		useCase:  useCase,
		accounts: accounts,
		logger:   logger,
	}
}

func (c *OrderController) CreateOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		c.writeError(w, traceID, http.StatusUnauthorized, "UNAUTHORIZED", "no caller principal bound to request")
		return
	}

	var req dto.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid JSON body", zap.Error(err))
		c.writeError(w, traceID, http.StatusBadRequest, "VALIDATION_ERROR", "request body must be valid JSON")
		return
	}

	orderID, err := c.useCase.CreateOrder(r.Context(), caller, req)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusCreated, dto.CreateOrderResponse{
		TraceID:   traceID,
		OrderID:   orderID,
		Timestamp: time.Now().UTC(),
	})
}

func (c *OrderController) AcceptOrder(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.useCase.AcceptOrder)
}

func (c *OrderController) PickOrder(w http.ResponseWriter, r *http.Request) {
	c.transition(w, r, c.useCase.PickOrder)
}

func (c *OrderController) transition(
	w http.ResponseWriter,
	r *http.Request,
	apply func(ctx context.Context, caller domain.Address, orderID uint64) (*domain.Order, error),
) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		c.writeError(w, traceID, http.StatusUnauthorized, "UNAUTHORIZED", "no caller principal bound to request")
		return
	}

	orderID, ok := c.parseOrderID(w, r, traceID)
	if !ok {
		return
	}

	order, err := apply(r.Context(), caller, orderID)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

func (c *OrderController) FulfillOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()
	logger := c.logger.With(zap.String("traceId", traceID))

	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		c.writeError(w, traceID, http.StatusUnauthorized, "UNAUTHORIZED", "no caller principal bound to request")
		return
	}

	orderID, ok := c.parseOrderID(w, r, traceID)
	if !ok {
		return
	}

	result, err := c.useCase.FulfillOrder(r.Context(), caller, orderID)
	if err != nil {
		c.handleError(w, traceID, err, logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.SettlementResponse{
		TraceID:   traceID,
		Result:    *result,
		Timestamp: time.Now().UTC(),
	})
}

func (c *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()

	orderID, ok := c.parseOrderID(w, r, traceID)
	if !ok {
		return
	}

	order, err := c.useCase.GetOrder(r.Context(), orderID)
	if err != nil {
		c.handleError(w, traceID, err, c.logger)
		return
	}

	c.writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

func (c *OrderController) ListOrders(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()

	count, err := c.useCase.GetOrderCount(r.Context())
	if err != nil {
		c.handleError(w, traceID, err, c.logger)
		return
	}

	orders, err := c.useCase.ListOrders(r.Context())
	if err != nil {
		c.handleError(w, traceID, err, c.logger)
		return
	}

	resp := dto.OrderListResponse{
		Count:  count,
		Orders: make([]dto.OrderResponse, 0, len(orders)),
	}
	for _, order := range orders {
		resp.Orders = append(resp.Orders, toOrderResponse(order))
	}

	c.writeJSON(w, http.StatusOK, resp)
}

func (c *OrderController) GetOrderItems(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()

	orderID, ok := c.parseOrderID(w, r, traceID)
	if !ok {
		return
	}

	dishIDs, qtys, err := c.useCase.GetOrderItems(r.Context(), orderID)
	if err != nil {
		c.handleError(w, traceID, err, c.logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.OrderItemsResponse{
		OrderID: orderID,
		DishIDs: dishIDs,
		Qtys:    qtys,
	})
}

func (c *OrderController) GetAccountBalance(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.New().String()

	address := chi.URLParam(r, "address")
	if address == "" {
		c.writeError(w, traceID, http.StatusBadRequest, "VALIDATION_ERROR", "address is required")
		return
	}

	balance, err := c.accounts.BalanceOf(r.Context(), domain.Address(address))
	if err != nil {
		c.handleError(w, traceID, err, c.logger)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.BalanceResponse{
		Address: address,
		Balance: balance,
	})
}

func (c *OrderController) parseOrderID(w http.ResponseWriter, r *http.Request, traceID string) (uint64, bool) {
	orderIDStr := chi.URLParam(r, "orderId")
	orderID, err := strconv.ParseUint(orderIDStr, 10, 64)
	if err != nil {
		c.writeError(w, traceID, http.StatusBadRequest, "VALIDATION_ERROR", "orderId must be a non-negative integer")
		return 0, false
	}
	return orderID, true
}

func (c *OrderController) handleError(w http.ResponseWriter, traceID string, err error, logger *zap.Logger) {
	if ve, ok := apperrors.IsValidationError(err); ok {
		c.writeError(w, traceID, http.StatusBadRequest, "VALIDATION_ERROR", ve.Message)
		return
	}
	if _, ok := apperrors.IsEscrowMismatchError(err); ok {
		c.writeError(w, traceID, http.StatusUnprocessableEntity, "ESCROW_MISMATCH", err.Error())
		return
	}
	if _, ok := apperrors.IsInsufficientBalanceError(err); ok {
		c.writeError(w, traceID, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", err.Error())
		return
	}
	if _, ok := apperrors.IsInsufficientRewardPoolError(err); ok {
		c.writeError(w, traceID, http.StatusUnprocessableEntity, "INSUFFICIENT_REWARD_POOL", err.Error())
		return
	}
	if _, ok := apperrors.IsInvalidStateError(err); ok {
		c.writeError(w, traceID, http.StatusConflict, "INVALID_STATE", err.Error())
		return
	}
	if _, ok := apperrors.IsUnauthorizedError(err); ok {
		c.writeError(w, traceID, http.StatusForbidden, "UNAUTHORIZED", err.Error())
		return
	}
	if _, ok := apperrors.IsNotFoundError(err); ok {
		c.writeError(w, traceID, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	if _, ok := apperrors.IsDeadlockError(err); ok {
		c.writeError(w, traceID, http.StatusConflict, "DEADLOCK", err.Error())
		return
	}

	logger.Error("unexpected error", zap.Error(err))
	c.writeError(w, traceID, http.StatusInternalServerError, "INTERNAL_ERROR", "an unexpected error occurred")
}

func toOrderResponse(order domain.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:          order.ID,
		Customer:    string(order.Customer),
		Merchant:    string(order.Merchant),
		Rider:       string(order.Rider),
		Item:        order.Item,
		Amount:      order.Amount,
		PlatformFee: order.PlatformFee,
		Accepted:    order.Accepted,
		Picked:      order.Picked,
		Fulfilled:   order.Fulfilled,
		Status:      order.Status(),
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
	}
}

func (c *OrderController) writeError(w http.ResponseWriter, traceID string, status int, code, message string) {
	c.writeJSON(w, status, dto.ErrorResponse{
		TraceID:   traceID,
		Status:    status,
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

func (c *OrderController) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
