package token

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"oureat/internal/domain"
	"oureat/internal/dto"
	apperrors "oureat/internal/errors"
	"oureat/internal/middleware"
)

type TokenService interface {
	Transfer(ctx context.Context, from, to domain.Address, amount uint64) error
	BalanceOf(ctx context.Context, holder domain.Address) (uint64, error)
	TotalSupply(ctx context.Context) (uint64, error)
}

type Controller struct {
	service TokenService
	logger  *zap.Logger
}

func NewController(service TokenService, logger *zap.Logger) *Controller {
	return &Controller{
		service: service,
		logger:  logger,
	}
}

// Transfer moves reward tokens from the caller to another holder.
func (c *Controller) Transfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.CallerFrom(r.Context())
	if !ok {
		http.Error(w, "no caller principal bound to request", http.StatusUnauthorized)
		return
	}

	var req dto.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "request body must be valid JSON", http.StatusBadRequest)
		return
	}

	err := c.service.Transfer(r.Context(), caller, domain.Address(req.To), req.Amount)
	if err != nil {
		if ve, ok := apperrors.IsValidationError(err); ok {
			http.Error(w, ve.Message, http.StatusBadRequest)
			return
		}
		if _, ok := apperrors.IsInsufficientBalanceError(err); ok {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		c.logger.Error("token transfer failed",
			zap.String("from", string(caller)),
			zap.String("to", req.To),
			zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.TransferResponse{
		From:   string(caller),
		To:     req.To,
		Amount: req.Amount,
	})
}

func (c *Controller) GetBalance(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if address == "" {
		http.Error(w, "address is required", http.StatusBadRequest)
		return
	}

	balance, err := c.service.BalanceOf(r.Context(), domain.Address(address))
	if err != nil {
		c.logger.Error("failed to read token balance", zap.String("address", address), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.BalanceResponse{
		Address: address,
		Balance: balance,
	})
}

func (c *Controller) GetSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := c.service.TotalSupply(r.Context())
	if err != nil {
		c.logger.Error("failed to read total supply", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	c.writeJSON(w, http.StatusOK, map[string]uint64{"totalSupply": supply})
}

func (c *Controller) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
