package credential

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"oureat/internal/domain"
	"oureat/internal/dto"
	apperrors "oureat/internal/errors"
)

type CredentialService interface {
	Get(ctx context.Context, tokenID uint64) (*domain.Credential, error)
	TotalMinted(ctx context.Context) (uint64, error)
}

type Controller struct {
	service CredentialService
	logger  *zap.Logger
}

func NewController(service CredentialService, logger *zap.Logger) *Controller {
	return &Controller{
		service: service,
		logger:  logger,
	}
}

func (c *Controller) GetCredential(w http.ResponseWriter, r *http.Request) {
	tokenIDStr := chi.URLParam(r, "tokenId")
	tokenID, err := strconv.ParseUint(tokenIDStr, 10, 64)
	if err != nil {
		http.Error(w, "tokenId must be a non-negative integer", http.StatusBadRequest)
		return
	}

	cred, err := c.service.Get(r.Context(), tokenID)
	if err != nil {
		if _, ok := apperrors.IsNotFoundError(err); ok {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		c.logger.Error("failed to read credential", zap.Uint64("tokenId", tokenID), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	c.writeJSON(w, http.StatusOK, dto.CredentialResponse{
		TokenID:  cred.ID,
		Owner:    string(cred.Owner),
		OrderID:  cred.OrderID,
		MintedAt: cred.MintedAt,
	})
}

func (c *Controller) GetTotalMinted(w http.ResponseWriter, r *http.Request) {
	total, err := c.service.TotalMinted(r.Context())
	if err != nil {
		c.logger.Error("failed to read minted count", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	c.writeJSON(w, http.StatusOK, map[string]uint64{"totalMinted": total})
}

func (c *Controller) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		c.logger.Error("failed to encode response", zap.Error(err))
	}
}
