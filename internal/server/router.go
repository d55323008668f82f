package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"oureat/internal/config"
	"oureat/internal/credential"
	"oureat/internal/domain"
	ledgercontroller "oureat/internal/ledger/controller"
	"oureat/internal/middleware"
	"oureat/internal/token"
)

// NewRouter lays out the gateway contract surface. Mutating ledger routes sit
// behind the principal middleware; the read-only getters the dashboards poll
// are open.
func NewRouter(
	cfg *config.Config,
	orderCtrl *ledgercontroller.OrderController,
	tokenCtrl *token.Controller,
	credentialCtrl *credential.Controller,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Dev-only signer. A real deployment fronts the service with its own
		// identity provider and this route is disabled at the edge.
		r.Post("/auth/token", issueToken(cfg, logger))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Principal([]byte(cfg.Auth.JWTSecret), logger))

			r.Post("/orders", orderCtrl.CreateOrder)
			r.Post("/orders/{orderId}/accept", orderCtrl.AcceptOrder)
			r.Post("/orders/{orderId}/pick", orderCtrl.PickOrder)
			r.Post("/orders/{orderId}/fulfill", orderCtrl.FulfillOrder)
			r.Post("/token/transfer", tokenCtrl.Transfer)
		})

		r.Get("/orders", orderCtrl.ListOrders)
		r.Get("/orders/{orderId}", orderCtrl.GetOrder)
		r.Get("/orders/{orderId}/items", orderCtrl.GetOrderItems)
		r.Get("/accounts/{address}", orderCtrl.GetAccountBalance)
		r.Get("/token/balances/{address}", tokenCtrl.GetBalance)
		r.Get("/token/supply", tokenCtrl.GetSupply)
		r.Get("/credentials", credentialCtrl.GetTotalMinted)
		r.Get("/credentials/{tokenId}", credentialCtrl.GetCredential)
	})

	return r
}

func issueToken(cfg *config.Config, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Address string `json:"address"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Address == "" {
			http.Error(w, "address is required", http.StatusBadRequest)
			return
		}

		tokenStr, err := middleware.GenerateToken(
			domain.Address(req.Address),
			[]byte(cfg.Auth.JWTSecret),
			cfg.Auth.TokenTTL,
		)
		if err != nil {
			logger.Error("failed to sign token", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":     tokenStr,
			"expiresIn": cfg.Auth.TokenTTL / time.Second,
		})
	}
}
