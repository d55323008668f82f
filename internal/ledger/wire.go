package ledger

import (
	"database/sql"

	"go.uber.org/zap"

	"oureat/internal/config"
	credentialservice "oureat/internal/credential/service"
	"oureat/internal/domain"
	"oureat/internal/infrastructure/mysql"
	"oureat/internal/ledger/controller"
	"oureat/internal/ledger/repository"
	"oureat/internal/ledger/service"
	"oureat/internal/ledger/usecase"
	tokenrepo "oureat/internal/token/repository"
)

// NewModule wires the order ledger: repositories over the shared database,
// the settlement service with the configured fee policy and well-known
// accounts, and the lifecycle use case on top. The publisher may be nil when
// no broker is configured.
func NewModule(
	db *sql.DB,
	cfg *config.Config,
	credentials *credentialservice.CredentialService,
	publisher usecase.EventPublisher,
	logger *zap.Logger,
) *controller.OrderController {
	orderRepo := repository.NewMySQLOrderRepository(db)
	accountRepo := repository.NewMySQLAccountRepository(db)
	tokenRepo := tokenrepo.NewMySQLTokenRepository(db)

	settlementSvc := service.NewSettlementService(
		mysql.NewTxManager(db),
		orderRepo,
		accountRepo,
		tokenRepo,
		credentials,
		domain.FeePolicy{
			FeeRateBps:       cfg.Ledger.FeeRateBps,
			MerchantShareBps: cfg.Ledger.MerchantShareBps,
		},
		cfg.Ledger.RewardQuantum,
		service.Accounts{
			Ledger:   domain.Address(cfg.Ledger.LedgerAccount),
			Escrow:   domain.Address(cfg.Ledger.EscrowAccount),
			Platform: domain.Address(cfg.Ledger.PlatformAccount),
		},
		logger,
		cfg.Ledger.TxTimeout,
	)

	lifecycle := usecase.NewOrderLifecycleUseCase(
		settlementSvc,
		orderRepo,
		publisher,
		logger,
		cfg.Ledger.MaxRetryAttempts,
	)

	return controller.NewOrderController(lifecycle, accountRepo, logger)
}
