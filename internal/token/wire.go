package token

import (
	"database/sql"

	"go.uber.org/zap"

	"oureat/internal/config"
	"oureat/internal/infrastructure/mysql"
	"oureat/internal/token/repository"
	"oureat/internal/token/service"
)

type Module struct {
	Repository *repository.MySQLTokenRepository
	Service    *service.TokenService
	Controller *Controller
}

func NewModule(db *sql.DB, cfg *config.Config, logger *zap.Logger) *Module {
	repo := repository.NewMySQLTokenRepository(db)
	svc := service.NewTokenService(mysql.NewTxManager(db), repo, logger, cfg.Ledger.TxTimeout)

	return &Module{
		Repository: repo,
		Service:    svc,
		Controller: NewController(svc, logger),
	}
}
