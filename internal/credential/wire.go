package credential

import (
	"database/sql"

	"go.uber.org/zap"

	"oureat/internal/credential/repository"
	"oureat/internal/credential/service"
)

type Module struct {
	Repository *repository.MySQLCredentialRepository
	Service    *service.CredentialService
	Controller *Controller
}

func NewModule(db *sql.DB, logger *zap.Logger) *Module {
	repo := repository.NewMySQLCredentialRepository(db)
	svc := service.NewCredentialService(repo, logger)

	return &Module{
		Repository: repo,
		Service:    svc,
		Controller: NewController(svc, logger),
	}
}
