package service

import (
	"context"

	"go.uber.org/zap"

	"oureat/internal/domain"
	"oureat/internal/errors"
	"oureat/internal/infrastructure/mysql"
)

type CredentialRepository interface {
	Issuer(ctx context.Context) (domain.Address, error)
	AllocateTokenID(ctx context.Context, q mysql.DBTX) (uint64, error)
	Insert(ctx context.Context, q mysql.DBTX, cred domain.Credential) error
	FindByID(ctx context.Context, tokenID uint64) (*domain.Credential, error)
	TotalMinted(ctx context.Context) (uint64, error)
}

// CredentialService mints reputation credentials. Minting is gated on the
// registered issuer, which genesis sets to the settlement ledger's principal
// before any orders exist.
type CredentialService struct {
	repo   CredentialRepository
	logger *zap.Logger
}

func NewCredentialService(repo CredentialRepository, logger *zap.Logger) *CredentialService {
	return &CredentialService{
		repo:   repo,
		logger: logger,
	}
}

// Mint assigns the next sequential token id to the owner. It runs inside the
// caller's transaction so settlement stays a single atomic unit; the id
// counter row lock keeps ids strictly incrementing.
func (s *CredentialService) Mint(ctx context.Context, q mysql.DBTX, caller, to domain.Address, orderID uint64) (uint64, error) {
	issuer, err := s.repo.Issuer(ctx)
	if err != nil {
		return 0, err
	}

	if issuer.IsZero() {
		return 0, errors.NewUnauthorizedError("no credential issuer registered")
	}

	if caller != issuer {
		return 0, errors.NewUnauthorizedError("caller is not the registered credential issuer")
	}

	tokenID, err := s.repo.AllocateTokenID(ctx, q)
	if err != nil {
		return 0, err
	}

	cred := domain.Credential{
		ID:      tokenID,
		Owner:   to,
		OrderID: orderID,
	}

	if err := s.repo.Insert(ctx, q, cred); err != nil {
		return 0, err
	}

	s.logger.Info("credential minted",
		zap.Uint64("tokenId", tokenID),
		zap.String("owner", string(to)),
		zap.Uint64("orderId", orderID))

	return tokenID, nil
}

func (s *CredentialService) OwnerOf(ctx context.Context, tokenID uint64) (domain.Address, error) {
	cred, err := s.repo.FindByID(ctx, tokenID)
	if err != nil {
		return domain.ZeroAddress, err
	}
	return cred.Owner, nil
}

func (s *CredentialService) Get(ctx context.Context, tokenID uint64) (*domain.Credential, error) {
	return s.repo.FindByID(ctx, tokenID)
}

func (s *CredentialService) TotalMinted(ctx context.Context) (uint64, error) {
	return s.repo.TotalMinted(ctx)
}
