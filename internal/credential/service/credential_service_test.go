package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"oureat/internal/domain"
	apperrors "oureat/internal/errors"
	"oureat/internal/infrastructure/mysql"
)

type mockCredentialRepository struct {
	IssuerFunc          func(ctx context.Context) (domain.Address, error)
	AllocateTokenIDFunc func(ctx context.Context, q mysql.DBTX) (uint64, error)
	InsertFunc          func(ctx context.Context, q mysql.DBTX, cred domain.Credential) error
	FindByIDFunc        func(ctx context.Context, tokenID uint64) (*domain.Credential, error)
	TotalMintedFunc     func(ctx context.Context) (uint64, error)
}

func (m *mockCredentialRepository) Issuer(ctx context.Context) (domain.Address, error) {
	return m.IssuerFunc(ctx)
}

func (m *mockCredentialRepository) AllocateTokenID(ctx context.Context, q mysql.DBTX) (uint64, error) {
	return m.AllocateTokenIDFunc(ctx, q)
}

func (m *mockCredentialRepository) Insert(ctx context.Context, q mysql.DBTX, cred domain.Credential) error {
	return m.InsertFunc(ctx, q, cred)
}

func (m *mockCredentialRepository) FindByID(ctx context.Context, tokenID uint64) (*domain.Credential, error) {
	return m.FindByIDFunc(ctx, tokenID)
}

func (m *mockCredentialRepository) TotalMinted(ctx context.Context) (uint64, error) {
	return m.TotalMintedFunc(ctx)
}

func TestMint_AssignsSequentialIDs(t *testing.T) {
	nextID := uint64(0)
	var minted []domain.Credential
	repo := &mockCredentialRepository{
		IssuerFunc: func(ctx context.Context) (domain.Address, error) { return "0xledger", nil },
		AllocateTokenIDFunc: func(ctx context.Context, q mysql.DBTX) (uint64, error) {
			id := nextID
			nextID++
			return id, nil
		},
		InsertFunc: func(ctx context.Context, q mysql.DBTX, cred domain.Credential) error {
			minted = append(minted, cred)
			return nil
		},
	}

	svc := NewCredentialService(repo, zap.NewNop())

	first, err := svc.Mint(context.Background(), nil, "0xledger", "0xcustomer", 0)
	require.NoError(t, err)

	second, err := svc.Mint(context.Background(), nil, "0xledger", "0xcustomer", 1)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), first)
	assert.Equal(t, uint64(1), second)

	require.Len(t, minted, 2)
	assert.Equal(t, domain.Address("0xcustomer"), minted[0].Owner)
	assert.Equal(t, uint64(0), minted[0].OrderID)
	assert.Equal(t, uint64(1), minted[1].OrderID)
}

func TestMint_RejectsNonIssuer(t *testing.T) {
	repo := &mockCredentialRepository{
		IssuerFunc: func(ctx context.Context) (domain.Address, error) { return "0xledger", nil },
		AllocateTokenIDFunc: func(ctx context.Context, q mysql.DBTX) (uint64, error) {
			t.Fatal("must not allocate an id for an unauthorized caller")
			return 0, nil
		},
	}

	svc := NewCredentialService(repo, zap.NewNop())

	_, err := svc.Mint(context.Background(), nil, "0ximpostor", "0xcustomer", 0)

	require.Error(t, err)
	_, ok := apperrors.IsUnauthorizedError(err)
	assert.True(t, ok)
}

func TestMint_RejectsWhenNoIssuerRegistered(t *testing.T) {
	repo := &mockCredentialRepository{
		IssuerFunc: func(ctx context.Context) (domain.Address, error) { return domain.ZeroAddress, nil },
	}

	svc := NewCredentialService(repo, zap.NewNop())

	_, err := svc.Mint(context.Background(), nil, "0xledger", "0xcustomer", 0)

	require.Error(t, err)
	_, ok := apperrors.IsUnauthorizedError(err)
	assert.True(t, ok)
}

func TestOwnerOf_ReturnsCredentialOwner(t *testing.T) {
	repo := &mockCredentialRepository{
		FindByIDFunc: func(ctx context.Context, tokenID uint64) (*domain.Credential, error) {
			return &domain.Credential{ID: tokenID, Owner: "0xcustomer", OrderID: 3}, nil
		},
	}

	svc := NewCredentialService(repo, zap.NewNop())

	owner, err := svc.OwnerOf(context.Background(), 5)

	require.NoError(t, err)
	assert.Equal(t, domain.Address("0xcustomer"), owner)
}

func TestOwnerOf_UnknownToken(t *testing.T) {
	repo := &mockCredentialRepository{
		FindByIDFunc: func(ctx context.Context, tokenID uint64) (*domain.Credential, error) {
			return nil, apperrors.NewNotFoundError("credential 5 not found")
		},
	}

	svc := NewCredentialService(repo, zap.NewNop())

	owner, err := svc.OwnerOf(context.Background(), 5)

	require.Error(t, err)
	_, ok := apperrors.IsNotFoundError(err)
	assert.True(t, ok)
	assert.Equal(t, domain.ZeroAddress, owner)
}
