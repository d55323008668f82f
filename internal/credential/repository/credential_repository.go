package repository

import (
	"context"
	"database/sql"
	"fmt"

	"oureat/internal/domain"
	"oureat/internal/errors"
	"oureat/internal/infrastructure/mysql"
)

// MySQLCredentialRepository persists the credential owner mapping and the
// issuer registration. Token ids come from the ledger_state counter row so
// they increment strictly with no gaps under concurrent settlements.
type MySQLCredentialRepository struct {
	db *sql.DB
}

func NewMySQLCredentialRepository(db *sql.DB) *MySQLCredentialRepository {
	return &MySQLCredentialRepository{db: db}
}

func (r *MySQLCredentialRepository) Issuer(ctx context.Context) (domain.Address, error) {
	query := `SELECT credential_issuer FROM ledger_state WHERE id = 1`

	var issuer string
	err := r.db.QueryRowContext(ctx, query).Scan(&issuer)
	if err == sql.ErrNoRows {
		return domain.ZeroAddress, nil
	}
	if err != nil {
		return domain.ZeroAddress, fmt.Errorf("querying credential issuer: %w", err)
	}

	return domain.Address(issuer), nil
}

// RegisterIssuer is the privileged setup step. It only writes while the
// issuer slot is still empty; re-running genesis with the same issuer is a
// no-op and any later reassignment attempt fails.
func (r *MySQLCredentialRepository) RegisterIssuer(ctx context.Context, issuer domain.Address) error {
	current, err := r.Issuer(ctx)
	if err != nil {
		return err
	}
	if current == issuer {
		return nil
	}
	if !current.IsZero() {
		return errors.NewUnauthorizedError("credential issuer is already registered")
	}

	query := `UPDATE ledger_state SET credential_issuer = ? WHERE id = 1 AND credential_issuer = ''`

	result, err := r.db.ExecContext(ctx, query, issuer)
	if err != nil {
		return fmt.Errorf("registering credential issuer: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewUnauthorizedError("credential issuer is already registered")
	}

	return nil
}

// AllocateTokenID locks the counter row, returns the next id and advances it.
func (r *MySQLCredentialRepository) AllocateTokenID(ctx context.Context, q mysql.DBTX) (uint64, error) {
	var id uint64
	err := q.QueryRowContext(ctx, `SELECT next_token_id FROM ledger_state WHERE id = 1 FOR UPDATE`).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("locking credential counter: %w", err)
	}

	if _, err := q.ExecContext(ctx, `UPDATE ledger_state SET next_token_id = next_token_id + 1 WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("advancing credential counter: %w", err)
	}

	return id, nil
}

func (r *MySQLCredentialRepository) Insert(ctx context.Context, q mysql.DBTX, cred domain.Credential) error {
	query := `INSERT INTO credentials (id, owner, order_id) VALUES (?, ?, ?)`

	if _, err := q.ExecContext(ctx, query, cred.ID, cred.Owner, cred.OrderID); err != nil {
		return fmt.Errorf("inserting credential: %w", err)
	}

	return nil
}

func (r *MySQLCredentialRepository) FindByID(ctx context.Context, tokenID uint64) (*domain.Credential, error) {
	query := `SELECT id, owner, order_id, mintedAt FROM credentials WHERE id = ?`

	var cred domain.Credential
	err := r.db.QueryRowContext(ctx, query, tokenID).Scan(
		&cred.ID, &cred.Owner, &cred.OrderID, &cred.MintedAt,
	)

	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError(fmt.Sprintf("credential %d not found", tokenID))
	}
	if err != nil {
		return nil, fmt.Errorf("querying credential by id: %w", err)
	}

	return &cred, nil
}

func (r *MySQLCredentialRepository) TotalMinted(ctx context.Context) (uint64, error) {
	query := `SELECT next_token_id FROM ledger_state WHERE id = 1`

	var total uint64
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("querying minted count: %w", err)
	}

	return total, nil
}
