package repository

import (
	"context"
	"database/sql"
	"fmt"

	"oureat/internal/domain"
	"oureat/internal/errors"
	"oureat/internal/infrastructure/mysql"
)

// MySQLTokenRepository persists reward-token balances. Balances only ever
// move through paired Debit/Credit calls inside one transaction, so the sum
// over all holders stays equal to the genesis supply.
type MySQLTokenRepository struct {
	db *sql.DB
}

func NewMySQLTokenRepository(db *sql.DB) *MySQLTokenRepository {
	return &MySQLTokenRepository{db: db}
}

func (r *MySQLTokenRepository) BalanceOf(ctx context.Context, holder domain.Address) (uint64, error) {
	query := `SELECT balance FROM token_balances WHERE holder = ?`

	var balance uint64
	err := r.db.QueryRowContext(ctx, query, holder).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying token balance: %w", err)
	}

	return balance, nil
}

func (r *MySQLTokenRepository) BalanceForUpdate(ctx context.Context, q mysql.DBTX, holder domain.Address) (uint64, error) {
	query := `SELECT balance FROM token_balances WHERE holder = ? FOR UPDATE`

	var balance uint64
	err := q.QueryRowContext(ctx, query, holder).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("locking token balance: %w", err)
	}

	return balance, nil
}

func (r *MySQLTokenRepository) Credit(ctx context.Context, q mysql.DBTX, holder domain.Address, amount uint64) error {
	query := `
		INSERT INTO token_balances (holder, balance) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance)
	`

	if _, err := q.ExecContext(ctx, query, holder, amount); err != nil {
		return fmt.Errorf("crediting token balance: %w", err)
	}

	return nil
}

// Debit subtracts amount from the holder's balance. The WHERE guard makes the
// non-negative invariant atomic: a short balance affects zero rows.
func (r *MySQLTokenRepository) Debit(ctx context.Context, q mysql.DBTX, holder domain.Address, amount uint64) error {
	query := `UPDATE token_balances SET balance = balance - ? WHERE holder = ? AND balance >= ?`

	result, err := q.ExecContext(ctx, query, amount, holder, amount)
	if err != nil {
		return fmt.Errorf("debiting token balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewInsufficientBalanceError(
			fmt.Sprintf("holder %s cannot cover %d token units", holder, amount))
	}

	return nil
}

func (r *MySQLTokenRepository) TotalSupply(ctx context.Context) (uint64, error) {
	query := `SELECT COALESCE(SUM(balance), 0) FROM token_balances`

	var supply uint64
	if err := r.db.QueryRowContext(ctx, query).Scan(&supply); err != nil {
		return 0, fmt.Errorf("querying total supply: %w", err)
	}

	return supply, nil
}
