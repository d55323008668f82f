package repository

import (
	"context"
	"database/sql"
	"fmt"

	"oureat/internal/domain"
	"oureat/internal/errors"
	"oureat/internal/infrastructure/mysql"
)

// MySQLAccountRepository persists native-currency balances: customer funds,
// the escrow pot, and the merchant/rider/platform payout accounts. Escrowed
// value moves customer -> escrow at creation and escrow -> payees at
// settlement, always in one transaction, so the column sums stay constant.
type MySQLAccountRepository struct {
	db *sql.DB
}

func NewMySQLAccountRepository(db *sql.DB) *MySQLAccountRepository {
	return &MySQLAccountRepository{db: db}
}

func (r *MySQLAccountRepository) BalanceOf(ctx context.Context, holder domain.Address) (uint64, error) {
	query := `SELECT balance FROM accounts WHERE holder = ?`

	var balance uint64
	err := r.db.QueryRowContext(ctx, query, holder).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("querying account balance: %w", err)
	}

	return balance, nil
}

func (r *MySQLAccountRepository) Credit(ctx context.Context, q mysql.DBTX, holder domain.Address, amount uint64) error {
	query := `
		INSERT INTO accounts (holder, balance) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance)
	`

	if _, err := q.ExecContext(ctx, query, holder, amount); err != nil {
		return fmt.Errorf("crediting account: %w", err)
	}

	return nil
}

func (r *MySQLAccountRepository) Debit(ctx context.Context, q mysql.DBTX, holder domain.Address, amount uint64) error {
	query := `UPDATE accounts SET balance = balance - ? WHERE holder = ? AND balance >= ?`

	result, err := q.ExecContext(ctx, query, amount, holder, amount)
	if err != nil {
		return fmt.Errorf("debiting account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewInsufficientBalanceError(
			fmt.Sprintf("account %s cannot cover %d units", holder, amount))
	}

	return nil
}
