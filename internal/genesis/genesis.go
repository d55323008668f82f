package genesis

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"oureat/internal/config"
)

// Run brings the ledger to its genesis state and is safe to re-run on every
// start: create the schema, initialize the counter row, register the
// settlement ledger as credential issuer, mint the fixed token supply to the
// treasury and fund the reward pool from it. All of this happens before the
// server accepts traffic, so no order can ever observe a half-initialized
// ledger.
func Run(ctx context.Context, db *sql.DB, cfg config.LedgerConfig, logger *zap.Logger) error {
	if err := ensureSchema(ctx, db); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	if err := ensureLedgerState(ctx, db, cfg); err != nil {
		return fmt.Errorf("initializing ledger state: %w", err)
	}

	if err := mintSupply(ctx, db, cfg, logger); err != nil {
		return fmt.Errorf("minting token supply: %w", err)
	}

	if err := fundRewardPool(ctx, db, cfg, logger); err != nil {
		return fmt.Errorf("funding reward pool: %w", err)
	}

	if err := seedFaucet(ctx, db, cfg, logger); err != nil {
		return fmt.Errorf("seeding faucet accounts: %w", err)
	}

	logger.Info("genesis complete",
		zap.String("issuer", cfg.LedgerAccount),
		zap.Uint64("tokenSupply", cfg.TokenSupply),
		zap.Uint64("rewardPool", cfg.RewardPool))

	return nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	statements := []struct {
		name  string
		query string
	}{
		{"ledger_state", `
			CREATE TABLE IF NOT EXISTS ledger_state (
				id TINYINT UNSIGNED NOT NULL PRIMARY KEY,
				next_order_id BIGINT UNSIGNED NOT NULL DEFAULT 0,
				next_token_id BIGINT UNSIGNED NOT NULL DEFAULT 0,
				credential_issuer VARCHAR(64) NOT NULL DEFAULT '',
				updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
			)`},
		{"orders", `
			CREATE TABLE IF NOT EXISTS orders (
				id BIGINT UNSIGNED NOT NULL PRIMARY KEY,
				customer VARCHAR(64) NOT NULL,
				merchant VARCHAR(64) NOT NULL DEFAULT '',
				rider VARCHAR(64) NOT NULL DEFAULT '',
				item VARCHAR(255) NOT NULL DEFAULT '',
				amount BIGINT UNSIGNED NOT NULL,
				platform_fee BIGINT UNSIGNED NOT NULL DEFAULT 0,
				accepted TINYINT(1) NOT NULL DEFAULT 0,
				picked TINYINT(1) NOT NULL DEFAULT 0,
				fulfilled TINYINT(1) NOT NULL DEFAULT 0,
				createdAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
				INDEX idx_customer (customer)
			)`},
		{"order_items", `
			CREATE TABLE IF NOT EXISTS order_items (
				id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
				order_id BIGINT UNSIGNED NOT NULL,
				dish_id BIGINT NOT NULL,
				qty BIGINT NOT NULL,
				position INT NOT NULL,
				FOREIGN KEY (order_id) REFERENCES orders(id),
				INDEX idx_order (order_id)
			)`},
		{"accounts", `
			CREATE TABLE IF NOT EXISTS accounts (
				holder VARCHAR(64) NOT NULL PRIMARY KEY,
				balance BIGINT UNSIGNED NOT NULL DEFAULT 0,
				updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
			)`},
		{"token_balances", `
			CREATE TABLE IF NOT EXISTS token_balances (
				holder VARCHAR(64) NOT NULL PRIMARY KEY,
				balance BIGINT UNSIGNED NOT NULL DEFAULT 0,
				updatedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
			)`},
		{"credentials", `
			CREATE TABLE IF NOT EXISTS credentials (
				id BIGINT UNSIGNED NOT NULL PRIMARY KEY,
				owner VARCHAR(64) NOT NULL,
				order_id BIGINT UNSIGNED NOT NULL UNIQUE,
				mintedAt DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				INDEX idx_owner (owner)
			)`},
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt.query); err != nil {
			return fmt.Errorf("creating table %s: %w", stmt.name, err)
		}
	}

	return nil
}

func ensureLedgerState(ctx context.Context, db *sql.DB, cfg config.LedgerConfig) error {
	_, err := db.ExecContext(ctx,
		`INSERT IGNORE INTO ledger_state (id, next_order_id, next_token_id, credential_issuer) VALUES (1, 0, 0, '')`)
	if err != nil {
		return err
	}

	// Issuer registration is write-once: only fills the empty slot. A
	// different issuer already registered means the deployment was
	// reconfigured underneath a live ledger; refuse to start.
	result, err := db.ExecContext(ctx,
		`UPDATE ledger_state SET credential_issuer = ? WHERE id = 1 AND credential_issuer = ''`,
		cfg.LedgerAccount)
	if err != nil {
		return err
	}
	if _, err := result.RowsAffected(); err != nil {
		return err
	}

	var issuer string
	if err := db.QueryRowContext(ctx, `SELECT credential_issuer FROM ledger_state WHERE id = 1`).Scan(&issuer); err != nil {
		return err
	}
	if issuer != cfg.LedgerAccount {
		return fmt.Errorf("credential issuer already registered as %q, configured as %q", issuer, cfg.LedgerAccount)
	}

	return nil
}

func mintSupply(ctx context.Context, db *sql.DB, cfg config.LedgerConfig, logger *zap.Logger) error {
	var supply uint64
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(SUM(balance), 0) FROM token_balances`).Scan(&supply); err != nil {
		return err
	}
	if supply > 0 {
		return nil
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO token_balances (holder, balance) VALUES (?, ?)`,
		cfg.TreasuryAccount, cfg.TokenSupply)
	if err != nil {
		return err
	}

	logger.Info("token supply minted",
		zap.String("treasury", cfg.TreasuryAccount),
		zap.Uint64("supply", cfg.TokenSupply))

	return nil
}

func fundRewardPool(ctx context.Context, db *sql.DB, cfg config.LedgerConfig, logger *zap.Logger) error {
	var poolBalance uint64
	err := db.QueryRowContext(ctx,
		`SELECT balance FROM token_balances WHERE holder = ?`, cfg.LedgerAccount).Scan(&poolBalance)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	if poolBalance > 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE token_balances SET balance = balance - ? WHERE holder = ? AND balance >= ?`,
		cfg.RewardPool, cfg.TreasuryAccount, cfg.RewardPool)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("treasury cannot fund reward pool of %d", cfg.RewardPool)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO token_balances (holder, balance) VALUES (?, ?)
		 ON DUPLICATE KEY UPDATE balance = balance + VALUES(balance)`,
		cfg.LedgerAccount, cfg.RewardPool)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	logger.Info("reward pool funded",
		zap.String("pool", cfg.LedgerAccount),
		zap.Uint64("amount", cfg.RewardPool))

	return nil
}

// seedFaucet gives the configured dev accounts a native-currency balance so
// they can actually place orders. Skipped when FAUCET_ACCOUNTS is unset.
func seedFaucet(ctx context.Context, db *sql.DB, cfg config.LedgerConfig, logger *zap.Logger) error {
	if len(cfg.FaucetAccounts) == 0 {
		logger.Debug("no faucet accounts configured, skipping seed")
		return nil
	}

	for _, account := range cfg.FaucetAccounts {
		_, err := db.ExecContext(ctx,
			`INSERT IGNORE INTO accounts (holder, balance) VALUES (?, ?)`,
			account, cfg.FaucetAmount)
		if err != nil {
			return err
		}
	}

	logger.Info("faucet accounts seeded",
		zap.Int("count", len(cfg.FaucetAccounts)),
		zap.Uint64("amount", cfg.FaucetAmount))

	return nil
}
