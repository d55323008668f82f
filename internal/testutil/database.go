package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	_ "github.com/go-sql-driver/mysql"

	"oureat/internal/config"
	"oureat/internal/genesis"

	"go.uber.org/zap"
)

// SetupTestDB opens the integration-test database. Expects a local MySQL
// with an 'oureat_test' schema; tests skip when it is not reachable.
func SetupTestDB(t *testing.T) *sql.DB {
	dsn := "root:@tcp(localhost:3306)/oureat_test?parseTime=true"
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("test database not available: %v", err)
	}

	return db
}

// TestLedgerConfig mirrors the production defaults at test-friendly scale.
func TestLedgerConfig() config.LedgerConfig {
	return config.LedgerConfig{
		FeeRateBps:       250,
		MerchantShareBps: 9000,
		RewardQuantum:    10,
		TokenSupply:      1000,
		RewardPool:       100,
		LedgerAccount:    "0xledger",
		EscrowAccount:    "0xescrow",
		PlatformAccount:  "0xplatform",
		TreasuryAccount:  "0xtreasury",
	}
}

// SetupLedger runs genesis against the test database so every table exists
// and the counters, issuer, supply and reward pool are initialized.
func SetupLedger(t *testing.T, db *sql.DB, cfg config.LedgerConfig) {
	if err := genesis.Run(context.Background(), db, cfg, zap.NewNop()); err != nil {
		t.Fatalf("failed to run genesis: %v", err)
	}
}

// CleanupTestDB resets the ledger tables. order_items goes first because of
// its foreign key.
func CleanupTestDB(t *testing.T, db *sql.DB) {
	if db == nil {
		return
	}

	tables := []string{"order_items", "orders", "credentials", "token_balances", "accounts", "ledger_state"}
	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("DELETE FROM %s", table))
		if err != nil {
			t.Logf("failed to clean table %s: %v", table, err)
		}
	}

	db.Close()
}
