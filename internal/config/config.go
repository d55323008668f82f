package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	Auth     AuthConfig
	Ledger   LedgerConfig
	Events   EventsConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type LogConfig struct {
	Level string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// LedgerConfig carries the fixed settlement constants and the well-known
// ledger accounts. The ledger account is the principal the settlement service
// acts as: it holds the reward pool and is registered as the credential
// issuer at genesis.
type LedgerConfig struct {
	FeeRateBps       uint64
	MerchantShareBps uint64
	RewardQuantum    uint64
	TokenSupply      uint64
	RewardPool       uint64
	LedgerAccount    string
	EscrowAccount    string
	PlatformAccount  string
	TreasuryAccount  string
	TxTimeout        time.Duration
	MaxRetryAttempts int
	FaucetAccounts   []string
	FaucetAmount     uint64
}

type EventsConfig struct {
	AMQPURL  string
	Exchange string
}

func Load() (*Config, error) {
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 3306)
	viper.SetDefault("DB_USER", "oureat")
	viper.SetDefault("DB_PASSWORD", "secret")
	viper.SetDefault("DB_NAME", "oureat")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("JWT_SECRET", "dev-secret-change-me")
	viper.SetDefault("TOKEN_TTL", "24h")
	viper.SetDefault("FEE_RATE_BPS", 250)
	viper.SetDefault("MERCHANT_SHARE_BPS", 9000)
	viper.SetDefault("REWARD_QUANTUM", 10)
	viper.SetDefault("TOKEN_SUPPLY", 1000000)
	viper.SetDefault("REWARD_POOL", 100000)
	viper.SetDefault("LEDGER_ACCOUNT", "0xledger")
	viper.SetDefault("ESCROW_ACCOUNT", "0xescrow")
	viper.SetDefault("PLATFORM_ACCOUNT", "0xplatform")
	viper.SetDefault("TREASURY_ACCOUNT", "0xtreasury")
	viper.SetDefault("LEDGER_TX_TIMEOUT", "5s")
	viper.SetDefault("LEDGER_MAX_RETRY_ATTEMPTS", 3)
	viper.SetDefault("FAUCET_ACCOUNTS", "")
	viper.SetDefault("FAUCET_AMOUNT", 10000)
	viper.SetDefault("AMQP_URL", "")
	viper.SetDefault("AMQP_EXCHANGE", "oureat.orders")

	connMaxLifetime, err := time.ParseDuration(viper.GetString("DB_CONN_MAX_LIFETIME"))
	if err != nil {
		return nil, err
	}

	tokenTTL, err := time.ParseDuration(viper.GetString("TOKEN_TTL"))
	if err != nil {
		return nil, err
	}

	txTimeout, err := time.ParseDuration(viper.GetString("LEDGER_TX_TIMEOUT"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("SERVER_PORT"),
		},
		Database: DatabaseConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			User:            viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Name:            viper.GetString("DB_NAME"),
			MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: connMaxLifetime,
		},
		Log: LogConfig{
			Level: viper.GetString("LOG_LEVEL"),
		},
		Auth: AuthConfig{
			JWTSecret: viper.GetString("JWT_SECRET"),
			TokenTTL:  tokenTTL,
		},
		Ledger: LedgerConfig{
			FeeRateBps:       viper.GetUint64("FEE_RATE_BPS"),
			MerchantShareBps: viper.GetUint64("MERCHANT_SHARE_BPS"),
			RewardQuantum:    viper.GetUint64("REWARD_QUANTUM"),
			TokenSupply:      viper.GetUint64("TOKEN_SUPPLY"),
			RewardPool:       viper.GetUint64("REWARD_POOL"),
			LedgerAccount:    viper.GetString("LEDGER_ACCOUNT"),
			EscrowAccount:    viper.GetString("ESCROW_ACCOUNT"),
			PlatformAccount:  viper.GetString("PLATFORM_ACCOUNT"),
			TreasuryAccount:  viper.GetString("TREASURY_ACCOUNT"),
			TxTimeout:        txTimeout,
			MaxRetryAttempts: viper.GetInt("LEDGER_MAX_RETRY_ATTEMPTS"),
			FaucetAccounts:   splitAccounts(viper.GetString("FAUCET_ACCOUNTS")),
			FaucetAmount:     viper.GetUint64("FAUCET_AMOUNT"),
		},
		Events: EventsConfig{
			AMQPURL:  viper.GetString("AMQP_URL"),
			Exchange: viper.GetString("AMQP_EXCHANGE"),
		},
	}

	return cfg, nil
}

func splitAccounts(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	accounts := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			accounts = append(accounts, trimmed)
		}
	}
	return accounts
}
