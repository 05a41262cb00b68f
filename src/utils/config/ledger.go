package config

import (
	"time"

	"github.com/spf13/viper"
)

// JSON-RPC node of the ledger the pool settles on
type Ledger struct {
	// RPC endpoint
	Url string `validate:"required,url"`

	// Commitment level required for a confirmation
	Commitment string `validate:"oneof=processed confirmed finalized"`

	// Time limit for a single RPC request
	RequestTimeout time.Duration

	// How often the signature status is polled while waiting for a confirmation
	ConfirmPollInterval time.Duration

	// Upper bound of waiting for a confirmation, 0 waits as long as the caller does
	ConfirmTimeout time.Duration

	// Number of retries of read-only requests upon server errors
	ReadRetryCount int
}

func setLedgerDefaults() {
	viper.SetDefault("Ledger.Url", "https://api.mainnet-beta.solana.com")
	viper.SetDefault("Ledger.Commitment", "confirmed")
	viper.SetDefault("Ledger.RequestTimeout", "15s")
	viper.SetDefault("Ledger.ConfirmPollInterval", "2s")
	viper.SetDefault("Ledger.ConfirmTimeout", "2m")
	viper.SetDefault("Ledger.ReadRetryCount", "2")
}
