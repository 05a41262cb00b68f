package config

import (
	"time"

	"github.com/spf13/viper"
)

type Eligibility struct {
	// How long a fetched pool balance is served from memory
	BalanceCacheTTL time.Duration

	// How often expired balances are purged
	BalanceCacheCleanupInterval time.Duration
}

func setEligibilityDefaults() {
	viper.SetDefault("Eligibility.BalanceCacheTTL", "15s")
	viper.SetDefault("Eligibility.BalanceCacheCleanupInterval", "1m")
}
