package config

import (
	"time"

	"github.com/spf13/viper"
)

type History struct {
	// How many settlement records are inserted in one batch
	StoreBatchSize int `validate:"min=1"`

	// How often are records flushed to the database
	StoreInterval time.Duration

	// Max time flush will be retried, 0 means no limit
	StoreBackoffMaxElapsedTime time.Duration

	// Max time between flush retries
	StoreBackoffMaxInterval time.Duration

	// Default number of entries returned by recent history queries
	RecentSize int `validate:"min=1"`
}

func setHistoryDefaults() {
	viper.SetDefault("History.StoreBatchSize", "50")
	viper.SetDefault("History.StoreInterval", "1s")
	viper.SetDefault("History.StoreBackoffMaxElapsedTime", "0")
	viper.SetDefault("History.StoreBackoffMaxInterval", "8s")
	viper.SetDefault("History.RecentSize", "10")
}
