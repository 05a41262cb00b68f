package config

import (
	"time"

	"github.com/spf13/viper"
)

// Publishing workflow events to Redis
type Notifier struct {
	// Events are dropped when disabled
	Enabled bool

	// Redis channel events are published to
	ChannelName string `validate:"required"`

	// Publish backoff configuration, 0 is no limit
	MaxElapsedTime time.Duration
	MaxInterval    time.Duration

	// Num of workers that publish messages
	MaxWorkers int `validate:"min=1"`

	// Max num of requests in worker's queue
	MaxQueueSize int `validate:"min=1"`
}

func setNotifierDefaults() {
	viper.SetDefault("Notifier.Enabled", "false")
	viper.SetDefault("Notifier.ChannelName", "shadowlink")
	viper.SetDefault("Notifier.MaxElapsedTime", "10m")
	viper.SetDefault("Notifier.MaxInterval", "60s")
	viper.SetDefault("Notifier.MaxWorkers", "5")
	viper.SetDefault("Notifier.MaxQueueSize", "10")
}
