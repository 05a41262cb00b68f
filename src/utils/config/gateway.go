package config

import (
	"time"

	"github.com/spf13/viper"
)

// Shielded pool relayer API. Produces unsigned instructions and settles internal transfers.
type Gateway struct {
	// Base URL of the pool API
	Url string `validate:"required,url"`

	// Time limit for requests. The timeout includes connection time, any
	// redirects, and reading the response body.
	RequestTimeout time.Duration

	// Dialer settings
	DialerTimeout       time.Duration
	DialerKeepAlive     time.Duration
	TLSHandshakeTimeout time.Duration
	IdleConnTimeout     time.Duration

	// Rate limiting of requests sent to the pool API
	LimiterInterval  time.Duration
	LimiterBurstSize int

	// Number of retries of read-only requests upon server errors
	ReadRetryCount int
}

func setGatewayDefaults() {
	viper.SetDefault("Gateway.Url", "https://shadow.radr.fun/shadowpay/api")
	viper.SetDefault("Gateway.RequestTimeout", "30s")
	viper.SetDefault("Gateway.DialerTimeout", "10s")
	viper.SetDefault("Gateway.DialerKeepAlive", "15s")
	viper.SetDefault("Gateway.TLSHandshakeTimeout", "10s")
	viper.SetDefault("Gateway.IdleConnTimeout", "31s")
	viper.SetDefault("Gateway.LimiterInterval", "100ms")
	viper.SetDefault("Gateway.LimiterBurstSize", "10")
	viper.SetDefault("Gateway.ReadRetryCount", "2")
}
