package config

import (
	"github.com/spf13/viper"
)

// Key used by the CLI to sign on behalf of the acting party
type Signer struct {
	// Base58 encoded 64 byte ed25519 secret key. Empty disables signing commands.
	PrivateKey string
}

func setSignerDefaults() {
	viper.SetDefault("Signer.PrivateKey", "")
}
