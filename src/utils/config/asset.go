package config

import (
	"github.com/spf13/viper"
)

// Asset settled through the pool
type Asset struct {
	// Token symbol used by the pool API
	Symbol string `validate:"required"`

	// Token mint address
	Mint string `validate:"required"`

	// Number of decimal places of the minor unit
	Decimals int32 `validate:"min=0,max=18"`

	// Minimum transferable amount, in whole units
	MinAmount string `validate:"required,numeric"`
}

func setAssetDefaults() {
	viper.SetDefault("Asset.Symbol", "USD1")
	viper.SetDefault("Asset.Mint", "USD1ttGY1N17NEEHLmELoaybftRBUSErhqYiQzvEmuB")
	viper.SetDefault("Asset.Decimals", "6")
	viper.SetDefault("Asset.MinAmount", "5")
}
