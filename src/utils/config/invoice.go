package config

import (
	"github.com/spf13/viper"
)

type Invoice struct {
	// Prefix of generated invoice numbers
	NumberPrefix string `validate:"required,alphanum"`
}

func setInvoiceDefaults() {
	viper.SetDefault("Invoice.NumberPrefix", "INV")
}
