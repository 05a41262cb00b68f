package config

import (
	"github.com/spf13/viper"
)

type Payroll struct {
	// Number of confirmations awaited in parallel. Signing is always serial.
	// 1 means every disbursement is confirmed before the next one is signed.
	ConfirmWorkers int `validate:"min=1"`
}

func setPayrollDefaults() {
	viper.SetDefault("Payroll.ConfirmWorkers", "1")
}
