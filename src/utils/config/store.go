package config

import (
	"github.com/spf13/viper"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

type Store struct {
	// Where records are kept: postgres or memory
	Backend string `validate:"oneof=postgres memory"`
}

func setStoreDefaults() {
	viper.SetDefault("Store.Backend", StoreBackendPostgres)
}
