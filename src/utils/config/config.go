package config

import (
	"bytes"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/iancoleman/strcase"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const ENV_PREFIX = "SHADOWLINK_"

// Config stores global configuration
type Config struct {
	// Is development mode on
	IsDevelopment bool

	// REST API address. API used for monitoring etc.
	RESTListenAddress string `validate:"required"`

	// Maximum time the engine will be closing before stop is forced.
	StopTimeout time.Duration

	// Logging level
	LogLevel string `validate:"required"`

	// Log as JSON instead of text
	LogJSON bool

	Database    Database
	Store       Store
	Gateway     Gateway
	Ledger      Ledger
	Asset       Asset
	Payroll     Payroll
	Eligibility Eligibility
	History     History
	Notifier    Notifier
	Redis       Redis
	Profiler    Profiler
	Signer      Signer
	Invoice     Invoice
}

func setDefaults() {
	viper.SetDefault("IsDevelopment", "false")
	viper.SetDefault("RESTListenAddress", ":7777")
	viper.SetDefault("LogLevel", "DEBUG")
	viper.SetDefault("LogJSON", "false")
	viper.SetDefault("StopTimeout", "30s")

	setDatabaseDefaults()
	setStoreDefaults()
	setGatewayDefaults()
	setLedgerDefaults()
	setAssetDefaults()
	setPayrollDefaults()
	setEligibilityDefaults()
	setHistoryDefaults()
	setNotifierDefaults()
	setRedisDefaults()
	setProfilerDefaults()
	setSignerDefaults()
	setInvoiceDefaults()
}

func Default() (config *Config) {
	config, err := Load("")
	if err != nil {
		panic(err)
	}
	return
}

// Visits every field and registers upper snake case ENV name for it
func BindEnv(path []string, val reflect.Value) {
	if val.Kind() != reflect.Struct {
		key := strings.ToLower(strings.Join(path, "."))
		env := ENV_PREFIX + strcase.ToScreamingSnake(strings.Join(path, "_"))
		err := viper.BindEnv(key, env)
		if err != nil {
			panic(err)
		}
		return
	}

	// Iterates over struct fields
	for i := 0; i < val.NumField(); i++ {
		newPath := make([]string, len(path))
		copy(newPath, path)
		newPath = append(newPath, val.Type().Field(i).Name)
		BindEnv(newPath, val.Field(i))
	}
}

func decoderConfig(c *mapstructure.DecoderConfig) {
	c.WeaklyTypedInput = true
	c.DecodeHook = mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// Load configuration from file and env
func Load(filename string) (config *Config, err error) {
	viper.Reset()
	viper.SetConfigType("json")

	setDefaults()

	// Works with embedded structs
	BindEnv([]string{}, reflect.ValueOf(Config{}))

	// Empty filename means we use default values
	if filename != "" {
		var content []byte
		/* #nosec */
		content, err = os.ReadFile(filename)
		if err != nil {
			return nil, err
		}

		err = viper.ReadConfig(bytes.NewBuffer(content))
		if err != nil {
			return nil, err
		}
	}

	config = new(Config)
	err = viper.Unmarshal(config, decoderConfig)
	if err != nil {
		return nil, err
	}

	err = validator.New().Struct(config)
	if err != nil {
		return nil, err
	}

	return
}
