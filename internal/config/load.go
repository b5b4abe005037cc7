package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads the config file at path, applies environment overrides, and
// validates the result. A missing file is not an error: defaults plus
// environment apply. A .env file in the working directory is loaded first
// so that credentials are available before any component is constructed.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("DROIDAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvAliases(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := ValidateSettings(v.AllSettings()); err != nil {
			return Config{}, err
		}
	}

	cfg := Default()
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		secondsToDurationHook(),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Model.APIKey == "" && cfg.Model.APIKeyEnv != "" {
		cfg.Model.APIKey = strings.TrimSpace(os.Getenv(cfg.Model.APIKeyEnv))
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// bindEnvAliases maps the original flat environment names onto config keys
// so existing deployments keep working.
func bindEnvAliases(v *viper.Viper) {
	aliases := map[string]string{
		"model.base_url":  "OLLAMA_API_BASE",
		"device.adb_path": "ADB_PATH",
		"device.serial":   "ANDROID_SERIAL",
	}
	for key, env := range aliases {
		_ = v.BindEnv(key, "DROIDAGENT_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}
}

// secondsToDurationHook converts bare integers into seconds for duration
// fields, matching the file format's `timeout: 30` shorthand.
func secondsToDurationHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch n := data.(type) {
		case int:
			return time.Duration(n) * time.Second, nil
		case int64:
			return time.Duration(n) * time.Second, nil
		case float64:
			return time.Duration(n * float64(time.Second)), nil
		default:
			return data, nil
		}
	}
}
