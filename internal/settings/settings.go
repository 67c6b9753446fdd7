// Package settings loads runtime settings with viper.
//
// Sources, lowest precedence first: built-in defaults, parkingsim.yaml in the
// config directory, PARKINGSIM_* environment variables, then flags bound by
// the CLI through viper.Set.
package settings

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Keys
const (
	KeyLogLevel   = "log_level"
	KeyLogFormat  = "log_format"
	KeyLayoutsDir = "layouts_dir"
	KeyLayout     = "layout"
	KeyStrategy   = "strategy"
	KeyAddr       = "addr"
	KeyTPS        = "tps"
)

const (
	EnvPrefix  = "PARKINGSIM"
	ConfigName = "parkingsim"
)

// Settings is the resolved runtime configuration
type Settings struct {
	LogLevel   string `mapstructure:"log_level"`
	LogFormat  string `mapstructure:"log_format"`
	LayoutsDir string `mapstructure:"layouts_dir"`
	Layout     string `mapstructure:"layout"`
	Strategy   string `mapstructure:"strategy"`
	Addr       string `mapstructure:"addr"`
	TPS        int    `mapstructure:"tps"`
}

// SetDefaults registers the built-in defaults
func SetDefaults() {
	viper.SetDefault(KeyLogLevel, "info")
	viper.SetDefault(KeyLogFormat, "console")
	viper.SetDefault(KeyLayoutsDir, "./configs")
	viper.SetDefault(KeyLayout, "")
	viper.SetDefault(KeyStrategy, "")
	viper.SetDefault(KeyAddr, "127.0.0.1:8080")
	viper.SetDefault(KeyTPS, 60)
}

// Load reads defaults, the optional config file in configDir and the environment.
// A missing config file is not an error.
func Load(configDir string) error {
	SetDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(ConfigName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// Current decodes the live viper state
func Current() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if s.TPS <= 0 {
		return nil, fmt.Errorf("tps must be positive, got %d", s.TPS)
	}
	return &s, nil
}

// Override sets key when value is non-zero, giving flags the last word
func Override(key string, value interface{}) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return
		}
	case int:
		if v == 0 {
			return
		}
	}
	viper.Set(key, value)
}
