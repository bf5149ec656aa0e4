// Package clientconfig loads settings of the candidate CLI.
package clientconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nefziamine/skill-evaluator/internal/credstore"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. SKILLEVAL_API_URL.
const EnvPrefix = "SKILLEVAL"

var ErrInvalidConfig = errors.New("invalid client configuration")

// Config holds client configuration loaded from an optional file and the environment.
type Config struct {
	APIURL          string        `mapstructure:"api_url"`          // base URL of the API server
	CredentialsPath string        `mapstructure:"credentials_path"` // where the login token is kept
	Timeout         time.Duration `mapstructure:"timeout"`          // per-request HTTP timeout
	Autosave        bool          `mapstructure:"autosave"`         // stream answers to the server while answering
	LogLevel        string        `mapstructure:"log_level"`
	LogFormat       string        `mapstructure:"log_format"`
}

// Load reads skilleval.yaml from path when given, otherwise from the working
// directory or ~/.config/skilleval. A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("skilleval")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/skilleval")
	}

	v.SetDefault("api_url", "http://localhost:8080")
	v.SetDefault("credentials_path", "")
	v.SetDefault("timeout", "15s")
	v.SetDefault("autosave", true)
	v.SetDefault("log_level", "warn")
	v.SetDefault("log_format", "pretty")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if cfg.CredentialsPath == "" {
		p, err := credstore.DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve credentials path: %w", err)
		}
		cfg.CredentialsPath = p
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		return fmt.Errorf("%w: api_url must start with http:// or https://", ErrInvalidConfig)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}
