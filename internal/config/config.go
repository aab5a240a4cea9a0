// Package config loads CLI and gateway settings from defaults, an optional
// YAML file, PMA_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Lite     LiteConfig     `mapstructure:"lite"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Tiles    TilesConfig    `mapstructure:"tiles"`
	Metadata MetadataConfig `mapstructure:"metadata"`
	Serve    ServeConfig    `mapstructure:"serve"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig points at the imaging service. An empty URL selects the local
// lite instance.
type ServerConfig struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type LiteConfig struct {
	URL string `mapstructure:"url"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type TilesConfig struct {
	Format      string `mapstructure:"format"`
	Quality     int    `mapstructure:"quality"`
	Concurrency int    `mapstructure:"concurrency"`
	Cache       bool   `mapstructure:"cache"`
}

type MetadataConfig struct {
	Strict bool `mapstructure:"strict"`
}

type ServeConfig struct {
	Port int `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// flagKeys maps command line flags onto configuration keys.
var flagKeys = map[string]string{
	"server":   "server.url",
	"username": "server.username",
	"password": "server.password",
	"port":     "serve.port",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "")
	v.SetDefault("server.username", "")
	v.SetDefault("server.password", "")

	v.SetDefault("lite.url", "http://localhost:54001/")
	v.SetDefault("http.timeout", 30*time.Second)

	v.SetDefault("tiles.format", "jpg")
	v.SetDefault("tiles.quality", 100)
	v.SetDefault("tiles.concurrency", 4)
	v.SetDefault("tiles.cache", true)

	v.SetDefault("metadata.strict", false)
	v.SetDefault("serve.port", 8888)
	v.SetDefault("log.level", "info")
}

// Load reads the configuration. When path is empty, pma.yaml is looked up in
// the working directory and $HOME/.config/pma, and a missing file is not an
// error. Flags that were set on the command line override everything else.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("PMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	} else {
		v.SetConfigName("pma")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "pma"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config file error: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Tiles.Format) {
	case "jpg", "png":
	default:
		return fmt.Errorf("invalid tiles.format: %s. Must be 'jpg' or 'png'", c.Tiles.Format)
	}
	if c.Tiles.Quality < 1 || c.Tiles.Quality > 100 {
		return errors.New("tiles.quality must be between 1 and 100")
	}
	if c.Tiles.Concurrency < 1 {
		return errors.New("tiles.concurrency must be positive")
	}
	if c.HTTP.Timeout <= 0 {
		return errors.New("http.timeout must be positive")
	}
	if c.Serve.Port < 1 || c.Serve.Port > 65535 {
		return errors.New("invalid serve port")
	}
	if c.Lite.URL == "" {
		return errors.New("lite.url must be set")
	}
	if c.Server.Password != "" && c.Server.Username == "" {
		return errors.New("server.password is set without server.username")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level: %s", c.Log.Level)
	}
	return nil
}
