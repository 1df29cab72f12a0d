// Package config loads datahub settings from an optional YAML file and
// DATAHUB_ environment variables.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/theplant/datahub/criteria"
	"github.com/theplant/datahub/internal/logging"
)

const EnvPrefix = "DATAHUB"

type Config struct {
	Paging     PagingConfig     `mapstructure:"paging"`
	Complexity ComplexityConfig `mapstructure:"complexity"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Log        logging.Config   `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
}

type PagingConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

// ComplexityConfig limits merged criteria. Zero disables a limit.
type ComplexityConfig struct {
	MaxCriteria      int `mapstructure:"max_criteria"`
	MaxOrConnectives int `mapstructure:"max_or_connectives"`
	MaxInValues      int `mapstructure:"max_in_values"`
	MaxSorts         int `mapstructure:"max_sorts"`
}

// Limits returns nil when every limit is disabled.
func (c ComplexityConfig) Limits() *criteria.ComplexityLimits {
	limits := criteria.ComplexityLimits(c)
	if limits == (criteria.ComplexityLimits{}) {
		return nil
	}
	return &limits
}

type CacheConfig struct {
	// Size is the number of compiled predicates kept. Zero disables the cache.
	Size int `mapstructure:"size"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paging.default_page_size", 20)
	v.SetDefault("paging.max_page_size", 1000)
	v.SetDefault("complexity.max_criteria", criteria.DefaultLimits.MaxCriteria)
	v.SetDefault("complexity.max_or_connectives", criteria.DefaultLimits.MaxOrConnectives)
	v.SetDefault("complexity.max_in_values", criteria.DefaultLimits.MaxInValues)
	v.SetDefault("complexity.max_sorts", criteria.DefaultLimits.MaxSorts)
	v.SetDefault("cache.size", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logging.FormatText)
	v.SetDefault("log.add_source", false)
	v.SetDefault("database.dsn", "")
}

// Load reads path when it is not empty, then applies environment overrides
// such as DATAHUB_PAGING_MAX_PAGE_SIZE.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Paging.DefaultPageSize <= 0 {
		return errors.Errorf("paging.default_page_size must be greater than 0, got %d", c.Paging.DefaultPageSize)
	}
	if c.Paging.MaxPageSize < c.Paging.DefaultPageSize {
		return errors.Errorf("paging.max_page_size %d is less than paging.default_page_size %d", c.Paging.MaxPageSize, c.Paging.DefaultPageSize)
	}
	if c.Cache.Size < 0 {
		return errors.Errorf("cache.size must not be negative, got %d", c.Cache.Size)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}
