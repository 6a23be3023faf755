package ormclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/recordlink-io/jsonapi-orm/pkg/jsonapi"
)

// FileConfig is the on-disk configuration: client settings plus the declared
// resource schemas. It maps onto YAML/JSON/TOML via viper.
type FileConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	UserAgent string `mapstructure:"user_agent"`

	// Headers are sent with every request. viper lowercases the configured
	// names; the HTTP layer canonicalizes them when setting request headers.
	Headers map[string]string `mapstructure:"headers"`

	Timeout         time.Duration `mapstructure:"timeout"`
	Debug           bool          `mapstructure:"debug"`
	CachePrefix     string        `mapstructure:"cache_prefix"`
	CacheKeyVersion string        `mapstructure:"cache_key_version"`

	Retry struct {
		Max     int           `mapstructure:"max"`
		WaitMin time.Duration `mapstructure:"wait_min"`
		WaitMax time.Duration `mapstructure:"wait_max"`
	} `mapstructure:"retry"`

	Cache struct {
		Type   string `mapstructure:"type"`
		Memory struct {
			MaxSize int `mapstructure:"max_size"`
		} `mapstructure:"memory"`
		Redis struct {
			Addr     string `mapstructure:"addr"`
			Username string `mapstructure:"username"`
			Password string `mapstructure:"password"`
			DB       int    `mapstructure:"db"`
		} `mapstructure:"redis"`
		NATS struct {
			URL       string        `mapstructure:"url"`
			Bucket    string        `mapstructure:"bucket"`
			TTL       time.Duration `mapstructure:"ttl"`
			CredsFile string        `mapstructure:"creds_file"`
		} `mapstructure:"nats"`
	} `mapstructure:"cache"`

	Resources []ResourceConfig `mapstructure:"resources"`
}

// ResourceConfig declares one record type in the configuration file.
type ResourceConfig struct {
	Type               string         `mapstructure:"type"`
	PageSize           int            `mapstructure:"page_size"`
	CacheTTL           *time.Duration `mapstructure:"cache_ttl"`
	ManyIDLookup       string         `mapstructure:"many_id_lookup"`
	BaseURL            string         `mapstructure:"base_url"`
	Attributes         []string       `mapstructure:"attributes"`
	DateTimeAttributes []string       `mapstructure:"datetime_attributes"`
	Relationships      []struct {
		Name string `mapstructure:"name"`
		Many bool   `mapstructure:"many"`
	} `mapstructure:"relationships"`
}

// LoadConfig reads a configuration file, layering JSONAPI_ORM_* environment
// variables on top (e.g. JSONAPI_ORM_BASE_URL overrides base_url).
func LoadConfig(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("JSONAPI_ORM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	err := v.ReadInConfig()
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var config FileConfig

	err = v.Unmarshal(&config)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return &config, nil
}

// ClientConfig converts the file configuration into a Config for New.
func (c *FileConfig) ClientConfig(logger jsonapi.Logger) *Config {
	config := &Config{
		BaseURL:         c.BaseURL,
		Headers:         c.Headers,
		UserAgent:       c.UserAgent,
		Timeout:         c.Timeout,
		RetryMax:        c.Retry.Max,
		RetryWaitMin:    c.Retry.WaitMin,
		RetryWaitMax:    c.Retry.WaitMax,
		Debug:           c.Debug,
		Logger:          logger,
		CachePrefix:     c.CachePrefix,
		CacheKeyVersion: c.CacheKeyVersion,
	}

	if c.Cache.Type != "" {
		config.Cache = &jsonapi.CacheConfig{
			Type: jsonapi.CacheType(c.Cache.Type),
			Memory: &jsonapi.MemoryCacheConfig{
				MaxSize: c.Cache.Memory.MaxSize,
			},
			Redis: &jsonapi.RedisConfig{
				Addr:     c.Cache.Redis.Addr,
				Username: c.Cache.Redis.Username,
				Password: c.Cache.Redis.Password,
				DB:       c.Cache.Redis.DB,
			},
			NATS: &jsonapi.NATSKVConfig{
				URL:       c.Cache.NATS.URL,
				Bucket:    c.Cache.NATS.Bucket,
				TTL:       c.Cache.NATS.TTL,
				CredsFile: c.Cache.NATS.CredsFile,
			},
		}
	}

	return config
}

// BuildRegistry turns the declared resource schemas into a registry.
func (c *FileConfig) BuildRegistry() (*jsonapi.Registry, error) {
	registry := jsonapi.NewRegistry()

	for _, resource := range c.Resources {
		fields := make(map[string]jsonapi.Field)

		for _, name := range resource.Attributes {
			fields[name] = jsonapi.Attribute{}
		}

		for _, name := range resource.DateTimeAttributes {
			fields[name] = jsonapi.DateTimeAttribute{}
		}

		for _, rel := range resource.Relationships {
			fields[rel.Name] = jsonapi.RelationshipField{Many: rel.Many}
		}

		err := registry.Register(&jsonapi.RecordType{
			ResourceType: resource.Type,
			Fields:       fields,
			PageSize:     resource.PageSize,
			CacheTTL:     resource.CacheTTL,
			ManyIDLookup: resource.ManyIDLookup,
			BaseURL:      resource.BaseURL,
		})
		if err != nil {
			return nil, err
		}
	}

	return registry, nil
}
