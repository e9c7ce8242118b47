// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the runtime settings from the environment, an optional
// barrios.yaml and a .env file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jcodagnone/barrios/boundaries"
	"github.com/jcodagnone/barrios/geocoding"
	"github.com/jcodagnone/barrios/resolution"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every setting of the tool.
type Config struct {
	City       CityConfig       `mapstructure:"city"`
	Geocoding  GeocodingConfig  `mapstructure:"geocoding"`
	Boundaries BoundariesConfig `mapstructure:"boundaries"`
	DB         DBConfig         `mapstructure:"db"`
	Resolve    ResolveConfig    `mapstructure:"resolve"`
	Server     ServerConfig     `mapstructure:"server"`
}

// CityConfig names the city whose name is the ambiguous value of both
// taxonomies.
type CityConfig struct {
	Name   string `mapstructure:"name"`
	Region string `mapstructure:"region"`
}

type GeocodingConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Language       string        `mapstructure:"language"`
	Region         string        `mapstructure:"region"`
	MinDelay       time.Duration `mapstructure:"min_delay"`
	Timeout        time.Duration `mapstructure:"timeout"`
	HTTPTrace      bool          `mapstructure:"http_trace"`
	KeyDisplayName string        `mapstructure:"key_display_name"`
	ProjectID      string        `mapstructure:"project_id"`
}

type BoundariesConfig struct {
	Barrios        string `mapstructure:"barrios"`
	Comunas        string `mapstructure:"comunas"`
	BarrioProperty string `mapstructure:"barrio_property"`
	ComunaProperty string `mapstructure:"comuna_property"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

type ResolveConfig struct {
	Forward bool `mapstructure:"forward"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// fallbackAPIKeyEnv is read when BARRIOS_GEOCODING_API_KEY is not set.
const fallbackAPIKeyEnv = "GOOGLE_MAPS_API_KEY"

// Load reads the configuration. A missing .env or barrios.yaml is not an
// error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("barrios")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BARRIOS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Geocoding.APIKey == "" {
		cfg.Geocoding.APIKey = os.Getenv(fallbackAPIKeyEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("city.name", "Cali")
	v.SetDefault("city.region", "Valle del Cauca, Colombia")

	v.SetDefault("geocoding.api_key", "")
	v.SetDefault("geocoding.base_url", geocoding.DefaultBaseURL)
	v.SetDefault("geocoding.language", "es")
	v.SetDefault("geocoding.region", "co")
	v.SetDefault("geocoding.min_delay", 100*time.Millisecond)
	v.SetDefault("geocoding.timeout", 10*time.Second)
	v.SetDefault("geocoding.http_trace", false)
	v.SetDefault("geocoding.key_display_name", "")
	v.SetDefault("geocoding.project_id", "")

	v.SetDefault("boundaries.barrios", "data/barrios.geojson")
	v.SetDefault("boundaries.comunas", "data/comunas.geojson")
	v.SetDefault("boundaries.barrio_property", "barrio")
	v.SetDefault("boundaries.comuna_property", "comuna")

	v.SetDefault("db.path", "barrios.duckdb")
	v.SetDefault("resolve.forward", false)
	v.SetDefault("server.addr", ":8080")
}

// Validate checks the settings that have no usable zero value.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.City.Name) == "" {
		return errors.New("city.name must not be empty")
	}

	if c.Geocoding.MinDelay < 0 {
		return fmt.Errorf("geocoding.min_delay must not be negative, got %s", c.Geocoding.MinDelay)
	}

	if c.Geocoding.Timeout <= 0 {
		return fmt.Errorf("geocoding.timeout must be positive, got %s", c.Geocoding.Timeout)
	}

	if c.Boundaries.Barrios == "" || c.Boundaries.Comunas == "" {
		return errors.New("boundaries.barrios and boundaries.comunas are required")
	}

	return nil
}

// APIKey returns the configured key or, failing that, the one found through
// Application Default Credentials.
func (c *Config) APIKey(ctx context.Context) (string, error) {
	return geocoding.ResolveAPIKey(ctx, c.Geocoding.APIKey, geocoding.KeyLookup{
		DisplayName: c.Geocoding.KeyDisplayName,
		ProjectID:   c.Geocoding.ProjectID,
	})
}

// GeocodingOptions maps the settings to client options. trace is only used
// when geocoding.http_trace is on.
func (c *Config) GeocodingOptions(apiKey, userAgent string, trace io.Writer) geocoding.Options {
	opts := geocoding.Options{
		APIKey:    apiKey,
		BaseURL:   c.Geocoding.BaseURL,
		Language:  c.Geocoding.Language,
		Region:    c.Geocoding.Region,
		UserAgent: userAgent,
		MinDelay:  c.Geocoding.MinDelay,
		Timeout:   c.Geocoding.Timeout,
	}

	if c.Geocoding.HTTPTrace {
		opts.Trace = trace
	}

	return opts
}

// EngineOptions maps the settings to engine options.
func (c *Config) EngineOptions() resolution.Options {
	return resolution.Options{
		City:    c.City.Name,
		Region:  c.City.Region,
		Forward: c.Resolve.Forward,
	}
}

// LoadReference reads both boundary files.
func (c *Config) LoadReference() (*boundaries.Reference, error) {
	barrios, err := boundaries.LoadBarrios(boundaries.GeoJSONFile{
		Path:          c.Boundaries.Barrios,
		LabelProperty: c.Boundaries.BarrioProperty,
	})
	if err != nil {
		return nil, fmt.Errorf("loading barrios: %w", err)
	}

	comunas, err := boundaries.LoadComunas(boundaries.GeoJSONFile{
		Path:          c.Boundaries.Comunas,
		LabelProperty: c.Boundaries.ComunaProperty,
	})
	if err != nil {
		return nil, fmt.Errorf("loading comunas: %w", err)
	}

	return &boundaries.Reference{Barrios: barrios, Comunas: comunas}, nil
}
