package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/AlexGustafsson/metube/internal/thumbnail"
	"github.com/AlexGustafsson/metube/internal/youtube"
	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Workers is the number of concurrent fetch jobs.
	Workers int `yaml:"workers" env:"METUBE_WORKERS"`

	YouTube   *YouTubeConfig   `yaml:"youtube"`
	Transport *TransportConfig `yaml:"transport"`
	Thumbnail *ThumbnailConfig `yaml:"thumbnail"`
	Search    *SearchConfig    `yaml:"search"`

	Prometheus *PrometheusConfig `yaml:"prometheus,omitempty"`

	LogLevel slog.Level `yaml:"logLevel" env:"METUBE_LOG_LEVEL"`
}

type YouTubeConfig struct {
	Host                 string `yaml:"host" env:"METUBE_YOUTUBE_HOST"`
	VideoThumbnailHost   string `yaml:"videoThumbnailHost"`
	ChannelThumbnailHost string `yaml:"channelThumbnailHost"`
	UserAgent            string `yaml:"userAgent" env:"METUBE_USER_AGENT"`
	ClientVersion        string `yaml:"clientVersion" env:"METUBE_CLIENT_VERSION"`
}

type TransportConfig struct {
	// MaxBodyBytes bounds the size of a single response body. Zero means
	// the 1 GiB buffer ceiling.
	MaxBodyBytes int `yaml:"maxBodyBytes"`
	// IOTimeout bounds a single exchange once connected. Zero means requests
	// may block forever.
	IOTimeout         time.Duration `yaml:"ioTimeout" env:"METUBE_IO_TIMEOUT"`
	ResolverCacheSize int           `yaml:"resolverCacheSize"`
}

type ThumbnailConfig struct {
	TTL time.Duration `yaml:"ttl" env:"METUBE_THUMBNAIL_TTL"`
	// RateLimit is the number of thumbnail fetches started per second. Zero
	// or less means unlimited.
	RateLimit float64 `yaml:"rateLimit"`
	Burst     int     `yaml:"burst"`
	// MaxWidth scales down wider thumbnails. Zero keeps the original size.
	MaxWidth int `yaml:"maxWidth"`
}

// SearchConfig holds the defaults for searches.
type SearchConfig struct {
	Sort        youtube.Sort  `yaml:"sort" env:"METUBE_SORT"`
	Media       youtube.Media `yaml:"media" env:"METUBE_MEDIA"`
	AllowShorts bool          `yaml:"allowShorts" env:"METUBE_ALLOW_SHORTS"`
}

type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled" env:"METUBE_PROMETHEUS_ENABLED"`
	Port    uint16 `yaml:"port" env:"METUBE_PROMETHEUS_PORT"`
}

// DefaultConfig returns the default config.
func DefaultConfig() *Config {
	return &Config{
		Workers: 4,

		YouTube: &YouTubeConfig{
			Host:                 youtube.DefaultHost,
			VideoThumbnailHost:   youtube.VideoThumbnailHost,
			ChannelThumbnailHost: youtube.ChannelThumbnailHost,
			UserAgent:            youtube.DefaultUserAgent,
			ClientVersion:        youtube.DefaultClientVersion,
		},

		Transport: &TransportConfig{
			MaxBodyBytes:      16 * 1024 * 1024,
			IOTimeout:         0,
			ResolverCacheSize: 64,
		},

		Thumbnail: &ThumbnailConfig{
			TTL:       thumbnail.DefaultTTL,
			RateLimit: 20,
			Burst:     8,
			MaxWidth:  0,
		},

		Search: &SearchConfig{
			Sort:        youtube.SortRelevance,
			Media:       youtube.MediaAny,
			AllowShorts: false,
		},

		Prometheus: &PrometheusConfig{
			Enabled: false,
			Port:    8080,
		},

		LogLevel: slog.LevelInfo,
	}
}

// PopulateFromEnvironment populates the config with values from environment
// variables.
func (c *Config) PopulateFromEnvironment() error {
	return env.Parse(c)
}

// Validate returns an error if the config cannot be used.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("invalid config: workers must be at least 1, got %d", c.Workers)
	}
	if c.YouTube == nil || c.YouTube.Host == "" {
		return errors.New("invalid config: missing youtube host")
	}
	if c.Thumbnail != nil && c.Thumbnail.TTL < 0 {
		return fmt.Errorf("invalid config: negative thumbnail ttl %s", c.Thumbnail.TTL)
	}
	if c.Transport != nil && c.Transport.MaxBodyBytes < 0 {
		return fmt.Errorf("invalid config: negative max body bytes %d", c.Transport.MaxBodyBytes)
	}
	return nil
}

// CreateConfigIfNotExists makes sure that a config file exists. If it doesn't,
// it is created and populated with the default config.
func CreateConfigIfNotExists(path string) error {
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		return nil
	}

	config := DefaultConfig()
	return config.Store(path)
}

// ReadConfig reads a config file from the specified path. Values not present
// in the file keep their defaults.
func ReadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Store stores the config in the specified path.
// Writes are atomic.
func (c *Config) Store(path string) (err error) {
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(file.Name())
		}
	}()

	encoder := yaml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return err
	}

	if err := file.Sync(); err != nil {
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(file.Name(), path)
}
