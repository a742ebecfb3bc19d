// Package config is chainstorectl's on-disk configuration: a viper-backed
// yaml file created with defaults on first run and read back on every
// start.
package config

import (
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	KeyStorageDir = "storage_dir"
	KeyCacheSize  = "cache_size"
	KeyListenAddr = "listen_addr"
	KeyWebhookURL = "webhook_url"
	KeyLogLevel   = "log_level"
)

const (
	defaultListenAddr = "127.0.0.1:8420"
	defaultCacheSize  = 1000
	defaultLogLevel   = "info"
)

// Config wraps a *viper.Viper: typed fields refreshed from viper at load,
// setters that write both the field and the file.
type Config struct {
	StorageDir string
	CacheSize  int
	ListenAddr string
	WebhookURL string
	LogLevel   string

	v *viper.Viper
}

// Load reads path (creating it with defaults if missing), creating parent
// directories as needed.
func Load(path string) (*Config, error) {
	c := &Config{v: viper.New()}
	c.v.SetConfigType("yaml")
	c.v.SetConfigFile(path)

	c.v.SetDefault(KeyStorageDir, filepath.Join(filepath.Dir(path), "data"))
	c.v.SetDefault(KeyCacheSize, defaultCacheSize)
	c.v.SetDefault(KeyListenAddr, defaultListenAddr)
	c.v.SetDefault(KeyLogLevel, defaultLogLevel)

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := c.v.WriteConfigAs(path); err != nil {
			return nil, err
		}
	}
	if err := c.v.ReadInConfig(); err != nil {
		return nil, err
	}

	c.StorageDir = c.v.GetString(KeyStorageDir)
	c.CacheSize = c.v.GetInt(KeyCacheSize)
	c.ListenAddr = c.v.GetString(KeyListenAddr)
	c.WebhookURL = c.v.GetString(KeyWebhookURL)
	c.LogLevel = c.v.GetString(KeyLogLevel)

	return c, nil
}

func (c *Config) SetWebhookURL(url string) error {
	c.WebhookURL = url
	c.v.Set(KeyWebhookURL, url)
	return c.v.WriteConfig()
}

func (c *Config) SetListenAddr(addr string) error {
	c.ListenAddr = addr
	c.v.Set(KeyListenAddr, addr)
	return c.v.WriteConfig()
}

func (c *Config) SetCacheSize(size int) error {
	c.CacheSize = size
	c.v.Set(KeyCacheSize, size)
	return c.v.WriteConfig()
}

func (c *Config) SetLogLevel(level string) error {
	c.LogLevel = level
	c.v.Set(KeyLogLevel, level)
	return c.v.WriteConfig()
}
