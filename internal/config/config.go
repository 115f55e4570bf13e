// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/autobrr/curator/internal/domain"
	"github.com/autobrr/curator/internal/logger"
)

const envPrefix = "CURATOR__"

// AppConfig wraps the parsed configuration plus the viper instance backing
// it, so log level changes in the file apply without a restart.
type AppConfig struct {
	Config *domain.Config
	viper  *viper.Viper
	mu     sync.Mutex
}

// New loads the configuration, creating a default config file if none exists.
// configPath may be a file, a directory, or empty (default locations).
func New(configPath string) (*AppConfig, error) {
	c := &AppConfig{
		viper:  viper.New(),
		Config: &domain.Config{},
	}

	c.defaults()

	if err := c.load(configPath); err != nil {
		return nil, err
	}

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	c.watch()

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("dataDir", "")
	c.viper.SetDefault("monitorBackend", domain.MonitorBackendPolling)
	c.viper.SetDefault("pollIntervalSeconds", 10)
	c.viper.SetDefault("maxConcurrentTasks", 5)
	c.viper.SetDefault("taskRetentionDays", 30)
	c.viper.SetDefault("deadTimeDays", 7)
	c.viper.SetDefault("cleanupIntervalHours", 12)
	c.viper.SetDefault("imageCacheDir", "")
	c.viper.SetDefault("qbitUrl", "")
	c.viper.SetDefault("qbitUsername", "")
	c.viper.SetDefault("qbitPassword", "")
	c.viper.SetDefault("pathMappings", []string{})
	c.viper.SetDefault("embyUrl", "")
	c.viper.SetDefault("embyApiKey", "")
	c.viper.SetDefault("proxyEnabled", false)
	c.viper.SetDefault("proxyUrl", "")
}

func (c *AppConfig) load(configPath string) error {
	c.viper.SetConfigType("toml")

	// Environment variables override file values: CURATOR__LOG_LEVEL etc.
	c.viper.SetEnvPrefix(strings.TrimSuffix(envPrefix, "__"))
	c.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.viper.AutomaticEnv()
	c.bindEnvAliases()

	switch {
	case configPath == "":
		c.viper.SetConfigName("config")
		c.viper.AddConfigPath(getDefaultConfigDir())
		c.viper.AddConfigPath(".")
	default:
		info, err := os.Stat(configPath)
		if err == nil && info.IsDir() {
			c.viper.SetConfigName("config")
			c.viper.AddConfigPath(configPath)
		} else {
			c.viper.SetConfigFile(configPath)
		}
	}

	if err := c.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			if err := c.writeDefaultConfig(configPath); err != nil {
				return err
			}
			if err := c.viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config after creating default: %w", err)
			}
		} else {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	return nil
}

// bindEnvAliases maps the snake_case environment names onto the camelCase
// config keys.
func (c *AppConfig) bindEnvAliases() {
	aliases := map[string]string{
		"logLevel":             "LOG_LEVEL",
		"logPath":              "LOG_PATH",
		"dataDir":              "DATA_DIR",
		"databasePath":         "DATABASE_PATH",
		"monitorBackend":       "MONITOR_BACKEND",
		"pollIntervalSeconds":  "POLL_INTERVAL_SECONDS",
		"maxConcurrentTasks":   "MAX_CONCURRENT_TASKS",
		"taskRetentionDays":    "TASK_RETENTION_DAYS",
		"deadTimeDays":         "DEAD_TIME_DAYS",
		"cleanupIntervalHours": "CLEANUP_INTERVAL_HOURS",
		"imageCacheDir":        "IMAGE_CACHE_DIR",
		"qbitUrl":              "QBIT_URL",
		"qbitUsername":         "QBIT_USERNAME",
		"qbitPassword":         "QBIT_PASSWORD",
		"embyUrl":              "EMBY_URL",
		"embyApiKey":           "EMBY_API_KEY",
		"proxyEnabled":         "PROXY_ENABLED",
		"proxyUrl":             "PROXY_URL",
	}

	for key, env := range aliases {
		_ = c.viper.BindEnv(key, envPrefix+env)
	}
}

func (c *AppConfig) writeDefaultConfig(configPath string) error {
	dir := configPath
	if dir == "" {
		dir = getDefaultConfigDir()
	} else if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	} else if filepath.Ext(dir) == ".toml" {
		dir = filepath.Dir(dir)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}

	file := filepath.Join(dir, "config.toml")
	if configPath != "" && filepath.Ext(configPath) == ".toml" {
		file = configPath
	}

	if _, err := os.Stat(file); err == nil {
		c.viper.SetConfigFile(file)
		return nil
	}

	if err := os.WriteFile(file, []byte(defaultConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write default config: %w", err)
	}

	log.Info().Msgf("Created default config file: %s", file)
	c.viper.SetConfigFile(file)
	return nil
}

// watch reloads dynamic settings when the config file changes on disk. Only
// the log level is applied live; everything else needs a restart.
func (c *AppConfig) watch() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		c.mu.Lock()
		defer c.mu.Unlock()

		if err := c.viper.Unmarshal(c.Config); err != nil {
			log.Error().Err(err).Msg("failed to reload config")
			return
		}

		level := logger.ParseLevel(c.Config.LogLevel)
		zerolog.SetGlobalLevel(level)
		log.Info().Msgf("Config reloaded, log level: %s", level)
	})
	c.viper.WatchConfig()
}

// GetDatabasePath resolves the database location: explicit databasePath key,
// then dataDir, then next to the config file.
func (c *AppConfig) GetDatabasePath() string {
	if p := c.viper.GetString("databasePath"); p != "" {
		return p
	}
	if c.Config.DataDir != "" {
		return filepath.Join(c.Config.DataDir, "curator.db")
	}
	if used := c.viper.ConfigFileUsed(); used != "" {
		return filepath.Join(filepath.Dir(used), "curator.db")
	}
	return "curator.db"
}

// GetImageCacheDir resolves the artwork cache directory, defaulting to a
// subdirectory beside the database.
func (c *AppConfig) GetImageCacheDir() string {
	if c.Config.ImageCacheDir != "" {
		return c.Config.ImageCacheDir
	}
	return filepath.Join(filepath.Dir(c.GetDatabasePath()), "imagecache")
}

func getDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		// Docker images set XDG_CONFIG_HOME=/config; use it directly.
		if xdg == "/config" {
			return xdg
		}
		return filepath.Join(xdg, "curator")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "curator")
}

const defaultConfigTemplate = `# curator configuration

# Log level: TRACE, DEBUG, INFO, WARN, ERROR
logLevel = "INFO"

# Optional log file path; console logging when empty
#logPath = "/var/log/curator/curator.log"

# Directory for the database and caches; defaults to the config directory
#dataDir = ""

# Directory monitor backend: "events" (inotify) or "polling" (network mounts)
monitorBackend = "polling"
pollIntervalSeconds = 10

# Parallel transfer groups
maxConcurrentTasks = 5

# Days a soft-deleted record survives before hard deletion
deadTimeDays = 7

# Hours between deferred-cleanup sweeps
cleanupIntervalHours = 12

# qBittorrent collaborator (optional)
#qbitUrl = "http://localhost:8080"
#qbitUsername = "admin"
#qbitPassword = ""

# Path mappings between the torrent client and this host, "container:host"
#pathMappings = ["/downloads:/mnt/media/downloads"]

# Emby collaborator (optional)
#embyUrl = "http://localhost:8096"
#embyApiKey = ""

# Outbound HTTP proxy for scraping (optional)
proxyEnabled = false
#proxyUrl = "http://localhost:7890"
`
