// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"fmt"
	"strings"
)

// Config represents the application configuration
type Config struct {
	Version       string
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`

	// Monitor
	MonitorBackend      string `toml:"monitorBackend" mapstructure:"monitorBackend"` // "events" or "polling"
	PollIntervalSeconds int    `toml:"pollIntervalSeconds" mapstructure:"pollIntervalSeconds"`

	// Dispatcher
	MaxConcurrentTasks int `toml:"maxConcurrentTasks" mapstructure:"maxConcurrentTasks"`
	TaskRetentionDays  int `toml:"taskRetentionDays" mapstructure:"taskRetentionDays"`

	// Record lifecycle
	DeadTimeDays         int `toml:"deadTimeDays" mapstructure:"deadTimeDays"`
	CleanupIntervalHours int `toml:"cleanupIntervalHours" mapstructure:"cleanupIntervalHours"`

	// Image cache for scraped artwork
	ImageCacheDir string `toml:"imageCacheDir" mapstructure:"imageCacheDir"`

	// qBittorrent collaborator for the cleanup handshake
	QbitURL      string `toml:"qbitUrl" mapstructure:"qbitUrl"`
	QbitUsername string `toml:"qbitUsername" mapstructure:"qbitUsername"`
	QbitPassword string `toml:"qbitPassword" mapstructure:"qbitPassword"`

	// Path mapping between the torrent client's namespace and ours,
	// "container:host" pairs.
	PathMappings []string `toml:"pathMappings" mapstructure:"pathMappings"`

	// Emby collaborator for the fire-and-forget library scan
	EmbyURL    string `toml:"embyUrl" mapstructure:"embyUrl"`
	EmbyAPIKey string `toml:"embyApiKey" mapstructure:"embyApiKey"`

	// Outbound HTTP proxy used by the scraper and image fetches
	ProxyEnabled bool   `toml:"proxyEnabled" mapstructure:"proxyEnabled"`
	ProxyURL     string `toml:"proxyUrl" mapstructure:"proxyUrl"`
}

// MonitorBackendEvents and MonitorBackendPolling select the monitor backend.
const (
	MonitorBackendEvents  = "events"
	MonitorBackendPolling = "polling"
)

// ParsePathMappings parses the configured "container:host" pairs.
func (c *Config) ParsePathMappings() (map[string]string, error) {
	mappings := make(map[string]string, len(c.PathMappings))

	for _, raw := range c.PathMappings {
		entry := strings.TrimSpace(raw)
		if entry == "" {
			continue
		}

		parts := strings.SplitN(entry, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid pathMappings entry %q: want \"container:host\"", entry)
		}
		mappings[parts[0]] = parts[1]
	}

	return mappings, nil
}
