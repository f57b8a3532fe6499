// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

// Package config loads and validates the syncd configuration.
//
// Configuration is assembled from three layers, later layers overriding
// earlier ones: struct defaults, a YAML config file, and CROWDAA_-prefixed
// environment variables (CROWDAA_SYNC__MAX_DURATION maps to
// sync.max_duration).
//
// A loaded Config is an immutable snapshot: every sync run receives the
// config it started with by value and never re-reads settings mid-run, so a
// run observes a consistent configuration even if an admin changes settings
// concurrently.
package config

import (
	"time"
)

// FilterMode selects how the category id list is interpreted.
type FilterMode string

// Filter modes.
const (
	FilterBlacklist FilterMode = "blacklist"
	FilterWhitelist FilterMode = "whitelist"
)

// Config is the root configuration for syncd.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Crowdaa   CrowdaaConfig   `koanf:"crowdaa"`
	WordPress WordPressConfig `koanf:"wordpress"`
	Store     StoreConfig     `koanf:"store"`
	Sync      SyncConfig      `koanf:"sync"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP trigger surface.
type ServerConfig struct {
	ListenAddr string `koanf:"listen_addr" validate:"required"`
	// CORSOrigins are the admin UI origins allowed to call the API.
	CORSOrigins []string `koanf:"cors_origins"`
	// SyncRateLimit caps on-demand sync triggers per minute per client.
	SyncRateLimit int `koanf:"sync_rate_limit" validate:"min=0"`
}

// CrowdaaConfig configures the Remote gateway.
type CrowdaaConfig struct {
	// BaseURL is the Crowdaa API root, e.g. https://api.crowdaa.com.
	BaseURL string `koanf:"base_url" validate:"required,url"`
	// APIKey is sent as the X-Api-Key header on every request.
	APIKey string `koanf:"api_key" validate:"required"`
	// AuthToken is the bearer credential. Empty means not connected; the
	// orchestrator refuses to run without it.
	AuthToken string `koanf:"auth_token"`
	// Timeout bounds individual HTTP requests.
	Timeout time.Duration `koanf:"timeout" validate:"min=0"`
	// RequestsPerSecond throttles outgoing calls. 0 disables throttling.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"min=0"`
}

// WordPressConfig configures the Local repository gateway.
type WordPressConfig struct {
	// DatabasePath is the SQLite database holding posts, terms and metadata.
	DatabasePath string `koanf:"database_path" validate:"required"`
	// MediaDir is where pulled media files are stored.
	MediaDir string `koanf:"media_dir" validate:"required"`
	// PermissionsPlugin selects the membership backend: "", "pmpro" or
	// "swpm". Empty disables badge/permission sync.
	PermissionsPlugin string `koanf:"permissions_plugin" validate:"omitempty,oneof=pmpro swpm"`
}

// StoreConfig configures the identity-map / run-state store.
type StoreConfig struct {
	// Path is the BadgerDB directory for identity mappings and watermarks.
	Path string `koanf:"path" validate:"required"`
}

// SyncConfig holds the reconciliation policy consumed by the core.
type SyncConfig struct {
	// PushEnabled toggles the WP→API direction.
	PushEnabled bool `koanf:"push_enabled"`
	// PullEnabled toggles the API→WP direction.
	PullEnabled bool `koanf:"pull_enabled"`
	// CategoryMode is the filter mode applied to the category list.
	CategoryMode FilterMode `koanf:"category_mode" validate:"oneof=blacklist whitelist"`
	// CategoryList is the term-id list the mode applies to.
	CategoryList []int64 `koanf:"category_list"`
	// FeedCategories lists term ids whose articles stay visible on the
	// remote feed. Empty means all.
	FeedCategories []int64 `koanf:"feed_categories"`
	// MaxDuration is the wall-clock budget for one run.
	MaxDuration time.Duration `koanf:"max_duration" validate:"required,min=1m"`
	// ArticleBatchSize caps how many articles are scanned per run per
	// direction; the sync converges over repeated runs.
	ArticleBatchSize int `koanf:"article_batch_size" validate:"min=1"`
	// CronEnabled turns the periodic trigger on.
	CronEnabled bool `koanf:"cron_enabled"`
	// CronInterval is the periodic trigger cadence.
	CronInterval time.Duration `koanf:"cron_interval" validate:"min=1s"`
	// MetaVersion is the deployed sync-logic version. Together with the
	// persisted internal counter it forms the logic version written to
	// entity metadata; articles behind it are force-resynced.
	MetaVersion string `koanf:"meta_version" validate:"required"`
}

// LoggingConfig configures the logging subsystem.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// FeedAll reports whether every category is feed-visible.
func (s SyncConfig) FeedAll() bool { return len(s.FeedCategories) == 0 }

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ListenAddr:    ":8087",
			CORSOrigins:   nil,
			SyncRateLimit: 10,
		},
		Crowdaa: CrowdaaConfig{
			BaseURL:           "",
			APIKey:            "",
			AuthToken:         "",
			Timeout:           45 * time.Second,
			RequestsPerSecond: 0,
		},
		WordPress: WordPressConfig{
			DatabasePath:      "/data/wordpress.db",
			MediaDir:          "/data/uploads/catalogue_images",
			PermissionsPlugin: "",
		},
		Store: StoreConfig{
			Path: "/data/syncstate",
		},
		Sync: SyncConfig{
			PushEnabled:      true,
			PullEnabled:      true,
			CategoryMode:     FilterBlacklist,
			CategoryList:     nil,
			FeedCategories:   nil,
			MaxDuration:      10 * time.Minute,
			ArticleBatchSize: 100,
			CronEnabled:      false,
			CronInterval:     time.Minute,
			MetaVersion:      "2",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
