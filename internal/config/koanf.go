// Crowdaa Sync - Bidirectional WordPress / Crowdaa Content Synchronization
// Copyright 2026 Crowdaa (crowdaa.com)
// SPDX-License-Identifier: GPL-2.0-or-later
// https://github.com/common-repository/crowdaa-sync

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/crowdaa-sync/config.yaml",
	"/etc/crowdaa-sync/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CROWDAA_CONFIG_PATH"

// envPrefix is stripped from environment variables before mapping them to
// koanf paths. CROWDAA_SYNC__CATEGORY_MODE maps to sync.category_mode.
const envPrefix = "CROWDAA_"

// Load assembles the configuration from defaults, an optional YAML file and
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps CROWDAA_SECTION__KEY_NAME to section.key_name.
// A double underscore separates the section from the key so that key names
// containing underscores survive the mapping.
func envTransform(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

// sliceConfigPaths lists config paths parsed as comma-separated values when
// they arrive as strings from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"sync.category_list",
	"sync.feed_categories",
}

// intSlicePaths are the slice paths whose elements must be integers.
var intSlicePaths = map[string]bool{
	"sync.category_list":   true,
	"sync.feed_categories": true,
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		str, ok := val.(string)
		if !ok {
			continue // already a slice, from defaults or YAML
		}

		parts := splitAndTrim(str)
		if intSlicePaths[path] {
			ids := make([]int64, 0, len(parts))
			for _, p := range parts {
				id, err := strconv.ParseInt(p, 10, 64)
				if err != nil {
					return fmt.Errorf("%s: %q is not an id: %w", path, p, err)
				}
				ids = append(ids, id)
			}
			if err := k.Set(path, ids); err != nil {
				return err
			}
			continue
		}
		if err := k.Set(path, parts); err != nil {
			return err
		}
	}
	return nil
}

func splitAndTrim(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
