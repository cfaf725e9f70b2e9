// Copyright 2024 New Vector Ltd.
//
// SPDX-License-Identifier: AGPL-3.0-only OR LicenseRef-Element-Commercial
// Please see LICENSE files in the repository root for full details.

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// DataUnit is a memory size in bytes.
type DataUnit int64

// EventAuthCheck is the configuration for the eventauth-check tool.
type EventAuthCheck struct {
	// DefaultRoomVersion is used for snapshots whose create event does
	// not state a room version.
	DefaultRoomVersion string `yaml:"default_room_version"`

	Logging Logging      `yaml:"logging"`
	Cache   CacheOptions `yaml:"cache"`
}

// Logging configures the logrus output of the tool.
type Logging struct {
	// Level is one of the logrus level names, e.g. "info" or "debug".
	Level string `yaml:"level"`
}

// CacheOptions configures the in-memory event caches.
type CacheOptions struct {
	// EstimatedMaxSize steers cache eviction. It is not a hard limit.
	EstimatedMaxSize DataUnit `yaml:"max_size_estimated"`
	// MaxAgeSeconds evicts entries older than this, 0 keeps them until
	// evicted under pressure.
	MaxAgeSeconds int64 `yaml:"max_age_seconds"`
	// EnablePrometheus registers ristretto's own cache metrics.
	EnablePrometheus bool `yaml:"enable_prometheus"`
}

// Defaults sets sensible values for everything the config file omits.
func (c *EventAuthCheck) Defaults() {
	c.DefaultRoomVersion = "10"
	c.Logging.Level = "info"
	c.Cache.EstimatedMaxSize = 64 * 1024 * 1024
	c.Cache.MaxAgeSeconds = int64(time.Hour / time.Second)
}

// MaxAge returns the configured cache entry lifetime as a duration.
func (c *CacheOptions) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeSeconds) * time.Second
}

// Verify collects every problem with the configuration rather than
// stopping at the first one.
func (c *EventAuthCheck) Verify(configErrs *ConfigErrors) {
	checkNotEmpty(configErrs, "default_room_version", c.DefaultRoomVersion)
	checkNotEmpty(configErrs, "logging.level", c.Logging.Level)
	checkPositive(configErrs, "cache.max_size_estimated", int64(c.Cache.EstimatedMaxSize))
}

// Load reads and validates a YAML config file. A missing path yields the
// defaults.
func Load(path string) (*EventAuthCheck, error) {
	var cfg EventAuthCheck
	cfg.Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.Wrap(err, "failed to parse config file")
		}
	}
	var configErrs ConfigErrors
	cfg.Verify(&configErrs)
	if len(configErrs) > 0 {
		return nil, errors.Errorf("invalid config file: %v", []string(configErrs))
	}
	return &cfg, nil
}

// ConfigErrors stores problems encountered when parsing a config file.
// It implements the error interface.
type ConfigErrors []string

// Add appends an error to the list of errors in this ConfigErrors.
func (errs *ConfigErrors) Add(str string) {
	*errs = append(*errs, str)
}

func (errs ConfigErrors) Error() string {
	if len(errs) == 1 {
		return errs[0]
	}
	return fmt.Sprintf("%s (and %d other problems)", errs[0], len(errs)-1)
}

// checkNotEmpty verifies the given value is not empty in the configuration.
// If it is, adds an error to the list.
func checkNotEmpty(configErrs *ConfigErrors, key, value string) {
	if value == "" {
		configErrs.Add(fmt.Sprintf("missing config key %q", key))
	}
}

// checkPositive verifies the given value is positive in the configuration.
// If it is not, adds an error to the list.
func checkPositive(configErrs *ConfigErrors, key string, value int64) {
	if value < 0 {
		configErrs.Add(fmt.Sprintf("invalid value for config key %q: %d", key, value))
	}
}
