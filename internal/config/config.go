// Copyright 2026 LinkDAO
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "linkdao.config"

const DefaultShutdownTimeout = "30s"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

// RunMode represents the operational mode of the linkdao daemon
type RunMode string

const (
	RunModeServe RunMode = "serve" // Normal operation (default)
	RunModeDev   RunMode = "dev"   // Development mode (in-memory collaborators, seeded defaults)
)

// Valid returns true if the RunMode is a known valid mode
func (m RunMode) Valid() bool {
	switch m {
	case RunModeServe, RunModeDev, "":
		return true
	default:
		return false
	}
}

// DiscountTier is one entry in the fee discount schedule
type DiscountTier struct {
	MinStaked   uint64 `yaml:"minStaked"`
	DiscountBps uint32 `yaml:"discountBps"`
}

type Config struct {
	DataDir          string         `yaml:"dataDir"          envconfig:"LINKDAO_DATA_DIR"`
	BindAddr         string         `yaml:"bindAddr"                                          split_words:"true"`
	ApiPort          uint           `yaml:"apiPort"                                           split_words:"true"`
	MetricsPort      uint           `yaml:"metricsPort"                                       split_words:"true"`
	Admins           []string       `yaml:"admins"           envconfig:"LINKDAO_ADMINS"`
	CallerIdentity   string         `yaml:"callerIdentity"                                    split_words:"true"`
	GracePeriod      string         `yaml:"gracePeriod"                                       split_words:"true"`
	PremiumThreshold uint64         `yaml:"premiumThreshold"                                  split_words:"true"`
	ActivityReward   uint64         `yaml:"activityReward"                                    split_words:"true"`
	ActivityCooldown string         `yaml:"activityCooldown"                                  split_words:"true"`
	ShutdownTimeout  string         `yaml:"shutdownTimeout"                                   split_words:"true"`
	RunMode          RunMode        `yaml:"runMode"          envconfig:"LINKDAO_RUN_MODE"`
	DiscountTiers    []DiscountTier `yaml:"discountTiers"`
	AuditLogDisabled bool           `yaml:"auditLogDisabled"                                  split_words:"true"`
	Tracing          bool           `yaml:"tracing"`
	TracingStdout    bool           `yaml:"tracingStdout"                                     split_words:"true"`
}

var globalConfig = &Config{
	DataDir:          ".linkdao",
	BindAddr:         "0.0.0.0",
	ApiPort:          8080,
	MetricsPort:      12798,
	CallerIdentity:   "linkdao-governance",
	GracePeriod:      "336h", // 14 days
	PremiumThreshold: 1000,
	ActivityReward:   10,
	ActivityCooldown: "24h",
	ShutdownTimeout:  DefaultShutdownTimeout,
	RunMode:          RunModeServe,
	DiscountTiers: []DiscountTier{
		{MinStaked: 100, DiscountBps: 100},
		{MinStaked: 1000, DiscountBps: 250},
		{MinStaked: 10000, DiscountBps: 500},
	},
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.linkdao/linkdao.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".linkdao", "linkdao.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/linkdao/linkdao.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/linkdao/linkdao.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Overlay config values onto existing defaults
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Process environment variables
	err := envconfig.Process("linkdao", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	if !globalConfig.RunMode.Valid() {
		return nil, fmt.Errorf("invalid run mode: %s", globalConfig.RunMode)
	}

	return globalConfig, nil
}

// GetConfig returns the current global config
func GetConfig() *Config {
	return globalConfig
}
