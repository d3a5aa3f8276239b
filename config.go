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

package linkdao

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/magickw/linkdao/gateway"
	"github.com/magickw/linkdao/ledger"
	"github.com/magickw/linkdao/oracle"
	"github.com/magickw/linkdao/staking"

	"github.com/prometheus/client_golang/prometheus"
)

// runMode constants for operational mode configuration
const (
	runModeServe = "serve"
	runModeDev   = "dev"
)

const (
	defaultCallerIdentity = "linkdao-governance"
	// devAdmin is the administrative account seeded in dev mode
	devAdmin = "dev"
)

type Config struct {
	promRegistry     prometheus.Registerer
	logger           *slog.Logger
	ledger           ledger.Ledger
	oracle           oracle.ReputationOracle
	gateway          gateway.ExecutionGateway
	dataDir          string
	apiListenAddress string
	callerIdentity   string
	runMode          string
	admins           []string
	discountTiers    []staking.DiscountTier
	premiumThreshold uint64
	activityReward   uint64
	activityCooldown time.Duration
	gracePeriod      time.Duration
	shutdownTimeout  time.Duration
	auditLogDisabled bool
	tracing          bool
	tracingStdout    bool
}

// isDevMode returns true if running in development mode
func (c *Config) isDevMode() bool {
	return c.runMode == runModeDev
}

func (n *Node) configValidate() error {
	if n.config.ledger == nil && !n.config.isDevMode() {
		return errors.New("no ledger configured")
	}
	if n.config.runMode != "" &&
		n.config.runMode != runModeServe &&
		n.config.runMode != runModeDev {
		return errors.New("unknown run mode: " + n.config.runMode)
	}
	return nil
}

// ConfigOptionFunc is a type that represents functions that modify the node config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new linkdao config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		callerIdentity: defaultCallerIdentity,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithDataDir specifies the persistent data directory to use. The default is to store everything in memory
func WithDataDir(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance for metrics
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithLedger specifies the token ledger backing balances, stake debits, and
// reward credits
func WithLedger(l ledger.Ledger) ConfigOptionFunc {
	return func(c *Config) {
		c.ledger = l
	}
}

// WithReputationOracle specifies the reputation oracle contributing bonus
// voting power. The default is no reputation bonus
func WithReputationOracle(o oracle.ReputationOracle) ConfigOptionFunc {
	return func(c *Config) {
		c.oracle = o
	}
}

// WithExecutionGateway specifies the gateway that proposal actions are
// dispatched to. Without one, passed proposals cannot be executed
func WithExecutionGateway(g gateway.ExecutionGateway) ConfigOptionFunc {
	return func(c *Config) {
		c.gateway = g
	}
}

// WithAdmins specifies the administrative accounts allowed to manage tiers
// and category policies
func WithAdmins(admins ...string) ConfigOptionFunc {
	return func(c *Config) {
		c.admins = append(c.admins, admins...)
	}
}

// WithCallerIdentity specifies the identity presented to the execution
// gateway on action dispatch
func WithCallerIdentity(identity string) ConfigOptionFunc {
	return func(c *Config) {
		c.callerIdentity = identity
	}
}

// WithApiListenAddress specifies the REST API listen address. Empty disables the API listener
func WithApiListenAddress(address string) ConfigOptionFunc {
	return func(c *Config) {
		c.apiListenAddress = address
	}
}

// WithGracePeriod bounds how long a passed proposal with actions may sit
// unexecuted after voting closes. Zero disables expiry
func WithGracePeriod(period time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.gracePeriod = period
	}
}

// WithPremiumThreshold specifies the total-staked amount granting premium status
func WithPremiumThreshold(threshold uint64) ConfigOptionFunc {
	return func(c *Config) {
		c.premiumThreshold = threshold
	}
}

// WithDiscountTiers specifies the fee discount schedule by total staked amount
func WithDiscountTiers(tiers ...staking.DiscountTier) ConfigOptionFunc {
	return func(c *Config) {
		c.discountTiers = append(c.discountTiers, tiers...)
	}
}

// WithActivityReward specifies the fixed activity reward amount and the
// cooldown between claims
func WithActivityReward(
	amount uint64,
	cooldown time.Duration,
) ConfigOptionFunc {
	return func(c *Config) {
		c.activityReward = amount
		c.activityCooldown = cooldown
	}
}

// WithAuditLogDisabled disables the append-only audit log
func WithAuditLogDisabled(disabled bool) ConfigOptionFunc {
	return func(c *Config) {
		c.auditLogDisabled = disabled
	}
}

// WithTracing enables tracing. By default, spans are submitted to a HTTP(s) endpoint using OTLP. This can be configured
// using the OTEL_EXPORTER_OTLP_* env vars documented in the README for [go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp]
func WithTracing(tracing bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracing = tracing
	}
}

// WithTracingStdout enables tracing output to stdout. This also requires tracing to enabled separately. This is mostly useful for debugging
func WithTracingStdout(stdout bool) ConfigOptionFunc {
	return func(c *Config) {
		c.tracingStdout = stdout
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithRunMode specifies the operational mode: serve (default) or dev. Dev
// mode seeds in-memory collaborators and default tiers/policies for local
// experimentation
func WithRunMode(mode string) ConfigOptionFunc {
	return func(c *Config) {
		c.runMode = mode
	}
}
