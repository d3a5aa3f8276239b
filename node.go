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
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/magickw/linkdao/api"
	"github.com/magickw/linkdao/auditlog"
	"github.com/magickw/linkdao/database"
	"github.com/magickw/linkdao/event"
	"github.com/magickw/linkdao/gateway"
	"github.com/magickw/linkdao/governance"
	"github.com/magickw/linkdao/ledger"
	"github.com/magickw/linkdao/oracle"
	"github.com/magickw/linkdao/staking"
)

// Node assembles the governance stack: the shared event bus and database,
// the staking and governance engines, the audit log, and the REST API.
type Node struct {
	config        Config
	eventBus      *event.EventBus
	db            *database.Database
	staking       *staking.Engine
	governance    *governance.Engine
	auditLog      *auditlog.AuditLog
	api           *api.Api
	shutdownFuncs []func(context.Context) error
	done          chan struct{}
	shutdownOnce  sync.Once
}

func New(cfg Config) (*Node, error) {
	n := &Node{
		config:   cfg,
		eventBus: event.NewEventBus(cfg.promRegistry, cfg.logger),
		done:     make(chan struct{}),
	}
	if err := n.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if n.config.isDevMode() {
		n.configPopulateDevMode()
	}
	return n, nil
}

// configPopulateDevMode fills in in-memory collaborators for any left
// unconfigured so a dev node starts with no external wiring
func (n *Node) configPopulateDevMode() {
	if n.config.ledger == nil {
		n.config.ledger = ledger.NewMemory()
	}
	if n.config.oracle == nil {
		n.config.oracle = oracle.NewStatic()
	}
	if n.config.gateway == nil {
		n.config.gateway = gateway.NewMemory(n.config.callerIdentity)
	}
	n.config.admins = append(n.config.admins, devAdmin)
}

// Run starts the node and blocks until the context is cancelled or Stop
// is called.
func (n *Node) Run(ctx context.Context) error {
	// Configure tracing
	if n.config.tracing {
		if err := n.setupTracing(); err != nil {
			return err
		}
	}
	// Load database
	db, err := database.New(&database.Config{
		DataDir:      n.config.dataDir,
		Logger:       n.config.logger,
		PromRegistry: n.config.promRegistry,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	n.db = db
	// Open audit log
	if !n.config.auditLogDisabled {
		auditLog, err := auditlog.New(auditlog.Config{
			PromRegistry: n.config.promRegistry,
			Logger:       n.config.logger,
			EventBus:     n.eventBus,
			DataDir:      n.config.dataDir,
		})
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		n.auditLog = auditLog
	}
	// Initialize staking engine
	stakingEngine, err := staking.NewEngine(staking.EngineConfig{
		PromRegistry:     n.config.promRegistry,
		Logger:           n.config.logger,
		EventBus:         n.eventBus,
		Ledger:           n.config.ledger,
		Database:         n.db,
		Admins:           n.config.admins,
		DiscountTiers:    n.config.discountTiers,
		PremiumThreshold: n.config.premiumThreshold,
		ActivityReward:   n.config.activityReward,
		ActivityCooldown: n.config.activityCooldown,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize staking engine: %w", err)
	}
	n.staking = stakingEngine
	// Initialize governance engine
	governanceEngine, err := governance.NewEngine(governance.EngineConfig{
		PromRegistry:   n.config.promRegistry,
		Logger:         n.config.logger,
		EventBus:       n.eventBus,
		Ledger:         n.config.ledger,
		Oracle:         n.config.oracle,
		Staking:        n.staking,
		Gateway:        n.config.gateway,
		Database:       n.db,
		Admins:         n.config.admins,
		CallerIdentity: n.config.callerIdentity,
		GracePeriod:    n.config.gracePeriod,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize governance engine: %w", err)
	}
	n.governance = governanceEngine
	if n.config.isDevMode() {
		if err := n.seedDevDefaults(); err != nil {
			return fmt.Errorf("failed to seed dev defaults: %w", err)
		}
	}
	// Start API listener
	if n.config.apiListenAddress != "" {
		var audit api.AuditProvider
		if n.auditLog != nil {
			audit = n.auditLog
		}
		n.api = api.New(
			api.Config{
				ListenAddress: n.config.apiListenAddress,
				Governance:    n.governance,
				Staking:       n.staking,
				Audit:         audit,
			},
			n.config.logger,
		)
		if err := n.api.Start(ctx); err != nil {
			return err
		}
	}
	n.config.logger.Info(
		"node started",
		"component", "node",
		"data_dir", n.config.dataDir,
		"dev_mode", n.config.isDevMode(),
	)

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
		return n.Stop()
	case <-n.done:
		return nil
	}
}

// seedDevDefaults installs a default staking tier and category policies so
// a dev node is immediately usable
func (n *Node) seedDevDefaults() error {
	if len(n.staking.Tiers()) == 0 {
		_, err := n.staking.CreateTier(
			devAdmin,
			30*24*time.Hour,
			500,
			100,
		)
		if err != nil {
			return err
		}
	}
	defaultPolicies := map[governance.Category]governance.Policy{
		governance.CategoryGeneral: {
			Quorum:            1000,
			ProposalThreshold: 100,
			ApprovalThreshold: 5000,
			VotingPeriod:      10 * time.Minute,
		},
		governance.CategoryTreasury: {
			Quorum:            5000,
			ProposalThreshold: 500,
			ApprovalThreshold: 6000,
			VotingPeriod:      10 * time.Minute,
			RequiresCoAuth:    true,
		},
	}
	for category, policy := range defaultPolicies {
		if _, err := n.governance.PolicyFor(category); err == nil {
			continue
		}
		if err := n.governance.SetPolicy(
			devAdmin,
			category,
			policy,
		); err != nil {
			return err
		}
	}
	return nil
}

// StakingEngine returns the node's staking engine
func (n *Node) StakingEngine() *staking.Engine {
	return n.staking
}

// GovernanceEngine returns the node's governance engine
func (n *Node) GovernanceEngine() *governance.Engine {
	return n.governance
}

// EventBus returns the node's event bus
func (n *Node) EventBus() *event.EventBus {
	return n.eventBus
}

// Database returns the node's database
func (n *Node) Database() *database.Database {
	return n.db
}

// AuditLog returns the node's audit log, or nil when disabled
func (n *Node) AuditLog() *auditlog.AuditLog {
	return n.auditLog
}

func (n *Node) Stop() error {
	var err error
	n.shutdownOnce.Do(func() {
		err = n.shutdown()
	})
	return err
}

func (n *Node) shutdown() error {
	// Create shutdown context with timeout (default 30s if not configured)
	shutdownTimeout := 30 * time.Second
	if n.config.shutdownTimeout > 0 {
		shutdownTimeout = n.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error

	n.config.logger.Debug("starting graceful shutdown")

	// Phase 1: Stop accepting new work
	n.config.logger.Debug("shutdown phase 1: stopping new work")

	if n.api != nil {
		if stopErr := n.api.Stop(ctx); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("api shutdown: %w", stopErr))
		}
	}

	// Phase 2: Drain event subscribers
	n.config.logger.Debug("shutdown phase 2: draining event subscribers")

	if n.auditLog != nil {
		if closeErr := n.auditLog.Close(); closeErr != nil {
			err = errors.Join(
				err,
				fmt.Errorf("audit log close: %w", closeErr),
			)
		}
	}

	if n.eventBus != nil {
		n.eventBus.Stop()
	}

	// Phase 3: Flush state and close database
	n.config.logger.Debug("shutdown phase 3: flushing state")

	if n.db != nil {
		if closeErr := n.db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("database close: %w", closeErr))
		}
	}

	// Phase 4: Cleanup resources
	n.config.logger.Debug("shutdown phase 4: cleanup resources")

	// Call registered shutdown functions
	for _, fn := range n.shutdownFuncs {
		if fnErr := fn(ctx); fnErr != nil {
			err = errors.Join(err, fmt.Errorf("shutdown function: %w", fnErr))
		}
	}
	n.shutdownFuncs = nil

	n.config.logger.Debug("graceful shutdown complete")
	close(n.done)
	return err
}
