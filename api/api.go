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

package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/magickw/linkdao/auditlog"
	"github.com/magickw/linkdao/governance"
	"github.com/magickw/linkdao/staking"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// GovernanceProvider is the read surface the API needs from the
// governance engine.
type GovernanceProvider interface {
	Proposals() []governance.Proposal
	Proposal(id uint64) (governance.Proposal, error)
	VotingPower(account string) uint64
}

// StakingProvider is the read surface the API needs from the staking
// engine.
type StakingProvider interface {
	Tiers() []staking.Tier
	Positions(account string) []staking.Position
	TotalStaked(account string) uint64
	HasPremiumStatus(account string) bool
	DiscountTier(account string) (staking.DiscountTier, bool)
	AccruedRewards(account string) uint64
}

// AuditProvider exposes the append-only audit log for reading.
type AuditProvider interface {
	Entries(fromSeq uint64, limit int) ([]auditlog.Entry, error)
}

type Config struct {
	ListenAddress string
	Governance    GovernanceProvider
	Staking       StakingProvider
	Audit         AuditProvider
}

// Api is the read-only REST surface over the governance and staking
// engines.
type Api struct {
	config     Config
	logger     *slog.Logger
	httpServer *http.Server
	mu         sync.Mutex
}

// New creates a new API server instance.
func New(
	cfg Config,
	logger *slog.Logger,
) *Api {
	if logger == nil {
		logger = slog.New(
			slog.NewJSONHandler(io.Discard, nil),
		)
	}
	logger = logger.With("component", "api")
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":8080"
	}
	return &Api{
		config: cfg,
		logger: logger,
	}
}

// Start starts the HTTP server in a background goroutine.
func (a *Api) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.httpServer != nil {
		a.mu.Unlock()
		return errors.New("server already started")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", a.handleRoot)
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc(
		"GET /api/v1/proposals",
		a.handleProposals,
	)
	mux.HandleFunc(
		"GET /api/v1/proposals/{id}",
		a.handleProposal,
	)
	mux.HandleFunc(
		"GET /api/v1/tiers",
		a.handleTiers,
	)
	mux.HandleFunc(
		"GET /api/v1/accounts/{account}/power",
		a.handleAccountPower,
	)
	mux.HandleFunc(
		"GET /api/v1/accounts/{account}/positions",
		a.handleAccountPositions,
	)
	mux.HandleFunc(
		"GET /api/v1/accounts/{account}/status",
		a.handleAccountStatus,
	)
	mux.HandleFunc(
		"GET /api/v1/audit",
		a.handleAudit,
	)

	server := &http.Server{
		Addr: a.config.ListenAddress,
		// Use h2c so we can serve HTTP/2 without TLS
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 60 * time.Second,
	}
	a.httpServer = server
	a.mu.Unlock()

	if err := a.startServer(server); err != nil {
		a.mu.Lock()
		a.httpServer = nil
		a.mu.Unlock()
		return err
	}

	a.logger.Info(
		"API listener started on " + a.config.ListenAddress,
	)

	// Monitor context for cancellation
	go func() {
		<-ctx.Done()
		a.mu.Lock()
		srv := a.httpServer
		a.httpServer = nil
		a.mu.Unlock()

		if srv != nil {
			a.logger.Debug(
				"context cancelled, shutting down API server",
			)
			//nolint:contextcheck
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				30*time.Second,
			)
			defer cancel()
			//nolint:contextcheck
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error(
					"failed to shutdown API server on context cancellation",
					"error", err,
				)
			}
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (a *Api) Stop(ctx context.Context) error {
	a.mu.Lock()
	srv := a.httpServer
	a.httpServer = nil
	a.mu.Unlock()

	if srv != nil {
		a.logger.Debug("shutting down API server")
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf(
				"failed to shutdown API server: %w",
				err,
			)
		}
	}
	return nil
}

// startServer binds the listening socket first so port conflicts are
// detected immediately, then serves in a background goroutine.
func (a *Api) startServer(server *http.Server) error {
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf(
			"failed to listen for API server: %w",
			err,
		)
	}
	go func() {
		if err := server.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(
				"API server error",
				"error", err,
			)
		}
	}()
	return nil
}
