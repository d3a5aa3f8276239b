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

package node

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/magickw/linkdao"
	"github.com/magickw/linkdao/internal/config"
	"github.com/magickw/linkdao/staking"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Run(cfg *config.Config, logger *slog.Logger) error {
	logger.Debug(fmt.Sprintf("config: %+v", cfg), "component", "node")

	// Parse shutdown timeout
	shutdownTimeout := 30 * time.Second // Default timeout
	if cfg.ShutdownTimeout != "" {
		var err error
		shutdownTimeout, err = time.ParseDuration(cfg.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("invalid shutdown timeout: %w", err)
		}
	}

	// Parse grace period
	var gracePeriod time.Duration
	if cfg.GracePeriod != "" {
		var err error
		gracePeriod, err = time.ParseDuration(cfg.GracePeriod)
		if err != nil {
			return fmt.Errorf("invalid grace period: %w", err)
		}
	}

	// Parse activity reward cooldown
	var activityCooldown time.Duration
	if cfg.ActivityCooldown != "" {
		var err error
		activityCooldown, err = time.ParseDuration(cfg.ActivityCooldown)
		if err != nil {
			return fmt.Errorf("invalid activity cooldown: %w", err)
		}
	}

	discountTiers := make([]staking.DiscountTier, 0, len(cfg.DiscountTiers))
	for _, dt := range cfg.DiscountTiers {
		discountTiers = append(discountTiers, staking.DiscountTier{
			MinStaked:   dt.MinStaked,
			DiscountBps: dt.DiscountBps,
		})
	}

	d, err := linkdao.New(
		linkdao.NewConfig(
			linkdao.WithLogger(logger),
			linkdao.WithDataDir(cfg.DataDir),
			linkdao.WithAdmins(cfg.Admins...),
			linkdao.WithCallerIdentity(cfg.CallerIdentity),
			linkdao.WithApiListenAddress(
				fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.ApiPort),
			),
			linkdao.WithGracePeriod(gracePeriod),
			linkdao.WithPremiumThreshold(cfg.PremiumThreshold),
			linkdao.WithDiscountTiers(discountTiers...),
			linkdao.WithActivityReward(cfg.ActivityReward, activityCooldown),
			linkdao.WithAuditLogDisabled(cfg.AuditLogDisabled),
			linkdao.WithTracing(cfg.Tracing),
			linkdao.WithTracingStdout(cfg.TracingStdout),
			linkdao.WithShutdownTimeout(shutdownTimeout),
			linkdao.WithRunMode(string(cfg.RunMode)),
			// Enable metrics with default prometheus registry
			linkdao.WithPrometheusRegistry(prometheus.DefaultRegisterer),
		),
	)
	if err != nil {
		return err
	}
	// Metrics listener
	http.Handle("/metrics", promhttp.Handler())
	logger.Info(
		"serving prometheus metrics on "+fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		"component",
		"node",
	)
	metricsServer := &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d",
			cfg.BindAddr,
			cfg.MetricsPort,
		),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", "node",
			)
			os.Exit(1)
		}
	}()
	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run node in goroutine
	errChan := make(chan error, 1)
	go func() {
		//nolint:contextcheck
		err := d.Run(signalCtx)
		select {
		case errChan <- err:
		case <-signalCtx.Done():
		}
	}()

	// Wait for signal or error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")

		// Shutdown metrics server
		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}

		// Shutdown node
		if err := d.Stop(); err != nil {
			logger.Error("shutdown errors occurred", "error", err)
			return err
		}
		logger.Info("shutdown complete")
		return nil

	case err := <-errChan:
		if err == nil {
			logger.Info("node stopped")
			shutdownCtx, cancel := context.WithTimeout(
				context.Background(),
				shutdownTimeout,
			)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("metrics server shutdown error", "error", err)
			}
			if err := d.Stop(); err != nil {
				logger.Error("shutdown errors occurred", "error", err)
				return err
			}
			return nil
		}
		logger.Error("node error", "error", err)
		signalCtxStop()

		// Shutdown node resources
		if stopErr := d.Stop(); stopErr != nil {
			logger.Error(
				"shutdown errors occurred during error cleanup",
				"error",
				stopErr,
			)
		}

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			shutdownTimeout,
		)
		defer cancel()
		if shutdownErr := metricsServer.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Error(
				"metrics server shutdown error",
				"error",
				shutdownErr,
			)
		}
		return err
	}
}
