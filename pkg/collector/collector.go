/*
 * Copyright 2025 Skyspan Contributors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package collector supervises one polling goroutine per kit and keeps
// the running set reconciled with the kit registry.
package collector

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/skyspan/skyspan/pkg/ingest"
	"github.com/skyspan/skyspan/pkg/logger"
	"github.com/skyspan/skyspan/pkg/metrics"
	"github.com/skyspan/skyspan/pkg/models"
	"github.com/skyspan/skyspan/pkg/registry"
)

// KitRegistry is the collector's view of the registry.
type KitRegistry interface {
	Load(ctx context.Context) ([]models.Kit, error)
	Diff(running, current []models.Kit) registry.Diff
}

// Collector runs one KitPoller per kit plus the reconciliation and
// health reporting loops.
type Collector struct {
	config   *Config
	registry KitRegistry
	writer   ingest.RecordWriter
	client   *http.Client
	clock    Clock
	logger   logger.Logger

	mu      sync.Mutex
	pollers map[string]*KitPoller

	wg sync.WaitGroup
}

// New creates a Collector. The single shared HTTP client bounds the
// process-wide connection count no matter how many kits are configured.
func New(cfg *Config, reg KitRegistry, writer ingest.RecordWriter, log logger.Logger) *Collector {
	return &Collector{
		config:   cfg,
		registry: reg,
		writer:   writer,
		client: &http.Client{
			Transport: &http.Transport{
				MaxConnsPerHost:     cfg.HTTPMaxConns,
				MaxIdleConns:        cfg.HTTPMaxIdleConns,
				MaxIdleConnsPerHost: cfg.HTTPMaxIdleConns,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		clock:   realClock{},
		logger:  log,
		pollers: make(map[string]*KitPoller),
	}
}

// Start loads the initial kit set, spawns a poller per kit, and blocks
// until ctx is cancelled. On cancellation it waits for every poller to
// finish its in-flight cycle.
func (c *Collector) Start(ctx context.Context) error {
	kits, err := c.registry.Load(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	for i := range kits {
		c.spawnLocked(ctx, kits[i])
	}
	c.mu.Unlock()

	c.logger.Info().Int("kits", len(kits)).Msg("Collector started")

	c.wg.Add(2)

	go c.reconcileLoop(ctx)
	go c.healthReportLoop(ctx)

	<-ctx.Done()

	c.logger.Info().Msg("Collector shutting down")
	c.wg.Wait()

	return nil
}

// Stop releases the shared HTTP client's idle connections. Poller
// goroutines are stopped by the context passed to Start.
func (c *Collector) Stop(_ context.Context) error {
	c.client.CloseIdleConnections()
	return nil
}

// spawnLocked starts a poller goroutine for kit. Disabled kits get a
// poller too; it idles until the kit is enabled, keeping the running set
// congruent with the desired set. Caller holds c.mu.
func (c *Collector) spawnLocked(ctx context.Context, kit models.Kit) {
	if _, exists := c.pollers[kit.Endpoint]; exists {
		return
	}

	p := NewKitPoller(kit, c.config, c.client, c.writer, c.logger)
	c.pollers[kit.Endpoint] = p
	metrics.KitsRunning.Inc()

	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		p.Run(ctx)
	}()
}

// reconcileLoop periodically reloads the kit set and applies the diff.
func (c *Collector) reconcileLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := c.clock.Ticker(time.Duration(c.config.ReconcileInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.reconcile(ctx)
		}
	}
}

// reconcile diffs the freshly loaded kit set against the running one.
// New kits get pollers; kits that disappeared are disabled in place so
// their health history survives a flapping registry.
func (c *Collector) reconcile(ctx context.Context) {
	current, err := c.registry.Load(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Reconcile skipped, kit load failed")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	running := make([]models.Kit, 0, len(c.pollers))
	for _, p := range c.pollers {
		running = append(running, p.Kit())
	}

	diff := c.registry.Diff(running, current)

	for i := range diff.Added {
		kit := diff.Added[i]
		c.logger.Info().
			Str("kit_id", kit.EffectiveID()).
			Str("endpoint", kit.Endpoint).
			Msg("Kit added")
		c.spawnLocked(ctx, kit)
	}

	for i := range diff.Removed {
		p, ok := c.pollers[diff.Removed[i].Endpoint]
		if !ok {
			continue
		}

		c.logger.Info().
			Str("kit_id", p.Kit().EffectiveID()).
			Str("endpoint", diff.Removed[i].Endpoint).
			Msg("Kit removed, disabling poller")
		p.Disable()
	}

	// Enabled flips carry over from the store without a full diff entry.
	currentByEndpoint := make(map[string]models.Kit, len(current))
	for i := range current {
		currentByEndpoint[current[i].Endpoint] = current[i]
	}

	for endpoint, p := range c.pollers {
		kit, ok := currentByEndpoint[endpoint]
		if !ok {
			continue
		}

		if kit.Enabled && !p.Enabled() {
			c.logger.Info().Str("endpoint", endpoint).Msg("Kit re-enabled")
			p.Enable()
		} else if !kit.Enabled && p.Enabled() {
			c.logger.Info().Str("endpoint", endpoint).Msg("Kit disabled")
			p.Disable()
		}
	}
}

// healthReportLoop periodically logs a per-kit health summary.
func (c *Collector) healthReportLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := c.clock.Ticker(time.Duration(c.config.HealthReportInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			c.reportHealth()
		}
	}
}

func (c *Collector) reportHealth() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.pollers {
		if !p.Enabled() {
			continue
		}

		snap := p.Health().Snapshot()
		c.logger.Info().
			Str("kit_id", p.Kit().EffectiveID()).
			Str("status", string(snap.Status)).
			Time("last_seen", snap.LastSeen).
			Int("consecutive_failures", snap.ConsecutiveFailures).
			Float64("success_rate", snap.SuccessRate).
			Msg("Kit health")
	}
}
