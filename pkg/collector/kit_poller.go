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

package collector

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyspan/skyspan/pkg/health"
	"github.com/skyspan/skyspan/pkg/ingest"
	"github.com/skyspan/skyspan/pkg/logger"
	"github.com/skyspan/skyspan/pkg/metrics"
	"github.com/skyspan/skyspan/pkg/models"
)

const (
	pathDrones  = "/drones"
	pathSignals = "/signals"
	pathStatus  = "/status"
)

// KitPoller owns the polling loop for a single kit. Each poller runs in
// its own goroutine; a slow or dead kit never delays the others.
type KitPoller struct {
	mu  sync.Mutex
	kit models.Kit

	enabled atomic.Bool

	health *health.KitHealth
	fetch  *fetcher
	writer ingest.RecordWriter

	interval    time.Duration
	statusEvery int
	cycles      uint64

	logger zerolog.Logger
}

// NewKitPoller builds a poller for one kit. The poller keeps its own
// copy of the kit definition; the only field mutated afterwards is the
// discovered identity.
func NewKitPoller(kit models.Kit, cfg *Config, client *http.Client, writer ingest.RecordWriter, log logger.Logger) *KitPoller {
	kitLog := log.With().Str("kit_id", kit.EffectiveID()).Str("endpoint", kit.Endpoint).Logger()

	p := &KitPoller{
		kit: kit,
		health: health.New(health.Config{
			InitialBackoff: time.Duration(cfg.InitialBackoff),
			MaxBackoff:     time.Duration(cfg.MaxBackoff),
			StaleThreshold: time.Duration(cfg.StaleThreshold),
		}),
		fetch: &fetcher{
			client:     client,
			baseURL:    kit.Endpoint,
			timeout:    time.Duration(cfg.RequestTimeout),
			maxRetries: cfg.MaxRetries,
			retryDelay: time.Duration(cfg.RetryDelay),
			logger:     kitLog,
		},
		writer:      writer,
		interval:    time.Duration(cfg.PollInterval),
		statusEvery: cfg.statusEveryCycles(),
		logger:      kitLog,
	}

	p.enabled.Store(kit.Enabled)

	return p
}

// Endpoint returns the kit's canonical base URL, the reconciliation key.
func (p *KitPoller) Endpoint() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.kit.Endpoint
}

// Kit returns a copy of the current kit definition.
func (p *KitPoller) Kit() models.Kit {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.kit
}

// Enabled reports whether the poller is actively polling.
func (p *KitPoller) Enabled() bool {
	return p.enabled.Load()
}

// Enable resumes polling on the next loop iteration.
func (p *KitPoller) Enable() {
	p.enabled.Store(true)
}

// Disable idles the poller without killing its goroutine, so re-adding
// the kit later keeps its health history.
func (p *KitPoller) Disable() {
	p.enabled.Store(false)
}

// Health exposes the poller's health tracker for reporting.
func (p *KitPoller) Health() *health.KitHealth {
	return p.health
}

// Run polls the kit until ctx is cancelled. An online kit is polled on
// the base interval; after failures the health tracker's exponential
// backoff stretches the gap.
func (p *KitPoller) Run(ctx context.Context) {
	p.logger.Info().Dur("interval", p.interval).Msg("Kit poller started")

	for {
		if ctx.Err() != nil {
			p.logger.Info().Msg("Kit poller stopped")
			return
		}

		if !p.enabled.Load() {
			if !sleepContext(ctx, p.interval) {
				p.logger.Info().Msg("Kit poller stopped")
				return
			}

			continue
		}

		p.cycle(ctx)

		delay := p.health.NextDelay()
		if delay == 0 {
			delay = p.interval
		}

		if !sleepContext(ctx, delay) {
			p.logger.Info().Msg("Kit poller stopped")
			return
		}
	}
}

// cycle runs one poll: drones and signals every cycle, a status probe
// every k-th cycle, all fetched concurrently. A cycle succeeds if any
// endpoint answered. Status is processed first so an identity discovered
// this cycle already covers the cycle's telemetry writes.
func (p *KitPoller) cycle(ctx context.Context) {
	p.cycles++

	now := time.Now().UTC()
	statusDue := (p.cycles-1)%uint64(p.statusEvery) == 0

	var (
		wg                                sync.WaitGroup
		droneBody, signalBody, statusBody []byte
		droneErr, signalErr, statusErr    error
	)

	wg.Add(2)

	go func() {
		defer wg.Done()
		droneBody, droneErr = p.fetch.get(ctx, pathDrones)
	}()

	go func() {
		defer wg.Done()
		signalBody, signalErr = p.fetch.get(ctx, pathSignals)
	}()

	if statusDue {
		wg.Add(1)

		go func() {
			defer wg.Done()
			statusBody, statusErr = p.fetch.get(ctx, pathStatus)
		}()
	}

	wg.Wait()

	succeeded := false

	if statusDue {
		if statusErr != nil {
			p.logger.Debug().Err(statusErr).Msg("Status fetch failed")
		} else if p.ingestStatus(ctx, statusBody, now) {
			succeeded = true
		}
	}

	kitID := p.effectiveID()

	if droneErr != nil {
		p.logger.Debug().Err(droneErr).Msg("Drone fetch failed")
	} else if p.ingestDrones(ctx, kitID, droneBody, now) {
		succeeded = true
	}

	if signalErr != nil {
		p.logger.Debug().Err(signalErr).Msg("Signal fetch failed")
	} else if p.ingestSignals(ctx, kitID, signalBody, now) {
		succeeded = true
	}

	if succeeded {
		p.health.RecordSuccess()
		metrics.PollCyclesTotal.WithLabelValues(p.effectiveID(), "success").Inc()
	} else {
		err := droneErr
		if err == nil {
			err = signalErr
		}
		if err == nil {
			err = errAllEndpointsFailed
		}

		p.health.RecordFailure(err)
		metrics.PollCyclesTotal.WithLabelValues(p.effectiveID(), "failure").Inc()
		p.logger.Warn().Err(err).
			Int("consecutive_failures", p.health.Snapshot().ConsecutiveFailures).
			Dur("backoff", p.health.NextDelay()).
			Msg("Poll cycle failed")
	}

	p.upsertMetadata(ctx)
}

// ingestDrones reports false when the payload could not be decoded; an
// undecodable body counts against the cycle like a failed fetch.
func (p *KitPoller) ingestDrones(ctx context.Context, kitID string, body []byte, now time.Time) bool {
	reports, err := decodeDroneReports(body, now)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to decode drone payload")
		return false
	}

	if len(reports) > 0 {
		n := p.writer.WriteDrones(ctx, kitID, reports)
		p.logger.Debug().Int("written", n).Int("received", len(reports)).Msg("Drone reports ingested")
	}

	return true
}

func (p *KitPoller) ingestSignals(ctx context.Context, kitID string, body []byte, now time.Time) bool {
	detections, err := decodeSignalDetections(body, now)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to decode signal payload")
		return false
	}

	if len(detections) > 0 {
		n := p.writer.WriteSignals(ctx, kitID, detections)
		p.logger.Debug().Int("written", n).Int("received", len(detections)).Msg("Signal detections ingested")
	}

	return true
}

// ingestStatus decodes a status payload, upgrades the kit's identity if
// this is the first time it reported one, and persists the record under
// the upgraded identity.
func (p *KitPoller) ingestStatus(ctx context.Context, body []byte, now time.Time) bool {
	status, err := decodeKitStatus(body, now)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to decode status payload")
		return false
	}

	if status.ReportedID != "" {
		p.adoptDiscoveredID(status.ReportedID)
	}

	if err := p.writer.WriteKitStatus(ctx, p.effectiveID(), status); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to persist kit status")
	}

	return true
}

// adoptDiscoveredID upgrades the kit's identity exactly once. Later
// status reports never revert or change it; a kit that starts reporting
// a different id is logged and ignored.
func (p *KitPoller) adoptDiscoveredID(reported string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.kit.DiscoveredID == "":
		p.logger.Info().
			Str("configured_id", p.kit.ConfiguredID).
			Str("discovered_id", reported).
			Msg("Kit identity discovered")

		p.kit.DiscoveredID = reported
		p.logger = p.logger.With().Str("kit_id", reported).Logger()
	case p.kit.DiscoveredID != reported:
		p.logger.Warn().
			Str("discovered_id", p.kit.DiscoveredID).
			Str("reported_id", reported).
			Msg("Kit reported a different identity, keeping the first one")
	}
}

func (p *KitPoller) effectiveID() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.kit.EffectiveID()
}

func (p *KitPoller) upsertMetadata(ctx context.Context) {
	kit := p.Kit()

	if err := p.writer.UpsertKitMetadata(ctx, &kit, p.health.Status(), p.health.LastSeen()); err != nil {
		p.logger.Debug().Err(err).Msg("Failed to upsert kit metadata")
	}
}
