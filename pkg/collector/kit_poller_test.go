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
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyspan/skyspan/pkg/health"
	"github.com/skyspan/skyspan/pkg/logger"
	"github.com/skyspan/skyspan/pkg/models"
)

type metadataCall struct {
	kit      models.Kit
	status   health.Status
	lastSeen time.Time
}

type fakeWriter struct {
	mu       sync.Mutex
	drones   map[string][]models.DroneReport
	signals  map[string][]models.SignalDetection
	statuses map[string][]models.KitStatus
	metadata []metadataCall
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{
		drones:   make(map[string][]models.DroneReport),
		signals:  make(map[string][]models.SignalDetection),
		statuses: make(map[string][]models.KitStatus),
	}
}

func (f *fakeWriter) WriteDrones(_ context.Context, kitID string, reports []models.DroneReport) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.drones[kitID] = append(f.drones[kitID], reports...)

	return len(reports)
}

func (f *fakeWriter) WriteSignals(_ context.Context, kitID string, detections []models.SignalDetection) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.signals[kitID] = append(f.signals[kitID], detections...)

	return len(detections)
}

func (f *fakeWriter) WriteKitStatus(_ context.Context, kitID string, status models.KitStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.statuses[kitID] = append(f.statuses[kitID], status)

	return nil
}

func (f *fakeWriter) UpsertKitMetadata(_ context.Context, kit *models.Kit, status health.Status, lastSeen time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.metadata = append(f.metadata, metadataCall{kit: *kit, status: status, lastSeen: lastSeen})

	return nil
}

func (f *fakeWriter) droneCount(kitID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.drones[kitID])
}

func (f *fakeWriter) signalCount(kitID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.signals[kitID])
}

func (f *fakeWriter) statusCount(kitID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.statuses[kitID])
}

func testConfig(t *testing.T) *Config {
	t.Helper()

	cfg := &Config{
		KitsFile: "kits.yaml",
		Database: &models.Database{Host: "localhost", Database: "skyspan"},
	}
	require.NoError(t, cfg.Validate())

	cfg.RequestTimeout = models.Duration(time.Second)
	cfg.RetryDelay = models.Duration(time.Millisecond)

	return cfg
}

func newTestPoller(t *testing.T, endpoint string, cfg *Config) (*KitPoller, *fakeWriter) {
	t.Helper()

	writer := newFakeWriter()
	kit := models.Kit{ConfiguredID: "kit-test", Endpoint: endpoint, Enabled: true}

	return NewKitPoller(kit, cfg, http.DefaultClient, writer, logger.NewTestLogger()), writer
}

func TestCycleIngestsAllEndpoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/drones":
			_, _ = w.Write([]byte(`[{"drone_id":"d1","lat":1.0,"lon":2.0}]`))
		case "/signals":
			_, _ = w.Write([]byte(`[{"freq_mhz":2437.0,"power_dbm":-50.0}]`))
		case "/status":
			_, _ = w.Write([]byte(`{"kit_id":"wardragon-42","cpu":{"percent":10.0}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p, writer := newTestPoller(t, srv.URL, testConfig(t))
	p.cycle(context.Background())

	assert.Equal(t, health.StatusOnline, p.Health().Status())
	assert.Equal(t, 1, writer.droneCount("wardragon-42"))
	assert.Equal(t, 1, writer.signalCount("wardragon-42"))
	assert.Equal(t, 1, writer.statusCount("wardragon-42"))
}

func TestCyclePartialSuccessIsOnline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/signals":
			_, _ = w.Write([]byte(`[{"freq_mhz":915.0}]`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	p, writer := newTestPoller(t, srv.URL, testConfig(t))
	p.cycle(context.Background())

	assert.Equal(t, health.StatusOnline, p.Health().Status())
	assert.Equal(t, 0, writer.droneCount("kit-test"))
	assert.Equal(t, 1, writer.signalCount("kit-test"))
}

func TestCycleAllEndpointsDownIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, writer := newTestPoller(t, srv.URL, testConfig(t))
	p.cycle(context.Background())
	p.cycle(context.Background())

	assert.Equal(t, health.StatusOffline, p.Health().Status())
	assert.Greater(t, p.Health().NextDelay(), time.Duration(0))
	assert.Equal(t, 0, writer.droneCount("kit-test"))

	// Metadata is still upserted so operators can see the kit is down.
	require.NotEmpty(t, writer.metadata)
	assert.Equal(t, health.StatusOffline, writer.metadata[len(writer.metadata)-1].status)
}

func TestCycleGarbagePayloadIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	defer srv.Close()

	p, writer := newTestPoller(t, srv.URL, testConfig(t))
	p.cycle(context.Background())

	assert.Equal(t, health.StatusOffline, p.Health().Status())
	assert.Equal(t, 0, writer.droneCount("kit-test"))
	assert.Equal(t, 0, writer.signalCount("kit-test"))
}

func TestIdentityUpgradeIsOneWay(t *testing.T) {
	var reported atomic.Value

	reported.Store("wardragon-7")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status":
			_, _ = w.Write([]byte(`{"kit_id":"` + reported.Load().(string) + `"}`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	cfg := testConfig(t)
	// Status probe on every cycle.
	cfg.StatusInterval = cfg.PollInterval

	p, _ := newTestPoller(t, srv.URL, cfg)
	require.Equal(t, "kit-test", p.Kit().EffectiveID())

	p.cycle(context.Background())
	assert.Equal(t, "wardragon-7", p.Kit().EffectiveID())

	reported.Store("impostor-1")
	p.cycle(context.Background())
	assert.Equal(t, "wardragon-7", p.Kit().EffectiveID())
}

func TestIdentityUpgradePreservesHealthCounters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/status" {
			_, _ = w.Write([]byte(`{"kit_id":"wardragon-9"}`))
			return
		}

		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.StatusInterval = cfg.PollInterval

	p, _ := newTestPoller(t, srv.URL, cfg)

	p.Health().RecordFailure(errAllEndpointsFailed)
	p.Health().RecordFailure(errAllEndpointsFailed)
	before := p.Health().Snapshot().TotalRequests

	p.cycle(context.Background())

	snap := p.Health().Snapshot()
	assert.Equal(t, "wardragon-9", p.Kit().EffectiveID())
	assert.Equal(t, before+1, snap.TotalRequests)
	assert.Equal(t, uint64(2), snap.FailedRequests)
}

func TestDisabledPollerMakesNoRequests(t *testing.T) {
	var calls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.PollInterval = models.Duration(10 * time.Millisecond)

	p, _ := newTestPoller(t, srv.URL, cfg)
	p.Disable()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	p.Run(ctx)

	assert.Equal(t, int32(0), calls.Load())
}

func TestRunStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.PollInterval = models.Duration(10 * time.Millisecond)

	p, _ := newTestPoller(t, srv.URL, cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})

	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancellation")
	}

	assert.Equal(t, health.StatusOnline, p.Health().Status())
}
