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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyspan/skyspan/pkg/logger"
	"github.com/skyspan/skyspan/pkg/models"
	"github.com/skyspan/skyspan/pkg/registry"
)

type fakeRegistry struct {
	mu   sync.Mutex
	kits []models.Kit
	err  error
}

func (f *fakeRegistry) Load(_ context.Context) ([]models.Kit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	out := make([]models.Kit, len(f.kits))
	copy(out, f.kits)

	return out, nil
}

func (*fakeRegistry) Diff(running, current []models.Kit) registry.Diff {
	return (&registry.Registry{}).Diff(running, current)
}

func (f *fakeRegistry) set(kits []models.Kit) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.kits = kits
}

func quietKitServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newTestCollector(t *testing.T, reg KitRegistry) (*Collector, *fakeWriter) {
	t.Helper()

	cfg := testConfig(t)
	cfg.PollInterval = models.Duration(20 * time.Millisecond)
	cfg.ReconcileInterval = models.Duration(time.Hour)
	cfg.HealthReportInterval = models.Duration(time.Hour)

	writer := newFakeWriter()

	return New(cfg, reg, writer, logger.NewTestLogger()), writer
}

func (c *Collector) pollerFor(endpoint string) *KitPoller {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.pollers[endpoint]
}

func TestStartSpawnsOnePollerPerKit(t *testing.T) {
	srvA := quietKitServer(t)
	srvB := quietKitServer(t)

	reg := &fakeRegistry{kits: []models.Kit{
		{ConfiguredID: "kit-a", Endpoint: srvA.URL, Enabled: true},
		{ConfiguredID: "kit-b", Endpoint: srvB.URL, Enabled: true},
	}}

	c, _ := newTestCollector(t, reg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		done <- c.Start(ctx)
	}()

	require.Eventually(t, func() bool {
		return c.pollerFor(srvA.URL) != nil && c.pollerFor(srvB.URL) != nil
	}, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("collector did not stop after cancellation")
	}

	require.NoError(t, c.Stop(context.Background()))
}

func TestStartFailsWhenInitialLoadFails(t *testing.T) {
	reg := &fakeRegistry{err: context.DeadlineExceeded}

	c, _ := newTestCollector(t, reg)

	err := c.Start(context.Background())
	require.Error(t, err)
}

func TestReconcileSpawnsAddedKit(t *testing.T) {
	srvA := quietKitServer(t)
	srvB := quietKitServer(t)

	kitA := models.Kit{ConfiguredID: "kit-a", Endpoint: srvA.URL, Enabled: true}
	kitB := models.Kit{ConfiguredID: "kit-b", Endpoint: srvB.URL, Enabled: true}

	reg := &fakeRegistry{kits: []models.Kit{kitA}}

	c, _ := newTestCollector(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.mu.Lock()
	c.spawnLocked(ctx, kitA)
	c.mu.Unlock()

	reg.set([]models.Kit{kitA, kitB})
	c.reconcile(ctx)

	assert.NotNil(t, c.pollerFor(srvA.URL))
	assert.NotNil(t, c.pollerFor(srvB.URL))
}

func TestReconcileDisablesRemovedKit(t *testing.T) {
	srvA := quietKitServer(t)
	srvB := quietKitServer(t)

	kitA := models.Kit{ConfiguredID: "kit-a", Endpoint: srvA.URL, Enabled: true}
	kitB := models.Kit{ConfiguredID: "kit-b", Endpoint: srvB.URL, Enabled: true}

	reg := &fakeRegistry{kits: []models.Kit{kitA, kitB}}

	c, _ := newTestCollector(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.mu.Lock()
	c.spawnLocked(ctx, kitA)
	c.spawnLocked(ctx, kitB)
	c.mu.Unlock()

	reg.set([]models.Kit{kitA})
	c.reconcile(ctx)

	require.NotNil(t, c.pollerFor(srvB.URL))
	assert.False(t, c.pollerFor(srvB.URL).Enabled())
	assert.True(t, c.pollerFor(srvA.URL).Enabled())
}

func TestReconcileAppliesEnabledFlip(t *testing.T) {
	srv := quietKitServer(t)

	kit := models.Kit{ConfiguredID: "kit-a", Endpoint: srv.URL, Enabled: true}

	reg := &fakeRegistry{kits: []models.Kit{kit}}

	c, _ := newTestCollector(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.mu.Lock()
	c.spawnLocked(ctx, kit)
	c.mu.Unlock()

	disabled := kit
	disabled.Enabled = false
	reg.set([]models.Kit{disabled})
	c.reconcile(ctx)
	assert.False(t, c.pollerFor(srv.URL).Enabled())

	reg.set([]models.Kit{kit})
	c.reconcile(ctx)
	assert.True(t, c.pollerFor(srv.URL).Enabled())
}

func TestReconcileSkipsOnLoadError(t *testing.T) {
	srv := quietKitServer(t)

	kit := models.Kit{ConfiguredID: "kit-a", Endpoint: srv.URL, Enabled: true}

	reg := &fakeRegistry{kits: []models.Kit{kit}}

	c, _ := newTestCollector(t, reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c.mu.Lock()
	c.spawnLocked(ctx, kit)
	c.mu.Unlock()

	reg.mu.Lock()
	reg.err = context.DeadlineExceeded
	reg.mu.Unlock()

	c.reconcile(ctx)

	require.NotNil(t, c.pollerFor(srv.URL))
	assert.True(t, c.pollerFor(srv.URL).Enabled())
}
