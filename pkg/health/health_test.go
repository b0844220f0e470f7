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

package health

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		InitialBackoff: 5 * time.Second,
		MaxBackoff:     300 * time.Second,
		StaleThreshold: 60 * time.Second,
	}
}

func TestBackoffCurve(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"baseline before any failure", 0, 5 * time.Second},
		{"first failure doubles", 1, 10 * time.Second},
		{"third failure", 3, 40 * time.Second},
		{"sixth failure capped at max", 6, 300 * time.Second},
		{"deep streak stays capped", 20, 300 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(testConfig())

			for i := 0; i < tt.failures; i++ {
				h.RecordFailure(errors.New("connection refused"))
			}

			snap := h.Snapshot()
			assert.Equal(t, tt.want, snap.BackoffDelay)

			if tt.failures > 0 {
				assert.Equal(t, tt.want, h.NextDelay())
			}
		})
	}
}

func TestRecordSuccessResetsStreak(t *testing.T) {
	h := New(testConfig())

	for i := 0; i < 7; i++ {
		h.RecordFailure(errors.New("timeout"))
	}

	require.Equal(t, StatusOffline, h.Status())
	require.Equal(t, 300*time.Second, h.NextDelay())

	h.RecordSuccess()

	snap := h.Snapshot()
	assert.Equal(t, StatusOnline, snap.Status)
	assert.Equal(t, 0, snap.ConsecutiveFailures)
	assert.Equal(t, 5*time.Second, snap.BackoffDelay)
	assert.Empty(t, snap.LastError)
	assert.Equal(t, uint64(8), snap.TotalRequests)
	assert.Equal(t, uint64(1), snap.SuccessfulRequests)
	assert.Equal(t, uint64(7), snap.FailedRequests)

	// Online kits poll on the base interval, no extra backoff.
	assert.Equal(t, time.Duration(0), h.NextDelay())
}

func TestIsStaleIndependentOfStatus(t *testing.T) {
	h := New(testConfig())

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return base }

	// Never seen: not stale no matter how much time passes.
	assert.False(t, h.IsStale(base.Add(time.Hour)))

	h.RecordSuccess()
	require.Equal(t, StatusOnline, h.Status())

	assert.False(t, h.IsStale(base.Add(60*time.Second)))
	assert.True(t, h.IsStale(base.Add(61*time.Second)))

	// The stored status is still online; staleness is overlay-only.
	assert.Equal(t, StatusOnline, h.Status())

	// A kit last recorded online ten minutes ago reports stale.
	h.now = func() time.Time { return base.Add(10 * time.Minute) }
	snap := h.Snapshot()
	assert.Equal(t, StatusStale, snap.Status)
}

func TestFailureRecordsError(t *testing.T) {
	h := New(testConfig())

	h.RecordFailure(errors.New("HTTP 503 from /drones"))

	snap := h.Snapshot()
	assert.Equal(t, StatusOffline, snap.Status)
	assert.Equal(t, "HTTP 503 from /drones", snap.LastError)
	assert.Equal(t, 1, snap.ConsecutiveFailures)
}

func TestSuccessRate(t *testing.T) {
	h := New(testConfig())

	h.RecordSuccess()
	h.RecordSuccess()
	h.RecordSuccess()
	h.RecordFailure(errors.New("timeout"))

	snap := h.Snapshot()
	assert.InDelta(t, 75.0, snap.SuccessRate, 0.01)
}
