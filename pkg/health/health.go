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

// Package health tracks per-kit availability and adaptive backoff.
// It is pure state machine logic: no I/O, no timers.
package health

import (
	"sync"
	"time"
)

// Status is a kit's recorded availability.
type Status string

const (
	StatusUnknown Status = "unknown"
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	// StatusStale is never stored; it is an overlay derived from the age
	// of the last successful contact.
	StatusStale Status = "stale"
)

// Config bounds the backoff curve and the staleness overlay.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	StaleThreshold time.Duration
}

// KitHealth tracks one kit's availability, failure streak, and backoff.
// The owning poller is the only writer; the supervisor's health reporter
// reads concurrently via Snapshot.
type KitHealth struct {
	mu sync.Mutex

	cfg Config
	now func() time.Time

	status              Status
	lastSeen            time.Time
	lastError           string
	consecutiveFailures int
	backoffDelay        time.Duration
	totalRequests       uint64
	successfulRequests  uint64
	failedRequests      uint64
}

// Snapshot is an immutable copy of the health state for reporting. The
// staleness overlay is already applied to Status.
type Snapshot struct {
	Status              Status
	LastSeen            time.Time
	LastError           string
	ConsecutiveFailures int
	BackoffDelay        time.Duration
	TotalRequests       uint64
	SuccessfulRequests  uint64
	FailedRequests      uint64
	SuccessRate         float64
}

// New creates a KitHealth in the unknown state.
func New(cfg Config) *KitHealth {
	return &KitHealth{
		cfg:          cfg,
		now:          time.Now,
		status:       StatusUnknown,
		backoffDelay: cfg.InitialBackoff,
	}
}

// RecordSuccess marks a successful poll cycle: the failure streak and
// backoff reset unconditionally.
func (h *KitHealth) RecordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.status = StatusOnline
	h.lastSeen = h.now()
	h.lastError = ""
	h.consecutiveFailures = 0
	h.backoffDelay = h.cfg.InitialBackoff
	h.totalRequests++
	h.successfulRequests++
}

// RecordFailure marks a failed poll cycle and advances the exponential
// backoff: delay = min(initial << failures, max).
func (h *KitHealth) RecordFailure(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.status = StatusOffline
	if err != nil {
		h.lastError = err.Error()
	}

	h.consecutiveFailures++
	h.totalRequests++
	h.failedRequests++

	delay := h.cfg.InitialBackoff << h.consecutiveFailures
	if delay > h.cfg.MaxBackoff || delay <= 0 {
		delay = h.cfg.MaxBackoff
	}

	h.backoffDelay = delay
}

// IsStale reports whether the last successful contact is older than the
// staleness threshold. It never mutates the stored status; callers
// overlay the result on reads.
func (h *KitHealth) IsStale(now time.Time) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.isStaleLocked(now)
}

func (h *KitHealth) isStaleLocked(now time.Time) bool {
	if h.lastSeen.IsZero() {
		return false
	}

	return now.Sub(h.lastSeen) > h.cfg.StaleThreshold
}

// NextDelay returns the extra inter-cycle delay. Zero means "no extra
// backoff": an online kit is polled on the base interval, not in a busy
// loop.
func (h *KitHealth) NextDelay() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status == StatusOnline {
		return 0
	}

	return h.backoffDelay
}

// Status returns the stored status without the staleness overlay.
func (h *KitHealth) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.status
}

// LastSeen returns the time of the last successful cycle, zero if none.
func (h *KitHealth) LastSeen() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.lastSeen
}

// Snapshot copies the current state for the health reporter, applying
// the staleness overlay to the reported status.
func (h *KitHealth) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	status := h.status
	if h.isStaleLocked(h.now()) {
		status = StatusStale
	}

	var rate float64
	if h.totalRequests > 0 {
		rate = float64(h.successfulRequests) / float64(h.totalRequests) * 100
	}

	return Snapshot{
		Status:              status,
		LastSeen:            h.lastSeen,
		LastError:           h.lastError,
		ConsecutiveFailures: h.consecutiveFailures,
		BackoffDelay:        h.backoffDelay,
		TotalRequests:       h.totalRequests,
		SuccessfulRequests:  h.successfulRequests,
		FailedRequests:      h.failedRequests,
		SuccessRate:         rate,
	}
}
