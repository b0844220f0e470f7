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

// Package metrics exposes Prometheus counters for the ingestion scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PollCyclesTotal counts completed poll cycles per kit and outcome.
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyspan_poll_cycles_total",
			Help: "Total number of completed poll cycles",
		},
		[]string{"kit", "result"},
	)

	// FetchRetriesTotal counts inline timeout retries per endpoint kind.
	FetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyspan_fetch_retries_total",
			Help: "Total number of inline fetch retries after timeouts",
		},
		[]string{"endpoint"},
	)

	// RecordsWrittenTotal counts persisted rows per record kind.
	RecordsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyspan_records_written_total",
			Help: "Total number of records persisted",
		},
		[]string{"kind"},
	)

	// RecordsSkippedTotal counts records dropped by record-level failures.
	RecordsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyspan_records_skipped_total",
			Help: "Total number of records skipped due to write failures",
		},
		[]string{"kind"},
	)

	// KitsRunning tracks the size of the running poller set.
	KitsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skyspan_kits_running",
			Help: "Number of kit pollers currently running",
		},
	)
)
