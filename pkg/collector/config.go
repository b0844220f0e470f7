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
	"time"

	"github.com/skyspan/skyspan/pkg/logger"
	"github.com/skyspan/skyspan/pkg/models"
)

const (
	defaultPollInterval         = 5 * time.Second
	defaultStatusInterval       = 30 * time.Second
	defaultRequestTimeout       = 10 * time.Second
	defaultMaxRetries           = 3
	defaultRetryDelay           = 1 * time.Second
	defaultInitialBackoff       = 5 * time.Second
	defaultMaxBackoff           = 300 * time.Second
	defaultStaleThreshold       = 60 * time.Second
	defaultReconcileInterval    = 30 * time.Second
	defaultHealthReportInterval = 60 * time.Second
	defaultHTTPMaxConns         = 100
	defaultHTTPMaxIdleConns     = 20
)

// Config represents collector configuration.
type Config struct {
	KitsFile             string           `json:"kits_file"`
	ListenAddr           string           `json:"listen_addr,omitempty"`
	Database             *models.Database `json:"database"`
	PollInterval         models.Duration  `json:"poll_interval,omitempty"`
	StatusInterval       models.Duration  `json:"status_interval,omitempty"`
	RequestTimeout       models.Duration  `json:"request_timeout,omitempty"`
	MaxRetries           int              `json:"max_retries,omitempty"`
	RetryDelay           models.Duration  `json:"retry_delay,omitempty"`
	InitialBackoff       models.Duration  `json:"initial_backoff,omitempty"`
	MaxBackoff           models.Duration  `json:"max_backoff,omitempty"`
	StaleThreshold       models.Duration  `json:"stale_threshold,omitempty"`
	ReconcileInterval    models.Duration  `json:"reconcile_interval,omitempty"`
	HealthReportInterval models.Duration  `json:"health_report_interval,omitempty"`
	HTTPMaxConns         int              `json:"http_max_conns,omitempty"`
	HTTPMaxIdleConns     int              `json:"http_max_idle_conns,omitempty"`
	Logging              *logger.Config   `json:"logging,omitempty"`
}

// Validate implements config.Validator and fills defaults.
func (c *Config) Validate() error {
	if c.KitsFile == "" {
		return errKitsFileRequired
	}

	if c.Database == nil || c.Database.Host == "" || c.Database.Database == "" {
		return errDatabaseRequired
	}

	setDefault(&c.PollInterval, defaultPollInterval)
	setDefault(&c.StatusInterval, defaultStatusInterval)
	setDefault(&c.RequestTimeout, defaultRequestTimeout)
	setDefault(&c.RetryDelay, defaultRetryDelay)
	setDefault(&c.InitialBackoff, defaultInitialBackoff)
	setDefault(&c.MaxBackoff, defaultMaxBackoff)
	setDefault(&c.StaleThreshold, defaultStaleThreshold)
	setDefault(&c.ReconcileInterval, defaultReconcileInterval)
	setDefault(&c.HealthReportInterval, defaultHealthReportInterval)

	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}

	if c.HTTPMaxConns <= 0 {
		c.HTTPMaxConns = defaultHTTPMaxConns
	}

	if c.HTTPMaxIdleConns <= 0 {
		c.HTTPMaxIdleConns = defaultHTTPMaxIdleConns
	}

	return nil
}

func setDefault(d *models.Duration, def time.Duration) {
	if time.Duration(*d) <= 0 {
		*d = models.Duration(def)
	}
}

// statusEveryCycles returns how many poll cycles sit between status
// probes, never less than one.
func (c *Config) statusEveryCycles() int {
	k := int(time.Duration(c.StatusInterval) / time.Duration(c.PollInterval))
	if k < 1 {
		k = 1
	}

	return k
}
