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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyspan/skyspan/pkg/models"
)

func TestValidateFillsDefaults(t *testing.T) {
	cfg := &Config{
		KitsFile: "kits.yaml",
		Database: &models.Database{Host: "localhost", Database: "skyspan"},
	}

	require.NoError(t, cfg.Validate())

	assert.Equal(t, defaultPollInterval, time.Duration(cfg.PollInterval))
	assert.Equal(t, defaultStatusInterval, time.Duration(cfg.StatusInterval))
	assert.Equal(t, defaultMaxBackoff, time.Duration(cfg.MaxBackoff))
	assert.Equal(t, defaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, defaultHTTPMaxConns, cfg.HTTPMaxConns)
}

func TestValidateKeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		KitsFile:     "kits.yaml",
		Database:     &models.Database{Host: "localhost", Database: "skyspan"},
		PollInterval: models.Duration(time.Second),
		MaxRetries:   7,
	}

	require.NoError(t, cfg.Validate())

	assert.Equal(t, time.Second, time.Duration(cfg.PollInterval))
	assert.Equal(t, 7, cfg.MaxRetries)
}

func TestValidateRequiresKitsFile(t *testing.T) {
	cfg := &Config{Database: &models.Database{Host: "localhost", Database: "skyspan"}}

	assert.ErrorIs(t, cfg.Validate(), errKitsFileRequired)
}

func TestValidateRequiresDatabase(t *testing.T) {
	cfg := &Config{KitsFile: "kits.yaml"}
	assert.ErrorIs(t, cfg.Validate(), errDatabaseRequired)

	cfg.Database = &models.Database{Host: "localhost"}
	assert.ErrorIs(t, cfg.Validate(), errDatabaseRequired)
}

func TestStatusEveryCycles(t *testing.T) {
	cfg := &Config{
		PollInterval:   models.Duration(5 * time.Second),
		StatusInterval: models.Duration(30 * time.Second),
	}
	assert.Equal(t, 6, cfg.statusEveryCycles())

	// Status never probed more often than every cycle.
	cfg.StatusInterval = models.Duration(time.Second)
	assert.Equal(t, 1, cfg.statusEveryCycles())
}
