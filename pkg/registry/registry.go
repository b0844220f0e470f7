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

// Package registry derives the desired kit set from the kits file merged
// with the persistent store, and diffs it against the running set.
package registry

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/skyspan/skyspan/pkg/config"
	"github.com/skyspan/skyspan/pkg/ingest"
	"github.com/skyspan/skyspan/pkg/logger"
	"github.com/skyspan/skyspan/pkg/models"
)

// Registry loads kit definitions and computes reconciliation diffs.
type Registry struct {
	kitsFile string
	store    ingest.KitStore
	loader   config.ConfigLoader
	logger   logger.Logger
}

// Diff is the reconciliation delta between the running poller set and a
// freshly loaded kit set, keyed by normalized endpoint. Identity cannot
// key the comparison: a running kit may not have been discovered yet.
type Diff struct {
	Added   []models.Kit
	Removed []models.Kit
}

// kitDefinition is the wire shape of one entry in the kits file. Enabled
// is a pointer so that an omitted flag defaults to true.
type kitDefinition struct {
	ID       string `json:"id" yaml:"id"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Name     string `json:"name" yaml:"name"`
	Location string `json:"location" yaml:"location"`
	Enabled  *bool  `json:"enabled" yaml:"enabled"`
}

type kitsFile struct {
	Kits []kitDefinition `json:"kits" yaml:"kits"`
}

// New creates a Registry over the given kits file and store.
func New(kitsFile string, store ingest.KitStore, log logger.Logger) *Registry {
	return &Registry{
		kitsFile: kitsFile,
		store:    store,
		loader:   &config.FileConfigLoader{},
		logger:   log,
	}
}

// Load merges the static kits file with the persistent store and returns
// the full kit set. Store rows take precedence for the enabled flag;
// kits present only in the file are persisted before being returned, so
// the store becomes the long-run source of truth.
func (r *Registry) Load(ctx context.Context) ([]models.Kit, error) {
	fromFile := r.loadFile(ctx)

	stored, err := r.store.ListKits(ctx)
	if err != nil {
		return nil, err
	}

	storedByEndpoint := make(map[string]models.Kit, len(stored))
	for _, k := range stored {
		k.Endpoint = NormalizeEndpoint(k.Endpoint)
		if k.Endpoint == "" {
			continue
		}

		storedByEndpoint[k.Endpoint] = k
	}

	merged := make([]models.Kit, 0, len(fromFile)+len(stored))
	seen := make(map[string]bool, len(fromFile))

	for _, k := range fromFile {
		seen[k.Endpoint] = true

		if row, ok := storedByEndpoint[k.Endpoint]; ok {
			k.Enabled = row.Enabled
		} else {
			if err := r.store.RegisterKit(ctx, &k); err != nil {
				r.logger.Warn().Err(err).
					Str("kit_id", k.ConfiguredID).
					Str("endpoint", k.Endpoint).
					Msg("Failed to persist newly discovered kit")
			}
		}

		merged = append(merged, k)
	}

	// Kits known only to the store (added at runtime or removed from the
	// file after first registration) remain part of the desired set.
	for _, k := range stored {
		k.Endpoint = NormalizeEndpoint(k.Endpoint)
		if k.Endpoint == "" || seen[k.Endpoint] {
			continue
		}

		merged = append(merged, k)
	}

	return merged, nil
}

// loadFile parses the kits file, dropping unusable definitions with a
// warning rather than failing the load.
func (r *Registry) loadFile(ctx context.Context) []models.Kit {
	if r.kitsFile == "" {
		return nil
	}

	var parsed kitsFile

	if err := r.loader.Load(ctx, r.kitsFile, &parsed); err != nil {
		r.logger.Warn().Err(err).Str("path", r.kitsFile).Msg("Failed to load kits file")
		return nil
	}

	kits := make([]models.Kit, 0, len(parsed.Kits))

	for i := range parsed.Kits {
		def := &parsed.Kits[i]

		endpoint := NormalizeEndpoint(def.Endpoint)
		if endpoint == "" {
			r.logger.Warn().
				Str("kit_id", def.ID).
				Msg("Dropping kit definition without endpoint")

			continue
		}

		id := def.ID
		if id == "" {
			id = SyntheticID(endpoint)
			r.logger.Warn().
				Str("endpoint", endpoint).
				Str("kit_id", id).
				Msg("Kit definition missing id, assigned synthetic id")
		}

		enabled := true
		if def.Enabled != nil {
			enabled = *def.Enabled
		}

		kits = append(kits, models.Kit{
			ConfiguredID: id,
			Endpoint:     endpoint,
			Name:         def.Name,
			Location:     def.Location,
			Enabled:      enabled,
		})
	}

	return kits
}

// Diff compares the running set against a freshly loaded one. Comparison
// keys on normalized endpoint only.
func (*Registry) Diff(running, current []models.Kit) Diff {
	runningSet := make(map[string]bool, len(running))
	for i := range running {
		runningSet[running[i].Endpoint] = true
	}

	currentSet := make(map[string]bool, len(current))

	var d Diff

	for i := range current {
		currentSet[current[i].Endpoint] = true

		if !runningSet[current[i].Endpoint] {
			d.Added = append(d.Added, current[i])
		}
	}

	for i := range running {
		if !currentSet[running[i].Endpoint] {
			d.Removed = append(d.Removed, running[i])
		}
	}

	return d
}

// NormalizeEndpoint canonicalizes a kit base URL: trailing slashes are
// stripped and a missing scheme defaults to http.
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}

	endpoint = strings.TrimRight(endpoint, "/")
	if endpoint == "" {
		return ""
	}

	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	return endpoint
}

// SyntheticID derives a deterministic identifier from an endpoint for
// definitions that arrive without one.
func SyntheticID(endpoint string) string {
	return "kit-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(endpoint)).String()
}
