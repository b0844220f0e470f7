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

package models

// Kit is a polling target: one independently operated sensor unit whose
// telemetry API we collect from.
type Kit struct {
	// ConfiguredID is the bootstrap identity assigned in configuration.
	ConfiguredID string `json:"id" yaml:"id"`
	// DiscoveredID is the kit's self-reported identity, learned from its
	// status endpoint. Empty until the first successful status probe.
	// Once set it is authoritative and never reverts.
	DiscoveredID string `json:"discovered_id,omitempty" yaml:"discovered_id,omitempty"`
	// Endpoint is the base URL of the kit's API, canonical form: no
	// trailing slash, scheme defaults to http.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
}

// EffectiveID returns the identity used for all writes and health
// tracking: the discovered identity once known, the configured one before.
func (k Kit) EffectiveID() string {
	if k.DiscoveredID != "" {
		return k.DiscoveredID
	}

	return k.ConfiguredID
}
