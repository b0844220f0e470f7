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

import "time"

// DroneReport is one normalized position report from a kit's /drones
// endpoint. Records are built per poll cycle, written, and dropped;
// nothing retains them.
type DroneReport struct {
	Time       time.Time
	DroneID    string
	Lat        *float64
	Lon        *float64
	Alt        *float64
	Speed      *float64
	Heading    *float64
	PilotLat   *float64
	PilotLon   *float64
	HomeLat    *float64
	HomeLon    *float64
	MAC        string
	RSSI       *int
	Freq       *float64
	UAType     string
	OperatorID string
	CAAID      string
	RIDMake    string
	RIDModel   string
	RIDSource  string
	TrackType  string
}

// SignalDetection is one normalized RF detection from a kit's /signals
// endpoint.
type SignalDetection struct {
	Time          time.Time
	FreqMHz       *float64
	PowerDBM      *float64
	BandwidthMHz  *float64
	Lat           *float64
	Lon           *float64
	Alt           *float64
	DetectionType string
}

// KitStatus is the kit's self-reported health: its own GPS fix plus
// resource utilization. At most one row per kit per timestamp.
type KitStatus struct {
	Time          time.Time
	ReportedID    string
	Lat           *float64
	Lon           *float64
	Alt           *float64
	CPUPercent    *float64
	MemoryPercent *float64
	DiskPercent   *float64
	UptimeHours   *float64
	TempCPU       *float64
	TempGPU       *float64
}
