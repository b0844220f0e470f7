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

// Package ingest persists normalized kit telemetry into Timescale-backed
// tables. All writes are idempotent upserts on the record's natural key.
package ingest

import (
	"context"

	"github.com/skyspan/skyspan/pkg/logger"
	"github.com/skyspan/skyspan/pkg/metrics"
	"github.com/skyspan/skyspan/pkg/models"
)

const (
	upsertDroneSQL = `
INSERT INTO drones (
	time, kit_id, drone_id, lat, lon, alt, speed, heading,
	pilot_lat, pilot_lon, home_lat, home_lon,
	mac, rssi, freq, ua_type, operator_id, caa_id,
	rid_make, rid_model, rid_source, track_type
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,
	$9,$10,$11,$12,
	$13,$14,$15,$16,$17,$18,
	$19,$20,$21,$22
)
ON CONFLICT (time, kit_id, drone_id) DO UPDATE SET
	lat = EXCLUDED.lat,
	lon = EXCLUDED.lon,
	alt = EXCLUDED.alt,
	speed = EXCLUDED.speed,
	heading = EXCLUDED.heading`

	upsertSignalSQL = `
INSERT INTO signals (
	time, kit_id, freq_mhz, power_dbm, bandwidth_mhz,
	lat, lon, alt, detection_type
) VALUES (
	$1,$2,$3,$4,$5,
	$6,$7,$8,$9
)
ON CONFLICT (time, kit_id, freq_mhz) DO UPDATE SET
	power_dbm = EXCLUDED.power_dbm`

	upsertKitStatusSQL = `
INSERT INTO system_health (
	time, kit_id, lat, lon, alt,
	cpu_percent, memory_percent, disk_percent,
	uptime_hours, temp_cpu, temp_gpu
) VALUES (
	$1,$2,$3,$4,$5,
	$6,$7,$8,
	$9,$10,$11
)
ON CONFLICT (time, kit_id) DO UPDATE SET
	cpu_percent = EXCLUDED.cpu_percent,
	memory_percent = EXCLUDED.memory_percent,
	disk_percent = EXCLUDED.disk_percent`
)

// Writer persists ingest records through a shared bounded pool. Each
// record is written independently: one bad row is logged and skipped,
// never aborting the rest of its batch.
type Writer struct {
	db     DB
	logger logger.Logger
}

// NewWriter creates a Writer on top of an established pool.
func NewWriter(db DB, log logger.Logger) *Writer {
	return &Writer{db: db, logger: log}
}

// WriteDrones upserts position reports keyed by (time, kit_id, drone_id)
// and returns the number of rows persisted. On key collision the mutable
// position fields take the latest values; identity and time never change.
func (w *Writer) WriteDrones(ctx context.Context, kitID string, reports []models.DroneReport) int {
	written := 0

	for i := range reports {
		r := &reports[i]

		_, err := w.db.Exec(ctx, upsertDroneSQL,
			r.Time, kitID, r.DroneID, r.Lat, r.Lon, r.Alt, r.Speed, r.Heading,
			r.PilotLat, r.PilotLon, r.HomeLat, r.HomeLon,
			nullStr(r.MAC), r.RSSI, r.Freq, nullStr(r.UAType), nullStr(r.OperatorID), nullStr(r.CAAID),
			nullStr(r.RIDMake), nullStr(r.RIDModel), nullStr(r.RIDSource), r.TrackType)
		if err != nil {
			w.logger.Error().Err(err).
				Str("kit_id", kitID).
				Str("drone_id", r.DroneID).
				Msg("Failed to insert drone record")
			metrics.RecordsSkippedTotal.WithLabelValues("drone").Inc()

			continue
		}

		written++
	}

	if written > 0 {
		metrics.RecordsWrittenTotal.WithLabelValues("drone").Add(float64(written))
	}

	return written
}

// WriteSignals upserts RF detections keyed by (time, kit_id, freq_mhz)
// and returns the number of rows persisted.
func (w *Writer) WriteSignals(ctx context.Context, kitID string, detections []models.SignalDetection) int {
	written := 0

	for i := range detections {
		s := &detections[i]

		_, err := w.db.Exec(ctx, upsertSignalSQL,
			s.Time, kitID, s.FreqMHz, s.PowerDBM, s.BandwidthMHz,
			s.Lat, s.Lon, s.Alt, s.DetectionType)
		if err != nil {
			w.logger.Error().Err(err).
				Str("kit_id", kitID).
				Msg("Failed to insert signal record")
			metrics.RecordsSkippedTotal.WithLabelValues("signal").Inc()

			continue
		}

		written++
	}

	if written > 0 {
		metrics.RecordsWrittenTotal.WithLabelValues("signal").Add(float64(written))
	}

	return written
}

// WriteKitStatus upserts a kit's self-reported health snapshot. At most
// one row exists per kit per timestamp.
func (w *Writer) WriteKitStatus(ctx context.Context, kitID string, status models.KitStatus) error {
	_, err := w.db.Exec(ctx, upsertKitStatusSQL,
		status.Time, kitID, status.Lat, status.Lon, status.Alt,
		status.CPUPercent, status.MemoryPercent, status.DiskPercent,
		status.UptimeHours, status.TempCPU, status.TempGPU)
	if err != nil {
		return err
	}

	metrics.RecordsWrittenTotal.WithLabelValues("status").Inc()

	return nil
}

// nullStr maps empty strings to NULL so the coalescing upserts can tell
// "absent" from "empty".
func nullStr(s string) any {
	if s == "" {
		return nil
	}

	return s
}
