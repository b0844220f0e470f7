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
	"encoding/json"
	"strconv"
	"time"

	"github.com/skyspan/skyspan/pkg/models"
)

// Kits answer either with a bare JSON array or with the array wrapped in
// an envelope object; both shapes are in the field.

func decodeDroneReports(data []byte, now time.Time) ([]models.DroneReport, error) {
	elements, err := decodeListPayload(data, "drones")
	if err != nil {
		return nil, err
	}

	reports := make([]models.DroneReport, 0, len(elements))

	for _, el := range elements {
		r := models.DroneReport{
			Time:       parseTimestamp(el["timestamp"], now),
			DroneID:    droneEntityID(el),
			Lat:        asFloat(el["lat"]),
			Lon:        asFloat(el["lon"]),
			Alt:        firstFloat(el, "alt", "altitude"),
			Speed:      asFloat(el["speed"]),
			Heading:    asFloat(el["heading"]),
			PilotLat:   asFloat(el["pilot_lat"]),
			PilotLon:   asFloat(el["pilot_lon"]),
			HomeLat:    asFloat(el["home_lat"]),
			HomeLon:    asFloat(el["home_lon"]),
			MAC:        asString(el["mac"]),
			RSSI:       asInt(el["rssi"]),
			Freq:       asFloat(el["freq"]),
			UAType:     asString(el["ua_type"]),
			OperatorID: asString(el["operator_id"]),
			CAAID:      asString(el["caa_id"]),
			RIDMake:    firstString(el, "rid_make", "make"),
			RIDModel:   firstString(el, "rid_model", "model"),
			RIDSource:  firstString(el, "rid_source", "source"),
			TrackType:  trackType(el),
		}

		reports = append(reports, r)
	}

	return reports, nil
}

func decodeSignalDetections(data []byte, now time.Time) ([]models.SignalDetection, error) {
	elements, err := decodeListPayload(data, "signals")
	if err != nil {
		return nil, err
	}

	detections := make([]models.SignalDetection, 0, len(elements))

	for _, el := range elements {
		detectionType := asString(el["type"])
		if detectionType == "" {
			detectionType = "analog"
		}

		detections = append(detections, models.SignalDetection{
			Time:          parseTimestamp(el["timestamp"], now),
			FreqMHz:       firstFloat(el, "freq_mhz", "freq"),
			PowerDBM:      firstFloat(el, "power_dbm", "power"),
			BandwidthMHz:  firstFloat(el, "bandwidth_mhz", "bandwidth"),
			Lat:           asFloat(el["lat"]),
			Lon:           asFloat(el["lon"]),
			Alt:           asFloat(el["alt"]),
			DetectionType: detectionType,
		})
	}

	return detections, nil
}

// decodeKitStatus accepts the current nested status shape (gps{}, cpu{},
// temps{}) as well as the older flat one (cpu_percent, temp_cpu).
func decodeKitStatus(data []byte, now time.Time) (models.KitStatus, error) {
	var el map[string]any
	if err := json.Unmarshal(data, &el); err != nil {
		return models.KitStatus{}, err
	}

	st := models.KitStatus{
		Time:        parseTimestamp(el["timestamp"], now),
		ReportedID:  firstString(el, "kit_id", "serial"),
		UptimeHours: asFloat(el["uptime_hours"]),
	}

	if gps, ok := el["gps"].(map[string]any); ok {
		st.Lat = asFloat(gps["lat"])
		st.Lon = asFloat(gps["lon"])
		st.Alt = asFloat(gps["alt"])
	} else {
		st.Lat = asFloat(el["lat"])
		st.Lon = asFloat(el["lon"])
		st.Alt = asFloat(el["alt"])
	}

	st.CPUPercent = nestedPercent(el, "cpu", "cpu_percent")
	st.MemoryPercent = nestedPercent(el, "memory", "memory_percent")
	st.DiskPercent = nestedPercent(el, "disk", "disk_percent")

	if temps, ok := el["temps"].(map[string]any); ok {
		st.TempCPU = asFloat(temps["cpu"])
		st.TempGPU = asFloat(temps["gpu"])
	} else {
		st.TempCPU = asFloat(el["temp_cpu"])
		st.TempGPU = asFloat(el["temp_gpu"])
	}

	return st, nil
}

func decodeListPayload(data []byte, envelope string) ([]map[string]any, error) {
	var bare []map[string]any
	if err := json.Unmarshal(data, &bare); err == nil {
		return bare, nil
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}

	raw, ok := wrapped[envelope]
	if !ok {
		return nil, nil
	}

	var elements []map[string]any
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, err
	}

	return elements, nil
}

// droneEntityID resolves a position report's entity id. Precedence:
// drone_id, id, icao, mac, then "unknown". Keep the order.
func droneEntityID(el map[string]any) string {
	for _, key := range []string{"drone_id", "id", "icao", "mac"} {
		if v := asString(el[key]); v != "" {
			return v
		}
	}

	return "unknown"
}

// trackType labels the report; anything carrying an ICAO address is an
// aircraft regardless of what the kit called it.
func trackType(el map[string]any) string {
	if asString(el["icao"]) != "" {
		return "aircraft"
	}

	if v := asString(el["track_type"]); v != "" {
		return v
	}

	return "drone"
}

func parseTimestamp(v any, fallback time.Time) time.Time {
	switch ts := v.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t.UTC()
		}
	case float64:
		if ts > 0 {
			sec := int64(ts)
			nsec := int64((ts - float64(sec)) * float64(time.Second))

			return time.Unix(sec, nsec).UTC()
		}
	}

	return fallback
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func firstString(el map[string]any, keys ...string) string {
	for _, key := range keys {
		if v := asString(el[key]); v != "" {
			return v
		}
	}

	return ""
}

func asFloat(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case string:
		if n == "" {
			return nil
		}

		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return &f
		}
	}

	return nil
}

func firstFloat(el map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		if f := asFloat(el[key]); f != nil {
			return f
		}
	}

	return nil
}

func asInt(v any) *int {
	if f := asFloat(v); f != nil {
		i := int(*f)
		return &i
	}

	return nil
}

func nestedPercent(el map[string]any, nested, flat string) *float64 {
	if m, ok := el[nested].(map[string]any); ok {
		return asFloat(m["percent"])
	}

	return asFloat(el[flat])
}
