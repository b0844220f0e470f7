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

package ingest

import (
	"context"
	"time"

	"github.com/skyspan/skyspan/pkg/health"
	"github.com/skyspan/skyspan/pkg/models"
)

const (
	upsertKitMetadataSQL = `
INSERT INTO kits (kit_id, name, endpoint, location, status, enabled, last_seen)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (kit_id) DO UPDATE SET
	name = COALESCE(NULLIF(EXCLUDED.name, ''), kits.name),
	endpoint = COALESCE(NULLIF(EXCLUDED.endpoint, ''), kits.endpoint),
	location = COALESCE(NULLIF(EXCLUDED.location, ''), kits.location),
	status = EXCLUDED.status,
	last_seen = EXCLUDED.last_seen`

	registerKitSQL = `
INSERT INTO kits (kit_id, name, endpoint, location, status, enabled, last_seen)
VALUES ($1,$2,$3,$4,'unknown',$5,NULL)
ON CONFLICT (kit_id) DO NOTHING`

	listKitsSQL = `
SELECT kit_id, COALESCE(name, ''), COALESCE(endpoint, ''), COALESCE(location, ''), enabled
FROM kits
ORDER BY kit_id`
)

// UpsertKitMetadata records a kit's latest status and last-seen time,
// keyed by its effective identity. Previously known name/endpoint/location
// survive when the incoming values are empty, so a reconciliation pass
// without full metadata cannot blank them out. The enabled flag is owned
// by the registry and left untouched on conflict.
func (w *Writer) UpsertKitMetadata(ctx context.Context, kit *models.Kit, status health.Status, lastSeen time.Time) error {
	var seen any
	if !lastSeen.IsZero() {
		seen = lastSeen
	}

	_, err := w.db.Exec(ctx, upsertKitMetadataSQL,
		kit.EffectiveID(), kit.Name, kit.Endpoint, kit.Location, string(status), kit.Enabled, seen)

	return err
}

// RegisterKit persists a newly discovered kit definition. Existing rows
// win: the store is the long-run source of truth for the enabled flag.
func (w *Writer) RegisterKit(ctx context.Context, kit *models.Kit) error {
	_, err := w.db.Exec(ctx, registerKitSQL,
		kit.ConfiguredID, kit.Name, kit.Endpoint, kit.Location, kit.Enabled)

	return err
}

// ListKits returns every kit definition known to the store.
func (w *Writer) ListKits(ctx context.Context) ([]models.Kit, error) {
	rows, err := w.db.Query(ctx, listKitsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kits []models.Kit

	for rows.Next() {
		var k models.Kit

		if err := rows.Scan(&k.ConfiguredID, &k.Name, &k.Endpoint, &k.Location, &k.Enabled); err != nil {
			return nil, err
		}

		kits = append(kits, k)
	}

	return kits, rows.Err()
}
