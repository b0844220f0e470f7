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

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/skyspan/skyspan/pkg/health"
	"github.com/skyspan/skyspan/pkg/models"
)

// DB is the slice of pgxpool.Pool the writer needs. Kept narrow so tests
// can substitute a fake.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// RecordWriter persists normalized telemetry for one kit. Implemented by
// Writer; pollers depend on this interface.
type RecordWriter interface {
	WriteDrones(ctx context.Context, kitID string, reports []models.DroneReport) int
	WriteSignals(ctx context.Context, kitID string, detections []models.SignalDetection) int
	WriteKitStatus(ctx context.Context, kitID string, status models.KitStatus) error
	UpsertKitMetadata(ctx context.Context, kit *models.Kit, status health.Status, lastSeen time.Time) error
}

// KitStore is the registry's view of persisted kit definitions.
type KitStore interface {
	ListKits(ctx context.Context) ([]models.Kit, error)
	RegisterKit(ctx context.Context, kit *models.Kit) error
}
