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

// Database describes the TimescaleDB/Postgres cluster backing ingestion.
type Database struct {
	Host             string   `json:"host"`
	Port             int      `json:"port"`
	Database         string   `json:"database"`
	Username         string   `json:"username"`
	Password         string   `json:"password" sensitive:"true"`
	SSLMode          string   `json:"sslmode,omitempty"`
	ApplicationName  string   `json:"application_name,omitempty"`
	MaxConnections   int32    `json:"max_connections,omitempty"`
	MinConnections   int32    `json:"min_connections,omitempty"`
	MaxConnLifetime  Duration `json:"max_conn_lifetime,omitempty"`
	HealthCheckEvery Duration `json:"health_check_period,omitempty"`
}
