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

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skyspan/skyspan/pkg/collector"
	"github.com/skyspan/skyspan/pkg/config"
	"github.com/skyspan/skyspan/pkg/db"
	"github.com/skyspan/skyspan/pkg/ingest"
	"github.com/skyspan/skyspan/pkg/lifecycle"
	"github.com/skyspan/skyspan/pkg/logger"
	"github.com/skyspan/skyspan/pkg/registry"
)

func main() {
	configPath := flag.String("config", "/etc/skyspan/collector.json", "Path to collector config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to run collector: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx := context.Background()

	var cfg collector.Config

	cfgLoader := config.NewConfig(nil)
	if err := cfgLoader.LoadAndValidate(ctx, configPath, &cfg); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := cfg.Logging
	if logCfg == nil {
		logCfg = logger.DefaultConfig()
	}

	log, err := lifecycle.CreateComponentLogger("collector", logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	writer := ingest.NewWriter(pool, log)
	reg := registry.New(cfg.KitsFile, writer, log)

	if cfg.ListenAddr != "" {
		go serveMetrics(cfg.ListenAddr, log)
	}

	return lifecycle.Run(ctx, collector.New(&cfg, reg, writer, log), log)
}

func serveMetrics(addr string, log logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("Serving metrics")

	if err := srv.ListenAndServe(); err != nil {
		log.Error().Err(err).Msg("Metrics server exited")
	}
}
