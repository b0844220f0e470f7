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

// Package lifecycle wires services to process signals and owns the single
// shutdown context every background task observes.
package lifecycle

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skyspan/skyspan/pkg/logger"
)

const defaultShutdownTimeout = 30 * time.Second

// Service is a long-running component driven by Run. Start blocks until
// the passed context is cancelled; Stop releases resources afterwards.
type Service interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Run starts the service and blocks until SIGINT/SIGTERM or until the
// service stops on its own. The context handed to Start is cancelled
// exactly once and stays cancelled; it is the broadcast shutdown signal
// for every goroutine the service spawns.
func Run(ctx context.Context, svc Service, log logger.Logger) error {
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		errCh <- svc.Start(sigCtx)
	}()

	select {
	case <-sigCtx.Done():
		log.Info().Msg("Shutdown signal received")

		// Start returns once its goroutines have drained; collect its
		// error so the goroutine above does not leak.
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Service exited with error during shutdown")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	return svc.Stop(stopCtx)
}
