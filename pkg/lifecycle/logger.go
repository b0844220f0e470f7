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

package lifecycle

import (
	"github.com/rs/zerolog"

	"github.com/skyspan/skyspan/pkg/logger"
)

// CreateLogger creates a new logger instance with the provided configuration.
// This returns a logger that can be injected into services.
func CreateLogger(config *logger.Config) (logger.Logger, error) {
	return logger.New(config)
}

// CreateComponentLogger creates a logger tagged with a component field.
func CreateComponentLogger(component string, config *logger.Config) (logger.Logger, error) {
	base, err := logger.New(config)
	if err != nil {
		return nil, err
	}

	return &componentLogger{inner: base, component: component}, nil
}

type componentLogger struct {
	inner     logger.Logger
	component string
}

func (c *componentLogger) Trace() *zerolog.Event { return c.event(c.inner.Trace()) }
func (c *componentLogger) Debug() *zerolog.Event { return c.event(c.inner.Debug()) }
func (c *componentLogger) Info() *zerolog.Event  { return c.event(c.inner.Info()) }
func (c *componentLogger) Warn() *zerolog.Event  { return c.event(c.inner.Warn()) }
func (c *componentLogger) Error() *zerolog.Event { return c.event(c.inner.Error()) }
func (c *componentLogger) Fatal() *zerolog.Event { return c.event(c.inner.Fatal()) }
func (c *componentLogger) Panic() *zerolog.Event { return c.event(c.inner.Panic()) }

func (c *componentLogger) event(e *zerolog.Event) *zerolog.Event {
	return e.Str("component", c.component)
}

func (c *componentLogger) With() zerolog.Context {
	return c.inner.With().Str("component", c.component)
}

func (c *componentLogger) WithComponent(component string) zerolog.Logger {
	return c.inner.WithComponent(component)
}

func (c *componentLogger) SetLevel(level zerolog.Level) {
	c.inner.SetLevel(level)
}

func (c *componentLogger) SetDebug(debug bool) {
	c.inner.SetDebug(debug)
}
