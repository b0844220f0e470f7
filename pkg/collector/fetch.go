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
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyspan/skyspan/pkg/metrics"
)

// fetcher performs bounded-timeout GETs against one kit's API. Timeouts
// are retried inline with linear backoff; every other failure surfaces
// immediately and the cycle-level exponential backoff takes over.
type fetcher struct {
	client     *http.Client
	baseURL    string
	timeout    time.Duration
	maxRetries int
	retryDelay time.Duration
	logger     zerolog.Logger
}

// get fetches {baseURL}{path} and returns the raw body. Only timeouts
// are retried; everything else surfaces after the first attempt.
func (f *fetcher) get(ctx context.Context, path string) ([]byte, error) {
	url := f.baseURL + path

	for attempt := 0; ; attempt++ {
		body, err := f.getOnce(ctx, url)
		if err == nil {
			return body, nil
		}

		if !isTimeout(err) || attempt >= f.maxRetries {
			return nil, err
		}

		metrics.FetchRetriesTotal.WithLabelValues(path).Inc()
		f.logger.Debug().
			Str("url", url).
			Int("attempt", attempt+1).
			Int("max_retries", f.maxRetries).
			Msg("Timeout, retrying fetch")

		// Linear backoff between inline retries.
		if !sleepContext(ctx, time.Duration(attempt+1)*f.retryDelay) {
			return nil, ctx.Err()
		}
	}
}

func (f *fetcher) getOnce(ctx context.Context, url string) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Debug().Err(closeErr).Msg("Failed to close response body")
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %d fetching %s", errUnexpectedStatusCode, resp.StatusCode, url)
	}

	return io.ReadAll(resp.Body)
}

// isTimeout reports whether err is a transient timeout worth an inline
// retry. Context cancellation from shutdown is not.
func isTimeout(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

// sleepContext waits for d or until ctx is cancelled, returning false on
// cancellation.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
