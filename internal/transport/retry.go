// Copyright (c) 2025 Canonical Ltd
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package transport

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"

	"github.com/Shadytel/pyossi/internal/broker"
)

// WithRetry wraps dial so that failed attempts are retried with exponential
// backoff for up to maxElapsed. A zero maxElapsed returns dial unchanged.
func WithRetry(dial broker.Dialer, maxElapsed time.Duration) broker.Dialer {
	if maxElapsed <= 0 {
		return dial
	}

	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		b := backoff.NewExponentialBackOff()
		b.MaxElapsedTime = maxElapsed

		attempt := 0

		return backoff.RetryWithData(func() (io.ReadWriteCloser, error) {
			attempt++

			conn, err := dial(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil, backoff.Permanent(err)
				}

				log.Warn().Err(err).Int("attempt", attempt).Msg("Connecting to OSSI session failed")

				return nil, err
			}

			return conn, nil
		}, backoff.WithContext(b, ctx))
	}
}
