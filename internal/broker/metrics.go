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

package broker

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type stats struct {
	submitted       atomic.Int64
	completed       atomic.Int64
	protocolErrors  atomic.Int64
	transportErrors atomic.Int64
	abandoned       atomic.Int64
	skipped         atomic.Int64
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}

// WithMetrics registers the Broker instruments with meter.
func WithMetrics(meter metric.Meter) Option {
	return func(b *Broker) {
		submitted := attribute.String("type", "submitted")
		completed := attribute.String("type", "completed")
		protocolErrors := attribute.String("type", "protocol_error")
		transportErrors := attribute.String("type", "transport_error")
		abandoned := attribute.String("type", "abandoned")
		skipped := attribute.String("type", "skipped")

		must(meter.Int64ObservableCounter("ossi.broker.commands",
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(b.stats.submitted.Load(), metric.WithAttributes(submitted))
				o.Observe(b.stats.completed.Load(), metric.WithAttributes(completed))
				o.Observe(b.stats.protocolErrors.Load(), metric.WithAttributes(protocolErrors))
				o.Observe(b.stats.transportErrors.Load(), metric.WithAttributes(transportErrors))
				o.Observe(b.stats.abandoned.Load(), metric.WithAttributes(abandoned))
				o.Observe(b.stats.skipped.Load(), metric.WithAttributes(skipped))

				return nil
			})))

		must(meter.Int64ObservableGauge("ossi.broker.queue.depth",
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(b.QueueLen()))

				return nil
			})))

		must(meter.Int64ObservableGauge("ossi.broker.state",
			metric.WithDescription("0 unstarted, 1 connecting, 2 ready, 3 executing, 4 closed"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(int64(b.State()))

				return nil
			})))
	}
}
