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
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// WithLogger sets the logger used by the Broker.
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Broker) {
		b.log = logger
	}
}

// WithTracer records one span per executed transaction.
func WithTracer(tracer trace.Tracer) Option {
	return func(b *Broker) {
		if tracer == nil {
			return
		}

		b.tracer = tracer
	}
}

// WithGreetingLines sets how many lines the remote side sends on login
// before the session accepts commands.
func WithGreetingLines(n int) Option {
	return func(b *Broker) {
		if n < 0 {
			return
		}

		b.greetingLines = n
	}
}

// WithMaxLineSize limits the length of a single response line.
func WithMaxLineSize(size int) Option {
	return func(b *Broker) {
		b.maxLineSize = size
	}
}

// WithQueueDepth bounds the number of queued commands, 0 means unbounded.
func WithQueueDepth(depth int) Option {
	return func(b *Broker) {
		if depth < 0 {
			return
		}

		b.queueDepth = depth
	}
}
