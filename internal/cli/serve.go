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

package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Shadytel/pyossi/internal/broker"
	"github.com/Shadytel/pyossi/internal/gateway"
	"github.com/Shadytel/pyossi/internal/telemetry"
)

func serveCmd(ctx context.Context, opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "serve",
		Short:        "Connect to the switch and serve the HTTP gateway.",
		Example:      "ossid serve --config /etc/ossid/ossid.yaml",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cmd, opts)
		},
	}

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *globalOptions) error {
	cfg, err := loadConfig(opts, configExplicit(cmd))
	if err != nil {
		return err
	}

	cleanup, err := setupLogger(logLevel(opts, cfg), opts.logFile, opts.logColor, os.Stdout)
	if err != nil {
		return err
	}

	//nolint:errcheck // nothing to do about it at exit
	defer cleanup()

	registry, err := cfg.Registry()
	if err != nil {
		return err
	}

	dial, err := dialerFactory(cfg)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	// abort stops whatever was already started in g before returning err.
	abort := func(err error) error {
		g.Go(func() error { return err })
		//nolint:errcheck // err is returned
		g.Wait()

		return err
	}

	brokerOpts := brokerOptions(cfg)

	if cfg.Metrics.Enabled {
		meterProvider, handler, err := telemetry.SetupMetrics()
		if err != nil {
			return fmt.Errorf("setting up metrics: %w", err)
		}

		//nolint:errcheck // nothing to do about it at exit
		defer meterProvider.Shutdown(context.WithoutCancel(ctx))

		brokerOpts = append(brokerOpts, broker.WithMetrics(meterProvider.Meter("ossid/broker")))

		mux := http.NewServeMux()
		mux.Handle("/metrics", handler)

		listener, err := gateway.Listen(gateway.ListenConfig{Address: cfg.Metrics.Listen})
		if err != nil {
			return fmt.Errorf("listening for metrics: %w", err)
		}

		g.Go(func() error { return gateway.Serve(ctx, listener, mux) })
	}

	if cfg.Tracing.Enabled {
		tracerProvider, err := telemetry.SetupTracer(ctx, cfg.Tracing.OTLPHTTPEndpoint)
		if err != nil {
			return fmt.Errorf("setting up tracing: %w", err)
		}

		//nolint:errcheck // nothing to do about it at exit
		defer tracerProvider.Shutdown(context.WithoutCancel(ctx))

		brokerOpts = append(brokerOpts, broker.WithTracer(tracerProvider.Tracer("ossid/broker")))
	}

	b := broker.New(registry, dial, brokerOpts...)

	if err := b.Start(ctx); err != nil {
		return abort(err)
	}

	//nolint:errcheck // the session is going away anyway
	defer b.Close()

	listener, err := gateway.Listen(gateway.ListenConfig{
		Address:        cfg.Gateway.Listen,
		Socket:         cfg.Gateway.Socket,
		MaxConnections: cfg.Gateway.MaxConnections,
	})
	if err != nil {
		return abort(err)
	}

	router := gateway.NewRouter(b,
		gateway.WithCommandTimeout(cfg.Gateway.CommandTimeout),
		gateway.WithLogger(log.Logger),
	)

	g.Go(func() error { return gateway.Serve(ctx, listener, router) })

	// The process exits when the session is lost, so that the supervisor
	// restarts it with a fresh one.
	g.Go(func() error {
		select {
		case <-ctx.Done():
			return nil
		case <-b.Done():
			return fmt.Errorf("OSSI session closed: %w", b.Err())
		}
	})

	log.Info().Msg("Service ossid started")

	return g.Wait()
}

func configExplicit(cmd *cobra.Command) bool {
	if f := cmd.Flag("config"); f != nil && f.Changed {
		return true
	}

	_, ok := os.LookupEnv("OSSID_CONFIG")

	return ok
}
