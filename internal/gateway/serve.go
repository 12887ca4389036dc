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

package gateway

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/netutil"
)

const shutdownTimeout = 5 * time.Second

// ListenConfig selects where the gateway listens. Socket takes precedence
// over Address.
type ListenConfig struct {
	Address        string
	Socket         string
	MaxConnections int
}

// Listen opens the gateway listener. A unix socket left over by a previous
// run is replaced.
func Listen(cfg ListenConfig) (net.Listener, error) {
	var (
		listener net.Listener
		err      error
	)

	if cfg.Socket != "" {
		if err := syscall.Unlink(cfg.Socket); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}

		listener, err = net.Listen("unix", cfg.Socket)
		if err != nil {
			return nil, err
		}

		//nolint:gosec // group members are allowed to use the gateway
		if err := os.Chmod(cfg.Socket, 0660); err != nil {
			//nolint:errcheck // we already return a more important error
			listener.Close()
			return nil, err
		}
	} else {
		listener, err = net.Listen("tcp", cfg.Address)
		if err != nil {
			return nil, err
		}
	}

	if cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxConnections)
	}

	return listener, nil
}

// Serve serves handler on listener until ctx is done, then shuts the server
// down gracefully.
func Serve(ctx context.Context, listener net.Listener, handler http.Handler) error {
	server := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info().Str("address", listener.Addr().String()).Msg("Serving gateway")
		errCh <- server.Serve(listener)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
