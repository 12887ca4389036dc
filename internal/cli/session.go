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
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/Shadytel/pyossi/internal/broker"
	"github.com/Shadytel/pyossi/internal/config"
	"github.com/Shadytel/pyossi/internal/transport"
)

// dialerFactory returns the Dialer for the configured transport. It is
// replaced in unit tests.
var dialerFactory = newDialer

func newDialer(cfg *config.Config) (broker.Dialer, error) {
	var dial broker.Dialer

	switch cfg.Transport.Type {
	case config.TransportExec:
		dial = transport.NewExecDialer(cfg.Transport.Exec.Command, cfg.Transport.Exec.Args...)
	case config.TransportSSH:
		ssh := cfg.Transport.SSH

		var err error

		dial, err = transport.NewSSHDialer(transport.SSHConfig{
			Address:               ssh.Address,
			User:                  ssh.User,
			Password:              ssh.Password,
			KeyFile:               ssh.KeyFile,
			KnownHostsFile:        ssh.KnownHostsFile,
			InsecureIgnoreHostKey: ssh.InsecureIgnoreHostKey,
			Timeout:               cfg.Transport.DialTimeout,
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", config.ErrInvalidTransport, cfg.Transport.Type)
	}

	return transport.WithRetry(dial, cfg.Transport.RetryMaxElapsed), nil
}

// loadConfig reads the configuration. A missing file at the default location
// is not an error, the defaults are used instead.
func loadConfig(opts *globalOptions, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(appFs, opts.configPath)
	if err == nil {
		return cfg, nil
	}

	if !explicit && errors.Is(err, os.ErrNotExist) {
		if exists, _ := afero.Exists(appFs, opts.configPath); !exists {
			return config.Default(), nil
		}
	}

	return nil, err
}

func logLevel(opts *globalOptions, cfg *config.Config) string {
	if opts.logLevel != "" {
		return opts.logLevel
	}

	return string(cfg.LogLevel)
}

// brokerOptions are the Broker options derived from the configuration.
func brokerOptions(cfg *config.Config) []broker.Option {
	return []broker.Option{
		broker.WithGreetingLines(cfg.Transport.GreetingLines),
		broker.WithMaxLineSize(int(cfg.Transport.MaxLineSize.Bytes)),
		broker.WithQueueDepth(cfg.Broker.QueueDepth),
	}
}
