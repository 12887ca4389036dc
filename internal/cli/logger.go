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
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// setupLogger sets the global logger. Logs go to the file dst when it is
// set, to out otherwise. If lvl is unknown, INFO is used.
func setupLogger(lvl, dst string, color bool, out io.Writer) (func() error, error) {
	cleanup := func() error { return nil }

	if dst != "" {
		f, err := os.OpenFile(dst, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644) //nolint:gosec // this for a log
		if err != nil {
			return nil, err
		}

		out = f
		cleanup = f.Close
	}

	writer := zerolog.ConsoleWriter{Out: out, NoColor: !color}
	writer.PartsOrder = []string{
		zerolog.LevelFieldName,
		zerolog.CallerFieldName,
		zerolog.MessageFieldName,
	}
	log.Logger = zerolog.New(writer).With().Logger()

	ll, err := zerolog.ParseLevel(lvl)
	if err != nil || ll == zerolog.NoLevel {
		ll = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(ll)

	log.Debug().Msgf("Logger is configured with log level %q", ll.String())

	return cleanup, nil
}
