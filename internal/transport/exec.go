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
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/Shadytel/pyossi/internal/broker"
)

// sessionProc is the subset of *exec.Cmd used by the exec dialer.
type sessionProc interface {
	StdinPipe() (io.WriteCloser, error)
	StdoutPipe() (io.ReadCloser, error)
	Start() error
	Wait() error
	Pid() int
}

type sessionProcFactory func(ctx context.Context, name string, arg ...string) sessionProc

// procFactory returns the process that carries the session. It is replaced
// in unit tests.
var procFactory sessionProcFactory = func(ctx context.Context, name string, arg ...string) sessionProc {
	cmd := exec.CommandContext(ctx, name, arg...)
	// Own process group, so that anything the command spawns is stopped too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	return &execProc{Cmd: cmd}
}

type execProc struct {
	*exec.Cmd
}

func (p *execProc) Pid() int {
	if p.Process == nil {
		return 0
	}

	return p.Process.Pid
}

// NewExecDialer returns a Dialer that runs name with arg and talks OSSI over
// its stdin and stdout, e.g. "ssh -tt switch-console".
//
// The process outlives the context passed to the Dialer and is stopped when
// the returned stream is closed.
func NewExecDialer(name string, arg ...string) broker.Dialer {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// The dial context only bounds connecting, not the session.
		proc := procFactory(context.WithoutCancel(ctx), name, arg...)

		stdin, err := proc.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("opening stdin of %s: %w", name, err)
		}

		stdout, err := proc.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("opening stdout of %s: %w", name, err)
		}

		if err := proc.Start(); err != nil {
			return nil, fmt.Errorf("starting %s: %w", name, err)
		}

		log.Debug().Str("command", name).Strs("args", arg).Int("pid", proc.Pid()).
			Msg("Started session process")

		return &procStream{proc: proc, stdin: stdin, stdout: stdout}, nil
	}
}

type procStream struct {
	proc   sessionProc
	stdin  io.WriteCloser
	stdout io.ReadCloser

	once sync.Once
	err  error
}

func (s *procStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *procStream) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

// Close closes stdin, terminates the process group and reaps the process.
func (s *procStream) Close() error {
	s.once.Do(func() {
		err := s.stdin.Close()

		if pid := s.proc.Pid(); pid > 0 {
			if killErr := unix.Kill(-pid, unix.SIGTERM); killErr != nil && !errors.Is(killErr, unix.ESRCH) {
				err = errors.Join(err, killErr)
			}
		}

		var exitErr *exec.ExitError
		if waitErr := s.proc.Wait(); waitErr != nil && !errors.As(waitErr, &exitErr) {
			err = errors.Join(err, waitErr)
		}

		s.err = err
	})

	return s.err
}
