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
	"net"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/Shadytel/pyossi/internal/broker"
)

var (
	ErrNoAuthMethod   = errors.New("no SSH authentication method configured")
	ErrNoHostKeyCheck = errors.New("no SSH known_hosts file configured")
)

// SSHConfig describes how to reach the switch administration console over
// SSH.
type SSHConfig struct {
	// Address is host:port of the console server.
	Address string
	User    string
	// Password and KeyFile are tried in this order, at least one is required.
	Password string
	KeyFile  string
	// KnownHostsFile is used to verify the server host key.
	KnownHostsFile string
	// InsecureIgnoreHostKey disables host key verification.
	InsecureIgnoreHostKey bool
	Timeout               time.Duration
}

func (c SSHConfig) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if c.Password != "" {
		auth = append(auth, ssh.Password(c.Password))
	}

	if c.KeyFile != "" {
		key, err := os.ReadFile(c.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("reading SSH key: %w", err)
		}

		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing SSH key: %w", err)
		}

		auth = append(auth, ssh.PublicKeys(signer))
	}

	if len(auth) == 0 {
		return nil, ErrNoAuthMethod
	}

	var hostKeyCallback ssh.HostKeyCallback

	switch {
	case c.InsecureIgnoreHostKey:
		//nolint:gosec // explicitly requested by configuration
		hostKeyCallback = ssh.InsecureIgnoreHostKey()
	case c.KnownHostsFile != "":
		cb, err := knownhosts.New(c.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("loading known hosts: %w", err)
		}

		hostKeyCallback = cb
	default:
		return nil, ErrNoHostKeyCheck
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.Timeout,
	}, nil
}

// NewSSHDialer returns a Dialer that opens an interactive shell on the
// console server. The session requests a terminal with local echo disabled,
// so that only the switch output is read back.
func NewSSHDialer(cfg SSHConfig) (broker.Dialer, error) {
	clientConfig, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		d := net.Dialer{Timeout: cfg.Timeout}

		conn, err := d.DialContext(ctx, "tcp", cfg.Address)
		if err != nil {
			return nil, err
		}

		c, chans, reqs, err := ssh.NewClientConn(conn, cfg.Address, clientConfig)
		if err != nil {
			//nolint:errcheck // handshake already failed
			conn.Close()
			return nil, err
		}

		client := ssh.NewClient(c, chans, reqs)

		stream, err := openShell(client)
		if err != nil {
			//nolint:errcheck // session setup already failed
			client.Close()
			return nil, err
		}

		log.Debug().Str("address", cfg.Address).Str("user", cfg.User).Msg("Opened SSH session")

		return stream, nil
	}, nil
}

func openShell(client *ssh.Client) (*sshStream, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("opening SSH session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 9600,
		ssh.TTY_OP_OSPEED: 9600,
	}

	if err := session.RequestPty("vt100", 24, 512, modes); err != nil {
		return nil, fmt.Errorf("requesting pty: %w", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		return nil, err
	}

	stdout, err := session.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := session.Shell(); err != nil {
		return nil, fmt.Errorf("starting shell: %w", err)
	}

	return &sshStream{client: client, session: session, stdin: stdin, stdout: stdout}, nil
}

type sshStream struct {
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	stdout  io.Reader
}

func (s *sshStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *sshStream) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

func (s *sshStream) Close() error {
	err := s.session.Close()
	if errors.Is(err, io.EOF) {
		err = nil
	}

	return errors.Join(err, s.client.Close())
}
