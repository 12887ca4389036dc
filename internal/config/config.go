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

// Package config loads the ossid configuration file.
package config

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/Shadytel/pyossi/internal/atomicfile"
	"github.com/Shadytel/pyossi/internal/ossi"
)

const (
	// DefaultPath is where the configuration is read from unless overridden.
	DefaultPath = "/etc/ossid/ossid.yaml"

	configTemplateName = "ossid.yaml.tmpl"
)

var (
	ErrInvalidTransport = errors.New("invalid transport")
	ErrInvalidGateway   = errors.New("invalid gateway")
	ErrInvalidNoun      = errors.New("invalid noun")
)

//go:embed ossid.yaml.tmpl
var configFS embed.FS

var configTmpl = template.Must(
	template.New(configTemplateName).
		Funcs(template.FuncMap{
			"join": filepath.Join,
		}).
		ParseFS(configFS, configTemplateName),
)

type TransportType string

const (
	TransportExec TransportType = "exec"
	TransportSSH  TransportType = "ssh"
)

type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// Config represents the set of configuration options of ossid.
type Config struct {
	LogLevel  LogLevel        `yaml:"log_level"`
	Transport TransportConfig `yaml:"transport"`
	Broker    BrokerConfig    `yaml:"broker"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Nouns     []NounConfig    `yaml:"nouns"`
}

// TransportConfig describes how the administration session is established.
type TransportConfig struct {
	Type            TransportType   `yaml:"type"`
	Exec            ExecConfig      `yaml:"exec"`
	SSH             SSHConfig       `yaml:"ssh"`
	DialTimeout     time.Duration   `yaml:"dial_timeout"`
	RetryMaxElapsed time.Duration   `yaml:"retry_max_elapsed"`
	GreetingLines   int             `yaml:"greeting_lines"`
	MaxLineSize     ByteSize[int64] `yaml:"max_line_size"`
}

// ExecConfig is the command whose stdin and stdout carry the session.
type ExecConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// SSHConfig holds the console server address and credentials.
type SSHConfig struct {
	Address               string `yaml:"address"`
	User                  string `yaml:"user"`
	Password              string `yaml:"password"`
	KeyFile               string `yaml:"key_file"`
	KnownHostsFile        string `yaml:"known_hosts_file"`
	InsecureIgnoreHostKey bool   `yaml:"insecure_ignore_host_key"`
}

type BrokerConfig struct {
	QueueDepth int `yaml:"queue_depth"`
}

// GatewayConfig configures the HTTP gateway. Socket takes precedence over
// Listen.
type GatewayConfig struct {
	Listen         string        `yaml:"listen"`
	Socket         string        `yaml:"socket"`
	CommandTimeout time.Duration `yaml:"command_timeout"`
	MaxConnections int           `yaml:"max_connections"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type TracingConfig struct {
	Enabled          bool   `yaml:"enabled"`
	OTLPHTTPEndpoint string `yaml:"otlp_http_endpoint"`
}

// NounConfig adds a noun, or fields of an existing noun, to the built-in
// schemas.
type NounConfig struct {
	Name   string        `yaml:"name"`
	Fields []FieldConfig `yaml:"fields"`
}

type FieldConfig struct {
	Name      string `yaml:"name"`
	Code      string `yaml:"code"`
	MaxLength int    `yaml:"max_length"`
}

type Integeric interface {
	~uint16 | ~int64 | ~uint64
}

// ByteSize represents a size in bytes.
// It provides human-readable formatting and YAML serialization.
type ByteSize[T Integeric] struct {
	Bytes T
	Raw   string
}

// String returns the byte size formatted as a human-readable string
// with no spaces (e.g., "64kB").
func (x ByteSize[T]) String() string {
	return strings.ReplaceAll(humanize.Bytes(uint64(x.Bytes)), " ", "")
}

// UnmarshalYAML implements the yaml.Unmarshaler interface.
// It parses a human-readable byte size string (e.g., "64KiB", "1MB")
// and sets the value of the receiver.
func (x *ByteSize[T]) UnmarshalYAML(value *yaml.Node) error {
	x.Raw = value.Value

	parsed, err := humanize.ParseBytes(value.Value)
	if err != nil {
		return err
	}

	switch any(x.Bytes).(type) {
	case uint16:
		if parsed > math.MaxUint16 {
			return fmt.Errorf("value %d exceeds uint16 capacity", parsed)
		}
	case int64:
		if parsed > math.MaxInt64 {
			return fmt.Errorf("value %d exceeds int64 capacity", parsed)
		}
	}

	x.Bytes = T(parsed)

	return nil
}

// Default returns the configuration used for values missing from the file.
func Default() *Config {
	return &Config{
		LogLevel: InfoLevel,
		Transport: TransportConfig{
			Type: TransportExec,
			Exec: ExecConfig{
				Command: "ssh",
				Args:    []string{"-tt", "isdn-modem-c"},
			},
			DialTimeout:     10 * time.Second,
			RetryMaxElapsed: time.Minute,
			GreetingLines:   2,
			MaxLineSize:     ByteSize[int64]{Bytes: ossi.DefaultMaxLineSize, Raw: "64KiB"},
		},
		Gateway: GatewayConfig{
			Listen:         "127.0.0.1:8080",
			CommandTimeout: 30 * time.Second,
			MaxConnections: 64,
		},
		Metrics: MetricsConfig{
			Listen: "127.0.0.1:9464",
		},
	}
}

// Load reads the configuration file, applies defaults for missing values and
// validates the result.
func Load(fs afero.Fs, file string) (*Config, error) {
	data, err := afero.ReadFile(fs, file)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return parse(data)
}

func parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// GenerateOptions are the values rendered into a new configuration file.
type GenerateOptions struct {
	LogLevel    LogLevel
	Transport   TransportType
	ExecCommand string
	ExecArgs    []string
	SSHAddress  string
	HomeDir     string
	Listen      string
}

// Generate renders a commented configuration file, writes it atomically and
// returns the parsed Config.
func Generate(fs afero.Fs, file string, opts GenerateOptions) (*Config, error) {
	def := Default()

	if opts.LogLevel == "" {
		opts.LogLevel = def.LogLevel
	}

	if opts.Transport == "" {
		opts.Transport = def.Transport.Type
	}

	if opts.ExecCommand == "" {
		opts.ExecCommand = def.Transport.Exec.Command
		opts.ExecArgs = def.Transport.Exec.Args
	}

	if opts.Listen == "" {
		opts.Listen = def.Gateway.Listen
	}

	var buf bytes.Buffer

	if err := configTmpl.Execute(&buf, opts); err != nil {
		return nil, fmt.Errorf("render config template: %w", err)
	}

	cfg, err := parse(buf.Bytes())
	if err != nil {
		return nil, err
	}

	if err := fs.MkdirAll(filepath.Dir(file), 0o750); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}

	if err := atomicfile.WriteFileWithFs(fs, file, buf.Bytes(), 0o640); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}

	return cfg, nil
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	switch c.Transport.Type {
	case TransportExec:
		if c.Transport.Exec.Command == "" {
			return fmt.Errorf("%w: exec command is empty", ErrInvalidTransport)
		}
	case TransportSSH:
		if c.Transport.SSH.Address == "" {
			return fmt.Errorf("%w: ssh address is empty", ErrInvalidTransport)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransport, c.Transport.Type)
	}

	if c.Transport.GreetingLines < 0 {
		return fmt.Errorf("%w: negative greeting_lines", ErrInvalidTransport)
	}

	if c.Gateway.Listen == "" && c.Gateway.Socket == "" {
		return fmt.Errorf("%w: neither listen nor socket is set", ErrInvalidGateway)
	}

	for _, n := range c.Nouns {
		if _, err := ossi.ParseNoun(n.Name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidNoun, err)
		}
	}

	return nil
}

// Registry returns the built-in noun schemas extended with the configured
// nouns. The Registry is not sealed.
func (c *Config) Registry() (*ossi.Registry, error) {
	r := ossi.NewDefaultRegistry()

	for _, n := range c.Nouns {
		noun, err := ossi.ParseNoun(n.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidNoun, err)
		}

		fields := make([]ossi.Field, 0, len(n.Fields))
		for _, f := range n.Fields {
			fields = append(fields, ossi.Field{Name: f.Name, Code: f.Code, MaxLength: f.MaxLength})
		}

		if err := r.Extend(noun, fields); err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidNoun, n.Name, err)
		}
	}

	return r, nil
}
