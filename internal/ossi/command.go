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

package ossi

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// FieldValue is a named value of a write command.
type FieldValue struct {
	Name  string
	Value string
}

// Command is a single administration request. Fields lists the attributes to
// read, Data the attributes to write; a command carries at most one of them.
type Command struct {
	Verb       Verb
	Noun       Noun
	Identifier string
	Fields     []string
	Data       []FieldValue
}

// String returns the command line as sent after the c tag.
func (c Command) String() string {
	cmd := fmt.Sprintf("%s %s", c.Verb, c.Noun)
	if c.Identifier != "" {
		cmd += " " + c.Identifier
	}

	return cmd
}

// Request is a Command mapped to wire codes, ready to be framed.
// Codes and Values are positionally aligned.
type Request struct {
	Noun    Noun
	Command string
	Codes   []string
	Values  []string
}

// Row maps field names to values for one record.
type Row map[string]string

// Response is the translated result of a transaction. Rows keep the order
// reported by the switch.
type Response struct {
	Command string `json:"cmd"`
	Rows    []Row  `json:"rows"`
}

// BuildRequest maps the names used by cmd to wire codes. It fails with a
// *SchemaError on the first name that cannot be mapped.
func (r *Registry) BuildRequest(cmd Command) (Request, error) {
	fs, err := r.Lookup(cmd.Noun)
	if err != nil {
		return Request{}, err
	}

	invalid := func(format string, args ...any) error {
		return &SchemaError{
			Noun: string(cmd.Noun),
			Err:  fmt.Errorf("%w: "+format, append([]any{ErrInvalidCommand}, args...)...),
		}
	}

	if cmd.Verb == "" {
		return Request{}, invalid("missing verb")
	}

	if !cmd.Verb.Valid() {
		return Request{}, invalid("unknown verb %q", cmd.Verb)
	}

	if len(cmd.Fields) > 0 && len(cmd.Data) > 0 {
		return Request{}, invalid("fields and data are mutually exclusive")
	}

	if !isPrintable(cmd.Identifier) {
		return Request{}, invalid("identifier %q contains control characters", cmd.Identifier)
	}

	req := Request{Noun: cmd.Noun, Command: cmd.String()}

	for _, name := range cmd.Fields {
		code, err := fs.CodeForName(name)
		if err != nil {
			return Request{}, err
		}

		req.Codes = append(req.Codes, code)
	}

	for _, d := range cmd.Data {
		field, ok := fs.Field(d.Name)
		if !ok {
			return Request{}, &SchemaError{Noun: string(cmd.Noun), Field: d.Name, Err: ErrUnknownField}
		}

		if field.MaxLength > 0 && utf8.RuneCountInString(d.Value) > field.MaxLength {
			return Request{}, &SchemaError{
				Noun:  string(cmd.Noun),
				Field: d.Name,
				Err:   fmt.Errorf("%w (%d)", ErrValueTooLong, field.MaxLength),
			}
		}

		if !isPrintable(d.Value) {
			return Request{}, invalid("value of %q contains control characters", d.Name)
		}

		req.Codes = append(req.Codes, field.Code)
		req.Values = append(req.Values, d.Value)
	}

	return req, nil
}

// TranslateResponse maps the codes of raw back to field names of noun.
// Codes the Registry does not know are kept as keys verbatim.
func (r *Registry) TranslateResponse(noun Noun, raw *RawResponse) (*Response, error) {
	fs, err := r.Lookup(noun)
	if err != nil {
		return nil, err
	}

	resp := &Response{Command: raw.Command, Rows: make([]Row, 0, len(raw.Rows))}

	for _, rawRow := range raw.Rows {
		row := make(Row, len(rawRow))

		for _, p := range rawRow {
			name, ok := fs.LookupCode(p.Code)
			if !ok {
				name = p.Code
			}

			row[name] = p.Value
		}

		resp.Rows = append(resp.Rows, row)
	}

	return resp, nil
}

func isPrintable(s string) bool {
	return !strings.ContainsAny(s, "\t\r\n")
}

// Client runs commands over a single OSSI session. Like Conn it must be used
// by one goroutine at a time.
type Client struct {
	conn     *Conn
	registry *Registry
}

// NewClient returns a Client on rw. The greeting lines the remote side sends
// on login are read and dropped before the Client is returned.
func NewClient(rw io.ReadWriter, registry *Registry, greetingLines, maxLineSize int) (*Client, error) {
	conn := NewConn(rw, maxLineSize)

	if _, err := conn.Discard(greetingLines); err != nil {
		return nil, fmt.Errorf("reading greeting: %w", err)
	}

	return &Client{conn: conn, registry: registry}, nil
}

// Execute builds, sends and decodes cmd.
func (c *Client) Execute(cmd Command) (*Response, error) {
	req, err := c.registry.BuildRequest(cmd)
	if err != nil {
		return nil, err
	}

	return c.Do(req)
}

// Do runs an already built request.
func (c *Client) Do(req Request) (*Response, error) {
	raw, err := c.conn.Transact(req.Command, req.Codes, req.Values)
	if err != nil {
		return nil, err
	}

	return c.registry.TranslateResponse(req.Noun, raw)
}
