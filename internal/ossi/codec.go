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
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

// DefaultMaxLineSize is the longest response line accepted by default.
const DefaultMaxLineSize = 64 * 1024

const (
	tagCommand     = 'c'
	tagField       = 'f'
	tagData        = 'd'
	tagNewRow      = 'n'
	tagError       = 'e'
	tagTerminate   = 't'
	fieldSeparator = "\t"
)

// Pair is a single field code and its value as reported by the switch.
type Pair struct {
	Code  string
	Value string
}

// RawRow is one record of a response, in the order reported by the switch.
type RawRow []Pair

// RawResponse is a decoded transaction, before field codes are translated.
type RawResponse struct {
	Command string
	Rows    []RawRow
}

// EncodeRequest frames a single transaction. Every code and value is
// followed by a tab, the way the switch's own terminal emulation sends them.
func EncodeRequest(command string, codes, values []string) []byte {
	var buf bytes.Buffer

	buf.WriteByte(tagCommand)
	buf.WriteString(command)
	buf.WriteByte('\n')

	writeLine(&buf, tagField, codes)
	writeLine(&buf, tagData, values)

	buf.WriteByte(tagTerminate)
	buf.WriteByte('\n')

	return buf.Bytes()
}

func writeLine(buf *bytes.Buffer, tag byte, items []string) {
	if len(items) == 0 {
		return
	}

	buf.WriteByte(tag)

	for _, item := range items {
		buf.WriteString(item)
		buf.WriteString(fieldSeparator)
	}

	buf.WriteByte('\n')
}

// Conn is a synchronous OSSI session over a byte stream. It is not safe for
// concurrent use: the protocol is half-duplex and transactions must not
// interleave.
type Conn struct {
	w       io.Writer
	scanner *bufio.Scanner
}

// NewConn returns a Conn reading lines of at most maxLineSize bytes.
// A maxLineSize of 0 selects DefaultMaxLineSize.
func NewConn(rw io.ReadWriter, maxLineSize int) *Conn {
	if maxLineSize <= 0 {
		maxLineSize = DefaultMaxLineSize
	}

	// The scanner limit is the larger of maxLineSize and the initial buffer
	// capacity.
	scanner := bufio.NewScanner(rw)
	scanner.Buffer(make([]byte, 0, min(4096, maxLineSize)), maxLineSize)

	return &Conn{w: rw, scanner: scanner}
}

// Discard reads and drops n lines, e.g. the greeting sent on login.
func (c *Conn) Discard(n int) ([]string, error) {
	lines := make([]string, 0, n)

	for i := 0; i < n; i++ {
		line, err := c.readLine()
		if err != nil {
			return lines, err
		}

		lines = append(lines, line)
	}

	return lines, nil
}

// Transact sends one request and reads its response up to the terminator.
// An error reported by the switch is returned as *ProtocolError only after
// the terminator was read; rows decoded in that transaction are dropped.
// Any other error wraps ErrTransport.
func (c *Conn) Transact(command string, codes, values []string) (*RawResponse, error) {
	if _, err := c.w.Write(EncodeRequest(command, codes, values)); err != nil {
		return nil, transportError(err)
	}

	return c.decode(command)
}

func (c *Conn) readLine() (string, error) {
	if !c.scanner.Scan() {
		err := c.scanner.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}

		return "", transportError(err)
	}

	return c.scanner.Text(), nil
}

// rowLines accumulates the field code and value lines of the current row.
type rowLines struct {
	fields [][]string
	values [][]string
}

func (c *Conn) decode(command string) (*RawResponse, error) {
	var (
		resp     = &RawResponse{}
		row      rowLines
		carry    [][]string
		protoErr *ProtocolError
	)

	for {
		line, err := c.readLine()
		if err != nil {
			return nil, err
		}

		if line == "" {
			continue
		}

		body := line[1:]

		switch line[0] {
		case tagCommand:
			resp.Command = body
		case tagField:
			row.fields = append(row.fields, strings.Split(body, fieldSeparator))
		case tagData:
			row.values = append(row.values, strings.Split(body, fieldSeparator))
		case tagNewRow:
			resp.Rows, carry = finishRow(resp.Rows, row, carry)
			row = rowLines{}
		case tagError:
			// Only the first error is kept, the switch may follow up with
			// more detail for the same failure.
			if protoErr == nil {
				protoErr = &ProtocolError{Message: body, Command: command}
			}
		case tagTerminate:
			if protoErr != nil {
				return nil, protoErr
			}

			resp.Rows, _ = finishRow(resp.Rows, row, carry)

			return resp, nil
		default:
			return nil, transportError(fmt.Errorf("%w: %q", ErrMalformedLine, line))
		}
	}
}

// finishRow appends the row built from lines to rows. Field code lines are
// carried over to the following rows when those only report values.
func finishRow(rows []RawRow, lines rowLines, carry [][]string) ([]RawRow, [][]string) {
	fields := lines.fields
	if len(fields) == 0 {
		fields = carry
	} else {
		carry = fields
	}

	pairs := zipLines(fields, lines.values)
	if len(pairs) == 0 {
		return rows, carry
	}

	return append(rows, pairs), carry
}

// zipLines pairs the i-th field code line with the i-th value line and zips
// codes and values positionally within that pair only. A line reporting
// fewer values than codes leaves the remaining codes of that line unset
// without shifting the values of later lines.
func zipLines(fields, values [][]string) RawRow {
	var row RawRow

	for i := 0; i < len(fields) && i < len(values); i++ {
		codes, vals := fields[i], values[i]

		for j := 0; j < len(codes) && j < len(vals); j++ {
			if codes[j] == "" {
				continue
			}

			row = append(row, Pair{Code: codes[j], Value: vals[j]})
		}
	}

	return row
}
