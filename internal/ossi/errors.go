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
	"errors"
	"fmt"
)

var (
	ErrUnknownNoun    = errors.New("unknown noun")
	ErrUnknownField   = errors.New("unknown field name for noun")
	ErrValueTooLong   = errors.New("value exceeds field length")
	ErrInvalidCommand = errors.New("invalid command")
	ErrDuplicateNoun  = errors.New("noun already registered")
	ErrDuplicateField = errors.New("duplicate field in fieldset")
	ErrInvalidField   = errors.New("invalid field in fieldset")
	ErrRegistrySealed = errors.New("registry is sealed")
	// ErrTransport is wrapped by every error that leaves the session in an
	// unknown state: read/write failures, unexpected end of stream and lines
	// that do not follow the tag grammar.
	ErrTransport     = errors.New("transport failure")
	ErrMalformedLine = errors.New("malformed response line")
)

// SchemaError is returned when a command cannot be mapped to wire codes.
// It is always raised before anything is written to the session.
type SchemaError struct {
	Noun  string
	Field string
	Err   error
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s %q", e.Err, e.Noun)
	}

	return fmt.Sprintf("%s %q: %q", e.Err, e.Noun, e.Field)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ProtocolError is a failure reported by the switch for one transaction.
// The session is still usable after it.
type ProtocolError struct {
	Message string
	Command string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Message)
}

func transportError(err error) error {
	return fmt.Errorf("%w: %w", ErrTransport, err)
}
