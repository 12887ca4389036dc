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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRequest(t *testing.T) {
	registry := NewDefaultRegistry().Seal()

	testcases := map[string]struct {
		in  Command
		out Request
	}{
		"list all stations": {
			in: Command{Verb: VerbList, Noun: NounStation, Fields: []string{"extn", "name"}},
			out: Request{
				Noun:    NounStation,
				Command: "list station",
				Codes:   []string{"8005ff00", "8003ff00"},
			},
		},
		"change one station keeps value positions": {
			in: Command{
				Verb:       VerbChange,
				Noun:       NounStation,
				Identifier: "1234",
				Data: []FieldValue{
					{Name: "name", Value: "Jane Doe"},
					{Name: "cor", Value: "1"},
					{Name: "extn", Value: "1234"},
				},
			},
			out: Request{
				Noun:    NounStation,
				Command: "change station 1234",
				Codes:   []string{"8003ff00", "8001ff00", "8005ff00"},
				Values:  []string{"Jane Doe", "1", "1234"},
			},
		},
		"noun without named fields": {
			in: Command{Verb: VerbList, Noun: NounConfiguration, Identifier: "all"},
			out: Request{
				Noun:    NounConfiguration,
				Command: "list configuration all",
			},
		},
	}

	for name, tc := range testcases {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			req, err := registry.BuildRequest(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.out, req)
		})
	}
}

func TestBuildRequestSchemaErrors(t *testing.T) {
	registry := NewDefaultRegistry().Seal()

	testcases := map[string]struct {
		in  Command
		err error
	}{
		"unknown read field": {
			in:  Command{Verb: VerbList, Noun: NounStation, Fields: []string{"extn", "colour"}},
			err: ErrUnknownField,
		},
		"unknown write field": {
			in:  Command{Verb: VerbAdd, Noun: NounStation, Data: []FieldValue{{Name: "colour", Value: "red"}}},
			err: ErrUnknownField,
		},
		"unknown noun": {
			in:  Command{Verb: VerbList, Noun: "vector"},
			err: ErrUnknownNoun,
		},
		"value too long": {
			in:  Command{Verb: VerbChange, Noun: NounStation, Data: []FieldValue{{Name: "extn", Value: "123456"}}},
			err: ErrValueTooLong,
		},
		"value breaking the framing": {
			in:  Command{Verb: VerbChange, Noun: NounStation, Data: []FieldValue{{Name: "name", Value: "a\tb"}}},
			err: ErrInvalidCommand,
		},
		"identifier breaking the framing": {
			in:  Command{Verb: VerbDisplay, Noun: NounStation, Identifier: "1234\nt"},
			err: ErrInvalidCommand,
		},
		"fields and data": {
			in: Command{
				Verb:   VerbChange,
				Noun:   NounStation,
				Fields: []string{"name"},
				Data:   []FieldValue{{Name: "name", Value: "x"}},
			},
			err: ErrInvalidCommand,
		},
		"missing verb": {
			in:  Command{Noun: NounStation},
			err: ErrInvalidCommand,
		},
		"unknown verb": {
			in:  Command{Verb: "bogus", Noun: NounStation},
			err: ErrInvalidCommand,
		},
		"verb breaking the framing": {
			in:  Command{Verb: "list station\nt\ncerase", Noun: NounStation, Identifier: "1234"},
			err: ErrInvalidCommand,
		},
	}

	for name, tc := range testcases {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := registry.BuildRequest(tc.in)

			var schemaErr *SchemaError

			assert.ErrorAs(t, err, &schemaErr)
			assert.ErrorIs(t, err, tc.err)
		})
	}
}

func TestTranslateResponse(t *testing.T) {
	registry := NewDefaultRegistry().Seal()

	raw := &RawResponse{
		Command: "list station",
		Rows: []RawRow{
			{{Code: "8005ff00", Value: "1234"}, {Code: "6e00ff00", Value: "x"}},
			{{Code: "8005ff00", Value: "1000"}, {Code: "8003ff00", Value: "Jane Doe"}},
		},
	}

	resp, err := registry.TranslateResponse(NounStation, raw)
	require.NoError(t, err)

	assert.Equal(t, &Response{
		Command: "list station",
		Rows: []Row{
			{"extn": "1234", "6e00ff00": "x"},
			{"extn": "1000", "name": "Jane Doe"},
		},
	}, resp)
}

func TestClientExecute(t *testing.T) {
	s := newSession("Password OK\n\ncstation\nf8005ff00\t8003ff00\nd1234\tJohn Doe\nt\n")

	client, err := NewClient(s, NewDefaultRegistry().Seal(), 2, 0)
	require.NoError(t, err)

	resp, err := client.Execute(Command{Verb: VerbList, Noun: NounStation, Fields: []string{"extn", "name"}})
	require.NoError(t, err)

	assert.Equal(t, "clist station\nf8005ff00\t8003ff00\t\nt\n", s.w.String())
	assert.Equal(t, &Response{
		Command: "station",
		Rows:    []Row{{"extn": "1234", "name": "John Doe"}},
	}, resp)
}

func TestClientExecuteProtocolError(t *testing.T) {
	s := newSession("cdisplay station 9999\neno such extension\nt\n")

	client, err := NewClient(s, NewDefaultRegistry().Seal(), 0, 0)
	require.NoError(t, err)

	_, err = client.Execute(Command{Verb: VerbDisplay, Noun: NounStation, Identifier: "9999"})

	var protoErr *ProtocolError

	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "no such extension", protoErr.Message)
	assert.Equal(t, "display station 9999", protoErr.Command)
}

func TestClientExecuteUnknownFieldWritesNothing(t *testing.T) {
	s := newSession("")

	client, err := NewClient(s, NewDefaultRegistry().Seal(), 0, 0)
	require.NoError(t, err)

	_, err = client.Execute(Command{Verb: VerbList, Noun: NounStation, Fields: []string{"colour"}})
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Zero(t, s.w.Len())
}
