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

func TestFieldsetRoundTrip(t *testing.T) {
	registry := NewDefaultRegistry().Seal()

	fs, err := registry.Lookup(NounStation)
	require.NoError(t, err)

	for _, f := range StationFields {
		code, err := fs.CodeForName(f.Name)
		require.NoError(t, err)
		assert.Equal(t, f.Code, code)

		assert.Equal(t, f.Name, fs.NameForCode(code))

		code, err = fs.CodeForName(fs.NameForCode(f.Code))
		require.NoError(t, err)
		assert.Equal(t, f.Code, code)
	}
}

func TestFieldsetNameForCodePassThrough(t *testing.T) {
	fs, err := NewFieldset(NounStation, StationFields)
	require.NoError(t, err)

	testcases := map[string]struct {
		in  string
		out string
	}{
		"known code": {
			in:  "8003ff00",
			out: "name",
		},
		"unknown code": {
			in:  "6e00ff00",
			out: "6e00ff00",
		},
		"code that looks like a name": {
			in:  "extn",
			out: "extn",
		},
		"empty": {
			in:  "",
			out: "",
		},
	}

	for name, tc := range testcases {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			once := fs.NameForCode(tc.in)
			assert.Equal(t, tc.out, once)
			assert.Equal(t, once, fs.NameForCode(once))
		})
	}
}

func TestFieldsetCodeForNameUnknown(t *testing.T) {
	fs, err := NewFieldset(NounStation, StationFields)
	require.NoError(t, err)

	_, err = fs.CodeForName("colour")

	var schemaErr *SchemaError

	require.ErrorAs(t, err, &schemaErr)
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.Equal(t, "station", schemaErr.Noun)
	assert.Equal(t, "colour", schemaErr.Field)
	assert.EqualError(t, err, `unknown field name for noun "station": "colour"`)
}

func TestNewFieldsetDuplicates(t *testing.T) {
	testcases := map[string]struct {
		in []Field
	}{
		"duplicate name": {
			in: []Field{
				{Name: "extn", Code: "8005ff00"},
				{Name: "extn", Code: "8004ff00"},
			},
		},
		"duplicate code": {
			in: []Field{
				{Name: "extn", Code: "8005ff00"},
				{Name: "port", Code: "8005ff00"},
			},
		},
	}

	for name, tc := range testcases {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := NewFieldset(NounStation, tc.in)
			assert.ErrorIs(t, err, ErrDuplicateField)
		})
	}
}

func TestNewFieldsetInvalid(t *testing.T) {
	testcases := map[string]struct {
		in []Field
	}{
		"tab in code": {
			in: []Field{{Name: "extn", Code: "8005\tff00"}},
		},
		"space in code": {
			in: []Field{{Name: "extn", Code: "8005 ff00"}},
		},
		"newline in code": {
			in: []Field{{Name: "extn", Code: "8005ff00\nt"}},
		},
		"space in name": {
			in: []Field{{Name: "ext n", Code: "8005ff00"}},
		},
	}

	for name, tc := range testcases {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := NewFieldset(NounStation, tc.in)
			assert.ErrorIs(t, err, ErrInvalidField)
		})
	}

	r := NewDefaultRegistry()
	err := r.Extend(NounStation, []Field{{Name: "room", Code: "8a01\tff00"}})
	assert.ErrorIs(t, err, ErrInvalidField)

	_, err = r.Lookup(NounStation)
	assert.NoError(t, err)
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()

	require.NoError(t, registry.Register("trunk-group", []Field{{Name: "number", Code: "f800ff00"}}))
	assert.ErrorIs(t, registry.Register("trunk-group", nil), ErrDuplicateNoun)

	require.NoError(t, registry.Extend("trunk-group", []Field{{Name: "name", Code: "f801ff00"}}))
	require.NoError(t, registry.Extend("hunt-group", []Field{{Name: "number", Code: "f802ff00"}}))

	registry.Seal()

	assert.ErrorIs(t, registry.Register("vector", nil), ErrRegistrySealed)
	assert.ErrorIs(t, registry.Extend("trunk-group", nil), ErrRegistrySealed)

	fs, err := registry.Lookup("trunk-group")
	require.NoError(t, err)
	assert.Len(t, fs.Fields(), 2)

	_, err = registry.Lookup("vector")
	assert.ErrorIs(t, err, ErrUnknownNoun)
	assert.ElementsMatch(t, []Noun{"trunk-group", "hunt-group"}, registry.Nouns())
}

func TestParseVerb(t *testing.T) {
	v, err := ParseVerb(" LIST ")
	require.NoError(t, err)
	assert.Equal(t, VerbList, v)

	_, err = ParseVerb("create")
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestParseNoun(t *testing.T) {
	n, err := ParseNoun("Station")
	require.NoError(t, err)
	assert.Equal(t, NounStation, n)

	for _, in := range []string{"", "  ", "station udp"} {
		_, err := ParseNoun(in)
		assert.ErrorIs(t, err, ErrInvalidCommand, in)
	}
}
