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

// StationFields are the station attributes known to the client.
var StationFields = []Field{
	{Name: "extn", Code: "8005ff00", MaxLength: 5},
	{Name: "port", Code: "8004ff00", MaxLength: 7},
	{Name: "name", Code: "8003ff00", MaxLength: 27},
	{Name: "tn", Code: "4a3bff00", MaxLength: 3},
	{Name: "cor", Code: "8001ff00", MaxLength: 2},
	{Name: "cos", Code: "8002ff00", MaxLength: 2},
	{Name: "dataextn", Code: "0019ff00", MaxLength: 5},
	{Name: "dataname", Code: "001cff00", MaxLength: 27},
	{Name: "datacos", Code: "8020ff00", MaxLength: 2},
	{Name: "datacor", Code: "8021ff00", MaxLength: 2},
	{Name: "datatn", Code: "4a3cff00", MaxLength: 3},
}

// NewDefaultRegistry returns an unsealed Registry holding the built-in nouns.
// The udp and configuration nouns have no named fields; their responses are
// keyed by raw field code.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	for noun, fields := range map[Noun][]Field{
		NounStation:       StationFields,
		NounUDP:           nil,
		NounConfiguration: nil,
	} {
		if err := r.Register(noun, fields); err != nil {
			panic(err)
		}
	}

	return r
}
