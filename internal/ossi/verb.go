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
	"strings"
)

// Verb is the action word of a command.
type Verb string

const (
	VerbAdd     Verb = "add"
	VerbBusyout Verb = "busyout"
	VerbChange  Verb = "change"
	VerbDisplay Verb = "display"
	VerbErase   Verb = "erase"
	VerbGet     Verb = "get"
	VerbList    Verb = "list"
	VerbTest    Verb = "test"
	VerbRelease Verb = "release"
)

var verbs = map[Verb]struct{}{
	VerbAdd:     {},
	VerbBusyout: {},
	VerbChange:  {},
	VerbDisplay: {},
	VerbErase:   {},
	VerbGet:     {},
	VerbList:    {},
	VerbTest:    {},
	VerbRelease: {},
}

// ParseVerb returns the Verb for its wire keyword, ignoring case.
func ParseVerb(s string) (Verb, error) {
	v := Verb(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := verbs[v]; !ok {
		return "", fmt.Errorf("%w: unknown verb %q", ErrInvalidCommand, s)
	}

	return v, nil
}

// Valid reports whether v is one of the known verbs.
func (v Verb) Valid() bool {
	_, ok := verbs[v]
	return ok
}

func (v Verb) String() string {
	return string(v)
}

// Noun is the tag of an entity type, bound to a Fieldset by a Registry.
type Noun string

const (
	NounStation       Noun = "station"
	NounUDP           Noun = "udp"
	NounConfiguration Noun = "configuration"
)

func (n Noun) String() string {
	return string(n)
}

// ParseNoun returns the Noun for s, ignoring case. Whether the noun is known
// is decided by the Registry.
func ParseNoun(s string) (Noun, error) {
	n := strings.ToLower(strings.TrimSpace(s))
	if n == "" || strings.ContainsAny(n, " \t\r\n") {
		return "", fmt.Errorf("%w: invalid noun %q", ErrInvalidCommand, s)
	}

	return Noun(n), nil
}
