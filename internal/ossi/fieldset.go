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
	"sync/atomic"
)

const fieldSeparators = " \t\r\n"

// Field describes one attribute of a noun.
type Field struct {
	Name string
	// Code is the hexadecimal field identifier used on the wire.
	Code string
	// MaxLength is the longest value the switch accepts, 0 means unchecked.
	MaxLength int
}

// Fieldset holds the fields of a single noun and provides lookups in both
// directions. Names and codes are unique within a Fieldset.
type Fieldset struct {
	noun       Noun
	fields     []Field
	nameToCode map[string]int
	codeToName map[string]int
}

// NewFieldset returns a Fieldset for noun, failing if a name or a code is
// used twice or contains whitespace.
func NewFieldset(noun Noun, fields []Field) (*Fieldset, error) {
	fs := &Fieldset{
		noun:       noun,
		fields:     make([]Field, len(fields)),
		nameToCode: make(map[string]int, len(fields)),
		codeToName: make(map[string]int, len(fields)),
	}

	copy(fs.fields, fields)

	for i, f := range fs.fields {
		if f.Name == "" || f.Code == "" {
			return nil, fmt.Errorf("%s field %d: name and code are required", noun, i)
		}

		// Codes and values are matched by position on the wire, a separator
		// inside a code would shift every following pair.
		if strings.ContainsAny(f.Name, fieldSeparators) {
			return nil, fmt.Errorf("%w: %s name %q contains whitespace", ErrInvalidField, noun, f.Name)
		}

		if strings.ContainsAny(f.Code, fieldSeparators) {
			return nil, fmt.Errorf("%w: %s code %q contains whitespace", ErrInvalidField, noun, f.Code)
		}

		if _, ok := fs.nameToCode[f.Name]; ok {
			return nil, fmt.Errorf("%w: %s name %q", ErrDuplicateField, noun, f.Name)
		}

		if _, ok := fs.codeToName[f.Code]; ok {
			return nil, fmt.Errorf("%w: %s code %q", ErrDuplicateField, noun, f.Code)
		}

		fs.nameToCode[f.Name] = i
		fs.codeToName[f.Code] = i
	}

	return fs, nil
}

// Noun returns the noun this Fieldset belongs to.
func (fs *Fieldset) Noun() Noun {
	return fs.noun
}

// Fields returns a copy of the fields in registration order.
func (fs *Fieldset) Fields() []Field {
	fields := make([]Field, len(fs.fields))
	copy(fields, fs.fields)

	return fields
}

// Field returns the Field registered under name.
func (fs *Fieldset) Field(name string) (Field, bool) {
	i, ok := fs.nameToCode[name]
	if !ok {
		return Field{}, false
	}

	return fs.fields[i], true
}

// CodeForName returns the wire code for name.
func (fs *Fieldset) CodeForName(name string) (string, error) {
	f, ok := fs.Field(name)
	if !ok {
		return "", &SchemaError{Noun: string(fs.noun), Field: name, Err: ErrUnknownField}
	}

	return f.Code, nil
}

// LookupCode returns the field name for code. The second value is false when
// the switch reported a code that is not registered.
func (fs *Fieldset) LookupCode(code string) (string, bool) {
	i, ok := fs.codeToName[code]
	if !ok {
		return "", false
	}

	return fs.fields[i].Name, true
}

// NameForCode returns the field name for code, or code itself when it is
// unknown, so that fields introduced by newer firmware still decode.
func (fs *Fieldset) NameForCode(code string) string {
	if name, ok := fs.LookupCode(code); ok {
		return name
	}

	return code
}

// Registry maps nouns to their Fieldset. It is filled at startup and sealed
// before it is shared; a sealed Registry is read only and safe for concurrent
// use.
type Registry struct {
	fieldsets map[Noun]*Fieldset
	sealed    atomic.Bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{fieldsets: make(map[Noun]*Fieldset)}
}

// Register adds the fields of noun to the Registry. It must not be called
// concurrently with lookups, and fails once the Registry is sealed.
func (r *Registry) Register(noun Noun, fields []Field) error {
	if r.sealed.Load() {
		return ErrRegistrySealed
	}

	if _, ok := r.fieldsets[noun]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNoun, noun)
	}

	fs, err := NewFieldset(noun, fields)
	if err != nil {
		return err
	}

	r.fieldsets[noun] = fs

	return nil
}

// Extend adds fields to an already registered noun, or registers the noun
// when it is not known yet.
func (r *Registry) Extend(noun Noun, fields []Field) error {
	if r.sealed.Load() {
		return ErrRegistrySealed
	}

	current, ok := r.fieldsets[noun]
	if !ok {
		return r.Register(noun, fields)
	}

	fs, err := NewFieldset(noun, append(current.Fields(), fields...))
	if err != nil {
		return err
	}

	r.fieldsets[noun] = fs

	return nil
}

// Seal makes the Registry read only.
func (r *Registry) Seal() *Registry {
	r.sealed.Store(true)
	return r
}

// Lookup returns the Fieldset of noun.
func (r *Registry) Lookup(noun Noun) (*Fieldset, error) {
	fs, ok := r.fieldsets[noun]
	if !ok {
		return nil, &SchemaError{Noun: string(noun), Err: ErrUnknownNoun}
	}

	return fs, nil
}

// Nouns returns the registered nouns in no particular order.
func (r *Registry) Nouns() []Noun {
	nouns := make([]Noun, 0, len(r.fieldsets))
	for n := range r.fieldsets {
		nouns = append(nouns, n)
	}

	return nouns
}
