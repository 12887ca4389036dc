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

// Package ossi provides a client implementation of OSSI, the line oriented
// administration protocol spoken by the switch over a persistent terminal
// session. It contains the field metadata registry that maps attribute names
// to the switch's hexadecimal field codes, the codec that frames requests and
// decodes tagged response lines, and the command model tying the two
// together.
//
// A request is made of up to four lines:
//
//	c<verb> <noun>[ <identifier>]
//	f<code>\t<code>\t...      (optional, field codes)
//	d<value>\t<value>\t...    (optional, values aligned with the codes)
//	t
//
// Every response line starts with a single tag character:
//
//	c  echoed command
//	f  field code line of the current row
//	d  value line of the current row
//	n  end of the current row, another row follows
//	e  error reported by the switch
//	t  end of the transaction
//
// A single row may be spread over several f and d lines. The n-th field code
// line is paired with the n-th value line and only the codes and values of
// the same pair are zipped together, because the switch omits trailing unset
// values on a per line basis.
//
// An e line does not terminate the transaction. The switch always finishes
// with a t line, which must be consumed before the error is reported,
// otherwise the session would be left in the middle of a frame.
package ossi
