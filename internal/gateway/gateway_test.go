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

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shadytel/pyossi/internal/broker"
	"github.com/Shadytel/pyossi/internal/ossi"
)

// recordingSubmitter records submitted commands and answers with resp and
// err.
type recordingSubmitter struct {
	mu       sync.Mutex
	commands []ossi.Command
	resp     *ossi.Response
	err      error
	wait     bool
}

func (s *recordingSubmitter) Submit(ctx context.Context, cmd ossi.Command) (*ossi.Response, error) {
	s.mu.Lock()
	s.commands = append(s.commands, cmd)
	s.mu.Unlock()

	if s.wait {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	return s.resp, s.err
}

func (s *recordingSubmitter) last() ossi.Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commands[len(s.commands)-1]
}

func TestRoutes(t *testing.T) {
	testcases := map[string]struct {
		method string
		target string
		body   string
		ctype  string
		out    ossi.Command
	}{
		"list stations": {
			method: http.MethodGet,
			target: "/api/station?fields=extn,name",
			out:    ossi.Command{Verb: ossi.VerbList, Noun: ossi.NounStation, Fields: []string{"extn", "name"}},
		},
		"list stations without fields": {
			method: http.MethodGet,
			target: "/api/station",
			out:    ossi.Command{Verb: ossi.VerbList, Noun: ossi.NounStation},
		},
		"get station": {
			method: http.MethodGet,
			target: "/api/station/1234?fields=name,%20port,",
			out: ossi.Command{
				Verb: ossi.VerbList, Noun: ossi.NounStation, Identifier: "1234",
				Fields: []string{"name", "port"},
			},
		},
		"busyout": {
			method: http.MethodGet,
			target: "/api/station/1234/busyout",
			out:    ossi.Command{Verb: ossi.VerbBusyout, Noun: ossi.NounStation, Identifier: "1234"},
		},
		"release": {
			method: http.MethodGet,
			target: "/api/station/1234/release",
			out:    ossi.Command{Verb: ossi.VerbRelease, Noun: ossi.NounStation, Identifier: "1234"},
		},
		"test": {
			method: http.MethodGet,
			target: "/api/station/1234/test",
			out:    ossi.Command{Verb: ossi.VerbTest, Noun: ossi.NounStation, Identifier: "1234"},
		},
		"add from form": {
			method: http.MethodPost,
			target: "/api/station/1234",
			body:   url.Values{"port": {"01A0101"}, "name": {"Jane Doe"}}.Encode(),
			ctype:  "application/x-www-form-urlencoded",
			out: ossi.Command{
				Verb: ossi.VerbAdd, Noun: ossi.NounStation, Identifier: "1234",
				Data: []ossi.FieldValue{{Name: "name", Value: "Jane Doe"}, {Name: "port", Value: "01A0101"}},
			},
		},
		"change from json": {
			method: http.MethodPatch,
			target: "/api/station/1234",
			body:   `{"name":"John Doe","cor":"1"}`,
			ctype:  "application/json; charset=utf-8",
			out: ossi.Command{
				Verb: ossi.VerbChange, Noun: ossi.NounStation, Identifier: "1234",
				Data: []ossi.FieldValue{{Name: "cor", Value: "1"}, {Name: "name", Value: "John Doe"}},
			},
		},
		"erase": {
			method: http.MethodDelete,
			target: "/api/station/1234",
			out:    ossi.Command{Verb: ossi.VerbErase, Noun: ossi.NounStation, Identifier: "1234"},
		},
		"udp": {
			method: http.MethodGet,
			target: "/api/udp/12",
			out:    ossi.Command{Verb: ossi.VerbDisplay, Noun: ossi.NounUDP, Identifier: "12"},
		},
		"configuration": {
			method: http.MethodGet,
			target: "/api/configuration/all",
			out:    ossi.Command{Verb: ossi.VerbList, Noun: ossi.NounConfiguration, Identifier: "all"},
		},
	}

	for name, tc := range testcases {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := &recordingSubmitter{resp: &ossi.Response{Command: "station", Rows: []ossi.Row{}}}
			router := NewRouter(s, WithLogger(zerolog.Nop()))

			req := httptest.NewRequest(tc.method, tc.target, strings.NewReader(tc.body))
			if tc.ctype != "" {
				req.Header.Set("Content-Type", tc.ctype)
			}

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, tc.out, s.last())
		})
	}
}

func TestResponseBody(t *testing.T) {
	s := &recordingSubmitter{resp: &ossi.Response{
		Command: "station",
		Rows: []ossi.Row{
			{"extn": "1234", "name": "John Doe"},
			{"extn": "1235", "name": "Jane Doe"},
		},
	}}

	rec := httptest.NewRecorder()
	NewRouter(s, WithLogger(zerolog.Nop())).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/station?fields=extn,name", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"cmd":"station","rows":[
		{"extn":"1234","name":"John Doe"},
		{"extn":"1235","name":"Jane Doe"}
	]}`, rec.Body.String())
}

func TestErrorStatus(t *testing.T) {
	testcases := map[string]struct {
		err     error
		status  int
		message string
	}{
		"unknown field": {
			err:     &ossi.SchemaError{Noun: "station", Field: "colour", Err: ossi.ErrUnknownField},
			status:  http.StatusBadRequest,
			message: `unknown field name for noun "station": "colour"`,
		},
		"switch error": {
			err:     &ossi.ProtocolError{Message: "no such extension", Command: "list station 9999"},
			status:  http.StatusBadRequest,
			message: "no such extension",
		},
		"queue full": {
			err:    broker.ErrQueueFull,
			status: http.StatusTooManyRequests,
		},
		"closed": {
			err:    fmt.Errorf("%w: %w", broker.ErrClosed, ossi.ErrTransport),
			status: http.StatusServiceUnavailable,
		},
		"transport": {
			err:    fmt.Errorf("%w: broken pipe", ossi.ErrTransport),
			status: http.StatusServiceUnavailable,
		},
		"timeout": {
			err:    context.DeadlineExceeded,
			status: http.StatusGatewayTimeout,
		},
		"other": {
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
		},
	}

	for name, tc := range testcases {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := &recordingSubmitter{err: tc.err}

			rec := httptest.NewRecorder()
			NewRouter(s, WithLogger(zerolog.Nop())).
				ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/station/9999", nil))

			require.Equal(t, tc.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

			if tc.message != "" {
				assert.Equal(t, tc.message, body["error"])
			} else {
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestCommandTimeout(t *testing.T) {
	s := &recordingSubmitter{wait: true}

	rec := httptest.NewRecorder()
	NewRouter(s, WithLogger(zerolog.Nop()), WithCommandTimeout(10*time.Millisecond)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/station", nil))

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestInvalidBody(t *testing.T) {
	s := &recordingSubmitter{}

	req := httptest.NewRequest(http.MethodPatch, "/api/station/1234", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	NewRouter(s, WithLogger(zerolog.Nop())).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, s.commands)
}

func TestUnknownRoute(t *testing.T) {
	rec := httptest.NewRecorder()
	NewRouter(&recordingSubmitter{}, WithLogger(zerolog.Nop())).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/trunk", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
