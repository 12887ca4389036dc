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

// Package gateway exposes the switch administration commands over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Shadytel/pyossi/internal/broker"
	"github.com/Shadytel/pyossi/internal/ossi"
)

// maxBodySize limits write request bodies.
const maxBodySize = 64 << 10

// Submitter runs a command on the switch. It is implemented by
// *broker.Broker.
type Submitter interface {
	Submit(ctx context.Context, cmd ossi.Command) (*ossi.Response, error)
}

type handlers struct {
	submitter      Submitter
	log            zerolog.Logger
	commandTimeout time.Duration
}

// Option configures the router returned by NewRouter.
type Option func(*handlers)

// WithCommandTimeout bounds how long a request waits for its command.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(h *handlers) {
		h.commandTimeout = timeout
	}
}

// WithLogger sets the logger used for request logs.
func WithLogger(logger zerolog.Logger) Option {
	return func(h *handlers) {
		h.log = logger
	}
}

// NewRouter returns the HTTP handler of the gateway.
func NewRouter(submitter Submitter, options ...Option) http.Handler {
	h := &handlers{
		submitter: submitter,
		log:       log.Logger,
	}

	for _, opt := range options {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/station", h.listStation)
		r.Get("/station/{extn}", h.getStation)

		r.Get("/station/{extn}/busyout", h.stationAction(ossi.VerbBusyout))
		r.Get("/station/{extn}/release", h.stationAction(ossi.VerbRelease))
		r.Get("/station/{extn}/test", h.stationAction(ossi.VerbTest))

		r.Post("/station/{extn}", h.writeStation(ossi.VerbAdd))
		r.Patch("/station/{extn}", h.writeStation(ossi.VerbChange))
		r.Delete("/station/{extn}", h.stationAction(ossi.VerbErase))

		r.Get("/udp/{prefix}", h.getUDP)

		r.Get("/configuration/all", h.getConfigurationAll)
	})

	return r
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info().
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Dur("duration", time.Since(start)).
					Msg("Request handled")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

func (h *handlers) listStation(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, ossi.Command{
		Verb:   ossi.VerbList,
		Noun:   ossi.NounStation,
		Fields: queryFields(r),
	})
}

func (h *handlers) getStation(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, ossi.Command{
		Verb:       ossi.VerbList,
		Noun:       ossi.NounStation,
		Identifier: chi.URLParam(r, "extn"),
		Fields:     queryFields(r),
	})
}

func (h *handlers) stationAction(verb ossi.Verb) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.execute(w, r, ossi.Command{
			Verb:       verb,
			Noun:       ossi.NounStation,
			Identifier: chi.URLParam(r, "extn"),
		})
	}
}

func (h *handlers) writeStation(verb ossi.Verb) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := requestData(w, r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		h.execute(w, r, ossi.Command{
			Verb:       verb,
			Noun:       ossi.NounStation,
			Identifier: chi.URLParam(r, "extn"),
			Data:       data,
		})
	}
}

func (h *handlers) getUDP(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, ossi.Command{
		Verb:       ossi.VerbDisplay,
		Noun:       ossi.NounUDP,
		Identifier: chi.URLParam(r, "prefix"),
	})
}

func (h *handlers) getConfigurationAll(w http.ResponseWriter, r *http.Request) {
	h.execute(w, r, ossi.Command{
		Verb:       ossi.VerbList,
		Noun:       ossi.NounConfiguration,
		Identifier: "all",
	})
}

func (h *handlers) execute(w http.ResponseWriter, r *http.Request, cmd ossi.Command) {
	ctx := r.Context()

	if h.commandTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, h.commandTimeout)
		defer cancel()
	}

	resp, err := h.submitter.Submit(ctx, cmd)
	if err != nil {
		h.writeCommandError(w, r, cmd, err)
		return
	}

	writeJSON(w, resp)
}

func (h *handlers) writeCommandError(w http.ResponseWriter, r *http.Request, cmd ossi.Command, err error) {
	var (
		schemaErr *ossi.SchemaError
		protoErr  *ossi.ProtocolError
	)

	switch {
	case errors.As(err, &schemaErr), errors.Is(err, ossi.ErrInvalidCommand):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &protoErr):
		writeError(w, http.StatusBadRequest, protoErr.Message)
	case errors.Is(err, broker.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, broker.ErrClosed), errors.Is(err, broker.ErrNotStarted),
		errors.Is(err, ossi.ErrTransport):
		writeError(w, http.StatusServiceUnavailable, "switch session unavailable")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timed out waiting for the switch")
	case errors.Is(err, context.Canceled) && r.Context().Err() != nil:
		// The client went away, nobody reads the response.
		h.log.Debug().Str("command", cmd.String()).Msg("Client cancelled request")
	default:
		h.log.Error().Err(err).Str("command", cmd.String()).Msg("Command failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// queryFields returns the comma separated fields query parameter.
func queryFields(r *http.Request) []string {
	raw := r.URL.Query().Get("fields")
	if raw == "" {
		return nil
	}

	var fields []string

	for _, f := range strings.Split(raw, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}

	return fields
}

// requestData reads the field values of a write from a JSON object or a form
// body. Values are sorted by field name.
func requestData(w http.ResponseWriter, r *http.Request) ([]ossi.FieldValue, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	values := map[string]string{}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
			return nil, fmt.Errorf("decoding body: %w", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parsing form: %w", err)
		}

		for name := range r.PostForm {
			values[name] = r.PostForm.Get(name)
		}
	}

	data := make([]ossi.FieldValue, 0, len(values))
	for name, value := range values {
		data = append(data, ossi.FieldValue{Name: name, Value: value})
	}

	sort.Slice(data, func(i, j int) bool { return data[i].Name < data[j].Name })

	return data, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	//nolint:errcheck // the client may be gone
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // the client may be gone
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
