// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/sonarhost/sonar/internal/logging"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

// envelope is the standard shape every RPC response is wrapped in, success
// or failure, matching the teacher's APIResponse convention.
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *wireError  `json:"error,omitempty"`
	Meta    meta        `json:"meta"`
}

type wireError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type meta struct {
	RequestID  string `json:"request_id,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// responder writes one envelope-wrapped JSON response, timing itself from
// construction to the first write.
type responder struct {
	w     http.ResponseWriter
	r     *http.Request
	start time.Time
}

func newResponder(w http.ResponseWriter, r *http.Request) *responder {
	return &responder{w: w, r: r, start: time.Now()}
}

func (re *responder) meta() meta {
	return meta{
		RequestID:  logging.RequestIDFromContext(re.r.Context()),
		DurationMs: time.Since(re.start).Milliseconds(),
	}
}

// ok writes a 200 with data as the payload.
func (re *responder) ok(data interface{}) {
	re.write(http.StatusOK, envelope{Success: true, Data: data, Meta: re.meta()})
}

// created writes a 201 with data as the payload.
func (re *responder) created(data interface{}) {
	re.write(http.StatusCreated, envelope{Success: true, Data: data, Meta: re.meta()})
}

// noContent writes a bare 204.
func (re *responder) noContent() {
	re.w.WriteHeader(http.StatusNoContent)
}

// fail maps err's sonarerr.Kind onto an HTTP status and writes the error
// envelope. Handlers should funnel every returned error through this one
// path rather than picking status codes themselves.
func (re *responder) fail(err error) {
	status, code := httpStatusForError(err)
	if status >= http.StatusInternalServerError {
		logging.CtxErr(re.r.Context(), err).Str("path", re.r.URL.Path).Msg("rpc handler error")
	}
	re.write(status, envelope{
		Success: false,
		Error: &wireError{
			Code:      code,
			Message:   err.Error(),
			RequestID: logging.RequestIDFromContext(re.r.Context()),
		},
		Meta: re.meta(),
	})
}

func httpStatusForError(err error) (int, string) {
	switch sonarerr.KindOf(err) {
	case sonarerr.Invalid:
		return http.StatusBadRequest, "INVALID"
	case sonarerr.NotFound:
		return http.StatusNotFound, "NOT_FOUND"
	case sonarerr.Unauthorized:
		return http.StatusForbidden, "UNAUTHORIZED"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func (re *responder) write(status int, body envelope) {
	re.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	re.w.WriteHeader(status)
	if err := json.NewEncoder(re.w).Encode(body); err != nil {
		logging.CtxErr(re.r.Context(), err).Msg("encode rpc response")
	}
}

// decodeJSON reads and decodes the request body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return sonarerr.Invalidf("malformed JSON body: %v", err)
	}
	return nil
}
