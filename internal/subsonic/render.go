// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package subsonic

import (
	"encoding/xml"
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/sonarhost/sonar/internal/logging"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

// jsonEnvelope is how the JSON form wraps Response: Subsonic's JSON
// rendering nests the whole document one level under "subsonic-response",
// unlike the XML form where Response itself is the root element.
type jsonEnvelope struct {
	Response Response `json:"subsonic-response"`
}

// responder renders exactly one Response per request, in whichever of
// JSON or XML the "f" query parameter asked for (default xml, matching
// every Subsonic server; jsonp is not supported).
type responder struct {
	w      http.ResponseWriter
	format string
}

func newResponder(w http.ResponseWriter, r *http.Request) *responder {
	format := r.URL.Query().Get("f")
	if format != "json" {
		format = "xml"
	}
	return &responder{w: w, format: format}
}

func (re *responder) envelope() Response {
	return Response{
		Status:        "ok",
		Version:       protocolVersion,
		Type:          serverType,
		ServerVersion: serverVersion,
		OpenSubsonic:  true,
	}
}

// ok renders resp as a successful response, after set has populated
// whichever body field the calling method owns.
func (re *responder) ok(set func(*Response)) {
	resp := re.envelope()
	set(&resp)
	re.write(resp)
}

// fail renders err as a Subsonic error body, translating the shared
// sonarerr taxonomy into the closest Subsonic error code.
func (re *responder) fail(err error) {
	resp := re.envelope()
	resp.Status = "failed"
	resp.Error = &Error{Code: int(codeFor(err)), Message: err.Error()}
	re.write(resp)
}

// failCode renders an explicit Subsonic error code/message pair, for
// failures (missing parameter, bad credentials) that don't originate as a
// sonarerr.Error.
func (re *responder) failCode(code errorCode, message string) {
	resp := re.envelope()
	resp.Status = "failed"
	resp.Error = &Error{Code: int(code), Message: message}
	re.write(resp)
}

func codeFor(err error) errorCode {
	switch sonarerr.KindOf(err) {
	case sonarerr.NotFound:
		return errDataNotFound
	case sonarerr.Unauthorized:
		return errNotAuthorized
	case sonarerr.Invalid:
		return errGeneric
	default:
		return errGeneric
	}
}

func (re *responder) write(resp Response) {
	re.w.Header().Set("Content-Type", re.contentType())
	if re.format == "json" {
		if err := json.NewEncoder(re.w).Encode(jsonEnvelope{Response: resp}); err != nil {
			logging.Err(err).Msg("encode subsonic json response")
		}
		return
	}

	// encoding/xml is the standard library's XML encoder; nothing in the
	// corpus pulls in a third-party XML package, and Subsonic's
	// attribute-heavy wire format maps directly onto its struct tags.
	re.w.Write([]byte(xml.Header))
	if err := xml.NewEncoder(re.w).Encode(resp); err != nil {
		logging.Err(err).Msg("encode subsonic xml response")
	}
}

func (re *responder) contentType() string {
	if re.format == "json" {
		return "application/json"
	}
	return "text/xml; charset=utf-8"
}
