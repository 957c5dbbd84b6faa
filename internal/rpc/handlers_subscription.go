// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sonarhost/sonar/internal/external"
	"github.com/sonarhost/sonar/internal/sonarerr"
)

// pathSubscriptionID parses the {id} chi URL parameter as a subscription
// id. Subscriptions predate the tagged ids.ID scheme (spec §3 "Subscription"
// carries a plain store sequence, not an entity id) so this parses a bare
// uint32 rather than going through ids.ParseKind.
func pathSubscriptionID(r *http.Request) (uint32, error) {
	raw := chi.URLParam(r, "id")
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, sonarerr.Invalidf("invalid subscription id %q: %v", raw, err)
	}
	return uint32(n), nil
}

func (s *Server) handleSubscriptionList(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	subs, err := s.subscriptions.ListByUser(r.Context(), authUser(r).ID)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(subs)
}

type subscriptionCreateRequest struct {
	ExternalID  external.MediaID    `json:"external_id"`
	MediaType   *external.MediaType `json:"media_type"`
	IntervalSec int64               `json:"interval_seconds"`
	Description string              `json:"description"`
}

func (s *Server) handleSubscriptionCreate(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	var in subscriptionCreateRequest
	if err := decodeJSON(r, &in); err != nil {
		re.fail(err)
		return
	}
	sub, err := s.subscriptions.Create(r.Context(), authUser(r).ID, in.ExternalID, in.MediaType,
		time.Duration(in.IntervalSec)*time.Second, in.Description)
	if err != nil {
		re.fail(err)
		return
	}
	re.created(sub)
}

func (s *Server) handleSubscriptionDelete(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathSubscriptionID(r)
	if err != nil {
		re.fail(err)
		return
	}
	if err := s.subscriptions.Delete(r.Context(), authUser(r).ID, id); err != nil {
		re.fail(err)
		return
	}
	re.noContent()
}

// handleSubscriptionSubmit re-submits a subscription to the download
// orchestrator immediately, ahead of its next scheduled interval (spec §4.8
// "subscription ... submit").
func (s *Server) handleSubscriptionSubmit(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	id, err := pathSubscriptionID(r)
	if err != nil {
		re.fail(err)
		return
	}
	user := authUser(r)
	subs, err := s.subscriptions.ListByUser(r.Context(), user.ID)
	if err != nil {
		re.fail(err)
		return
	}
	var found bool
	for _, sub := range subs {
		if sub.ID != id {
			continue
		}
		found = true
		s.downloads.Request(r.Context(), user.ID, sub.ExternalID)
		if err := s.subscriptions.MarkSubmitted(r.Context(), sub.ID, time.Now()); err != nil {
			re.fail(err)
			return
		}
		break
	}
	if !found {
		re.fail(sonarerr.NotFoundf("subscription %d not found", id))
		return
	}
	re.noContent()
}
