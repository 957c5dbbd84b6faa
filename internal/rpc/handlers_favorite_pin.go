// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import "net/http"

func (s *Server) handleFavoriteList(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	favorites, err := s.favorites.List(r.Context(), authUser(r).ID)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(favorites)
}

func (s *Server) handleFavoriteAdd(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	targetID, err := pathAnyID(r)
	if err != nil {
		re.fail(err)
		return
	}
	if err := s.favorites.Add(r.Context(), authUser(r).ID, targetID); err != nil {
		re.fail(err)
		return
	}
	re.noContent()
}

func (s *Server) handleFavoriteRemove(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	targetID, err := pathAnyID(r)
	if err != nil {
		re.fail(err)
		return
	}
	if err := s.favorites.Remove(r.Context(), authUser(r).ID, targetID); err != nil {
		re.fail(err)
		return
	}
	re.noContent()
}

func (s *Server) handlePinList(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	pins, err := s.pins.List(r.Context(), authUser(r).ID)
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(pins)
}

func (s *Server) handlePinSet(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	targetID, err := pathAnyID(r)
	if err != nil {
		re.fail(err)
		return
	}
	if err := s.pins.Add(r.Context(), authUser(r).ID, targetID); err != nil {
		re.fail(err)
		return
	}
	re.noContent()
}

func (s *Server) handlePinUnset(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	targetID, err := pathAnyID(r)
	if err != nil {
		re.fail(err)
		return
	}
	if err := s.pins.Remove(r.Context(), authUser(r).ID, targetID); err != nil {
		re.fail(err)
		return
	}
	re.noContent()
}
