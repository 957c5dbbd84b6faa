// Sonar - self-hosted music library server
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

import (
	"net/http"

	"github.com/sonarhost/sonar/internal/audit"
	"github.com/sonarhost/sonar/internal/catalog"
)

// auditSource captures the request metadata audit events record
// alongside the actor.
func auditSource(r *http.Request) audit.Source {
	return audit.Source{IPAddress: r.RemoteAddr, UserAgent: r.UserAgent()}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  catalog.User `json:"user"`
}

// handleLogin authenticates a username/password pair and mints a bearer
// token (spec §4.4 "User authentication").
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		re.fail(err)
		return
	}
	token, user, err := s.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if s.audit != nil {
			s.audit.LogAuthFailure(r.Context(), "", req.Username, auditSource(r), err.Error())
		}
		re.fail(err)
		return
	}
	if s.audit != nil {
		s.audit.LogAuthSuccess(r.Context(), audit.Actor{ID: user.ID.String(), Type: "user", Name: user.Username}, auditSource(r), "password")
	}
	re.ok(loginResponse{Token: token, User: user})
}

// handleLogout invalidates the caller's bearer token.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	s.users.Logout(bearerToken(r))
	re.noContent()
}

// handleUserList is admin-only: it returns every account, including
// non-self accounts, which the spec's "admin-only methods reject
// non-admins" gate applies to.
func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	if !s.requireAdmin(re, r) {
		return
	}
	users, err := s.users.List(r.Context())
	if err != nil {
		re.fail(err)
		return
	}
	re.ok(users)
}

func (s *Server) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	if !s.requireAdmin(re, r) {
		return
	}
	var in catalog.UserCreate
	if err := decodeJSON(r, &in); err != nil {
		re.fail(err)
		return
	}
	user, err := s.users.Create(r.Context(), in)
	if err != nil {
		re.fail(err)
		return
	}
	re.created(user)
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	re := newResponder(w, r)
	if !s.requireAdmin(re, r) {
		return
	}
	id, err := pathUserID(r)
	if err != nil {
		re.fail(err)
		return
	}
	if err := s.users.Delete(r.Context(), id); err != nil {
		re.fail(err)
		return
	}
	re.noContent()
}
