package app

import (
	"net/http"
	"strings"

	"nodetree/api/internal/store"
)

func (s *HTTPServer) handleUsers(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			filter := userFilterFromQuery(r)
			users, err := s.service.ListUsers(r.Context(), session, filter)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"users": users})
			return
		case http.MethodPost:
			var body UserInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
				return
			}
			user, err := s.service.CreateUser(r.Context(), session, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusCreated, user)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
		return
	}

	if parts[2] == "me" {
		s.handleMe(w, r, session, parts)
		return
	}

	id, ok := parseID(w, parts[2])
	if !ok {
		return
	}

	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			user, err := s.service.GetUser(r.Context(), session, id)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, user)
			return
		case http.MethodPut, http.MethodPatch:
			var body UserInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
				return
			}
			user, err := s.service.UpdateUser(r.Context(), session, id, body)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, user)
			return
		case http.MethodDelete:
			payload, err := s.service.DeleteUser(r.Context(), session, id)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
		return
	}

	if len(parts) == 4 && parts[3] == "nodes-created" && r.Method == http.MethodGet {
		nodes, err := s.service.NodesCreated(r.Context(), session, id)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
		return
	}

	writeError(w, http.StatusNotFound, "not_found", "Not found", nil)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if len(parts) == 3 && r.Method == http.MethodGet {
		user, err := s.service.Me(r.Context(), session)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, user)
		return
	}

	if len(parts) == 4 && parts[3] == "update" && (r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		var body UserInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
			return
		}
		user, err := s.service.UpdateMe(r.Context(), session, body)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, user)
		return
	}

	if len(parts) == 4 && parts[3] == "change-password" && r.Method == http.MethodPost {
		var body struct {
			OldPassword     string `json:"old_password"`
			NewPassword     string `json:"new_password"`
			ConfirmPassword string `json:"confirm_password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body", err.Error(), nil)
			return
		}
		if err := s.service.ChangePassword(r.Context(), session, body.OldPassword, body.NewPassword, body.ConfirmPassword); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "not_found", "Not found", nil)
}

func userFilterFromQuery(r *http.Request) store.UserFilter {
	filter := store.UserFilter{
		Role:  strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("role"))),
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
	}
	switch strings.ToLower(strings.TrimSpace(r.URL.Query().Get("is_active"))) {
	case "true":
		active := true
		filter.IsActive = &active
	case "false":
		active := false
		filter.IsActive = &active
	}
	return filter
}
