package adapthttp

import (
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"attendance/internal/app"
	"attendance/internal/domain"
)

// handleSessions creates a session (POST) or lists all sessions (GET).
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessions, err := s.sessions.List(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		items := make([]map[string]any, 0, len(sessions))
		for _, sess := range sessions {
			items = append(items, sessionJSON(&sess))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})

	case http.MethodPost:
		var req struct {
			Name     string    `json:"name"`
			StartsAt time.Time `json:"startsAt"`
			EndsAt   time.Time `json:"endsAt"`
		}
		if err := parseJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		created, err := s.sessions.Create(r.Context(), req.Name, req.StartsAt, req.EndsAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		resp := sessionJSON(&created.Session)
		resp["payload"] = created.Payload
		writeJSON(w, http.StatusCreated, resp)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleSessionQR returns a fresh scan code for an existing session as a
// base64 PNG data URL.
func (s *Server) handleSessionQR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	sess, png, err := s.sessions.QRCode(r.Context(), sessionID)
	if errors.Is(err, app.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sess.SessionID,
		"name":      sess.Name,
		"qrCode":    "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

func (s *Server) handleSessionDeactivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		SessionID string `json:"sessionId"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := s.sessions.Deactivate(r.Context(), req.SessionID)
	if errors.Is(err, app.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "session deactivated", "sessionId": req.SessionID})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Name           string      `json:"name"`
		Email          string      `json:"email"`
		Identification string      `json:"identification"`
		PIN            string      `json:"pin"`
		Role           domain.Role `json:"role"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := s.auth.CreateUser(r.Context(), req.Name, req.Email, req.Identification, req.PIN, req.Role)
	if errors.Is(err, app.ErrUserExists) {
		writeError(w, http.StatusConflict, "user already exists")
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      user.ID,
		"name":    user.Name,
		"email":   user.Email,
		"role":    user.Role,
		"flowers": user.Flowers,
	})
}

// handleSyncUsers bulk-upserts a roster of users posted as JSON.
func (s *Server) handleSyncUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Users []app.UserImport `json:"users"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Users) == 0 {
		writeError(w, http.StatusBadRequest, "users is required")
		return
	}

	result, err := s.auth.SyncUsers(r.Context(), req.Users)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleGroupAssign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		UserID  string `json:"userId"`
		GroupID string `json:"groupId"`
		Reason  string `json:"reason"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	admin := userFromContext(r.Context())
	group, err := s.groups.Assign(r.Context(), req.UserID, req.GroupID, admin.ID, req.Reason)
	if err != nil {
		status, msg := groupErrorStatus(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "group assigned",
		"group":   map[string]any{"id": group.ID, "name": group.Name},
	})
}

func sessionJSON(sess *domain.Session) map[string]any {
	return map[string]any{
		"id":        sess.ID,
		"sessionId": sess.SessionID,
		"name":      sess.Name,
		"startsAt":  sess.StartsAt,
		"endsAt":    sess.EndsAt,
		"isActive":  sess.IsActive,
		"createdAt": sess.CreatedAt,
	}
}
