package adapthttp

import (
	"errors"
	"net/http"

	"attendance/internal/domain"
)

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user := userFromContext(r.Context())
	board, err := s.leaderboard.Get(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *Server) handleGroups(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	groups, err := s.groups.ListActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	items := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		items = append(items, map[string]any{
			"id":          g.ID,
			"name":        g.Name,
			"memberCount": g.MemberCount,
			"createdAt":   g.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// handleMyGroup reports the caller's current group, if any.
func (s *Server) handleMyGroup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user := userFromContext(r.Context())
	group, err := s.groups.MyGroup(r.Context(), user.GroupID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if group == nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"hasGroup": false,
			"message":  "you do not belong to a group yet",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hasGroup": true,
		"group": map[string]any{
			"id":       group.ID,
			"name":     group.Name,
			"isActive": group.IsActive,
		},
	})
}

func (s *Server) handleGroupJoin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		GroupID string `json:"groupId"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := userFromContext(r.Context())
	group, err := s.groups.Join(r.Context(), user.ID, req.GroupID)
	if err != nil {
		status, msg := groupErrorStatus(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "joined " + group.Name,
		"group":   map[string]any{"id": group.ID, "name": group.Name},
	})
}

func groupErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrAlreadyInGroup):
		return http.StatusConflict, "you already belong to a group"
	case errors.Is(err, domain.ErrGroupNotFound):
		return http.StatusBadRequest, "group not found or inactive"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
