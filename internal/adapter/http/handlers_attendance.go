package adapthttp

import (
	"errors"
	"net/http"

	"attendance/internal/app"
)

// handleScan redeems one scan code for the authenticated user. A repeated
// scan of the same session is a 200 with added=false, by contract.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var body struct {
		QRCode string `json:"qrCode"`
	}
	if err := parseJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user := userFromContext(r.Context())
	result, err := s.attendance.Redeem(r.Context(), user.ID, body.QRCode)
	if err != nil {
		status, msg := scanErrorStatus(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// scanErrorStatus maps redemption failures to client-facing rejections.
// Anything unrecognized is a storage fault and surfaces as a 500.
func scanErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrCodeMalformed),
		errors.Is(err, app.ErrCodeInvalid),
		errors.Is(err, app.ErrCodeExpired),
		errors.Is(err, app.ErrSessionInactive),
		errors.Is(err, app.ErrSessionNotStarted),
		errors.Is(err, app.ErrSessionEnded):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, app.ErrSessionNotFound):
		return http.StatusNotFound, err.Error()
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
