package handlers

import (
	"net/http"

	"github.com/pathomation/pma-go/internal/models"
)

func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.svc.Sessions()
	list := make([]models.SessionInfo, 0, len(sessions)+1)
	seen := false
	for _, s := range sessions {
		list = append(list, models.SessionInfo{
			ID:           s.ID,
			BaseURL:      s.BaseURL,
			Downloaded:   h.svc.Downloaded(s.ID),
			RegisteredAt: s.RegisteredAt,
			Default:      s.ID == h.session,
		})
		seen = seen || s.ID == h.session
	}
	// The lite session is never registered.
	if !seen && h.session != "" {
		if base, err := h.svc.BaseURL(h.session); err == nil {
			list = append(list, models.SessionInfo{
				ID:         h.session,
				BaseURL:    base,
				Downloaded: h.svc.Downloaded(h.session),
				Default:    true,
			})
		}
	}
	h.writeJSON(w, list)
}
