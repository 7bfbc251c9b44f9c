package transporthttp

import (
	"net/http"
	"strings"
)

// HandleRequestClaim emails the event's contact a confirmation link.
func (d *ServerDeps) HandleRequestClaim(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	if d.Claims == nil {
		WriteProblem(w, http.StatusServiceUnavailable, "unavailable", "claims are not configured", nil)
		return
	}
	uid, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := d.Claims.Request(r.Context(), id, uid); err != nil {
		d.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
}

func (d *ServerDeps) HandleConfirmClaim(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	if d.Claims == nil {
		WriteProblem(w, http.StatusServiceUnavailable, "unavailable", "claims are not configured", nil)
		return
	}
	token := strings.TrimSpace(r.PathValue("token"))
	if token == "" {
		WriteProblem(w, http.StatusBadRequest, "invalid parameters", "token is required", nil)
		return
	}
	ev, err := d.Claims.Confirm(r.Context(), token)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}
