package transporthttp

import (
	"net/http"

	"example.com/campusevents/internal/domain"
)

func (d *ServerDeps) HandleLike(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := d.Store.Like(r.Context(), uid, id); err != nil {
		d.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (d *ServerDeps) HandleUnlike(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := d.Store.Unlike(r.Context(), uid, id); err != nil {
		d.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleToggleLike flips the caller's favorite and reports the new state.
func (d *ServerDeps) HandleToggleLike(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	liked, err := d.Store.IsLiked(ctx, uid, id)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	if liked {
		err = d.Store.Unlike(ctx, uid, id)
	} else {
		err = d.Store.Like(ctx, uid, id)
	}
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"isFavorite": !liked})
}

func (d *ServerDeps) HandleListFavorites(w http.ResponseWriter, r *http.Request) {
	uid, ok := requireCaller(w, r)
	if !ok {
		return
	}
	evs, err := d.Store.LikedEvents(r.Context(), uid)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	if evs == nil {
		evs = []*domain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evs})
}
