package transporthttp

import (
	"net/http"
	"strings"

	"example.com/campusevents/internal/domain"
)

type createTagReq struct {
	Name            string `json:"name"`
	SelectedDefault bool   `json:"selectedDefault"`
}

func (d *ServerDeps) HandleListTags(w http.ResponseWriter, r *http.Request) {
	ts, err := d.Store.ListTags(r.Context())
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	if ts == nil {
		ts = []domain.Tag{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tags": ts})
}

func (d *ServerDeps) HandleCreateTag(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	var req createTagReq
	if err := decodeJSONStrict(r, &req); err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid json", err.Error(), nil)
		return
	}
	if strings.TrimSpace(req.Name) == "" || len(req.Name) > domain.MaxTagLen {
		WriteValidation(w, []domain.FieldError{{Field: "name", Msg: "required, at most 64 characters"}})
		return
	}
	if d.Tags.Normalizer.Normalize(req.Name) == "" {
		WriteValidation(w, []domain.FieldError{{Field: "name", Msg: "has no usable characters"}})
		return
	}
	name, err := d.Tags.Create(r.Context(), req.Name, req.SelectedDefault)
	if err != nil {
		d.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"name": name})
}
