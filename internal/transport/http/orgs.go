package transporthttp

import (
	"net/http"
	"strings"

	"example.com/campusevents/internal/domain"
)

type createOrgReq struct {
	Name    string  `json:"name"`
	Leaders []int64 `json:"leaders"`
}

// HandleCreateOrganization registers an organization led by the caller and
// any extra leaders named in the body.
func (d *ServerDeps) HandleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	uid, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req createOrgReq
	if err := decodeJSONStrict(r, &req); err != nil {
		WriteProblem(w, http.StatusBadRequest, "invalid json", err.Error(), nil)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > domain.MaxTitleLen {
		WriteValidation(w, []domain.FieldError{{Field: "name", Msg: "required, at most 256 characters"}})
		return
	}

	org := &domain.Organization{Name: name, LeaderIDs: []int64{uid}}
	for _, id := range req.Leaders {
		if id != uid {
			org.LeaderIDs = append(org.LeaderIDs, id)
		}
	}
	if err := d.Store.CreateOrganization(r.Context(), org); err != nil {
		d.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}
