package transporthttp

import (
	"encoding/json"
	"net/http"

	"example.com/campusevents/internal/domain"
)

type Problem struct {
	Type     string              `json:"type,omitempty"`
	Title    string              `json:"title,omitempty"`
	Status   int                 `json:"status,omitempty"`
	Detail   string              `json:"detail,omitempty"`
	Instance string              `json:"instance,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
}

func WriteProblem(w http.ResponseWriter, status int, title, detail string, errs map[string][]string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Problem{
		Title:  title,
		Status: status,
		Detail: detail,
		Errors: errs,
	})
}

// WriteValidation reports field errors as 422, grouped by field.
func WriteValidation(w http.ResponseWriter, fields []domain.FieldError) {
	prob := map[string][]string{}
	for _, fe := range fields {
		prob[fe.Field] = append(prob[fe.Field], fe.Msg)
	}
	WriteProblem(w, http.StatusUnprocessableEntity, "validation failed", "one or more fields are invalid", prob)
}
