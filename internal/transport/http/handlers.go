package transporthttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"example.com/campusevents/internal/claim"
	"example.com/campusevents/internal/config"
	"example.com/campusevents/internal/domain"
	"example.com/campusevents/internal/ingest"
	"example.com/campusevents/internal/recurrence"
	"example.com/campusevents/internal/storage"
	"example.com/campusevents/internal/tags"
)

// ServerDeps holds everything the handlers need. Claims and Runner are
// optional; their routes answer 503 when unset.
type ServerDeps struct {
	Cfg    config.Config
	Store  storage.Store
	Chain  *recurrence.Chain
	Tags   *tags.Applier
	Claims *claim.Service
	Runner *ingest.Runner
	Logger *zap.Logger
	Now    func() time.Time
}

func decodeJSONStrict(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (d *ServerDeps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// writeError maps service errors onto problem responses.
func (d *ServerDeps) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteValidation(w, verr.Fields)
	case errors.Is(err, recurrence.ErrInvalidRule):
		WriteProblem(w, http.StatusUnprocessableEntity, "validation failed", err.Error(), map[string][]string{"repeat": {"cannot produce a series"}})
	case errors.Is(err, storage.ErrNotFound):
		WriteProblem(w, http.StatusNotFound, "not found", "the requested resource does not exist", nil)
	case errors.Is(err, storage.ErrConflict):
		WriteProblem(w, http.StatusConflict, "conflict", "the change conflicts with existing data", nil)
	case errors.Is(err, claim.ErrInvalidToken):
		WriteProblem(w, http.StatusGone, "claim expired", err.Error(), nil)
	case errors.Is(err, claim.ErrNotClaimable), errors.Is(err, claim.ErrNoContact):
		WriteProblem(w, http.StatusConflict, "cannot claim", err.Error(), nil)
	default:
		d.logger().Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		WriteProblem(w, http.StatusInternalServerError, "internal error", "the request could not be completed", nil)
	}
}

// pathID reads the {id} wildcard.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		WriteProblem(w, http.StatusBadRequest, "invalid parameters", "id must be a positive integer", nil)
		return 0, false
	}
	return id, true
}

// callerID reads the authenticated user from X-User-ID, set by the
// upstream auth proxy.
func callerID(r *http.Request) (int64, bool) {
	v := strings.TrimSpace(r.Header.Get("X-User-ID"))
	if v == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func requireCaller(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, ok := callerID(r)
	if !ok {
		WriteProblem(w, http.StatusUnauthorized, "unauthorized", "missing or invalid X-User-ID", nil)
	}
	return id, ok
}

// --- Health ---

func (d *ServerDeps) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (d *ServerDeps) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := d.Store.Ready(r.Context()); err != nil {
		WriteProblem(w, http.StatusServiceUnavailable, "not ready", "database not reachable", nil)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

// --- Ingest ---

// HandleIngest runs one scrape synchronously and reports the tallies. The
// run is bounded by IngestTimeout instead of the server's write timeout.
func (d *ServerDeps) HandleIngest(w http.ResponseWriter, r *http.Request) {
	defer DrainBody(r)
	if d.Runner == nil {
		WriteProblem(w, http.StatusServiceUnavailable, "unavailable", "ingestion is not configured", nil)
		return
	}
	ctx := r.Context()
	var deadline time.Time
	if d.Cfg.IngestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Cfg.IngestTimeout)
		defer cancel()
		deadline = time.Now().Add(d.Cfg.IngestTimeout + 5*time.Second)
	}
	if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		d.logger().Warn("cannot extend write deadline", zap.Error(err))
	}

	sum, err := d.Runner.Run(ctx)
	if err != nil {
		d.logger().Error("manual ingest failed", zap.Error(err))
		WriteProblem(w, http.StatusBadGateway, "ingest failed", "the feed could not be read", nil)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// --- Router ---

func (d *ServerDeps) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", d.HandleHealthz)
	mux.HandleFunc("GET /readyz", d.HandleReadyz)

	var list http.Handler = http.HandlerFunc(d.HandleListEvents)
	list = RateLimitPerMinute(d.Cfg.RateLimitListPerMin, d.Now)(list)
	mux.Handle("GET /events", list)
	mux.HandleFunc("GET /events/{id}", d.HandleGetEvent)
	mux.Handle("POST /events", d.withBody(http.HandlerFunc(d.HandleCreateEvent)))
	mux.Handle("PATCH /events/{id}", d.withBody(http.HandlerFunc(d.HandleEditEvent)))
	mux.HandleFunc("DELETE /events/{id}", d.HandleDeleteEvent)

	mux.HandleFunc("PUT /events/{id}/favorite", d.HandleLike)
	mux.HandleFunc("DELETE /events/{id}/favorite", d.HandleUnlike)
	mux.HandleFunc("POST /events/{id}/favorite", d.HandleToggleLike)
	mux.HandleFunc("GET /favorites", d.HandleListFavorites)

	mux.HandleFunc("POST /events/{id}/claim", d.HandleRequestClaim)
	mux.HandleFunc("POST /claims/{token}", d.HandleConfirmClaim)

	mux.Handle("POST /organizations", d.withBody(http.HandlerFunc(d.HandleCreateOrganization)))

	mux.HandleFunc("GET /tags", d.HandleListTags)
	var postTag http.Handler = d.withBody(http.HandlerFunc(d.HandleCreateTag))
	postTag = APIKeyAuth(d.Cfg.APIKeys)(postTag)
	mux.Handle("POST /tags", postTag)

	var runIngest http.Handler = http.HandlerFunc(d.HandleIngest)
	runIngest = APIKeyAuth(d.Cfg.APIKeys)(runIngest)
	mux.Handle("POST /ingest", runIngest)

	return AccessLog(d.logger())(mux)
}

func (d *ServerDeps) withBody(h http.Handler) http.Handler {
	h = BodyLimit(d.Cfg.MaxBodyBytes)(h)
	return RequireJSON(h)
}
