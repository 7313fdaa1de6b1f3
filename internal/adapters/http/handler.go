package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/unrolled/render"

	"github.com/keeval/keeval/internal/domain"
	"github.com/keeval/keeval/internal/metrics"
)

// Route paths. Administrative routes live under "/-/" so they never collide
// with single-segment keys.
const (
	RouteKey         = "/{key}"
	RouteConsolidate = "/consolidate"
	RouteHealth      = "/-/healthz"
	RouteMetrics     = "/-/metrics"
)

// DefaultMaxBodyBytes bounds request bodies when HandlerConfig leaves it unset.
const DefaultMaxBodyBytes = 32 << 20 // 32MB

// Store is the engine API the HTTP layer needs.
type Store interface {
	Get(key string) (domain.Value, error)
	Set(key string, value domain.Value) error
	Delete(key string) error
	Consolidate() error
}

// HandlerConfig configures the HTTP boundary.
type HandlerConfig struct {
	// MaxBodyBytes limits POST bodies. Zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Logger receives access logs and request-scoped errors.
	Logger zerolog.Logger

	// Metrics, when set, records per-route metrics and serves RouteMetrics.
	Metrics *metrics.Metrics
}

type handler struct {
	store   Store
	rd      *render.Render
	maxBody int64
}

// response is the body of every key route reply.
type response struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Value   *domain.Value `json:"value,omitempty"`
}

type setRequest struct {
	Value *domain.Value `json:"value"`
}

// NewHandler returns the HTTP handler for store.
func NewHandler(store Store, cfg HandlerConfig) http.Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	h := &handler{
		store:   store,
		rd:      render.New(render.Options{UnEscapeHTML: true}),
		maxBody: cfg.MaxBodyBytes,
	}

	router := mux.NewRouter().UseEncodedPath()
	if cfg.Metrics != nil {
		router.Use(instrument(cfg.Metrics))
		router.Handle(RouteMetrics, cfg.Metrics.Handler()).Methods(http.MethodGet)
	}
	router.HandleFunc(RouteHealth, h.health).Methods(http.MethodGet)
	router.HandleFunc(RouteConsolidate, h.consolidate).Methods(http.MethodPost)
	router.HandleFunc(RouteKey, h.get).Methods(http.MethodGet)
	router.HandleFunc(RouteKey, h.set).Methods(http.MethodPost)
	router.HandleFunc(RouteKey, h.delete).Methods(http.MethodDelete)

	var chain http.Handler = router
	chain = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.EscapedPath()).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	})(chain)
	chain = hlog.RequestIDHandler("req_id", "X-Request-Id")(chain)
	chain = hlog.NewHandler(cfg.Logger)(chain)
	return chain
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	key, ok := h.key(w, r)
	if !ok {
		return
	}
	v, err := h.store.Get(key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.rd.JSON(w, http.StatusOK, response{Status: "success", Message: "Value retrieved", Value: &v})
}

func (h *handler) set(w http.ResponseWriter, r *http.Request) {
	key, ok := h.key(w, r)
	if !ok {
		return
	}

	var req setRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.rd.JSON(w, http.StatusRequestEntityTooLarge, errorResponse("Request body too large"))
		case errors.Is(err, domain.ErrUnsupportedValueType):
			h.rd.JSON(w, http.StatusBadRequest, errorResponse("Unsupported value type"))
		default:
			h.rd.JSON(w, http.StatusBadRequest, errorResponse("Invalid request body"))
		}
		return
	}
	if req.Value == nil {
		h.rd.JSON(w, http.StatusBadRequest, errorResponse("Unsupported value type"))
		return
	}

	if err := h.store.Set(key, *req.Value); err != nil {
		h.fail(w, r, err)
		return
	}
	h.rd.JSON(w, http.StatusCreated, response{Status: "success", Message: "Value set successfully"})
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	key, ok := h.key(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(key); err != nil {
		h.fail(w, r, err)
		return
	}
	h.rd.JSON(w, http.StatusOK, response{Status: "success", Message: "Key-value pair deleted"})
}

func (h *handler) consolidate(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Consolidate(); err != nil {
		h.fail(w, r, err)
		return
	}
	h.rd.JSON(w, http.StatusOK, response{Status: "success", Message: "Consolidation complete"})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	h.rd.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// key returns the percent-decoded key path segment.
func (h *handler) key(w http.ResponseWriter, r *http.Request) (string, bool) {
	key, err := url.PathUnescape(mux.Vars(r)["key"])
	if err != nil {
		h.rd.JSON(w, http.StatusBadRequest, errorResponse("Invalid key"))
		return "", false
	}
	return key, true
}

// fail maps engine errors onto status codes.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrKeyNotFound):
		h.rd.JSON(w, http.StatusNotFound, errorResponse("Key not found"))
	case errors.Is(err, domain.ErrInvalidKey):
		h.rd.JSON(w, http.StatusBadRequest, errorResponse("Invalid key"))
	case errors.Is(err, domain.ErrUnsupportedValueType):
		h.rd.JSON(w, http.StatusBadRequest, errorResponse("Unsupported value type"))
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("storage failure")
		h.rd.JSON(w, http.StatusInternalServerError, errorResponse("Storage error"))
	}
}

func errorResponse(msg string) response {
	return response{Status: "error", Message: msg}
}
