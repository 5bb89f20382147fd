// Package api serves visibility snapshots over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/splitlabs/max-visibility/internal/metrics"
	"github.com/splitlabs/max-visibility/internal/model"
	"github.com/splitlabs/max-visibility/internal/visibility"
)

// Snapshotter is the cached snapshot source. *cache.Cached satisfies it.
type Snapshotter interface {
	Snapshot(ctx context.Context, workspaceID string) (*model.CompetitiveSnapshot, error)
	Refresh(ctx context.Context, workspaceID string) (*model.CompetitiveSnapshot, error)
	Invalidate(ctx context.Context, workspaceID string) error
}

// Options configures the router's middleware.
type Options struct {
	CORSOrigins    []string
	RateLimitRPS   float64 // 0 disables rate limiting
	RateLimitBurst int
}

// Router holds handler dependencies.
type Router struct {
	snaps Snapshotter
}

// Error bodies. The repository message is part of the public contract.
const (
	msgRepository   = "failed to retrieve visibility data"
	msgInvalidate   = "failed to invalidate cached snapshot"
	msgInternal     = "internal error"
	msgRateLimited  = "rate limit exceeded"
	msgBadWorkspace = "invalid workspace id"
)

var errInvalidate = eris.New("api: invalidate cache")

// badRequest marks client errors mapped to 400.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

// NewRouter builds the HTTP handler.
func NewRouter(snaps Snapshotter, opts Options) http.Handler {
	rt := &Router{snaps: snaps}
	mux := chi.NewRouter()

	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(accessLog)
	mux.Use(middleware.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		mux.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
			MaxAge:         300,
		}))
	}

	mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("/metrics", metrics.Handler())

	mux.Route("/v1/workspaces/{workspaceID}", func(r chi.Router) {
		if opts.RateLimitRPS > 0 {
			r.Use(newIPLimiter(opts.RateLimitRPS, opts.RateLimitBurst).Middleware)
		}
		r.Get("/visibility", rt.wrap(rt.handleVisibility))
		r.Post("/events/assessment-completed", rt.wrap(rt.handleAssessmentCompleted))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (rt *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var br badRequest
		switch {
		case errors.As(err, &br):
			writeError(w, http.StatusBadRequest, br.msg)
		case eris.Is(err, visibility.ErrRepository):
			logRequestError(req, err)
			writeError(w, http.StatusInternalServerError, msgRepository)
		case eris.Is(err, errInvalidate):
			logRequestError(req, err)
			writeError(w, http.StatusInternalServerError, msgInvalidate)
		default:
			logRequestError(req, err)
			writeError(w, http.StatusInternalServerError, msgInternal)
		}
	}
}

// GET /v1/workspaces/{workspaceID}/visibility[?refresh=true]
func (rt *Router) handleVisibility(w http.ResponseWriter, req *http.Request) error {
	ws, err := workspaceParam(req)
	if err != nil {
		return err
	}

	refresh, _ := strconv.ParseBool(req.URL.Query().Get("refresh"))
	var snap *model.CompetitiveSnapshot
	if refresh {
		snap, err = rt.snaps.Refresh(req.Context(), ws)
	} else {
		snap, err = rt.snaps.Snapshot(req.Context(), ws)
	}
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, snap)
	return nil
}

// POST /v1/workspaces/{workspaceID}/events/assessment-completed
// Body (optional): {"run_id": "<id>"}
func (rt *Router) handleAssessmentCompleted(w http.ResponseWriter, req *http.Request) error {
	ws, err := workspaceParam(req)
	if err != nil {
		return err
	}

	var body struct {
		RunID string `json:"run_id"`
	}
	if req.ContentLength != 0 {
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return badRequest{msg: "invalid request body"}
		}
	}

	if err := rt.snaps.Invalidate(req.Context(), ws); err != nil {
		return eris.Wrapf(errInvalidate, "workspace %s: %v", ws, err)
	}
	zap.L().Info("api: snapshot invalidated",
		zap.String("workspace_id", ws),
		zap.String("run_id", body.RunID),
	)
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status":       "accepted",
		"workspace_id": ws,
	})
	return nil
}

func workspaceParam(req *http.Request) (string, error) {
	ws := strings.TrimSpace(chi.URLParam(req, "workspaceID"))
	if ws == "" || len(ws) > 128 {
		return "", badRequest{msg: msgBadWorkspace}
	}
	return ws, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func logRequestError(req *http.Request, err error) {
	zap.L().Error("api: request failed",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.String("request_id", middleware.GetReqID(req.Context())),
		zap.Error(err),
	)
}
