package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streamd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListModels() []types.Model
	Loaded() *types.LoadedModel
	Status() types.StatusResponse
	Ready() bool
	Load(ctx context.Context, req types.LoadModelRequest) (types.LoadedModel, error)
	Unload() error
	Generate(ctx context.Context, req types.GenerateRequest, w io.Writer, flush func()) error
	ChatCompletion(ctx context.Context, req types.ChatCompletionRequest, w io.Writer, flush func()) error
}

// streamFunc runs one generation against the service, writing SSE frames to w.
type streamFunc func(ctx context.Context, w io.Writer, flush func()) error

type api struct {
	svc Service
}

// NewMux builds the HTTP router for svc.
func NewMux(svc Service) http.Handler {
	a := &api{svc: svc}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	// Event streams are never compressed; the JSON routes are.
	r.Post("/v1/chat/completions", inflight("/v1/chat/completions", a.chatCompletions))
	r.Post("/v1/generate", inflight("/v1/generate", a.generate))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Get("/models", a.models)
		r.Get("/status", a.status)
		r.Post("/v1/models/load", a.load)
		r.Post("/v1/models/unload", a.unload)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no model loaded"))
	})

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

// models godoc
//
// @Summary  List models
// @Tags     models
// @Produce  json
// @Success  200 {object} types.ModelsResponse
// @Router   /models [get]
func (a *api) models(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, types.ModelsResponse{Models: a.svc.ListModels(), Loaded: a.svc.Loaded()})
}

// status godoc
//
// @Summary  Server status
// @Tags     status
// @Produce  json
// @Success  200 {object} types.StatusResponse
// @Router   /status [get]
func (a *api) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.svc.Status())
}

// load godoc
//
// @Summary  Load a model, replacing the current one
// @Tags     models
// @Accept   json
// @Produce  json
// @Param    request body types.LoadModelRequest true "model to load"
// @Success  200 {object} types.LoadedModel
// @Failure  400 {object} types.ErrorResponse
// @Failure  404 {object} types.ErrorResponse
// @Failure  503 {object} types.ErrorResponse
// @Router   /v1/models/load [post]
func (a *api) load(w http.ResponseWriter, r *http.Request) {
	var req types.LoadModelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Model) == "" {
		writeJSONError(w, http.StatusBadRequest, "model is required")
		return
	}
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	loaded, err := a.svc.Load(ctx, req)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, loaded)
}

// unload godoc
//
// @Summary  Unload the current model
// @Tags     models
// @Produce  json
// @Success  200 {object} map[string]string
// @Failure  400 {object} types.ErrorResponse
// @Router   /v1/models/unload [post]
func (a *api) unload(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.Unload(); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "unloaded"})
}

// chatCompletions godoc
//
// @Summary  Chat completion streamed as server-sent events
// @Tags     generation
// @Accept   json
// @Produce  text/event-stream
// @Param    request body types.ChatCompletionRequest true "chat transcript and sampling parameters"
// @Success  200 {object} types.StreamChunk
// @Failure  400 {object} types.ErrorResponse
// @Failure  429 {object} types.ErrorResponse
// @Router   /v1/chat/completions [post]
func (a *api) chatCompletions(w http.ResponseWriter, r *http.Request) {
	var req types.ChatCompletionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a.stream(w, r, func(ctx context.Context, out io.Writer, flush func()) error {
		return a.svc.ChatCompletion(ctx, req, out, flush)
	})
}

// generate godoc
//
// @Summary  Raw prompt completion streamed as server-sent events
// @Tags     generation
// @Accept   json
// @Produce  text/event-stream
// @Param    request body types.GenerateRequest true "prompt and sampling parameters"
// @Success  200 {object} types.StreamChunk
// @Failure  400 {object} types.ErrorResponse
// @Failure  429 {object} types.ErrorResponse
// @Router   /v1/generate [post]
func (a *api) generate(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	a.stream(w, r, func(ctx context.Context, out io.Writer, flush func()) error {
		return a.svc.Generate(ctx, req, out, flush)
	})
}

// stream runs fn against a lazily started event stream. Errors returned
// before the first frame become JSON errors; after that the stream already
// carries its own terminal chunk and the error is only logged.
func (a *api) stream(w http.ResponseWriter, r *http.Request, fn streamFunc) {
	rl := newRequestLog(r)
	rl.begin()

	sse := newSSEWriter(w)
	out := io.Writer(sse)
	if rl.lvl >= LevelDebug {
		out = io.MultiWriter(sse, &frameLogger{log: logger(), rid: rl.rid})
	}

	// Shutdown cancels in-flight streams as well as client disconnects.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	err := fn(ctx, out, sse.Flush)
	switch {
	case err == nil:
		rl.end(http.StatusOK, nil)
	case sse.started:
		rl.end(http.StatusOK, err)
	case r.Context().Err() != nil:
		// Client went away before anything was sent.
		rl.end(499, err)
	default:
		status := statusFor(err)
		if status == http.StatusTooManyRequests {
			IncrementBackpressure("too_busy")
		}
		writeJSONError(w, status, err.Error())
		rl.end(status, err)
	}
}

func (a *api) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger().Error().Int("status", status).Err(err).Msg("request failed")
	}
	writeJSONError(w, status, err.Error())
}

// decodeJSON enforces the JSON content type and body size limit, then
// decodes the body into v. It writes the error response itself.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
