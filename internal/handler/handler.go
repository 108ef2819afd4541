package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"

	"netlayers/internal/adapter"
	"netlayers/internal/discovery"
	"netlayers/internal/domain"
	"netlayers/internal/icon"
	"netlayers/internal/layout"
	"netlayers/internal/metrics"
	"netlayers/internal/service"
)

// MaxBodyBytes bounds request bodies
const MaxBodyBytes = 4 << 20

// AdapterLister reports the registered discovery adapters
type AdapterLister interface {
	List(ctx context.Context) []adapter.AdapterInfo
}

// Deps are the services the API is built on. Discovery, Merger, Adapters,
// Icons, Metrics and Events may be nil; their routes then answer 404 or are
// not mounted.
type Deps struct {
	Project   *service.ProjectService
	Commander *service.Commander
	Layout    *layout.Engine
	Discovery *discovery.Manager
	Merger    *discovery.Merger
	Adapters  AdapterLister
	Icons     *icon.Cache
	Metrics   *metrics.Registry
	Events    http.Handler
}

// API handles the topology editor REST API
type API struct {
	project   *service.ProjectService
	commander *service.Commander
	layout    *layout.Engine
	discovery *discovery.Manager
	merger    *discovery.Merger
	adapters  AdapterLister
	icons     *icon.Cache
	metrics   *metrics.Registry
	events    http.Handler
}

// NewAPI creates the API handlers
func NewAPI(d Deps) *API {
	return &API{
		project:   d.Project,
		commander: d.Commander,
		layout:    d.Layout,
		discovery: d.Discovery,
		merger:    d.Merger,
		adapters:  d.Adapters,
		icons:     d.Icons,
		metrics:   d.Metrics,
		events:    d.Events,
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Routes registers every endpoint on mux
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/document", a.GetDocument)
	mux.HandleFunc("GET /api/layers/{layer}/graph", a.GetLayerGraph)
	mux.HandleFunc("GET /api/layers/{layer}/isolated", a.ListIsolated)
	mux.HandleFunc("GET /api/layers/{layer}/summary", a.GetSummary)

	mux.HandleFunc("GET /api/nodes", a.ListNodes)
	mux.HandleFunc("POST /api/nodes", a.CreateNode)
	mux.HandleFunc("GET /api/nodes/{id}", a.GetNode)
	mux.HandleFunc("PUT /api/nodes/{id}", a.UpdateNode)
	mux.HandleFunc("DELETE /api/nodes/{id}", a.DeleteNode)

	mux.HandleFunc("GET /api/layers/{layer}/connections", a.ListConnections)
	mux.HandleFunc("POST /api/layers/{layer}/connections", a.CreateConnection)
	mux.HandleFunc("PUT /api/layers/{layer}/connections", a.UpdateConnection)
	mux.HandleFunc("DELETE /api/layers/{layer}/connections/{a}/{b}", a.DeleteConnection)

	mux.HandleFunc("POST /api/layers/{layer}/layout", a.ApplyLayout)
	mux.HandleFunc("PUT /api/layers/{layer}/positions", a.SetPositions)
	mux.HandleFunc("DELETE /api/layers/{layer}/positions", a.ClearPositions)

	mux.HandleFunc("POST /api/discover", a.StartDiscovery)
	mux.HandleFunc("GET /api/discover", a.DiscoveryStatus)
	mux.HandleFunc("DELETE /api/discover", a.CancelDiscovery)
	mux.HandleFunc("POST /api/discover/results", a.MergeResults)

	mux.HandleFunc("GET /api/project", a.GetProject)
	mux.HandleFunc("GET /api/project/recent", a.RecentFiles)
	mux.HandleFunc("GET /api/project/validate", a.ValidateProject)
	mux.HandleFunc("GET /api/project/snapshots", a.ListSnapshots)
	mux.HandleFunc("POST /api/project/snapshots/{id}/restore", a.RestoreSnapshot)
	mux.HandleFunc("POST /api/project/new", a.NewProject)
	mux.HandleFunc("POST /api/project/open", a.OpenProject)
	mux.HandleFunc("POST /api/project/save", a.SaveProject)
	mux.HandleFunc("POST /api/project/saveas", a.SaveProjectAs)
	mux.HandleFunc("POST /api/project/import", a.ImportProject)
	mux.HandleFunc("POST /api/project/backup", a.BackupProject)
	mux.HandleFunc("POST /api/project/restore", a.RestoreProject)
	mux.HandleFunc("GET /api/export/yaml", a.ExportYAML)

	mux.HandleFunc("GET /api/commands", a.ListCommands)
	mux.HandleFunc("POST /api/commands/{name}", a.ExecuteCommand)
	mux.HandleFunc("GET /api/icons/{type}", a.GetIcon)

	if a.events != nil {
		mux.Handle("GET /events", a.events)
	}
	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}
}

// Handler returns the routed API wrapped in the standard middleware chain
func (a *API) Handler(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()
	a.Routes(mux)
	return Chain(mux,
		Recover,
		CORS(allowedOrigins),
		Logger,
		Instrument(a.metrics),
	)
}

func writeJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode JSON: %v", err)
	}
}

func writeError(w http.ResponseWriter, msg, details string, statusCode int) {
	writeJSON(w, ErrorResponse{Error: msg, Details: details}, statusCode)
}

// statusFor maps the typed domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrParse):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with the status its type calls for. Server-side failures
// are logged.
func fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s: %v", msg, err)
	}
	writeError(w, msg, err.Error(), status)
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return &domain.ValidationError{Field: "body", Reason: err.Error()}
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &domain.ValidationError{Field: "body", Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}

func pathLayer(r *http.Request) (domain.Layer, error) {
	return domain.ParseLayer(r.PathValue("layer"))
}

func pathInt(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(r.PathValue(name))
	if err != nil || n < 1 {
		return 0, &domain.ValidationError{Field: name, Reason: "must be a positive integer"}
	}
	return n, nil
}

// clientIP returns the caller address, preferring proxy headers
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
