// Package httpapi exposes the query service over HTTP/JSON.
//
// Routes live under /dynaquery. Every response is a JSON envelope:
//
//	{"ok": true,  "result": ...}
//	{"ok": false, "error": {"code": ..., "message": ..., "details": {...}}}
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"

	"github.com/roach88/dynaquery/internal/service"
)

// Request wraps an *http.Request so handlers share one signature.
type Request struct {
	*http.Request
}

// Handler serves one route and returns the response to encode.
type Handler func(ctx context.Context, r Request, api *API) *JSONResponse

// API adapts the query service to HTTP handlers.
type API struct {
	service *service.Service
	logger  log.Logger
}

// NewAPI creates an API over s.
func NewAPI(s *service.Service, logger log.Logger) *API {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &API{service: s, logger: logger}
}

// Adapt turns a Handler into an http.HandlerFunc.
func (api *API) Adapt(h Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := h(r.Context(), Request{r}, api)
		resp.Write(w)

		logger := log.With(api.logger, "method", r.Method, "path", r.URL.Path, "status", resp.status, "took", time.Since(start))
		if resp.status >= http.StatusInternalServerError {
			level.Error(logger).Log("msg", "request failed", "err", resp.err)
		} else {
			level.Debug(logger).Log("msg", "request served")
		}
	}
}

// NewRouter registers every route on a new router.
func NewRouter(api *API) *mux.Router {
	root := mux.NewRouter()
	root.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})

	router := root.PathPrefix("/dynaquery").Subrouter()

	router.HandleFunc("/views", api.Adapt(GetViews)).Methods(http.MethodGet).Name("API.GetViews")
	router.HandleFunc("/queryOne", api.Adapt(QueryOne)).Methods(http.MethodPost).Name("API.QueryOne")
	router.HandleFunc("/queryAll", api.Adapt(QueryAll)).Methods(http.MethodPost).Name("API.QueryAll")
	router.HandleFunc("/queryAll/pageNumber/{pageNum:[0-9]+}/pageSize/{pageSize:[0-9]+}", api.Adapt(QueryAll)).
		Methods(http.MethodPost).Name("API.QueryAllPaged")
	router.HandleFunc("/queryAll/query/{id:[0-9]+}", api.Adapt(QuerySaved)).
		Methods(http.MethodGet).Name("API.QuerySaved")
	router.HandleFunc("/queryAll/query/{id:[0-9]+}/pageNumber/{pageNum:[0-9]+}/pageSize/{pageSize:[0-9]+}", api.Adapt(QuerySaved)).
		Methods(http.MethodGet).Name("API.QuerySavedPaged")
	router.HandleFunc("/saveQuery/{name}/isDefault/{isDefault}", api.Adapt(SaveQuery)).
		Methods(http.MethodPost).Name("API.SaveQuery")
	router.HandleFunc("/queryReferences", api.Adapt(ListReferences)).Methods(http.MethodGet).Name("API.ListReferences")
	router.HandleFunc("/queryReferences/{id:[0-9]+}/default", api.Adapt(SetDefault)).
		Methods(http.MethodPost).Name("API.SetDefault")

	return root
}
