package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mastercactapus/scanbridge/bridge"
	"github.com/mastercactapus/scanbridge/transfer"
)

type api struct {
	http.Handler
	b   *bridge.Bridge
	log *slog.Logger
}

func newAPI(b *bridge.Bridge, ev *events, log *slog.Logger) *api {
	r := mux.NewRouter()
	a := &api{
		Handler: r,
		b:       b,
		log:     log,
	}

	r.HandleFunc("/api/status", a.status).Methods("GET")
	r.HandleFunc("/api/cancel", a.cancel).Methods("POST")
	r.HandleFunc("/api/retry", a.retry).Methods("POST")
	r.PathPrefix("/events/").Handler(ev.sse)
	r.Path("/").Handler(b.Hub())

	return a
}

func (a *api) status(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.b.Status()); err != nil {
		a.log.Error("encode status", "err", err)
	}
}

func (a *api) cancel(w http.ResponseWriter, req *http.Request) {
	a.b.Cancel()
	w.WriteHeader(http.StatusAccepted)
}

func (a *api) retry(w http.ResponseWriter, req *http.Request) {
	err := a.b.Retry(req.Context())
	if errors.Is(err, transfer.ErrNothingToRetry) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		a.log.Error("retry", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func withAccessLog(log *slog.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "*")
		log.Debug("request", "method", req.Method, "path", req.URL.Path, "remote", req.RemoteAddr)
		h.ServeHTTP(w, req)
	})
}
