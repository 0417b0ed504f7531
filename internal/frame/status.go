package frame

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/provide-io/einkframe/internal/store"
)

// Status is the body of GET /status.
type Status struct {
	Version  string        `json:"version,omitempty"`
	Uptime   string        `json:"uptime"`
	Playlist int           `json:"playlist"`
	Sync     SyncStatus    `json:"sync"`
	Display  DisplayStatus `json:"display"`
	Store    store.Stats   `json:"store"`
}

// Status collects the current state of both loops and the store.
func (d *Daemon) Status() Status {
	return Status{
		Version:  d.opts.Version,
		Uptime:   time.Since(d.started).Round(time.Second).String(),
		Playlist: d.playlist.Len(),
		Sync:     d.sync.Status(),
		Display:  d.display.Status(),
		Store:    d.opts.Store.Stats(),
	}
}

// Handler returns the status server routes.
func (d *Daemon) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Status())
	})
	r.Get("/playlist", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"paths": d.playlist.Snapshot()})
	})
	r.Post("/sync", func(w http.ResponseWriter, r *http.Request) {
		d.sync.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
