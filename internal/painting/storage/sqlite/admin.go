package sqlite

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/pointpainting/internal/httputil"
)

// AttachAdminRoutes mounts debug handlers on mux: a tailsql console over the
// run database and JSON listings of runs and their frames.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Painting runs",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	store := NewRunStore(db, nil)
	debug.Handle("painting-runs", "Recent painting runs (JSON, ?limit=N)", runsHandler(store))
	debug.Handle("painting-frames", "Frames of one run (JSON, ?run=ID)", framesHandler(store))
	return nil
}

func runsHandler(store *RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		limit, err := httputil.QueryInt(r, "limit", 20)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		runs, err := store.ListRuns(limit)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, runs)
	}
}

func framesHandler(store *RunStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httputil.MethodNotAllowed(w)
			return
		}
		runID := r.URL.Query().Get("run")
		if runID == "" {
			httputil.BadRequest(w, "missing run parameter")
			return
		}
		if _, err := store.GetRun(runID); err != nil {
			if errors.Is(err, ErrRunNotFound) {
				httputil.NotFound(w, err.Error())
				return
			}
			httputil.InternalServerError(w, err.Error())
			return
		}
		frames, err := store.ListFrames(runID)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, frames)
	}
}
