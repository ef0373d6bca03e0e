package web

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pocketwatch/internal/journal"
)

// CaptureLister is the read side of the capture journal.
type CaptureLister interface {
	Recent(n int) ([]journal.Capture, error)
}

// Deps are the optional sources behind the API. Nil members disable their
// endpoints.
type Deps struct {
	Status   *Status
	Captures CaptureLister
	Live     *HandsBroadcaster
	Logs     *LogBuffer
}

func Handler(d Deps) http.Handler {
	status := d.Status
	if status == nil {
		status = NewStatus()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if !requireGet(w, r) {
			return
		}
		writeJSON(w, status.Snapshot(time.Now().UTC()))
	})

	mux.HandleFunc("/api/captures", func(w http.ResponseWriter, r *http.Request) {
		if !requireGet(w, r) {
			return
		}
		if d.Captures == nil {
			http.Error(w, "journal unavailable", http.StatusNotFound)
			return
		}
		limit := 50
		if s := strings.TrimSpace(r.URL.Query().Get("limit")); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil || v < 1 || v > 1000 {
				http.Error(w, "limit must be an integer in [1,1000]", http.StatusBadRequest)
				return
			}
			limit = v
		}
		recs, err := d.Captures.Recent(limit)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if recs == nil {
			recs = []journal.Capture{}
		}
		writeJSON(w, struct {
			Captures []journal.Capture `json:"captures"`
		}{Captures: recs})
	})

	mux.Handle("/api/live", liveHandler(d.Live))

	if d.Logs != nil {
		mux.Handle("/api/logs", d.Logs.Handler())
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if !requireGet(w, r) {
			return
		}
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		snap := status.Snapshot(time.Now().UTC())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = fmt.Fprintf(w, "<!doctype html><html><head><meta charset=\"utf-8\"><title>pocketwatch</title></head><body>")
		_, _ = fmt.Fprintf(w, "<h1>pocketwatch</h1>")
		_, _ = fmt.Fprintf(w, "<p>See <a href=\"/api/status\">/api/status</a> and <a href=\"/api/captures\">/api/captures</a>.</p>")
		_, _ = fmt.Fprintf(w, "<pre>source=%s\nmode=%s\nhands=%d/%d/%d\nfix_complete=%t\nuptime_sec=%d</pre>",
			html.EscapeString(snap.Source), html.EscapeString(snap.Mode),
			snap.Hands.Big, snap.Hands.Medium, snap.Hands.Small,
			snap.Fix.Complete, snap.UptimeSec,
		)
		_, _ = fmt.Fprintf(w, "</body></html>")
	})

	return mux
}

func Serve(ctx context.Context, listenAddr string, d Deps) error {
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           Handler(d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// No WriteTimeout: /api/live connections are long-lived and set
		// their own per-message deadlines.
		IdleTimeout:    30 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MiB
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
