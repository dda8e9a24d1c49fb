// Package health serves the admin server's probe endpoints.
//
// GET /healthz answers 200 while the process runs and reports uptime and the
// active dictation session, if any. GET /readyz runs the registered checks:
// a failing required check turns the answer into 503 "fail", a failing
// optional one only marks the process "degraded".
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Overall and per-check status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// Checker is one named readiness check.
type Checker struct {
	Name string

	// Check returns nil when healthy. It must honour ctx.
	Check func(ctx context.Context) error

	// Optional checks report degradation without failing readiness.
	Optional bool
}

// Pinger reports reachability, e.g. a history store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker returns a required [Checker] that pings p. A nil p always
// passes so disabled backends can be registered unconditionally.
func PingChecker(name string, p Pinger) Checker {
	return Checker{Name: name, Check: func(ctx context.Context) error {
		if p == nil {
			return nil
		}
		return p.Ping(ctx)
	}}
}

// ErrNotReady is a generic failure for checks without a more specific cause.
var ErrNotReady = errors.New("not ready")

// Report is the JSON body of both endpoints.
type Report struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime,omitempty"`
	Session string            `json:"session,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Handler serves /healthz and /readyz. Checkers are fixed at construction.
type Handler struct {
	checkers []Checker
	started  time.Time
	session  func() string
}

// New returns a [Handler] evaluating checkers on every /readyz request.
func New(checkers ...Checker) *Handler {
	return &Handler{
		checkers: append([]Checker(nil), checkers...),
		started:  time.Now(),
	}
}

// ReportSession makes /healthz include the ID returned by fn. An empty ID
// means no session is running.
func (h *Handler) ReportSession(fn func() string) *Handler {
	h.session = fn
	return h
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	rep := Report{
		Status: StatusOK,
		Uptime: time.Since(h.started).Round(time.Second).String(),
	}
	if h.session != nil {
		rep.Session = h.session()
	}
	writeJSON(w, http.StatusOK, rep)
}

// Readyz runs every checker concurrently with a [checkTimeout] deadline
// derived from the request.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	var (
		mu       sync.Mutex
		checks   = make(map[string]string, len(h.checkers))
		failed   bool
		degraded bool
	)

	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
			defer cancel()
			err := c.Check(ctx)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				checks[c.Name] = StatusOK
			case c.Optional:
				checks[c.Name] = StatusDegraded + ": " + err.Error()
				degraded = true
			default:
				checks[c.Name] = StatusFail + ": " + err.Error()
				failed = true
			}
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Status: StatusOK, Checks: checks}
	code := http.StatusOK
	switch {
	case failed:
		rep.Status = StatusFail
		code = http.StatusServiceUnavailable
	case degraded:
		rep.Status = StatusDegraded
	}
	writeJSON(w, code, rep)
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
