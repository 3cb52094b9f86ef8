package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/openportal-go/openportal/health"
	"github.com/openportal-go/openportal/internal/logger"
	"github.com/openportal-go/openportal/internal/metrics"
	"github.com/openportal-go/openportal/transport"
)

// Run starts every connection this agent's configuration describes — one
// reconnect-supervised client per configured Server, and a single inbound
// Listener if any Clients are configured — and blocks until ctx is
// cancelled or one of them fails (spec.md §4.2: clients and the server
// role run concurrently within one process).
func (rt *Runtime) Run(ctx context.Context, listenAddr string) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for _, server := range rt.Config.Servers {
		server := server
		group.Go(func() error {
			transport.RunClient(groupCtx, rt.Config.Name, server, rt.SetupConnection)
			return nil
		})
	}

	if len(rt.Config.Clients) > 0 && listenAddr != "" {
		listener := transport.NewListener(rt.Config, rt.SetupConnection)
		mux := http.NewServeMux()
		mux.Handle("/", listener.Handler())
		mux.Handle("/metrics", metrics.Handler())
		mux.HandleFunc("/health", rt.serveHealth)
		mux.HandleFunc("/jobs", rt.serveJobs)

		server := &http.Server{Addr: listenAddr, Handler: mux}
		group.Go(func() error {
			rt.log.Info("listening", logger.String("addr", listenAddr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		group.Go(func() error {
			<-groupCtx.Done()
			return server.Close()
		})
	}

	return group.Wait()
}

func (rt *Runtime) serveHealth(w http.ResponseWriter, r *http.Request) {
	status := rt.Health.GetOverallStatus(r.Context())
	if status != health.StatusHealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, _ = w.Write([]byte(string(status)))
}

// serveJobs is the minimal core-side job-intake surface spec.md §1 says the
// core must expose for the HTTP bridge, an out-of-scope external
// collaborator: POST originates a job (Runtime.Submit), optionally blocking
// until it resolves; DELETE drops a tracked job outright (Board.Remove).
func (rt *Runtime) serveJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.serveSubmitJob(w, r)
	case http.MethodDelete:
		rt.serveRemoveJob(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (rt *Runtime) serveSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	j, err := rt.Submit(req.Command)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("await") == "true" {
		ctx, cancel := context.WithTimeout(r.Context(), RunTimeout)
		defer cancel()
		if resolved, err := rt.Await(ctx, j); err == nil {
			j = resolved
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(j)
}

func (rt *Runtime) serveRemoveJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	rt.boardFor(rt.resolvePeer(r.URL.Query().Get("peer"))).Remove(id)
	w.WriteHeader(http.StatusNoContent)
}
