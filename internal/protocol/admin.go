package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// StatsProvider is implemented by engines that can report a compact
// snapshot of their internal state for the admin surface. The
// log-structured engine reports segment/key counts. The bbolt-backed
// alternate engine does not implement it; with no provider, /stats returns
// a JSON null.
type StatsProvider interface {
	Stats() map[string]any
}

// Admin is a small HTTP surface (GET /healthz, GET /stats) bolted onto the
// server, generalized from the teacher's original use of gorilla/mux for
// its entire API now that the primary protocol is the line-oriented TCP
// format of §4.5.
type Admin struct {
	addr  string
	stats StatsProvider
	log   *zap.SugaredLogger

	mu sync.Mutex
	ln net.Listener
}

func NewAdmin(addr string, stats StatsProvider, log *zap.SugaredLogger) *Admin {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Admin{addr: addr, stats: stats, log: log}
}

func (a *Admin) Run(ctx context.Context) error {
	if a.addr == "" {
		return nil
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", a.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/stats", a.handleStats).Methods(http.MethodGet)

	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.ln = ln
	a.mu.Unlock()

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 5 * time.Second}
	a.log.Infow("admin http surface listening", "addr", a.addr)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		return srv.Close()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (a *Admin) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}

func (a *Admin) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *Admin) handleStats(w http.ResponseWriter, _ *http.Request) {
	var body map[string]any
	if a.stats != nil {
		body = a.stats.Stats()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}
