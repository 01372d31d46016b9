package protocol

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/loxp/kvs/internal/engine"
)

// DefaultAddr is the default server endpoint (§6).
const DefaultAddr = "127.0.0.1:4000"

// Server accepts connections and serves the line protocol of §4.5. The
// engine is shared across per-connection workers behind a single mutex
// (§5): the engine itself is not concurrency-safe, and this is the one
// lock that makes it so.
type Server struct {
	addr  string
	store engine.Store
	log   *zap.SugaredLogger
	mu    sync.Mutex
	ln    net.Listener
	admin *Admin
}

// NewServer builds a Server over store, listening on addr (DefaultAddr if
// empty). If admin is non-nil it is started alongside the TCP listener.
func NewServer(addr string, store engine.Store, log *zap.SugaredLogger, admin *Admin) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{addr: addr, store: store, log: log, admin: admin}
}

// Run binds the configured address and serves until ctx is canceled or the
// listener errors. Each accepted connection is handled by its own worker;
// an errgroup supervises the accept loop and workers together
// (golang.org/x/sync/errgroup, per the pack's convention for structured
// concurrent supervision). Cancellation closes the listener, but workers do
// not watch ctx: each runs until its client closes the connection, and Run
// returns only after every worker has finished.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.ln = ln
	s.log.Infow("server listening", "addr", s.addr)

	g, ctx := errgroup.WithContext(ctx)

	if s.admin != nil {
		g.Go(func() error { return s.admin.Run(ctx) })
	}

	g.Go(func() error {
		<-ctx.Done()
		return ln.Close()
	})

	g.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			g.Go(func() error {
				s.handleConn(conn)
				return nil
			})
		}
	})

	err = g.Wait()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// handleConn runs the read-line -> dispatch -> write-line loop for one
// connection until the client closes it (§4.5, §5).
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	w := bufio.NewWriter(conn)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		tokens := ParseRequest(line)
		resp := s.dispatch(tokens)
		if _, err := w.WriteString(resp + "\n"); err != nil {
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

// dispatch executes one request against the shared engine and returns the
// single response line to write back (§4.5, §7).
func (s *Server) dispatch(tokens []string) string {
	if len(tokens) < 2 {
		return RespInvalidRequest
	}

	verb, args := tokens[0], tokens[1:]

	s.mu.Lock()
	defer s.mu.Unlock()

	switch verb {
	case "get":
		if len(args) != 1 {
			return RespInvalidRequest
		}
		value, ok, err := s.store.Get(args[0])
		if err != nil {
			s.log.Errorw("get failed", "key", args[0], "err", err)
			return err.Error()
		}
		if !ok {
			return RespKeyNotFound
		}
		return value

	case "set":
		if len(args) != 2 {
			return RespInvalidRequest
		}
		if err := s.store.Set(args[0], args[1]); err != nil {
			s.log.Errorw("set failed", "key", args[0], "err", err)
			return err.Error()
		}
		return RespOK

	case "rm":
		if len(args) != 1 {
			return RespInvalidRequest
		}
		if err := s.store.Remove(args[0]); err != nil {
			if errors.Is(err, engine.ErrKeyNotFound) {
				return RespKeyNotFound
			}
			s.log.Errorw("rm failed", "key", args[0], "err", err)
			return err.Error()
		}
		return RespOK

	default:
		return RespInvalidRequest
	}
}
