package network

import (
	"net/http"

	"github.com/dimfeld/httptreemux/v5"
	"github.com/google/uuid"
)

// traceIDHeader is returned on every response so a caller can correlate
// logs for a single request across the node.
const traceIDHeader = "X-Trace-ID"

// wrapClientLimit enforces the per-class connection cap declared in
// Configuration before calling next, and decrements the counter once the
// handler returns regardless of outcome.
func (s *Server) wrapClientLimit(next httptreemux.HandlerFunc) httptreemux.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		w.Header().Set(traceIDHeader, uuid.NewString())

		class := r.Header.Get("client")
		counter, limit := s.counterFor(class)
		if counter == nil {
			http.Error(w, "missing or unrecognized client header", http.StatusBadRequest)
			return
		}

		if counter.Load() >= limit {
			http.Error(w, "too many connections for client class", http.StatusTooManyRequests)
			return
		}

		counter.Add(1)
		defer counter.Add(-1)

		next(w, r, params)
	}
}

func (s *Server) counterFor(class string) (counter, int64) {
	switch class {
	case ClientNode:
		return &s.state.nodeConns, s.cfg.MaxNodeConnections
	case ClientWallet:
		return &s.state.walletConns, s.cfg.MaxWalletConnections
	default:
		return nil, 0
	}
}

// counter is the subset of *atomic.Int64 the limiter needs, so tests can
// substitute a fake.
type counter interface {
	Load() int64
	Add(int64) int64
}
