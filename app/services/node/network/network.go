// Package network is the node's HTTP front end: a client-class-aware
// request dispatcher that serializes writes into the chain-state engine.
// It is a thin, testable shim, not a peer-discovery or gossip layer.
package network

import (
	"net/http"

	"github.com/dimfeld/httptreemux/v5"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/padlocklabs/padlockd/foundation/blockchain/database"
	"github.com/padlocklabs/padlockd/foundation/blockchain/state"
)

// MetricsRecorder is the subset of app/services/node/metrics.Metrics the
// dispatcher needs after handling a propose-block request: observe the
// chain's new tip on success, or tally a rejection by error kind on
// failure. An interface, not the concrete type, so network never imports
// prometheus directly.
type MetricsRecorder interface {
	Observe(info database.ChainInfo)
	RecordRejection(kind database.ChainErrorKind)
}

// Client classes. The dispatcher reads the `client` request header to tell
// a full node peer from a thin wallet and enforces a separate connection
// cap for each.
const (
	ClientNode   = "node"
	ClientWallet = "wallet"
)

// Configuration bounds the dispatcher's behavior: one connection cap per
// client class.
type Configuration struct {
	MaxNodeConnections   int64
	MaxWalletConnections int64
}

// State holds the dispatcher's live counters, one atomic field per client
// class.
type State struct {
	nodeConns   atomic.Int64
	walletConns atomic.Int64
}

// Server wires an Engine to an HTTP mux under the per-class connection
// caps in cfg.
type Server struct {
	engine  *state.Engine
	log     *zap.SugaredLogger
	cfg     Configuration
	state   State
	mux     *httptreemux.TreeMux
	metrics MetricsRecorder
}

// New builds a Server ready to ServeHTTP. Routes are registered
// immediately so the returned Server is usable as an http.Handler. metrics
// may be nil, in which case propose-block outcomes simply aren't recorded.
func New(engine *state.Engine, log *zap.SugaredLogger, cfg Configuration, metrics MetricsRecorder) *Server {
	s := &Server{
		engine:  engine,
		log:     log,
		cfg:     cfg,
		mux:     httptreemux.New(),
		metrics: metrics,
	}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	group := s.mux.NewGroup("/v1")
	group.GET("/node/status", s.wrapClientLimit(s.handleStatus))
	group.GET("/node/block/:hash", s.wrapClientLimit(s.handleGetBlock))
	group.POST("/node/block/propose", s.wrapClientLimit(s.handleProposeBlock))
}
