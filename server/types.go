package server

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-gps/api"
	"github.com/momentics/hioload-gps/control"
	"github.com/momentics/hioload-gps/internal/concurrency"
	"github.com/momentics/hioload-gps/pool"
	"github.com/momentics/hioload-gps/protocol"
)

// Config holds all server-side configuration parameters.
type Config struct {
	ListenAddr      string        // TCP bind address, e.g. "127.0.0.1:8080"
	Workers         int           // connections served concurrently
	MaxPending      int           // accepted connections allowed to wait for a worker (0 = unbounded)
	ReadBufferSize  int           // bytes read from the socket per call
	MaxFrameSize    uint64        // largest frame payload buffered (0 = unlimited)
	IdleTimeout     time.Duration // close a connection after this long without input (0 = never)
	ShutdownTimeout time.Duration // graceful shutdown timeout
	ReusePort       bool          // set SO_REUSEPORT on the listening socket where supported
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      "127.0.0.1:8080",
		Workers:         1024,
		MaxPending:      4096,
		ReadBufferSize:  pool.DefaultBufferSize,
		MaxFrameSize:    protocol.DefaultMaxFrameSize,
		IdleTimeout:     0,
		ShutdownTimeout: 30 * time.Second,
	}
}

// Server accepts TCP connections and runs one protocol.Conn per connection
// on a bounded executor.
type Server struct {
	cfg        *Config
	log        *zap.Logger
	metrics    *control.Metrics
	bufPool    *pool.BytePool
	dispatcher *protocol.Dispatcher
	exec       *concurrency.Executor
	store      api.RecordStore
	validator  api.Validator

	mu     sync.Mutex
	ln     net.Listener
	cancel context.CancelFunc
}
