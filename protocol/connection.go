// File: protocol/connection.go
// Package protocol implements the per-connection WebSocket state machine.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Conn owns one transport for its whole life:
//
//	AwaitingHandshake --GET request--> Open --close frame / fatal error--> Closed
//
// Bytes are accumulated until a complete request head or frame is available,
// frames are handled strictly in arrival order, and at most one reply is
// written per frame.

package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/momentics/hioload-gps/api"
	"github.com/momentics/hioload-gps/control"
	"github.com/momentics/hioload-gps/pool"
)

// DefaultMaxFrameSize caps the payload a connection will buffer for one frame.
const DefaultMaxFrameSize = 1 << 20 // 1 MiB

// State is the protocol state of a Conn.
type State int32

const (
	StateAwaitingHandshake State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingHandshake:
		return "awaiting-handshake"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn drives one client connection.
type Conn struct {
	tr       api.Transport
	d        *Dispatcher
	log      *zap.Logger
	metrics  *control.Metrics
	bufPool  *pool.BytePool
	idle     time.Duration
	maxFrame uint64

	state   atomic.Int32
	pending []byte
	discard uint64 // bytes of an oversized frame still to be skipped

	closeOnce sync.Once
	closeErr  error
}

// ConnOption customizes a Conn.
type ConnOption func(*Conn)

// WithLogger sets the connection logger.
func WithLogger(l *zap.Logger) ConnOption {
	return func(c *Conn) { c.log = l }
}

// WithMetrics sets the registry receiving connection counters.
func WithMetrics(m *control.Metrics) ConnOption {
	return func(c *Conn) { c.metrics = m }
}

// WithBufferPool sets the pool the read buffer is borrowed from.
func WithBufferPool(p *pool.BytePool) ConnOption {
	return func(c *Conn) { c.bufPool = p }
}

// WithIdleTimeout closes the connection when no byte arrives for d. Zero waits forever.
func WithIdleTimeout(d time.Duration) ConnOption {
	return func(c *Conn) { c.idle = d }
}

// WithMaxFrameSize caps the payload length accepted for one frame. Zero disables the cap.
func WithMaxFrameSize(n uint64) ConnOption {
	return func(c *Conn) { c.maxFrame = n }
}

// NewConn wraps tr; the handshake has not happened yet.
func NewConn(tr api.Transport, d *Dispatcher, opts ...ConnOption) *Conn {
	c := &Conn{
		tr:       tr,
		d:        d,
		log:      zap.NewNop(),
		metrics:  control.NewMetrics(),
		bufPool:  pool.Default(),
		maxFrame: DefaultMaxFrameSize,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// State returns the current protocol state. Safe for concurrent use.
func (c *Conn) State() State {
	return State(c.state.Load())
}

func (c *Conn) setState(s State) {
	c.state.Store(int32(s))
}

// Close releases the transport. Idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		c.closeErr = c.tr.Close()
	})
	return c.closeErr
}

// Serve runs the connection until it closes. It returns nil when the peer hangs up,
// sends a close frame, or ctx is cancelled; otherwise the error that forced the close.
func (c *Conn) Serve(ctx context.Context) (err error) {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer func() {
		stop()
		err = multierr.Append(err, c.Close())
	}()

	buf := c.bufPool.GetBuffer()
	defer c.bufPool.PutBuffer(buf)

	for {
		if c.idle > 0 {
			if derr := c.tr.SetReadDeadline(time.Now().Add(c.idle)); derr != nil {
				return api.WrapError(api.ErrCodeTransport, "set read deadline", derr)
			}
		}

		n, rerr := c.tr.Read(buf)
		if n > 0 {
			c.metrics.Add(control.MetricBytesReceived, int64(n))
			c.resync(buf[:n])
			c.pending = append(c.pending, buf[:n]...)
			done, perr := c.process(ctx)
			if done {
				return perr
			}
		}
		if rerr != nil {
			return c.readError(ctx, rerr)
		}
	}
}

func (c *Conn) readError(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		c.log.Debug("connection cancelled")
		return nil
	case errors.Is(err, io.EOF):
		c.log.Debug("peer hung up")
		return nil
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		c.log.Info("idle timeout", zap.Duration("idle", c.idle))
	}
	return api.WrapError(api.ErrCodeTransport, "read", err)
}

// resync drops a partial frame left over from before the handshake when a new read
// starts a request, so the request is not decoded as that frame's payload.
func (c *Conn) resync(chunk []byte) {
	if c.State() != StateAwaitingHandshake || !IsHandshakeRequest(chunk) {
		return
	}
	if len(c.pending) == 0 && c.discard == 0 {
		return
	}
	if len(c.pending) > 0 && looksLikeRequest(c.pending) {
		return
	}
	c.log.Debug("discarding partial frame before handshake", zap.Int("bytes", len(c.pending)))
	c.pending = c.pending[:0]
	c.discard = 0
}

// process consumes as much of c.pending as forms complete units.
// done reports that the connection must close.
func (c *Conn) process(ctx context.Context) (done bool, err error) {
	consumed := 0
	defer func() {
		if consumed > 0 {
			c.pending = append(c.pending[:0], c.pending[consumed:]...)
		}
	}()

	for consumed < len(c.pending) {
		buf := c.pending[consumed:]

		if c.discard > 0 {
			skip := min(c.discard, uint64(len(buf)))
			consumed += int(skip)
			c.discard -= skip
			continue
		}

		if c.State() == StateAwaitingHandshake && looksLikeRequest(buf) {
			n, herr := c.handshake(buf)
			if herr != nil {
				return true, herr
			}
			if n == 0 {
				return false, nil
			}
			consumed += n
			continue
		}

		f, n, derr := DecodeFrameLimit(buf, c.maxFrame)
		if derr != nil {
			if errors.Is(derr, ErrIncomplete) {
				return false, nil
			}
			c.metrics.Inc(control.MetricDecodeErrors)
			c.log.Warn("dropping oversized frame", zap.Int("buffered", len(buf)), zap.Error(derr))
			c.discard = uint64(len(buf))
			var de *DecodeError
			if errors.As(derr, &de) && de.Need > 0 {
				c.discard = de.Need
			}
			continue
		}
		consumed += n
		c.metrics.Inc(control.MetricFramesReceived)
		c.log.Debug("frame received", zap.Uint8("opcode", f.Opcode), zap.Uint64("len", f.PayloadLen))

		act := c.d.Dispatch(ctx, f)
		if act.Reply != nil {
			if werr := c.write(act.Reply); werr != nil {
				return true, werr
			}
			c.metrics.Inc(control.MetricFramesSent)
		}
		if act.Close {
			c.setState(StateClosed)
			if act.Err != nil {
				c.log.Warn("closing connection", zap.Error(act.Err))
			} else {
				c.log.Info("connection closed by peer")
			}
			return true, act.Err
		}
	}
	return false, nil
}

// handshake answers a complete request head at the start of buf and returns its length,
// or 0 when more bytes are needed.
func (c *Conn) handshake(buf []byte) (int, error) {
	end := HandshakeComplete(buf)
	if end < 0 {
		if len(buf) > MaxHandshakeSize {
			c.metrics.Inc(control.MetricHandshakeErrors)
			return 0, &HandshakeError{Err: ErrHandshakeTooLarge}
		}
		return 0, nil
	}

	resp, err := ComposeHandshakeResponse(string(buf[:end]))
	if err != nil {
		c.metrics.Inc(control.MetricHandshakeErrors)
		c.log.Warn("handshake rejected", zap.Error(err))
		return 0, err
	}
	if err := c.write(resp); err != nil {
		return 0, err
	}
	c.setState(StateOpen)
	c.metrics.Inc(control.MetricHandshakes)
	c.log.Info("handshake done")
	return end, nil
}

func (c *Conn) write(b []byte) error {
	n, err := c.tr.Write(b)
	c.metrics.Add(control.MetricBytesSent, int64(n))
	if err != nil {
		return api.WrapError(api.ErrCodeTransport, "write", err)
	}
	return nil
}

// looksLikeRequest reports whether buf is, or may still become, a GET request line.
func looksLikeRequest(buf []byte) bool {
	if IsHandshakeRequest(buf) {
		return true
	}
	return len(buf) < 3 && bytes.HasPrefix([]byte("GET"), buf)
}
