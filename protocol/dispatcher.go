// File: protocol/dispatcher.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Dispatcher maps a decoded frame to an Action: a reply to write, whether to close,
// and the error that caused the close.

package protocol

import (
	"context"

	"go.uber.org/zap"

	"github.com/momentics/hioload-gps/api"
	"github.com/momentics/hioload-gps/control"
	"github.com/momentics/hioload-gps/gps"
)

// ReplyOK is the payload acknowledging a stored record.
const ReplyOK = "OK"

// Action is the outcome of dispatching one frame.
type Action struct {
	Reply []byte // bytes to write, nil for none
	Close bool   // tear the connection down after writing Reply
	Err   error  // cause of Close, nil for a graceful close
}

// Dispatcher routes frames by opcode. It holds no per-connection state
// and may be shared by every connection of a server.
type Dispatcher struct {
	validator api.Validator
	store     api.RecordStore
	log       *zap.Logger
	metrics   *control.Metrics
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatchLogger sets the dispatcher logger.
func WithDispatchLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.log = l }
}

// WithDispatchMetrics sets the registry receiving record counters.
func WithDispatchMetrics(m *control.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher builds a Dispatcher over the validation and storage collaborators.
func NewDispatcher(v api.Validator, s api.RecordStore, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		validator: v,
		store:     s,
		log:       zap.NewNop(),
		metrics:   control.NewMetrics(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Dispatch decides what to do with f.
func (d *Dispatcher) Dispatch(ctx context.Context, f *Frame) Action {
	switch {
	case f.IsText():
		return d.handleText(ctx, f.Text())
	case f.IsPing():
		d.log.Debug("ping received, replying pong")
		return Action{Reply: GeneratePong()}
	case f.IsPong():
		d.log.Debug("pong received")
		return Action{}
	case f.IsClose():
		d.log.Debug("close frame received")
		return Action{Close: true}
	default:
		d.metrics.Inc(control.MetricFramesIgnored)
		d.log.Debug("ignoring unsupported opcode", zap.Uint8("opcode", f.Opcode))
		return Action{}
	}
}

func (d *Dispatcher) handleText(ctx context.Context, text string) Action {
	d.log.Debug("text received", zap.String("payload", text))

	if !d.validator.Validate(text) {
		d.metrics.Inc(control.MetricRecordsRejected)
		d.log.Warn("payload rejected by validator", zap.String("payload", text))
		return Action{Close: true, Err: api.NewError(api.ErrCodeValidation, "payload rejected").
			WithContext("payload", text)}
	}

	rec, err := gps.ParseRecord(text)
	if err != nil {
		d.metrics.Inc(control.MetricRecordsRejected)
		d.log.Warn("payload failed to parse", zap.String("payload", text), zap.Error(err))
		return Action{Close: true, Err: api.WrapError(api.ErrCodeValidation, "payload rejected", err)}
	}

	if err := d.store.StoreRecord(ctx, rec); err != nil {
		d.metrics.Inc(control.MetricStoreFailures)
		d.log.Error("storing record failed", zap.Uint32("device_id", rec.DeviceID), zap.Error(err))
		return Action{Close: true, Err: api.WrapError(api.ErrCodeStorage, "store record", err)}
	}
	d.metrics.Inc(control.MetricRecordsStored)

	reply, err := EncodeText([]byte(ReplyOK))
	if err != nil {
		// a two byte payload always encodes
		return Action{Close: true, Err: err}
	}
	return Action{Reply: reply}
}
