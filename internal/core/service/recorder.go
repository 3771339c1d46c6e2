package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vibelinechat/vibeline/internal/core/domain"
	"github.com/vibelinechat/vibeline/internal/core/port"
)

const (
	recorderQueueSize    = 256
	recorderWriteTimeout = 5 * time.Second
)

type recordKind int

const (
	recordCreated recordKind = iota
	recordStatusChange
)

type recordOp struct {
	kind    recordKind
	session domain.CallSession
	id      domain.SessionID
	status  domain.CallStatus
	reason  domain.HangupReason
}

// Recorder is an asynchronous facade over a CallLog: enqueue, don't await.
// Signaling never blocks on storage; a full queue drops the write with a
// warning and a failed write is logged by the worker. Implements
// port.CallLog.
type Recorder struct {
	log  port.CallLog
	ops  chan recordOp
	quit chan struct{}
}

func NewRecorder(callLog port.CallLog) *Recorder {
	return &Recorder{
		log:  callLog,
		ops:  make(chan recordOp, recorderQueueSize),
		quit: make(chan struct{}),
	}
}

func (r *Recorder) RecordCreated(ctx context.Context, session domain.CallSession) error {
	r.enqueue(recordOp{kind: recordCreated, session: session, id: session.ID})
	return nil
}

func (r *Recorder) RecordStatusChange(ctx context.Context, id domain.SessionID, status domain.CallStatus, reason domain.HangupReason) error {
	r.enqueue(recordOp{kind: recordStatusChange, id: id, status: status, reason: reason})
	return nil
}

func (r *Recorder) enqueue(op recordOp) {
	select {
	case r.ops <- op:
	default:
		log.Warn().Str("session_id", op.id.String()).Msg("Call log queue full, dropping record")
	}
}

func (r *Recorder) Run() {
	for {
		select {
		case <-r.quit:
			// Drain what is already queued before giving up.
			for {
				select {
				case op := <-r.ops:
					r.apply(op)
				default:
					return
				}
			}
		case op := <-r.ops:
			r.apply(op)
		}
	}
}

func (r *Recorder) Stop() {
	close(r.quit)
}

func (r *Recorder) apply(op recordOp) {
	ctx, cancel := context.WithTimeout(context.Background(), recorderWriteTimeout)
	defer cancel()

	var err error
	switch op.kind {
	case recordCreated:
		err = r.log.RecordCreated(ctx, op.session)
	case recordStatusChange:
		err = r.log.RecordStatusChange(ctx, op.id, op.status, op.reason)
	}
	if err != nil {
		log.Error().Err(err).Str("session_id", op.id.String()).Msg("Call log write failed")
	}
}
