package session

import (
	"sync"
	"time"

	"github.com/openharmony/security-deviceauth/channel"
	"github.com/openharmony/security-deviceauth/errors"
	"github.com/openharmony/security-deviceauth/pkg/log"
)

// BindTimeout and AuthTimeout are spec §4.5's per-session deadlines: 20s for
// a bind exchange (a human is present, typing a PIN), 30s for an
// already-paired device's auth exchange.
const (
	BindTimeout = 20 * time.Second
	AuthTimeout = 30 * time.Second
)

type entry struct {
	task     *Task
	ch       channel.Channel
	deadline time.Time
}

// Engine is the SessionEngine: the request_id -> *Task table spec §4.5
// requires, plus the sweep that times out abandoned sessions. Its methods
// are called from whichever goroutine starts a session or delivers an
// inbound message, and from the expiry sweep, so a single mutex guards the
// table; a Task itself holds no lock.
type Engine struct {
	mu      sync.Mutex
	entries map[int64]*entry
	log     log.Logger
	now     func() time.Time
}

// NewEngine constructs an empty SessionEngine.
func NewEngine(logger log.Logger) *Engine {
	if logger == nil {
		logger = log.Nop
	}
	return &Engine{entries: make(map[int64]*entry), log: logger, now: time.Now}
}

func (e *Engine) timeoutFor(op GroupOp) time.Duration {
	if op == GroupOpAuthenticate {
		return AuthTimeout
	}
	return BindTimeout
}

// StartClient registers a freshly minted client Task, sends its first
// message over ch, and tracks it under requestID. Returns
// CodeDuplicateRequest if requestID is already in flight.
func (e *Engine) StartClient(task *Task, ch channel.Channel) error {
	e.mu.Lock()
	if _, exists := e.entries[task.RequestID]; exists {
		e.mu.Unlock()
		return errors.Newf(errors.CodeDuplicateRequest, "request %d already in flight", task.RequestID)
	}
	msg, err := task.Start()
	if err != nil {
		e.mu.Unlock()
		return err
	}
	// Registered, and the lock released, before M1 goes out, so a loopback
	// channel that delivers the peer's reply synchronously finds this entry.
	e.entries[task.RequestID] = &entry{task: task, ch: ch, deadline: e.now().Add(e.timeoutFor(task.GroupOp))}
	e.mu.Unlock()
	data, err := Encode(msg)
	if err == nil {
		err = ch.Open(task.RequestID)
	}
	if err == nil {
		err = ch.Send(task.RequestID, data)
	}
	if err != nil {
		e.finish(task.RequestID)
		return err
	}
	return nil
}

// AcceptServer registers a server-side Task that will be driven entirely by
// inbound messages (its first message never gets sent proactively).
// Returns CodeDuplicateRequest if requestID is already in flight.
func (e *Engine) AcceptServer(task *Task, ch channel.Channel) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.entries[task.RequestID]; exists {
		return errors.Newf(errors.CodeDuplicateRequest, "request %d already in flight", task.RequestID)
	}
	if err := ch.Open(task.RequestID); err != nil {
		return err
	}
	e.entries[task.RequestID] = &entry{task: task, ch: ch, deadline: e.now().Add(e.timeoutFor(task.GroupOp))}
	return nil
}

// HandleInbound decodes and advances the Task for requestID, sending any
// reply the state machine produces and cleaning up the table entry once
// the task finishes. An inbound message for an unknown requestID is
// dropped with CodeTaskIDMismatch — no Task is ever created on the fly by
// an inbound message outside AcceptServer. The returned done flag tells
// the caller the Task reached StateFinished so it can act on the result
// (e.g. finalize a pending AddMember); task is the finished Task itself
// (nil unless done), so the caller can read back fields like
// PeerSigningKey that only settle once the handshake completes. A non-ignore
// Advance failure is reported to the peer as an ErrorMessage sent over ch
// before the session is torn down, in addition to being returned to the
// in-process caller.
func (e *Engine) HandleInbound(requestID int64, data []byte) (done bool, task *Task, err error) {
	e.mu.Lock()
	ent, ok := e.entries[requestID]
	e.mu.Unlock()
	if !ok {
		return false, nil, errors.Newf(errors.CodeTaskIDMismatch, "no session for request %d", requestID)
	}

	msg, err := Decode(data)
	if err != nil {
		return false, nil, err
	}

	reply, taskDone, err := ent.task.Advance(msg)
	if err != nil {
		if errors.Is(err, errors.CodeIgnoreMsg) {
			e.log.Debugf("session %d: ignoring replayed step", requestID)
			return false, nil, nil
		}
		// The entry is removed before sending the error reply, so even a
		// loopback channel whose Send synchronously re-enters HandleInbound
		// for this same requestID just sees CodeTaskIDMismatch rather than
		// recursing into this Task again.
		e.finish(requestID)
		if errMsg, encErr := Encode(ErrorMessage(requestID, ent.task.GroupOp, err)); encErr == nil {
			_ = ent.ch.Send(requestID, errMsg)
		}
		_ = ent.ch.Close(requestID)
		return false, nil, err
	}

	// A reply carries a message/step code or an error code; the client's
	// final ack (M4) has neither and needs no reply of its own.
	if reply.MessageCode != nil || reply.GroupErrorMsg != nil {
		out, encErr := Encode(reply)
		if encErr != nil {
			return false, nil, encErr
		}
		if sendErr := ent.ch.Send(requestID, out); sendErr != nil {
			return false, nil, sendErr
		}
	}

	if taskDone {
		e.finish(requestID)
		_ = ent.ch.Close(requestID)
		return true, ent.task, nil
	}

	e.mu.Lock()
	ent.deadline = e.now().Add(e.timeoutFor(ent.task.GroupOp))
	e.mu.Unlock()
	return false, nil, nil
}

func (e *Engine) finish(requestID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.entries, requestID)
}

// Cancel aborts an in-flight session, closing its channel and removing it
// from the table. A no-op if requestID is not in flight.
func (e *Engine) Cancel(requestID int64) {
	e.mu.Lock()
	ent, ok := e.entries[requestID]
	if ok {
		delete(e.entries, requestID)
	}
	e.mu.Unlock()
	if ok {
		_ = ent.ch.Close(requestID)
	}
}

// SweepExpired closes and removes every session whose deadline has passed,
// returning their request ids for the caller to log or report.
func (e *Engine) SweepExpired() []int64 {
	e.mu.Lock()
	now := e.now()
	var expired []*entry
	var ids []int64
	for id, ent := range e.entries {
		if now.After(ent.deadline) {
			expired = append(expired, ent)
			ids = append(ids, id)
			delete(e.entries, id)
		}
	}
	e.mu.Unlock()
	for _, ent := range expired {
		_ = ent.ch.Close(ent.task.RequestID)
	}
	return ids
}

// Active reports how many sessions are currently in flight.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// SetClock overrides the engine's time source, for tests that need to
// force a deadline without sleeping out the real timeout.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}
