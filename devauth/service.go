// Package devauth is the public API facade (spec §6): a single
// in-process Go type, not a network service (Non-goal: no RPC transport).
// Mutating calls enqueue onto a queue.Queue so they serialize through one
// worker goroutine; pure reads take trust.Store's own lock directly, the
// way spec §5 describes "synchronous ... for group read queries".
// Grounded on dex's api/v2 client: a concrete struct wrapping the
// subsystems, with no package-level state.
package devauth

import (
	"context"
	"sync"
	"time"

	gosundheit "github.com/AppsFlyer/go-sundheit"
	"github.com/AppsFlyer/go-sundheit/checks"

	"github.com/openharmony/security-deviceauth/crypto"
	"github.com/openharmony/security-deviceauth/errors"
	"github.com/openharmony/security-deviceauth/group"
	"github.com/openharmony/security-deviceauth/listener"
	"github.com/openharmony/security-deviceauth/pkg/log"
	"github.com/openharmony/security-deviceauth/queue"
	"github.com/openharmony/security-deviceauth/session"
	"github.com/openharmony/security-deviceauth/trust"
)

// Service is the devauth public API facade (spec §6's grouped method
// list). One Service per device process.
type Service struct {
	store    trust.Store
	groups   *group.Registry
	sessions *session.Engine
	modules  *session.Registry
	bcast    *listener.Registry
	work     *queue.Queue
	crypto   crypto.Adapter
	log      log.Logger

	localUDID string

	health gosundheit.Health

	pendingMu sync.Mutex
	pending   map[int64]pendingBind
}

// pendingBind tracks a server-side bind in flight so ProcessData can
// finalize AddMember once the handshake finishes.
type pendingBind struct {
	groupID string
	udid    string
	authID  string
	pin     string
}

// Options configures a new Service.
type Options struct {
	LocalUDID  string
	StorePath  string
	QueueDepth int
	Logger     log.Logger
}

// Init constructs and starts a Service: the trust store loads (or creates)
// its backing file, the worker queue starts, and a no-HTTP health check
// registers itself (spec's Non-goals exclude a network transport, not
// ambient health bookkeeping — see SPEC_FULL.md component table).
func Init(opts Options) (*Service, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop
	}
	if opts.LocalUDID == "" {
		return nil, errors.New(errors.CodeInvalidParams, "local udid is required")
	}

	bcast := listener.NewRegistry(opts.Logger)
	store, err := trust.New(opts.StorePath, bcast, opts.Logger)
	if err != nil {
		return nil, err
	}
	adapter := crypto.NewDefault()

	s := &Service{
		store:     store,
		groups:    group.NewRegistry(store, adapter, opts.LocalUDID),
		sessions:  session.NewEngine(opts.Logger),
		modules:   session.NewRegistry(adapter),
		bcast:     bcast,
		work:      queue.New(opts.QueueDepth, opts.Logger),
		crypto:    adapter,
		log:       opts.Logger,
		localUDID: opts.LocalUDID,
		health:    gosundheit.New(),
		pending:   make(map[int64]pendingBind),
	}

	go func() { _ = s.work.Run() }()

	_ = s.health.RegisterCheck(&gosundheit.Config{
		Check: &checks.CustomCheck{
			CheckName: "trust-store",
			CheckFunc: func(ctx context.Context) (interface{}, error) {
				_ = store.ListGroups(func(trust.Group) bool { return false })
				return nil, nil
			},
		},
		ExecutionPeriod:  30 * time.Second,
		InitiallyPassing: true,
	})

	_ = s.health.RegisterCheck(&gosundheit.Config{
		Check: &checks.CustomCheck{
			CheckName: "task-queue",
			CheckFunc: func(ctx context.Context) (interface{}, error) {
				if !s.work.Alive() {
					return nil, errors.New(errors.CodeServiceNeedsRestart, "task queue worker is not running")
				}
				return nil, nil
			},
		},
		ExecutionPeriod:  30 * time.Second,
		InitiallyPassing: true,
	})

	return s, nil
}

// Destroy stops the worker queue and waits for its backlog to drain. No
// further calls should be made on the Service afterward.
func (s *Service) Destroy() {
	s.work.Close()
}

// Health reports whether every registered internal check is passing.
// There is no HTTP endpoint (Non-goal: no network transport) — callers
// embedded in a larger process poll this directly.
func (s *Service) Health() (bool, map[string]gosundheit.Result) {
	results, healthy := s.health.Results()
	return healthy, results
}

// SweepExpiredSessions closes and removes every in-flight bind/auth session
// past its deadline, returning the request ids it dropped. A long-running
// host (cmd/devauthd) calls this from a ticker it supervises alongside the
// rest of its actors; a one-shot caller can skip it entirely.
func (s *Service) SweepExpiredSessions() []int64 {
	expired := s.sessions.SweepExpired()
	for _, id := range expired {
		s.log.Warnf("session %d: expired before completion", id)
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}
	return expired
}
