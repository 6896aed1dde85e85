// Package listener implements the Broadcaster (spec §4.4): fan-out of
// group/device lifecycle events to per-app_id subscribers. Each Listener
// supplies any subset of callbacks, mirroring the DataChangeListener
// struct-of-optional-funcs shape the OpenHarmony-derived vocabulary uses —
// a deliberate deviation from "interface over vtable" (spec §9's general
// guidance), justified because forcing every caller to implement every
// callback as a no-op would be worse than the struct-of-funcs it replaces.
package listener

import (
	"sync"

	"github.com/openharmony/security-deviceauth/pkg/log"
)

// Listener is the set of lifecycle callbacks one subscriber may receive.
// Every field is optional; nil fields are simply not invoked.
type Listener struct {
	OnGroupCreated     func(groupID string)
	OnGroupDeleted     func(groupID string)
	OnDeviceBound      func(groupID, udid string)
	OnDeviceUnbound    func(groupID, udid string)
	OnDeviceNotTrusted func(udid string)
	// OnLastGroupDeleted fires when udid has no remaining trust entry in any
	// group of groupType — a narrower condition than OnDeviceNotTrusted,
	// which fires only once udid has no trust entry in any group at all
	// (grounded on original_source's CheckAndNotifyAfterDelDevice, which
	// calls NotifyLastGroupDeleted(udid, groupType) and
	// NotifyDeviceNotTrusted(udid) as two separate checks).
	OnLastGroupDeleted        func(udid string, groupType uint32)
	OnTrustedDeviceNumChanged func(udid string, num int)
}

// Registry fans out events to every Listener registered under a given
// app_id. Posting is synchronous and always happens on the worker
// goroutine (spec §5); a panicking callback is recovered and logged so it
// cannot take the worker down.
type Registry struct {
	mu        sync.Mutex
	log       log.Logger
	listeners map[string][]Listener
}

// NewRegistry constructs an empty Registry. A nil logger is replaced with
// a no-op logger.
func NewRegistry(logger log.Logger) *Registry {
	if logger == nil {
		logger = log.Nop
	}
	return &Registry{log: logger, listeners: make(map[string][]Listener)}
}

// Register adds l under appID and returns its index among appID's
// registrations. Unregister takes only an appID and removes every
// registration under it; a single registration cannot be removed alone.
func (r *Registry) Register(appID string, l Listener) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners[appID] = append(r.listeners[appID], l)
	return len(r.listeners[appID]) - 1
}

// Unregister removes every listener registered under appID.
func (r *Registry) Unregister(appID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.listeners, appID)
}

func (r *Registry) forEach(appID string, fn func(Listener)) {
	r.mu.Lock()
	ls := append([]Listener(nil), r.listeners[appID]...)
	r.mu.Unlock()

	for _, l := range ls {
		r.safeCall(fn, l)
	}
}

// safeCall invokes fn(l), recovering and logging any panic so one bad
// listener cannot take down the caller (always the worker goroutine).
func (r *Registry) safeCall(fn func(Listener), l Listener) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorf("listener callback panicked: %v", rec)
		}
	}()
	fn(l)
}

// broadcastAll invokes fn for every listener across every app_id — used
// for events (device-not-trusted, trusted-count changed) that are not
// scoped to one app's group.
func (r *Registry) broadcastAll(fn func(Listener)) {
	r.mu.Lock()
	var all []Listener
	for _, ls := range r.listeners {
		all = append(all, ls...)
	}
	r.mu.Unlock()

	for _, l := range all {
		r.safeCall(fn, l)
	}
}

func (r *Registry) PostGroupCreated(appID, groupID string) {
	r.forEach(appID, func(l Listener) {
		if l.OnGroupCreated != nil {
			l.OnGroupCreated(groupID)
		}
	})
}

func (r *Registry) PostGroupDeleted(appID, groupID string) {
	r.forEach(appID, func(l Listener) {
		if l.OnGroupDeleted != nil {
			l.OnGroupDeleted(groupID)
		}
	})
}

func (r *Registry) PostDeviceBound(appID, groupID, udid string) {
	r.forEach(appID, func(l Listener) {
		if l.OnDeviceBound != nil {
			l.OnDeviceBound(groupID, udid)
		}
	})
}

func (r *Registry) PostDeviceUnbound(appID, groupID, udid string) {
	r.forEach(appID, func(l Listener) {
		if l.OnDeviceUnbound != nil {
			l.OnDeviceUnbound(groupID, udid)
		}
	})
}

func (r *Registry) PostDeviceNotTrusted(udid string) {
	r.broadcastAll(func(l Listener) {
		if l.OnDeviceNotTrusted != nil {
			l.OnDeviceNotTrusted(udid)
		}
	})
}

func (r *Registry) PostLastGroupDeleted(udid string, groupType uint32) {
	r.broadcastAll(func(l Listener) {
		if l.OnLastGroupDeleted != nil {
			l.OnLastGroupDeleted(udid, groupType)
		}
	})
}

// PostTrustedDeviceNumChanged clamps num to {0,1} before delivery: spec §9
// preserves the original system's quirk that this event never reports a
// real count, only "zero devices left" vs. "at least one".
func (r *Registry) PostTrustedDeviceNumChanged(udid string, num int) {
	clamped := 0
	if num > 0 {
		clamped = 1
	}
	r.broadcastAll(func(l Listener) {
		if l.OnTrustedDeviceNumChanged != nil {
			l.OnTrustedDeviceNumChanged(udid, clamped)
		}
	})
}
