package group

import (
	"github.com/openharmony/security-deviceauth/crypto"
	"github.com/openharmony/security-deviceauth/errors"
	"github.com/openharmony/security-deviceauth/trust"
)

// Registry dispatches by trust.GroupType, grounded on
// server/connectorloginhandlers.go's pattern of resolving a connector by
// ID before delegating to it.
type Registry struct {
	peer      *PeerToPeer
	identical *IdenticalAccount
	across    *AcrossAccount
}

// NewRegistry wires all three variants against one store and one crypto
// adapter.
func NewRegistry(store trust.Store, adapter crypto.Adapter, localUDID string) *Registry {
	return &Registry{
		peer:      NewPeerToPeer(store, adapter, localUDID),
		identical: NewIdenticalAccount(store, adapter),
		across:    NewAcrossAccount(store, adapter),
	}
}

// Variant resolves the base contract for t.
func (r *Registry) Variant(t trust.GroupType) (Variant, error) {
	switch t {
	case trust.GroupTypePeerToPeer:
		return r.peer, nil
	case trust.GroupTypeIdenticalAccount:
		return r.identical, nil
	case trust.GroupTypeAcrossAccount:
		return r.across, nil
	default:
		return nil, errors.Newf(errors.CodeInvalidParams, "unknown group type %d", t)
	}
}

// Peer returns the peer-to-peer variant directly, for callers needing its
// richer PeerVariant surface (AddMember, roles, ...).
func (r *Registry) Peer() *PeerToPeer { return r.peer }

// Identical returns the identical-account variant directly.
func (r *Registry) Identical() *IdenticalAccount { return r.identical }

// Across returns the across-account variant directly.
func (r *Registry) Across() *AcrossAccount { return r.across }
