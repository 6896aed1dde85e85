// Package trust implements the TrustStore (spec §4.2): an in-memory,
// mutex-guarded set of group and device tables persisted via package tlv,
// broadcasting lifecycle events via package listener on every successful
// mutation. Grounded on dexidp-dex's storage.Storage interface (verb-per-
// entity CRUD, ErrNotFound/ErrAlreadyExists sentinels) and
// storage/memory/memory.go (one sync.Mutex, tx(func()) critical sections).
package trust

import "github.com/openharmony/security-deviceauth/internal/sets"

// GroupType is spec §3's type enum. Immutable after creation.
type GroupType uint32

const (
	GroupTypePeerToPeer      GroupType = 256
	GroupTypeIdenticalAccount GroupType = 1
	GroupTypeAcrossAccount   GroupType = 1282
)

// Visibility is a bitmask (spec §4.2: "visibility is a bit set").
// Creation may only choose Public or Private (spec §4.3); AllowList is an
// independent bit a creator may additionally request so AddFriend has
// somewhere to attach friends without that being a third top-level
// visibility "value".
type Visibility int32

const (
	VisibilityPrivate   Visibility = 0
	VisibilityPublic    Visibility = 1 << 0
	VisibilityAllowList Visibility = 1 << 1
)

// DeviceType is spec §3's device_type enum.
type DeviceType uint32

const (
	DeviceTypeAccessory DeviceType = iota
	DeviceTypeController
	DeviceTypeProxy
)

// CredentialType is spec §3's credential_type enum.
type CredentialType uint32

const (
	CredentialTypeSymmetric  CredentialType = 1
	CredentialTypeAsymmetric CredentialType = 2
)

// NoExpiry is the sentinel expire_time meaning "never" (spec §3).
const NoExpiry int32 = -1

// Group mirrors spec §3's Group entity. Callers only ever see copies —
// TrustStore exclusively owns the live tables (spec §3, "Ownership").
type Group struct {
	ID                 string
	Name               string
	OwnerAppID         string
	Type               GroupType
	Visibility         Visibility
	ExpireTime         int32
	UserIDHash         string
	SharedUserIDHashes sets.OrderedStrings
	Managers           sets.OrderedStrings
	Friends            sets.OrderedStrings
}

// Clone returns a deep copy safe to hand to a caller outside the store's
// critical section.
func (g Group) Clone() Group {
	out := g
	out.SharedUserIDHashes = g.SharedUserIDHashes.Clone()
	out.Managers = g.Managers.Clone()
	out.Friends = g.Friends.Clone()
	return out
}

// Owner returns managers[0], the creator, who can never be demoted.
func (g Group) Owner() string {
	if len(g.Managers) == 0 {
		return ""
	}
	return g.Managers[0]
}

// Device mirrors spec §3's Device entity. Identity is (GroupRef, UDID).
type Device struct {
	GroupRef       string
	UDID           string
	AuthID         string
	UserIDHash     string
	ServiceType    string
	CredentialType CredentialType
	DeviceType     DeviceType
	LastTm         int64
	Ext            []byte

	// SigningPublicKey is the ed25519 public key the device presented
	// during its bind handshake (spec §6's GetPkInfoList reads it back
	// out as a JWK). Empty for a device added outside the handshake.
	SigningPublicKey []byte
}

func (d Device) Clone() Device {
	out := d
	if d.Ext != nil {
		out.Ext = append([]byte(nil), d.Ext...)
	}
	if d.SigningPublicKey != nil {
		out.SigningPublicKey = append([]byte(nil), d.SigningPublicKey...)
	}
	return out
}
