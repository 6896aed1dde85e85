// Package group implements the GroupEngine (spec §4.3): three group
// variants sharing a base contract, each a small struct closing over a
// trust.Store and a crypto.Adapter, grounded on connector/connector.go's
// minimal-interface-plus-optional-capabilities shape (PasswordConnector,
// CallbackConnector, GroupsConnector extending the base Connector).
package group

import (
	"github.com/openharmony/security-deviceauth/trust"
)

// Variant is the base contract every group type implements (spec §4.3).
type Variant interface {
	// Create validates params, derives the group id, and adds the group
	// to the store.
	Create(params CreateParams) (trust.Group, error)
	// Delete runs the variant's cascade (spec §4.3 "Per-variant delete
	// cascades") and removes the group.
	Delete(groupID, callerAppID string) error
}

// PeerVariant is the richer contract only peer-to-peer groups implement
// (spec §4.3).
type PeerVariant interface {
	Variant
	AddMember(groupID string, member MemberParams) error
	DeleteMember(groupID, udid, callerAppID string) error
	AddRole(groupID, callerAppID, targetAppID string, role trust.Role) error
	DeleteRole(groupID, callerAppID, targetAppID string, role trust.Role) error
	ListRoles(groupID string) (managers, friends []string, err error)
}

// AccountVariant is the richer contract identical-account and
// across-account groups implement (spec §4.3).
type AccountVariant interface {
	Variant
	SyncSharedUserIDs(groupID string, hashes []string, replace bool) error
}

// CredentialBundle is spec §4.3's identical-account creation precondition:
// {credential_type, server_pk, pk_info_signature, pk_info}.
type CredentialBundle struct {
	CredentialType   trust.CredentialType
	ServerPK         []byte
	PkInfoSignature  []byte
	PkInfo           []byte
}

// CreateParams covers every variant's creation inputs; each variant
// validates only the subset spec §4.3 requires of it.
type CreateParams struct {
	OwnerAppID string
	Name       string // peer-to-peer
	Visibility trust.Visibility
	AllowList  bool
	ExpireTime int32

	UserID           string // account variants
	UserIDHash       string
	SharedUserID     string
	SharedUserIDHash string
	Credential       *CredentialBundle
}

// MemberParams covers AddMember's inputs (spec §4.3 validation ranges).
type MemberParams struct {
	UDID           string
	AuthID         string
	DeviceType     trust.DeviceType
	CredentialType trust.CredentialType
	PIN            string
	Ext            []byte

	// SigningPublicKey is the joining device's ed25519 public key, captured
	// off the bind handshake once it finishes (see devauth/bind.go). Empty
	// when a caller adds a device without going through the handshake.
	SigningPublicKey []byte
}

func (p *MemberParams) applyDefaults() {
	if p.AuthID == "" {
		p.AuthID = p.UDID
	}
}

func validExpireTime(t int32) bool {
	return t == trust.NoExpiry || (t >= 1 && t <= 90)
}

func validDeviceType(t trust.DeviceType) bool {
	switch t {
	case trust.DeviceTypeAccessory, trust.DeviceTypeController, trust.DeviceTypeProxy:
		return true
	default:
		return false
	}
}
