package group

import (
	"github.com/openharmony/security-deviceauth/crypto"
	"github.com/openharmony/security-deviceauth/errors"
	"github.com/openharmony/security-deviceauth/internal/sets"
	"github.com/openharmony/security-deviceauth/trust"
)

const groupNumLimit = 100

// minPINLength/maxPINLength: original_source's peer_to_peer_group.c rejects
// obviously-wrong PIN lengths before starting a PAKE exchange rather than
// failing deep inside it (see SPEC_FULL.md "SUPPLEMENTED FEATURES").
const (
	minPINLength = 4
	maxPINLength = 16
)

// PeerToPeer implements PeerVariant: two devices that pin-confirm each
// other, with per-group manager/friend role lists.
type PeerToPeer struct {
	store      trust.Store
	crypto     crypto.Adapter
	localUDID  string
}

// NewPeerToPeer constructs the peer-to-peer variant.
func NewPeerToPeer(store trust.Store, adapter crypto.Adapter, localUDID string) *PeerToPeer {
	return &PeerToPeer{store: store, crypto: adapter, localUDID: localUDID}
}

func (p *PeerToPeer) Create(params CreateParams) (trust.Group, error) {
	if params.OwnerAppID == "" || params.Name == "" {
		return trust.Group{}, errors.New(errors.CodeInvalidParams, "owner_app_id and name are required")
	}
	if !validExpireTime(params.ExpireTime) {
		return trust.Group{}, errors.New(errors.CodeInvalidParams, "expire_time out of range")
	}
	if params.Visibility != trust.VisibilityPublic && params.Visibility != trust.VisibilityPrivate {
		return trust.Group{}, errors.New(errors.CodeInvalidParams, "visibility must be public or private at creation")
	}
	if p.store.CountByOwner(params.OwnerAppID) >= groupNumLimit {
		return trust.Group{}, errors.New(errors.CodeBeyondLimit, "group count per owner exceeds limit")
	}

	id := trust.DerivePeerToPeerGroupID(params.Name, params.OwnerAppID)
	if _, err := p.store.GetGroupByID(id); err == nil {
		return trust.Group{}, errors.New(errors.CodeGroupDuplicate, id)
	}

	visibility := params.Visibility
	if params.AllowList {
		visibility |= trust.VisibilityAllowList
	}

	g := trust.Group{
		ID:         id,
		Name:       params.Name,
		OwnerAppID: params.OwnerAppID,
		Type:       trust.GroupTypePeerToPeer,
		Visibility: visibility,
		ExpireTime: params.ExpireTime,
		Managers:   sets.OrderedStrings{params.OwnerAppID},
	}
	if err := p.store.AddGroup(g); err != nil {
		return trust.Group{}, err
	}
	return g, nil
}

// Delete disbands the group after checking that callerAppID owns it. It
// erases no key material: crypto.Adapter has no key-deletion operation, so
// any key pair this device holds for the group is left in place.
func (p *PeerToPeer) Delete(groupID, callerAppID string) error {
	owner, err := p.store.IsGroupOwner(groupID, callerAppID)
	if err != nil {
		return err
	}
	if !owner {
		return errors.New(errors.CodeAccessDenied, "only the group owner may disband")
	}
	return p.store.DeleteGroupByID(groupID)
}

func (p *PeerToPeer) AddMember(groupID string, member MemberParams) error {
	member.applyDefaults()
	if member.UDID == "" {
		return errors.New(errors.CodeInvalidParams, "udid is required")
	}
	if member.UDID == p.localUDID {
		return errors.New(errors.CodeInvalidParams, "device cannot bind to itself")
	}
	if !validDeviceType(member.DeviceType) {
		return errors.New(errors.CodeInvalidParams, "invalid device_type")
	}
	if len(member.PIN) < minPINLength || len(member.PIN) > maxPINLength {
		return errors.Newf(errors.CodeInvalidParams, "pin must be %d-%d characters", minPINLength, maxPINLength)
	}

	return p.store.AddTrustedDevice(trust.Device{
		GroupRef:         groupID,
		UDID:             member.UDID,
		AuthID:           member.AuthID,
		CredentialType:   member.CredentialType,
		DeviceType:       member.DeviceType,
		Ext:              member.Ext,
		SigningPublicKey: member.SigningPublicKey,
	})
}

func (p *PeerToPeer) DeleteMember(groupID, udid, callerAppID string) error {
	allowed, err := p.store.IsGroupEditAllowed(groupID, callerAppID)
	if err != nil {
		return err
	}
	if !allowed {
		return errors.New(errors.CodeAccessDenied, "caller may not edit this group")
	}
	return p.store.DeleteTrustedDevice(groupID, udid)
}

// AddRole: adding a manager requires the caller be the owner; adding a
// friend requires edit permission and the group to carry the allow-list
// visibility bit (spec §4.3).
func (p *PeerToPeer) AddRole(groupID, callerAppID, targetAppID string, role trust.Role) error {
	switch role {
	case trust.RoleManager:
		owner, err := p.store.IsGroupOwner(groupID, callerAppID)
		if err != nil {
			return err
		}
		if !owner {
			return errors.New(errors.CodeAccessDenied, "only the owner may add managers")
		}
	case trust.RoleFriend:
		allowed, err := p.store.IsGroupEditAllowed(groupID, callerAppID)
		if err != nil {
			return err
		}
		if !allowed {
			return errors.New(errors.CodeAccessDenied, "caller may not edit this group")
		}
		hasAllowList, err := p.store.CompareVisibility(groupID, trust.VisibilityAllowList)
		if err != nil {
			return err
		}
		if !hasAllowList {
			return errors.New(errors.CodeAccessDenied, "group does not permit an allow-list")
		}
	}
	return p.store.AddRole(groupID, targetAppID, role)
}

func (p *PeerToPeer) DeleteRole(groupID, callerAppID, targetAppID string, role trust.Role) error {
	owner, err := p.store.IsGroupOwner(groupID, callerAppID)
	if err != nil {
		return err
	}
	if !owner {
		return errors.New(errors.CodeAccessDenied, "only the owner may remove roles")
	}
	return p.store.RemoveRole(groupID, targetAppID, role)
}

func (p *PeerToPeer) ListRoles(groupID string) (managers, friends []string, err error) {
	return p.store.ListRoles(groupID)
}
