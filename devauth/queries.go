package devauth

import (
	"crypto/ed25519"

	"github.com/openharmony/security-deviceauth/crypto"
	"github.com/openharmony/security-deviceauth/errors"
	"github.com/openharmony/security-deviceauth/listener"
	"github.com/openharmony/security-deviceauth/trust"
)

// GetGroupInfoByID returns a group by id, no access check (spec §6: group
// metadata reads are unauthenticated by design; access-gated operations
// use CheckAccess first).
func (s *Service) GetGroupInfoByID(groupID string) (trust.Group, error) {
	return s.store.GetGroupByID(groupID)
}

// GetGroupInfo is GetGroupInfoByID after confirming callerAppID may see
// the group.
func (s *Service) GetGroupInfo(callerAppID, groupID string) (trust.Group, error) {
	ok, err := s.store.IsGroupAccessible(groupID, callerAppID)
	if err != nil {
		return trust.Group{}, err
	}
	if !ok {
		return trust.Group{}, errors.New(errors.CodeAccessDenied, "caller may not read this group")
	}
	return s.store.GetGroupByID(groupID)
}

// GetJoinedGroups lists every group udid has a trust record in.
func (s *Service) GetJoinedGroups(udid string) []trust.Group {
	var joined []trust.Group
	for _, g := range s.store.ListGroups(func(trust.Group) bool { return true }) {
		if s.store.IsTrusted(g.ID, udid) {
			joined = append(joined, g)
		}
	}
	return joined
}

// GetRelatedGroups is GetJoinedGroups plus groups udid's account owns
// outright (identical/across-account groups keyed by user_id_hash rather
// than a udid trust record).
func (s *Service) GetRelatedGroups(udid, userIDHash string) []trust.Group {
	related := s.GetJoinedGroups(udid)
	if userIDHash == "" {
		return related
	}
	seen := make(map[string]bool, len(related))
	for _, g := range related {
		seen[g.ID] = true
	}
	for _, g := range s.store.ListGroups(func(g trust.Group) bool { return g.UserIDHash == userIDHash }) {
		if !seen[g.ID] {
			related = append(related, g)
		}
	}
	return related
}

// GetDeviceInfoByID returns one device's trust record within a group.
func (s *Service) GetDeviceInfoByID(groupID, udid string) (trust.Device, error) {
	return s.store.GetDevice(groupID, udid)
}

// GetTrustedDevices lists every device trusted within a group.
func (s *Service) GetTrustedDevices(groupID string) ([]trust.Device, error) {
	return s.store.ListDevices(groupID)
}

// IsDeviceInGroup reports whether udid is trusted within groupID.
func (s *Service) IsDeviceInGroup(groupID, udid string) bool {
	return s.store.IsTrusted(groupID, udid)
}

// GetPkInfoList returns the marshaled public-key info for every device
// trusted in a group that presented a signing key during its bind
// handshake, for callers assembling an identical/across-account credential
// bundle. A device added outside the handshake (no signing key on file) is
// skipped rather than returned with an empty JWK.
func (s *Service) GetPkInfoList(groupID string) ([]crypto.PkInfo, error) {
	devices, err := s.store.ListDevices(groupID)
	if err != nil {
		return nil, err
	}
	infos := make([]crypto.PkInfo, 0, len(devices))
	for _, d := range devices {
		if len(d.SigningPublicKey) != ed25519.PublicKeySize {
			continue
		}
		info, err := crypto.MarshalPkInfo(d.AuthID, ed25519.PublicKey(d.SigningPublicKey))
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// RegListener subscribes l under appID.
func (s *Service) RegListener(appID string, l listener.Listener) int {
	return s.bcast.Register(appID, l)
}

// UnregListener removes every listener subscribed under appID.
func (s *Service) UnregListener(appID string) {
	s.bcast.Unregister(appID)
}
