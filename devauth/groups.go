package devauth

import (
	"github.com/openharmony/security-deviceauth/group"
	"github.com/openharmony/security-deviceauth/trust"
)

// CreateGroup creates a group of the given type, dispatching to the right
// GroupEngine variant. Enqueued onto the worker so it never races with
// another mutating call (spec §5).
func (s *Service) CreateGroup(t trust.GroupType, params group.CreateParams) (g trust.Group, err error) {
	err = s.sync(func() error {
		v, verr := s.groups.Variant(t)
		if verr != nil {
			return verr
		}
		g, err = v.Create(params)
		return err
	})
	return g, err
}

// DeleteGroup disbands a group, running its variant's cascade.
func (s *Service) DeleteGroup(t trust.GroupType, groupID, callerAppID string) error {
	return s.sync(func() error {
		v, err := s.groups.Variant(t)
		if err != nil {
			return err
		}
		return v.Delete(groupID, callerAppID)
	})
}

// AddMember adds a trusted device to a peer-to-peer group. Only
// peer-to-peer groups support direct membership addition outside the bind
// handshake (spec §4.3).
func (s *Service) AddMember(groupID string, member group.MemberParams) error {
	return s.sync(func() error {
		return s.groups.Peer().AddMember(groupID, member)
	})
}

// DeleteMember removes a trusted device from a peer-to-peer group.
func (s *Service) DeleteMember(groupID, udid, callerAppID string) error {
	return s.sync(func() error {
		return s.groups.Peer().DeleteMember(groupID, udid, callerAppID)
	})
}

// AddManager grants the manager role (owner-only, spec §4.3).
func (s *Service) AddManager(groupID, callerAppID, targetAppID string) error {
	return s.sync(func() error {
		return s.groups.Peer().AddRole(groupID, callerAppID, targetAppID, trust.RoleManager)
	})
}

// AddFriend grants the friend role (requires the allow-list bit, spec
// §4.3).
func (s *Service) AddFriend(groupID, callerAppID, targetAppID string) error {
	return s.sync(func() error {
		return s.groups.Peer().AddRole(groupID, callerAppID, targetAppID, trust.RoleFriend)
	})
}

// DeleteManager revokes the manager role (owner-only).
func (s *Service) DeleteManager(groupID, callerAppID, targetAppID string) error {
	return s.sync(func() error {
		return s.groups.Peer().DeleteRole(groupID, callerAppID, targetAppID, trust.RoleManager)
	})
}

// DeleteFriend revokes the friend role (owner-only).
func (s *Service) DeleteFriend(groupID, callerAppID, targetAppID string) error {
	return s.sync(func() error {
		return s.groups.Peer().DeleteRole(groupID, callerAppID, targetAppID, trust.RoleFriend)
	})
}

// GetManagers lists a group's manager app ids.
func (s *Service) GetManagers(groupID string) ([]string, error) {
	managers, _, err := s.store.ListRoles(groupID)
	return managers, err
}

// GetFriends lists a group's friend app ids.
func (s *Service) GetFriends(groupID string) ([]string, error) {
	_, friends, err := s.store.ListRoles(groupID)
	return friends, err
}

// CheckAccess reports whether appID may read groupID's data.
func (s *Service) CheckAccess(groupID, appID string) (bool, error) {
	return s.store.IsGroupAccessible(groupID, appID)
}

// sync runs fn on the worker goroutine and waits for it to complete,
// returning its error. Every mutating public method routes through this so
// no two mutations ever run concurrently (spec §5).
func (s *Service) sync(fn func() error) error {
	resultCh := make(chan error, 1)
	if err := s.work.Enqueue(func() {
		resultCh <- fn()
	}); err != nil {
		return err
	}
	return <-resultCh
}
