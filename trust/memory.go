package trust

import (
	"os"
	"sync"
	"time"

	"github.com/openharmony/security-deviceauth/errors"
	"github.com/openharmony/security-deviceauth/internal/sets"
	"github.com/openharmony/security-deviceauth/listener"
	"github.com/openharmony/security-deviceauth/pkg/log"
	"github.com/openharmony/security-deviceauth/tlv"
)

// memStore is the one Store implementation this repo ships: an in-memory
// map-of-struct table guarded by a single sync.Mutex (grounded on
// storage/memory/memory.go's memStorage), persisted through package tlv
// when constructed with a non-empty path. Tests that want no disk I/O
// construct it with an empty path (New("", ...)), the same role dex's
// separate storage/memory backend plays relative to its SQL/etcd backends
// — collapsed into one configurable type here since spec mandates exactly
// one wire format, so there is no second backend worth a second type.
type memStore struct {
	mu sync.Mutex

	path string
	log  log.Logger
	bcast *listener.Registry

	groups  map[string]Group
	devices map[string]map[string]Device // groupID -> udid -> Device

	// deadlines tracks expire_time deadlines computed at AddGroup time.
	// Not part of the persisted wire format (spec §4.1 has no created_at
	// field), so a reload starts every surviving group's clock over —
	// see DeleteExpiredUserIDGroups.
	deadlines map[string]time.Time
}

// New constructs a Store. path == "" disables persistence (in-memory
// only, for tests); otherwise the database is loaded from path if it
// exists and rewritten on every successful mutation.
func New(path string, bcast *listener.Registry, logger log.Logger) (Store, error) {
	if logger == nil {
		logger = log.Nop
	}
	if bcast == nil {
		bcast = listener.NewRegistry(logger)
	}
	s := &memStore{
		path:    path,
		log:     logger,
		bcast:   bcast,
		groups:    make(map[string]Group),
		devices:   make(map[string]map[string]Device),
		deadlines: make(map[string]time.Time),
	}
	if path != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *memStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // spec §4.2: missing file means empty tables
		}
		return errors.Wrap(errors.CodePersistFailed, err, "reading "+s.path)
	}
	db, err := tlv.Decode(data)
	if err != nil {
		return err
	}
	for _, gr := range db.Groups {
		s.groups[gr.ID] = groupFromRecord(gr)
		if gr.ExpireTime != NoExpiry {
			s.deadlines[gr.ID] = time.Now().Add(time.Duration(gr.ExpireTime) * 24 * time.Hour)
		}
	}
	for _, dr := range db.Devices {
		if s.devices[dr.GroupID] == nil {
			s.devices[dr.GroupID] = make(map[string]Device)
		}
		s.devices[dr.GroupID][dr.UDID] = deviceFromRecord(dr)
	}
	return nil
}

// persist serializes the whole database and writes it, truncating, to
// s.path. Called with s.mu held. A write failure does not roll back the
// in-memory mutation (spec §4.2's stated failure semantics) — it is
// surfaced to the caller as CodePersistFailed.
func (s *memStore) persist() error {
	if s.path == "" {
		return nil
	}
	db := tlv.Database{Version: tlv.CurrentVersion}
	for _, g := range s.groups {
		db.Groups = append(db.Groups, groupToRecord(g))
	}
	for _, byUDID := range s.devices {
		for _, d := range byUDID {
			db.Devices = append(db.Devices, deviceToRecord(d))
		}
	}
	if err := os.WriteFile(s.path, tlv.Encode(db), 0o600); err != nil {
		return errors.Wrap(errors.CodePersistFailed, err, "writing "+s.path)
	}
	return nil
}

func groupToRecord(g Group) tlv.GroupRecord {
	return tlv.GroupRecord{
		Name:               g.Name,
		ID:                 g.ID,
		Type:               uint32(g.Type),
		Visibility:         int32(g.Visibility),
		ExpireTime:         g.ExpireTime,
		UserIDHash:         g.UserIDHash,
		SharedUserIDHashes: []string(g.SharedUserIDHashes),
		Managers:           []string(g.Managers),
		Friends:            []string(g.Friends),
	}
}

func groupFromRecord(r tlv.GroupRecord) Group {
	return Group{
		ID:                 r.ID,
		Name:               r.Name,
		Type:               GroupType(r.Type),
		Visibility:         Visibility(r.Visibility),
		ExpireTime:         r.ExpireTime,
		UserIDHash:         r.UserIDHash,
		SharedUserIDHashes: sets.OrderedStrings(r.SharedUserIDHashes),
		Managers:           sets.OrderedStrings(r.Managers),
		Friends:            sets.OrderedStrings(r.Friends),
	}
}

func deviceToRecord(d Device) tlv.DeviceRecord {
	return tlv.DeviceRecord{
		GroupID:          d.GroupRef,
		UDID:             d.UDID,
		AuthID:           d.AuthID,
		UserIDHash:       d.UserIDHash,
		ServiceType:      d.ServiceType,
		Ext:              string(d.Ext),
		CredentialType:   uint32(d.CredentialType),
		DeviceType:       uint32(d.DeviceType),
		LastTm:           d.LastTm,
		SigningPublicKey: d.SigningPublicKey,
	}
}

func deviceFromRecord(r tlv.DeviceRecord) Device {
	return Device{
		GroupRef:         r.GroupID,
		UDID:             r.UDID,
		AuthID:           r.AuthID,
		UserIDHash:       r.UserIDHash,
		ServiceType:      r.ServiceType,
		Ext:              []byte(r.Ext),
		CredentialType:   CredentialType(r.CredentialType),
		DeviceType:       DeviceType(r.DeviceType),
		LastTm:           r.LastTm,
		SigningPublicKey: r.SigningPublicKey,
	}
}

// udidTrustCount returns how many distinct groups currently have a device
// row for udid. Must be called with s.mu held.
func (s *memStore) udidTrustCount(udid string) int {
	count := 0
	for _, byUDID := range s.devices {
		if _, ok := byUDID[udid]; ok {
			count++
		}
	}
	return count
}

// udidTrustCountInType returns how many distinct groups of type t currently
// have a device row for udid. Must be called with s.mu held.
func (s *memStore) udidTrustCountInType(udid string, t GroupType) int {
	count := 0
	for groupID, byUDID := range s.devices {
		g, ok := s.groups[groupID]
		if !ok || g.Type != t {
			continue
		}
		if _, ok := byUDID[udid]; ok {
			count++
		}
	}
	return count
}

func (s *memStore) AddGroup(g Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[g.ID]; exists {
		return errors.New(errors.CodeGroupDuplicate, g.ID)
	}
	s.groups[g.ID] = g.Clone()
	if g.ExpireTime != NoExpiry {
		s.deadlines[g.ID] = time.Now().Add(time.Duration(g.ExpireTime) * 24 * time.Hour)
	}
	if err := s.persist(); err != nil {
		return err
	}
	s.bcast.PostGroupCreated(g.OwnerAppID, g.ID)
	return nil
}

// DeleteGroupByID cascades to every device row in the group, firing
// per-device unbind notifications (and, when a udid's last group is
// removed, a not-trusted + trusted-count-changed pair), then removes and
// persists the group itself, firing one group-deleted event per
// shared-user-id for across-account groups (spec §4.2 "Cascade delete").
func (s *memStore) DeleteGroupByID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[id]
	if !ok {
		return errors.New(errors.CodeGroupNotFound, id)
	}

	byUDID := s.devices[id]
	delete(s.devices, id)
	delete(s.groups, id)
	delete(s.deadlines, id)

	if err := s.persist(); err != nil {
		// Roll the in-memory delete back is not spec'd: failures here are
		// surfaced but the mutation stands (spec §4.2, §7 "the library
		// does not roll back"). We still need groups/devices removed
		// before persist() ran, which they were.
		return err
	}

	for udid := range byUDID {
		s.bcast.PostDeviceUnbound(g.OwnerAppID, id, udid)
		if s.udidTrustCountInType(udid, g.Type) == 0 {
			s.bcast.PostLastGroupDeleted(udid, uint32(g.Type))
		}
		if s.udidTrustCount(udid) == 0 {
			s.bcast.PostDeviceNotTrusted(udid)
			s.bcast.PostTrustedDeviceNumChanged(udid, 0)
		}
	}

	if g.Type == GroupTypeAcrossAccount && len(g.SharedUserIDHashes) > 0 {
		for range g.SharedUserIDHashes {
			s.bcast.PostGroupDeleted(g.OwnerAppID, id)
		}
	} else {
		s.bcast.PostGroupDeleted(g.OwnerAppID, id)
	}
	return nil
}

func (s *memStore) AddTrustedDevice(d Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[d.GroupRef]
	if !ok {
		return errors.New(errors.CodeGroupNotFound, d.GroupRef)
	}
	if s.devices[d.GroupRef] == nil {
		s.devices[d.GroupRef] = make(map[string]Device)
	}
	if _, exists := s.devices[d.GroupRef][d.UDID]; exists {
		return errors.New(errors.CodeDeviceDuplicate, d.UDID)
	}
	s.devices[d.GroupRef][d.UDID] = d.Clone()
	if err := s.persist(); err != nil {
		return err
	}
	s.bcast.PostDeviceBound(g.OwnerAppID, d.GroupRef, d.UDID)
	s.bcast.PostTrustedDeviceNumChanged(d.UDID, s.udidTrustCount(d.UDID))
	return nil
}

func (s *memStore) DeleteTrustedDevice(groupID, udid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[groupID]
	if !ok {
		return errors.New(errors.CodeGroupNotFound, groupID)
	}
	byUDID := s.devices[groupID]
	if byUDID == nil {
		return errors.New(errors.CodeDeviceNotFound, udid)
	}
	if _, ok := byUDID[udid]; !ok {
		return errors.New(errors.CodeDeviceNotFound, udid)
	}
	delete(byUDID, udid)
	if err := s.persist(); err != nil {
		return err
	}
	s.bcast.PostDeviceUnbound(g.OwnerAppID, groupID, udid)
	if s.udidTrustCountInType(udid, g.Type) == 0 {
		s.bcast.PostLastGroupDeleted(udid, uint32(g.Type))
	}
	remaining := s.udidTrustCount(udid)
	if remaining == 0 {
		s.bcast.PostDeviceNotTrusted(udid)
	}
	s.bcast.PostTrustedDeviceNumChanged(udid, remaining)
	return nil
}

func (s *memStore) GetGroupByID(id string) (Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return Group{}, errors.New(errors.CodeGroupNotFound, id)
	}
	return g.Clone(), nil
}

func (s *memStore) ListGroups(filter func(Group) bool) []Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Group
	for _, g := range s.groups {
		if filter == nil || filter(g) {
			out = append(out, g.Clone())
		}
	}
	return out
}

func (s *memStore) ListDevices(groupID string) ([]Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, errors.New(errors.CodeGroupNotFound, groupID)
	}
	var out []Device
	for _, d := range s.devices[groupID] {
		out = append(out, d.Clone())
	}
	return out, nil
}

func (s *memStore) GetDevice(groupID, udid string) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUDID, ok := s.devices[groupID]
	if !ok {
		return Device{}, errors.New(errors.CodeDeviceNotFound, udid)
	}
	d, ok := byUDID[udid]
	if !ok {
		return Device{}, errors.New(errors.CodeDeviceNotFound, udid)
	}
	return d.Clone(), nil
}

func (s *memStore) IsTrusted(groupID, udid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUDID, ok := s.devices[groupID]
	if !ok {
		return false
	}
	_, ok = byUDID[udid]
	return ok
}

func (s *memStore) CountByOwner(ownerAppID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, g := range s.groups {
		if g.OwnerAppID == ownerAppID {
			count++
		}
	}
	return count
}

func (s *memStore) CountDevicesInGroup(groupID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices[groupID])
}

func (s *memStore) CompareVisibility(groupID string, required Visibility) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return false, errors.New(errors.CodeGroupNotFound, groupID)
	}
	return g.Visibility&required != 0, nil
}

func (s *memStore) IsGroupOwner(groupID, appID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return false, errors.New(errors.CodeGroupNotFound, groupID)
	}
	return g.Owner() == appID, nil
}

// IsGroupAccessible implements spec §4.2: owner, or an allow-listed friend
// when the allow-list bit is set, or any caller when the group is public.
func (s *memStore) IsGroupAccessible(groupID, appID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return false, errors.New(errors.CodeGroupNotFound, groupID)
	}
	if g.Visibility&VisibilityPublic != 0 {
		return true, nil
	}
	if g.Owner() == appID {
		return true, nil
	}
	if g.Visibility&VisibilityAllowList != 0 && g.Friends.Contains(appID) {
		return true, nil
	}
	return false, nil
}

// IsGroupEditAllowed: any manager may edit.
func (s *memStore) IsGroupEditAllowed(groupID, appID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return false, errors.New(errors.CodeGroupNotFound, groupID)
	}
	return g.Managers.Contains(appID), nil
}

func (s *memStore) AddRole(groupID, appID string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return errors.New(errors.CodeGroupNotFound, groupID)
	}
	switch role {
	case RoleManager:
		g.Managers.Add(appID)
	case RoleFriend:
		g.Friends.Add(appID)
	}
	s.groups[groupID] = g
	return s.persist()
}

// RemoveRole enforces spec §4.3: managers[0] is immutable.
func (s *memStore) RemoveRole(groupID, appID string, role Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return errors.New(errors.CodeGroupNotFound, groupID)
	}
	switch role {
	case RoleManager:
		if g.Owner() == appID {
			return errors.New(errors.CodeAccessDenied, "cannot demote group owner")
		}
		g.Managers.Remove(appID)
	case RoleFriend:
		g.Friends.Remove(appID)
	}
	s.groups[groupID] = g
	return s.persist()
}

func (s *memStore) ListRoles(groupID string) (managers, friends []string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, nil, errors.New(errors.CodeGroupNotFound, groupID)
	}
	return append([]string(nil), g.Managers...), append([]string(nil), g.Friends...), nil
}

// DeleteExpiredUserIDGroups removes every account-variant group whose
// expire_time deadline has passed. Expiry deadlines are not part of the
// persisted wire format (spec §4.1 has no created_at field), so this repo
// tracks elapsed validity only within one process lifetime — a load starts
// each group's clock again, and a sweep right after a fresh load never
// finds anything expired.
func (s *memStore) DeleteExpiredUserIDGroups() ([]Group, error) {
	s.mu.Lock()
	now := time.Now()
	var expired []string
	for id, g := range s.groups {
		if g.Type != GroupTypeIdenticalAccount && g.Type != GroupTypeAcrossAccount {
			continue
		}
		if g.ExpireTime == NoExpiry {
			continue
		}
		if deadline, ok := s.deadlines[id]; ok && now.After(deadline) {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	var out []Group
	for _, id := range expired {
		g, err := s.GetGroupByID(id)
		if err != nil {
			continue
		}
		if err := s.DeleteGroupByID(id); err != nil {
			return out, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *memStore) DeleteAllAccountGroups(userIDHash string) ([]Group, error) {
	s.mu.Lock()
	var toDelete []string
	for id, g := range s.groups {
		if g.UserIDHash == userIDHash && (g.Type == GroupTypeIdenticalAccount || g.Type == GroupTypeAcrossAccount) {
			toDelete = append(toDelete, id)
		}
	}
	s.mu.Unlock()

	var out []Group
	for _, id := range toDelete {
		g, err := s.GetGroupByID(id)
		if err != nil {
			continue
		}
		if err := s.DeleteGroupByID(id); err != nil {
			return out, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *memStore) MergeSharedUserIDs(groupID string, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return errors.New(errors.CodeGroupNotFound, groupID)
	}
	g.SharedUserIDHashes = sets.Merge(g.SharedUserIDHashes, hashes)
	s.groups[groupID] = g
	return s.persist()
}

func (s *memStore) ReplaceSharedUserIDs(groupID string, hashes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return errors.New(errors.CodeGroupNotFound, groupID)
	}
	g.SharedUserIDHashes = sets.OrderedStrings(append([]string(nil), hashes...))
	s.groups[groupID] = g
	return s.persist()
}
