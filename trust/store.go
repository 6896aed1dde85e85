package trust

// Role distinguishes the two role lists a group carries (spec §3:
// managers, friends).
type Role int

const (
	RoleManager Role = iota
	RoleFriend
)

// Store is the TrustStore contract (spec §4.2's verb list, translated to
// idiomatic Go method names). Every operation takes the store's single
// process-wide lock for its whole critical section: read-modify-persist is
// one atomic unit, matching spec §4.2 and §5. The two bulk deletes
// (DeleteExpiredUserIDGroups, DeleteAllAccountGroups) select their groups
// under the lock, then delete each one as its own critical section.
type Store interface {
	AddGroup(g Group) error
	DeleteGroupByID(id string) error

	AddTrustedDevice(d Device) error
	DeleteTrustedDevice(groupID, udid string) error

	GetGroupByID(id string) (Group, error)
	ListGroups(filter func(Group) bool) []Group
	ListDevices(groupID string) ([]Device, error)
	GetDevice(groupID, udid string) (Device, error)
	IsTrusted(groupID, udid string) bool

	CountByOwner(ownerAppID string) int
	CountDevicesInGroup(groupID string) int

	CompareVisibility(groupID string, required Visibility) (bool, error)
	IsGroupOwner(groupID, appID string) (bool, error)
	IsGroupAccessible(groupID, appID string) (bool, error)
	IsGroupEditAllowed(groupID, appID string) (bool, error)

	AddRole(groupID, appID string, role Role) error
	RemoveRole(groupID, appID string, role Role) error
	ListRoles(groupID string) (managers, friends []string, err error)

	DeleteExpiredUserIDGroups() ([]Group, error)
	DeleteAllAccountGroups(userIDHash string) ([]Group, error)
	MergeSharedUserIDs(groupID string, hashes []string) error
	ReplaceSharedUserIDs(groupID string, hashes []string) error
}
