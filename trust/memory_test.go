package trust_test

import (
	"path/filepath"
	"testing"

	"github.com/openharmony/security-deviceauth/internal/sets"
	"github.com/openharmony/security-deviceauth/listener"
	"github.com/openharmony/security-deviceauth/trust"
	"github.com/openharmony/security-deviceauth/trust/conformance"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, path string) trust.Store {
	t.Helper()
	s, err := trust.New(path, listener.NewRegistry(nil), nil)
	require.NoError(t, err)
	return s
}

func TestConformanceInMemory(t *testing.T) {
	conformance.Run(t, newStore(t, ""))
}

func TestConformanceFileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hcgroup.dat")
	conformance.Run(t, newStore(t, path))
}

func TestPersistenceAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hcgroup.dat")
	s := newStore(t, path)

	g := trust.Group{
		ID:         "p2p-1",
		Name:       "livingroom",
		OwnerAppID: "app1",
		Type:       trust.GroupTypePeerToPeer,
		Visibility: trust.VisibilityPublic,
		ExpireTime: trust.NoExpiry,
		Managers:   sets.OrderedStrings{"app1"},
	}
	require.NoError(t, s.AddGroup(g))
	require.NoError(t, s.AddTrustedDevice(trust.Device{GroupRef: g.ID, UDID: "udid-1", AuthID: "udid-1"}))

	reloaded := newStore(t, path)
	got, err := reloaded.GetGroupByID(g.ID)
	require.NoError(t, err)
	require.Equal(t, g.Name, got.Name)
	require.True(t, reloaded.IsTrusted(g.ID, "udid-1"))
}

func TestAcrossAccountGroupIDDerivation(t *testing.T) {
	a, b := "hashA", "hashB"
	id1 := trust.DeriveAcrossAccountGroupID(a, b)
	id2 := trust.DeriveAcrossAccountGroupID(b, a)
	require.Equal(t, id1, id2)
}

func TestTrustedCountClampedEventFires(t *testing.T) {
	var lastCount = -1
	bcast := listener.NewRegistry(nil)
	bcast.Register("app1", listener.Listener{
		OnTrustedDeviceNumChanged: func(udid string, num int) { lastCount = num },
	})
	s, err := trust.New("", bcast, nil)
	require.NoError(t, err)

	g := trust.Group{ID: "g1", OwnerAppID: "app1", Type: trust.GroupTypePeerToPeer, Managers: sets.OrderedStrings{"app1"}, ExpireTime: trust.NoExpiry}
	require.NoError(t, s.AddGroup(g))
	require.NoError(t, s.AddTrustedDevice(trust.Device{GroupRef: "g1", UDID: "udid-1", AuthID: "udid-1"}))
	require.Equal(t, 1, lastCount)

	require.NoError(t, s.DeleteTrustedDevice("g1", "udid-1"))
	require.Equal(t, 0, lastCount)
}

// TestLastGroupDeletedIsPerGroupType exercises the distinction between
// OnLastGroupDeleted ("no more trust in a group of this type") and
// OnDeviceNotTrusted ("no more trust in any group at all"): a device
// trusted in groups of two different types loses its last peer-to-peer
// trust without losing all trust.
func TestLastGroupDeletedIsPerGroupType(t *testing.T) {
	var lastGroupDeletedType uint32
	var lastGroupDeletedCalls int
	var notTrustedCalls int
	bcast := listener.NewRegistry(nil)
	bcast.Register("app1", listener.Listener{
		OnLastGroupDeleted: func(udid string, groupType uint32) {
			lastGroupDeletedCalls++
			lastGroupDeletedType = groupType
		},
		OnDeviceNotTrusted: func(udid string) { notTrustedCalls++ },
	})
	s, err := trust.New("", bcast, nil)
	require.NoError(t, err)

	p2p := trust.Group{ID: "p2p", OwnerAppID: "app1", Type: trust.GroupTypePeerToPeer, Managers: sets.OrderedStrings{"app1"}, ExpireTime: trust.NoExpiry}
	account := trust.Group{ID: "acct", OwnerAppID: "app1", Type: trust.GroupTypeIdenticalAccount, UserIDHash: "hash1", Managers: sets.OrderedStrings{"app1"}, ExpireTime: trust.NoExpiry}
	require.NoError(t, s.AddGroup(p2p))
	require.NoError(t, s.AddGroup(account))
	require.NoError(t, s.AddTrustedDevice(trust.Device{GroupRef: p2p.ID, UDID: "udid-1", AuthID: "udid-1"}))
	require.NoError(t, s.AddTrustedDevice(trust.Device{GroupRef: account.ID, UDID: "udid-1", AuthID: "udid-1"}))

	require.NoError(t, s.DeleteGroupByID(p2p.ID))
	require.Equal(t, 1, lastGroupDeletedCalls)
	require.Equal(t, uint32(trust.GroupTypePeerToPeer), lastGroupDeletedType)
	require.Equal(t, 0, notTrustedCalls, "udid is still trusted via the identical-account group")

	require.NoError(t, s.DeleteGroupByID(account.ID))
	require.Equal(t, 2, lastGroupDeletedCalls)
	require.Equal(t, uint32(trust.GroupTypeIdenticalAccount), lastGroupDeletedType)
	require.Equal(t, 1, notTrustedCalls)
}

// TestDeleteTrustedDeviceFiresLastGroupDeletedPerType is
// TestLastGroupDeletedIsPerGroupType's sibling for the single-device
// removal path: original_source's CheckAndNotifyAfterDelDevice is called
// from both the group-cascade-delete site and the lone-device-delete site,
// so both of this store's equivalent entry points must apply the same
// per-type gating.
func TestDeleteTrustedDeviceFiresLastGroupDeletedPerType(t *testing.T) {
	var lastGroupDeletedType uint32
	var lastGroupDeletedCalls int
	var notTrustedCalls int
	bcast := listener.NewRegistry(nil)
	bcast.Register("app1", listener.Listener{
		OnLastGroupDeleted: func(udid string, groupType uint32) {
			lastGroupDeletedCalls++
			lastGroupDeletedType = groupType
		},
		OnDeviceNotTrusted: func(udid string) { notTrustedCalls++ },
	})
	s, err := trust.New("", bcast, nil)
	require.NoError(t, err)

	p2p := trust.Group{ID: "p2p", OwnerAppID: "app1", Type: trust.GroupTypePeerToPeer, Managers: sets.OrderedStrings{"app1"}, ExpireTime: trust.NoExpiry}
	account := trust.Group{ID: "acct", OwnerAppID: "app1", Type: trust.GroupTypeIdenticalAccount, UserIDHash: "hash1", Managers: sets.OrderedStrings{"app1"}, ExpireTime: trust.NoExpiry}
	require.NoError(t, s.AddGroup(p2p))
	require.NoError(t, s.AddGroup(account))
	require.NoError(t, s.AddTrustedDevice(trust.Device{GroupRef: p2p.ID, UDID: "udid-1", AuthID: "udid-1"}))
	require.NoError(t, s.AddTrustedDevice(trust.Device{GroupRef: account.ID, UDID: "udid-1", AuthID: "udid-1"}))

	require.NoError(t, s.DeleteTrustedDevice(p2p.ID, "udid-1"))
	require.Equal(t, 1, lastGroupDeletedCalls)
	require.Equal(t, uint32(trust.GroupTypePeerToPeer), lastGroupDeletedType)
	require.Equal(t, 0, notTrustedCalls, "udid is still trusted via the identical-account group")

	require.NoError(t, s.DeleteTrustedDevice(account.ID, "udid-1"))
	require.Equal(t, 2, lastGroupDeletedCalls)
	require.Equal(t, uint32(trust.GroupTypeIdenticalAccount), lastGroupDeletedType)
	require.Equal(t, 1, notTrustedCalls)
}
