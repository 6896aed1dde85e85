// Package conformance is a backend-agnostic test suite for trust.Store,
// grounded on dexidp-dex's storage/conformance package (one shared suite
// run against every storage backend). This repo ships only one backend,
// but the split still pays for itself: it keeps the invariant checks
// (spec §8) decoupled from whether the store under test persists to disk.
package conformance

import (
	"testing"

	"github.com/openharmony/security-deviceauth/internal/sets"
	"github.com/openharmony/security-deviceauth/trust"
	"github.com/stretchr/testify/require"
)

// Run exercises the store-level invariants of spec §8 against store:
// duplicate group and device rejection, cascade delete, not-found on
// deleting an unknown group, and an owner who cannot be demoted.
func Run(t *testing.T, store trust.Store) {
	t.Helper()
	t.Run("DuplicateGroupRejected", func(t *testing.T) { testDuplicateGroupRejected(t, store) })
	t.Run("CascadeDeleteRemovesDevices", func(t *testing.T) { testCascadeDeleteRemovesDevices(t, store) })
	t.Run("DeleteUnknownGroupNotFound", func(t *testing.T) { testDeleteUnknownGroupNotFound(t, store) })
	t.Run("DuplicateDeviceRejected", func(t *testing.T) { testDuplicateDeviceRejected(t, store) })
	t.Run("OwnerCannotBeDemoted", func(t *testing.T) { testOwnerCannotBeDemoted(t, store) })
}

func newGroup(id, owner string) trust.Group {
	return trust.Group{
		ID:         id,
		Name:       "g-" + id,
		OwnerAppID: owner,
		Type:       trust.GroupTypePeerToPeer,
		Visibility: trust.VisibilityPrivate,
		ExpireTime: trust.NoExpiry,
		Managers:   sets.OrderedStrings{owner},
	}
}

func testDuplicateGroupRejected(t *testing.T, store trust.Store) {
	g := newGroup("dup-1", "app1")
	require.NoError(t, store.AddGroup(g))
	err := store.AddGroup(g)
	require.Error(t, err)
	_, getErr := store.GetGroupByID(g.ID)
	require.NoError(t, getErr)
	require.NoError(t, store.DeleteGroupByID(g.ID))
}

func testCascadeDeleteRemovesDevices(t *testing.T, store trust.Store) {
	g := newGroup("cascade-1", "app1")
	require.NoError(t, store.AddGroup(g))
	require.NoError(t, store.AddTrustedDevice(trust.Device{GroupRef: g.ID, UDID: "udid-a", AuthID: "udid-a"}))
	require.NoError(t, store.AddTrustedDevice(trust.Device{GroupRef: g.ID, UDID: "udid-b", AuthID: "udid-b"}))

	require.NoError(t, store.DeleteGroupByID(g.ID))

	_, err := store.GetDevice(g.ID, "udid-a")
	require.Error(t, err)
	_, err = store.GetDevice(g.ID, "udid-b")
	require.Error(t, err)
	require.False(t, store.IsTrusted(g.ID, "udid-a"))
}

func testDeleteUnknownGroupNotFound(t *testing.T, store trust.Store) {
	err := store.DeleteGroupByID("does-not-exist")
	require.Error(t, err)
}

func testDuplicateDeviceRejected(t *testing.T, store trust.Store) {
	g := newGroup("dupdev-1", "app1")
	require.NoError(t, store.AddGroup(g))
	d := trust.Device{GroupRef: g.ID, UDID: "udid-x", AuthID: "udid-x"}
	require.NoError(t, store.AddTrustedDevice(d))
	require.Error(t, store.AddTrustedDevice(d))
	require.NoError(t, store.DeleteGroupByID(g.ID))
}

func testOwnerCannotBeDemoted(t *testing.T, store trust.Store) {
	g := newGroup("owner-1", "owner-app")
	require.NoError(t, store.AddGroup(g))
	err := store.RemoveRole(g.ID, "owner-app", trust.RoleManager)
	require.Error(t, err)
	require.NoError(t, store.DeleteGroupByID(g.ID))
}
