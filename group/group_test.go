package group_test

import (
	"testing"

	"github.com/openharmony/security-deviceauth/crypto"
	"github.com/openharmony/security-deviceauth/group"
	"github.com/openharmony/security-deviceauth/listener"
	"github.com/openharmony/security-deviceauth/trust"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *group.Registry {
	t.Helper()
	store, err := trust.New("", listener.NewRegistry(nil), nil)
	require.NoError(t, err)
	return group.NewRegistry(store, crypto.NewDefault(), "local-udid")
}

func TestPeerToPeerCreateAndDuplicateName(t *testing.T) {
	r := newRegistry(t)
	p := r.Peer()

	g, err := p.Create(group.CreateParams{OwnerAppID: "app1", Name: "livingroom", Visibility: trust.VisibilityPublic, ExpireTime: trust.NoExpiry})
	require.NoError(t, err)
	require.Equal(t, trust.GroupTypePeerToPeer, g.Type)

	_, err = p.Create(group.CreateParams{OwnerAppID: "app1", Name: "livingroom", Visibility: trust.VisibilityPublic, ExpireTime: trust.NoExpiry})
	require.Error(t, err)
}

func TestPeerToPeerAddMemberValidatesPIN(t *testing.T) {
	r := newRegistry(t)
	p := r.Peer()
	g, err := p.Create(group.CreateParams{OwnerAppID: "app1", Name: "g1", Visibility: trust.VisibilityPrivate, ExpireTime: trust.NoExpiry})
	require.NoError(t, err)

	err = p.AddMember(g.ID, group.MemberParams{UDID: "udid-1", PIN: "12"})
	require.Error(t, err)

	err = p.AddMember(g.ID, group.MemberParams{UDID: "udid-1", PIN: "1234"})
	require.NoError(t, err)
}

func TestPeerToPeerRejectsSelfBind(t *testing.T) {
	r := newRegistry(t)
	p := r.Peer()
	g, err := p.Create(group.CreateParams{OwnerAppID: "app1", Name: "g1", Visibility: trust.VisibilityPrivate, ExpireTime: trust.NoExpiry})
	require.NoError(t, err)

	err = p.AddMember(g.ID, group.MemberParams{UDID: "local-udid", PIN: "1234"})
	require.Error(t, err)
}

func TestFriendRequiresAllowListBit(t *testing.T) {
	r := newRegistry(t)
	p := r.Peer()
	g, err := p.Create(group.CreateParams{OwnerAppID: "app1", Name: "g1", Visibility: trust.VisibilityPrivate, ExpireTime: trust.NoExpiry})
	require.NoError(t, err)

	err = p.AddRole(g.ID, "app1", "app2", trust.RoleFriend)
	require.Error(t, err)

	g2, err := p.Create(group.CreateParams{OwnerAppID: "app1", Name: "g2", Visibility: trust.VisibilityPrivate, AllowList: true, ExpireTime: trust.NoExpiry})
	require.NoError(t, err)
	require.NoError(t, p.AddRole(g2.ID, "app1", "app2", trust.RoleFriend))
}

func TestOwnerImmutableUnderRemoveRole(t *testing.T) {
	r := newRegistry(t)
	p := r.Peer()
	g, err := p.Create(group.CreateParams{OwnerAppID: "app1", Name: "g1", Visibility: trust.VisibilityPrivate, ExpireTime: trust.NoExpiry})
	require.NoError(t, err)

	err = p.DeleteRole(g.ID, "app1", "app1", trust.RoleManager)
	require.Error(t, err)
}

func TestAcrossAccountRequiresIdenticalAccountFirst(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Across().Create(group.CreateParams{OwnerAppID: "app1", UserIDHash: "hashA", SharedUserIDHash: "hashB", ExpireTime: trust.NoExpiry})
	require.Error(t, err)

	_, err = r.Identical().Create(group.CreateParams{OwnerAppID: "app1", UserID: "user1", UserIDHash: "hashA", ExpireTime: trust.NoExpiry, Credential: &group.CredentialBundle{}})
	require.NoError(t, err)

	g, err := r.Across().Create(group.CreateParams{OwnerAppID: "app1", UserIDHash: "hashA", SharedUserIDHash: "hashB", ExpireTime: trust.NoExpiry})
	require.NoError(t, err)
	require.Equal(t, trust.DeriveAcrossAccountGroupID("hashA", "hashB"), g.ID)
}

func TestIdenticalAccountDeleteCascadesAcrossAccountGroups(t *testing.T) {
	r := newRegistry(t)

	_, err := r.Identical().Create(group.CreateParams{OwnerAppID: "app1", UserID: "user1", UserIDHash: "hashA", ExpireTime: trust.NoExpiry, Credential: &group.CredentialBundle{}})
	require.NoError(t, err)
	ag, err := r.Across().Create(group.CreateParams{OwnerAppID: "app1", UserIDHash: "hashA", SharedUserIDHash: "hashB", ExpireTime: trust.NoExpiry})
	require.NoError(t, err)

	identicalID := trust.DeriveIdenticalAccountGroupID("hashA")
	require.NoError(t, r.Identical().Delete(identicalID, "app1"))

	err = r.Across().Delete(ag.ID, "app1")
	require.Error(t, err) // already cascaded away
}
