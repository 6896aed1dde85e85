package devauth_test

import (
	"testing"

	"github.com/openharmony/security-deviceauth/channel"
	"github.com/openharmony/security-deviceauth/devauth"
	"github.com/openharmony/security-deviceauth/group"
	"github.com/openharmony/security-deviceauth/listener"
	"github.com/openharmony/security-deviceauth/trust"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, udid string) *devauth.Service {
	t.Helper()
	s, err := devauth.Init(devauth.Options{LocalUDID: udid, QueueDepth: 4})
	require.NoError(t, err)
	t.Cleanup(s.Destroy)
	return s
}

func TestCreateGroupAndQuery(t *testing.T) {
	owner := newService(t, "owner-udid")

	g, err := owner.CreateGroup(trust.GroupTypePeerToPeer, group.CreateParams{
		OwnerAppID: "app1", Name: "kitchen", Visibility: trust.VisibilityPrivate, ExpireTime: trust.NoExpiry,
	})
	require.NoError(t, err)

	got, err := owner.GetGroupInfoByID(g.ID)
	require.NoError(t, err)
	require.Equal(t, g.Name, got.Name)

	ok, err := owner.CheckAccess(g.ID, "app1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBindEndToEndThroughService(t *testing.T) {
	owner := newService(t, "owner-udid")
	joiner := newService(t, "joiner-udid")

	g, err := owner.CreateGroup(trust.GroupTypePeerToPeer, group.CreateParams{
		OwnerAppID: "app1", Name: "livingroom", Visibility: trust.VisibilityPrivate, ExpireTime: trust.NoExpiry,
	})
	require.NoError(t, err)

	ownerCh, joinerCh := channel.NewMockPair()
	ownerCh.Deliver = func(requestID int64, data []byte) {
		require.NoError(t, owner.ProcessData(requestID, data))
	}
	joinerCh.Deliver = func(requestID int64, data []byte) {
		require.NoError(t, joiner.ProcessData(requestID, data))
	}

	requestID := int64(100)
	require.NoError(t, owner.AcceptBindRequest(requestID, g.ID, group.MemberParams{
		UDID: "joiner-udid", PIN: "1234",
	}, ownerCh))

	require.NoError(t, joiner.RequestBind(requestID, g.ID, "1234", joinerCh))

	require.True(t, owner.IsDeviceInGroup(g.ID, "joiner-udid"))
	devices, err := owner.GetTrustedDevices(g.ID)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	require.Equal(t, "joiner-udid", devices[0].UDID)
	require.NotEmpty(t, devices[0].SigningPublicKey)

	infos, err := owner.GetPkInfoList(g.ID)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "joiner-udid", infos[0].KeyID)
	require.NotEmpty(t, infos[0].JWK)
}

func TestBindRejectedOnWrongPIN(t *testing.T) {
	owner := newService(t, "owner-udid")
	joiner := newService(t, "joiner-udid")

	g, err := owner.CreateGroup(trust.GroupTypePeerToPeer, group.CreateParams{
		OwnerAppID: "app1", Name: "garage", Visibility: trust.VisibilityPrivate, ExpireTime: trust.NoExpiry,
	})
	require.NoError(t, err)

	ownerCh, joinerCh := channel.NewMockPair()
	ownerCh.Deliver = func(requestID int64, data []byte) {
		_ = owner.ProcessData(requestID, data)
	}
	var joinerErr error
	joinerCh.Deliver = func(requestID int64, data []byte) {
		joinerErr = joiner.ProcessData(requestID, data)
	}

	requestID := int64(200)
	require.NoError(t, owner.AcceptBindRequest(requestID, g.ID, group.MemberParams{
		UDID: "joiner-udid", PIN: "1234",
	}, ownerCh))
	require.NoError(t, joiner.RequestBind(requestID, g.ID, "9999", joinerCh))

	require.Error(t, joinerErr)
	require.False(t, owner.IsDeviceInGroup(g.ID, "joiner-udid"))
}

func TestHealthRegistersTrustStoreAndTaskQueueChecks(t *testing.T) {
	s := newService(t, "owner-udid")

	healthy, results := s.Health()
	require.True(t, healthy)
	require.Contains(t, results, "trust-store")
	require.Contains(t, results, "task-queue")
}

func TestListenerFiresOnGroupCreated(t *testing.T) {
	s := newService(t, "owner-udid")

	var created string
	s.RegListener("app1", listener.Listener{
		OnGroupCreated: func(groupID string) { created = groupID },
	})

	g, err := s.CreateGroup(trust.GroupTypePeerToPeer, group.CreateParams{
		OwnerAppID: "app1", Name: "den", Visibility: trust.VisibilityPrivate, ExpireTime: trust.NoExpiry,
	})
	require.NoError(t, err)
	require.Equal(t, g.ID, created)
}
