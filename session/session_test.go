package session_test

import (
	"testing"
	"time"

	"github.com/openharmony/security-deviceauth/channel"
	"github.com/openharmony/security-deviceauth/crypto"
	"github.com/openharmony/security-deviceauth/errors"
	"github.com/openharmony/security-deviceauth/session"
	"github.com/stretchr/testify/require"
)

func TestBindHandshakeEndToEnd(t *testing.T) {
	adapter := crypto.NewDefault()
	modules := session.NewRegistry(adapter)
	das, ok := modules.Module(session.ModuleDASPake)
	require.True(t, ok)

	clientEngine := session.NewEngine(nil)
	serverEngine := session.NewEngine(nil)

	clientCh, serverCh := channel.NewMockPair()
	clientCh.Deliver = func(requestID int64, data []byte) {
		_, _, err := clientEngine.HandleInbound(requestID, data)
		require.NoError(t, err)
	}
	serverCh.Deliver = func(requestID int64, data []byte) {
		_, _, err := serverEngine.HandleInbound(requestID, data)
		require.NoError(t, err)
	}

	serverTask := das.NewServerTask(42, "group-1", "1234")
	require.NoError(t, serverEngine.AcceptServer(serverTask, serverCh))

	clientTask := das.NewClientTask(42, "group-1", "1234")
	require.NoError(t, clientEngine.StartClient(clientTask, clientCh))

	require.Equal(t, session.StateFinished, clientTask.State)
	require.Equal(t, session.StateFinished, serverTask.State)
	require.NotEmpty(t, clientTask.SessionKey)
	require.Equal(t, clientTask.SessionKey, serverTask.SessionKey)
	require.NotEmpty(t, serverTask.PeerSigningKey)
	require.Equal(t, 0, clientEngine.Active())
	require.Equal(t, 0, serverEngine.Active())
}

func TestBindHandshakeWrongPINFails(t *testing.T) {
	adapter := crypto.NewDefault()
	modules := session.NewRegistry(adapter)
	das, _ := modules.Module(session.ModuleDASPake)

	clientEngine := session.NewEngine(nil)
	serverEngine := session.NewEngine(nil)
	clientCh, serverCh := channel.NewMockPair()

	var clientErr error
	clientCh.Deliver = func(requestID int64, data []byte) {
		_, _, clientErr = clientEngine.HandleInbound(requestID, data)
	}
	serverCh.Deliver = func(requestID int64, data []byte) {
		_, _, _ = serverEngine.HandleInbound(requestID, data)
	}

	serverTask := das.NewServerTask(7, "group-1", "1234")
	require.NoError(t, serverEngine.AcceptServer(serverTask, serverCh))

	clientTask := das.NewClientTask(7, "group-1", "9999")
	err := clientEngine.StartClient(clientTask, clientCh)
	require.NoError(t, err) // M1 send always succeeds; the failure surfaces on M2

	require.Error(t, clientErr)
	require.True(t, errors.Is(clientErr, errors.CodeAuthFail))
}

func TestDuplicateRequestIDRejected(t *testing.T) {
	adapter := crypto.NewDefault()
	modules := session.NewRegistry(adapter)
	das, _ := modules.Module(session.ModuleDASPake)

	engine := session.NewEngine(nil)
	a, b := channel.NewMockPair()
	b.Deliver = func(requestID int64, data []byte) {}

	task1 := das.NewClientTask(1, "group-1", "1234")
	require.NoError(t, engine.StartClient(task1, a))

	task2 := das.NewClientTask(1, "group-1", "1234")
	err := engine.StartClient(task2, a)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.CodeDuplicateRequest))
}

func TestRegistryNegotiatesVersionOverlap(t *testing.T) {
	adapter := crypto.NewDefault()
	modules := session.NewRegistry(adapter)

	serverMask := modules.ServerVersionMask()
	das, ok := modules.Module(session.ModuleDASPake)
	require.True(t, ok)
	require.NotZero(t, serverMask&das.VersionNo(), "das's bit must be part of the OR'd server mask")

	m, err := modules.Negotiate(session.ModuleDASPake, das.VersionNo())
	require.NoError(t, err)
	require.Equal(t, session.ModuleDASPake, m.ID())

	_, err = modules.Negotiate(session.ModuleDASPake, 0)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.CodeNotSupported))
}

func TestSweepExpiredRemovesStaleSessions(t *testing.T) {
	adapter := crypto.NewDefault()
	modules := session.NewRegistry(adapter)
	das, _ := modules.Module(session.ModuleDASPake)

	engine := session.NewEngine(nil)
	a, b := channel.NewMockPair()
	b.Deliver = func(requestID int64, data []byte) {}

	serverTask := das.NewServerTask(9, "group-1", "1234")
	require.NoError(t, engine.AcceptServer(serverTask, a))
	require.Equal(t, 1, engine.Active())

	future := time.Now().Add(time.Hour)
	engine.SetClock(func() time.Time { return future })
	expired := engine.SweepExpired()
	require.Equal(t, []int64{9}, expired)
	require.Equal(t, 0, engine.Active())
	_ = b
}
