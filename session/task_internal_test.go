package session

import (
	"testing"

	"github.com/openharmony/security-deviceauth/channel"
	"github.com/openharmony/security-deviceauth/crypto"
	"github.com/openharmony/security-deviceauth/errors"
	"github.com/stretchr/testify/require"
)

// TestServerRejectsM1WithNoCommonVersion exercises spec §4.5's negotiation
// rejection path: a server Task built for one module version refuses an M1
// whose VersionMask shares no bit with its own, and Engine.HandleInbound
// reports the failure to the peer as an ErrorMessage rather than silently
// dropping it.
func TestServerRejectsM1WithNoCommonVersion(t *testing.T) {
	adapter := crypto.NewDefault()
	serverTask := NewBindServerTask(1, adapter, "group-1", "1234")
	serverTask.versionMask = daspakeVersionBit

	engine := NewEngine(nil)
	a, b := channel.NewMockPair()
	var gotErrorMsg Message
	b.Deliver = func(requestID int64, data []byte) {
		msg, err := Decode(data)
		require.NoError(t, err)
		gotErrorMsg = msg
	}
	require.NoError(t, engine.AcceptServer(serverTask, a))

	mismatchedMask := accountpakeVersionBit
	code := bindM1
	in := Message{
		RequestID:   1,
		GroupOp:     GroupOpMemberInvite,
		MessageCode: &code,
		Nonce:       "00",
		PublicKey:   "00",
		SigningKey:  "00",
		VersionMask: &mismatchedMask,
	}
	data, err := Encode(in)
	require.NoError(t, err)

	_, _, err = engine.HandleInbound(1, data)
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.CodeNotSupported))

	require.NotNil(t, gotErrorMsg.GroupErrorMsg, "Engine.HandleInbound must deliver an ErrorMessage to the peer on negotiation failure")
	require.Equal(t, GroupOpMemberInvite, gotErrorMsg.GroupOp)
	require.Equal(t, 0, engine.Active())
}
