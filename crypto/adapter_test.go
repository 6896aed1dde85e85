package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	a := NewDefault()
	kp, err := a.GenerateSignKeyPair()
	require.NoError(t, err)

	msg := []byte("m1-bind-request")
	sig, err := a.Sign(kp.Private, msg)
	require.NoError(t, err)
	require.True(t, a.Verify(kp.Public, msg, sig))
	require.False(t, a.Verify(kp.Public, []byte("tampered"), sig))
}

func TestECDHAgreement(t *testing.T) {
	a := NewDefault()
	client, err := a.GenerateExchangeKeyPair()
	require.NoError(t, err)
	server, err := a.GenerateExchangeKeyPair()
	require.NoError(t, err)

	clientSecret, err := a.ECDH(client.Private, server.Public)
	require.NoError(t, err)
	serverSecret, err := a.ECDH(server.Private, client.Public)
	require.NoError(t, err)
	require.Equal(t, clientSecret, serverSecret)
}

func TestSealOpenRoundTrip(t *testing.T) {
	a := NewDefault()
	key, err := a.RandomBytes(32)
	require.NoError(t, err)
	nonce, err := a.RandomBytes(12)
	require.NoError(t, err)

	ct, err := a.Seal(key, nonce, []byte("session key confirm"), []byte("aad"))
	require.NoError(t, err)
	pt, err := a.Open(key, nonce, ct, []byte("aad"))
	require.NoError(t, err)
	require.Equal(t, "session key confirm", string(pt))

	_, err = a.Open(key, nonce, ct, []byte("wrong-aad"))
	require.Error(t, err)
}

func TestPakeCommitVerify(t *testing.T) {
	a := NewDefault()
	nonce, err := a.RandomBytes(16)
	require.NoError(t, err)

	commitment, err := a.PakeCommit("123456", nonce)
	require.NoError(t, err)
	require.True(t, a.PakeVerify("123456", nonce, commitment))
	require.False(t, a.PakeVerify("654321", nonce, commitment))
}

func TestPkInfoRoundTrip(t *testing.T) {
	a := NewDefault()
	kp, err := a.GenerateSignKeyPair()
	require.NoError(t, err)

	info, err := MarshalPkInfo("device-1", kp.Public)
	require.NoError(t, err)
	pub, err := UnmarshalPkInfo(info)
	require.NoError(t, err)
	require.Equal(t, []byte(kp.Public), []byte(pub))
}
