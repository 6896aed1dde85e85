package session

import (
	"github.com/openharmony/security-deviceauth/crypto"
	"github.com/openharmony/security-deviceauth/errors"
)

// State is one stop on the bind/auth state machine spec §4.5 names:
// init -> req_sent -> challenge_received -> key_confirmed -> finished.
type State int

const (
	StateInit State = iota
	StateReqSent
	StateChallengeReceived
	StateKeyConfirmed
	StateFinished
)

// Role distinguishes the side of the handshake that initiated the request
// (Client, the device asking to join) from the side that already owns the
// group (Server).
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

// bind message codes, spec §4.5's M1-M4.
const (
	bindM1 uint32 = 1
	bindM2 uint32 = 2
	bindM3 uint32 = 3
	bindM4 uint32 = 4
)

// Task is the per-request state machine, owned exclusively by the worker
// goroutine that advances it (spec §5: no locking inside a Task). One Task
// exists per requestId for the lifetime of the bind or auth exchange.
type Task struct {
	RequestID  int64
	Role       Role
	GroupOp    GroupOp
	GroupID    string
	PeerAuthID string
	State      State

	crypto crypto.Adapter
	pin    string

	// versionMask is this Task's module's version bit (Registry.Negotiate
	// checks it against the peer's advertised mask on M1), spec §4.5's
	// AuthModule version negotiation. Zero for a Task built directly by
	// the NewBind*Task constructors rather than through a Module.
	versionMask uint64

	local        crypto.KeyPair
	localNonce   []byte
	peerPublic   []byte
	peerNonce    []byte
	sharedSecret []byte

	// SessionKey is populated once the task reaches StateFinished.
	SessionKey []byte

	// PeerSigningKey is the peer's ed25519 public key, captured off M1
	// (server side) once the joining device presents it. Empty on the
	// client side and on a server task that has not yet received M1.
	PeerSigningKey []byte
}

// NewBindClientTask starts a peer-to-peer bind from the joining device's
// side. Call Start to produce M1.
func NewBindClientTask(requestID int64, adapter crypto.Adapter, groupID, pin string) *Task {
	return &Task{
		RequestID: requestID,
		Role:      RoleClient,
		GroupOp:   GroupOpMemberJoin,
		GroupID:   groupID,
		State:     StateInit,
		crypto:    adapter,
		pin:       pin,
	}
}

// NewBindServerTask starts a peer-to-peer bind from the group owner's side.
// It only begins advancing once the engine delivers M1.
func NewBindServerTask(requestID int64, adapter crypto.Adapter, groupID, pin string) *Task {
	return &Task{
		RequestID: requestID,
		Role:      RoleServer,
		GroupOp:   GroupOpMemberInvite,
		GroupID:   groupID,
		State:     StateInit,
		crypto:    adapter,
		pin:       pin,
	}
}

// Start produces the first outbound message for a client task. Server
// tasks never call Start; they wait for an inbound M1 via Advance.
func (t *Task) Start() (Message, error) {
	if t.Role != RoleClient || t.State != StateInit {
		return Message{}, errors.New(errors.CodeBadMessage, "Start only valid for a fresh client task")
	}
	kp, err := t.crypto.GenerateExchangeKeyPair()
	if err != nil {
		return Message{}, err
	}
	nonce, err := t.crypto.RandomBytes(16)
	if err != nil {
		return Message{}, err
	}
	signKP, err := t.crypto.GenerateSignKeyPair()
	if err != nil {
		return Message{}, err
	}
	t.local = kp
	t.localNonce = nonce
	t.State = StateReqSent
	code := bindM1
	mask := t.versionMask
	return Message{
		RequestID:   t.RequestID,
		GroupOp:     t.GroupOp,
		MessageCode: &code,
		Nonce:       hexEncode(nonce),
		PublicKey:   hexEncode(kp.Public),
		SigningKey:  hexEncode(signKP.Public),
		VersionMask: &mask,
	}, nil
}

// Advance feeds one inbound message to the task and returns the reply to
// send back (if any) and whether the task has finished.
func (t *Task) Advance(in Message) (reply Message, done bool, err error) {
	if in.MessageCode == nil {
		return Message{}, false, errors.New(errors.CodeBadMessage, "bind message missing step code")
	}
	step := *in.MessageCode

	// A restarted handshake replays M1; anything else repeated at the
	// same state is a duplicate we silently drop (spec §4.5).
	if step == bindM1 && t.State != StateInit {
		t.State = StateInit
	}

	switch t.Role {
	case RoleServer:
		return t.advanceServer(step, in)
	default:
		return t.advanceClient(step, in)
	}
}

func (t *Task) advanceServer(step uint32, in Message) (Message, bool, error) {
	switch {
	case step == bindM1 && t.State == StateInit:
		if t.versionMask != 0 {
			var clientMask uint64
			if in.VersionMask != nil {
				clientMask = *in.VersionMask
			}
			if t.versionMask&clientMask == 0 {
				return Message{}, false, errors.Newf(errors.CodeNotSupported, "no common module version (server=%#x client=%#x)", t.versionMask, clientMask)
			}
		}
		peerNonce, err := hexDecode(in.Nonce)
		if err != nil {
			return Message{}, false, err
		}
		peerPub, err := hexDecode(in.PublicKey)
		if err != nil {
			return Message{}, false, err
		}
		peerSignKey, err := hexDecode(in.SigningKey)
		if err != nil {
			return Message{}, false, err
		}
		kp, err := t.crypto.GenerateExchangeKeyPair()
		if err != nil {
			return Message{}, false, err
		}
		nonce, err := t.crypto.RandomBytes(16)
		if err != nil {
			return Message{}, false, err
		}
		commitment, err := t.crypto.PakeCommit(t.pin, nonce)
		if err != nil {
			return Message{}, false, err
		}
		secret, err := t.crypto.ECDH(kp.Private, peerPub)
		if err != nil {
			return Message{}, false, err
		}
		t.local = kp
		t.localNonce = nonce
		t.peerNonce = peerNonce
		t.peerPublic = peerPub
		t.sharedSecret = secret
		t.PeerSigningKey = peerSignKey
		t.State = StateReqSent
		code := bindM2
		return Message{
			RequestID:   t.RequestID,
			GroupOp:     t.GroupOp,
			MessageCode: &code,
			Nonce:       hexEncode(nonce),
			PublicKey:   hexEncode(kp.Public),
			Commitment:  hexEncode(commitment),
		}, false, nil

	case step == bindM3 && t.State == StateReqSent:
		proof, err := hexDecode(in.Ciphertext)
		if err != nil {
			return Message{}, false, err
		}
		expected := t.crypto.HMAC(t.sharedSecret, []byte("bind-m3"))
		if !hmacEqual(expected, proof) {
			t.State = StateInit
			return Message{}, false, errors.New(errors.CodeAuthFail, "bind proof mismatch")
		}
		t.State = StateFinished
		t.SessionKey, err = t.crypto.HKDF(t.sharedSecret, append(append([]byte{}, t.peerNonce...), t.localNonce...), []byte("bind-session-key"), 32)
		if err != nil {
			return Message{}, false, err
		}
		code := bindM4
		return Message{RequestID: t.RequestID, GroupOp: t.GroupOp, MessageCode: &code}, true, nil

	case step == bindM1 && t.State != StateInit:
		return Message{}, false, errors.New(errors.CodeIgnoreMsg, "restart already in progress")

	default:
		return Message{}, false, errors.Newf(errors.CodeIgnoreMsg, "unexpected step %d in state %d", step, t.State)
	}
}

func (t *Task) advanceClient(step uint32, in Message) (Message, bool, error) {
	switch {
	case step == bindM2 && t.State == StateReqSent:
		peerNonce, err := hexDecode(in.Nonce)
		if err != nil {
			return Message{}, false, err
		}
		peerPub, err := hexDecode(in.PublicKey)
		if err != nil {
			return Message{}, false, err
		}
		commitment, err := hexDecode(in.Commitment)
		if err != nil {
			return Message{}, false, err
		}
		if !t.crypto.PakeVerify(t.pin, peerNonce, commitment) {
			return Message{}, false, errors.New(errors.CodeAuthFail, "pin commitment verification failed")
		}
		secret, err := t.crypto.ECDH(t.local.Private, peerPub)
		if err != nil {
			return Message{}, false, err
		}
		t.peerNonce = peerNonce
		t.peerPublic = peerPub
		t.sharedSecret = secret
		t.State = StateChallengeReceived
		proof := t.crypto.HMAC(secret, []byte("bind-m3"))
		code := bindM3
		return Message{RequestID: t.RequestID, GroupOp: t.GroupOp, MessageCode: &code, Ciphertext: hexEncode(proof)}, false, nil

	case step == bindM4 && t.State == StateChallengeReceived:
		var err error
		t.SessionKey, err = t.crypto.HKDF(t.sharedSecret, append(append([]byte{}, t.localNonce...), t.peerNonce...), []byte("bind-session-key"), 32)
		if err != nil {
			return Message{}, false, err
		}
		t.State = StateFinished
		return Message{}, true, nil

	default:
		return Message{}, false, errors.Newf(errors.CodeIgnoreMsg, "unexpected step %d in state %d", step, t.State)
	}
}

func hmacEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
