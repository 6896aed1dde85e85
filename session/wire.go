// Package session implements the AuthModule registry and SessionEngine
// (spec §4.5): a per-request bind/auth state machine driving a multi-round
// cryptographic handshake over a pluggable channel.Channel. Grounded on
// server/deviceflowhandlers.go and server/tokenhandlers.go (state carried
// in a table keyed by an opaque id, advanced one inbound message at a
// time, with expiry).
package session

import (
	"encoding/hex"
	"encoding/json"

	"github.com/openharmony/security-deviceauth/errors"
)

// GroupOp is spec §6's groupOp enum, required on every wire message.
type GroupOp int32

const (
	GroupOpCreate GroupOp = iota
	GroupOpDisband
	GroupOpMemberInvite
	GroupOpMemberJoin
	GroupOpMemberDelete
	GroupOpAuthenticate
)

// Message is the JSON wire format spec §6 describes. MessageCode
// (`message`) carries the monotone step code for both the bind and the
// auth flow; Step (`step`) is part of the format but no Task sets or reads
// it. Byte fields are lowercase hex strings on the wire, matched by stdlib
// encoding/hex (dex's own device-flow bodies are plain encoding/json
// structs too, so this is the teacher's own choice, not stdlib-by-default).
type Message struct {
	RequestID     int64   `json:"requestId"`
	GroupOp       GroupOp `json:"groupOp"`
	MessageCode   *uint32 `json:"message,omitempty"`
	Step          *uint32 `json:"step,omitempty"`
	Nonce         string  `json:"nonce,omitempty"`
	PublicKey     string  `json:"publicKey,omitempty"`
	Commitment    string  `json:"commitment,omitempty"`
	Ciphertext    string  `json:"ciphertext,omitempty"`
	SigningKey    string  `json:"signPk,omitempty"`
	VersionMask   *uint64 `json:"versionMask,omitempty"`
	GroupErrorMsg *int32  `json:"groupErrorMsg,omitempty"`
}

// Encode serializes a Message to JSON bytes.
func Encode(m Message) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(errors.CodeJSONBadType, err, "encoding wire message")
	}
	return b, nil
}

// Decode parses JSON bytes into a Message.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, errors.Wrap(errors.CodeBadMessage, err, "decoding wire message")
	}
	return m, nil
}

func hexEncode(b []byte) string { return hex.EncodeToString(b) }

func hexDecode(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(errors.CodeBadMessage, err, "decoding hex field")
	}
	return b, nil
}

// ErrorMessage builds a failure wire message echoing back the operation
// that failed, per original_source's peer_to_peer_group.c (spec §6
// documents groupErrorMsg as required but not that it must echo groupOp on
// the error path specifically — see SPEC_FULL.md "SUPPLEMENTED FEATURES").
// Engine.HandleInbound calls this to turn an Advance failure into the wire
// reply the peer's on_transmit callback expects, sending it over the
// channel before the session is torn down.
func ErrorMessage(requestID int64, op GroupOp, err error) Message {
	code := errors.CodeBadMessage
	if e, ok := err.(*errors.Error); ok {
		code = e.Code
	}
	legacy := (&errors.Error{Code: code}).LegacyCode()
	return Message{RequestID: requestID, GroupOp: op, GroupErrorMsg: &legacy}
}
