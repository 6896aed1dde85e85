// Package channel defines the Channel collaborator (spec §4.5/§6): two
// kinds, a service-supplied channel (the caller gave an on_transmit
// callback) and a discovery-bus channel (open/send/close). Only an
// interface plus an in-memory mock live here — Non-goal: no network
// transport implementation — modeled on dex's connector/mock test doubles
// (login flows are tested against an in-memory mock connector, never a
// real LDAP/OIDC server).
package channel

import "github.com/openharmony/security-deviceauth/errors"

// Channel delivers bytes tagged by request id to a peer, and the session
// engine delivers inbound bytes back through Deliver.
type Channel interface {
	// Open prepares the channel for use. Service-supplied channels treat
	// this as a no-op; discovery-bus channels perform the actual open.
	Open(requestID int64) error
	// Send transmits data to the peer. Returns CodeTransmitFailed on any
	// transport error (spec §4.5: "no automatic retry at this layer").
	Send(requestID int64, data []byte) error
	// Close tears the channel down. Only called by the side that owns it.
	Close(requestID int64) error
}

// OnTransmit is the service-supplied channel kind: the caller already gave
// a callback and the session just hands bytes to it.
type OnTransmit struct {
	Transmit func(requestID int64, data []byte) error
}

func (c *OnTransmit) Open(requestID int64) error { return nil }

func (c *OnTransmit) Send(requestID int64, data []byte) error {
	if c.Transmit == nil {
		return errors.New(errors.CodeChannelUnavailable, "no transmit callback configured")
	}
	if err := c.Transmit(requestID, data); err != nil {
		return errors.Wrap(errors.CodeTransmitFailed, err, "on_transmit callback")
	}
	return nil
}

func (c *OnTransmit) Close(requestID int64) error { return nil }
