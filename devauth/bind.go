package devauth

import (
	"github.com/openharmony/security-deviceauth/channel"
	"github.com/openharmony/security-deviceauth/errors"
	"github.com/openharmony/security-deviceauth/group"
	"github.com/openharmony/security-deviceauth/session"
)

// AcceptBindRequest registers the group-owner side of a peer-to-peer bind:
// it waits for the joining device's M1 and, once the PIN-authenticated
// handshake finishes, finalizes membership by calling group.AddMember
// (spec §4.5's bind flow ends where §4.3's AddMember precondition begins).
func (s *Service) AcceptBindRequest(requestID int64, groupID string, member group.MemberParams, ch channel.Channel) error {
	module, _ := s.modules.Module(session.ModuleDASPake)
	task := module.NewServerTask(requestID, groupID, member.PIN)

	s.pendingMu.Lock()
	s.pending[requestID] = pendingBind{groupID: groupID, udid: member.UDID, authID: member.AuthID, pin: member.PIN}
	s.pendingMu.Unlock()

	if err := s.sessions.AcceptServer(task, ch); err != nil {
		s.pendingMu.Lock()
		delete(s.pending, requestID)
		s.pendingMu.Unlock()
		return err
	}
	return nil
}

// RequestBind starts the joining device's side of a peer-to-peer bind,
// sending M1 over ch.
func (s *Service) RequestBind(requestID int64, groupID, pin string, ch channel.Channel) error {
	module, _ := s.modules.Module(session.ModuleDASPake)
	task := module.NewClientTask(requestID, groupID, pin)
	return s.sessions.StartClient(task, ch)
}

// AuthKeyAgree starts an already-bound device's auth handshake: it proves
// possession of the shared credential without creating any new trust
// record (spec §4.5's auth flow, distinct from bind).
func (s *Service) AuthKeyAgree(requestID int64, groupID, secret string, ch channel.Channel) error {
	module, ok := s.modules.Module(session.ModuleAccountPake)
	if !ok {
		return errors.New(errors.CodeNotSupported, "account pake module not registered")
	}
	task := module.NewClientTask(requestID, groupID, secret)
	return s.sessions.StartClient(task, ch)
}

// ConfirmRequest is the group owner's out-of-band accept/reject of a
// pending bind invitation. AcceptBindRequest has already started the
// server side of the handshake, so accepting changes nothing; rejecting
// cancels the session outright and drops the pending bind.
func (s *Service) ConfirmRequest(requestID int64, accept bool) error {
	if accept {
		return nil
	}
	s.sessions.Cancel(requestID)
	s.pendingMu.Lock()
	delete(s.pending, requestID)
	s.pendingMu.Unlock()
	return nil
}

// ProcessData feeds one inbound wire message into the session handshake
// for requestID. When a pending bind's handshake finishes successfully,
// the device is added to the group as a side effect, broadcast through the
// usual trust.Store listeners.
func (s *Service) ProcessData(requestID int64, data []byte) error {
	done, task, err := s.sessions.HandleInbound(requestID, data)
	if err != nil {
		s.pendingMu.Lock()
		delete(s.pending, requestID)
		s.pendingMu.Unlock()
		return err
	}
	if !done {
		return nil
	}

	s.pendingMu.Lock()
	pb, ok := s.pending[requestID]
	delete(s.pending, requestID)
	s.pendingMu.Unlock()
	if !ok {
		return nil
	}

	var signingKey []byte
	if task != nil {
		signingKey = task.PeerSigningKey
	}

	return s.sync(func() error {
		return s.groups.Peer().AddMember(pb.groupID, group.MemberParams{
			UDID:             pb.udid,
			AuthID:           pb.authID,
			PIN:              pb.pin,
			SigningPublicKey: signingKey,
		})
	})
}

// ProcessKeyAgreeData is ProcessData's alias for the auth-flow wire
// messages (spec §6 lists both names; they share one engine).
func (s *Service) ProcessKeyAgreeData(requestID int64, data []byte) error {
	_, _, err := s.sessions.HandleInbound(requestID, data)
	return err
}
