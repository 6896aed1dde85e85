package group

import (
	"github.com/openharmony/security-deviceauth/crypto"
	"github.com/openharmony/security-deviceauth/errors"
	"github.com/openharmony/security-deviceauth/internal/sets"
	"github.com/openharmony/security-deviceauth/trust"
)

// AcrossAccount implements AccountVariant: two identities that mutually
// authorize their devices.
type AcrossAccount struct {
	store  trust.Store
	crypto crypto.Adapter
}

// NewAcrossAccount constructs the across-account variant.
func NewAcrossAccount(store trust.Store, adapter crypto.Adapter) *AcrossAccount {
	return &AcrossAccount{store: store, crypto: adapter}
}

func (a *AcrossAccount) Create(params CreateParams) (trust.Group, error) {
	if params.UserIDHash == "" || params.SharedUserIDHash == "" {
		return trust.Group{}, errors.New(errors.CodeInvalidParams, "shared_user_id is required")
	}
	if !validExpireTime(params.ExpireTime) {
		return trust.Group{}, errors.New(errors.CodeInvalidParams, "expire_time out of range")
	}

	identical := a.store.ListGroups(func(g trust.Group) bool {
		return g.Type == trust.GroupTypeIdenticalAccount && g.UserIDHash == params.UserIDHash
	})
	if len(identical) == 0 {
		return trust.Group{}, errors.New(errors.CodeGroupNotFound, "no identical-account group for this user")
	}

	id := trust.DeriveAcrossAccountGroupID(params.UserIDHash, params.SharedUserIDHash)
	g := trust.Group{
		ID:                 id,
		OwnerAppID:         params.OwnerAppID,
		Type:               trust.GroupTypeAcrossAccount,
		Visibility:         trust.VisibilityPrivate,
		ExpireTime:         params.ExpireTime,
		UserIDHash:         params.UserIDHash,
		SharedUserIDHashes: sets.OrderedStrings{params.SharedUserIDHash},
		Managers:           sets.OrderedStrings{params.OwnerAppID},
	}
	if err := a.store.AddGroup(g); err != nil {
		return trust.Group{}, err
	}
	return g, nil
}

// Delete is a plain cascade (spec §4.3's across-account delete).
func (a *AcrossAccount) Delete(groupID, callerAppID string) error {
	owner, err := a.store.IsGroupOwner(groupID, callerAppID)
	if err != nil {
		return err
	}
	if !owner {
		return errors.New(errors.CodeAccessDenied, "only the owner may delete this group")
	}
	return a.store.DeleteGroupByID(groupID)
}

func (a *AcrossAccount) SyncSharedUserIDs(groupID string, hashes []string, replace bool) error {
	if replace {
		return a.store.ReplaceSharedUserIDs(groupID, hashes)
	}
	return a.store.MergeSharedUserIDs(groupID, hashes)
}
