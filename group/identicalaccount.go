package group

import (
	"github.com/openharmony/security-deviceauth/crypto"
	"github.com/openharmony/security-deviceauth/errors"
	"github.com/openharmony/security-deviceauth/internal/sets"
	"github.com/openharmony/security-deviceauth/trust"
)

// IdenticalAccount implements AccountVariant: multiple devices controlled
// by one cloud identity.
type IdenticalAccount struct {
	store  trust.Store
	crypto crypto.Adapter
}

// NewIdenticalAccount constructs the identical-account variant.
func NewIdenticalAccount(store trust.Store, adapter crypto.Adapter) *IdenticalAccount {
	return &IdenticalAccount{store: store, crypto: adapter}
}

func (a *IdenticalAccount) Create(params CreateParams) (trust.Group, error) {
	if params.UserID == "" || params.UserIDHash == "" {
		return trust.Group{}, errors.New(errors.CodeInvalidParams, "user_id is required")
	}
	if params.Credential == nil {
		return trust.Group{}, errors.New(errors.CodeInvalidParams, "credential bundle is required")
	}
	if !validExpireTime(params.ExpireTime) {
		return trust.Group{}, errors.New(errors.CodeInvalidParams, "expire_time out of range")
	}

	existing := a.store.ListGroups(func(g trust.Group) bool {
		return g.Type == trust.GroupTypeIdenticalAccount && g.UserIDHash == params.UserIDHash
	})
	if len(existing) > 0 {
		return trust.Group{}, errors.New(errors.CodeGroupDuplicate, "identical-account group already exists for this user")
	}

	id := trust.DeriveIdenticalAccountGroupID(params.UserIDHash)
	g := trust.Group{
		ID:         id,
		OwnerAppID: params.OwnerAppID,
		Type:       trust.GroupTypeIdenticalAccount,
		Visibility: trust.VisibilityPrivate,
		ExpireTime: params.ExpireTime,
		UserIDHash: params.UserIDHash,
		Managers:   sets.OrderedStrings{params.OwnerAppID},
	}
	if err := a.store.AddGroup(g); err != nil {
		return trust.Group{}, err
	}
	return g, nil
}

// Delete first erases every across-account group sharing this user_id_hash
// (each as a full cascade), then the identical-account group itself (spec
// §4.3's identical-account cascade).
func (a *IdenticalAccount) Delete(groupID, callerAppID string) error {
	g, err := a.store.GetGroupByID(groupID)
	if err != nil {
		return err
	}
	owner, err := a.store.IsGroupOwner(groupID, callerAppID)
	if err != nil {
		return err
	}
	if !owner {
		return errors.New(errors.CodeAccessDenied, "only the owner may delete this group")
	}

	related := a.store.ListGroups(func(other trust.Group) bool {
		return other.Type == trust.GroupTypeAcrossAccount &&
			(other.UserIDHash == g.UserIDHash || other.SharedUserIDHashes.Contains(g.UserIDHash))
	})
	for _, rg := range related {
		if err := a.store.DeleteGroupByID(rg.ID); err != nil {
			return err
		}
	}
	return a.store.DeleteGroupByID(groupID)
}

func (a *IdenticalAccount) SyncSharedUserIDs(groupID string, hashes []string, replace bool) error {
	if replace {
		return a.store.ReplaceSharedUserIDs(groupID, hashes)
	}
	return a.store.MergeSharedUserIDs(groupID, hashes)
}
