package trust

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Group-id derivation algorithms (spec §4.2, "Algorithms of note"). These
// are TrustStore's own deterministic hashing, not a CryptoAdapter
// operation, so they use stdlib sha256 directly rather than going through
// the crypto.Adapter collaborator.

// DerivePeerToPeerGroupID hashes "name|app_id".
func DerivePeerToPeerGroupID(name, appID string) string {
	return hashHex(name + "|" + appID)
}

// DeriveIdenticalAccountGroupID hashes the account's user_id_hash alone.
func DeriveIdenticalAccountGroupID(userIDHash string) string {
	return hashHex(userIDHash)
}

// DeriveAcrossAccountGroupID sorts the two user-id hashes lexicographically
// before hashing so both sides of the relationship derive the same id.
func DeriveAcrossAccountGroupID(userIDHash, sharedUserIDHash string) string {
	pair := []string{userIDHash, sharedUserIDHash}
	sort.Strings(pair)
	return hashHex(strings.Join(pair, "|"))
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
