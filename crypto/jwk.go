package crypto

import (
	"crypto/ed25519"
	"encoding/json"

	jose "gopkg.in/square/go-jose.v2"

	"github.com/openharmony/security-deviceauth/errors"
)

// PkInfo is the JWK-encoded representation of a device's or account's
// signing public key, returned by the devauth facade's GetPkInfoList
// (spec §6). Marshaling through go-jose keeps the on-wire key format a
// standard JWK rather than a raw byte blob, the same way dex's server
// package (server/security.go, server/publickeyshandlers.go) represents
// its own signing keys as JOSE objects instead of ad hoc bytes.
type PkInfo struct {
	KeyID string `json:"pkInfoKeyId"`
	JWK   json.RawMessage `json:"pkInfoJwk"`
}

// MarshalPkInfo encodes an ed25519 public key as a JWK wrapped in a PkInfo.
func MarshalPkInfo(keyID string, pub ed25519.PublicKey) (PkInfo, error) {
	jwk := jose.JSONWebKey{
		Key:       pub,
		KeyID:     keyID,
		Algorithm: "EdDSA",
		Use:       "sig",
	}
	raw, err := jwk.MarshalJSON()
	if err != nil {
		return PkInfo{}, errors.Wrap(errors.CodeInvalidParams, err, "marshaling pk_info as jwk")
	}
	return PkInfo{KeyID: keyID, JWK: raw}, nil
}

// UnmarshalPkInfo decodes a PkInfo's embedded JWK back into a public key.
func UnmarshalPkInfo(info PkInfo) (ed25519.PublicKey, error) {
	var jwk jose.JSONWebKey
	if err := jwk.UnmarshalJSON(info.JWK); err != nil {
		return nil, errors.Wrap(errors.CodeJSONBadType, err, "unmarshaling pk_info jwk")
	}
	pub, ok := jwk.Key.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New(errors.CodeJSONBadType, "pk_info jwk is not an ed25519 key")
	}
	return pub, nil
}
