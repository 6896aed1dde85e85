// Package crypto defines the CryptoAdapter collaborator spec §2 describes
// as external, plus the one concrete implementation this repo ships so the
// rest of the system — and its tests — has something to run against.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/openharmony/security-deviceauth/errors"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// KeyPair is an opaque public/private key pair. Callers never need to know
// which curve backs it; they pass it to the Adapter that produced it.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// Adapter is the CryptoAdapter collaborator: every cryptographic primitive
// the bind/auth protocol and credential handling need, kept behind an
// interface so the session and group engines never import a concrete curve
// or cipher package directly.
type Adapter interface {
	// GenerateSignKeyPair returns a keypair usable with Sign/Verify.
	GenerateSignKeyPair() (KeyPair, error)
	// GenerateExchangeKeyPair returns a keypair usable with ECDH.
	GenerateExchangeKeyPair() (KeyPair, error)

	Sign(priv []byte, msg []byte) ([]byte, error)
	Verify(pub []byte, msg []byte, sig []byte) bool

	// ECDH computes the shared secret between priv and peerPub.
	ECDH(priv []byte, peerPub []byte) ([]byte, error)

	// HKDF derives length bytes of key material from secret.
	HKDF(secret, salt, info []byte, length int) ([]byte, error)
	HMAC(key, msg []byte) []byte
	SHA256(data []byte) []byte

	// Seal/Open are AES-256-GCM with a 12-byte nonce.
	Seal(key, nonce, plaintext, aad []byte) ([]byte, error)
	Open(key, nonce, ciphertext, aad []byte) ([]byte, error)

	RandomBytes(n int) ([]byte, error)

	// PakeCommit binds a PIN and a session nonce into the commitment value
	// the bind protocol's M2 message carries (spec §4.5). PakeVerify is
	// the peer-side check against a received commitment.
	PakeCommit(pin string, nonce []byte) ([]byte, error)
	PakeVerify(pin string, nonce []byte, commitment []byte) bool
}

// Default is the concrete Adapter this repo ships: ed25519 for signing,
// X25519 for ECDH, HKDF-SHA256 for derivation, HMAC-SHA256, AES-256-GCM for
// authenticated encryption, all stdlib or golang.org/x/crypto.
type Default struct{}

// NewDefault returns the default CryptoAdapter implementation.
func NewDefault() *Default { return &Default{} }

func (Default) GenerateSignKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, errors.Wrap(errors.CodeOutOfMemory, err, "generating sign keypair")
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

func (Default) GenerateExchangeKeyPair() (KeyPair, error) {
	var priv [32]byte
	if _, err := io.ReadFull(rand.Reader, priv[:]); err != nil {
		return KeyPair{}, errors.Wrap(errors.CodeOutOfMemory, err, "generating exchange keypair")
	}
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, errors.Wrap(errors.CodeInvalidParams, err, "deriving exchange public key")
	}
	return KeyPair{Public: pub, Private: priv[:]}, nil
}

func (Default) Sign(priv []byte, msg []byte) ([]byte, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, errors.New(errors.CodeInvalidParams, "bad ed25519 private key length")
	}
	return ed25519.Sign(ed25519.PrivateKey(priv), msg), nil
}

func (Default) Verify(pub []byte, msg []byte, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}

func (Default) ECDH(priv []byte, peerPub []byte) ([]byte, error) {
	secret, err := curve25519.X25519(priv, peerPub)
	if err != nil {
		return nil, errors.Wrap(errors.CodeBadMessage, err, "x25519 exchange")
	}
	return secret, nil
}

func (Default) HKDF(secret, salt, info []byte, length int) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, errors.Wrap(errors.CodeInvalidParams, err, "hkdf expand")
	}
	return out, nil
}

func (Default) HMAC(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

func (Default) SHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func (Default) Seal(key, nonce, plaintext, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidParams, err, "aes cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidParams, err, "gcm mode")
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, errors.Newf(errors.CodeInvalidParams, "nonce must be %d bytes", gcm.NonceSize())
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

func (Default) Open(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidParams, err, "aes cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInvalidParams, err, "gcm mode")
	}
	out, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, errors.Wrap(errors.CodeAuthFail, err, "gcm open")
	}
	return out, nil
}

func (Default) RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, errors.Wrap(errors.CodeOutOfMemory, err, "reading random bytes")
	}
	return b, nil
}

// PakeCommit derives a commitment value from the PIN and session nonce via
// HKDF, the way the bind protocol's M2 step binds the PAKE exchange to
// whatever PIN the user entered out of band (spec §4.5). This is a
// PIN-authenticated key derivation, not a textbook PAKE construction —
// CryptoAdapter is an external collaborator in spec.md and this repo owns
// the only concrete implementation needed to make the rest of the system
// exercisable.
func (d Default) PakeCommit(pin string, nonce []byte) ([]byte, error) {
	return d.HKDF([]byte(pin), nonce, []byte("hichain-pake-commit"), 32)
}

func (d Default) PakeVerify(pin string, nonce []byte, commitment []byte) bool {
	want, err := d.PakeCommit(pin, nonce)
	if err != nil {
		return false
	}
	return hmac.Equal(want, commitment)
}
