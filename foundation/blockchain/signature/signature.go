// Package signature provides helper functions for handling the blockchain
// signature needs. Keys and signatures travel as lowercase hex.
package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
)

// Lengths of the hex encodings used on the wire.
const (
	PublicKeyHexLen = 2 * ed25519.PublicKeySize
	SignatureHexLen = 2 * ed25519.SignatureSize
)

// GenerateKey produces a new private key.
func GenerateKey() (ed25519.PrivateKey, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	return privateKey, nil
}

// PrivateKeyFromHex reconstructs a private key from its hex encoded seed.
func PrivateKeyFromHex(seedHex string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}

	if len(seed) != ed25519.SeedSize {
		return nil, errors.New("invalid seed length")
	}

	return ed25519.NewKeyFromSeed(seed), nil
}

// SeedHex returns the hex encoded seed of the private key.
func SeedHex(privateKey ed25519.PrivateKey) string {
	return hex.EncodeToString(privateKey.Seed())
}

// PublicKeyHex returns the hex encoded public key for the private key.
func PublicKeyHex(privateKey ed25519.PrivateKey) string {
	return hex.EncodeToString(privateKey.Public().(ed25519.PublicKey))
}

// Sign uses the specified private key to sign the message.
func Sign(privateKey ed25519.PrivateKey, msg []byte) string {
	return hex.EncodeToString(ed25519.Sign(privateKey, msg))
}

// Verify checks the hex encoded signature over the message for the hex
// encoded public key. Malformed input never verifies.
func Verify(pubKeyHex string, sigHex string, msg []byte) bool {
	pub, err := hex.DecodeString(pubKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	return ed25519.Verify(ed25519.PublicKey(pub), msg, sig)
}
