package identity

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
)

// SignerKeyFromPublicKey encodes an Ed25519 public key into the armor
// signer-key string.
func SignerKeyFromPublicKey(pub ed25519.PublicKey) (string, error) {
	if l := len(pub); l != ed25519.PublicKeySize {
		return "", fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, l)
	}
	return "ed25519:" + base64.StdEncoding.EncodeToString(pub), nil
}

// SignerKeyFromDilithium3PublicKey encodes a Dilithium3 public key into
// the armor signer-key string.
func SignerKeyFromDilithium3PublicKey(pub *mode3.PublicKey) (string, error) {
	if pub == nil {
		return "", fmt.Errorf("missing public key")
	}
	return "dilithium3:" + base64.StdEncoding.EncodeToString(pub.Bytes()), nil
}
