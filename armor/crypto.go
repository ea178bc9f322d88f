package armor

import (
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"strings"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"

	"xledger.io/charter/fault"
)

func (e *Envelope) SignatureAlg() string { return e.Crypto["Signature-Alg"] }
func (e *Envelope) HashAlg() string      { return e.Crypto["Hash-Alg"] }
func (e *Envelope) Signature() string    { return e.Crypto["Signature"] }
func (e *Envelope) SignerKey() string    { return e.Crypto["Signer-Key"] }

// SignerPublicKeyBytes returns the raw public key bytes from the
// Signer-Key field. Supported encodings:
// - ed25519:<base64>
// - dilithium3:<base64>
func (e *Envelope) SignerPublicKeyBytes() ([]byte, error) {
	signer := e.SignerKey()
	if signer == "" {
		return nil, fault.New(fault.KindCrypto, "CHARTER-ARM-103", "missing Signer-Key")
	}
	alg, enc, ok := strings.Cut(signer, ":")
	if !ok {
		return nil, fault.New(fault.KindCrypto, "CHARTER-ARM-111", "invalid Signer-Key encoding")
	}
	pub, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		return nil, fault.Wrap(fault.KindCrypto, "CHARTER-ARM-113", "invalid signer key base64", err)
	}
	switch alg {
	case "ed25519":
		if len(pub) != ed25519.PublicKeySize {
			return nil, fault.New(fault.KindCrypto, "CHARTER-ARM-114", "invalid ed25519 public key length")
		}
		return pub, nil
	case "dilithium3":
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return nil, fault.Wrap(fault.KindCrypto, "CHARTER-ARM-115", "invalid dilithium3 public key", err)
		}
		return pub, nil
	default:
		return nil, fault.New(fault.KindCrypto, "CHARTER-ARM-112", "unsupported signer key encoding")
	}
}

// SignatureBytes decodes the Signature field and checks fixed-size
// schemes for length.
func (e *Envelope) SignatureBytes() ([]byte, error) {
	s := e.Signature()
	if s == "" {
		return nil, fault.New(fault.KindCrypto, "CHARTER-ARM-104", "missing Signature")
	}
	sig, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fault.Wrap(fault.KindCrypto, "CHARTER-ARM-131", "invalid signature base64", err)
	}
	switch e.SignatureAlg() {
	case "ed25519":
		if len(sig) != ed25519.SignatureSize {
			return nil, fault.New(fault.KindCrypto, "CHARTER-ARM-132", "invalid ed25519 signature length")
		}
	case "dilithium3":
		if len(sig) != mode3.SignatureSize {
			return nil, fault.New(fault.KindCrypto, "CHARTER-ARM-133", "invalid dilithium3 signature length")
		}
	}
	return sig, nil
}

// SignatureScope returns the bytes the signature covers: the envelope
// re-rendered with every CRYPTO field except Signature. The alg and key
// fields are inside the scope, so they cannot be swapped after signing.
func (e *Envelope) SignatureScope() ([]byte, error) {
	if e.Crypto == nil {
		return nil, fault.New(fault.KindCrypto, "CHARTER-ARM-100", "unsigned armor")
	}
	rest := make(map[string]string, len(e.Crypto))
	for k, v := range e.Crypto {
		if k != "Signature" {
			rest[k] = v
		}
	}
	if len(rest) == 0 {
		return nil, fault.New(fault.KindCrypto, "CHARTER-ARM-101", "missing Signature-Alg")
	}
	scoped := &Envelope{Type: e.Type, Meta: e.Meta, Payload: e.Payload, Crypto: rest}
	return render(scoped)
}

// DigestFor hashes a signature scope with the named algorithm. Supported:
// sha256, sha512, sha3-256.
func DigestFor(hashAlg string, message []byte) ([]byte, error) {
	switch hashAlg {
	case "sha256":
		s := sha256.Sum256(message)
		return s[:], nil
	case "sha512":
		s := sha512.Sum512(message)
		return s[:], nil
	case "sha3-256":
		s := sha3.Sum256(message)
		return s[:], nil
	default:
		return nil, fault.New(fault.KindCrypto, "CHARTER-ARM-201", "unsupported Hash-Alg")
	}
}

// Verify checks the developer signature. The receiver's canonical bytes
// are re-parsed first, so a hand-built Envelope with mutated fields
// cannot slip past the canonical form.
func (e *Envelope) Verify() error {
	if e == nil {
		return fault.New(fault.KindCrypto, "CHARTER-ARM-001", "nil envelope")
	}
	parsed, err := Parse(e.raw)
	if err != nil {
		return err
	}
	e = parsed

	if e.Crypto == nil {
		return fault.New(fault.KindCrypto, "CHARTER-ARM-100", "unsigned armor")
	}
	if e.SignatureAlg() == "" {
		return fault.New(fault.KindCrypto, "CHARTER-ARM-101", "missing Signature-Alg")
	}
	if e.HashAlg() == "" {
		return fault.New(fault.KindCrypto, "CHARTER-ARM-102", "missing Hash-Alg")
	}
	signer := e.SignerKey()
	if signer == "" {
		return fault.New(fault.KindCrypto, "CHARTER-ARM-103", "missing Signer-Key")
	}
	signerAlg, _, ok := strings.Cut(signer, ":")
	if !ok {
		return fault.New(fault.KindCrypto, "CHARTER-ARM-111", "invalid Signer-Key encoding")
	}
	if signerAlg != e.SignatureAlg() {
		return fault.New(fault.KindCrypto, "CHARTER-ARM-121", "Signer-Key alg does not match Signature-Alg")
	}

	pub, err := e.SignerPublicKeyBytes()
	if err != nil {
		return err
	}
	sig, err := e.SignatureBytes()
	if err != nil {
		return err
	}
	scope, err := e.SignatureScope()
	if err != nil {
		return err
	}
	digest, err := DigestFor(e.HashAlg(), scope)
	if err != nil {
		return err
	}

	switch e.SignatureAlg() {
	case "ed25519":
		if !ed25519.Verify(ed25519.PublicKey(pub), digest, sig) {
			return fault.New(fault.KindCrypto, "CHARTER-ARM-401", "signature invalid")
		}
		return nil
	case "dilithium3":
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return fault.Wrap(fault.KindCrypto, "CHARTER-ARM-115", "invalid dilithium3 public key", err)
		}
		if !mode3.Verify(&pk, digest, sig) {
			return fault.New(fault.KindCrypto, "CHARTER-ARM-401", "signature invalid")
		}
		return nil
	default:
		return fault.New(fault.KindCrypto, "CHARTER-ARM-301", "unsupported Signature-Alg")
	}
}
