package identity

import (
	"crypto/ed25519"
	"encoding/base64"
	"strings"
	"testing"
)

func TestDeriveRoleSeedDeterministic(t *testing.T) {
	root := make([]byte, ed25519.SeedSize)
	for i := range root {
		root[i] = byte(i)
	}

	a, err := DeriveRoleSeed(root, "issuance")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	b, err := DeriveRoleSeed(root, "issuance")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected deterministic derivation")
	}

	c, err := DeriveRoleSeed(root, "revocation")
	if err != nil {
		t.Fatalf("DeriveRoleSeed: %v", err)
	}
	if string(a) == string(c) {
		t.Fatalf("expected different roles to derive different seeds")
	}
}

func TestDeriveRoleSeedRejectsBadInput(t *testing.T) {
	root := make([]byte, ed25519.SeedSize)
	if _, err := DeriveRoleSeed(root[:10], "issuance"); err == nil {
		t.Fatal("expected error for short root seed")
	}
	if _, err := DeriveRoleSeed(root, "bad role"); err == nil {
		t.Fatal("expected error for invalid role name")
	}
}

func TestSignerKeyFromSeedFormat(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = 0x42
	}
	signerKey := SignerKeyFromSeed(seed)
	if !strings.HasPrefix(signerKey, "ed25519:") {
		t.Fatalf("expected ed25519 prefix, got %q", signerKey)
	}
	b64 := strings.TrimPrefix(signerKey, "ed25519:")
	pubBytes, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("expected valid base64: %v", err)
	}
	if len(pubBytes) != ed25519.PublicKeySize {
		t.Fatalf("expected %d pubkey bytes, got %d", ed25519.PublicKeySize, len(pubBytes))
	}
}

func TestCheckDeveloper(t *testing.T) {
	for _, good := range []string{
		"dns:issuer.example.com",
		"dns:x.co",
		"ssi:anonymous",
		Anonymous,
		"ssi:did-peer-0z6Mk",
	} {
		if err := CheckDeveloper(good); err != nil {
			t.Errorf("CheckDeveloper(%q): %v", good, err)
		}
	}
	for _, bad := range []string{
		"",
		"issuer.example.com",
		"dns:",
		"ssi:",
		"dns:UPPER.example.com",
		"dns:spa ce.com",
		"ssi:with space",
		"http:issuer.example.com",
	} {
		if err := CheckDeveloper(bad); err == nil {
			t.Errorf("CheckDeveloper(%q): expected error", bad)
		}
	}
}
