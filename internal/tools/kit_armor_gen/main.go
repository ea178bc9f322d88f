package main

import (
	"crypto/ed25519"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"xledger.io/charter/armor"
	"xledger.io/charter/fungible"
	"xledger.io/charter/identity"
)

func main() {
	var (
		seedByteStr = flag.String("seed", "", "single byte seed (decimal or 0xNN)")
		developer   = flag.String("developer", "dns:issuer.example.com", "developer identity")
		timestamp   = flag.Int64("timestamp", 1755734400, "unix timestamp recorded in the impl")
		paramsPath  = flag.String("params", "", "optional TOML parameter file")
		outPath     = flag.String("out", "", "output file path")
	)
	flag.Parse()

	if *seedByteStr == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: kit_armor_gen -seed <0xA1> -out <file.armor> [-developer <id>] [-timestamp <unix>] [-params <file.toml>]")
		os.Exit(2)
	}
	seedByte, err := parseSeedByte(*seedByteStr)
	if err != nil {
		fatalf("parse -seed: %v", err)
	}

	params := fungible.DefaultParams()
	if *paramsPath != "" {
		params, err = fungible.LoadParams(*paramsPath)
		if err != nil {
			fatalf("load -params: %v", err)
		}
	}

	k, err := fungible.Issuer(*developer, *timestamp, params)
	if err != nil {
		fatalf("fungible.Issuer: %v", err)
	}
	kitID, err := k.ID()
	if err != nil {
		fatalf("kit id: %v", err)
	}
	payload, err := k.MarshalCanonical()
	if err != nil {
		fatalf("kit.MarshalCanonical: %v", err)
	}

	env, err := armor.Seal(armor.TypeKit, map[string]string{
		"Developer":   *developer,
		"Schema-Name": k.Schema.Name,
	}, payload)
	if err != nil {
		fatalf("armor.Seal: %v", err)
	}

	seed := seedFromByte(seedByte)
	priv := ed25519.NewKeyFromSeed(seed)
	crypto := map[string]string{
		"Hash-Alg":      "sha256",
		"Signature-Alg": "ed25519",
		"Signer-Key":    identity.SignerKeyFromSeed(seed),
	}
	scopeEnv, err := env.WithCrypto(crypto)
	if err != nil {
		fatalf("armor.WithCrypto(pre): %v", err)
	}
	scope, err := scopeEnv.SignatureScope()
	if err != nil {
		fatalf("armor.SignatureScope: %v", err)
	}
	crypto["Signature"] = identity.SignEd25519SHA256(scope, priv)
	signed, err := env.WithCrypto(crypto)
	if err != nil {
		fatalf("armor.WithCrypto(final): %v", err)
	}
	if err := signed.Verify(); err != nil {
		fatalf("armor.Verify(final): %v", err)
	}

	if err := os.WriteFile(*outPath, signed.Raw(), 0o644); err != nil {
		fatalf("write: %v", err)
	}
	fmt.Printf("Kit-CID=%s\n", kitID)
	fmt.Printf("Armor-CID=%s\n", signed.ID())
}

func parseSeedByte(s string) (byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty")
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		base = 16
		s = s[2:]
	}
	v, err := strconv.ParseUint(s, base, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

func seedFromByte(seedByte byte) []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = seedByte
	}
	return seed
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
